// Package engagement holds the pure progression rules: the cascading level
// curve, daily streaks and the engagement score.
package engagement

import (
	"time"

	"github.com/campusclub/gamify/internal/domain"
)

// MilestoneEvery is the streak length interval that earns a milestone.
const MilestoneEvery = 7

// StreakBonus is the points award for reaching a streak milestone.
func StreakBonus(streak int) int64 {
	return int64(streak) * 10
}

// StreakResult reports what AdvanceStreak did.
type StreakResult struct {
	NewDay    bool // first activity of a calendar day
	Reset     bool // a gap broke the streak
	Milestone bool // current streak is a positive multiple of MilestoneEvery
}

// AdvanceStreak applies one activity at now to a's streak. Days are
// calendar days in loc. Same day is a no-op, the day after the last
// activity extends the streak, anything else restarts it at 1.
func AdvanceStreak(a *domain.PointsAccount, now time.Time, loc *time.Location) StreakResult {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	today := local.Format(domain.DateLayout)

	if a.LastActivityDate == today {
		return StreakResult{}
	}

	res := StreakResult{NewDay: true}
	yesterday := local.AddDate(0, 0, -1).Format(domain.DateLayout)
	switch {
	case a.LastActivityDate == yesterday:
		a.CurrentStreak++
	default:
		res.Reset = a.LastActivityDate != ""
		a.CurrentStreak = 1
	}

	if a.CurrentStreak > a.LongestStreak {
		a.LongestStreak = a.CurrentStreak
	}
	a.LastActivityDate = today
	res.Milestone = a.CurrentStreak%MilestoneEvery == 0
	return res
}
