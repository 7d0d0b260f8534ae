// Package activity maps named user activities to points, a category bucket
// and the progress counter they advance.
package activity

import (
	"fmt"
	"math"
	"strconv"

	"github.com/campusclub/gamify/internal/domain"
)

// Activity type names accepted by RecordActivity.
const (
	ClubJoin              = "club_join"
	ClubCreate            = "club_create"
	ClubLeadership        = "club_leadership"
	EventRegister         = "event_register"
	EventAttend           = "event_attend"
	EventCreate           = "event_create"
	EventOrganize         = "event_organize"
	CollaborationJoin     = "collaboration_join"
	CollaborationCreate   = "collaboration_create"
	CollaborationComplete = "collaboration_complete"
	AchievementComplete   = "achievement_complete"
	MilestoneComplete     = "milestone_complete"
	StudyGroupJoin        = "study_group_join"
	AcademicEventAttend   = "academic_event_attend"
	DailyLogin            = "daily_login"
	ProfileComplete       = "profile_complete"
	FirstPost             = "first_post"
	CommentCreate         = "comment_create"
	LikeGive              = "like_give"
	StreakMilestone       = "streak_milestone"
	Referral              = "referral"
	FeedbackSubmit        = "feedback_submit"
)

// Spec is the static mapping for one activity type. PerStreakDay, when set,
// replaces Points with streak × PerStreakDay, the streak length read from
// the activity data ("streak", or "value"; 1 when absent).
type Spec struct {
	Points       int64           `toml:"points"`
	Category     domain.Category `toml:"category"`
	Counter      string          `toml:"counter"`
	PerStreakDay int64           `toml:"per_streak_day"`
}

// Result is a resolved activity.
type Result struct {
	Type     string
	Points   int64
	Category domain.Category
	Counter  string
}

// DefaultTable returns the built-in activity table.
func DefaultTable() map[string]Spec {
	return map[string]Spec{
		ClubJoin:              {Points: 50, Category: domain.CategorySocial, Counter: domain.CounterClubsJoined},
		ClubCreate:            {Points: 100, Category: domain.CategorySocial},
		ClubLeadership:        {Points: 200, Category: domain.CategorySocial, Counter: domain.CounterClubsLed},
		EventRegister:         {Points: 10, Category: domain.CategoryActivity},
		EventAttend:           {Points: 25, Category: domain.CategoryActivity, Counter: domain.CounterEventsAttended},
		EventCreate:           {Points: 75, Category: domain.CategoryActivity},
		EventOrganize:         {Points: 150, Category: domain.CategoryActivity, Counter: domain.CounterEventsOrganized},
		CollaborationJoin:     {Points: 100, Category: domain.CategoryLeadership, Counter: domain.CounterCollaborationsJoined},
		CollaborationCreate:   {Points: 200, Category: domain.CategoryLeadership, Counter: domain.CounterCollaborationsLed},
		CollaborationComplete: {Points: 300, Category: domain.CategoryLeadership, Counter: domain.CounterCollaborationsCompleted},
		AchievementComplete:   {Points: 500, Category: domain.CategoryAcademic, Counter: domain.CounterAchievementsCompleted},
		MilestoneComplete:     {Points: 100, Category: domain.CategoryAcademic},
		StudyGroupJoin:        {Points: 20, Category: domain.CategoryAcademic, Counter: domain.CounterStudyGroupsJoined},
		AcademicEventAttend:   {Points: 25, Category: domain.CategoryAcademic, Counter: domain.CounterAcademicEventsAttended},
		DailyLogin:            {Points: 5, Category: domain.CategorySpecial, Counter: domain.CounterLoginDays},
		ProfileComplete:       {Points: 25, Category: domain.CategorySpecial},
		FirstPost:             {Points: 15, Category: domain.CategorySpecial},
		CommentCreate:         {Points: 5, Category: domain.CategorySpecial},
		LikeGive:              {Points: 1, Category: domain.CategorySpecial},
		StreakMilestone:       {PerStreakDay: 10, Category: domain.CategorySpecial},
		Referral:              {Points: 50, Category: domain.CategorySpecial},
		FeedbackSubmit:        {Points: 15, Category: domain.CategorySpecial},
	}
}

// Mapper resolves activity types against a table.
type Mapper struct {
	table map[string]Spec
}

// NewMapper builds a mapper from the default table with overrides applied
// on top. Zero Category or Counter in an override keeps the default.
func NewMapper(overrides map[string]Spec) (*Mapper, error) {
	table := DefaultTable()
	for name, o := range overrides {
		base, known := table[name]
		if o.Category == "" {
			o.Category = domain.CategorySpecial
			if known {
				o.Category = base.Category
			}
		}
		if o.Counter == "" && known {
			o.Counter = base.Counter
		}
		if !o.Category.Valid() {
			return nil, fmt.Errorf("activity %q: %w: %s", name, domain.ErrUnknownCategory, o.Category)
		}
		if o.Points < 0 || o.PerStreakDay < 0 ||
			o.Points > domain.MaxAmount || o.PerStreakDay > domain.MaxAmount/domain.MaxStreakDays {
			return nil, fmt.Errorf("activity %q: %w", name, domain.ErrInvalidAmount)
		}
		table[name] = o
	}
	return &Mapper{table: table}, nil
}

// Resolve maps an activity to its award. Unknown types return
// domain.ErrUnknownActivity; a streak length outside 1..MaxStreakDays
// returns domain.ErrInvalidAmount. The result may carry zero points when
// the table says so; callers skip the grant in that case.
func (m *Mapper) Resolve(activityType string, data map[string]any) (Result, error) {
	spec, ok := m.table[activityType]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", domain.ErrUnknownActivity, activityType)
	}

	points := spec.Points
	if spec.PerStreakDay > 0 {
		days, err := streakDays(data)
		if err != nil {
			return Result{}, fmt.Errorf("activity %q: %w", activityType, err)
		}
		points = days * spec.PerStreakDay
	}

	return Result{
		Type:     activityType,
		Points:   points,
		Category: spec.Category,
		Counter:  spec.Counter,
	}, nil
}

// Types returns every known activity type with its spec.
func (m *Mapper) Types() map[string]Spec {
	out := make(map[string]Spec, len(m.table))
	for k, v := range m.table {
		out[k] = v
	}
	return out
}

// streakDays reads the reported streak length.
func streakDays(data map[string]any) (int64, error) {
	for _, key := range []string{"streak", "value"} {
		if _, ok := data[key]; !ok {
			continue
		}
		n, ok := intField(data, key)
		if !ok || n < 1 || n > domain.MaxStreakDays {
			return 0, fmt.Errorf("%w: %s=%v", domain.ErrInvalidAmount, key, data[key])
		}
		return n, nil
	}
	return 1, nil
}

// intField reads an integer from loosely typed activity data (JSON numbers
// arrive as float64). Fractions and values outside int64 are rejected.
func intField(data map[string]any, key string) (int64, bool) {
	switch v := data[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}
