package engagement

import "github.com/campusclub/gamify/internal/domain"

// ScoreInputs are the non-account figures the engagement score needs.
type ScoreInputs struct {
	Badges                int64
	CompletedAchievements int64
	RecentTransactions    int64 // last 7 days
}

// MaxScore caps the engagement score.
const MaxScore = 1000

// Score rates how engaged an account is, 0–MaxScore.
//
//	points/10 (≤100) + level×5 + streak×2 (≤50) + badges×5 (≤100)
//	+ completed achievements×20 + recent transactions×2 (≤30)
func Score(a domain.PointsAccount, in ScoreInputs) int64 {
	total := min(a.TotalPoints/10, 100) +
		int64(a.Level)*5 +
		min(int64(a.CurrentStreak)*2, 50) +
		min(in.Badges*5, 100) +
		in.CompletedAchievements*20 +
		min(in.RecentTransactions*2, 30)
	return max(0, min(total, MaxScore))
}
