package engagement

import "github.com/campusclub/gamify/internal/domain"

// ThresholdForLevel returns the experience needed to advance from level to
// level+1: 100 at L1, then +50 per level.
func ThresholdForLevel(level int) int64 {
	if level < 1 {
		level = 1
	}
	return 100 + int64(level-1)*50
}

// LevelBonus is the one-off points award for reaching level.
func LevelBonus(level int) int64 {
	return int64(level) * 50
}

// LevelUp describes one level gained during ApplyExperience.
type LevelUp struct {
	Level int
	Bonus int64
}

// ApplyExperience runs the cascading level rule on a. While experience
// covers the current threshold it subtracts the threshold, advances the
// level and sets the next threshold. Bonuses are reported, not applied: the
// ledger books them as level_bonus transactions.
func ApplyExperience(a *domain.PointsAccount) []LevelUp {
	if a.Level < 1 {
		a.Level = 1
	}
	if a.PointsToNextLevel <= 0 {
		a.PointsToNextLevel = ThresholdForLevel(a.Level)
	}

	var ups []LevelUp
	for a.ExperiencePoints >= a.PointsToNextLevel {
		a.ExperiencePoints -= a.PointsToNextLevel
		a.Level++
		a.PointsToNextLevel = ThresholdForLevel(a.Level)
		ups = append(ups, LevelUp{Level: a.Level, Bonus: LevelBonus(a.Level)})
	}
	return ups
}

// ProgressPct returns progress toward the next level (0.0–100.0).
func ProgressPct(a domain.PointsAccount) float64 {
	if a.PointsToNextLevel <= 0 {
		return 0
	}
	pct := float64(a.ExperiencePoints) / float64(a.PointsToNextLevel) * 100.0
	if pct > 100 {
		pct = 100
	}
	return pct
}
