package domain

import "time"

// ─── Badge Types ────────────────────────────────────────────────────────────

// BadgeType groups badges by theme.
type BadgeType string

const (
	BadgeParticipation BadgeType = "participation"
	BadgeAchievement   BadgeType = "achievement"
	BadgeLeadership    BadgeType = "leadership"
	BadgeSocial        BadgeType = "social"
	BadgeAcademic      BadgeType = "academic"
	BadgeSpecial       BadgeType = "special"
	BadgeMilestone     BadgeType = "milestone"
)

// Difficulty is the badge or achievement tier.
type Difficulty string

const (
	DifficultyBronze   Difficulty = "bronze"
	DifficultySilver   Difficulty = "silver"
	DifficultyGold     Difficulty = "gold"
	DifficultyPlatinum Difficulty = "platinum"
	DifficultyDiamond  Difficulty = "diamond"
)

// Badge is a catalog entry. Requirement is evaluated against an account
// snapshot; PointsReward is granted as a badge_reward transaction.
type Badge struct {
	ID           string     `json:"id" toml:"id"`
	Name         string     `json:"name" toml:"name"`
	Description  string     `json:"description" toml:"description"`
	Type         BadgeType  `json:"type" toml:"type"`
	Difficulty   Difficulty `json:"difficulty" toml:"difficulty"`
	Requirement  Rule       `json:"requirement" toml:"requirement"`
	PointsReward int64      `json:"points_reward" toml:"points_reward"`
	Repeatable   bool       `json:"repeatable" toml:"repeatable"`
	Active       bool       `json:"active" toml:"active"`
	Hidden       bool       `json:"hidden" toml:"hidden"`
	TotalEarned  int64      `json:"total_earned" toml:"-"`
	CreatedAt    time.Time  `json:"created_at" toml:"-"`
}

// RarityPct returns the share of accounts holding this badge (0–100).
func (b Badge) RarityPct(totalAccounts int64) float64 {
	if totalAccounts <= 0 {
		return 0
	}
	return float64(b.TotalEarned) / float64(totalAccounts) * 100.0
}

// BadgeGrant records one award of a badge. Seq is 0 for non-repeatable
// badges and counts up from 0 for repeatable ones.
type BadgeGrant struct {
	AccountID string    `json:"account_id"`
	BadgeID   string    `json:"badge_id"`
	Seq       int       `json:"seq"`
	Reason    string    `json:"reason"`
	EarnedAt  time.Time `json:"earned_at"`
}
