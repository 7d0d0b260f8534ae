// Package domain holds the pure gamification types: accounts, the points
// ledger, badges, achievements, rules, leaderboards and outbound events.
package domain

import "time"

// DateLayout is the calendar-day format used for streak bookkeeping.
const DateLayout = "2006-01-02"

// Bounds on caller-supplied sizes. One credit or debit moves at most
// MaxAmount points; a reported streak is at most MaxStreakDays long.
const (
	MaxAmount     int64 = 1_000_000
	MaxStreakDays int64 = 3650
)

// ─── Categories ─────────────────────────────────────────────────────────────

// Category is one of the five points buckets an account accumulates into.
type Category string

const (
	CategoryActivity   Category = "activity"
	CategorySocial     Category = "social"
	CategoryLeadership Category = "leadership"
	CategoryAcademic   Category = "academic"
	CategorySpecial    Category = "special"
)

// Categories returns every bucket in display order.
func Categories() []Category {
	return []Category{CategoryActivity, CategorySocial, CategoryLeadership, CategoryAcademic, CategorySpecial}
}

// Valid reports whether c names a known bucket.
func (c Category) Valid() bool {
	switch c {
	case CategoryActivity, CategorySocial, CategoryLeadership, CategoryAcademic, CategorySpecial:
		return true
	}
	return false
}

// ─── Transactions ───────────────────────────────────────────────────────────

// TxType classifies a ledger transaction.
type TxType string

const (
	TxEarned      TxType = "earned"
	TxSpent       TxType = "spent"
	TxBonus       TxType = "bonus"
	TxPenalty     TxType = "penalty"
	TxLevelBonus  TxType = "level_bonus"
	TxBadgeReward TxType = "badge_reward"
	TxStreakBonus TxType = "streak_bonus"
	TxAdjustment  TxType = "adjustment"
)

// Valid reports whether t is a known transaction type.
func (t TxType) Valid() bool {
	switch t {
	case TxEarned, TxSpent, TxBonus, TxPenalty, TxLevelBonus, TxBadgeReward, TxStreakBonus, TxAdjustment:
		return true
	}
	return false
}

// RelatedRef points a transaction at the object that caused it.
type RelatedRef struct {
	Type string `json:"type,omitempty"`
	ID   string `json:"id,omitempty"`
}

// Transaction is one immutable ledger row. BalanceAfter is the account's
// total_points including this row's Amount.
type Transaction struct {
	ID           int64      `json:"id"`
	AccountID    string     `json:"account_id"`
	Amount       int64      `json:"amount"`
	Type         TxType     `json:"type"`
	Category     Category   `json:"category,omitempty"`
	Description  string     `json:"description"`
	Related      RelatedRef `json:"related"`
	BalanceAfter int64      `json:"balance_after"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ─── Accounts ───────────────────────────────────────────────────────────────

// PointsAccount is the per-user gamification state. Created lazily on first
// activity and never deleted.
type PointsAccount struct {
	ID    string `json:"id"`
	Scope string `json:"scope,omitempty"`

	TotalPoints    int64 `json:"total_points"`
	LifetimePoints int64 `json:"lifetime_points"`

	ActivityPoints   int64 `json:"activity_points"`
	SocialPoints     int64 `json:"social_points"`
	LeadershipPoints int64 `json:"leadership_points"`
	AcademicPoints   int64 `json:"academic_points"`
	SpecialPoints    int64 `json:"special_points"`

	Level             int   `json:"level"`
	ExperiencePoints  int64 `json:"experience_points"`
	PointsToNextLevel int64 `json:"points_to_next_level"`

	CurrentStreak    int    `json:"current_streak"`
	LongestStreak    int    `json:"longest_streak"`
	LastActivityDate string `json:"last_activity_date,omitempty"` // DateLayout, empty until first activity

	GlobalRank int `json:"global_rank"` // 0 = unranked
	ScopedRank int `json:"scoped_rank"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPointsAccount returns a level-1 account with no points.
func NewPointsAccount(id string, now time.Time) PointsAccount {
	return PointsAccount{
		ID:                id,
		Level:             1,
		PointsToNextLevel: 100,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// CategoryPoints returns the bucket total for c.
func (a *PointsAccount) CategoryPoints(c Category) int64 {
	switch c {
	case CategoryActivity:
		return a.ActivityPoints
	case CategorySocial:
		return a.SocialPoints
	case CategoryLeadership:
		return a.LeadershipPoints
	case CategoryAcademic:
		return a.AcademicPoints
	case CategorySpecial:
		return a.SpecialPoints
	}
	return 0
}

// AddCategoryPoints adds n to the bucket for c.
func (a *PointsAccount) AddCategoryPoints(c Category, n int64) {
	switch c {
	case CategoryActivity:
		a.ActivityPoints += n
	case CategorySocial:
		a.SocialPoints += n
	case CategoryLeadership:
		a.LeadershipPoints += n
	case CategoryAcademic:
		a.AcademicPoints += n
	case CategorySpecial:
		a.SpecialPoints += n
	}
}

// ─── Counters ───────────────────────────────────────────────────────────────
// Per-account progress counters. Badge predicates and achievement
// requirements are expressed against these names.

const (
	CounterDaysActive              = "days_active"
	CounterPointsEarned            = "points_earned"
	CounterLoginDays               = "login_days"
	CounterClubsJoined             = "clubs_joined"
	CounterClubsLed                = "clubs_led"
	CounterEventsAttended          = "events_attended"
	CounterEventsOrganized         = "events_organized"
	CounterCollaborationsJoined    = "collaborations_joined"
	CounterCollaborationsLed       = "collaborations_led"
	CounterCollaborationsCompleted = "collaborations_completed"
	CounterAchievementsCompleted   = "achievements_completed"
	CounterStudyGroupsJoined       = "study_groups_joined"
	CounterAcademicEventsAttended  = "academic_events_attended"
)

// CategoryCounter is the achievement counter fed by points earned in c,
// e.g. "academic_points".
func CategoryCounter(c Category) string {
	return string(c) + "_points"
}
