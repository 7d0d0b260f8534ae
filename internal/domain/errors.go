package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.

var (
	// Ledger errors
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrUnknownCategory = errors.New("unknown points category")
	ErrAccountNotFound = errors.New("points account not found")
	ErrInvalidAccount  = errors.New("account id must not be empty")

	// Activity errors
	ErrUnknownActivity = errors.New("unknown activity type")

	// Badge errors
	ErrBadgeNotFound = errors.New("badge not found")

	// Achievement errors
	ErrAchievementNotFound    = errors.New("achievement not found")
	ErrAchievementUnavailable = errors.New("achievement is not available")

	// Rule errors
	ErrInvalidRule      = errors.New("invalid requirement rule")
	ErrUnknownField     = errors.New("unknown rule field")
	ErrUnknownPredicate = errors.New("unknown custom predicate")

	// Leaderboard errors
	ErrUnknownMetric = errors.New("unknown leaderboard metric")
	ErrInvalidScope  = errors.New("invalid leaderboard scope")
)
