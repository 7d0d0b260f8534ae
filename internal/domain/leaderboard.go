package domain

import (
	"fmt"
	"strings"
	"time"
)

// ─── Leaderboards ───────────────────────────────────────────────────────────

// Metric is the value a leaderboard is ordered by.
type Metric string

const (
	MetricPoints     Metric = "points"
	MetricLevel      Metric = "level"
	MetricBadgeCount Metric = "badge_count"
	MetricStreak     Metric = "streak"
)

// Metrics returns every supported metric.
func Metrics() []Metric {
	return []Metric{MetricPoints, MetricLevel, MetricBadgeCount, MetricStreak}
}

// Valid reports whether m is supported.
func (m Metric) Valid() bool {
	switch m {
	case MetricPoints, MetricLevel, MetricBadgeCount, MetricStreak:
		return true
	}
	return false
}

// Scope is either ScopeGlobal or "scope:<name>" for a sub-population.
type Scope string

// ScopeGlobal ranks every account.
const ScopeGlobal Scope = "global"

const scopePrefix = "scope:"

// GroupScope returns the leaderboard scope for a named population.
func GroupScope(name string) Scope {
	return Scope(scopePrefix + name)
}

// ParseScope validates a scope string.
func ParseScope(s string) (Scope, error) {
	if s == "" || s == string(ScopeGlobal) {
		return ScopeGlobal, nil
	}
	if name, ok := strings.CutPrefix(s, scopePrefix); ok && name != "" {
		return Scope(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidScope, s)
}

// Group returns the population name, or "" for the global scope.
func (s Scope) Group() string {
	name, ok := strings.CutPrefix(string(s), scopePrefix)
	if !ok {
		return ""
	}
	return name
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank      int    `json:"rank"`
	AccountID string `json:"account_id"`
	Value     int64  `json:"value"`
	Secondary int64  `json:"secondary"`
}

// Leaderboard is the ranking for one (scope, metric) pair from one pass.
type Leaderboard struct {
	Scope       Scope              `json:"scope"`
	Metric      Metric             `json:"metric"`
	Version     int64              `json:"version"`
	GeneratedAt time.Time          `json:"generated_at"`
	Entries     []LeaderboardEntry `json:"entries"`
}

// RankRecord is a persisted per-account rank for one (scope, metric).
type RankRecord struct {
	AccountID string    `json:"account_id"`
	Scope     Scope     `json:"scope"`
	Metric    Metric    `json:"metric"`
	Rank      int       `json:"rank"`
	Value     int64     `json:"value"`
	RankedAt  time.Time `json:"ranked_at"`
}
