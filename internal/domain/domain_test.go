package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── Category Tests ─────────────────────────────────────────────────────────

func TestCategory_Valid(t *testing.T) {
	for _, c := range Categories() {
		assert.True(t, c.Valid(), c)
	}
	assert.False(t, Category("cooking").Valid())
	assert.False(t, Category("").Valid())
}

func TestPointsAccount_CategoryBuckets(t *testing.T) {
	a := NewPointsAccount("u1", time.Now())
	assert.Equal(t, 1, a.Level)
	assert.Equal(t, int64(100), a.PointsToNextLevel)

	for i, c := range Categories() {
		a.AddCategoryPoints(c, int64(i+1))
	}
	for i, c := range Categories() {
		assert.Equal(t, int64(i+1), a.CategoryPoints(c), c)
	}
}

// ─── Rule Tests ─────────────────────────────────────────────────────────────

func TestOp_Compare(t *testing.T) {
	tests := []struct {
		op     Op
		a, b   int64
		expect bool
	}{
		{OpGTE, 10, 10, true},
		{OpGTE, 9, 10, false},
		{OpGT, 10, 10, false},
		{OpEQ, 3, 3, true},
		{OpLTE, 2, 3, true},
		{OpLT, 3, 3, false},
		{"", 5, 5, true}, // empty defaults to >=
	}
	for _, tt := range tests {
		got, err := tt.op.Compare(tt.a, tt.b)
		require.NoError(t, err)
		assert.Equal(t, tt.expect, got, "%d %s %d", tt.a, tt.op, tt.b)
	}

	_, err := Op("~").Compare(1, 1)
	assert.True(t, errors.Is(err, ErrInvalidRule))
}

func TestRule_Validate(t *testing.T) {
	ok := All(Threshold("total_points", OpGTE, 10), Any(Custom("club_enthusiast"), Threshold("level", OpGT, 2)))
	require.NoError(t, ok.Validate())
	assert.Equal(t, "all(total_points >= 10, any(custom(club_enthusiast), level > 2))", ok.String())

	bad := []Rule{
		{Kind: RuleThreshold},
		{Kind: RuleCustom},
		All(),
		Any(Threshold("", OpGTE, 1)),
		{Kind: "xor"},
	}
	for _, r := range bad {
		assert.ErrorIs(t, r.Validate(), ErrInvalidRule, r.String())
	}
}

// ─── Achievement Tests ──────────────────────────────────────────────────────

func TestAchievement_Percentage(t *testing.T) {
	a := Achievement{Requirements: []Requirement{
		{Counter: "clubs_joined", Target: 2},
		{Counter: "events_attended", Target: 3},
	}}
	assert.Equal(t, 0.0, a.Percentage(nil))
	assert.Equal(t, 50.0, a.Percentage(map[string]int64{"clubs_joined": 2}))
	assert.Equal(t, 100.0, a.Percentage(map[string]int64{"clubs_joined": 5, "events_attended": 3}))

	weighted := Achievement{Requirements: []Requirement{
		{Counter: "a", Target: 1, Weight: 3},
		{Counter: "b", Target: 1},
	}}
	assert.Equal(t, 75.0, weighted.Percentage(map[string]int64{"a": 1}))
}

func TestAchievement_AvailableAt(t *testing.T) {
	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	a := Achievement{Active: true, StartsAt: start, EndsAt: end}

	assert.False(t, a.AvailableAt(start.Add(-time.Second)))
	assert.True(t, a.AvailableAt(start))
	assert.True(t, a.AvailableAt(end.Add(-time.Second)))
	assert.False(t, a.AvailableAt(end))

	a.Active = false
	assert.False(t, a.AvailableAt(start.Add(time.Hour)))

	open := Achievement{Active: true}
	assert.True(t, open.AvailableAt(time.Now()))
}

func TestAchievement_Touches(t *testing.T) {
	a := Achievement{Requirements: []Requirement{{Counter: "clubs_joined", Target: 1}}}
	assert.True(t, a.Touches(map[string]int64{"clubs_joined": 1}))
	assert.False(t, a.Touches(map[string]int64{"clubs_joined": 0}))
	assert.False(t, a.Touches(map[string]int64{"events_attended": 1}))
}

func TestProgressStatus_Terminal(t *testing.T) {
	assert.False(t, StatusInProgress.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusExpired.Terminal())
}

// ─── Leaderboard Tests ──────────────────────────────────────────────────────

func TestParseScope(t *testing.T) {
	s, err := ParseScope("")
	require.NoError(t, err)
	assert.Equal(t, ScopeGlobal, s)

	s, err = ParseScope("scope:mit.edu")
	require.NoError(t, err)
	assert.Equal(t, "mit.edu", s.Group())
	assert.Equal(t, GroupScope("mit.edu"), s)

	assert.Equal(t, "", ScopeGlobal.Group())

	_, err = ParseScope("scope:")
	assert.ErrorIs(t, err, ErrInvalidScope)
	_, err = ParseScope("college")
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestMetric_Valid(t *testing.T) {
	for _, m := range Metrics() {
		assert.True(t, m.Valid())
	}
	assert.False(t, Metric("karma").Valid())
}

func TestBadge_RarityPct(t *testing.T) {
	b := Badge{TotalEarned: 5}
	assert.Equal(t, 0.0, b.RarityPct(0))
	assert.Equal(t, 50.0, b.RarityPct(10))
}
