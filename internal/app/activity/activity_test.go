package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusclub/gamify/internal/domain"
)

func TestResolve_DefaultTable(t *testing.T) {
	m, err := NewMapper(nil)
	require.NoError(t, err)

	tests := []struct {
		typ      string
		points   int64
		category domain.Category
		counter  string
	}{
		{ClubJoin, 50, domain.CategorySocial, domain.CounterClubsJoined},
		{EventAttend, 25, domain.CategoryActivity, domain.CounterEventsAttended},
		{CollaborationComplete, 300, domain.CategoryLeadership, domain.CounterCollaborationsCompleted},
		{AchievementComplete, 500, domain.CategoryAcademic, domain.CounterAchievementsCompleted},
		{DailyLogin, 5, domain.CategorySpecial, domain.CounterLoginDays},
		{LikeGive, 1, domain.CategorySpecial, ""},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			r, err := m.Resolve(tt.typ, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.points, r.Points)
			assert.Equal(t, tt.category, r.Category)
			assert.Equal(t, tt.counter, r.Counter)
		})
	}
}

func TestResolve_StreakMilestoneScalesWithStreak(t *testing.T) {
	m, err := NewMapper(nil)
	require.NoError(t, err)

	r, err := m.Resolve(StreakMilestone, map[string]any{"streak": float64(14)})
	require.NoError(t, err)
	assert.Equal(t, int64(140), r.Points)

	r, err = m.Resolve(StreakMilestone, map[string]any{"streak": 7})
	require.NoError(t, err)
	assert.Equal(t, int64(70), r.Points)

	r, err = m.Resolve(StreakMilestone, map[string]any{"value": "21"})
	require.NoError(t, err)
	assert.Equal(t, int64(210), r.Points)

	r, err = m.Resolve(StreakMilestone, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10), r.Points, "a bare milestone counts one day")
}

func TestResolve_StreakOutOfRange(t *testing.T) {
	m, err := NewMapper(nil)
	require.NoError(t, err)

	for _, v := range []any{float64(0), -7, float64(1e11), float64(5e17), float64(1e300), 2.5, "lots", true} {
		_, err := m.Resolve(StreakMilestone, map[string]any{"streak": v})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, "streak=%v", v)
	}

	r, err := m.Resolve(StreakMilestone, map[string]any{"streak": domain.MaxStreakDays})
	require.NoError(t, err)
	assert.Equal(t, domain.MaxStreakDays*10, r.Points)
}

func TestResolve_Unknown(t *testing.T) {
	m, err := NewMapper(nil)
	require.NoError(t, err)
	_, err = m.Resolve("juggling", nil)
	assert.ErrorIs(t, err, domain.ErrUnknownActivity)
}

func TestNewMapper_Overrides(t *testing.T) {
	m, err := NewMapper(map[string]Spec{
		ClubJoin:    {Points: 75},
		"hackathon": {Points: 400, Category: domain.CategoryLeadership},
	})
	require.NoError(t, err)

	r, err := m.Resolve(ClubJoin, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(75), r.Points)
	assert.Equal(t, domain.CategorySocial, r.Category, "category falls back to default")
	assert.Equal(t, domain.CounterClubsJoined, r.Counter)

	r, err = m.Resolve("hackathon", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(400), r.Points)

	_, err = NewMapper(map[string]Spec{"x": {Points: 1, Category: "cooking"}})
	assert.ErrorIs(t, err, domain.ErrUnknownCategory)
	_, err = NewMapper(map[string]Spec{"x": {Points: -1}})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = NewMapper(map[string]Spec{"x": {Points: domain.MaxAmount + 1}})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = NewMapper(map[string]Spec{StreakMilestone: {PerStreakDay: 1000}})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}
