package badges_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusclub/gamify/internal/app/badges"
	"github.com/campusclub/gamify/internal/app/points"
	"github.com/campusclub/gamify/internal/domain"
	"github.com/campusclub/gamify/internal/infra/sqlite"
)

type fixture struct {
	db     *sqlite.DB
	ledger *points.Ledger
	eval   *badges.Evaluator
}

func newFixture(t *testing.T, maxPasses int, catalog ...domain.Badge) fixture {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	for _, b := range catalog {
		b.Active = true
		require.NoError(t, db.UpsertBadge(ctx, b))
	}
	return fixture{
		db:     db,
		ledger: points.NewLedger(db, zap.NewNop()),
		eval:   badges.NewEvaluator(nil, maxPasses, zap.NewNop()),
	}
}

func (f fixture) evaluate(t *testing.T, id string) []domain.BadgeGrant {
	t.Helper()
	ctx := context.Background()
	var grants []domain.BadgeGrant
	err := f.ledger.Update(ctx, id, func(u *points.Unit) error {
		var err error
		grants, err = f.eval.Evaluate(ctx, u)
		return err
	})
	require.NoError(t, err)
	return grants
}

func (f fixture) grant(t *testing.T, id string, n int64) {
	t.Helper()
	_, err := f.ledger.Grant(context.Background(), id, points.Entry{Amount: n, Category: domain.CategoryActivity})
	require.NoError(t, err)
}

func badgeIDs(gs []domain.BadgeGrant) []string {
	var ids []string
	for _, g := range gs {
		ids = append(ids, g.BadgeID)
	}
	return ids
}

var firstSteps = domain.Badge{
	ID:           "first_steps",
	Name:         "First Steps",
	Type:         domain.BadgeParticipation,
	Difficulty:   domain.DifficultyBronze,
	Requirement:  domain.Threshold("total_points", domain.OpGTE, 10),
	PointsReward: 25,
}

// ─── Evaluate ───────────────────────────────────────────────────────────────

func TestEvaluate_GrantsOnceWithReward(t *testing.T) {
	f := newFixture(t, 0, firstSteps)
	ctx := context.Background()
	f.grant(t, "u1", 20)

	assert.Equal(t, []string{"first_steps"}, badgeIDs(f.evaluate(t, "u1")))
	assert.Empty(t, f.evaluate(t, "u1"), "non-repeatable badge is granted once")

	a, err := f.ledger.Account(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(45), a.TotalPoints)
	assert.Equal(t, int64(25), a.SpecialPoints)

	rewards, err := f.ledger.History(ctx, "u1", []domain.TxType{domain.TxBadgeReward}, 0)
	require.NoError(t, err)
	require.Len(t, rewards, 1)
	assert.Equal(t, "first_steps", rewards[0].Related.ID)

	b, err := f.db.GetBadge(ctx, "first_steps")
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.TotalEarned)

	events, err := f.db.ListEvents(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventBadgeEarned, events[0].Type)
}

func TestEvaluate_UnmetRequirement(t *testing.T) {
	f := newFixture(t, 0, firstSteps)
	f.grant(t, "u1", 5)
	assert.Empty(t, f.evaluate(t, "u1"))
}

func TestEvaluate_ConcurrentGrantsOnce(t *testing.T) {
	collector := domain.Badge{
		ID:           "point_collector",
		Name:         "Point Collector",
		Type:         domain.BadgeMilestone,
		Difficulty:   domain.DifficultySilver,
		Requirement:  domain.Threshold("total_points", domain.OpGTE, 500),
		PointsReward: 50,
	}
	f := newFixture(t, 0, collector)
	ctx := context.Background()
	require.NoError(t, f.ledger.Update(ctx, "u1", func(u *points.Unit) error {
		// Deduct the level bonuses so the account sits at exactly 500.
		if _, err := u.Grant(ctx, points.Entry{Amount: 500, Category: domain.CategoryActivity}); err != nil {
			return err
		}
		_, err := u.Deduct(ctx, u.Account().TotalPoints-500, domain.TxAdjustment, "normalize")
		return err
	}))
	a, err := f.ledger.Account(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(500), a.TotalPoints)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.ledger.Update(ctx, "u1", func(u *points.Unit) error {
				_, err := f.eval.Evaluate(ctx, u)
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	grants, err := f.db.ListBadgeGrants(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, grants, 1)

	rewards, err := f.ledger.History(ctx, "u1", []domain.TxType{domain.TxBadgeReward}, 0)
	require.NoError(t, err)
	assert.Len(t, rewards, 1)
	require.NoError(t, f.ledger.Verify(ctx, "u1"))
}

func TestEvaluate_RewardCascade(t *testing.T) {
	catalog := []domain.Badge{
		{ID: "a_starter", Name: "Starter", Requirement: domain.Threshold("total_points", domain.OpGTE, 10), PointsReward: 50},
		{ID: "b_rising", Name: "Rising", Requirement: domain.Threshold("total_points", domain.OpGTE, 60)},
		{ID: "c_collector", Name: "Collector", Requirement: domain.Threshold("badge_count", domain.OpGTE, 2)},
	}

	t.Run("all passes", func(t *testing.T) {
		f := newFixture(t, 3, catalog...)
		f.grant(t, "u1", 20)
		assert.Equal(t, []string{"a_starter", "b_rising", "c_collector"}, badgeIDs(f.evaluate(t, "u1")))
	})

	t.Run("bounded", func(t *testing.T) {
		f := newFixture(t, 1, catalog...)
		f.grant(t, "u1", 20)
		assert.Equal(t, []string{"a_starter"}, badgeIDs(f.evaluate(t, "u1")))
		// The next call picks up where the cascade stopped.
		assert.Equal(t, []string{"b_rising"}, badgeIDs(f.evaluate(t, "u1")))
	})
}

func TestEvaluate_RepeatableOncePerCall(t *testing.T) {
	regular := domain.Badge{
		ID:          "regular",
		Name:        "Regular",
		Requirement: domain.Threshold("total_points", domain.OpGTE, 1),
		Repeatable:  true,
	}
	f := newFixture(t, 3, regular)
	f.grant(t, "u1", 5)

	first := f.evaluate(t, "u1")
	require.Len(t, first, 1)
	assert.Equal(t, 0, first[0].Seq)

	second := f.evaluate(t, "u1")
	require.Len(t, second, 1)
	assert.Equal(t, 1, second[0].Seq)
}

func TestEvaluate_RuleErrorIsolated(t *testing.T) {
	broken := domain.Badge{ID: "broken", Name: "Broken", Requirement: domain.Custom("no_such_predicate")}
	f := newFixture(t, 0, broken, firstSteps)
	f.grant(t, "u1", 20)

	assert.Equal(t, []string{"first_steps"}, badgeIDs(f.evaluate(t, "u1")))
}

func TestEvaluate_CustomPredicate(t *testing.T) {
	enthusiast := domain.Badge{ID: "club_enthusiast", Name: "Club Enthusiast", Requirement: domain.Custom("club_enthusiast")}
	f := newFixture(t, 0, enthusiast)
	ctx := context.Background()

	err := f.ledger.Update(ctx, "u1", func(u *points.Unit) error {
		_, err := u.IncrementCounter(ctx, domain.CounterClubsJoined, 2)
		return err
	})
	require.NoError(t, err)
	assert.Empty(t, f.evaluate(t, "u1"))

	err = f.ledger.Update(ctx, "u1", func(u *points.Unit) error {
		_, err := u.IncrementCounter(ctx, domain.CounterClubsJoined, 1)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"club_enthusiast"}, badgeIDs(f.evaluate(t, "u1")))
}

// ─── Award ──────────────────────────────────────────────────────────────────

func TestAward(t *testing.T) {
	f := newFixture(t, 0, firstSteps)
	ctx := context.Background()

	award := func(id string) (bool, error) {
		var inserted bool
		err := f.ledger.Update(ctx, "u1", func(u *points.Unit) error {
			var err error
			_, inserted, err = f.eval.Award(ctx, u, id, "hackathon winner", domain.TxBonus)
			return err
		})
		return inserted, err
	}

	inserted, err := award("first_steps")
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = award("first_steps")
	require.NoError(t, err)
	assert.False(t, inserted)

	_, err = award("nope")
	assert.ErrorIs(t, err, domain.ErrBadgeNotFound)

	bonus, err := f.ledger.History(ctx, "u1", []domain.TxType{domain.TxBonus}, 0)
	require.NoError(t, err)
	require.Len(t, bonus, 1)
	assert.Equal(t, int64(25), bonus[0].Amount)
}
