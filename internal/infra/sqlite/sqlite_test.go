package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusclub/gamify/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedAccount(t *testing.T, db *DB, id string) domain.PointsAccount {
	t.Helper()
	a := domain.NewPointsAccount(id, time.Now())
	require.NoError(t, db.InsertAccount(context.Background(), a))
	return a
}

// ─── Database Lifecycle ─────────────────────────────────────────────────────

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	require.NoError(t, err)
	defer db.Close()

	if _, err := os.Stat(filepath.Join(dir, "gamify.db")); os.IsNotExist(err) {
		t.Error("gamify.db should exist")
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, db.InsertAccount(context.Background(), domain.NewPointsAccount("u1", time.Now())))
	require.NoError(t, db.Close())

	// Migrations are idempotent and data survives.
	db, err = Open(dir)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.GetAccount(context.Background(), "u1")
	require.NoError(t, err)
}

func TestOpen_Ping(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Ping())
}

// ─── Accounts ───────────────────────────────────────────────────────────────

func TestAccount_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := domain.NewPointsAccount("u1", time.Now())
	a.Scope = "mit.edu"
	a.TotalPoints = 120
	a.SocialPoints = 50
	a.LastActivityDate = "2025-07-01"
	require.NoError(t, db.InsertAccount(ctx, a))

	got, err := db.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "mit.edu", got.Scope)
	assert.Equal(t, int64(120), got.TotalPoints)
	assert.Equal(t, int64(50), got.SocialPoints)
	assert.Equal(t, "2025-07-01", got.LastActivityDate)
	assert.Equal(t, a.CreatedAt.UnixNano(), got.CreatedAt.UnixNano())
}

func TestGetAccount_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetAccount(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestUpdateAccount_PreservesRanks(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := seedAccount(t, db, "u1")

	require.NoError(t, db.SetGlobalRank(ctx, "u1", 3))
	a.TotalPoints = 10
	require.NoError(t, db.UpdateAccount(ctx, a))

	got, err := db.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.TotalPoints)
	assert.Equal(t, 3, got.GlobalRank)
}

func TestListScopes(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for id, scope := range map[string]string{"a": "x.edu", "b": "y.edu", "c": "x.edu", "d": ""} {
		acct := domain.NewPointsAccount(id, time.Now())
		acct.Scope = scope
		require.NoError(t, db.InsertAccount(ctx, acct))
	}
	scopes, err := db.ListScopes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"x.edu", "y.edu"}, scopes)
}

// ─── Transactions ───────────────────────────────────────────────────────────

func TestTransactions_FilterAndSum(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedAccount(t, db, "u1")

	rows := []domain.Transaction{
		{AccountID: "u1", Amount: 50, Type: domain.TxEarned, Category: domain.CategorySocial, BalanceAfter: 50},
		{AccountID: "u1", Amount: 50, Type: domain.TxLevelBonus, BalanceAfter: 100},
		{AccountID: "u1", Amount: -30, Type: domain.TxSpent, BalanceAfter: 70},
	}
	for _, r := range rows {
		r.CreatedAt = time.Now()
		_, err := db.InsertTransaction(ctx, r)
		require.NoError(t, err)
	}

	all, err := db.ListTransactions(ctx, "u1", nil, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, domain.TxSpent, all[0].Type, "newest first")

	spent, err := db.ListTransactions(ctx, "u1", []domain.TxType{domain.TxSpent, domain.TxPenalty}, 10)
	require.NoError(t, err)
	require.Len(t, spent, 1)
	assert.Equal(t, int64(-30), spent[0].Amount)

	sum, err := db.TransactionSum(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(70), sum)
}

func TestLedgerMismatches(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := seedAccount(t, db, "u1")

	n, err := db.LedgerMismatches(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	a.TotalPoints = 99
	require.NoError(t, db.UpdateAccount(ctx, a))
	n, err = db.LedgerMismatches(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

// ─── Counters ───────────────────────────────────────────────────────────────

func TestIncrementCounter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedAccount(t, db, "u1")

	v, err := db.IncrementCounter(ctx, "u1", domain.CounterClubsJoined, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	v, err = db.IncrementCounter(ctx, "u1", domain.CounterClubsJoined, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	counters, err := db.Counters(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{domain.CounterClubsJoined: 3}, counters)
}

// ─── Badges ─────────────────────────────────────────────────────────────────

func TestBadge_UpsertPreservesTotalEarned(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	b := domain.Badge{
		ID: "first_steps", Name: "First Steps", Type: domain.BadgeMilestone,
		Difficulty:  domain.DifficultyBronze,
		Requirement: domain.All(domain.Threshold("total_points", domain.OpGTE, 10), domain.Custom("club_enthusiast")),
		Active:      true, PointsReward: 10,
	}
	require.NoError(t, db.UpsertBadge(ctx, b))
	require.NoError(t, db.IncrementBadgeEarned(ctx, "first_steps"))

	b.PointsReward = 20
	require.NoError(t, db.UpsertBadge(ctx, b))

	got, err := db.GetBadge(ctx, "first_steps")
	require.NoError(t, err)
	assert.Equal(t, int64(20), got.PointsReward)
	assert.Equal(t, int64(1), got.TotalEarned)
	assert.Equal(t, b.Requirement, got.Requirement)

	_, err = db.GetBadge(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrBadgeNotFound)
}

func TestBadgeGrant_UniqueKey(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedAccount(t, db, "u1")
	require.NoError(t, db.UpsertBadge(ctx, domain.Badge{ID: "b", Name: "B", Type: domain.BadgeSpecial,
		Difficulty: domain.DifficultyBronze, Requirement: domain.Threshold("level", domain.OpGTE, 1), Active: true}))

	g := domain.BadgeGrant{AccountID: "u1", BadgeID: "b", EarnedAt: time.Now()}
	ok, err := db.InsertBadgeGrant(ctx, g)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.InsertBadgeGrant(ctx, g)
	require.NoError(t, err)
	assert.False(t, ok, "duplicate grant should be ignored")

	g.Seq = 1
	ok, err = db.InsertBadgeGrant(ctx, g)
	require.NoError(t, err)
	assert.True(t, ok)

	counts, err := db.BadgeGrantCounts(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, counts["b"])
}

// ─── Achievements ───────────────────────────────────────────────────────────

func TestProgress_TransitionOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedAccount(t, db, "u1")
	require.NoError(t, db.UpsertAchievement(ctx, domain.Achievement{
		ID: "a1", Name: "A1", Type: domain.AchievementMilestone, Active: true,
		Requirements: []domain.Requirement{{Counter: "clubs_joined", Target: 1}},
	}))

	p := domain.AchievementProgress{AccountID: "u1", AchievementID: "a1", Status: domain.StatusInProgress,
		Progress: map[string]int64{}, StartedAt: time.Now()}
	ok, err := db.InsertProgress(ctx, p)
	require.NoError(t, err)
	assert.True(t, ok)

	p.Progress["clubs_joined"] = 1
	p.Percentage = 100
	ok, err = db.TransitionProgress(ctx, p, domain.StatusCompleted, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.TransitionProgress(ctx, p, domain.StatusCompleted, time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "completion must fire once")

	got, found, err := db.GetProgress(ctx, "u1", "a1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, int64(1), got.Progress["clubs_joined"])
	assert.False(t, got.CompletedAt.IsZero())
}

func TestProgress_FailedRowHasNoCompletedAt(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedAccount(t, db, "u1")
	require.NoError(t, db.UpsertAchievement(ctx, domain.Achievement{
		ID: "a1", Name: "A1", Type: domain.AchievementChallenge, Active: true,
		Requirements: []domain.Requirement{{Counter: "clubs_joined", Target: 3}},
	}))

	p := domain.AchievementProgress{AccountID: "u1", AchievementID: "a1", Status: domain.StatusInProgress,
		Progress: map[string]int64{}, StartedAt: time.Now()}
	_, err := db.InsertProgress(ctx, p)
	require.NoError(t, err)

	ok, err := db.TransitionProgress(ctx, p, domain.StatusFailed, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	got, _, err := db.GetProgress(ctx, "u1", "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.True(t, got.CompletedAt.IsZero())
}

func TestExpireElapsedProgress(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedAccount(t, db, "u1")

	now := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.UpsertAchievement(ctx, domain.Achievement{
		ID: "seasonal", Name: "S", Type: domain.AchievementSeasonal, Active: true,
		EndsAt:       now.Add(-time.Hour),
		Requirements: []domain.Requirement{{Counter: "events_attended", Target: 5}},
	}))
	require.NoError(t, db.UpsertAchievement(ctx, domain.Achievement{
		ID: "open", Name: "O", Type: domain.AchievementMilestone, Active: true,
		Requirements: []domain.Requirement{{Counter: "events_attended", Target: 5}},
	}))
	for _, id := range []string{"seasonal", "open"} {
		_, err := db.InsertProgress(ctx, domain.AchievementProgress{AccountID: "u1", AchievementID: id,
			Status: domain.StatusInProgress, Progress: map[string]int64{}, StartedAt: now.Add(-48 * time.Hour)})
		require.NoError(t, err)
	}

	n, err := db.ExpireElapsedProgress(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	p, _, err := db.GetProgress(ctx, "u1", "seasonal")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, p.Status)
	assert.True(t, p.CompletedAt.IsZero())
	p, _, err = db.GetProgress(ctx, "u1", "open")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, p.Status)
}

// ─── Transactions & Outbox ──────────────────────────────────────────────────

func TestWithTx_RollbackOnError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(tx *Tx) error {
		if err := tx.InsertAccount(ctx, domain.NewPointsAccount("u1", time.Now())); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = db.GetAccount(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestEvents_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	e := domain.Event{ID: "e1", Type: domain.EventLevelUp, AccountID: "u1",
		Payload: map[string]any{"level": 2}, CreatedAt: time.Now()}
	require.NoError(t, db.InsertEvent(ctx, e))

	pending, err := db.PendingEvents(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, float64(2), pending[0].Payload["level"])

	for i := 0; i < 3; i++ {
		require.NoError(t, db.MarkEventFailed(ctx, "e1", errors.New("down")))
	}
	pending, err = db.PendingEvents(ctx, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, pending, "exhausted events are parked")

	n, err := db.PendingEventCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, db.MarkEventDelivered(ctx, "e1", time.Now()))
	n, err = db.PendingEventCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// ─── Ranking Rows ───────────────────────────────────────────────────────────

func TestRankingRows_BadgeCounts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := domain.NewPointsAccount("u1", time.Now())
	a.Scope = "x.edu"
	require.NoError(t, db.InsertAccount(ctx, a))
	seedAccount(t, db, "u2")
	require.NoError(t, db.UpsertBadge(ctx, domain.Badge{ID: "b", Name: "B", Type: domain.BadgeSpecial,
		Difficulty: domain.DifficultyBronze, Requirement: domain.Threshold("level", domain.OpGTE, 1), Active: true}))
	_, err := db.InsertBadgeGrant(ctx, domain.BadgeGrant{AccountID: "u1", BadgeID: "b", EarnedAt: time.Now()})
	require.NoError(t, err)

	all, err := db.RankingRows(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := db.RankingRows(ctx, "x.edu")
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, int64(1), scoped[0].BadgeCount)

	require.NoError(t, db.UpsertRank(ctx, domain.RankRecord{AccountID: "u1", Scope: domain.ScopeGlobal,
		Metric: domain.MetricBadgeCount, Rank: 1, Value: 1, RankedAt: time.Now()}))
	ranks, err := db.ListRanks(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, ranks, 1)
	assert.Equal(t, 1, ranks[0].Rank)
}
