package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/campusclub/gamify/internal/domain"
)

// ─── Ranking Snapshots ──────────────────────────────────────────────────────

// RankingRow is the per-account input to a ranking pass.
type RankingRow struct {
	AccountID        string
	Scope            string
	TotalPoints      int64
	Level            int
	ExperiencePoints int64
	CurrentStreak    int
	LongestStreak    int
	BadgeCount       int64
	CreatedAtNanos   int64
}

// RankingRows reads a consistent snapshot of ranking inputs in one query.
// group "" selects every account.
func (s store) RankingRows(ctx context.Context, group string) ([]RankingRow, error) {
	query := `SELECT a.id, a.scope, a.total_points, a.level, a.experience_points,
			a.current_streak, a.longest_streak,
			(SELECT COUNT(*) FROM badge_grants g WHERE g.account_id = a.id),
			a.created_at
		FROM accounts a`
	var args []any
	if group != "" {
		query += ` WHERE a.scope = ?`
		args = append(args, group)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ranking rows: %w", err)
	}
	defer rows.Close()

	var out []RankingRow
	for rows.Next() {
		var r RankingRow
		if err := rows.Scan(&r.AccountID, &r.Scope, &r.TotalPoints, &r.Level, &r.ExperiencePoints,
			&r.CurrentStreak, &r.LongestStreak, &r.BadgeCount, &r.CreatedAtNanos); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetGlobalRank writes the account's global points rank.
func (s store) SetGlobalRank(ctx context.Context, accountID string, rank int) error {
	_, err := s.q.ExecContext(ctx, `UPDATE accounts SET global_rank = ? WHERE id = ?`, rank, accountID)
	return err
}

// SetScopedRank writes the account's rank within its own scope.
func (s store) SetScopedRank(ctx context.Context, accountID string, rank int) error {
	_, err := s.q.ExecContext(ctx, `UPDATE accounts SET scoped_rank = ? WHERE id = ?`, rank, accountID)
	return err
}

// PruneRanks clears ranks that no longer apply after a pass over the
// given groups: scoped_rank of accounts whose scope was not ranked, and
// account_ranks rows for any scope other than global and the account's
// current, ranked one.
func (s store) PruneRanks(ctx context.Context, groups []string) error {
	reset := `UPDATE accounts SET scoped_rank = 0 WHERE scoped_rank <> 0`
	drop := `DELETE FROM account_ranks WHERE scope <> ? AND (
		scope IS NOT (SELECT ? || a.scope FROM accounts a WHERE a.id = account_ranks.account_id)`
	resetArgs := []any{}
	dropArgs := []any{string(domain.ScopeGlobal), string(domain.GroupScope(""))}
	if len(groups) > 0 {
		in := strings.TrimSuffix(strings.Repeat("?,", len(groups)), ",")
		reset += ` AND scope NOT IN (` + in + `)`
		drop += ` OR scope NOT IN (` + in + `)`
		for _, g := range groups {
			resetArgs = append(resetArgs, g)
			dropArgs = append(dropArgs, string(domain.GroupScope(g)))
		}
	} else {
		drop += ` OR 1`
	}
	drop += `)`

	if _, err := s.q.ExecContext(ctx, reset, resetArgs...); err != nil {
		return fmt.Errorf("reset scoped ranks: %w", err)
	}
	if _, err := s.q.ExecContext(ctx, drop, dropArgs...); err != nil {
		return fmt.Errorf("prune ranks: %w", err)
	}
	return nil
}

// UpsertRank records an account's rank for one (scope, metric).
func (s store) UpsertRank(ctx context.Context, r domain.RankRecord) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO account_ranks (account_id, scope, metric, rank, value, ranked_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(account_id, scope, metric) DO UPDATE SET
			rank = excluded.rank, value = excluded.value, ranked_at = excluded.ranked_at`,
		r.AccountID, string(r.Scope), string(r.Metric), r.Rank, r.Value, toNanos(r.RankedAt))
	if err != nil {
		return fmt.Errorf("upsert rank: %w", err)
	}
	return nil
}

// ListRanks returns every persisted rank for an account.
func (s store) ListRanks(ctx context.Context, accountID string) ([]domain.RankRecord, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT account_id, scope, metric, rank, value, ranked_at
		 FROM account_ranks WHERE account_id = ? ORDER BY scope, metric`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list ranks: %w", err)
	}
	defer rows.Close()

	var out []domain.RankRecord
	for rows.Next() {
		var r domain.RankRecord
		var scope, metric string
		var at int64
		if err := rows.Scan(&r.AccountID, &scope, &metric, &r.Rank, &r.Value, &at); err != nil {
			return nil, err
		}
		r.Scope = domain.Scope(scope)
		r.Metric = domain.Metric(metric)
		r.RankedAt = fromNanos(at)
		out = append(out, r)
	}
	return out, rows.Err()
}
