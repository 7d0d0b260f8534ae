package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/campusclub/gamify/internal/domain"
)

// ─── Accounts ───────────────────────────────────────────────────────────────

const accountColumns = `id, scope, total_points, lifetime_points,
	activity_points, social_points, leadership_points, academic_points, special_points,
	level, experience_points, points_to_next_level,
	current_streak, longest_streak, last_activity_date,
	global_rank, scoped_rank, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (domain.PointsAccount, error) {
	var a domain.PointsAccount
	var created, updated int64
	err := row.Scan(&a.ID, &a.Scope, &a.TotalPoints, &a.LifetimePoints,
		&a.ActivityPoints, &a.SocialPoints, &a.LeadershipPoints, &a.AcademicPoints, &a.SpecialPoints,
		&a.Level, &a.ExperiencePoints, &a.PointsToNextLevel,
		&a.CurrentStreak, &a.LongestStreak, &a.LastActivityDate,
		&a.GlobalRank, &a.ScopedRank, &created, &updated)
	if err != nil {
		return a, err
	}
	a.CreatedAt = fromNanos(created)
	a.UpdatedAt = fromNanos(updated)
	return a, nil
}

// GetAccount loads one account. Returns domain.ErrAccountNotFound if absent.
func (s store) GetAccount(ctx context.Context, id string) (domain.PointsAccount, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return a, domain.ErrAccountNotFound
	}
	if err != nil {
		return a, fmt.Errorf("get account %s: %w", id, err)
	}
	return a, nil
}

// InsertAccount creates a new account row.
func (s store) InsertAccount(ctx context.Context, a domain.PointsAccount) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Scope, a.TotalPoints, a.LifetimePoints,
		a.ActivityPoints, a.SocialPoints, a.LeadershipPoints, a.AcademicPoints, a.SpecialPoints,
		a.Level, a.ExperiencePoints, a.PointsToNextLevel,
		a.CurrentStreak, a.LongestStreak, a.LastActivityDate,
		a.GlobalRank, a.ScopedRank, toNanos(a.CreatedAt), toNanos(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert account %s: %w", a.ID, err)
	}
	return nil
}

// UpdateAccount writes the ledger-owned columns. Rank columns belong to the
// ranker and are never written here.
func (s store) UpdateAccount(ctx context.Context, a domain.PointsAccount) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE accounts SET scope = ?, total_points = ?, lifetime_points = ?,
			activity_points = ?, social_points = ?, leadership_points = ?, academic_points = ?, special_points = ?,
			level = ?, experience_points = ?, points_to_next_level = ?,
			current_streak = ?, longest_streak = ?, last_activity_date = ?, updated_at = ?
		 WHERE id = ?`,
		a.Scope, a.TotalPoints, a.LifetimePoints,
		a.ActivityPoints, a.SocialPoints, a.LeadershipPoints, a.AcademicPoints, a.SpecialPoints,
		a.Level, a.ExperiencePoints, a.PointsToNextLevel,
		a.CurrentStreak, a.LongestStreak, a.LastActivityDate, toNanos(a.UpdatedAt),
		a.ID)
	if err != nil {
		return fmt.Errorf("update account %s: %w", a.ID, err)
	}
	return nil
}

// ListAccounts returns accounts ordered by creation, optionally filtered by
// scope ("" = all).
func (s store) ListAccounts(ctx context.Context, scope string, limit int) ([]domain.PointsAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	var args []any
	if scope != "" {
		query += ` WHERE scope = ?`
		args = append(args, scope)
	}
	query += ` ORDER BY created_at, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []domain.PointsAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListScopes returns every distinct non-empty account scope.
func (s store) ListScopes(ctx context.Context) ([]string, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT DISTINCT scope FROM accounts WHERE scope != '' ORDER BY scope`)
	if err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sc string
		if err := rows.Scan(&sc); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// ─── Transactions ───────────────────────────────────────────────────────────

// InsertTransaction appends one ledger row and returns its id.
func (s store) InsertTransaction(ctx context.Context, t domain.Transaction) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO transactions
			(account_id, amount, type, category, description, related_type, related_id, balance_after, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.AccountID, t.Amount, string(t.Type), string(t.Category), t.Description,
		t.Related.Type, t.Related.ID, t.BalanceAfter, toNanos(t.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return res.LastInsertId()
}

// ListTransactions returns an account's transactions, newest first.
// Optional types filter; limit <= 0 returns all.
func (s store) ListTransactions(ctx context.Context, accountID string, types []domain.TxType, limit int) ([]domain.Transaction, error) {
	query := `SELECT id, account_id, amount, type, category, description, related_type, related_id, balance_after, created_at
		FROM transactions WHERE account_id = ?`
	args := []any{accountID}
	if len(types) > 0 {
		query += ` AND type IN (?` + strings.Repeat(", ?", len(types)-1) + `)`
		for _, t := range types {
			args = append(args, string(t))
		}
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var typ, cat string
		var created int64
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Amount, &typ, &cat, &t.Description,
			&t.Related.Type, &t.Related.ID, &t.BalanceAfter, &created); err != nil {
			return nil, err
		}
		t.Type = domain.TxType(typ)
		t.Category = domain.Category(cat)
		t.CreatedAt = fromNanos(created)
		out = append(out, t)
	}
	return out, rows.Err()
}

// TransactionSum returns SUM(amount) for an account.
func (s store) TransactionSum(ctx context.Context, accountID string) (int64, error) {
	var sum int64
	err := s.q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE account_id = ?`, accountID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum transactions: %w", err)
	}
	return sum, nil
}

// CountTransactionsSince counts an account's transactions at or after since
// (Unix nanoseconds).
func (s store) CountTransactionsSince(ctx context.Context, accountID string, sinceNanos int64) (int64, error) {
	var n int64
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE account_id = ? AND created_at >= ?`,
		accountID, sinceNanos).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// LedgerMismatches counts accounts whose total_points differs from the sum
// of their transactions.
func (s store) LedgerMismatches(ctx context.Context) (int64, error) {
	var n int64
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accounts a
		 WHERE a.total_points != (SELECT COALESCE(SUM(t.amount), 0) FROM transactions t WHERE t.account_id = a.id)`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ledger mismatches: %w", err)
	}
	return n, nil
}

// ─── Activity Counters ──────────────────────────────────────────────────────

// IncrementCounter adds delta to a per-account counter and returns the new
// value.
func (s store) IncrementCounter(ctx context.Context, accountID, counter string, delta int64) (int64, error) {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO activity_counts (account_id, counter, value) VALUES (?, ?, ?)
		 ON CONFLICT(account_id, counter) DO UPDATE SET value = value + excluded.value`,
		accountID, counter, delta)
	if err != nil {
		return 0, fmt.Errorf("increment counter %s: %w", counter, err)
	}
	var v int64
	err = s.q.QueryRowContext(ctx,
		`SELECT value FROM activity_counts WHERE account_id = ? AND counter = ?`,
		accountID, counter).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("read counter %s: %w", counter, err)
	}
	return v, nil
}

// Counters returns every counter recorded for an account.
func (s store) Counters(ctx context.Context, accountID string) (map[string]int64, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT counter, value FROM activity_counts WHERE account_id = ?`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list counters: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var k string
		var v int64
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}
