package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/campusclub/gamify/internal/domain"
)

// ─── Badge Catalog ──────────────────────────────────────────────────────────

const badgeColumns = `id, name, description, type, difficulty, requirement,
	points_reward, repeatable, active, hidden, total_earned, created_at`

func scanBadge(row rowScanner) (domain.Badge, error) {
	var b domain.Badge
	var typ, diff, req string
	var created int64
	if err := row.Scan(&b.ID, &b.Name, &b.Description, &typ, &diff, &req,
		&b.PointsReward, &b.Repeatable, &b.Active, &b.Hidden, &b.TotalEarned, &created); err != nil {
		return b, err
	}
	b.Type = domain.BadgeType(typ)
	b.Difficulty = domain.Difficulty(diff)
	b.CreatedAt = fromNanos(created)
	if err := json.Unmarshal([]byte(req), &b.Requirement); err != nil {
		return b, fmt.Errorf("decode requirement for badge %s: %w", b.ID, err)
	}
	return b, nil
}

// UpsertBadge inserts or updates a catalog definition. total_earned and
// created_at survive updates.
func (s store) UpsertBadge(ctx context.Context, b domain.Badge) error {
	req, err := json.Marshal(b.Requirement)
	if err != nil {
		return fmt.Errorf("encode requirement: %w", err)
	}
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO badges (`+badgeColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, description = excluded.description,
			type = excluded.type, difficulty = excluded.difficulty,
			requirement = excluded.requirement, points_reward = excluded.points_reward,
			repeatable = excluded.repeatable, active = excluded.active, hidden = excluded.hidden`,
		b.ID, b.Name, b.Description, string(b.Type), string(b.Difficulty), string(req),
		b.PointsReward, boolInt(b.Repeatable), boolInt(b.Active), boolInt(b.Hidden), toNanos(b.CreatedAt))
	if err != nil {
		return fmt.Errorf("upsert badge %s: %w", b.ID, err)
	}
	return nil
}

// GetBadge loads one badge. Returns domain.ErrBadgeNotFound if absent.
func (s store) GetBadge(ctx context.Context, id string) (domain.Badge, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+badgeColumns+` FROM badges WHERE id = ?`, id)
	b, err := scanBadge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return b, domain.ErrBadgeNotFound
	}
	return b, err
}

// ListBadges returns the catalog ordered by id.
func (s store) ListBadges(ctx context.Context, activeOnly bool) ([]domain.Badge, error) {
	query := `SELECT ` + badgeColumns + ` FROM badges`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	defer rows.Close()

	var out []domain.Badge
	for rows.Next() {
		b, err := scanBadge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// IncrementBadgeEarned bumps the catalog's total_earned counter.
func (s store) IncrementBadgeEarned(ctx context.Context, badgeID string) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE badges SET total_earned = total_earned + 1 WHERE id = ?`, badgeID)
	if err != nil {
		return fmt.Errorf("increment badge %s: %w", badgeID, err)
	}
	return nil
}

// ─── Badge Grants ───────────────────────────────────────────────────────────

// InsertBadgeGrant records a grant. Returns false when the unique
// (account, badge, seq) key already exists.
func (s store) InsertBadgeGrant(ctx context.Context, g domain.BadgeGrant) (bool, error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO badge_grants (account_id, badge_id, seq, reason, earned_at)
		 VALUES (?, ?, ?, ?, ?)`,
		g.AccountID, g.BadgeID, g.Seq, g.Reason, toNanos(g.EarnedAt))
	if err != nil {
		return false, fmt.Errorf("insert badge grant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// BadgeGrantCounts returns how many times each badge was granted to an
// account.
func (s store) BadgeGrantCounts(ctx context.Context, accountID string) (map[string]int, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT badge_id, COUNT(*) FROM badge_grants WHERE account_id = ? GROUP BY badge_id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("count badge grants: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

// ListBadgeGrants returns an account's grants, newest first.
func (s store) ListBadgeGrants(ctx context.Context, accountID string) ([]domain.BadgeGrant, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT account_id, badge_id, seq, reason, earned_at
		 FROM badge_grants WHERE account_id = ? ORDER BY id DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list badge grants: %w", err)
	}
	defer rows.Close()

	var out []domain.BadgeGrant
	for rows.Next() {
		var g domain.BadgeGrant
		var earned int64
		if err := rows.Scan(&g.AccountID, &g.BadgeID, &g.Seq, &g.Reason, &earned); err != nil {
			return nil, err
		}
		g.EarnedAt = fromNanos(earned)
		out = append(out, g)
	}
	return out, rows.Err()
}
