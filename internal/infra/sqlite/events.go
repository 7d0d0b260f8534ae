package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/campusclub/gamify/internal/domain"
)

// ─── Event Outbox ───────────────────────────────────────────────────────────
// Events are written in the same transaction as the state change that
// produced them and delivered later by the dispatcher.

// InsertEvent appends an event to the outbox.
func (s store) InsertEvent(ctx context.Context, e domain.Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO events (id, type, account_id, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, string(e.Type), e.AccountID, string(payload), toNanos(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// PendingEvents returns undelivered events with fewer than maxAttempts
// failures, oldest first.
func (s store) PendingEvents(ctx context.Context, limit, maxAttempts int) ([]domain.Event, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, type, account_id, payload, created_at, attempts FROM events
		 WHERE delivered_at = 0 AND attempts < ?
		 ORDER BY created_at, id LIMIT ?`, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("pending events: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		var typ, payload string
		var created int64
		if err := rows.Scan(&e.ID, &typ, &e.AccountID, &payload, &created, &e.Attempts); err != nil {
			return nil, err
		}
		e.Type = domain.EventType(typ)
		e.CreatedAt = fromNanos(created)
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, fmt.Errorf("decode payload for event %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkEventDelivered stamps an event as delivered.
func (s store) MarkEventDelivered(ctx context.Context, id string, at time.Time) error {
	_, err := s.q.ExecContext(ctx, `UPDATE events SET delivered_at = ? WHERE id = ?`, toNanos(at), id)
	return err
}

// MarkEventFailed records a failed delivery round.
func (s store) MarkEventFailed(ctx context.Context, id string, cause error) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE events SET attempts = attempts + 1, last_error = ? WHERE id = ?`, cause.Error(), id)
	return err
}

// PendingEventCount returns the outbox backlog.
func (s store) PendingEventCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE delivered_at = 0`).Scan(&n)
	return n, err
}

// ListEvents returns an account's events, newest first.
func (s store) ListEvents(ctx context.Context, accountID string, limit int) ([]domain.Event, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, type, account_id, payload, created_at, attempts FROM events
		 WHERE account_id = ? ORDER BY created_at DESC, id LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		var typ, payload string
		var created int64
		if err := rows.Scan(&e.ID, &typ, &e.AccountID, &payload, &created, &e.Attempts); err != nil {
			return nil, err
		}
		e.Type = domain.EventType(typ)
		e.CreatedAt = fromNanos(created)
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ─── Platform Stats ─────────────────────────────────────────────────────────

// Stats aggregates engine-wide totals.
func (s store) Stats(ctx context.Context) (domain.PlatformStats, error) {
	var st domain.PlatformStats
	err := s.q.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM accounts),
		(SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE amount > 0),
		(SELECT COALESCE(-SUM(amount), 0) FROM transactions WHERE type = 'spent'),
		(SELECT COUNT(*) FROM badge_grants),
		(SELECT COUNT(*) FROM achievement_progress WHERE status = 'completed'),
		(SELECT COUNT(*) FROM events WHERE delivered_at = 0)`).Scan(
		&st.Accounts, &st.PointsAwarded, &st.PointsSpent,
		&st.BadgesGranted, &st.AchievementsCompleted, &st.PendingEvents)
	if err != nil {
		return st, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

// CountAccounts returns the number of accounts.
func (s store) CountAccounts(ctx context.Context) (int64, error) {
	var n int64
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n)
	return n, err
}
