package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/campusclub/gamify/internal/domain"
)

// ─── Achievement Catalog ────────────────────────────────────────────────────

const achievementColumns = `id, name, description, type, difficulty, requirements,
	points_reward, badge_id, starts_at, ends_at, active, featured,
	total_participants, total_completed, created_at`

func scanAchievement(row rowScanner) (domain.Achievement, error) {
	var a domain.Achievement
	var typ, diff, reqs string
	var starts, ends, created int64
	if err := row.Scan(&a.ID, &a.Name, &a.Description, &typ, &diff, &reqs,
		&a.PointsReward, &a.BadgeID, &starts, &ends, &a.Active, &a.Featured,
		&a.TotalParticipants, &a.TotalCompleted, &created); err != nil {
		return a, err
	}
	a.Type = domain.AchievementType(typ)
	a.Difficulty = domain.Difficulty(diff)
	a.StartsAt = fromNanos(starts)
	a.EndsAt = fromNanos(ends)
	a.CreatedAt = fromNanos(created)
	if err := json.Unmarshal([]byte(reqs), &a.Requirements); err != nil {
		return a, fmt.Errorf("decode requirements for achievement %s: %w", a.ID, err)
	}
	return a, nil
}

// UpsertAchievement inserts or updates a catalog definition. The
// participant and completion counters survive updates.
func (s store) UpsertAchievement(ctx context.Context, a domain.Achievement) error {
	reqs, err := json.Marshal(a.Requirements)
	if err != nil {
		return fmt.Errorf("encode requirements: %w", err)
	}
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO achievements (`+achievementColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, description = excluded.description,
			type = excluded.type, difficulty = excluded.difficulty,
			requirements = excluded.requirements, points_reward = excluded.points_reward,
			badge_id = excluded.badge_id, starts_at = excluded.starts_at, ends_at = excluded.ends_at,
			active = excluded.active, featured = excluded.featured`,
		a.ID, a.Name, a.Description, string(a.Type), string(a.Difficulty), string(reqs),
		a.PointsReward, a.BadgeID, toNanos(a.StartsAt), toNanos(a.EndsAt),
		boolInt(a.Active), boolInt(a.Featured), toNanos(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("upsert achievement %s: %w", a.ID, err)
	}
	return nil
}

// GetAchievement loads one achievement. Returns
// domain.ErrAchievementNotFound if absent.
func (s store) GetAchievement(ctx context.Context, id string) (domain.Achievement, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+achievementColumns+` FROM achievements WHERE id = ?`, id)
	a, err := scanAchievement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return a, domain.ErrAchievementNotFound
	}
	return a, err
}

// ListAchievements returns the catalog ordered by id.
func (s store) ListAchievements(ctx context.Context, activeOnly bool) ([]domain.Achievement, error) {
	query := `SELECT ` + achievementColumns + ` FROM achievements`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	defer rows.Close()

	var out []domain.Achievement
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// IncrementAchievementParticipants bumps total_participants.
func (s store) IncrementAchievementParticipants(ctx context.Context, id string) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE achievements SET total_participants = total_participants + 1 WHERE id = ?`, id)
	return err
}

// IncrementAchievementCompleted bumps total_completed.
func (s store) IncrementAchievementCompleted(ctx context.Context, id string) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE achievements SET total_completed = total_completed + 1 WHERE id = ?`, id)
	return err
}

// ─── Achievement Progress ───────────────────────────────────────────────────

const progressColumns = `account_id, achievement_id, status, progress, percentage, started_at, completed_at`

func scanProgress(row rowScanner) (domain.AchievementProgress, error) {
	var p domain.AchievementProgress
	var status, progress string
	var started, completed int64
	if err := row.Scan(&p.AccountID, &p.AchievementID, &status, &progress,
		&p.Percentage, &started, &completed); err != nil {
		return p, err
	}
	p.Status = domain.ProgressStatus(status)
	p.StartedAt = fromNanos(started)
	p.CompletedAt = fromNanos(completed)
	p.Progress = make(map[string]int64)
	if err := json.Unmarshal([]byte(progress), &p.Progress); err != nil {
		return p, fmt.Errorf("decode progress: %w", err)
	}
	return p, nil
}

// GetProgress loads one progress row; found is false when absent.
func (s store) GetProgress(ctx context.Context, accountID, achievementID string) (p domain.AchievementProgress, found bool, err error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM achievement_progress WHERE account_id = ? AND achievement_id = ?`,
		accountID, achievementID)
	p, err = scanProgress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return p, false, nil
	}
	if err != nil {
		return p, false, err
	}
	return p, true, nil
}

// InsertProgress enrolls an account. Returns false if already enrolled.
func (s store) InsertProgress(ctx context.Context, p domain.AchievementProgress) (bool, error) {
	progress, err := json.Marshal(p.Progress)
	if err != nil {
		return false, err
	}
	res, err := s.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO achievement_progress (`+progressColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.AccountID, p.AchievementID, string(p.Status), string(progress),
		p.Percentage, toNanos(p.StartedAt), toNanos(p.CompletedAt))
	if err != nil {
		return false, fmt.Errorf("insert progress: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpdateProgress stores counters and percentage for an in-progress row.
// Terminal rows are never touched.
func (s store) UpdateProgress(ctx context.Context, p domain.AchievementProgress) error {
	progress, err := json.Marshal(p.Progress)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx,
		`UPDATE achievement_progress SET progress = ?, percentage = ?
		 WHERE account_id = ? AND achievement_id = ? AND status = ?`,
		string(progress), p.Percentage, p.AccountID, p.AchievementID, string(domain.StatusInProgress))
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// TransitionProgress moves an in-progress row to a terminal status.
// Returns false if the row was not in progress, which makes completion
// fire at most once. completed_at is only stamped on completion.
func (s store) TransitionProgress(ctx context.Context, p domain.AchievementProgress, to domain.ProgressStatus, at time.Time) (bool, error) {
	progress, err := json.Marshal(p.Progress)
	if err != nil {
		return false, err
	}
	var completed int64
	if to == domain.StatusCompleted {
		completed = toNanos(at)
	}
	res, err := s.q.ExecContext(ctx,
		`UPDATE achievement_progress SET status = ?, progress = ?, percentage = ?, completed_at = ?
		 WHERE account_id = ? AND achievement_id = ? AND status = ?`,
		string(to), string(progress), p.Percentage, completed,
		p.AccountID, p.AchievementID, string(domain.StatusInProgress))
	if err != nil {
		return false, fmt.Errorf("transition progress: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListProgress returns every progress row for an account.
func (s store) ListProgress(ctx context.Context, accountID string) ([]domain.AchievementProgress, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+progressColumns+` FROM achievement_progress WHERE account_id = ? ORDER BY started_at, achievement_id`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	var out []domain.AchievementProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ExpireElapsedProgress marks in-progress rows expired where the
// achievement window closed at or before now. Returns rows affected.
func (s store) ExpireElapsedProgress(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE achievement_progress SET status = ?
		 WHERE status = ? AND achievement_id IN (
			SELECT id FROM achievements WHERE ends_at > 0 AND ends_at <= ?)`,
		string(domain.StatusExpired), string(domain.StatusInProgress), toNanos(now))
	if err != nil {
		return 0, fmt.Errorf("expire progress: %w", err)
	}
	return res.RowsAffected()
}
