// Package achievements tracks per-account progress toward multi-requirement
// goals. Progress rows move in_progress → {completed, failed, expired} and
// never leave a terminal state.
package achievements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campusclub/gamify/internal/app/badges"
	"github.com/campusclub/gamify/internal/app/points"
	"github.com/campusclub/gamify/internal/domain"
	"github.com/campusclub/gamify/internal/infra/metrics"
	"github.com/campusclub/gamify/internal/infra/sqlite"
)

// maxFollowUps bounds how many times completions feed back into Advance as
// an achievements_completed signal.
const maxFollowUps = 2

// Tracker advances achievement progress inside ledger units.
type Tracker struct {
	badges *badges.Evaluator
	log    *zap.Logger
}

// NewTracker creates a tracker. Badge rewards go through b.
func NewTracker(b *badges.Evaluator, log *zap.Logger) *Tracker {
	return &Tracker{badges: b, log: log}
}

// Advance merges signal (counter → increment) into every available
// achievement that tracks one of its counters, enrolling the account on
// first touch. Returns the progress rows completed by this call.
func (t *Tracker) Advance(ctx context.Context, u *points.Unit, signal map[string]int64) ([]domain.AchievementProgress, error) {
	var done []domain.AchievementProgress
	for depth := 0; depth <= maxFollowUps && len(signal) > 0; depth++ {
		completed, err := t.advance(ctx, u, signal)
		done = append(done, completed...)
		if err != nil {
			return done, err
		}
		if len(completed) == 0 {
			break
		}
		signal = map[string]int64{domain.CounterAchievementsCompleted: int64(len(completed))}
	}
	return done, nil
}

func (t *Tracker) advance(ctx context.Context, u *points.Unit, signal map[string]int64) ([]domain.AchievementProgress, error) {
	list, err := u.Tx().ListAchievements(ctx, true)
	if err != nil {
		return nil, err
	}

	var done []domain.AchievementProgress
	for _, a := range list {
		if !a.AvailableAt(u.Now()) || !a.Touches(signal) {
			continue
		}
		p, err := t.enroll(ctx, u, a)
		if err != nil {
			return done, err
		}
		if p.Status.Terminal() {
			continue
		}

		for _, r := range a.Requirements {
			if d := signal[r.Counter]; d > 0 {
				p.Progress[r.Counter] += d
			}
		}
		p.Percentage = a.Percentage(p.Progress)

		if p.Percentage < 100 {
			if err := u.Tx().UpdateProgress(ctx, p); err != nil {
				return done, err
			}
			continue
		}

		ok, err := t.complete(ctx, u, a, p)
		if err != nil {
			return done, fmt.Errorf("complete achievement %s: %w", a.ID, err)
		}
		if ok {
			p.Status = domain.StatusCompleted
			p.CompletedAt = u.Now()
			done = append(done, p)
		}
	}
	return done, nil
}

// Join explicitly enrolls the account. Joining twice is a no-op that
// returns the existing row.
func (t *Tracker) Join(ctx context.Context, u *points.Unit, achievementID string) (domain.AchievementProgress, error) {
	a, err := u.Tx().GetAchievement(ctx, achievementID)
	if err != nil {
		return domain.AchievementProgress{}, err
	}
	if !a.AvailableAt(u.Now()) {
		return domain.AchievementProgress{}, fmt.Errorf("%w: %s", domain.ErrAchievementUnavailable, a.ID)
	}
	return t.enroll(ctx, u, a)
}

// Fail moves an in-progress row to failed. Returns false when the row is
// missing or already terminal.
func (t *Tracker) Fail(ctx context.Context, u *points.Unit, achievementID string) (bool, error) {
	p, found, err := u.Tx().GetProgress(ctx, u.AccountID(), achievementID)
	if err != nil || !found {
		return false, err
	}
	return u.Tx().TransitionProgress(ctx, p, domain.StatusFailed, u.Now())
}

// ExpireElapsed marks in-progress rows expired whose achievement window
// closed at or before now. No rewards are granted.
func ExpireElapsed(ctx context.Context, db *sqlite.DB, now time.Time) (int64, error) {
	n, err := db.ExpireElapsedProgress(ctx, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.AchievementsExpired.Add(float64(n))
	}
	return n, nil
}

// enroll returns the account's progress row, creating it on first touch.
func (t *Tracker) enroll(ctx context.Context, u *points.Unit, a domain.Achievement) (domain.AchievementProgress, error) {
	p, found, err := u.Tx().GetProgress(ctx, u.AccountID(), a.ID)
	if err != nil || found {
		return p, err
	}

	p = domain.AchievementProgress{
		AccountID:     u.AccountID(),
		AchievementID: a.ID,
		Status:        domain.StatusInProgress,
		Progress:      make(map[string]int64),
		StartedAt:     u.Now(),
	}
	inserted, err := u.Tx().InsertProgress(ctx, p)
	if err != nil {
		return p, err
	}
	if inserted {
		if err := u.Tx().IncrementAchievementParticipants(ctx, a.ID); err != nil {
			return p, err
		}
	}
	return p, nil
}

// complete fires the completion side effects exactly once per row.
func (t *Tracker) complete(ctx context.Context, u *points.Unit, a domain.Achievement, p domain.AchievementProgress) (bool, error) {
	ok, err := u.Tx().TransitionProgress(ctx, p, domain.StatusCompleted, u.Now())
	if err != nil || !ok {
		return false, err
	}
	if err := u.Tx().IncrementAchievementCompleted(ctx, a.ID); err != nil {
		return false, err
	}
	if _, err := u.IncrementCounter(ctx, domain.CounterAchievementsCompleted, 1); err != nil {
		return false, err
	}

	if a.PointsReward > 0 {
		if _, err := u.Grant(ctx, points.Entry{
			Amount:      a.PointsReward,
			Type:        domain.TxBonus,
			Category:    domain.CategorySpecial,
			Description: fmt.Sprintf("Achievement completed: %s", a.Name),
			Related:     domain.RelatedRef{Type: "achievement", ID: a.ID},
		}); err != nil {
			return false, err
		}
	}

	if a.BadgeID != "" && t.badges != nil {
		_, _, err := t.badges.Award(ctx, u, a.BadgeID, "achievement: "+a.Name, domain.TxBadgeReward)
		switch {
		case errors.Is(err, domain.ErrBadgeNotFound):
			t.log.Warn("achievement badge missing from catalog",
				zap.String("achievement_id", a.ID),
				zap.String("badge_id", a.BadgeID))
		case err != nil:
			return false, err
		}
	}

	u.Emit(domain.EventAchievementCompleted, map[string]any{
		"achievement_id":   a.ID,
		"achievement_name": a.Name,
		"points_reward":    a.PointsReward,
		"badge_id":         a.BadgeID,
	})
	u.OnCommit(func() {
		metrics.AchievementsCompleted.WithLabelValues(a.ID).Inc()
		t.log.Info("achievement completed",
			zap.String("account_id", p.AccountID),
			zap.String("achievement_id", a.ID))
	})
	return true, nil
}
