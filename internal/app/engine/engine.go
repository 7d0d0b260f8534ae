// Package engine is the gamification facade. It turns activity signals into
// ledger grants and runs achievement and badge evaluation in the same unit,
// so an activity and every reward it cascades into commit together.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campusclub/gamify/internal/app/achievements"
	"github.com/campusclub/gamify/internal/app/activity"
	"github.com/campusclub/gamify/internal/app/badges"
	"github.com/campusclub/gamify/internal/app/leaderboard"
	"github.com/campusclub/gamify/internal/app/points"
	"github.com/campusclub/gamify/internal/domain"
	"github.com/campusclub/gamify/internal/infra/metrics"
	"github.com/campusclub/gamify/internal/infra/sqlite"
)

// Engine wires the gamification components.
type Engine struct {
	db      *sqlite.DB
	ledger  *points.Ledger
	mapper  *activity.Mapper
	badges  *badges.Evaluator
	tracker *achievements.Tracker
	ranker  *leaderboard.Ranker
	log     *zap.Logger
}

// Options supplies components. Nil fields get defaults built over the DB.
type Options struct {
	Ledger  *points.Ledger
	Mapper  *activity.Mapper
	Badges  *badges.Evaluator
	Tracker *achievements.Tracker
	Ranker  *leaderboard.Ranker
	Log     *zap.Logger
}

// New creates an engine.
func New(db *sqlite.DB, opts Options) *Engine {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		db:      db,
		ledger:  opts.Ledger,
		mapper:  opts.Mapper,
		badges:  opts.Badges,
		tracker: opts.Tracker,
		ranker:  opts.Ranker,
		log:     log,
	}
	if e.ledger == nil {
		e.ledger = points.NewLedger(db, log)
	}
	if e.mapper == nil {
		e.mapper, _ = activity.NewMapper(nil)
	}
	if e.badges == nil {
		e.badges = badges.NewEvaluator(nil, 0, log)
	}
	if e.tracker == nil {
		e.tracker = achievements.NewTracker(e.badges, log)
	}
	if e.ranker == nil {
		e.ranker = leaderboard.NewRanker(db, leaderboard.Config{Discover: true}, log,
			leaderboard.WithClock(e.ledger.Now))
	}
	return e
}

// Ledger returns the points ledger.
func (e *Engine) Ledger() *points.Ledger { return e.ledger }

// Ranker returns the leaderboard ranker.
func (e *Engine) Ranker() *leaderboard.Ranker { return e.ranker }

// Mapper returns the activity mapper.
func (e *Engine) Mapper() *activity.Mapper { return e.mapper }

// ─── Activities ─────────────────────────────────────────────────────────────

// Outcome summarises everything one call changed.
type Outcome struct {
	AccountID             string              `json:"account_id"`
	Activity              string              `json:"activity,omitempty"`
	PointsAwarded         int64               `json:"points_awarded"`
	Balance               int64               `json:"balance"`
	Level                 int                 `json:"level"`
	LevelsGained          int                 `json:"levels_gained"`
	CurrentStreak         int                 `json:"current_streak"`
	BadgesEarned          []domain.BadgeGrant `json:"badges_earned"`
	AchievementsCompleted []string            `json:"achievements_completed"`
	Events                int                 `json:"events"`
}

func outcome(u *points.Unit) Outcome {
	a := u.Account()
	return Outcome{
		AccountID:     a.ID,
		Balance:       a.TotalPoints,
		Level:         a.Level,
		LevelsGained:  u.LevelUps(),
		CurrentStreak: a.CurrentStreak,
		Events:        len(u.Events()),
	}
}

// RecordActivity maps an activity to points, credits the account, advances
// achievement progress from the activity's signal and re-evaluates badges.
func (e *Engine) RecordActivity(ctx context.Context, accountID, activityType string, data map[string]any) (Outcome, error) {
	start := time.Now()
	res, err := e.mapper.Resolve(activityType, data)
	if err != nil {
		metrics.ActivitiesRejected.WithLabelValues(rejectReason(err)).Inc()
		return Outcome{}, err
	}

	var out Outcome
	err = e.ledger.Update(ctx, accountID, func(u *points.Unit) error {
		signal := make(map[string]int64)
		if res.Points > 0 {
			if _, err := u.Grant(ctx, points.Entry{
				Amount:      res.Points,
				Type:        domain.TxEarned,
				Category:    res.Category,
				Description: describe(activityType, data),
				Related:     related(activityType, data),
			}); err != nil {
				return err
			}
			signal[domain.CounterPointsEarned] = res.Points
			signal[domain.CategoryCounter(res.Category)] = res.Points
		}
		if res.Counter != "" {
			if _, err := u.IncrementCounter(ctx, res.Counter, 1); err != nil {
				return err
			}
			signal[res.Counter]++
		}
		if u.NewDay() {
			signal[domain.CounterDaysActive]++
		}

		completed, err := e.tracker.Advance(ctx, u, signal)
		if err != nil {
			return err
		}
		grants, err := e.badges.Evaluate(ctx, u)
		if err != nil {
			return err
		}

		out = outcome(u)
		out.Activity = activityType
		out.PointsAwarded = res.Points
		out.BadgesEarned = grants
		for _, p := range completed {
			out.AchievementsCompleted = append(out.AchievementsCompleted, p.AchievementID)
		}
		return nil
	})
	if err != nil {
		metrics.ActivitiesRejected.WithLabelValues(rejectReason(err)).Inc()
		return Outcome{}, err
	}

	metrics.ActivitiesRecorded.WithLabelValues(activityType).Inc()
	metrics.ActivityLatency.Observe(time.Since(start).Seconds())
	e.log.Debug("activity recorded",
		zap.String("account_id", accountID),
		zap.String("activity", activityType),
		zap.Int64("points", res.Points),
		zap.Int("badges", len(out.BadgesEarned)),
		zap.Int("achievements", len(out.AchievementsCompleted)))
	return out, nil
}

func describe(activityType string, data map[string]any) string {
	if s, ok := data["description"].(string); ok && s != "" {
		return s
	}
	return "Activity: " + activityType
}

func related(activityType string, data map[string]any) domain.RelatedRef {
	ref := domain.RelatedRef{Type: activityType}
	switch v := data["related_id"].(type) {
	case string:
		ref.ID = v
	case float64:
		ref.ID = fmt.Sprintf("%.0f", v)
	}
	if t, ok := data["related_type"].(string); ok && t != "" {
		ref.Type = t
	}
	return ref
}

// rejectReason buckets errors for the rejection metric.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnknownActivity):
		return "unknown_activity"
	case errors.Is(err, domain.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, domain.ErrUnknownCategory):
		return "unknown_category"
	case errors.Is(err, domain.ErrInvalidAccount):
		return "invalid_account"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "internal"
}

// ─── Administrative Operations ──────────────────────────────────────────────

// AwardPoints credits an administrative adjustment and re-evaluates badges.
func (e *Engine) AwardPoints(ctx context.Context, accountID string, amount int64, category domain.Category, description string) (Outcome, error) {
	var out Outcome
	err := e.ledger.Update(ctx, accountID, func(u *points.Unit) error {
		if _, err := u.Grant(ctx, points.Entry{
			Amount:      amount,
			Type:        domain.TxAdjustment,
			Category:    category,
			Description: description,
			Related:     domain.RelatedRef{Type: "admin"},
		}); err != nil {
			return err
		}
		grants, err := e.badges.Evaluate(ctx, u)
		if err != nil {
			return err
		}
		out = outcome(u)
		out.PointsAwarded = amount
		out.BadgesEarned = grants
		return nil
	})
	return out, err
}

// AwardBadge grants a badge directly. The badge reward is logged as a bonus
// transaction. Awarding a held non-repeatable badge is a no-op.
func (e *Engine) AwardBadge(ctx context.Context, accountID, badgeID, reason string) (Outcome, error) {
	var out Outcome
	err := e.ledger.Update(ctx, accountID, func(u *points.Unit) error {
		g, inserted, err := e.badges.Award(ctx, u, badgeID, reason, domain.TxBonus)
		if err != nil {
			return err
		}
		cascade, err := e.badges.Evaluate(ctx, u)
		if err != nil {
			return err
		}
		out = outcome(u)
		if inserted {
			out.BadgesEarned = append(out.BadgesEarned, g)
		}
		out.BadgesEarned = append(out.BadgesEarned, cascade...)
		return nil
	})
	return out, err
}

// Spend debits up to amount; see points.Ledger.Spend.
func (e *Engine) Spend(ctx context.Context, accountID string, amount int64, reason string) (int64, error) {
	return e.ledger.Spend(ctx, accountID, amount, reason)
}

// Penalize deducts up to amount as a penalty transaction and returns the
// amount actually deducted.
func (e *Engine) Penalize(ctx context.Context, accountID string, amount int64, reason string) (int64, error) {
	var deducted int64
	err := e.ledger.UpdateExisting(ctx, accountID, func(u *points.Unit) error {
		var err error
		deducted, err = u.Deduct(ctx, amount, domain.TxPenalty, reason)
		return err
	})
	return deducted, err
}

// SetScope assigns the account to a ranking population, creating the
// account if needed. An empty scope removes it from every group board.
func (e *Engine) SetScope(ctx context.Context, accountID, scope string) (domain.PointsAccount, error) {
	var acct domain.PointsAccount
	err := e.ledger.Update(ctx, accountID, func(u *points.Unit) error {
		u.SetScope(scope)
		acct = u.Account()
		return nil
	})
	return acct, err
}

// JoinAchievement enrolls the account explicitly.
func (e *Engine) JoinAchievement(ctx context.Context, accountID, achievementID string) (domain.AchievementProgress, error) {
	var p domain.AchievementProgress
	err := e.ledger.Update(ctx, accountID, func(u *points.Unit) error {
		var err error
		p, err = e.tracker.Join(ctx, u, achievementID)
		return err
	})
	return p, err
}

// FailAchievement moves an in-progress achievement to failed.
func (e *Engine) FailAchievement(ctx context.Context, accountID, achievementID string) (bool, error) {
	var ok bool
	err := e.ledger.UpdateExisting(ctx, accountID, func(u *points.Unit) error {
		var err error
		ok, err = e.tracker.Fail(ctx, u, achievementID)
		return err
	})
	return ok, err
}

// ExpireAchievements runs the expiry sweep at the ledger's current time.
func (e *Engine) ExpireAchievements(ctx context.Context) (int64, error) {
	return achievements.ExpireElapsed(ctx, e.db, e.ledger.Now())
}

// ─── Leaderboards ───────────────────────────────────────────────────────────

// Leaderboard returns the latest published board for (scope, metric).
func (e *Engine) Leaderboard(scope, metric string, limit int) (domain.Leaderboard, error) {
	s, err := domain.ParseScope(scope)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if metric == "" {
		metric = string(domain.MetricPoints)
	}
	return e.ranker.Leaderboard(s, domain.Metric(metric), limit)
}

// RankNow runs a ranking pass immediately.
func (e *Engine) RankNow(ctx context.Context) (*leaderboard.Snapshot, error) {
	return e.ranker.RunPass(ctx)
}
