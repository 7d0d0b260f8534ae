// Package badges grants catalog badges whose requirement rules hold for an
// account. Evaluation runs inside a points.Unit so grants, rewards and
// events commit together with the triggering activity.
package badges

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/campusclub/gamify/internal/app/points"
	"github.com/campusclub/gamify/internal/app/rules"
	"github.com/campusclub/gamify/internal/domain"
	"github.com/campusclub/gamify/internal/infra/metrics"
)

// DefaultMaxPasses bounds reward cascades within one Evaluate call.
const DefaultMaxPasses = 3

// Evaluator checks badge requirements and grants badges.
type Evaluator struct {
	reg       *rules.Registry
	maxPasses int
	log       *zap.Logger
}

// NewEvaluator creates an evaluator. maxPasses <= 0 selects the default.
func NewEvaluator(reg *rules.Registry, maxPasses int, log *zap.Logger) *Evaluator {
	if reg == nil {
		reg = rules.DefaultRegistry()
	}
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}
	return &Evaluator{reg: reg, maxPasses: maxPasses, log: log}
}

// Registry returns the predicate registry used for custom rules.
func (e *Evaluator) Registry() *rules.Registry { return e.reg }

// Snapshot builds the rule input for the unit's account.
func Snapshot(ctx context.Context, u *points.Unit) (rules.Snapshot, map[string]int, error) {
	counts, err := u.Tx().BadgeGrantCounts(ctx, u.AccountID())
	if err != nil {
		return rules.Snapshot{}, nil, err
	}
	counters, err := u.Counters(ctx)
	if err != nil {
		return rules.Snapshot{}, nil, err
	}
	var total int64
	for _, n := range counts {
		total += int64(n)
	}
	return rules.Snapshot{Account: u.Account(), BadgeCount: total, Counters: counters}, counts, nil
}

// Evaluate grants every active badge whose requirement now holds. Badge
// rewards can unlock further badges, so evaluation repeats until a pass
// grants nothing or the pass limit is reached. A repeatable badge is
// granted at most once per call. Rule errors are logged and skipped.
func (e *Evaluator) Evaluate(ctx context.Context, u *points.Unit) ([]domain.BadgeGrant, error) {
	catalog, err := u.Tx().ListBadges(ctx, true)
	if err != nil {
		return nil, err
	}
	if len(catalog) == 0 {
		return nil, nil
	}

	var grants []domain.BadgeGrant
	repeated := make(map[string]bool)

	for pass := 0; pass < e.maxPasses; pass++ {
		snap, counts, err := Snapshot(ctx, u)
		if err != nil {
			return grants, err
		}

		progressed := false
		for _, b := range catalog {
			if !b.Repeatable && counts[b.ID] > 0 {
				continue
			}
			if b.Repeatable && repeated[b.ID] {
				continue
			}

			ok, err := rules.Evaluate(ctx, b.Requirement, snap, e.reg)
			if err != nil {
				metrics.RuleErrors.WithLabelValues(string(b.Requirement.Kind)).Inc()
				e.log.Warn("badge rule failed",
					zap.String("account_id", u.AccountID()),
					zap.String("badge_id", b.ID),
					zap.Error(err))
				continue
			}
			if !ok {
				continue
			}

			seq := 0
			if b.Repeatable {
				seq = counts[b.ID]
				repeated[b.ID] = true
			}
			g, inserted, err := e.grant(ctx, u, b, seq, "requirement met", domain.TxBadgeReward)
			if err != nil {
				return grants, fmt.Errorf("grant badge %s: %w", b.ID, err)
			}
			if inserted {
				grants = append(grants, g)
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return grants, nil
}

// Award grants a badge regardless of its requirement. A non-repeatable
// badge the account already holds is a no-op and reports false. The
// reward is logged with rewardType.
func (e *Evaluator) Award(ctx context.Context, u *points.Unit, badgeID, reason string, rewardType domain.TxType) (domain.BadgeGrant, bool, error) {
	b, err := u.Tx().GetBadge(ctx, badgeID)
	if err != nil {
		return domain.BadgeGrant{}, false, err
	}
	counts, err := u.Tx().BadgeGrantCounts(ctx, u.AccountID())
	if err != nil {
		return domain.BadgeGrant{}, false, err
	}

	seq := 0
	if b.Repeatable {
		seq = counts[b.ID]
	} else if counts[b.ID] > 0 {
		return domain.BadgeGrant{AccountID: u.AccountID(), BadgeID: b.ID}, false, nil
	}
	return e.grant(ctx, u, b, seq, reason, rewardType)
}

func (e *Evaluator) grant(ctx context.Context, u *points.Unit, b domain.Badge, seq int, reason string, rewardType domain.TxType) (domain.BadgeGrant, bool, error) {
	g := domain.BadgeGrant{
		AccountID: u.AccountID(),
		BadgeID:   b.ID,
		Seq:       seq,
		Reason:    reason,
		EarnedAt:  u.Now(),
	}
	inserted, err := u.Tx().InsertBadgeGrant(ctx, g)
	if err != nil || !inserted {
		return g, false, err
	}
	if err := u.Tx().IncrementBadgeEarned(ctx, b.ID); err != nil {
		return g, false, err
	}

	if b.PointsReward > 0 {
		if _, err := u.Grant(ctx, points.Entry{
			Amount:      b.PointsReward,
			Type:        rewardType,
			Category:    domain.CategorySpecial,
			Description: fmt.Sprintf("Badge earned: %s", b.Name),
			Related:     domain.RelatedRef{Type: "badge", ID: b.ID},
		}); err != nil {
			return g, false, err
		}
	}

	u.Emit(domain.EventBadgeEarned, map[string]any{
		"badge_id":      b.ID,
		"badge_name":    b.Name,
		"difficulty":    string(b.Difficulty),
		"points_reward": b.PointsReward,
		"seq":           seq,
	})
	u.OnCommit(func() {
		metrics.BadgesGranted.WithLabelValues(b.ID).Inc()
		e.log.Info("badge granted",
			zap.String("account_id", g.AccountID),
			zap.String("badge_id", b.ID),
			zap.Int("seq", seq))
	})
	return g, true, nil
}
