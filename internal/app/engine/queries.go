package engine

import (
	"context"
	"time"

	"github.com/campusclub/gamify/internal/app/engagement"
	"github.com/campusclub/gamify/internal/domain"
)

// Profile is an account with everything derived from it.
type Profile struct {
	Account         domain.PointsAccount         `json:"account"`
	LevelProgress   float64                      `json:"level_progress"`
	EngagementScore int64                        `json:"engagement_score"`
	Badges          []domain.BadgeGrant          `json:"badges"`
	Achievements    []domain.AchievementProgress `json:"achievements"`
	Ranks           []domain.RankRecord          `json:"ranks"`
	Counters        map[string]int64             `json:"counters"`
}

// Profile loads an account's full state.
func (e *Engine) Profile(ctx context.Context, accountID string) (Profile, error) {
	a, err := e.db.GetAccount(ctx, accountID)
	if err != nil {
		return Profile{}, err
	}
	p := Profile{Account: a, LevelProgress: engagement.ProgressPct(a)}

	if p.Badges, err = e.db.ListBadgeGrants(ctx, accountID); err != nil {
		return p, err
	}
	if p.Achievements, err = e.db.ListProgress(ctx, accountID); err != nil {
		return p, err
	}
	if p.Ranks, err = e.db.ListRanks(ctx, accountID); err != nil {
		return p, err
	}
	if p.Counters, err = e.db.Counters(ctx, accountID); err != nil {
		return p, err
	}

	since := e.ledger.Now().Add(-7 * 24 * time.Hour)
	recent, err := e.db.CountTransactionsSince(ctx, accountID, since.UnixNano())
	if err != nil {
		return p, err
	}
	var completed int64
	for _, ap := range p.Achievements {
		if ap.Status == domain.StatusCompleted {
			completed++
		}
	}
	p.EngagementScore = engagement.Score(a, engagement.ScoreInputs{
		Badges:                int64(len(p.Badges)),
		CompletedAchievements: completed,
		RecentTransactions:    recent,
	})
	return p, nil
}

// History returns the account's transactions, newest first, optionally
// filtered by type.
func (e *Engine) History(ctx context.Context, accountID string, types []domain.TxType, limit int) ([]domain.Transaction, error) {
	return e.ledger.History(ctx, accountID, types, limit)
}

// AccountBadges lists an account's badge grants, newest first.
func (e *Engine) AccountBadges(ctx context.Context, accountID string) ([]domain.BadgeGrant, error) {
	if _, err := e.db.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return e.db.ListBadgeGrants(ctx, accountID)
}

// AccountAchievements lists an account's achievement progress.
func (e *Engine) AccountAchievements(ctx context.Context, accountID string) ([]domain.AchievementProgress, error) {
	if _, err := e.db.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return e.db.ListProgress(ctx, accountID)
}

// BadgeView is a catalog badge with its rarity.
type BadgeView struct {
	domain.Badge
	RarityPct float64 `json:"rarity_pct"`
	Earned    int     `json:"earned,omitempty"`
}

// Badges lists the active catalog. Hidden badges are only shown to an
// account that has earned them; viewer may be empty.
func (e *Engine) Badges(ctx context.Context, viewer string) ([]BadgeView, error) {
	list, err := e.db.ListBadges(ctx, true)
	if err != nil {
		return nil, err
	}
	accounts, err := e.db.CountAccounts(ctx)
	if err != nil {
		return nil, err
	}
	held := map[string]int{}
	if viewer != "" {
		if held, err = e.db.BadgeGrantCounts(ctx, viewer); err != nil {
			return nil, err
		}
	}

	out := make([]BadgeView, 0, len(list))
	for _, b := range list {
		if b.Hidden && held[b.ID] == 0 {
			continue
		}
		out = append(out, BadgeView{Badge: b, RarityPct: b.RarityPct(accounts), Earned: held[b.ID]})
	}
	return out, nil
}

// AchievementView is a catalog achievement with derived figures.
type AchievementView struct {
	domain.Achievement
	CompletionRate float64 `json:"completion_rate"`
	Available      bool    `json:"available"`
}

// Achievements lists the active achievement catalog.
func (e *Engine) Achievements(ctx context.Context) ([]AchievementView, error) {
	list, err := e.db.ListAchievements(ctx, true)
	if err != nil {
		return nil, err
	}
	now := e.ledger.Now()
	out := make([]AchievementView, len(list))
	for i, a := range list {
		out[i] = AchievementView{Achievement: a, CompletionRate: a.CompletionRate(), Available: a.AvailableAt(now)}
	}
	return out, nil
}

// Stats returns platform-wide totals.
func (e *Engine) Stats(ctx context.Context) (domain.PlatformStats, error) {
	return e.db.Stats(ctx)
}

// Verify checks the ledger invariant for one account.
func (e *Engine) Verify(ctx context.Context, accountID string) error {
	return e.ledger.Verify(ctx, accountID)
}
