package points

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusclub/gamify/internal/app/engagement"
	"github.com/campusclub/gamify/internal/domain"
	"github.com/campusclub/gamify/internal/infra/metrics"
	"github.com/campusclub/gamify/internal/infra/sqlite"
)

// Entry describes one credit to the ledger.
type Entry struct {
	Amount      int64
	Type        domain.TxType // defaults to earned
	Category    domain.Category
	Description string
	Related     domain.RelatedRef
}

// Unit is the account state inside one ledger update. It is only valid for
// the duration of the callback passed to Ledger.Update.
type Unit struct {
	tx      *sqlite.Tx
	ledger  *Ledger
	account domain.PointsAccount
	now     time.Time
	created bool
	dirty   bool
	events  []domain.Event

	// per-unit stats, published to metrics after commit
	newDay     bool
	levelUps   int
	milestones int
	granted    []Entry
	spent      int64
	onCommit   []func()
}

// Account returns a copy of the in-flight account state.
func (u *Unit) Account() domain.PointsAccount { return u.account }

// AccountID returns the unit's account id.
func (u *Unit) AccountID() string { return u.account.ID }

// Tx exposes the storage transaction to collaborators (badges,
// achievements) so their writes commit atomically with the ledger.
func (u *Unit) Tx() *sqlite.Tx { return u.tx }

// Now is the unit's timestamp.
func (u *Unit) Now() time.Time { return u.now }

// Created reports whether this unit created the account.
func (u *Unit) Created() bool { return u.created }

// NewDay reports whether a grant in this unit started a new streak day.
func (u *Unit) NewDay() bool { return u.newDay }

// LevelUps returns how many levels were gained in this unit.
func (u *Unit) LevelUps() int { return u.levelUps }

// Events returns the events emitted so far in this unit.
func (u *Unit) Events() []domain.Event { return u.events }

// SetScope assigns the account's ranking population.
func (u *Unit) SetScope(scope string) {
	if u.account.Scope != scope {
		u.account.Scope = scope
		u.dirty = true
	}
}

// Grant credits e.Amount to the account: total, lifetime, the category
// bucket and experience all increase, a transaction is appended, and the
// level cascade and streak run. Amounts outside 1..MaxAmount are rejected
// before anything changes. Returns the new balance.
func (u *Unit) Grant(ctx context.Context, e Entry) (int64, error) {
	if e.Amount <= 0 || e.Amount > domain.MaxAmount {
		return u.account.TotalPoints, fmt.Errorf("%w: got %d", domain.ErrInvalidAmount, e.Amount)
	}
	if !e.Category.Valid() {
		return u.account.TotalPoints, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, e.Category)
	}
	if e.Type == "" {
		e.Type = domain.TxEarned
	}

	a := &u.account
	// Level and streak bonuses ride on top of the grant; keep MaxAmount of
	// headroom for them.
	if limit := int64(math.MaxInt64) - 2*domain.MaxAmount; max(a.TotalPoints, a.LifetimePoints, a.ExperiencePoints) > limit-e.Amount {
		return a.TotalPoints, fmt.Errorf("%w: balance would overflow", domain.ErrInvalidAmount)
	}
	a.TotalPoints += e.Amount
	a.LifetimePoints += e.Amount
	a.AddCategoryPoints(e.Category, e.Amount)
	a.ExperiencePoints += e.Amount
	u.dirty = true

	if err := u.append(ctx, e.Amount, e.Type, e.Category, e.Description, e.Related); err != nil {
		return a.TotalPoints, err
	}
	u.granted = append(u.granted, e)

	// Level bonuses go to total_points only: not experience, lifetime or a
	// category bucket.
	for _, up := range engagement.ApplyExperience(a) {
		a.TotalPoints += up.Bonus
		if err := u.append(ctx, up.Bonus, domain.TxLevelBonus, "",
			fmt.Sprintf("Reached level %d", up.Level),
			domain.RelatedRef{Type: "level", ID: strconv.Itoa(up.Level)}); err != nil {
			return a.TotalPoints, err
		}
		u.Emit(domain.EventLevelUp, map[string]any{"level": up.Level, "bonus": up.Bonus})
		u.levelUps++
		u.granted = append(u.granted, Entry{Amount: up.Bonus, Type: domain.TxLevelBonus, Category: "none"})
	}

	streak := engagement.AdvanceStreak(a, u.now, u.ledger.loc)
	if streak.NewDay {
		u.newDay = true
		if _, err := u.IncrementCounter(ctx, domain.CounterDaysActive, 1); err != nil {
			return a.TotalPoints, err
		}
	}
	if streak.Milestone {
		u.milestones++
		u.Emit(domain.EventStreakMilestone, map[string]any{"streak": a.CurrentStreak})
		// Same-day recursion: AdvanceStreak is a no-op on the inner grant.
		if _, err := u.Grant(ctx, Entry{
			Amount:      engagement.StreakBonus(a.CurrentStreak),
			Type:        domain.TxStreakBonus,
			Category:    domain.CategorySpecial,
			Description: fmt.Sprintf("%d-day streak", a.CurrentStreak),
			Related:     domain.RelatedRef{Type: "streak", ID: strconv.Itoa(a.CurrentStreak)},
		}); err != nil {
			return a.TotalPoints, err
		}
	}

	return a.TotalPoints, nil
}

// Spend debits up to amount and returns the amount actually spent.
func (u *Unit) Spend(ctx context.Context, amount int64, reason string) (int64, error) {
	return u.Deduct(ctx, amount, domain.TxSpent, reason)
}

// Deduct removes up to amount from total_points only, clamped to the
// balance. amount must be within 1..MaxAmount. A clamped-to-zero
// deduction appends nothing.
func (u *Unit) Deduct(ctx context.Context, amount int64, typ domain.TxType, reason string) (int64, error) {
	if amount <= 0 || amount > domain.MaxAmount {
		return 0, fmt.Errorf("%w: got %d", domain.ErrInvalidAmount, amount)
	}
	actual := min(amount, u.account.TotalPoints)
	if actual <= 0 {
		return 0, nil
	}

	u.account.TotalPoints -= actual
	u.dirty = true
	if err := u.append(ctx, -actual, typ, "", reason, domain.RelatedRef{}); err != nil {
		return 0, err
	}
	u.spent += actual
	return actual, nil
}

// IncrementCounter bumps a per-account activity counter.
func (u *Unit) IncrementCounter(ctx context.Context, counter string, delta int64) (int64, error) {
	return u.tx.IncrementCounter(ctx, u.account.ID, counter, delta)
}

// Counters reads the account's counters inside the unit.
func (u *Unit) Counters(ctx context.Context) (map[string]int64, error) {
	return u.tx.Counters(ctx, u.account.ID)
}

// OnCommit registers fn to run after the unit's transaction commits. It is
// dropped on rollback.
func (u *Unit) OnCommit(fn func()) {
	u.onCommit = append(u.onCommit, fn)
}

// Emit queues an event; it is written to the outbox with the unit.
func (u *Unit) Emit(typ domain.EventType, payload map[string]any) {
	u.events = append(u.events, domain.Event{
		ID:        uuid.NewString(),
		Type:      typ,
		AccountID: u.account.ID,
		Payload:   payload,
		CreatedAt: u.now,
	})
}

func (u *Unit) append(ctx context.Context, amount int64, typ domain.TxType, cat domain.Category, desc string, ref domain.RelatedRef) error {
	_, err := u.tx.InsertTransaction(ctx, domain.Transaction{
		AccountID:    u.account.ID,
		Amount:       amount,
		Type:         typ,
		Category:     cat,
		Description:  desc,
		Related:      ref,
		BalanceAfter: u.account.TotalPoints,
		CreatedAt:    u.now,
	})
	return err
}

// flush persists the account and queued events inside the transaction.
func (u *Unit) flush(ctx context.Context) error {
	if u.dirty {
		u.account.UpdatedAt = u.now
		if err := u.tx.UpdateAccount(ctx, u.account); err != nil {
			return err
		}
	}
	for _, e := range u.events {
		if err := u.tx.InsertEvent(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// observe publishes metrics once the unit has committed.
func (u *Unit) observe() {
	for _, g := range u.granted {
		metrics.PointsGranted.WithLabelValues(string(g.Type), string(g.Category)).Add(float64(g.Amount))
	}
	if u.spent > 0 {
		metrics.PointsSpent.Add(float64(u.spent))
	}
	if u.levelUps > 0 {
		metrics.LevelUps.Add(float64(u.levelUps))
		u.ledger.log.Info("level up",
			zap.String("account_id", u.account.ID),
			zap.Int("level", u.account.Level),
			zap.Int("levels_gained", u.levelUps))
	}
	if u.milestones > 0 {
		metrics.StreakMilestones.Add(float64(u.milestones))
	}
	for _, fn := range u.onCommit {
		fn()
	}
}
