// Package points implements the points ledger: per-account balances backed
// by an append-only transaction log. Every mutation runs as a Unit holding
// the account's writer lock and one storage transaction, so
// SUM(transactions.amount) == accounts.total_points is an invariant.
package points

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campusclub/gamify/internal/domain"
	"github.com/campusclub/gamify/internal/infra/lock"
	"github.com/campusclub/gamify/internal/infra/sqlite"
)

// Ledger manages the points economy.
type Ledger struct {
	db    *sqlite.DB
	locks *lock.Keyed
	log   *zap.Logger
	now   domain.Clock
	loc   *time.Location
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides wall time.
func WithClock(c domain.Clock) Option {
	return func(l *Ledger) { l.now = c }
}

// WithLocation sets the time zone that defines a streak day.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// NewLedger creates a ledger over db.
func NewLedger(db *sqlite.DB, log *zap.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		db:    db,
		locks: lock.NewKeyed(),
		log:   log,
		now:   time.Now,
		loc:   time.UTC,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Now returns the ledger's clock reading.
func (l *Ledger) Now() time.Time { return l.now() }

// Location returns the streak time zone.
func (l *Ledger) Location() *time.Location { return l.loc }

// Update runs fn as one unit against accountID, creating the account on
// first use. fn's error rolls back everything, including the creation.
func (l *Ledger) Update(ctx context.Context, accountID string, fn func(u *Unit) error) error {
	return l.update(ctx, accountID, true, fn)
}

// UpdateExisting is Update without lazy creation; a missing account
// returns domain.ErrAccountNotFound.
func (l *Ledger) UpdateExisting(ctx context.Context, accountID string, fn func(u *Unit) error) error {
	return l.update(ctx, accountID, false, fn)
}

func (l *Ledger) update(ctx context.Context, accountID string, create bool, fn func(u *Unit) error) error {
	if accountID == "" {
		return domain.ErrInvalidAccount
	}

	unlock := l.locks.Lock(accountID)
	defer unlock()

	var unit *Unit
	err := l.db.WithTx(ctx, func(tx *sqlite.Tx) error {
		now := l.now()
		acct, err := tx.GetAccount(ctx, accountID)
		created := false
		switch {
		case errors.Is(err, domain.ErrAccountNotFound) && create:
			acct = domain.NewPointsAccount(accountID, now)
			if err := tx.InsertAccount(ctx, acct); err != nil {
				return err
			}
			created = true
		case err != nil:
			return err
		}

		unit = &Unit{tx: tx, ledger: l, account: acct, now: now, created: created}
		if err := fn(unit); err != nil {
			return err
		}
		return unit.flush(ctx)
	})
	if err != nil {
		return err
	}

	unit.observe()
	return nil
}

// Grant credits amount to an account as a single unit and returns the new
// balance.
func (l *Ledger) Grant(ctx context.Context, accountID string, e Entry) (int64, error) {
	var balance int64
	err := l.Update(ctx, accountID, func(u *Unit) error {
		var err error
		balance, err = u.Grant(ctx, e)
		return err
	})
	return balance, err
}

// Spend debits up to amount and returns what was actually spent. Spending
// is clamped to the balance; a missing account is an error.
func (l *Ledger) Spend(ctx context.Context, accountID string, amount int64, reason string) (int64, error) {
	var spent int64
	err := l.UpdateExisting(ctx, accountID, func(u *Unit) error {
		var err error
		spent, err = u.Spend(ctx, amount, reason)
		return err
	})
	return spent, err
}

// Account returns the current account state.
func (l *Ledger) Account(ctx context.Context, accountID string) (domain.PointsAccount, error) {
	return l.db.GetAccount(ctx, accountID)
}

// History returns recent transactions, newest first, optionally filtered
// by type.
func (l *Ledger) History(ctx context.Context, accountID string, types []domain.TxType, limit int) ([]domain.Transaction, error) {
	if _, err := l.db.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return l.db.ListTransactions(ctx, accountID, types, limit)
}

// Counters returns the account's activity counters.
func (l *Ledger) Counters(ctx context.Context, accountID string) (map[string]int64, error) {
	return l.db.Counters(ctx, accountID)
}

// Verify recomputes the transaction sum for an account and compares it to
// total_points.
func (l *Ledger) Verify(ctx context.Context, accountID string) error {
	acct, err := l.db.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	sum, err := l.db.TransactionSum(ctx, accountID)
	if err != nil {
		return err
	}
	if sum != acct.TotalPoints {
		return fmt.Errorf("ledger mismatch for %s: total_points=%d, sum(transactions)=%d",
			accountID, acct.TotalPoints, sum)
	}
	return nil
}
