// Package health runs periodic checks over the store, the event outbox and
// the points ledger, with optional recovery actions.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/campusclub/gamify/internal/infra/metrics"
	"github.com/campusclub/gamify/internal/infra/sqlite"
)

// Check defines a single health check with optional recovery action.
type Check struct {
	Name      string
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Options tunes the standard checks.
type Options struct {
	Interval   time.Duration
	MaxBacklog int64                           // outbox size above which the check fails
	Flush      func(ctx context.Context) error // outbox recovery; usually Dispatcher.Flush
	Log        *zap.Logger
}

// Checker runs periodic health checks with auto-recovery.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
	log      *zap.Logger
}

// NewChecker creates a health checker with the standard checks: store
// reachability, outbox backlog and the ledger invariant.
func NewChecker(db *sqlite.DB, opts Options) *Checker {
	if opts.Interval <= 0 {
		opts.Interval = 60 * time.Second
	}
	if opts.MaxBacklog <= 0 {
		opts.MaxBacklog = 10_000
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return &Checker{
		interval: opts.Interval,
		log:      opts.Log,
		checks: []Check{
			{
				Name: "sqlite",
				CheckFn: func(ctx context.Context) error {
					return db.Ping()
				},
			},
			{
				Name: "outbox_backlog",
				CheckFn: func(ctx context.Context) error {
					n, err := db.PendingEventCount(ctx)
					if err != nil {
						return err
					}
					metrics.OutboxBacklog.Set(float64(n))
					if n > opts.MaxBacklog {
						return fmt.Errorf("%d undelivered events (max %d)", n, opts.MaxBacklog)
					}
					return nil
				},
				RecoverFn: func(ctx context.Context) error {
					if opts.Flush == nil {
						return nil
					}
					return opts.Flush(ctx)
				},
			},
			{
				Name: "ledger_invariant",
				CheckFn: func(ctx context.Context) error {
					n, err := db.LedgerMismatches(ctx)
					if err != nil {
						return err
					}
					if n > 0 {
						return fmt.Errorf("%d accounts disagree with their transaction sum", n)
					}
					return nil
				},
			},
		},
	}
}

// Add registers an extra check.
func (c *Checker) Add(check Check) {
	c.mu.Lock()
	c.checks = append(c.checks, check)
	c.mu.Unlock()
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	// Run immediately on start
	c.RunOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce runs every check and publishes the results.
func (c *Checker) RunOnce(ctx context.Context) {
	c.mu.RLock()
	checks := append([]Check(nil), c.checks...)
	c.mu.RUnlock()

	statuses := make([]Status, len(checks))
	for i, check := range checks {
		s := Status{
			Name:      check.Name,
			CheckedAt: time.Now(),
		}
		if err := check.CheckFn(ctx); err != nil {
			s.Error = err.Error()
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(0)
			c.log.Warn("health check failed", zap.String("check", check.Name), zap.Error(err))
			if check.RecoverFn != nil {
				metrics.HealthRecoveries.WithLabelValues(check.Name).Inc()
				if rerr := check.RecoverFn(ctx); rerr != nil {
					c.log.Warn("health recovery failed", zap.String("check", check.Name), zap.Error(rerr))
				}
			}
		} else {
			s.Healthy = true
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(1)
		}
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}
