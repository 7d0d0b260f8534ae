package events

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/campusclub/gamify/internal/domain"
	"github.com/campusclub/gamify/internal/infra/metrics"
	"github.com/campusclub/gamify/internal/infra/sqlite"
)

// DispatcherConfig controls outbox polling and retry.
type DispatcherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int           // failed rounds before an event is parked
	Retries      uint64        // in-round retries per event
	MaxElapsed   time.Duration // in-round retry budget per event
}

// DefaultDispatcherConfig returns production defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		PollInterval: 2 * time.Second,
		BatchSize:    100,
		MaxAttempts:  10,
		Retries:      3,
		MaxElapsed:   5 * time.Second,
	}
}

// Dispatcher drains the outbox into a sink.
type Dispatcher struct {
	db   *sqlite.DB
	sink domain.EventSink
	cfg  DispatcherConfig
	log  *zap.Logger
	now  domain.Clock

	// newBackOff is swapped in tests to avoid real sleeps.
	newBackOff func() backoff.BackOff
}

// NewDispatcher creates a dispatcher. Zero config fields take defaults.
func NewDispatcher(db *sqlite.DB, sink domain.EventSink, cfg DispatcherConfig, log *zap.Logger) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = def.MaxElapsed
	}
	d := &Dispatcher{db: db, sink: sink, cfg: cfg, log: log, now: time.Now}
	d.newBackOff = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = d.cfg.MaxElapsed
		return backoff.WithMaxRetries(b, d.cfg.Retries)
	}
	return d
}

// Flush delivers one batch of pending events and returns how many were
// delivered. Per-event failures are recorded on the event row and do not
// stop the batch.
func (d *Dispatcher) Flush(ctx context.Context) (int, error) {
	pending, err := d.db.PendingEvents(ctx, d.cfg.BatchSize, d.cfg.MaxAttempts)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, e := range pending {
		if ctx.Err() != nil {
			break
		}
		if err := d.deliver(ctx, e); err != nil {
			metrics.EventsFailed.WithLabelValues(string(e.Type)).Inc()
			d.log.Error("event delivery failed",
				zap.String("event_id", e.ID),
				zap.String("type", string(e.Type)),
				zap.Int("attempts", e.Attempts+1),
				zap.Error(err))
			if err := d.db.MarkEventFailed(ctx, e.ID, err); err != nil {
				return delivered, err
			}
			continue
		}
		if err := d.db.MarkEventDelivered(ctx, e.ID, d.now()); err != nil {
			return delivered, err
		}
		metrics.EventsDelivered.WithLabelValues(string(e.Type)).Inc()
		delivered++
	}

	if backlog, err := d.db.PendingEventCount(ctx); err == nil {
		metrics.OutboxBacklog.Set(float64(backlog))
	}
	return delivered, nil
}

func (d *Dispatcher) deliver(ctx context.Context, e domain.Event) error {
	operation := func() error {
		return d.sink.Publish(ctx, e)
	}
	return backoff.RetryNotify(
		operation,
		backoff.WithContext(d.newBackOff(), ctx),
		func(err error, wait time.Duration) {
			d.log.Warn("event publish attempt failed",
				zap.String("event_id", e.ID),
				zap.Error(err),
				zap.Duration("backoff", wait))
		},
	)
}

// Run flushes every poll interval until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if _, err := d.Flush(ctx); err != nil && ctx.Err() == nil {
			d.log.Warn("outbox flush failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
