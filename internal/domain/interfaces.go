package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// EventSink receives outbound engine events. Delivery is at-least-once, so
// implementations must tolerate duplicates (Event.ID is stable).
type EventSink interface {
	Publish(ctx context.Context, e Event) error
}

// CounterSource answers custom-predicate queries about account activity
// that live outside the PointsAccount row.
type CounterSource interface {
	Counters(ctx context.Context, accountID string) (map[string]int64, error)
}

// Clock abstracts wall time so streak and expiry logic is testable.
type Clock func() time.Time
