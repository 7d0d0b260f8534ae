package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusclub/gamify/internal/domain"
	"github.com/campusclub/gamify/internal/infra/sqlite"
)

// fakeSink fails the first failures publishes, then records events.
type fakeSink struct {
	mu        sync.Mutex
	failures  int
	calls     int
	published []domain.Event
}

func (s *fakeSink) Publish(_ context.Context, e domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures > 0 {
		s.failures--
		return errors.New("sink unavailable")
	}
	s.published = append(s.published, e)
	return nil
}

func newTestDispatcher(t *testing.T, sink domain.EventSink, cfg DispatcherConfig) (*Dispatcher, *sqlite.DB) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	d := NewDispatcher(db, sink, cfg, zap.NewNop())
	d.newBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, d.cfg.Retries)
	}
	return d, db
}

func enqueue(t *testing.T, db *sqlite.DB, ids ...string) {
	t.Helper()
	for i, id := range ids {
		require.NoError(t, db.InsertEvent(context.Background(), domain.Event{
			ID:        id,
			Type:      domain.EventBadgeEarned,
			AccountID: "u1",
			Payload:   map[string]any{"badge_id": "first_steps"},
			CreatedAt: time.Unix(int64(1000+i), 0),
		}))
	}
}

func TestFlush_DeliversInOrder(t *testing.T) {
	sink := &fakeSink{}
	d, db := newTestDispatcher(t, sink, DispatcherConfig{})
	enqueue(t, db, "e1", "e2", "e3")

	n, err := d.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, sink.published, 3)
	assert.Equal(t, "e1", sink.published[0].ID)
	assert.Equal(t, "first_steps", sink.published[0].Payload["badge_id"])

	backlog, err := db.PendingEventCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, backlog)

	n, err = d.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "delivered events are not redelivered")
}

func TestFlush_RetriesWithinRound(t *testing.T) {
	sink := &fakeSink{failures: 2}
	d, db := newTestDispatcher(t, sink, DispatcherConfig{Retries: 3})
	enqueue(t, db, "e1")

	n, err := d.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 3, sink.calls)
}

func TestFlush_FailureParksAfterMaxAttempts(t *testing.T) {
	sink := &fakeSink{failures: 100}
	d, db := newTestDispatcher(t, sink, DispatcherConfig{Retries: 0, MaxAttempts: 2})
	enqueue(t, db, "e1")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		n, err := d.Flush(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	}
	assert.Equal(t, 2, sink.calls, "parked after two failed rounds")

	pending, err := db.PendingEvents(ctx, 10, 100)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Attempts)
}

func TestFlush_FailureDoesNotBlockBatch(t *testing.T) {
	sink := &fakeSink{failures: 1}
	d, db := newTestDispatcher(t, sink, DispatcherConfig{Retries: 0})
	enqueue(t, db, "e1", "e2")

	n, err := d.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, sink.published, 1)
	assert.Equal(t, "e2", sink.published[0].ID)

	// e1 is retried on the next round.
	n, err = d.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRun_StopsOnCancel(t *testing.T) {
	sink := &fakeSink{}
	d, db := newTestDispatcher(t, sink, DispatcherConfig{PollInterval: 10 * time.Millisecond})
	enqueue(t, db, "e1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.published) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestMultiSink_JoinsErrors(t *testing.T) {
	ok := &fakeSink{}
	bad := &fakeSink{failures: 1}
	err := MultiSink{ok, bad, NewLogSink(zap.NewNop())}.Publish(context.Background(), domain.Event{ID: "e1"})
	assert.Error(t, err)
	assert.Len(t, ok.published, 1)
}

func TestRedisSink_Unreachable(t *testing.T) {
	sink := NewRedisSink(RedisConfig{Addr: "127.0.0.1:1"})
	defer sink.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := sink.Publish(ctx, domain.Event{ID: "e1", Type: domain.EventLevelUp})
	assert.Error(t, err)
	assert.Error(t, sink.Ping(ctx))
}
