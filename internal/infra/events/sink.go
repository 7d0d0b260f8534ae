// Package events delivers outbox events to external sinks.
//
// Delivery is at-least-once: an event is marked delivered only after its
// sink accepted it, so consumers de-duplicate on Event.ID.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/campusclub/gamify/internal/domain"
)

// ─── Log Sink ───────────────────────────────────────────────────────────────

// LogSink writes each event as a structured log line.
type LogSink struct {
	log *zap.Logger
}

// NewLogSink creates a sink that logs events at info level.
func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

// Publish implements domain.EventSink.
func (s *LogSink) Publish(_ context.Context, e domain.Event) error {
	s.log.Info("event",
		zap.String("event_id", e.ID),
		zap.String("type", string(e.Type)),
		zap.String("account_id", e.AccountID),
		zap.Any("payload", e.Payload),
		zap.Time("created_at", e.CreatedAt))
	return nil
}

// ─── Redis Sink ─────────────────────────────────────────────────────────────

// RedisConfig configures the pub/sub sink.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// RedisSink publishes JSON-encoded events on a Redis channel.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink connects lazily; the first Publish dials.
func NewRedisSink(cfg RedisConfig) *RedisSink {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 2 * time.Second,
	})
	channel := cfg.Channel
	if channel == "" {
		channel = "gamify:events"
	}
	return &RedisSink{client: client, channel: channel}
}

// Publish implements domain.EventSink. Encoding failures are permanent and
// are not retried.
func (s *RedisSink) Publish(ctx context.Context, e domain.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("encode event %s: %w", e.ID, err))
	}
	if err := s.client.Publish(ctx, s.channel, body).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *RedisSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the client.
func (s *RedisSink) Close() error {
	return s.client.Close()
}

// ─── Fan-out ────────────────────────────────────────────────────────────────

// MultiSink publishes to every sink and joins their errors.
type MultiSink []domain.EventSink

// Publish implements domain.EventSink.
func (m MultiSink) Publish(ctx context.Context, e domain.Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
