package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/campusclub/gamify/internal/api"
	"github.com/campusclub/gamify/internal/app/achievements"
	"github.com/campusclub/gamify/internal/app/activity"
	"github.com/campusclub/gamify/internal/app/badges"
	"github.com/campusclub/gamify/internal/app/engine"
	"github.com/campusclub/gamify/internal/app/leaderboard"
	"github.com/campusclub/gamify/internal/app/points"
	"github.com/campusclub/gamify/internal/domain"
	"github.com/campusclub/gamify/internal/health"
	"github.com/campusclub/gamify/internal/infra/catalog"
	"github.com/campusclub/gamify/internal/infra/events"
	"github.com/campusclub/gamify/internal/infra/sqlite"
	"github.com/campusclub/gamify/internal/logging"
)

// Daemon is the gamify runtime. It wires together all services.
type Daemon struct {
	Config     Config
	Log        *zap.Logger
	DB         *sqlite.DB
	Engine     *engine.Engine
	Dispatcher *events.Dispatcher
	Health     *health.Checker
	Server     *api.Server

	redis *events.RedisSink
}

// New creates and initializes a Daemon from ~/.gamify/config.toml.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg, log)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config, log *zap.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	db, err := sqlite.Open(cfg.Storage.Dir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	d := &Daemon{Config: cfg, Log: log, DB: db}

	// Catalog
	cat := catalog.Defaults()
	if cfg.Catalog.File != "" {
		if cat, err = catalog.Load(cfg.Catalog.File); err != nil {
			d.Close()
			return nil, err
		}
	}
	if err := catalog.Seed(context.Background(), db, cat); err != nil {
		d.Close()
		return nil, fmt.Errorf("seed catalog: %w", err)
	}

	// Engine
	mapper, err := activity.NewMapper(cfg.Activities)
	if err != nil {
		d.Close()
		return nil, err
	}
	evaluator := badges.NewEvaluator(nil, cfg.Badges.MaxPasses, log)
	d.Engine = engine.New(db, engine.Options{
		Ledger:  points.NewLedger(db, log, points.WithLocation(cfg.Location())),
		Mapper:  mapper,
		Badges:  evaluator,
		Tracker: achievements.NewTracker(evaluator, log),
		Ranker:  leaderboard.NewRanker(db, rankerConfig(cfg.Leaderboard), log),
		Log:     log,
	})

	// Events
	d.Dispatcher = events.NewDispatcher(db, d.sink(), events.DispatcherConfig{
		PollInterval: cfg.Events.PollInterval.Duration,
		BatchSize:    cfg.Events.BatchSize,
		MaxAttempts:  cfg.Events.MaxAttempts,
		Retries:      3,
		MaxElapsed:   5 * time.Second,
	}, log)

	// Health
	d.Health = health.NewChecker(db, health.Options{
		Interval:   cfg.Telemetry.HealthInterval.Duration,
		MaxBacklog: cfg.Events.MaxBacklog,
		Flush: func(ctx context.Context) error {
			_, err := d.Dispatcher.Flush(ctx)
			return err
		},
		Log: log,
	})
	if d.redis != nil {
		d.Health.Add(health.Check{Name: "redis", CheckFn: d.redis.Ping})
	}

	// API
	d.Server = api.NewServer(d.Engine, api.Options{
		Health:         d.Health,
		CORSOrigins:    cfg.API.CORSOrigins,
		RequestTimeout: cfg.API.RequestTimeout.Duration,
		Log:            log,
	})
	if cfg.Telemetry.Prometheus {
		d.Server.EnableMetrics()
	}

	return d, nil
}

func (d *Daemon) sink() domain.EventSink {
	cfg := d.Config.Events
	logSink := events.NewLogSink(d.Log)
	if cfg.Sink == "log" {
		return logSink
	}
	d.redis = events.NewRedisSink(events.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Channel:  cfg.RedisChannel,
	})
	if cfg.Sink == "both" {
		return events.MultiSink{logSink, d.redis}
	}
	return d.redis
}

func rankerConfig(cfg LeaderboardConfig) leaderboard.Config {
	rc := leaderboard.Config{
		Discover:   cfg.Discover,
		TopN:       cfg.TopN,
		MaxWorkers: cfg.MaxWorkers,
	}
	for _, m := range cfg.Metrics {
		rc.Metrics = append(rc.Metrics, domain.Metric(m))
	}
	for _, s := range cfg.Scopes {
		scope, err := domain.ParseScope(s)
		if err == nil && scope.Group() != "" {
			rc.Scopes = append(rc.Scopes, scope.Group())
		}
	}
	return rc
}

// Serve starts the HTTP server and the background loops and blocks until
// ctx is cancelled or SIGINT/SIGTERM arrives.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := net.JoinHostPort(d.Config.API.Host, strconv.Itoa(d.Config.API.Port))
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: d.Config.API.RequestTimeout.Duration + 5*time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.Log.Info("gamify serving", zap.String("addr", "http://"+addr),
			zap.Bool("metrics", d.Config.Telemetry.Prometheus),
			zap.String("sink", d.Config.Events.Sink))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return d.Engine.Ranker().Run(gctx, d.Config.Leaderboard.Interval.Duration)
	})
	g.Go(func() error {
		return d.sweep(gctx, d.Config.Achievements.SweepInterval.Duration)
	})
	g.Go(func() error {
		return d.Dispatcher.Run(gctx)
	})
	g.Go(func() error {
		d.Health.Run(gctx)
		return nil
	})

	err := g.Wait()
	d.Log.Info("gamify stopped")
	return err
}

// sweep expires in-progress achievements whose window has closed.
func (d *Daemon) sweep(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := d.Engine.ExpireAchievements(ctx)
			if err != nil {
				d.Log.Warn("achievement sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				d.Log.Info("achievements expired", zap.Int64("count", n))
			}
		}
	}
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
	_ = d.Log.Sync()
}
