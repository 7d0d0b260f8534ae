// Package daemon manages the gamify service lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/campusclub/gamify/internal/app/activity"
	"github.com/campusclub/gamify/internal/domain"
	"github.com/campusclub/gamify/internal/logging"
)

// Config holds all daemon configuration.
type Config struct {
	API          APIConfig                `toml:"api"`
	Storage      StorageConfig            `toml:"storage"`
	Logging      logging.Config           `toml:"logging"`
	Streak       StreakConfig             `toml:"streak"`
	Badges       BadgesConfig             `toml:"badges"`
	Leaderboard  LeaderboardConfig        `toml:"leaderboard"`
	Achievements AchievementsConfig       `toml:"achievements"`
	Events       EventsConfig             `toml:"events"`
	Telemetry    TelemetryConfig          `toml:"telemetry"`
	Catalog      CatalogConfig            `toml:"catalog"`
	Activities   map[string]activity.Spec `toml:"activities"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	CORSOrigins    []string `toml:"cors_origins"`
	RequestTimeout Duration `toml:"request_timeout"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	Dir string `toml:"dir"`
}

// StreakConfig defines what a streak day is.
type StreakConfig struct {
	Timezone string `toml:"timezone"`
}

// BadgesConfig bounds the badge reward cascade.
type BadgesConfig struct {
	MaxPasses int `toml:"max_passes"`
}

// LeaderboardConfig controls the ranking schedule.
type LeaderboardConfig struct {
	Interval   Duration `toml:"interval"`
	Scopes     []string `toml:"scopes"`
	Discover   bool     `toml:"discover"` // also rank every scope found on accounts
	Metrics    []string `toml:"metrics"`
	TopN       int      `toml:"top_n"`
	MaxWorkers int      `toml:"max_workers"`
}

// AchievementsConfig controls the expiry sweep.
type AchievementsConfig struct {
	SweepInterval Duration `toml:"sweep_interval"`
}

// EventsConfig controls outbox delivery.
type EventsConfig struct {
	Sink          string   `toml:"sink"` // log, redis or both
	RedisAddr     string   `toml:"redis_addr"`
	RedisPassword string   `toml:"redis_password"`
	RedisDB       int      `toml:"redis_db"`
	RedisChannel  string   `toml:"redis_channel"`
	PollInterval  Duration `toml:"poll_interval"`
	BatchSize     int      `toml:"batch_size"`
	MaxAttempts   int      `toml:"max_attempts"`
	MaxBacklog    int64    `toml:"max_backlog"`
}

// TelemetryConfig controls metrics and health.
type TelemetryConfig struct {
	Prometheus     bool     `toml:"prometheus"`
	HealthInterval Duration `toml:"health_interval"`
}

// CatalogConfig points at an optional badge/achievement catalog file. An
// empty file means the built-in catalog.
type CatalogConfig struct {
	File string `toml:"file"`
}

// Duration is a time.Duration written as "30s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	homeDir := gamifyHome()
	log := logging.DefaultConfig()
	log.File = filepath.Join(homeDir, "gamify.log")
	return Config{
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           8420,
			CORSOrigins:    []string{"*"},
			RequestTimeout: Duration{30 * time.Second},
		},
		Storage: StorageConfig{
			Dir: homeDir,
		},
		Logging: log,
		Streak: StreakConfig{
			Timezone: "UTC",
		},
		Badges: BadgesConfig{
			MaxPasses: 3,
		},
		Leaderboard: LeaderboardConfig{
			Interval:   Duration{5 * time.Minute},
			Scopes:     []string{"global"},
			Discover:   true,
			Metrics:    []string{"points", "level", "streak", "badge_count"},
			TopN:       100,
			MaxWorkers: 4,
		},
		Achievements: AchievementsConfig{
			SweepInterval: Duration{10 * time.Minute},
		},
		Events: EventsConfig{
			Sink:         "log",
			RedisAddr:    "127.0.0.1:6379",
			RedisChannel: "gamify:events",
			PollInterval: Duration{2 * time.Second},
			BatchSize:    100,
			MaxAttempts:  10,
			MaxBacklog:   10_000,
		},
		Telemetry: TelemetryConfig{
			Prometheus:     true,
			HealthInterval: Duration{60 * time.Second},
		},
	}
}

// Validate rejects settings the daemon cannot start with.
func (c Config) Validate() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	if _, err := time.LoadLocation(c.Streak.Timezone); err != nil {
		return fmt.Errorf("streak.timezone: %w", err)
	}
	switch c.Events.Sink {
	case "log", "redis", "both":
	default:
		return fmt.Errorf("events.sink %q: want log, redis or both", c.Events.Sink)
	}
	for name, d := range map[string]Duration{
		"leaderboard.interval":        c.Leaderboard.Interval,
		"achievements.sweep_interval": c.Achievements.SweepInterval,
		"events.poll_interval":        c.Events.PollInterval,
	} {
		if d.Duration <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	for _, m := range c.Leaderboard.Metrics {
		if !domain.Metric(m).Valid() {
			return fmt.Errorf("leaderboard.metrics: %w: %q", domain.ErrUnknownMetric, m)
		}
	}
	for _, s := range c.Leaderboard.Scopes {
		if _, err := domain.ParseScope(s); err != nil {
			return fmt.Errorf("leaderboard.scopes: %w", err)
		}
	}
	if _, err := activity.NewMapper(c.Activities); err != nil {
		return err
	}
	return nil
}

// Location returns the streak time zone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Streak.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoadConfig reads config from ~/.gamify/config.toml, falling back to
// defaults.
func LoadConfig() (Config, error) {
	return LoadConfigFile(filepath.Join(gamifyHome(), "config.toml"))
}

// LoadConfigFile reads config from path. A missing file yields defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes the config to ~/.gamify/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(gamifyHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// gamifyHome returns the data directory.
func gamifyHome() string {
	if env := os.Getenv("GAMIFY_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".gamify")
}

// Home is exported for use by other packages.
func Home() string {
	return gamifyHome()
}
