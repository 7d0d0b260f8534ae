package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8420 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8420)
	}
	if cfg.Badges.MaxPasses != 3 {
		t.Errorf("Badges.MaxPasses = %d, want 3", cfg.Badges.MaxPasses)
	}
	if cfg.Leaderboard.Interval.Duration != 5*time.Minute {
		t.Errorf("Leaderboard.Interval = %v, want 5m", cfg.Leaderboard.Interval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("GAMIFY_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[api]
port = 9000

[streak]
timezone = "America/New_York"

[leaderboard]
interval = "30s"
scopes = ["global", "scope:mit.edu"]
metrics = ["points", "streak"]

[events]
sink = "redis"
redis_addr = "redis:6379"

[activities.club_join]
points = 75
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile() error: %v", err)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, unset keys keep defaults", cfg.API.Host)
	}
	if cfg.Leaderboard.Interval.Duration != 30*time.Second {
		t.Errorf("Leaderboard.Interval = %v, want 30s", cfg.Leaderboard.Interval)
	}
	if len(cfg.Leaderboard.Scopes) != 2 {
		t.Errorf("Leaderboard.Scopes = %v", cfg.Leaderboard.Scopes)
	}
	if cfg.Location().String() != "America/New_York" {
		t.Errorf("Location() = %v", cfg.Location())
	}
	if cfg.Activities["club_join"].Points != 75 {
		t.Errorf("activities.club_join.points = %d, want 75", cfg.Activities["club_join"].Points)
	}
}

func TestLoadConfigFile_Missing(t *testing.T) {
	t.Setenv("GAMIFY_HOME", t.TempDir())
	cfg, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadConfigFile() error: %v", err)
	}
	if cfg.Events.Sink != "log" {
		t.Errorf("Events.Sink = %q, want log", cfg.Events.Sink)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := map[string]func(*Config){
		"port":     func(c *Config) { c.API.Port = 0 },
		"timezone": func(c *Config) { c.Streak.Timezone = "Mars/Olympus" },
		"sink":     func(c *Config) { c.Events.Sink = "kafka" },
		"interval": func(c *Config) { c.Leaderboard.Interval = Duration{} },
		"metric":   func(c *Config) { c.Leaderboard.Metrics = []string{"karma"} },
		"scope":    func(c *Config) { c.Leaderboard.Scopes = []string{"campus"} },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("GAMIFY_HOME", home)

	cfg := DefaultConfig()
	cfg.API.Port = 9100
	cfg.Achievements.SweepInterval = Duration{time.Minute}
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}

	got, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if got.API.Port != 9100 {
		t.Errorf("API.Port = %d, want 9100", got.API.Port)
	}
	if got.Achievements.SweepInterval.Duration != time.Minute {
		t.Errorf("SweepInterval = %v, want 1m", got.Achievements.SweepInterval)
	}
	if Home() != home {
		t.Errorf("Home() = %q, want %q", Home(), home)
	}
}
