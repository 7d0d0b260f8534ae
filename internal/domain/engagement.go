package domain

import "time"

// ─── Achievement Types ──────────────────────────────────────────────────────

// AchievementType describes how an achievement is offered.
type AchievementType string

const (
	AchievementMilestone AchievementType = "milestone"
	AchievementChallenge AchievementType = "challenge"
	AchievementSeasonal  AchievementType = "seasonal"
	AchievementSpecial   AchievementType = "special"
)

// Requirement is one counter target inside an achievement. Weight defaults
// to 1 when zero.
type Requirement struct {
	Counter string  `json:"counter" toml:"counter"`
	Target  int64   `json:"target" toml:"target"`
	Weight  float64 `json:"weight,omitempty" toml:"weight,omitempty"`
}

func (r Requirement) weight() float64 {
	if r.Weight <= 0 {
		return 1
	}
	return r.Weight
}

// Achievement is a multi-requirement goal with an optional time window.
// A zero StartsAt or EndsAt leaves that side of the window open.
type Achievement struct {
	ID                string          `json:"id" toml:"id"`
	Name              string          `json:"name" toml:"name"`
	Description       string          `json:"description" toml:"description"`
	Type              AchievementType `json:"type" toml:"type"`
	Difficulty        Difficulty      `json:"difficulty" toml:"difficulty"`
	Requirements      []Requirement   `json:"requirements" toml:"requirements"`
	PointsReward      int64           `json:"points_reward" toml:"points_reward"`
	BadgeID           string          `json:"badge_id,omitempty" toml:"badge_id,omitempty"`
	StartsAt          time.Time       `json:"starts_at,omitempty" toml:"starts_at,omitempty"`
	EndsAt            time.Time       `json:"ends_at,omitempty" toml:"ends_at,omitempty"`
	Active            bool            `json:"active" toml:"active"`
	Featured          bool            `json:"featured" toml:"featured"`
	TotalParticipants int64           `json:"total_participants" toml:"-"`
	TotalCompleted    int64           `json:"total_completed" toml:"-"`
	CreatedAt         time.Time       `json:"created_at" toml:"-"`
}

// AvailableAt reports whether the achievement accepts progress at t.
func (a Achievement) AvailableAt(t time.Time) bool {
	if !a.Active {
		return false
	}
	if !a.StartsAt.IsZero() && t.Before(a.StartsAt) {
		return false
	}
	if !a.EndsAt.IsZero() && !t.Before(a.EndsAt) {
		return false
	}
	return true
}

// Touches reports whether any counter in signal is one of the requirements.
func (a Achievement) Touches(signal map[string]int64) bool {
	for _, r := range a.Requirements {
		if delta, ok := signal[r.Counter]; ok && delta > 0 {
			return true
		}
	}
	return false
}

// Tracks reports whether counter is one of the requirements.
func (a Achievement) Tracks(counter string) bool {
	for _, r := range a.Requirements {
		if r.Counter == counter {
			return true
		}
	}
	return false
}

// Percentage is the weighted share of requirements already met (0–100).
// Counters only grow, so the result never decreases for a given
// achievement definition.
func (a Achievement) Percentage(progress map[string]int64) float64 {
	if len(a.Requirements) == 0 {
		return 0
	}
	var met, total float64
	for _, r := range a.Requirements {
		w := r.weight()
		total += w
		if progress[r.Counter] >= r.Target {
			met += w
		}
	}
	if total == 0 {
		return 0
	}
	pct := met / total * 100.0
	if pct > 100 {
		pct = 100
	}
	return pct
}

// CompletionRate is total_completed over total_participants (0–100).
func (a Achievement) CompletionRate() float64 {
	if a.TotalParticipants == 0 {
		return 0
	}
	return float64(a.TotalCompleted) / float64(a.TotalParticipants) * 100.0
}

// ProgressStatus is the per-(account, achievement) state.
type ProgressStatus string

const (
	StatusInProgress ProgressStatus = "in_progress"
	StatusCompleted  ProgressStatus = "completed"
	StatusFailed     ProgressStatus = "failed"
	StatusExpired    ProgressStatus = "expired"
)

// Terminal reports whether no further transitions are allowed.
func (s ProgressStatus) Terminal() bool {
	return s != StatusInProgress
}

// AchievementProgress tracks one account's run at one achievement.
type AchievementProgress struct {
	AccountID     string           `json:"account_id"`
	AchievementID string           `json:"achievement_id"`
	Status        ProgressStatus   `json:"status"`
	Progress      map[string]int64 `json:"progress"`
	Percentage    float64          `json:"progress_percentage"`
	StartedAt     time.Time        `json:"started_at"`
	CompletedAt   time.Time        `json:"completed_at,omitempty"`
}

// ─── Events ─────────────────────────────────────────────────────────────────

// EventType names an outbound notification.
type EventType string

const (
	EventBadgeEarned          EventType = "badge_earned"
	EventLevelUp              EventType = "level_up"
	EventAchievementCompleted EventType = "achievement_completed"
	EventStreakMilestone      EventType = "streak_milestone"
)

// Event is delivered at least once; consumers de-duplicate on ID.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	AccountID string         `json:"account_id"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
	Attempts  int            `json:"attempts"`
}

// ─── Stats ──────────────────────────────────────────────────────────────────

// PlatformStats aggregates engine-wide totals.
type PlatformStats struct {
	Accounts              int64 `json:"accounts"`
	PointsAwarded         int64 `json:"points_awarded"`
	PointsSpent           int64 `json:"points_spent"`
	BadgesGranted         int64 `json:"badges_granted"`
	AchievementsCompleted int64 `json:"achievements_completed"`
	PendingEvents         int64 `json:"pending_events"`
}
