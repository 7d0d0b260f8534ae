// Package metrics provides Prometheus metrics for the gamification engine:
// counters, gauges and histograms for activities, the points ledger,
// badges, achievements, ranking passes, event delivery and health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Activities ─────────────────────────────────────────────────────────────

// ActivitiesRecorded tracks accepted activities by type.
var ActivitiesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gamify",
	Name:      "activities_recorded_total",
	Help:      "Total activities accepted.",
}, []string{"type"})

// ActivitiesRejected tracks rejected activities by reason.
var ActivitiesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gamify",
	Name:      "activities_rejected_total",
	Help:      "Total activities rejected before any mutation.",
}, []string{"reason"})

// ActivityLatency tracks end-to-end RecordActivity duration.
var ActivityLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "gamify",
	Name:      "activity_latency_seconds",
	Help:      "RecordActivity duration in seconds, including cascades.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
})

// ─── Ledger ─────────────────────────────────────────────────────────────────

// PointsGranted tracks points granted by transaction type and category.
var PointsGranted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gamify",
	Name:      "points_granted_total",
	Help:      "Total points granted.",
}, []string{"type", "category"})

// PointsSpent tracks points actually spent (after clamping).
var PointsSpent = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "gamify",
	Name:      "points_spent_total",
	Help:      "Total points spent.",
})

// LevelUps tracks levels gained.
var LevelUps = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "gamify",
	Name:      "level_ups_total",
	Help:      "Total levels gained across all accounts.",
})

// StreakMilestones tracks streak milestones reached.
var StreakMilestones = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "gamify",
	Name:      "streak_milestones_total",
	Help:      "Total streak milestones reached.",
})

// ─── Badges & Achievements ──────────────────────────────────────────────────

// BadgesGranted tracks badge grants by badge.
var BadgesGranted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gamify",
	Name:      "badges_granted_total",
	Help:      "Total badges granted.",
}, []string{"badge"})

// RuleErrors tracks per-entity rule evaluation failures.
var RuleErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gamify",
	Name:      "rule_errors_total",
	Help:      "Badge or achievement evaluations skipped due to an error.",
}, []string{"kind"})

// AchievementsCompleted tracks completions by achievement.
var AchievementsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gamify",
	Name:      "achievements_completed_total",
	Help:      "Total achievements completed.",
}, []string{"achievement"})

// AchievementsExpired tracks progress rows expired by the sweep.
var AchievementsExpired = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "gamify",
	Name:      "achievements_expired_total",
	Help:      "Total in-progress achievements expired.",
})

// ─── Leaderboards ───────────────────────────────────────────────────────────

// RankingDuration tracks one full ranking pass.
var RankingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "gamify",
	Name:      "ranking_pass_seconds",
	Help:      "Duration of a full ranking pass.",
	Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
})

// RankingFailures tracks failed (scope, metric) rankings.
var RankingFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gamify",
	Name:      "ranking_failures_total",
	Help:      "Ranking failures per scope and metric.",
}, []string{"scope", "metric"})

// LeaderboardVersion is the latest published snapshot version.
var LeaderboardVersion = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "gamify",
	Name:      "leaderboard_version",
	Help:      "Version of the latest published leaderboard snapshot.",
})

// ─── Events ─────────────────────────────────────────────────────────────────

// EventsDelivered tracks events delivered by type.
var EventsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gamify",
	Name:      "events_delivered_total",
	Help:      "Total events delivered to the sink.",
}, []string{"type"})

// EventsFailed tracks failed delivery rounds by type.
var EventsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gamify",
	Name:      "events_failed_total",
	Help:      "Total failed event delivery rounds.",
}, []string{"type"})

// OutboxBacklog tracks undelivered events.
var OutboxBacklog = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "gamify",
	Name:      "outbox_backlog",
	Help:      "Number of undelivered events in the outbox.",
})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "gamify",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HealthRecoveries tracks auto-recovery attempts.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gamify",
	Name:      "health_recoveries_total",
	Help:      "Total auto-recovery attempts per check.",
}, []string{"check"})
