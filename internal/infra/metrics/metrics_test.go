package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func gatheredNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestActivityMetrics_Registered(t *testing.T) {
	ActivitiesRecorded.WithLabelValues("club_join").Inc()
	ActivitiesRejected.WithLabelValues("unknown_activity").Inc()
	ActivityLatency.Observe(0.002)

	names := gatheredNames(t)
	for _, name := range []string{
		"gamify_activities_recorded_total",
		"gamify_activities_rejected_total",
		"gamify_activity_latency_seconds",
	} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestLedgerMetrics(t *testing.T) {
	before := testutil.ToFloat64(PointsGranted.WithLabelValues("earned", "social"))
	PointsGranted.WithLabelValues("earned", "social").Add(50)
	after := testutil.ToFloat64(PointsGranted.WithLabelValues("earned", "social"))
	if after-before != 50 {
		t.Errorf("points granted delta = %v, want 50", after-before)
	}

	PointsSpent.Add(10)
	LevelUps.Inc()
	StreakMilestones.Inc()

	names := gatheredNames(t)
	for _, name := range []string{
		"gamify_points_granted_total",
		"gamify_points_spent_total",
		"gamify_level_ups_total",
		"gamify_streak_milestones_total",
	} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestRankingAndEventMetrics(t *testing.T) {
	RankingDuration.Observe(0.3)
	RankingFailures.WithLabelValues("global", "points").Inc()
	LeaderboardVersion.Set(4)
	EventsDelivered.WithLabelValues("level_up").Inc()
	EventsFailed.WithLabelValues("level_up").Inc()
	OutboxBacklog.Set(2)
	HealthCheckStatus.WithLabelValues("sqlite").Set(1)

	if v := testutil.ToFloat64(LeaderboardVersion); v != 4 {
		t.Errorf("leaderboard version = %v, want 4", v)
	}
	if v := testutil.ToFloat64(OutboxBacklog); v != 2 {
		t.Errorf("outbox backlog = %v, want 2", v)
	}
}
