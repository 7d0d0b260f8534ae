// Package leaderboard computes ranked boards per (scope, metric) in batch
// passes and publishes them as immutable, versioned snapshots.
package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/campusclub/gamify/internal/domain"
	"github.com/campusclub/gamify/internal/infra/metrics"
	"github.com/campusclub/gamify/internal/infra/sqlite"
)

// Job is one (scope, metric) pair to rank.
type Job struct {
	Scope  domain.Scope
	Metric domain.Metric
}

func (j Job) key() string { return string(j.Scope) + "|" + string(j.Metric) }

// Snapshot is the published result of a pass. It is never mutated after
// being stored.
type Snapshot struct {
	Version     int64
	GeneratedAt time.Time
	Boards      map[string]domain.Leaderboard
	Errors      map[string]string
}

// Board looks up one leaderboard.
func (s *Snapshot) Board(scope domain.Scope, metric domain.Metric) (domain.Leaderboard, bool) {
	b, ok := s.Boards[Job{Scope: scope, Metric: metric}.key()]
	return b, ok
}

// Config controls which boards a pass produces.
type Config struct {
	Metrics    []domain.Metric
	Scopes     []string // group names ranked in addition to discovered ones
	Discover   bool     // rank every scope present on accounts
	TopN       int      // entries kept per published board; 0 keeps all
	MaxWorkers int
}

// Ranker runs ranking passes.
type Ranker struct {
	db   *sqlite.DB
	cfg  Config
	log  *zap.Logger
	now  domain.Clock
	pass sync.Mutex
	snap atomic.Pointer[Snapshot]
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithClock overrides wall time for snapshot and rank timestamps.
func WithClock(c domain.Clock) Option {
	return func(r *Ranker) { r.now = c }
}

// NewRanker creates a ranker with an empty version-0 snapshot.
func NewRanker(db *sqlite.DB, cfg Config, log *zap.Logger, opts ...Option) *Ranker {
	if len(cfg.Metrics) == 0 {
		cfg.Metrics = domain.Metrics()
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	r := &Ranker{db: db, cfg: cfg, log: log, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	r.snap.Store(&Snapshot{
		Boards: map[string]domain.Leaderboard{},
		Errors: map[string]string{},
	})
	return r
}

// Latest returns the current snapshot.
func (r *Ranker) Latest() *Snapshot { return r.snap.Load() }

// Leaderboard returns up to limit entries of the latest published board.
// A pair that has never been ranked yields an empty board.
func (r *Ranker) Leaderboard(scope domain.Scope, metric domain.Metric, limit int) (domain.Leaderboard, error) {
	if !metric.Valid() {
		return domain.Leaderboard{}, fmt.Errorf("%w: %q", domain.ErrUnknownMetric, metric)
	}
	snap := r.Latest()
	b, ok := snap.Board(scope, metric)
	if !ok {
		return domain.Leaderboard{Scope: scope, Metric: metric, Version: snap.Version}, nil
	}
	if limit > 0 && len(b.Entries) > limit {
		b.Entries = b.Entries[:limit]
	}
	return b, nil
}

// Rank computes the full ordering for one pair from a storage snapshot.
// It writes nothing.
func (r *Ranker) Rank(ctx context.Context, scope domain.Scope, metric domain.Metric) ([]domain.LeaderboardEntry, error) {
	if !metric.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownMetric, metric)
	}
	rows, err := r.db.RankingRows(ctx, scope.Group())
	if err != nil {
		return nil, err
	}
	return Order(rows, metric), nil
}

// Order sorts rows by metric descending, then the metric's secondary
// value descending, then account age, then account id.
func Order(rows []sqlite.RankingRow, metric domain.Metric) []domain.LeaderboardEntry {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		av, as := values(a, metric)
		bv, bs := values(b, metric)
		if av != bv {
			return av > bv
		}
		if as != bs {
			return as > bs
		}
		if a.CreatedAtNanos != b.CreatedAtNanos {
			return a.CreatedAtNanos < b.CreatedAtNanos
		}
		return a.AccountID < b.AccountID
	})

	out := make([]domain.LeaderboardEntry, len(rows))
	for i, row := range rows {
		v, s := values(row, metric)
		out[i] = domain.LeaderboardEntry{Rank: i + 1, AccountID: row.AccountID, Value: v, Secondary: s}
	}
	return out
}

func values(r sqlite.RankingRow, m domain.Metric) (primary, secondary int64) {
	switch m {
	case domain.MetricLevel:
		return int64(r.Level), r.ExperiencePoints
	case domain.MetricBadgeCount:
		return r.BadgeCount, r.TotalPoints
	case domain.MetricStreak:
		return int64(r.CurrentStreak), int64(r.LongestStreak)
	default:
		return r.TotalPoints, int64(r.Level)
	}
}

// Jobs lists the pairs a pass will rank.
func (r *Ranker) Jobs(ctx context.Context) ([]Job, error) {
	scopes := []domain.Scope{domain.ScopeGlobal}
	seen := map[string]bool{}
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		scopes = append(scopes, domain.GroupScope(name))
	}
	for _, s := range r.cfg.Scopes {
		add(s)
	}
	if r.cfg.Discover {
		names, err := r.db.ListScopes(ctx)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			add(n)
		}
	}

	jobs := make([]Job, 0, len(scopes)*len(r.cfg.Metrics))
	for _, s := range scopes {
		for _, m := range r.cfg.Metrics {
			jobs = append(jobs, Job{Scope: s, Metric: m})
		}
	}
	return jobs, nil
}

type jobResult struct {
	job     Job
	entries []domain.LeaderboardEntry
	err     error
}

// RunPass ranks every job concurrently, writes ranks back and publishes a
// new snapshot. A failed pair keeps its previous board and records the
// error; other pairs are unaffected. Boards of pairs no longer ranked are
// dropped, and ranks for scopes an account has left are cleared.
func (r *Ranker) RunPass(ctx context.Context) (*Snapshot, error) {
	r.pass.Lock()
	defer r.pass.Unlock()

	start := time.Now()
	jobs, err := r.Jobs(ctx)
	if err != nil {
		return r.Latest(), err
	}

	p := pool.NewWithResults[jobResult]().WithMaxGoroutines(r.cfg.MaxWorkers)
	for _, job := range jobs {
		job := job
		p.Go(func() jobResult {
			entries, err := r.Rank(ctx, job.Scope, job.Metric)
			if err == nil {
				r.writeBack(ctx, job, entries)
			}
			return jobResult{job: job, entries: entries, err: err}
		})
	}
	results := p.Wait()

	prev := r.Latest()
	next := &Snapshot{
		Version:     prev.Version + 1,
		GeneratedAt: r.now(),
		Boards:      make(map[string]domain.Leaderboard, len(jobs)),
		Errors:      make(map[string]string),
	}
	var groups []string
	seen := map[string]bool{}
	for _, res := range results {
		k := res.job.key()
		if g := res.job.Scope.Group(); g != "" && !seen[g] {
			seen[g] = true
			groups = append(groups, g)
		}
		if res.err != nil {
			if b, ok := prev.Boards[k]; ok {
				next.Boards[k] = b
			}
			next.Errors[k] = res.err.Error()
			metrics.RankingFailures.WithLabelValues(string(res.job.Scope), string(res.job.Metric)).Inc()
			r.log.Warn("ranking failed",
				zap.String("scope", string(res.job.Scope)),
				zap.String("metric", string(res.job.Metric)),
				zap.Error(res.err))
			continue
		}
		entries := res.entries
		if r.cfg.TopN > 0 && len(entries) > r.cfg.TopN {
			entries = entries[:r.cfg.TopN]
		}
		next.Boards[k] = domain.Leaderboard{
			Scope:       res.job.Scope,
			Metric:      res.job.Metric,
			Version:     next.Version,
			GeneratedAt: next.GeneratedAt,
			Entries:     entries,
		}
	}

	if err := r.db.PruneRanks(ctx, groups); err != nil {
		r.log.Warn("rank prune failed", zap.Error(err))
	}

	r.snap.Store(next)
	metrics.LeaderboardVersion.Set(float64(next.Version))
	metrics.RankingDuration.Observe(time.Since(start).Seconds())
	r.log.Debug("ranking pass complete",
		zap.Int64("version", next.Version),
		zap.Int("jobs", len(jobs)),
		zap.Int("failures", len(next.Errors)))
	return next, nil
}

// writeBack persists ranks per account. Failures are logged and do not
// affect other accounts.
func (r *Ranker) writeBack(ctx context.Context, job Job, entries []domain.LeaderboardEntry) {
	at := r.now()
	for _, e := range entries {
		var err error
		switch {
		case job.Metric != domain.MetricPoints:
		case job.Scope == domain.ScopeGlobal:
			err = r.db.SetGlobalRank(ctx, e.AccountID, e.Rank)
		default:
			err = r.db.SetScopedRank(ctx, e.AccountID, e.Rank)
		}
		if err == nil {
			err = r.db.UpsertRank(ctx, domain.RankRecord{
				AccountID: e.AccountID,
				Scope:     job.Scope,
				Metric:    job.Metric,
				Rank:      e.Rank,
				Value:     e.Value,
				RankedAt:  at,
			})
		}
		if err != nil {
			r.log.Warn("rank write-back failed",
				zap.String("account_id", e.AccountID),
				zap.String("scope", string(job.Scope)),
				zap.String("metric", string(job.Metric)),
				zap.Error(err))
		}
	}
}

// Run executes a pass immediately and then every interval until ctx is
// done.
func (r *Ranker) Run(ctx context.Context, interval time.Duration) error {
	if _, err := r.RunPass(ctx); err != nil {
		r.log.Warn("ranking pass failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.RunPass(ctx); err != nil {
				r.log.Warn("ranking pass failed", zap.Error(err))
			}
		}
	}
}
