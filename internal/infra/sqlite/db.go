// Package sqlite provides SQLite-based persistent storage for the
// gamification engine. Uses WAL mode for concurrent reads and crash-safe
// writes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// store carries the query methods shared by DB and Tx.
type store struct {
	q queryer
}

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	store
	db *sql.DB
}

// Tx is one storage transaction. All ledger mutations for an account unit
// run through a single Tx.
type Tx struct {
	store
	tx *sql.Tx
}

// Open creates or opens the SQLite database at dir/gamify.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "gamify.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer. With one connection a Tx holds it for its
	// whole lifetime, so code inside WithTx must only use the Tx.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{store: store{q: db}, db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// WithTx runs fn inside a transaction, committing on nil and rolling back
// on error or panic.
func (d *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Tx{store: store{q: sqlTx}, tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// ─── Accounts & ledger ─────────────────────────────────────────
		`CREATE TABLE IF NOT EXISTS accounts (
			id                   TEXT PRIMARY KEY,
			scope                TEXT NOT NULL DEFAULT '',
			total_points         INTEGER NOT NULL DEFAULT 0,
			lifetime_points      INTEGER NOT NULL DEFAULT 0,
			activity_points      INTEGER NOT NULL DEFAULT 0,
			social_points        INTEGER NOT NULL DEFAULT 0,
			leadership_points    INTEGER NOT NULL DEFAULT 0,
			academic_points      INTEGER NOT NULL DEFAULT 0,
			special_points       INTEGER NOT NULL DEFAULT 0,
			level                INTEGER NOT NULL DEFAULT 1,
			experience_points    INTEGER NOT NULL DEFAULT 0,
			points_to_next_level INTEGER NOT NULL DEFAULT 100,
			current_streak       INTEGER NOT NULL DEFAULT 0,
			longest_streak       INTEGER NOT NULL DEFAULT 0,
			last_activity_date   TEXT NOT NULL DEFAULT '',
			global_rank          INTEGER NOT NULL DEFAULT 0,
			scoped_rank          INTEGER NOT NULL DEFAULT 0,
			created_at           INTEGER NOT NULL,
			updated_at           INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_scope ON accounts(scope)`,

		// Append-only. balance_after is the running total including the row.
		`CREATE TABLE IF NOT EXISTS transactions (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id    TEXT NOT NULL REFERENCES accounts(id),
			amount        INTEGER NOT NULL,
			type          TEXT NOT NULL,
			category      TEXT NOT NULL DEFAULT '',
			description   TEXT NOT NULL DEFAULT '',
			related_type  TEXT NOT NULL DEFAULT '',
			related_id    TEXT NOT NULL DEFAULT '',
			balance_after INTEGER NOT NULL,
			created_at    INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_account ON transactions(account_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_created ON transactions(created_at)`,

		`CREATE TABLE IF NOT EXISTS activity_counts (
			account_id TEXT NOT NULL REFERENCES accounts(id),
			counter    TEXT NOT NULL,
			value      INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (account_id, counter)
		)`,

		// ─── Badges ────────────────────────────────────────────────────
		`CREATE TABLE IF NOT EXISTS badges (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			description   TEXT NOT NULL DEFAULT '',
			type          TEXT NOT NULL,
			difficulty    TEXT NOT NULL,
			requirement   TEXT NOT NULL,
			points_reward INTEGER NOT NULL DEFAULT 0,
			repeatable    BOOLEAN NOT NULL DEFAULT 0,
			active        BOOLEAN NOT NULL DEFAULT 1,
			hidden        BOOLEAN NOT NULL DEFAULT 0,
			total_earned  INTEGER NOT NULL DEFAULT 0,
			created_at    INTEGER NOT NULL
		)`,

		// seq is 0 for non-repeatable badges, so the unique key doubles as
		// the once-only guard.
		`CREATE TABLE IF NOT EXISTS badge_grants (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id TEXT NOT NULL REFERENCES accounts(id),
			badge_id   TEXT NOT NULL REFERENCES badges(id),
			seq        INTEGER NOT NULL DEFAULT 0,
			reason     TEXT NOT NULL DEFAULT '',
			earned_at  INTEGER NOT NULL,
			UNIQUE (account_id, badge_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_grants_account ON badge_grants(account_id)`,

		// ─── Achievements ──────────────────────────────────────────────
		`CREATE TABLE IF NOT EXISTS achievements (
			id                 TEXT PRIMARY KEY,
			name               TEXT NOT NULL,
			description        TEXT NOT NULL DEFAULT '',
			type               TEXT NOT NULL,
			difficulty         TEXT NOT NULL DEFAULT '',
			requirements       TEXT NOT NULL,
			points_reward      INTEGER NOT NULL DEFAULT 0,
			badge_id           TEXT NOT NULL DEFAULT '',
			starts_at          INTEGER NOT NULL DEFAULT 0,
			ends_at            INTEGER NOT NULL DEFAULT 0,
			active             BOOLEAN NOT NULL DEFAULT 1,
			featured           BOOLEAN NOT NULL DEFAULT 0,
			total_participants INTEGER NOT NULL DEFAULT 0,
			total_completed    INTEGER NOT NULL DEFAULT 0,
			created_at         INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS achievement_progress (
			account_id     TEXT NOT NULL REFERENCES accounts(id),
			achievement_id TEXT NOT NULL REFERENCES achievements(id),
			status         TEXT NOT NULL,
			progress       TEXT NOT NULL DEFAULT '{}',
			percentage     REAL NOT NULL DEFAULT 0,
			started_at     INTEGER NOT NULL,
			completed_at   INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (account_id, achievement_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_progress_status ON achievement_progress(status)`,

		// ─── Rankings ──────────────────────────────────────────────────
		`CREATE TABLE IF NOT EXISTS account_ranks (
			account_id TEXT NOT NULL REFERENCES accounts(id),
			scope      TEXT NOT NULL,
			metric     TEXT NOT NULL,
			rank       INTEGER NOT NULL,
			value      INTEGER NOT NULL,
			ranked_at  INTEGER NOT NULL,
			PRIMARY KEY (account_id, scope, metric)
		)`,

		// ─── Event outbox ──────────────────────────────────────────────
		`CREATE TABLE IF NOT EXISTS events (
			id           TEXT PRIMARY KEY,
			type         TEXT NOT NULL,
			account_id   TEXT NOT NULL,
			payload      TEXT NOT NULL DEFAULT '{}',
			created_at   INTEGER NOT NULL,
			attempts     INTEGER NOT NULL DEFAULT 0,
			last_error   TEXT NOT NULL DEFAULT '',
			delivered_at INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_pending ON events(delivered_at, created_at)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// Timestamps are stored as Unix nanoseconds; 0 means unset.
func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
