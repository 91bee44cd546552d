/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface of the planner using SQLite. The
  hosted deployment used a Postgres-based backend; the same schema applies
  there with minor dialect differences.

INTERFACES IMPLEMENTED:
  generic.RecordStore:    Financial record persistence (append-only)
  routine.TxStore:        Reconciler view of routine jobs (system role)
  routine.JobRepository:  Owner-scoped routine job CRUD (user role)
  planner.Store:          Habits, tasks, goals

KEY TABLES:
  routine_jobs:           One row per job, holds the open cycle number
  routine_completions:    Append-only completion markers (job, cycle, day)
  financial_records:      Immutable ledger
  habits / habit_completions / tasks / goals
  reconciliation_runs / reconciliation_results

INDEXES:
  - idx_completions_job_day: UNIQUE (job_id, day), no double logging
  - financial_records.idempotency_key UNIQUE, no double payout
  - idx_records_owner_date: record listing (hot path)

CONCURRENCY:
  Uses sync.RWMutex for thread-safety within the process. Across processes
  the unique indexes and the optimistic cycle check in ClosePayoutCycle
  guard against overlapping reconciler runs.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) and foreign keys on.

USAGE:
  store, err := sqlite.New("./data/planner.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - routine/store.go: Interface definitions for the reconciler
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/life-planner/generic"
	"github.com/warp/life-planner/routine"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Routine jobs (cycle = open accrual counter)
	CREATE TABLE IF NOT EXISTS routine_jobs (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		earnings_value TEXT NOT NULL,
		earnings_currency TEXT NOT NULL,
		frequency TEXT NOT NULL,
		days_of_week TEXT NOT NULL DEFAULT '[]',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		cycle INTEGER NOT NULL DEFAULT 0,
		last_payout_date TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_routine_jobs_owner
		ON routine_jobs(owner_id);
	CREATE INDEX IF NOT EXISTS idx_routine_jobs_active
		ON routine_jobs(active);

	-- Completion markers (append-only; payout closes the cycle)
	CREATE TABLE IF NOT EXISTS routine_completions (
		job_id TEXT NOT NULL REFERENCES routine_jobs(id) ON DELETE CASCADE,
		cycle INTEGER NOT NULL,
		day TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: one marker per job per calendar day
	CREATE UNIQUE INDEX IF NOT EXISTS idx_completions_job_day
		ON routine_completions(job_id, day);
	CREATE INDEX IF NOT EXISTS idx_completions_job_cycle
		ON routine_completions(job_id, cycle);

	-- Financial records (immutable ledger)
	CREATE TABLE IF NOT EXISTS financial_records (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		record_type TEXT NOT NULL,
		amount_value TEXT NOT NULL,
		amount_currency TEXT NOT NULL,
		description TEXT,
		category TEXT,
		date TEXT NOT NULL,
		task_id TEXT,
		routine_job_id TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_owner_date
		ON financial_records(owner_id, date DESC);
	CREATE INDEX IF NOT EXISTS idx_records_routine_job
		ON financial_records(routine_job_id, date DESC) WHERE routine_job_id IS NOT NULL;

	-- Habits (user-mutable completions)
	CREATE TABLE IF NOT EXISTS habits (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_habits_owner
		ON habits(owner_id);

	CREATE TABLE IF NOT EXISTS habit_completions (
		habit_id TEXT NOT NULL REFERENCES habits(id) ON DELETE CASCADE,
		day TEXT NOT NULL,
		UNIQUE(habit_id, day)
	);

	-- Tasks
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		priority TEXT NOT NULL,
		due_date TEXT,
		goal_id TEXT,
		reward_value TEXT,
		reward_currency TEXT,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		completed_on TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_owner
		ON tasks(owner_id);

	-- Goals
	CREATE TABLE IF NOT EXISTS goals (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		target_date TEXT,
		progress INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_goals_owner
		ON goals(owner_id);

	-- Reconciliation runs (one row per reconciler invocation)
	CREATE TABLE IF NOT EXISTS reconciliation_runs (
		id TEXT PRIMARY KEY,
		day TEXT NOT NULL,
		status TEXT NOT NULL,
		jobs INTEGER NOT NULL DEFAULT 0,
		accrued INTEGER NOT NULL DEFAULT 0,
		paid_out INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_reconciliation_runs_day
		ON reconciliation_runs(day);

	CREATE TABLE IF NOT EXISTS reconciliation_results (
		run_id TEXT NOT NULL REFERENCES reconciliation_runs(id) ON DELETE CASCADE,
		job_id TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		outcome TEXT NOT NULL,
		reason TEXT,
		completions INTEGER NOT NULL,
		threshold INTEGER NOT NULL,
		record_id TEXT,
		repaired BOOLEAN NOT NULL DEFAULT FALSE,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_reconciliation_results_run
		ON reconciliation_results(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (routine.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store routine.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore runs every call on the open transaction. The parent's lock is
// held by WithTx, so nothing here locks.
type txStore struct {
	q querier
}

func (ts *txStore) ListActiveJobs(ctx context.Context) ([]routine.Job, error) {
	return listActiveJobs(ctx, ts.q)
}

func (ts *txStore) AppendCompletion(ctx context.Context, jobID routine.JobID, cycle int, day generic.Day) error {
	return appendCompletion(ctx, ts.q, jobID, cycle, day)
}

func (ts *txStore) ClosePayoutCycle(ctx context.Context, jobID routine.JobID, cycle int, day generic.Day) error {
	return closePayoutCycle(ctx, ts.q, jobID, cycle, day)
}

func (ts *txStore) LatestPayout(ctx context.Context, jobID routine.JobID) (*generic.FinancialRecord, error) {
	return latestPayout(ctx, ts.q, jobID)
}

func (ts *txStore) AppendRecord(ctx context.Context, rec generic.FinancialRecord) error {
	return appendRecord(ctx, ts.q, rec)
}

func (ts *txStore) ListRecords(ctx context.Context, filter generic.RecordFilter) ([]generic.FinancialRecord, error) {
	return listRecords(ctx, ts.q, filter)
}

func (ts *txStore) RecordExists(ctx context.Context, idempotencyKey string) (bool, error) {
	return recordExists(ctx, ts.q, idempotencyKey)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"reconciliation_results", "reconciliation_runs",
		"routine_completions", "routine_jobs", "financial_records",
		"habit_completions", "habits", "tasks", "goals",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDay(d *generic.Day) sql.NullString {
	if d == nil || d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func scanDay(ns sql.NullString) *generic.Day {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	d, err := generic.ParseDay(ns.String)
	if err != nil {
		return nil
	}
	return &d
}

func parseAmount(value, currency string) (generic.Amount, error) {
	a, err := generic.ParseAmount(value, generic.Currency(currency))
	if err != nil {
		return generic.Amount{}, fmt.Errorf("stored amount %q: %w", value, err)
	}
	return a, nil
}

const timeLayout = time.RFC3339Nano

func nowString() string {
	return time.Now().UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func violates(err error, table string) bool {
	return isUniqueConstraintError(err) && strings.Contains(err.Error(), table+".")
}

func affectedOrNotFound(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
