package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// =============================================================================
// RECONCILIATION RUNS
// =============================================================================

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// ReconciliationRun tracks one reconciler invocation for audit and UI display.
type ReconciliationRun struct {
	ID          string
	Day         string
	Status      string
	Jobs        int
	Accrued     int
	PaidOut     int
	Skipped     int
	Failed      int
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
	Results     []ReconciliationResult
}

// ReconciliationResult is the per-job line of a run.
type ReconciliationResult struct {
	JobID       string
	OwnerID     string
	Outcome     string
	Reason      string
	Completions int
	Threshold   int
	RecordID    string
	Repaired    bool
	Error       string
}

// ErrRunNotFound is returned by GetReconciliationRun.
var ErrRunNotFound = errors.New("reconciliation run not found")

// SaveReconciliationRun upserts a run. Results are replaced when the run
// carries any.
func (s *Store) SaveReconciliationRun(ctx context.Context, run ReconciliationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var completedAt sql.NullString
	if run.CompletedAt != nil {
		completedAt = sql.NullString{String: run.CompletedAt.UTC().Format(timeLayout), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reconciliation_runs (id, day, status, jobs, accrued, paid_out, skipped, failed,
			error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			jobs = excluded.jobs,
			accrued = excluded.accrued,
			paid_out = excluded.paid_out,
			skipped = excluded.skipped,
			failed = excluded.failed,
			error = excluded.error,
			completed_at = excluded.completed_at
	`, run.ID, run.Day, run.Status, run.Jobs, run.Accrued, run.PaidOut, run.Skipped, run.Failed,
		nullString(run.Error), run.StartedAt.UTC().Format(timeLayout), completedAt)
	if err != nil {
		return err
	}

	if len(run.Results) > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM reconciliation_results WHERE run_id = ?`, run.ID); err != nil {
			return err
		}
		for _, r := range run.Results {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO reconciliation_results (run_id, job_id, owner_id, outcome, reason,
					completions, threshold, record_id, repaired, error)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, run.ID, r.JobID, r.OwnerID, r.Outcome, nullString(r.Reason), r.Completions,
				r.Threshold, nullString(r.RecordID), r.Repaired, nullString(r.Error))
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// ListReconciliationRuns returns the newest runs first, without results.
func (s *Store) ListReconciliationRuns(ctx context.Context, limit int) ([]ReconciliationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, day, status, jobs, accrued, paid_out, skipped, failed, error, started_at, completed_at
		FROM reconciliation_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ReconciliationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetReconciliationRun returns one run with its results.
func (s *Store) GetReconciliationRun(ctx context.Context, id string) (*ReconciliationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, day, status, jobs, accrued, paid_out, skipped, failed, error, started_at, completed_at
		FROM reconciliation_runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, owner_id, outcome, reason, completions, threshold, record_id, repaired, error
		FROM reconciliation_results WHERE run_id = ?
		ORDER BY rowid
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r                         ReconciliationResult
			reason, recordID, errText sql.NullString
		)
		if err := rows.Scan(&r.JobID, &r.OwnerID, &r.Outcome, &reason, &r.Completions,
			&r.Threshold, &recordID, &r.Repaired, &errText); err != nil {
			return nil, err
		}
		r.Reason = reason.String
		r.RecordID = recordID.String
		r.Error = errText.String
		run.Results = append(run.Results, r)
	}
	return &run, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (ReconciliationRun, error) {
	var (
		run                  ReconciliationRun
		errText, completedAt sql.NullString
		startedAt            string
	)
	if err := row.Scan(&run.ID, &run.Day, &run.Status, &run.Jobs, &run.Accrued, &run.PaidOut,
		&run.Skipped, &run.Failed, &errText, &startedAt, &completedAt); err != nil {
		return ReconciliationRun{}, err
	}
	run.Error = errText.String
	run.StartedAt = parseTime(startedAt)
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		run.CompletedAt = &t
	}
	return run, nil
}
