package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/warp/life-planner/generic"
	"github.com/warp/life-planner/routine"
)

// =============================================================================
// JOB REPOSITORY (routine.JobRepository interface)
// =============================================================================

func (s *Store) CreateJob(ctx context.Context, job routine.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	days, err := json.Marshal(weekdayStrings(job.DaysOfWeek))
	if err != nil {
		return err
	}
	now := nowString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO routine_jobs (id, owner_id, name, earnings_value, earnings_currency,
			frequency, days_of_week, active, cycle, last_payout_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, ?, ?)
	`, job.ID, job.OwnerID, job.Name, job.Earnings.Value.String(), job.Earnings.Currency,
		job.Frequency, string(days), job.Active, now, now)
	return err
}

func (s *Store) GetJob(ctx context.Context, owner generic.OwnerID, id routine.JobID) (*routine.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs, err := queryJobs(ctx, s.db, "WHERE id = ? AND owner_id = ?", id, owner)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, generic.ErrJobNotFound
	}
	return &jobs[0], nil
}

func (s *Store) ListJobs(ctx context.Context, owner generic.OwnerID) ([]routine.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return queryJobs(ctx, s.db, "WHERE owner_id = ?", owner)
}

// UpdateJob writes user-editable fields only. cycle and last_payout_date
// belong to the reconciler and are left alone.
func (s *Store) UpdateJob(ctx context.Context, job routine.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	days, err := json.Marshal(weekdayStrings(job.DaysOfWeek))
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE routine_jobs
		SET name = ?, earnings_value = ?, earnings_currency = ?, frequency = ?,
			days_of_week = ?, active = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?
	`, job.Name, job.Earnings.Value.String(), job.Earnings.Currency, job.Frequency,
		string(days), job.Active, nowString(), job.ID, job.OwnerID)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, generic.ErrJobNotFound)
}

func (s *Store) DeleteJob(ctx context.Context, owner generic.OwnerID, id routine.JobID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM routine_jobs WHERE id = ? AND owner_id = ?`, id, owner)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, generic.ErrJobNotFound)
}

// =============================================================================
// RECONCILER STORE (routine.Store interface)
// =============================================================================

func (s *Store) ListActiveJobs(ctx context.Context) ([]routine.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listActiveJobs(ctx, s.db)
}

func (s *Store) AppendCompletion(ctx context.Context, jobID routine.JobID, cycle int, day generic.Day) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendCompletion(ctx, s.db, jobID, cycle, day)
}

func (s *Store) ClosePayoutCycle(ctx context.Context, jobID routine.JobID, cycle int, day generic.Day) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return closePayoutCycle(ctx, s.db, jobID, cycle, day)
}

func (s *Store) LatestPayout(ctx context.Context, jobID routine.JobID) (*generic.FinancialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return latestPayout(ctx, s.db, jobID)
}

// =============================================================================
// RECORD STORE (generic.RecordStore interface)
// =============================================================================

func (s *Store) AppendRecord(ctx context.Context, rec generic.FinancialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendRecord(ctx, s.db, rec)
}

func (s *Store) ListRecords(ctx context.Context, filter generic.RecordFilter) ([]generic.FinancialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRecords(ctx, s.db, filter)
}

func (s *Store) RecordExists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return recordExists(ctx, s.db, idempotencyKey)
}

// =============================================================================
// QUERIES (shared by Store and txStore)
// =============================================================================

func listActiveJobs(ctx context.Context, q querier) ([]routine.Job, error) {
	return queryJobs(ctx, q, "WHERE active = TRUE")
}

func appendCompletion(ctx context.Context, q querier, jobID routine.JobID, cycle int, day generic.Day) error {
	var exists int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM routine_jobs WHERE id = ?`, jobID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.ErrJobNotFound
	}
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO routine_completions (job_id, cycle, day, created_at)
		VALUES (?, ?, ?, ?)
	`, jobID, cycle, day.String(), nowString())
	if violates(err, "routine_completions") {
		return generic.ErrDuplicateCompletion
	}
	return err
}

// closePayoutCycle is an optimistic compare-and-set on cycle.
func closePayoutCycle(ctx context.Context, q querier, jobID routine.JobID, cycle int, day generic.Day) error {
	res, err := q.ExecContext(ctx, `
		UPDATE routine_jobs
		SET cycle = cycle + 1, last_payout_date = ?, updated_at = ?
		WHERE id = ? AND cycle = ?
	`, day.String(), nowString(), jobID, cycle)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = q.QueryRowContext(ctx, `SELECT 1 FROM routine_jobs WHERE id = ?`, jobID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.ErrJobNotFound
	}
	if err != nil {
		return err
	}
	return generic.ErrConcurrentModification
}

func latestPayout(ctx context.Context, q querier, jobID routine.JobID) (*generic.FinancialRecord, error) {
	recs, err := queryRecords(ctx, q, "WHERE routine_job_id = ? ORDER BY date DESC, created_at DESC LIMIT 1", string(jobID))
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

func appendRecord(ctx context.Context, q querier, rec generic.FinancialRecord) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO financial_records (id, owner_id, record_type, amount_value, amount_currency,
			description, category, date, task_id, routine_job_id, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.OwnerID, rec.Type, rec.Amount.Value.String(), rec.Amount.Currency,
		nullString(rec.Description), nullString(rec.Category), rec.Date.String(),
		nullString(rec.TaskID), nullString(rec.RoutineJobID), nullString(rec.IdempotencyKey),
		rec.CreatedAt.UTC().Format(timeLayout))
	if violates(err, "financial_records") && rec.IdempotencyKey != "" &&
		strings.Contains(err.Error(), "idempotency_key") {
		return generic.ErrDuplicateIdempotencyKey
	}
	return err
}

func listRecords(ctx context.Context, q querier, filter generic.RecordFilter) ([]generic.FinancialRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Type != "" {
		where = append(where, "record_type = ?")
		args = append(args, filter.Type)
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.RoutineJobID != "" {
		where = append(where, "routine_job_id = ?")
		args = append(args, filter.RoutineJobID)
	}
	if !filter.Range.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, filter.Range.From.String())
	}
	if !filter.Range.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, filter.Range.To.String())
	}

	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}
	clause += " ORDER BY date DESC, created_at DESC"
	if filter.Limit > 0 {
		clause += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	return queryRecords(ctx, q, clause, args...)
}

func recordExists(ctx context.Context, q querier, idempotencyKey string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM financial_records WHERE idempotency_key = ?
	`, idempotencyKey).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// =============================================================================
// ROW MAPPING
// =============================================================================

func queryJobs(ctx context.Context, q querier, where string, args ...any) ([]routine.Job, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, owner_id, name, earnings_value, earnings_currency, frequency,
			days_of_week, active, cycle, last_payout_date, created_at, updated_at
		FROM routine_jobs `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}

	var jobs []routine.Job
	for rows.Next() {
		var (
			job                   routine.Job
			value, currency, days string
			lastPayout            sql.NullString
			createdAt, updatedAt  string
		)
		if err := rows.Scan(&job.ID, &job.OwnerID, &job.Name, &value, &currency, &job.Frequency,
			&days, &job.Active, &job.Cycle, &lastPayout, &createdAt, &updatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		if job.Earnings, err = parseAmount(value, currency); err != nil {
			rows.Close()
			return nil, fmt.Errorf("job %s: earnings: %w", job.ID, err)
		}
		var tags []string
		if err := json.Unmarshal([]byte(days), &tags); err != nil {
			rows.Close()
			return nil, fmt.Errorf("job %s: days_of_week: %w", job.ID, err)
		}
		job.DaysOfWeek, _ = routine.NormalizeWeekdays(tags)
		job.LastPayoutDate = scanDay(lastPayout)
		job.CreatedAt = parseTime(createdAt)
		job.UpdatedAt = parseTime(updatedAt)
		jobs = append(jobs, job)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows must be closed before the next query: the in-memory database
	// runs on a single connection.
	for i := range jobs {
		completions, err := openCycleCompletions(ctx, q, jobs[i].ID, jobs[i].Cycle)
		if err != nil {
			return nil, err
		}
		jobs[i].Completions = completions
	}
	return jobs, nil
}

func openCycleCompletions(ctx context.Context, q querier, jobID routine.JobID, cycle int) ([]generic.Day, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT day FROM routine_completions
		WHERE job_id = ? AND cycle = ?
		ORDER BY day
	`, jobID, cycle)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []generic.Day
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		d, err := generic.ParseDay(s)
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

func queryRecords(ctx context.Context, q querier, clause string, args ...any) ([]generic.FinancialRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, owner_id, record_type, amount_value, amount_currency, description,
			category, date, task_id, routine_job_id, idempotency_key, created_at
		FROM financial_records `+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []generic.FinancialRecord
	for rows.Next() {
		var (
			rec                                    generic.FinancialRecord
			value, currency, date, createdAt       string
			desc, category, taskID, jobID, idemKey sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.Type, &value, &currency, &desc,
			&category, &date, &taskID, &jobID, &idemKey, &createdAt); err != nil {
			return nil, err
		}
		if rec.Amount, err = parseAmount(value, currency); err != nil {
			return nil, fmt.Errorf("record %s: %w", rec.ID, err)
		}
		rec.Description = desc.String
		rec.Category = category.String
		rec.Date, err = generic.ParseDay(date)
		if err != nil {
			return nil, err
		}
		rec.TaskID = taskID.String
		rec.RoutineJobID = jobID.String
		rec.IdempotencyKey = idemKey.String
		rec.CreatedAt = parseTime(createdAt)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func weekdayStrings(days []routine.Weekday) []string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, string(d))
	}
	return out
}
