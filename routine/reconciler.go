/*
reconciler.go - Daily accrual and payout batch

PURPOSE:
  Evaluates every active routine job once per run. For each job the run
  either skips it, accrues one completion marker, or pays out: one income
  record, and the job's cycle is closed.

STATE MACHINE (per job, per run):
  Skip:   inactive | not due | already logged today | already paid today
  Accrue: due, not logged, completions+1 <  threshold -> append marker
  Payout: due, not logged, completions+1 >= threshold -> append marker,
          append income record, close cycle (one unit)

ATOMICITY:
  With a TxStore the three payout writes share one database transaction.
  Without one the writes run in order record -> marker -> close, and
  retries are made safe by:
  - the record idempotency key routine:<job>:<day>
  - LastPayoutDate == today short-circuit
  - repair: a payout record newer than LastPayoutDate means an earlier
    run stopped before closing the cycle; the cycle is closed first

FAILURES:
  - Listing active jobs fails: the run aborts with an error, no results
  - A job write fails: that job is reported Failed and left as it was;
    other jobs continue
  - Context canceled: jobs not yet started are reported as skipped and
    picked up by the next tick

CONCURRENCY:
  Jobs are independent and processed by up to Concurrency workers.
  Overlapping runs are not excluded by any lock; the unique
  (job, day) marker, the record idempotency key and the optimistic
  cycle check in ClosePayoutCycle are the safety nets.

SEE ALSO:
  - schedule.go: IsDue, RequiredCompletions, AlreadyLogged
  - api/scheduler.go: Triggers Run once per day
*/
package routine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/warp/life-planner/generic"
	"github.com/warp/life-planner/logger"
)

// =============================================================================
// OUTCOMES
// =============================================================================

type Outcome string

const (
	OutcomeSkipped Outcome = "skipped"
	OutcomeAccrued Outcome = "accrued"
	OutcomePaidOut Outcome = "paid_out"
	OutcomeFailed  Outcome = "failed"
)

type SkipReason string

const (
	SkipInactive      SkipReason = "inactive"
	SkipNotDue        SkipReason = "not_due"
	SkipAlreadyLogged SkipReason = "already_logged"
	SkipAlreadyPaid   SkipReason = "already_paid"
	SkipNotProcessed  SkipReason = "not_processed"
)

// JobResult is the outcome of one job in one run.
type JobResult struct {
	JobID       JobID
	OwnerID     generic.OwnerID
	JobName     string
	Outcome     Outcome
	SkipReason  SkipReason
	Completions int // markers in the open cycle after the run
	Threshold   int
	RecordID    generic.RecordID
	Repaired    bool // a cycle left open by an earlier run was closed first
	Err         error
}

// RunReport lists one result per active job. Results keep the order in
// which the store returned the jobs.
type RunReport struct {
	RunID      string
	Day        generic.Day
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []JobResult
}

// Count returns how many results have outcome o.
func (r *RunReport) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Failed returns only the failed results.
func (r *RunReport) Failed() []JobResult {
	var failed []JobResult
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			failed = append(failed, res)
		}
	}
	return failed
}

// Result returns the result for id.
func (r *RunReport) Result(id JobID) (JobResult, bool) {
	for _, res := range r.Results {
		if res.JobID == id {
			return res, true
		}
	}
	return JobResult{}, false
}

// FetchError is returned by Run when the active-job list cannot be read.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return "list active routine jobs: " + e.Err.Error() }
func (e *FetchError) Unwrap() error { return e.Err }

// JobError is the error of a failed JobResult. Stage is repair, accrue or
// payout.
type JobError struct {
	JobID JobID
	Stage string
	Err   error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("routine job %s: %s: %v", e.JobID, e.Stage, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

// =============================================================================
// RECONCILER
// =============================================================================

const defaultConcurrency = 4

type Reconciler struct {
	Store       Store
	Calendar    Calendar
	Concurrency int
	Log         zerolog.Logger
	Now         func() time.Time
}

func NewReconciler(store Store, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		Store:       store,
		Calendar:    CalendarGregorian,
		Concurrency: defaultConcurrency,
		Log:         log,
		Now:         time.Now,
	}
}

// Run reconciles all active jobs for today. today is the single canonical
// date for the whole batch.
func (r *Reconciler) Run(ctx context.Context, today generic.Day) (*RunReport, error) {
	return r.RunWithID(ctx, uuid.NewString(), today)
}

// RunWithID is Run with a caller-chosen run id, used when the run is
// persisted before it starts.
func (r *Reconciler) RunWithID(ctx context.Context, runID string, today generic.Day) (*RunReport, error) {
	report := &RunReport{
		RunID:     runID,
		Day:       today,
		StartedAt: r.now(),
	}
	log := logger.FromContext(ctx, r.Log).With().Str("run_id", report.RunID).Str("day", today.String()).Logger()

	jobs, err := r.Store.ListActiveJobs(ctx)
	if err != nil {
		log.Error().Err(err).Msg("reconcile: listing active jobs failed")
		return nil, &FetchError{Err: err}
	}

	report.Results = make([]JobResult, len(jobs))

	workers := r.Concurrency
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, job := range jobs {
		if ctx.Err() != nil {
			report.Results[i] = skipped(job, SkipNotProcessed)
			continue
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, job Job) {
			defer wg.Done()
			defer func() { <-sem }()
			report.Results[i] = r.Reconcile(ctx, job, today)
		}(i, job)
	}
	wg.Wait()

	report.FinishedAt = r.now()

	for _, res := range report.Results {
		ev := log.Info()
		if res.Outcome == OutcomeFailed {
			ev = log.Warn().Err(res.Err)
		}
		ev.Str("job_id", string(res.JobID)).
			Str("outcome", string(res.Outcome)).
			Str("reason", string(res.SkipReason)).
			Int("completions", res.Completions).
			Int("threshold", res.Threshold).
			Msg("reconcile: job")
	}
	log.Info().
		Int("jobs", len(report.Results)).
		Int("accrued", report.Count(OutcomeAccrued)).
		Int("paid_out", report.Count(OutcomePaidOut)).
		Int("skipped", report.Count(OutcomeSkipped)).
		Int("failed", report.Count(OutcomeFailed)).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("reconcile: run completed")

	return report, nil
}

// Reconcile applies the state machine to a single job.
func (r *Reconciler) Reconcile(ctx context.Context, job Job, today generic.Day) JobResult {
	if !job.Active {
		return skipped(job, SkipInactive)
	}

	repaired := false
	if _, transactional := r.Store.(TxStore); !transactional {
		var err error
		job, repaired, err = r.repairOpenCycle(ctx, job)
		if err != nil {
			return failed(job, "repair", err)
		}
	}

	res := r.evaluate(ctx, job, today)
	res.Repaired = repaired
	return res
}

func (r *Reconciler) evaluate(ctx context.Context, job Job, today generic.Day) JobResult {
	if !IsDue(job, today, r.Calendar) {
		return skipped(job, SkipNotDue)
	}
	if AlreadyLogged(job.Completions, today) {
		return skipped(job, SkipAlreadyLogged)
	}
	if job.PaidOutOn(today) {
		return skipped(job, SkipAlreadyPaid)
	}

	threshold := RequiredCompletions(job.Frequency, job.DaysOfWeek)
	count := len(job.Completions) + 1

	if count < threshold {
		err := r.Store.AppendCompletion(ctx, job.ID, job.Cycle, today)
		switch {
		case errors.Is(err, generic.ErrDuplicateCompletion):
			return skipped(job, SkipAlreadyLogged)
		case err != nil:
			return failed(job, "accrue", err)
		}
		res := result(job, OutcomeAccrued)
		res.Completions = count
		return res
	}

	rec := PayoutRecord(job, today)
	var err error
	if tx, ok := r.Store.(TxStore); ok {
		err = tx.WithTx(ctx, func(s Store) error {
			return payoutWrites(ctx, s, job, rec, today)
		})
	} else {
		err = r.payoutCompensated(ctx, job, rec, today)
	}

	switch {
	case errors.Is(err, generic.ErrDuplicateCompletion):
		return skipped(job, SkipAlreadyLogged)
	case errors.Is(err, generic.ErrDuplicateIdempotencyKey),
		errors.Is(err, generic.ErrConcurrentModification):
		return skipped(job, SkipAlreadyPaid)
	case err != nil:
		return failed(job, "payout", err)
	}

	res := result(job, OutcomePaidOut)
	res.Completions = 0
	res.RecordID = rec.ID
	return res
}

// payoutWrites is the transactional unit: marker, record, cycle close.
func payoutWrites(ctx context.Context, s Store, job Job, rec generic.FinancialRecord, today generic.Day) error {
	if err := s.AppendCompletion(ctx, job.ID, job.Cycle, today); err != nil {
		return err
	}
	if err := s.AppendRecord(ctx, rec); err != nil {
		return err
	}
	return s.ClosePayoutCycle(ctx, job.ID, job.Cycle, today)
}

// payoutCompensated runs the payout writes without a transaction. Each step
// tolerates having been done by an earlier, interrupted attempt.
func (r *Reconciler) payoutCompensated(ctx context.Context, job Job, rec generic.FinancialRecord, today generic.Day) error {
	if err := r.Store.AppendRecord(ctx, rec); err != nil && !errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
		return err
	}
	if err := r.Store.AppendCompletion(ctx, job.ID, job.Cycle, today); err != nil && !errors.Is(err, generic.ErrDuplicateCompletion) {
		return err
	}
	return r.Store.ClosePayoutCycle(ctx, job.ID, job.Cycle, today)
}

// repairOpenCycle closes a cycle whose payout record exists but whose reset
// never landed. Returns the job as it looks after the repair.
func (r *Reconciler) repairOpenCycle(ctx context.Context, job Job) (Job, bool, error) {
	latest, err := r.Store.LatestPayout(ctx, job.ID)
	if err != nil {
		return job, false, err
	}
	if latest == nil {
		return job, false, nil
	}
	if job.LastPayoutDate != nil && !latest.Date.After(*job.LastPayoutDate) {
		return job, false, nil
	}

	err = r.Store.ClosePayoutCycle(ctx, job.ID, job.Cycle, latest.Date)
	if err != nil && !errors.Is(err, generic.ErrConcurrentModification) {
		return job, false, err
	}

	paid := latest.Date
	job.Cycle++
	job.Completions = nil
	job.LastPayoutDate = &paid
	log := logger.FromContext(ctx, r.Log)
	log.Warn().
		Str("job_id", string(job.ID)).
		Str("payout_day", paid.String()).
		Msg("reconcile: closed cycle left open by an earlier run")
	return job, true, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// PayoutIdempotencyKey identifies the payout of job on day.
func PayoutIdempotencyKey(id JobID, day generic.Day) string {
	return "routine:" + string(id) + ":" + day.String()
}

// PayoutRecord builds the income record emitted when job pays out on day.
func PayoutRecord(job Job, day generic.Day) generic.FinancialRecord {
	amount := job.Earnings
	if amount.Currency == "" {
		amount.Currency = generic.DefaultCurrency
	}
	return generic.FinancialRecord{
		ID:             generic.RecordID(uuid.NewString()),
		OwnerID:        job.OwnerID,
		Type:           generic.RecordIncome,
		Amount:         amount,
		Description:    job.Name,
		Category:       generic.CategoryRoutineJob,
		Date:           day,
		RoutineJobID:   string(job.ID),
		IdempotencyKey: PayoutIdempotencyKey(job.ID, day),
		CreatedAt:      time.Now().UTC(),
	}
}

func (r *Reconciler) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func result(job Job, o Outcome) JobResult {
	return JobResult{
		JobID:       job.ID,
		OwnerID:     job.OwnerID,
		JobName:     job.Name,
		Outcome:     o,
		Completions: len(job.Completions),
		Threshold:   RequiredCompletions(job.Frequency, job.DaysOfWeek),
	}
}

func skipped(job Job, reason SkipReason) JobResult {
	res := result(job, OutcomeSkipped)
	res.SkipReason = reason
	return res
}

func failed(job Job, stage string, err error) JobResult {
	res := result(job, OutcomeFailed)
	res.Err = &JobError{JobID: job.ID, Stage: stage, Err: err}
	return res
}
