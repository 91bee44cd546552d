package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/life-planner/generic"
	"github.com/warp/life-planner/planner"
	"github.com/warp/life-planner/routine"
	"github.com/warp/life-planner/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func weeklyJob(id string) routine.Job {
	return routine.Job{
		ID:         routine.JobID(id),
		OwnerID:    "user-1",
		Name:       "teaching",
		Earnings:   generic.NewAmountFromInt(100000, generic.CurrencyIRR),
		Frequency:  routine.FrequencyWeekly,
		DaysOfWeek: []routine.Weekday{routine.Saturday, routine.Monday},
		Active:     true,
	}
}

func payout(jobID string, day string) generic.FinancialRecord {
	d := generic.MustParseDay(day)
	return generic.FinancialRecord{
		ID:             generic.RecordID("rec-" + jobID + "-" + day),
		OwnerID:        "user-1",
		Type:           generic.RecordIncome,
		Amount:         generic.NewAmountFromInt(100000, generic.CurrencyIRR),
		Description:    "teaching",
		Category:       generic.CategoryRoutineJob,
		Date:           d,
		RoutineJobID:   jobID,
		IdempotencyKey: routine.PayoutIdempotencyKey(routine.JobID(jobID), d),
		CreatedAt:      time.Now(),
	}
}

// =============================================================================
// ROUTINE JOBS
// =============================================================================

func TestJobs_OwnerScopedCRUD(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	// GIVEN: a job owned by user-1
	require.NoError(t, s.CreateJob(ctx, weeklyJob("job-1")))

	// THEN: user-1 sees it with weekdays round-tripped, user-2 does not
	job, err := s.GetJob(ctx, "user-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, []routine.Weekday{routine.Saturday, routine.Monday}, job.DaysOfWeek)
	assert.True(t, job.Earnings.Equal(generic.NewAmountFromInt(100000, generic.CurrencyIRR)))
	assert.Nil(t, job.LastPayoutDate)

	_, err = s.GetJob(ctx, "user-2", "job-1")
	assert.ErrorIs(t, err, generic.ErrJobNotFound)
	assert.ErrorIs(t, s.DeleteJob(ctx, "user-2", "job-1"), generic.ErrJobNotFound)

	// WHEN: user-1 deactivates and renames it
	job.Active = false
	job.Name = "tutoring"
	require.NoError(t, s.UpdateJob(ctx, *job))

	jobs, err := s.ListJobs(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.False(t, jobs[0].Active)
	assert.Equal(t, "tutoring", jobs[0].Name)

	require.NoError(t, s.DeleteJob(ctx, "user-1", "job-1"))
	jobs, err = s.ListJobs(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestJobs_UpdateKeepsSystemFields(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.CreateJob(ctx, weeklyJob("job-1")))

	day := generic.MustParseDay("2025-03-01")
	require.NoError(t, s.AppendCompletion(ctx, "job-1", 0, day))
	require.NoError(t, s.ClosePayoutCycle(ctx, "job-1", 0, day))

	// WHEN: a user update carries stale cycle/payout values
	job := weeklyJob("job-1")
	job.Name = "renamed"
	require.NoError(t, s.UpdateJob(ctx, job))

	// THEN: the reconciler-owned fields are untouched
	got, err := s.GetJob(ctx, "user-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Cycle)
	require.NotNil(t, got.LastPayoutDate)
	assert.Equal(t, day, *got.LastPayoutDate)
	assert.Equal(t, "renamed", got.Name)
}

func TestCompletions_UniquePerDayAndScopedToCycle(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.CreateJob(ctx, weeklyJob("job-1")))

	sat := generic.MustParseDay("2025-03-01")
	mon := generic.MustParseDay("2025-03-03")

	require.NoError(t, s.AppendCompletion(ctx, "job-1", 0, sat))
	assert.ErrorIs(t, s.AppendCompletion(ctx, "job-1", 0, sat), generic.ErrDuplicateCompletion)
	assert.ErrorIs(t, s.AppendCompletion(ctx, "missing", 0, sat), generic.ErrJobNotFound)

	jobs, err := s.ListActiveJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, []generic.Day{sat}, jobs[0].Completions)

	// WHEN: the cycle closes
	require.NoError(t, s.ClosePayoutCycle(ctx, "job-1", 0, sat))
	require.NoError(t, s.AppendCompletion(ctx, "job-1", 1, mon))

	// THEN: only markers of the open cycle are loaded
	job, err := s.GetJob(ctx, "user-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, 1, job.Cycle)
	assert.Equal(t, []generic.Day{mon}, job.Completions)
}

func TestClosePayoutCycle_OptimisticCheck(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.CreateJob(ctx, weeklyJob("job-1")))
	day := generic.MustParseDay("2025-03-01")

	require.NoError(t, s.ClosePayoutCycle(ctx, "job-1", 0, day))
	assert.ErrorIs(t, s.ClosePayoutCycle(ctx, "job-1", 0, day), generic.ErrConcurrentModification)
	assert.ErrorIs(t, s.ClosePayoutCycle(ctx, "missing", 0, day), generic.ErrJobNotFound)
}

func TestListActiveJobs_SkipsInactive(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	inactive := weeklyJob("job-2")
	inactive.Active = false
	require.NoError(t, s.CreateJob(ctx, weeklyJob("job-1")))
	require.NoError(t, s.CreateJob(ctx, inactive))

	jobs, err := s.ListActiveJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, routine.JobID("job-1"), jobs[0].ID)
}

// =============================================================================
// FINANCIAL RECORDS
// =============================================================================

func TestRecords_IdempotencyKeyUnique(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	rec := payout("job-1", "2025-03-01")
	require.NoError(t, s.AppendRecord(ctx, rec))

	dup := rec
	dup.ID = "another-id"
	assert.ErrorIs(t, s.AppendRecord(ctx, dup), generic.ErrDuplicateIdempotencyKey)

	exists, err := s.RecordExists(ctx, rec.IdempotencyKey)
	require.NoError(t, err)
	assert.True(t, exists)

	// manual records carry no key; any number may be stored
	manual := generic.FinancialRecord{
		OwnerID: "user-1", Type: generic.RecordExpense,
		Amount: generic.NewAmountFromInt(500, generic.CurrencyIRR), Date: rec.Date,
	}
	manual.ID = "m-1"
	require.NoError(t, s.AppendRecord(ctx, manual))
	manual.ID = "m-2"
	require.NoError(t, s.AppendRecord(ctx, manual))
}

func TestRecords_FilterAndOrder(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.AppendRecord(ctx, payout("job-1", "2025-03-01")))
	require.NoError(t, s.AppendRecord(ctx, payout("job-1", "2025-04-01")))
	require.NoError(t, s.AppendRecord(ctx, payout("job-2", "2025-03-15")))

	all, err := s.ListRecords(ctx, generic.RecordFilter{OwnerID: "user-1"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2025-04-01", all[0].Date.String())
	assert.Equal(t, "2025-03-01", all[2].Date.String())

	march, err := s.ListRecords(ctx, generic.RecordFilter{
		OwnerID: "user-1",
		Range:   generic.DayRange{From: generic.MustParseDay("2025-03-01"), To: generic.MustParseDay("2025-03-31")},
	})
	require.NoError(t, err)
	assert.Len(t, march, 2)

	job1, err := s.ListRecords(ctx, generic.RecordFilter{OwnerID: "user-1", RoutineJobID: "job-1", Limit: 1})
	require.NoError(t, err)
	require.Len(t, job1, 1)
	assert.Equal(t, "2025-04-01", job1[0].Date.String())

	latest, err := s.LatestPayout(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "2025-04-01", latest.Date.String())

	none, err := s.LatestPayout(ctx, "job-9")
	require.NoError(t, err)
	assert.Nil(t, none)

	other, err := s.ListRecords(ctx, generic.RecordFilter{OwnerID: "user-2"})
	require.NoError(t, err)
	assert.Empty(t, other)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.CreateJob(ctx, weeklyJob("job-1")))
	day := generic.MustParseDay("2025-03-01")
	boom := errors.New("boom")

	// WHEN: the transaction writes everything then fails
	err := s.WithTx(ctx, func(tx routine.Store) error {
		require.NoError(t, tx.AppendCompletion(ctx, "job-1", 0, day))
		require.NoError(t, tx.AppendRecord(ctx, payout("job-1", "2025-03-01")))
		require.NoError(t, tx.ClosePayoutCycle(ctx, "job-1", 0, day))
		return boom
	})
	require.ErrorIs(t, err, boom)

	// THEN: none of the writes are visible
	job, err := s.GetJob(ctx, "user-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, 0, job.Cycle)
	assert.Empty(t, job.Completions)
	exists, err := s.RecordExists(ctx, routine.PayoutIdempotencyKey("job-1", day))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestReconciler_AgainstSQLite(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	monthly := weeklyJob("job-m")
	monthly.Frequency = routine.FrequencyMonthly
	monthly.DaysOfWeek = nil
	require.NoError(t, s.CreateJob(ctx, weeklyJob("job-w")))
	require.NoError(t, s.CreateJob(ctx, monthly))

	r := routine.NewReconciler(s, zerolog.Nop())

	// GIVEN: four due weekly days; the first is also the 1st of the month
	days := []string{"2025-03-01", "2025-03-03", "2025-03-08", "2025-03-10"}
	for _, d := range days {
		_, err := r.Run(ctx, generic.MustParseDay(d))
		require.NoError(t, err)
	}
	// WHEN: the last day runs again
	report, err := r.Run(ctx, generic.MustParseDay("2025-03-10"))
	require.NoError(t, err)

	// THEN: the rerun changes nothing
	res, ok := report.Result("job-w")
	require.True(t, ok)
	assert.Equal(t, routine.OutcomeSkipped, res.Outcome)

	recs, err := s.ListRecords(ctx, generic.RecordFilter{OwnerID: "user-1"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "job-w", recs[0].RoutineJobID)
	assert.Equal(t, "2025-03-10", recs[0].Date.String())
	assert.Equal(t, "job-m", recs[1].RoutineJobID)
	assert.Equal(t, "2025-03-01", recs[1].Date.String())

	job, err := s.GetJob(ctx, "user-1", "job-w")
	require.NoError(t, err)
	assert.Equal(t, 1, job.Cycle)
	assert.Empty(t, job.Completions)
}

// =============================================================================
// PLANNER
// =============================================================================

func TestHabits_ToggleCompletion(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	svc := planner.NewService(s, generic.NewLedger(s))

	h, err := svc.CreateHabit(ctx, planner.Habit{OwnerID: "user-1", Name: "read"})
	require.NoError(t, err)

	day := generic.MustParseDay("2025-03-01")
	h, err = svc.ToggleHabit(ctx, "user-1", h.ID, day)
	require.NoError(t, err)
	assert.Equal(t, []generic.Day{day}, h.Completions)

	h, err = svc.ToggleHabit(ctx, "user-1", h.ID, day)
	require.NoError(t, err)
	assert.Empty(t, h.Completions)

	_, err = svc.ToggleHabit(ctx, "user-2", h.ID, day)
	assert.ErrorIs(t, err, generic.ErrHabitNotFound)
}

func TestTasks_RewardPaidOnce(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	svc := planner.NewService(s, generic.NewLedger(s))

	reward := generic.NewAmountFromInt(20000, generic.CurrencyIRR)
	task, err := svc.CreateTask(ctx, planner.Task{OwnerID: "user-1", Title: "file taxes", Reward: &reward})
	require.NoError(t, err)
	day := generic.MustParseDay("2025-03-05")

	_, rec, err := svc.CompleteTask(ctx, "user-1", task.ID, day)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, string(task.ID), rec.TaskID)

	_, err = svc.ReopenTask(ctx, "user-1", task.ID)
	require.NoError(t, err)
	done, rec, err := svc.CompleteTask(ctx, "user-1", task.ID, day)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.True(t, done.Completed)

	recs, err := s.ListRecords(ctx, generic.RecordFilter{OwnerID: "user-1", Category: generic.CategoryTaskReward})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestGoals_CRUD(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	svc := planner.NewService(s, nil)

	target := generic.MustParseDay("2025-12-31")
	g, err := svc.CreateGoal(ctx, planner.Goal{OwnerID: "user-1", Title: "save", TargetDate: &target})
	require.NoError(t, err)

	g.Progress = 40
	g, err = svc.UpdateGoal(ctx, *g)
	require.NoError(t, err)
	assert.Equal(t, 40, g.Progress)
	require.NotNil(t, g.TargetDate)
	assert.Equal(t, target, *g.TargetDate)

	require.NoError(t, s.DeleteGoal(ctx, "user-1", g.ID))
	_, err = s.GetGoal(ctx, "user-1", g.ID)
	assert.ErrorIs(t, err, generic.ErrGoalNotFound)
}

// =============================================================================
// RUNS
// =============================================================================

func TestReconciliationRuns_SaveAndList(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	started := time.Date(2025, 3, 1, 0, 5, 0, 0, time.UTC)
	run := sqlite.ReconciliationRun{ID: "run-1", Day: "2025-03-01", Status: sqlite.RunRunning, StartedAt: started}
	require.NoError(t, s.SaveReconciliationRun(ctx, run))

	finished := started.Add(time.Second)
	run.Status = sqlite.RunCompleted
	run.Jobs, run.PaidOut = 1, 1
	run.CompletedAt = &finished
	run.Results = []sqlite.ReconciliationResult{{
		JobID: "job-1", OwnerID: "user-1", Outcome: "paid_out", Completions: 0, Threshold: 1, RecordID: "rec-1",
	}}
	require.NoError(t, s.SaveReconciliationRun(ctx, run))

	runs, err := s.ListReconciliationRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, sqlite.RunCompleted, runs[0].Status)
	assert.Equal(t, 1, runs[0].PaidOut)

	got, err := s.GetReconciliationRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got.Results, 1)
	assert.Equal(t, "rec-1", got.Results[0].RecordID)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, finished.Equal(*got.CompletedAt))

	_, err = s.GetReconciliationRun(ctx, "missing")
	assert.ErrorIs(t, err, sqlite.ErrRunNotFound)
}
