package planner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/life-planner/generic"
	"github.com/warp/life-planner/planner"
	"github.com/warp/life-planner/store/sqlite"
)

func newService(t *testing.T) (*planner.Service, *generic.Ledger) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ledger := generic.NewLedger(store)
	return planner.NewService(store, ledger), ledger
}

func days(ss ...string) []generic.Day {
	out := make([]generic.Day, 0, len(ss))
	for _, s := range ss {
		out = append(out, generic.MustParseDay(s))
	}
	return out
}

func TestStreak(t *testing.T) {
	today := generic.MustParseDay("2025-03-10")

	tests := []struct {
		name        string
		completions []generic.Day
		want        int
	}{
		{"none", nil, 0},
		{"today only", days("2025-03-10"), 1},
		{"ending today", days("2025-03-08", "2025-03-09", "2025-03-10"), 3},
		{"ending yesterday still counts", days("2025-03-08", "2025-03-09"), 2},
		{"gap breaks it", days("2025-03-07", "2025-03-09", "2025-03-10"), 2},
		{"two days ago is broken", days("2025-03-08"), 0},
		{"across month boundary", days("2025-02-28", "2025-03-01"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, planner.Streak(tt.completions, today))
		})
	}

	assert.Equal(t, 2, planner.Streak(days("2025-02-28", "2025-03-01"), generic.MustParseDay("2025-03-01")))
}

func TestTaskProgress(t *testing.T) {
	tasks := []planner.Task{
		{GoalID: "g1", Completed: true},
		{GoalID: "g1"},
		{GoalID: "g1"},
		{GoalID: "g2", Completed: true},
		{},
	}

	assert.Equal(t, 33, planner.TaskProgress("g1", tasks))
	assert.Equal(t, 100, planner.TaskProgress("g2", tasks))
	assert.Equal(t, -1, planner.TaskProgress("g3", tasks))
}

func TestValidation(t *testing.T) {
	assert.ErrorIs(t, planner.Habit{OwnerID: "a"}.Validate(), generic.ErrInvalidInput)
	assert.ErrorIs(t, planner.Task{OwnerID: "a", Title: "x", Priority: "urgent"}.Validate(), generic.ErrInvalidInput)
	assert.ErrorIs(t, planner.Goal{OwnerID: "a", Title: "x", Progress: 101}.Validate(), generic.ErrInvalidInput)
	reward := generic.NewAmountFromInt(0, generic.DefaultCurrency)
	assert.ErrorIs(t, planner.Task{OwnerID: "a", Title: "x", Priority: planner.PriorityLow, Reward: &reward}.Validate(), generic.ErrInvalidInput)
}

func TestToggleHabit(t *testing.T) {
	// GIVEN: A habit
	ctx := context.Background()
	svc, _ := newService(t)
	h, err := svc.CreateHabit(ctx, planner.Habit{OwnerID: "alice", Name: "  Read  "})
	require.NoError(t, err)
	assert.Equal(t, "Read", h.Name)
	day := generic.MustParseDay("2025-03-10")

	// WHEN: Toggling twice
	on, err := svc.ToggleHabit(ctx, "alice", h.ID, day)
	require.NoError(t, err)
	off, err := svc.ToggleHabit(ctx, "alice", h.ID, day)
	require.NoError(t, err)

	// THEN: On then off
	assert.True(t, on.CompletedOn(day))
	assert.False(t, off.CompletedOn(day))

	// THEN: Scoped to the owner
	_, err = svc.ToggleHabit(ctx, "bob", h.ID, day)
	assert.ErrorIs(t, err, generic.ErrHabitNotFound)
}

func TestCompleteTask_RewardPaidOnce(t *testing.T) {
	// GIVEN: A rewarded task
	ctx := context.Background()
	svc, ledger := newService(t)
	reward := generic.NewAmountFromInt(5000, generic.DefaultCurrency)
	task, err := svc.CreateTask(ctx, planner.Task{OwnerID: "alice", Title: "Report", Reward: &reward})
	require.NoError(t, err)
	assert.Equal(t, planner.PriorityMedium, task.Priority, "default priority")
	day := generic.MustParseDay("2025-03-10")

	// WHEN: Completing it
	done, rec, err := svc.CompleteTask(ctx, "alice", task.ID, day)

	// THEN: Paid with the task's idempotency key
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, done.Completed)
	assert.Equal(t, planner.RewardIdempotencyKey(task.ID), rec.IdempotencyKey)
	assert.Equal(t, generic.CategoryTaskReward, rec.Category)
	assert.Equal(t, string(task.ID), rec.TaskID)

	// WHEN: Completing again, then reopening and completing
	_, again, err := svc.CompleteTask(ctx, "alice", task.ID, day)
	require.NoError(t, err)
	assert.Nil(t, again)
	reopened, err := svc.ReopenTask(ctx, "alice", task.ID)
	require.NoError(t, err)
	assert.False(t, reopened.Completed)
	assert.Nil(t, reopened.CompletedOn)
	_, third, err := svc.CompleteTask(ctx, "alice", task.ID, day.AddDays(1))
	require.NoError(t, err)

	// THEN: Still one reward
	assert.Nil(t, third)
	recs, err := ledger.Records(ctx, generic.RecordFilter{OwnerID: "alice", Category: generic.CategoryTaskReward})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestCompleteTask_WithoutReward(t *testing.T) {
	ctx := context.Background()
	svc, ledger := newService(t)
	task, err := svc.CreateTask(ctx, planner.Task{OwnerID: "alice", Title: "Call", Priority: planner.PriorityLow})
	require.NoError(t, err)

	_, rec, err := svc.CompleteTask(ctx, "alice", task.ID, generic.MustParseDay("2025-03-10"))

	require.NoError(t, err)
	assert.Nil(t, rec)
	recs, err := ledger.Records(ctx, generic.RecordFilter{OwnerID: "alice"})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestGoals_CreateAndUpdate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	g, err := svc.CreateGoal(ctx, planner.Goal{OwnerID: "alice", Title: "Run 10k"})
	require.NoError(t, err)

	g.Progress = 40
	updated, err := svc.UpdateGoal(ctx, *g)
	require.NoError(t, err)
	assert.Equal(t, 40, updated.Progress)

	_, err = svc.CreateGoal(ctx, planner.Goal{OwnerID: "alice", Title: "  "})
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}
