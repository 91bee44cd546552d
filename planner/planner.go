/*
Package planner holds the user-mutable entities of the life planner:
habits, tasks and goals.

PURPOSE:
  These are thin owner-scoped records. The only logic that matters:
  - Habit completions are toggled directly by the user (no threshold, no
    money). This is the "user-mutable counter" role; routine job
    completions are the system-only counterpart in package routine.
  - Completing a task with a reward appends one income record linked to
    the task, at most once per task.

SEE ALSO:
  - routine/types.go: System-only accrual counters
  - generic/ledger.go: Where task rewards are recorded
*/
package planner

import (
	"context"

	"github.com/warp/life-planner/generic"
)

// Store is the owner-scoped persistence for planner entities.
type Store interface {
	CreateHabit(ctx context.Context, h Habit) error
	GetHabit(ctx context.Context, owner generic.OwnerID, id HabitID) (*Habit, error)
	ListHabits(ctx context.Context, owner generic.OwnerID) ([]Habit, error)
	DeleteHabit(ctx context.Context, owner generic.OwnerID, id HabitID) error
	// SetHabitCompletion adds (done) or removes (!done) day. Both are idempotent.
	SetHabitCompletion(ctx context.Context, owner generic.OwnerID, id HabitID, day generic.Day, done bool) error

	CreateTask(ctx context.Context, t Task) error
	GetTask(ctx context.Context, owner generic.OwnerID, id TaskID) (*Task, error)
	ListTasks(ctx context.Context, owner generic.OwnerID) ([]Task, error)
	UpdateTask(ctx context.Context, t Task) error
	DeleteTask(ctx context.Context, owner generic.OwnerID, id TaskID) error

	CreateGoal(ctx context.Context, g Goal) error
	GetGoal(ctx context.Context, owner generic.OwnerID, id GoalID) (*Goal, error)
	ListGoals(ctx context.Context, owner generic.OwnerID) ([]Goal, error)
	UpdateGoal(ctx context.Context, g Goal) error
	DeleteGoal(ctx context.Context, owner generic.OwnerID, id GoalID) error
}

// Service combines the planner store with the ledger for task rewards.
type Service struct {
	Store  Store
	Ledger *generic.Ledger
}

func NewService(store Store, ledger *generic.Ledger) *Service {
	return &Service{Store: store, Ledger: ledger}
}
