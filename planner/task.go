package planner

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/life-planner/generic"
)

type TaskID string

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Task is a one-off to-do. Reward, when set, is paid once on completion.
type Task struct {
	ID          TaskID
	OwnerID     generic.OwnerID
	Title       string
	Description string
	Priority    Priority
	DueDate     *generic.Day
	GoalID      GoalID
	Reward      *generic.Amount
	Completed   bool
	CompletedOn *generic.Day
	CreatedAt   time.Time
}

func (t Task) Validate() error {
	if t.OwnerID == "" {
		return &generic.ValidationError{Field: "owner_id", Reason: "required"}
	}
	if strings.TrimSpace(t.Title) == "" {
		return &generic.ValidationError{Field: "title", Reason: "required"}
	}
	if !t.Priority.Valid() {
		return &generic.ValidationError{Field: "priority", Reason: "must be low, medium or high"}
	}
	if t.Reward != nil && !t.Reward.IsPositive() {
		return &generic.ValidationError{Field: "reward", Reason: "must be greater than zero"}
	}
	if t.Reward != nil && !t.Reward.Currency.Valid() {
		return &generic.ValidationError{Field: "reward_currency", Reason: "must be IRR or IRT"}
	}
	return nil
}

// RewardIdempotencyKey identifies the single reward record of a task.
func RewardIdempotencyKey(id TaskID) string {
	return "task:" + string(id)
}

func (s *Service) CreateTask(ctx context.Context, t Task) (*Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.ID == "" {
		t.ID = TaskID(uuid.NewString())
	}
	t.Completed = false
	t.CompletedOn = nil
	t.CreatedAt = time.Now().UTC()
	if err := s.Store.CreateTask(ctx, t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CompleteTask marks the task done on day. If the task has a reward an
// income record is appended; a task that was completed, reopened and
// completed again is not paid twice. The returned record is nil when
// nothing was paid by this call.
func (s *Service) CompleteTask(ctx context.Context, owner generic.OwnerID, id TaskID, day generic.Day) (*Task, *generic.FinancialRecord, error) {
	t, err := s.Store.GetTask(ctx, owner, id)
	if err != nil {
		return nil, nil, err
	}
	if t.Completed {
		return t, nil, nil
	}

	var paid *generic.FinancialRecord
	if t.Reward != nil && s.Ledger != nil {
		rec, err := s.Ledger.Append(ctx, generic.FinancialRecord{
			OwnerID:        owner,
			Type:           generic.RecordIncome,
			Amount:         *t.Reward,
			Description:    t.Title,
			Category:       generic.CategoryTaskReward,
			Date:           day,
			TaskID:         string(t.ID),
			IdempotencyKey: RewardIdempotencyKey(t.ID),
		})
		switch {
		case errors.Is(err, generic.ErrDuplicateIdempotencyKey):
			// rewarded by an earlier completion
		case err != nil:
			return nil, nil, err
		default:
			paid = &rec
		}
	}

	t.Completed = true
	t.CompletedOn = &day
	if err := s.Store.UpdateTask(ctx, *t); err != nil {
		return nil, nil, err
	}
	return t, paid, nil
}

// ReopenTask clears completion. Any reward record stays in the ledger.
func (s *Service) ReopenTask(ctx context.Context, owner generic.OwnerID, id TaskID) (*Task, error) {
	t, err := s.Store.GetTask(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	t.Completed = false
	t.CompletedOn = nil
	if err := s.Store.UpdateTask(ctx, *t); err != nil {
		return nil, err
	}
	return t, nil
}
