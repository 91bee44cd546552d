package planner

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/life-planner/generic"
)

type GoalID string

// Goal is a longer-term target. Progress is 0-100 and set by the user;
// TaskProgress derives a suggestion from linked tasks.
type Goal struct {
	ID          GoalID
	OwnerID     generic.OwnerID
	Title       string
	Description string
	TargetDate  *generic.Day
	Progress    int
	CreatedAt   time.Time
}

func (g Goal) Validate() error {
	if g.OwnerID == "" {
		return &generic.ValidationError{Field: "owner_id", Reason: "required"}
	}
	if strings.TrimSpace(g.Title) == "" {
		return &generic.ValidationError{Field: "title", Reason: "required"}
	}
	if g.Progress < 0 || g.Progress > 100 {
		return &generic.ValidationError{Field: "progress", Reason: "must be between 0 and 100"}
	}
	return nil
}

// TaskProgress is the percentage of tasks linked to id that are completed.
// Returns -1 when no task is linked.
func TaskProgress(id GoalID, tasks []Task) int {
	total, done := 0, 0
	for _, t := range tasks {
		if t.GoalID != id {
			continue
		}
		total++
		if t.Completed {
			done++
		}
	}
	if total == 0 {
		return -1
	}
	return done * 100 / total
}

func (s *Service) CreateGoal(ctx context.Context, g Goal) (*Goal, error) {
	g.Title = strings.TrimSpace(g.Title)
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if g.ID == "" {
		g.ID = GoalID(uuid.NewString())
	}
	g.CreatedAt = time.Now().UTC()
	if err := s.Store.CreateGoal(ctx, g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Service) UpdateGoal(ctx context.Context, g Goal) (*Goal, error) {
	g.Title = strings.TrimSpace(g.Title)
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if err := s.Store.UpdateGoal(ctx, g); err != nil {
		return nil, err
	}
	return s.Store.GetGoal(ctx, g.OwnerID, g.ID)
}
