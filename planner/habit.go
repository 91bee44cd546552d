package planner

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/life-planner/generic"
)

type HabitID string

// Habit is a user-tracked daily practice. Completions are sorted ascending.
type Habit struct {
	ID          HabitID
	OwnerID     generic.OwnerID
	Name        string
	Description string
	Completions []generic.Day
	CreatedAt   time.Time
}

func (h Habit) Validate() error {
	if h.OwnerID == "" {
		return &generic.ValidationError{Field: "owner_id", Reason: "required"}
	}
	if strings.TrimSpace(h.Name) == "" {
		return &generic.ValidationError{Field: "name", Reason: "required"}
	}
	return nil
}

func (h Habit) CompletedOn(d generic.Day) bool {
	for _, c := range h.Completions {
		if c.Equal(d) {
			return true
		}
	}
	return false
}

// Streak counts consecutive completed days ending today, or ending
// yesterday when today is not completed yet.
func Streak(completions []generic.Day, today generic.Day) int {
	done := make(map[generic.Day]bool, len(completions))
	for _, c := range completions {
		done[c] = true
	}
	cur := today
	if !done[cur] {
		cur = cur.AddDays(-1)
	}
	n := 0
	for done[cur] {
		n++
		cur = cur.AddDays(-1)
	}
	return n
}

// CreateHabit validates and stores a new habit.
func (s *Service) CreateHabit(ctx context.Context, h Habit) (*Habit, error) {
	h.Name = strings.TrimSpace(h.Name)
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if h.ID == "" {
		h.ID = HabitID(uuid.NewString())
	}
	h.Completions = nil
	h.CreatedAt = time.Now().UTC()
	if err := s.Store.CreateHabit(ctx, h); err != nil {
		return nil, err
	}
	return &h, nil
}

// ToggleHabit flips the habit's completion for day and returns the habit
// as stored afterwards.
func (s *Service) ToggleHabit(ctx context.Context, owner generic.OwnerID, id HabitID, day generic.Day) (*Habit, error) {
	h, err := s.Store.GetHabit(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if err := s.Store.SetHabitCompletion(ctx, owner, id, day, !h.CompletedOn(day)); err != nil {
		return nil, err
	}
	return s.Store.GetHabit(ctx, owner, id)
}

// SortDays sorts ascending in place.
func SortDays(days []generic.Day) {
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
}
