/*
scenarios.go - Demo scenarios for development and the frontend

PURPOSE:
  Seeds a fresh database with realistic data for one demo owner. Routine
  job history is produced by replaying the reconciler over past days, so
  completion markers and payouts are never written directly.

SCENARIOS:
  - tutor-week:       Weekly Saturday/Monday teaching job, two weeks replayed
  - daily-freelancer: Daily job replayed past its threshold plus expenses
  - planner-starter:  Habits with streaks, tasks with rewards, linked goals

SEE ALSO:
  - handlers.go: RunReconciliation
  - server.go: /api/scenarios routes (service role)
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/warp/life-planner/generic"
	"github.com/warp/life-planner/logger"
	"github.com/warp/life-planner/planner"
	"github.com/warp/life-planner/routine"
)

// DemoOwner is used when a load request names no owner.
const DemoOwner = "demo"

var scenarios = []ScenarioDTO{
	{
		ID:          "tutor-week",
		Name:        "Weekly Tutor",
		Description: "Teaching on Saturdays and Mondays, paid after eight sessions",
	},
	{
		ID:          "daily-freelancer",
		Name:        "Daily Freelancer",
		Description: "Daily job replayed past its threshold, with a few expenses",
	},
	{
		ID:          "planner-starter",
		Name:        "Planner Starter",
		Description: "Habits with streaks, rewarded tasks and goals linked to them",
	},
}

// LoadScenarioRequest selects a scenario and the owner to seed it for.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
	OwnerID    string `json:"owner_id,omitempty"`
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the database and seeds one scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	owner := generic.OwnerID(strings.TrimSpace(req.OwnerID))
	if owner == "" {
		owner = DemoOwner
	}

	var load func(context.Context, generic.OwnerID) error
	switch req.ScenarioID {
	case "tutor-week":
		load = h.loadTutorWeekScenario
	case "daily-freelancer":
		load = h.loadDailyFreelancerScenario
	case "planner-starter":
		load = h.loadPlannerStarterScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := load(ctx, owner); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID
	log := logger.FromContext(ctx, h.Log)
	log.Info().Str("scenario", req.ScenarioID).Str("owner", string(owner)).Msg("scenario loaded")

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
		"owner_id": string(owner),
	})
}

// ResetDatabase clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadTutorWeekScenario(ctx context.Context, owner generic.OwnerID) error {
	job := routine.Job{
		ID:         routine.JobID(uuid.NewString()),
		OwnerID:    owner,
		Name:       "Teaching",
		Earnings:   generic.NewAmountFromInt(100000, generic.DefaultCurrency),
		Frequency:  routine.FrequencyWeekly,
		DaysOfWeek: []routine.Weekday{routine.Saturday, routine.Monday},
		Active:     true,
	}
	if err := h.Store.CreateJob(ctx, job); err != nil {
		return err
	}
	return h.replay(ctx, 14)
}

func (h *Handler) loadDailyFreelancerScenario(ctx context.Context, owner generic.OwnerID) error {
	job := routine.Job{
		ID:        routine.JobID(uuid.NewString()),
		OwnerID:   owner,
		Name:      "Freelance support",
		Earnings:  generic.NewAmountFromInt(250000, generic.DefaultCurrency),
		Frequency: routine.FrequencyDaily,
		Active:    true,
	}
	if err := h.Store.CreateJob(ctx, job); err != nil {
		return err
	}
	if err := h.replay(ctx, 35); err != nil {
		return err
	}

	today := h.Today()
	expenses := []struct {
		desc     string
		category string
		amount   int64
		ago      int
	}{
		{"Groceries", "food", 45000, 3},
		{"Internet", "utilities", 30000, 10},
		{"Coworking day pass", "work", 20000, 1},
	}
	for _, e := range expenses {
		if _, err := h.Ledger.Append(ctx, generic.FinancialRecord{
			OwnerID:     owner,
			Type:        generic.RecordExpense,
			Amount:      generic.NewAmountFromInt(e.amount, generic.DefaultCurrency),
			Description: e.desc,
			Category:    e.category,
			Date:        today.AddDays(-e.ago),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadPlannerStarterScenario(ctx context.Context, owner generic.OwnerID) error {
	today := h.Today()

	habits := []struct {
		name   string
		streak int
	}{
		{"Read 20 pages", 5},
		{"Morning walk", 2},
		{"Meditate", 0},
	}
	for _, hb := range habits {
		created, err := h.Planner.CreateHabit(ctx, planner.Habit{OwnerID: owner, Name: hb.name})
		if err != nil {
			return err
		}
		for i := 0; i < hb.streak; i++ {
			if err := h.Store.SetHabitCompletion(ctx, owner, created.ID, today.AddDays(-i), true); err != nil {
				return err
			}
		}
	}

	target := today.AddMonths(3)
	goal, err := h.Planner.CreateGoal(ctx, planner.Goal{
		OwnerID:     owner,
		Title:       "Launch portfolio site",
		Description: "Publish a personal site with three case studies",
		TargetDate:  &target,
	})
	if err != nil {
		return err
	}

	reward := generic.NewAmountFromInt(50000, generic.DefaultCurrency)
	due := today.AddDays(7)
	tasks := []planner.Task{
		{OwnerID: owner, Title: "Pick a domain name", Priority: planner.PriorityLow, GoalID: goal.ID},
		{OwnerID: owner, Title: "Write first case study", Priority: planner.PriorityHigh, GoalID: goal.ID, DueDate: &due, Reward: &reward},
		{OwnerID: owner, Title: "Renew gym membership", Priority: planner.PriorityMedium},
	}
	for i, t := range tasks {
		created, err := h.Planner.CreateTask(ctx, t)
		if err != nil {
			return err
		}
		if i == 0 {
			if _, _, err := h.Planner.CompleteTask(ctx, owner, created.ID, today.AddDays(-1)); err != nil {
				return err
			}
		}
	}
	return nil
}

// replay runs the reconciler for each of the last n days, oldest first.
func (h *Handler) replay(ctx context.Context, n int) error {
	today := h.Today()
	for day := today.AddDays(-n); !day.After(today); day = day.AddDays(1) {
		report, err := h.Reconciler.Run(ctx, day)
		if err != nil {
			return err
		}
		if failed := report.Failed(); len(failed) > 0 {
			return fmt.Errorf("replay %s: %w", day, failed[0].Err)
		}
	}
	return nil
}
