package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/warp/life-planner/generic"
	"github.com/warp/life-planner/planner"
)

// =============================================================================
// HABIT ENDPOINTS
// =============================================================================

// ListHabits returns the owner's habits with streaks.
// GET /api/habits
func (h *Handler) ListHabits(w http.ResponseWriter, r *http.Request) {
	habits, err := h.Store.ListHabits(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list habits", err)
		return
	}
	today := h.Today()
	dtos := make([]HabitDTO, 0, len(habits))
	for _, habit := range habits {
		dtos = append(dtos, toHabitDTO(habit, today))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// POST /api/habits
func (h *Handler) CreateHabit(w http.ResponseWriter, r *http.Request) {
	var req HabitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	habit, err := h.Planner.CreateHabit(r.Context(), planner.Habit{
		OwnerID:     ownerFrom(r),
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		writeDomainError(w, "Failed to create habit", err)
		return
	}
	writeJSON(w, http.StatusCreated, toHabitDTO(*habit, h.Today()))
}

// GET /api/habits/{id}
func (h *Handler) GetHabit(w http.ResponseWriter, r *http.Request) {
	habit, err := h.Store.GetHabit(r.Context(), ownerFrom(r), planner.HabitID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Habit not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toHabitDTO(*habit, h.Today()))
}

// DELETE /api/habits/{id}
func (h *Handler) DeleteHabit(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteHabit(r.Context(), ownerFrom(r), planner.HabitID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, "Failed to delete habit", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleHabit adds or removes a completion. Unlike routine jobs, habit
// completions belong to the user.
// POST /api/habits/{id}/toggle
func (h *Handler) ToggleHabit(w http.ResponseWriter, r *http.Request) {
	day, ok := h.dayFromBody(w, r)
	if !ok {
		return
	}
	habit, err := h.Planner.ToggleHabit(r.Context(), ownerFrom(r), planner.HabitID(chi.URLParam(r, "id")), day)
	if err != nil {
		writeDomainError(w, "Failed to toggle habit", err)
		return
	}
	writeJSON(w, http.StatusOK, toHabitDTO(*habit, h.Today()))
}

// =============================================================================
// TASK ENDPOINTS
// =============================================================================

// GET /api/tasks
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Store.ListTasks(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tasks", err)
		return
	}
	dtos := make([]TaskDTO, 0, len(tasks))
	for _, t := range tasks {
		dtos = append(dtos, toTaskDTO(t))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// POST /api/tasks
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	task, err := taskFromRequest(req, ownerFrom(r))
	if err != nil {
		writeDomainError(w, "Invalid task", err)
		return
	}
	created, err := h.Planner.CreateTask(r.Context(), task)
	if err != nil {
		writeDomainError(w, "Failed to create task", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskDTO(*created))
}

// GET /api/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.Store.GetTask(r.Context(), ownerFrom(r), planner.TaskID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Task not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(*task))
}

// UpdateTask replaces the editable fields. Completion has its own routes.
// PUT /api/tasks/{id}
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := ownerFrom(r)

	current, err := h.Store.GetTask(ctx, owner, planner.TaskID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Task not found", err)
		return
	}
	var req TaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	task, err := taskFromRequest(req, owner)
	if err != nil {
		writeDomainError(w, "Invalid task", err)
		return
	}
	if task.Priority == "" {
		task.Priority = current.Priority
	}
	task.ID = current.ID
	task.Completed = current.Completed
	task.CompletedOn = current.CompletedOn
	task.CreatedAt = current.CreatedAt
	if err := task.Validate(); err != nil {
		writeDomainError(w, "Invalid task", err)
		return
	}
	if err := h.Store.UpdateTask(ctx, task); err != nil {
		writeDomainError(w, "Failed to update task", err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(task))
}

// DELETE /api/tasks/{id}
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteTask(r.Context(), ownerFrom(r), planner.TaskID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, "Failed to delete task", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CompleteTask marks a task done and pays its reward at most once.
// POST /api/tasks/{id}/complete
func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	day, ok := h.dayFromBody(w, r)
	if !ok {
		return
	}
	task, rec, err := h.Planner.CompleteTask(r.Context(), ownerFrom(r), planner.TaskID(chi.URLParam(r, "id")), day)
	if err != nil {
		writeDomainError(w, "Failed to complete task", err)
		return
	}
	resp := CompleteTaskResponse{Task: toTaskDTO(*task)}
	if rec != nil {
		dto := toRecordDTO(*rec)
		resp.Reward = &dto
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /api/tasks/{id}/reopen
func (h *Handler) ReopenTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.Planner.ReopenTask(r.Context(), ownerFrom(r), planner.TaskID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to reopen task", err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(*task))
}

func taskFromRequest(req TaskRequest, owner generic.OwnerID) (planner.Task, error) {
	t := planner.Task{
		OwnerID:     owner,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Priority:    planner.Priority(strings.ToLower(strings.TrimSpace(req.Priority))),
		GoalID:      planner.GoalID(req.GoalID),
	}
	if req.DueDate != "" {
		d, err := generic.ParseDay(req.DueDate)
		if err != nil {
			return t, &generic.ValidationError{Field: "due_date", Reason: "must be YYYY-MM-DD"}
		}
		t.DueDate = &d
	}
	if req.Reward != nil {
		a := generic.NewAmountFromDecimal(*req.Reward, generic.Currency(strings.ToUpper(req.RewardCurrency)))
		t.Reward = &a
	}
	return t, nil
}

// =============================================================================
// GOAL ENDPOINTS
// =============================================================================

// ListGoals returns goals with progress derived from linked tasks.
// GET /api/goals
func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := ownerFrom(r)

	goals, err := h.Store.ListGoals(ctx, owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list goals", err)
		return
	}
	tasks, err := h.Store.ListTasks(ctx, owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tasks", err)
		return
	}
	dtos := make([]GoalDTO, 0, len(goals))
	for _, g := range goals {
		dtos = append(dtos, toGoalDTO(g, tasks))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// POST /api/goals
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var req GoalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	goal, err := goalFromRequest(req, ownerFrom(r))
	if err != nil {
		writeDomainError(w, "Invalid goal", err)
		return
	}
	created, err := h.Planner.CreateGoal(r.Context(), goal)
	if err != nil {
		writeDomainError(w, "Failed to create goal", err)
		return
	}
	writeJSON(w, http.StatusCreated, toGoalDTO(*created, nil))
}

// GET /api/goals/{id}
func (h *Handler) GetGoal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := ownerFrom(r)

	goal, err := h.Store.GetGoal(ctx, owner, planner.GoalID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Goal not found", err)
		return
	}
	tasks, err := h.Store.ListTasks(ctx, owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalDTO(*goal, tasks))
}

// PUT /api/goals/{id}
func (h *Handler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	var req GoalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	goal, err := goalFromRequest(req, ownerFrom(r))
	if err != nil {
		writeDomainError(w, "Invalid goal", err)
		return
	}
	goal.ID = planner.GoalID(chi.URLParam(r, "id"))
	updated, err := h.Planner.UpdateGoal(r.Context(), goal)
	if err != nil {
		writeDomainError(w, "Failed to update goal", err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalDTO(*updated, nil))
}

// DELETE /api/goals/{id}
func (h *Handler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteGoal(r.Context(), ownerFrom(r), planner.GoalID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, "Failed to delete goal", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func goalFromRequest(req GoalRequest, owner generic.OwnerID) (planner.Goal, error) {
	g := planner.Goal{
		OwnerID:     owner,
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		Progress:    req.Progress,
	}
	if req.TargetDate != "" {
		d, err := generic.ParseDay(req.TargetDate)
		if err != nil {
			return g, &generic.ValidationError{Field: "target_date", Reason: "must be YYYY-MM-DD"}
		}
		g.TargetDate = &d
	}
	return g, nil
}

// dayFromBody reads an optional ToggleRequest; an empty body means today.
func (h *Handler) dayFromBody(w http.ResponseWriter, r *http.Request) (generic.Day, bool) {
	var req ToggleRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return generic.Day{}, false
	}
	if req.Date == "" {
		return h.Today(), true
	}
	d, err := generic.ParseDay(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return generic.Day{}, false
	}
	return d, true
}
