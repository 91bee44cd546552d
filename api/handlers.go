/*
handlers.go - HTTP API handlers for the life planner

PURPOSE:
  Exposes routine jobs, the financial ledger and the reconciler via REST.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Routine jobs (owner role):
    GET    /api/routine-jobs                    List jobs with progress
    POST   /api/routine-jobs                    Create job
    GET    /api/routine-jobs/{id}               Get job
    PUT    /api/routine-jobs/{id}               Replace user-editable fields
    DELETE /api/routine-jobs/{id}               Delete job
    POST   /api/routine-jobs/{id}/toggle-active Flip Active
    GET    /api/routine-jobs/{id}/progress      Accrual read model
    *      /api/routine-jobs/{id}/completions   Always 403

  Financial records (owner role):
    GET    /api/financial-records               List (from, to, type, category, limit)
    POST   /api/financial-records               Manual income/expense
    GET    /api/financial-records/summary       Totals per category

  Reconciliation (service role):
    POST   /api/reconcile                       Run the reconciler once
    GET    /api/reconcile/runs                  Run history
    GET    /api/reconcile/runs/{id}             One run with per-job results

CAPABILITY ROLES:
  Owner routes are scoped by the X-Owner-ID header. Completion markers of
  routine jobs are written by the reconciler only; no owner route accepts
  them. Service routes require the service key.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing owner or service credentials
  - 403: Capability violation
  - 404: Resource not found
  - 409: Conflict (idempotency, duplicate)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - planner.go: Habit, task and goal handlers
  - scheduler.go: Automated daily reconciliation
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/warp/life-planner/generic"
	"github.com/warp/life-planner/logger"
	"github.com/warp/life-planner/planner"
	"github.com/warp/life-planner/routine"
	"github.com/warp/life-planner/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Ledger     *generic.Ledger
	Planner    *planner.Service
	Reconciler *routine.Reconciler
	Location   *time.Location
	Calendar   routine.Calendar
	Log        zerolog.Logger
	Now        func() time.Time

	mu              sync.Mutex
	currentScenario string
}

// Options configures NewHandler. Zero values mean UTC, Gregorian, no logging.
type Options struct {
	Location *time.Location
	Calendar routine.Calendar
	Log      zerolog.Logger
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, opts Options) *Handler {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	cal := opts.Calendar
	if cal == "" {
		cal = routine.CalendarGregorian
	}

	ledger := generic.NewLedger(store)
	reconciler := routine.NewReconciler(store, opts.Log)
	reconciler.Calendar = cal

	return &Handler{
		Store:      store,
		Ledger:     ledger,
		Planner:    planner.NewService(store, ledger),
		Reconciler: reconciler,
		Location:   loc,
		Calendar:   cal,
		Log:        opts.Log,
		Now:        time.Now,
	}
}

// Today is the current day in the configured zone.
func (h *Handler) Today() generic.Day {
	return generic.DayOf(h.Now().In(h.Location))
}

// =============================================================================
// ROUTINE JOB ENDPOINTS
// =============================================================================

// ListRoutineJobs returns the owner's jobs with progress.
// GET /api/routine-jobs
func (h *Handler) ListRoutineJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Store.ListJobs(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list routine jobs", err)
		return
	}

	today := h.Today()
	dtos := make([]RoutineJobDTO, 0, len(jobs))
	for _, job := range jobs {
		p := routine.ProgressOf(job, today, h.Calendar)
		dtos = append(dtos, toRoutineJobDTO(job, &p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRoutineJob creates a job with an empty accrual cycle.
// POST /api/routine-jobs
func (h *Handler) CreateRoutineJob(w http.ResponseWriter, r *http.Request) {
	var req RoutineJobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if hasCompletions(req.Completions) {
		writeCompletionsForbidden(w)
		return
	}

	job, err := jobFromRequest(req, ownerFrom(r))
	if err != nil {
		writeDomainError(w, "Invalid routine job", err)
		return
	}
	job.ID = routine.JobID(uuid.NewString())
	job.Active = req.Active == nil || *req.Active

	if err := h.Store.CreateJob(r.Context(), job); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create routine job", err)
		return
	}
	h.respondJob(w, r, job.ID, http.StatusCreated)
}

// GetRoutineJob returns one job with progress.
// GET /api/routine-jobs/{id}
func (h *Handler) GetRoutineJob(w http.ResponseWriter, r *http.Request) {
	h.respondJob(w, r, routine.JobID(chi.URLParam(r, "id")), http.StatusOK)
}

// UpdateRoutineJob replaces name, earnings, frequency, weekdays and Active.
// PUT /api/routine-jobs/{id}
func (h *Handler) UpdateRoutineJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := ownerFrom(r)
	id := routine.JobID(chi.URLParam(r, "id"))

	var req RoutineJobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if hasCompletions(req.Completions) {
		writeCompletionsForbidden(w)
		return
	}

	current, err := h.Store.GetJob(ctx, owner, id)
	if err != nil {
		writeDomainError(w, "Routine job not found", err)
		return
	}

	job, err := jobFromRequest(req, owner)
	if err != nil {
		writeDomainError(w, "Invalid routine job", err)
		return
	}
	job.ID = id
	job.Active = current.Active
	if req.Active != nil {
		job.Active = *req.Active
	}

	if err := h.Store.UpdateJob(ctx, job); err != nil {
		writeDomainError(w, "Failed to update routine job", err)
		return
	}
	h.respondJob(w, r, id, http.StatusOK)
}

// ToggleRoutineJobActive flips Active. Completions are left as they are.
// POST /api/routine-jobs/{id}/toggle-active
func (h *Handler) ToggleRoutineJobActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := routine.JobID(chi.URLParam(r, "id"))

	job, err := h.Store.GetJob(ctx, ownerFrom(r), id)
	if err != nil {
		writeDomainError(w, "Routine job not found", err)
		return
	}
	job.Active = !job.Active
	if err := h.Store.UpdateJob(ctx, *job); err != nil {
		writeDomainError(w, "Failed to update routine job", err)
		return
	}
	h.respondJob(w, r, id, http.StatusOK)
}

// DeleteRoutineJob removes a job and its markers. Payout records stay.
// DELETE /api/routine-jobs/{id}
func (h *Handler) DeleteRoutineJob(w http.ResponseWriter, r *http.Request) {
	id := routine.JobID(chi.URLParam(r, "id"))
	if err := h.Store.DeleteJob(r.Context(), ownerFrom(r), id); err != nil {
		writeDomainError(w, "Failed to delete routine job", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetRoutineJobProgress returns the accrual read model.
// GET /api/routine-jobs/{id}/progress
func (h *Handler) GetRoutineJobProgress(w http.ResponseWriter, r *http.Request) {
	job, err := h.Store.GetJob(r.Context(), ownerFrom(r), routine.JobID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Routine job not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toProgressDTO(routine.ProgressOf(*job, h.Today(), h.Calendar)))
}

// RejectCompletionWrite answers every owner attempt to write markers.
// * /api/routine-jobs/{id}/completions
func (h *Handler) RejectCompletionWrite(w http.ResponseWriter, r *http.Request) {
	writeCompletionsForbidden(w)
}

func (h *Handler) respondJob(w http.ResponseWriter, r *http.Request, id routine.JobID, status int) {
	job, err := h.Store.GetJob(r.Context(), ownerFrom(r), id)
	if err != nil {
		writeDomainError(w, "Routine job not found", err)
		return
	}
	p := routine.ProgressOf(*job, h.Today(), h.Calendar)
	writeJSON(w, status, toRoutineJobDTO(*job, &p))
}

func jobFromRequest(req RoutineJobRequest, owner generic.OwnerID) (routine.Job, error) {
	freq := routine.Frequency(strings.ToLower(strings.TrimSpace(req.Frequency)))
	days, unknown := routine.NormalizeWeekdays(req.DaysOfWeek)
	if len(unknown) > 0 {
		return routine.Job{}, &generic.ValidationError{Field: "days_of_week", Reason: "unknown weekday " + unknown[0]}
	}
	if !freq.UsesWeekdays() {
		days = nil
	}
	currency := generic.Currency(strings.ToUpper(strings.TrimSpace(req.Currency)))
	if currency == "" {
		currency = generic.DefaultCurrency
	}

	job := routine.Job{
		OwnerID:    owner,
		Name:       strings.TrimSpace(req.Name),
		Earnings:   generic.NewAmountFromDecimal(req.Earnings, currency),
		Frequency:  freq,
		DaysOfWeek: days,
	}
	return job, job.Validate()
}

func hasCompletions(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s != "" && s != "null"
}

func writeCompletionsForbidden(w http.ResponseWriter) {
	writeError(w, http.StatusForbidden, "Routine job completions are recorded by the reconciler only", generic.ErrForbidden)
}

// =============================================================================
// FINANCIAL RECORD ENDPOINTS
// =============================================================================

// ListFinancialRecords returns the owner's records, newest first.
// GET /api/financial-records?from=&to=&type=&category=&routine_job_id=&limit=
func (h *Handler) ListFinancialRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := generic.RecordFilter{
		OwnerID:      ownerFrom(r),
		Type:         generic.RecordType(q.Get("type")),
		Category:     q.Get("category"),
		RoutineJobID: q.Get("routine_job_id"),
	}
	if filter.Type != "" && !filter.Type.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid type", nil)
		return
	}
	rng, err := rangeFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}
	filter.Range = rng
	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = limit
	}

	recs, err := h.Ledger.Records(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list financial records", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTOs(recs))
}

// CreateFinancialRecord appends a manual entry. System categories are
// reserved for the reconciler and task completion.
// POST /api/financial-records
func (h *Handler) CreateFinancialRecord(w http.ResponseWriter, r *http.Request) {
	var req CreateRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	category := strings.TrimSpace(req.Category)
	if category == generic.CategoryRoutineJob || category == generic.CategoryTaskReward {
		writeError(w, http.StatusForbidden, "Category "+category+" is reserved for system records", generic.ErrForbidden)
		return
	}
	if strings.HasPrefix(req.IdempotencyKey, "routine:") || strings.HasPrefix(req.IdempotencyKey, "task:") {
		writeError(w, http.StatusForbidden, "Idempotency key prefix is reserved for system records", generic.ErrForbidden)
		return
	}

	day := h.Today()
	if req.Date != "" {
		d, err := generic.ParseDay(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date", err)
			return
		}
		day = d
	}
	currency := generic.Currency(strings.ToUpper(strings.TrimSpace(req.Currency)))

	rec, err := h.Ledger.Append(r.Context(), generic.FinancialRecord{
		OwnerID:        ownerFrom(r),
		Type:           generic.RecordType(strings.ToLower(req.Type)),
		Amount:         generic.NewAmountFromDecimal(req.Amount, currency),
		Description:    strings.TrimSpace(req.Description),
		Category:       category,
		Date:           day,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		writeDomainError(w, "Failed to create financial record", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordDTO(rec))
}

// GetFinancialSummary totals income and expense. Defaults to the current
// month.
// GET /api/financial-records/summary?from=&to=
func (h *Handler) GetFinancialSummary(w http.ResponseWriter, r *http.Request) {
	rng, err := rangeFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}
	if rng.From.IsZero() && rng.To.IsZero() {
		today := h.Today()
		rng = generic.DayRange{From: generic.StartOfMonth(today), To: generic.EndOfMonth(today)}
	}

	summary, err := h.Ledger.Summary(r.Context(), ownerFrom(r), rng)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

func rangeFromQuery(r *http.Request) (generic.DayRange, error) {
	var rng generic.DayRange
	q := r.URL.Query()
	if s := q.Get("from"); s != "" {
		d, err := generic.ParseDay(s)
		if err != nil {
			return rng, err
		}
		rng.From = d
	}
	if s := q.Get("to"); s != "" {
		d, err := generic.ParseDay(s)
		if err != nil {
			return rng, err
		}
		rng.To = d
	}
	if !rng.From.IsZero() && !rng.To.IsZero() && rng.To.Before(rng.From) {
		return rng, &generic.ValidationError{Field: "to", Reason: "before from"}
	}
	return rng, nil
}

// =============================================================================
// RECONCILIATION ENDPOINTS
// =============================================================================

// TriggerReconcile runs the reconciler once and returns the persisted run.
// The body may name the day; otherwise today in the configured zone.
// POST /api/reconcile
func (h *Handler) TriggerReconcile(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	day := h.Today()
	if req.Date != "" {
		d, err := generic.ParseDay(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date", err)
			return
		}
		day = d
	}

	run, err := h.RunReconciliation(r.Context(), day)
	if err != nil {
		var fetchErr *routine.FetchError
		if errors.As(err, &fetchErr) {
			writeError(w, http.StatusServiceUnavailable, "Reconciliation aborted", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Reconciliation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(*run))
}

// RunReconciliation runs the reconciler for day and records the run.
// Shared by the HTTP trigger and the scheduler.
func (h *Handler) RunReconciliation(ctx context.Context, day generic.Day) (*sqlite.ReconciliationRun, error) {
	run := sqlite.ReconciliationRun{
		ID:        uuid.NewString(),
		Day:       day.String(),
		Status:    sqlite.RunRunning,
		StartedAt: h.Now().UTC(),
	}
	if err := h.Store.SaveReconciliationRun(ctx, run); err != nil {
		return nil, err
	}

	report, runErr := h.Reconciler.RunWithID(ctx, run.ID, day)
	completed := h.Now().UTC()
	run.CompletedAt = &completed

	if runErr != nil {
		run.Status = sqlite.RunFailed
		run.Error = runErr.Error()
		if err := h.Store.SaveReconciliationRun(ctx, run); err != nil {
			log := logger.FromContext(ctx, h.Log)
			log.Error().Err(err).Str("run_id", run.ID).Msg("failed to record reconciliation run")
		}
		return &run, runErr
	}

	run.Status = sqlite.RunCompleted
	run.Jobs = len(report.Results)
	run.Accrued = report.Count(routine.OutcomeAccrued)
	run.PaidOut = report.Count(routine.OutcomePaidOut)
	run.Skipped = report.Count(routine.OutcomeSkipped)
	run.Failed = report.Count(routine.OutcomeFailed)
	for _, res := range report.Results {
		line := sqlite.ReconciliationResult{
			JobID:       string(res.JobID),
			OwnerID:     string(res.OwnerID),
			Outcome:     string(res.Outcome),
			Reason:      string(res.SkipReason),
			Completions: res.Completions,
			Threshold:   res.Threshold,
			RecordID:    string(res.RecordID),
			Repaired:    res.Repaired,
		}
		if res.Err != nil {
			line.Error = res.Err.Error()
		}
		run.Results = append(run.Results, line)
	}

	if err := h.Store.SaveReconciliationRun(ctx, run); err != nil {
		return &run, err
	}
	return &run, nil
}

// ListReconciliationRuns returns reconciliation run history.
// GET /api/reconcile/runs?limit=
func (h *Handler) ListReconciliationRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	runs, err := h.Store.ListReconciliationRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get reconciliation runs", err)
		return
	}

	dtos := make([]RunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toRunDTO(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": dtos})
}

// GetReconciliationRun returns one run with per-job results.
// GET /api/reconcile/runs/{id}
func (h *Handler) GetReconciliationRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Store.GetReconciliationRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, sqlite.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "Reconciliation run not found", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get reconciliation run", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(*run))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError picks the status from the error kind.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	code := ""
	switch {
	case generic.IsNotFound(err):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, generic.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case generic.IsConflict(err):
		status, code = http.StatusConflict, "conflict"
	case generic.IsClientError(err):
		status, code = http.StatusBadRequest, "invalid"
	}
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
