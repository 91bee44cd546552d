/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DATES:
  Days are ISO "YYYY-MM-DD". Where a client shows a date to the user the
  Solar Hijri rendering is included next to it (*_jalali fields).

MONEY:
  Amounts are decimal strings in responses; requests accept a string or a
  JSON number.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/life-planner/generic"
	"github.com/warp/life-planner/jalali"
	"github.com/warp/life-planner/planner"
	"github.com/warp/life-planner/routine"
	"github.com/warp/life-planner/store/sqlite"
)

// =============================================================================
// ROUTINE JOBS
// =============================================================================

// RoutineJobDTO represents a routine job in API responses.
type RoutineJobDTO struct {
	ID                   string       `json:"id"`
	Name                 string       `json:"name"`
	Earnings             string       `json:"earnings"`
	Currency             string       `json:"currency"`
	Frequency            string       `json:"frequency"`
	DaysOfWeek           []string     `json:"days_of_week"`
	Active               bool         `json:"active"`
	Completions          []string     `json:"completions"`
	LastPayoutDate       *string      `json:"last_payout_date,omitempty"`
	LastPayoutDateJalali *string      `json:"last_payout_date_jalali,omitempty"`
	Progress             *ProgressDTO `json:"progress,omitempty"`
	CreatedAt            string       `json:"created_at,omitempty"`
	UpdatedAt            string       `json:"updated_at,omitempty"`
}

// ProgressDTO is the accrual read model shown next to each job.
type ProgressDTO struct {
	Completions   int     `json:"completions"`
	Threshold     int     `json:"threshold"`
	Remaining     int     `json:"remaining"`
	Percent       int     `json:"percent"`
	DueToday      bool    `json:"due_today"`
	LoggedToday   bool    `json:"logged_today"`
	Misconfigured bool    `json:"misconfigured"`
	NextDue       *string `json:"next_due,omitempty"`
	NextDueJalali *string `json:"next_due_jalali,omitempty"`
	CyclePayout   string  `json:"cycle_payout"`
}

// RoutineJobRequest creates or replaces a job. Completions is accepted only
// so that a client trying to write it gets a clear 403.
type RoutineJobRequest struct {
	Name        string          `json:"name"`
	Earnings    decimal.Decimal `json:"earnings"`
	Currency    string          `json:"currency,omitempty"`
	Frequency   string          `json:"frequency"`
	DaysOfWeek  []string        `json:"days_of_week"`
	Active      *bool           `json:"active,omitempty"`
	Completions json.RawMessage `json:"completions,omitempty"`
}

// =============================================================================
// FINANCIAL RECORDS
// =============================================================================

// FinancialRecordDTO represents a ledger entry.
type FinancialRecordDTO struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	Description  string `json:"description,omitempty"`
	Category     string `json:"category,omitempty"`
	Date         string `json:"date"`
	DateJalali   string `json:"date_jalali"`
	TaskID       string `json:"task_id,omitempty"`
	RoutineJobID string `json:"routine_job_id,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// CreateRecordRequest is a manual income or expense entry.
type CreateRecordRequest struct {
	Type           string          `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency,omitempty"`
	Description    string          `json:"description,omitempty"`
	Category       string          `json:"category,omitempty"`
	Date           string          `json:"date,omitempty"` // default today
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// SummaryDTO aggregates an owner's records over a range.
type SummaryDTO struct {
	From       string             `json:"from,omitempty"`
	To         string             `json:"to,omitempty"`
	Currency   string             `json:"currency"`
	Income     string             `json:"income"`
	Expense    string             `json:"expense"`
	Net        string             `json:"net"`
	Categories []CategoryTotalDTO `json:"categories"`
}

type CategoryTotalDTO struct {
	Category string `json:"category"`
	Type     string `json:"type"`
	Total    string `json:"total"`
	Count    int    `json:"count"`
}

// =============================================================================
// PLANNER
// =============================================================================

type HabitDTO struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Completions []string `json:"completions"`
	DoneToday   bool     `json:"done_today"`
	Streak      int      `json:"streak"`
	CreatedAt   string   `json:"created_at,omitempty"`
}

type HabitRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ToggleRequest names the day to toggle; empty means today.
type ToggleRequest struct {
	Date string `json:"date,omitempty"`
}

type TaskDTO struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Description    string  `json:"description,omitempty"`
	Priority       string  `json:"priority"`
	DueDate        *string `json:"due_date,omitempty"`
	GoalID         string  `json:"goal_id,omitempty"`
	Reward         *string `json:"reward,omitempty"`
	RewardCurrency string  `json:"reward_currency,omitempty"`
	Completed      bool    `json:"completed"`
	CompletedOn    *string `json:"completed_on,omitempty"`
	CreatedAt      string  `json:"created_at,omitempty"`
}

type TaskRequest struct {
	Title          string           `json:"title"`
	Description    string           `json:"description,omitempty"`
	Priority       string           `json:"priority,omitempty"`
	DueDate        string           `json:"due_date,omitempty"`
	GoalID         string           `json:"goal_id,omitempty"`
	Reward         *decimal.Decimal `json:"reward,omitempty"`
	RewardCurrency string           `json:"reward_currency,omitempty"`
}

// CompleteTaskResponse carries the reward record when this call paid one.
type CompleteTaskResponse struct {
	Task   TaskDTO             `json:"task"`
	Reward *FinancialRecordDTO `json:"reward,omitempty"`
}

type GoalDTO struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description,omitempty"`
	TargetDate   *string `json:"target_date,omitempty"`
	Progress     int     `json:"progress"`
	TaskProgress *int    `json:"task_progress,omitempty"`
	CreatedAt    string  `json:"created_at,omitempty"`
}

type GoalRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	TargetDate  string `json:"target_date,omitempty"`
	Progress    int    `json:"progress"`
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// ReconcileRequest optionally overrides the run day (service role only).
type ReconcileRequest struct {
	Date string `json:"date,omitempty"`
}

type RunDTO struct {
	ID          string         `json:"id"`
	Day         string         `json:"day"`
	Status      string         `json:"status"`
	Jobs        int            `json:"jobs"`
	Accrued     int            `json:"accrued"`
	PaidOut     int            `json:"paid_out"`
	Skipped     int            `json:"skipped"`
	Failed      int            `json:"failed"`
	Error       string         `json:"error,omitempty"`
	StartedAt   string         `json:"started_at"`
	CompletedAt string         `json:"completed_at,omitempty"`
	Results     []RunResultDTO `json:"results,omitempty"`
}

type RunResultDTO struct {
	JobID       string `json:"job_id"`
	OwnerID     string `json:"owner_id"`
	Outcome     string `json:"outcome"`
	Reason      string `json:"reason,omitempty"`
	Completions int    `json:"completions"`
	Threshold   int    `json:"threshold"`
	RecordID    string `json:"record_id,omitempty"`
	Repaired    bool   `json:"repaired,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func dayPtr(d *generic.Day) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func jalaliPtr(d *generic.Day) *string {
	if d == nil {
		return nil
	}
	s := jalali.FromGregorian(d.Year, d.Month, d.Dom).String()
	return &s
}

func jalaliOf(d generic.Day) string {
	return jalali.FromGregorian(d.Year, d.Month, d.Dom).String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func daysToStrings(days []generic.Day) []string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, d.String())
	}
	return out
}

func toRoutineJobDTO(job routine.Job, progress *routine.Progress) RoutineJobDTO {
	days := make([]string, 0, len(job.DaysOfWeek))
	for _, d := range job.DaysOfWeek {
		days = append(days, string(d))
	}
	dto := RoutineJobDTO{
		ID:                   string(job.ID),
		Name:                 job.Name,
		Earnings:             job.Earnings.Value.String(),
		Currency:             string(job.Earnings.Currency),
		Frequency:            string(job.Frequency),
		DaysOfWeek:           days,
		Active:               job.Active,
		Completions:          daysToStrings(job.Completions),
		LastPayoutDate:       dayPtr(job.LastPayoutDate),
		LastPayoutDateJalali: jalaliPtr(job.LastPayoutDate),
		CreatedAt:            formatTime(job.CreatedAt),
		UpdatedAt:            formatTime(job.UpdatedAt),
	}
	if progress != nil {
		p := toProgressDTO(*progress)
		dto.Progress = &p
	}
	return dto
}

func toProgressDTO(p routine.Progress) ProgressDTO {
	return ProgressDTO{
		Completions:   p.Completions,
		Threshold:     p.Threshold,
		Remaining:     p.Remaining,
		Percent:       p.Percent,
		DueToday:      p.DueToday,
		LoggedToday:   p.LoggedToday,
		Misconfigured: p.Misconfigured,
		NextDue:       dayPtr(p.NextDue),
		NextDueJalali: jalaliPtr(p.NextDue),
		CyclePayout:   p.CyclePayout.Value.String(),
	}
}

func toRecordDTO(rec generic.FinancialRecord) FinancialRecordDTO {
	return FinancialRecordDTO{
		ID:           string(rec.ID),
		Type:         string(rec.Type),
		Amount:       rec.Amount.Value.String(),
		Currency:     string(rec.Amount.Currency),
		Description:  rec.Description,
		Category:     rec.Category,
		Date:         rec.Date.String(),
		DateJalali:   jalaliOf(rec.Date),
		TaskID:       rec.TaskID,
		RoutineJobID: rec.RoutineJobID,
		CreatedAt:    formatTime(rec.CreatedAt),
	}
}

func toRecordDTOs(recs []generic.FinancialRecord) []FinancialRecordDTO {
	dtos := make([]FinancialRecordDTO, 0, len(recs))
	for _, rec := range recs {
		dtos = append(dtos, toRecordDTO(rec))
	}
	return dtos
}

func toSummaryDTO(s generic.Summary) SummaryDTO {
	dto := SummaryDTO{
		Currency:   string(s.Income.Currency),
		Income:     s.Income.Value.String(),
		Expense:    s.Expense.Value.String(),
		Net:        s.Net.Value.String(),
		Categories: make([]CategoryTotalDTO, 0, len(s.Categories)),
	}
	if !s.Range.From.IsZero() {
		dto.From = s.Range.From.String()
	}
	if !s.Range.To.IsZero() {
		dto.To = s.Range.To.String()
	}
	for _, c := range s.Categories {
		dto.Categories = append(dto.Categories, CategoryTotalDTO{
			Category: c.Category,
			Type:     string(c.Type),
			Total:    c.Total.Value.String(),
			Count:    c.Count,
		})
	}
	return dto
}

func toHabitDTO(h planner.Habit, today generic.Day) HabitDTO {
	return HabitDTO{
		ID:          string(h.ID),
		Name:        h.Name,
		Description: h.Description,
		Completions: daysToStrings(h.Completions),
		DoneToday:   h.CompletedOn(today),
		Streak:      planner.Streak(h.Completions, today),
		CreatedAt:   formatTime(h.CreatedAt),
	}
}

func toTaskDTO(t planner.Task) TaskDTO {
	dto := TaskDTO{
		ID:          string(t.ID),
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		DueDate:     dayPtr(t.DueDate),
		GoalID:      string(t.GoalID),
		Completed:   t.Completed,
		CompletedOn: dayPtr(t.CompletedOn),
		CreatedAt:   formatTime(t.CreatedAt),
	}
	if t.Reward != nil {
		r := t.Reward.Value.String()
		dto.Reward = &r
		dto.RewardCurrency = string(t.Reward.Currency)
	}
	return dto
}

func toGoalDTO(g planner.Goal, tasks []planner.Task) GoalDTO {
	dto := GoalDTO{
		ID:          string(g.ID),
		Title:       g.Title,
		Description: g.Description,
		TargetDate:  dayPtr(g.TargetDate),
		Progress:    g.Progress,
		CreatedAt:   formatTime(g.CreatedAt),
	}
	if p := planner.TaskProgress(g.ID, tasks); p >= 0 {
		dto.TaskProgress = &p
	}
	return dto
}

func toRunDTO(run sqlite.ReconciliationRun) RunDTO {
	dto := RunDTO{
		ID:        run.ID,
		Day:       run.Day,
		Status:    run.Status,
		Jobs:      run.Jobs,
		Accrued:   run.Accrued,
		PaidOut:   run.PaidOut,
		Skipped:   run.Skipped,
		Failed:    run.Failed,
		Error:     run.Error,
		StartedAt: formatTime(run.StartedAt),
	}
	if run.CompletedAt != nil {
		dto.CompletedAt = formatTime(*run.CompletedAt)
	}
	for _, r := range run.Results {
		dto.Results = append(dto.Results, RunResultDTO{
			JobID:       r.JobID,
			OwnerID:     r.OwnerID,
			Outcome:     r.Outcome,
			Reason:      r.Reason,
			Completions: r.Completions,
			Threshold:   r.Threshold,
			RecordID:    r.RecordID,
			Repaired:    r.Repaired,
			Error:       r.Error,
		})
	}
	return dto
}
