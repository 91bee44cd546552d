/*
Package routine implements the accrual and payout engine for routine jobs.

PURPOSE:
  A routine job is a recurring income-generating activity ("teach on
  Saturdays and Mondays, 100,000 per month"). Each due occurrence leaves a
  completion marker; once a frequency-derived threshold is reached the job
  pays out one income record and its counter starts over.

KEY CONCEPTS:
  - Job: The persisted routine job with its open completion cycle
  - Frequency: daily, weekly, monthly, custom
  - Cycle: One accrual counter. Completions belong to exactly one cycle;
    a payout closes the cycle (Cycle+1) instead of deleting markers
  - Reconciler: The scheduled batch that appends markers and pays out

CAPABILITY ROLES:
  Completion markers of a routine job carry monetary consequence, so only
  the Reconciler writes them. Users edit job fields and toggle Active;
  they never touch Completions. Habits (planner package) are the
  user-mutable counterpart with no money attached.

SEE ALSO:
  - schedule.go: Due-today evaluation and thresholds
  - reconciler.go: The batch orchestrator
  - progress.go: Read model for the client
*/
package routine

import (
	"strings"
	"time"

	"github.com/warp/life-planner/generic"
)

// =============================================================================
// FREQUENCY
// =============================================================================

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyCustom  Frequency = "custom"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyCustom:
		return true
	}
	return false
}

// UsesWeekdays reports whether DaysOfWeek is meaningful for f.
func (f Frequency) UsesWeekdays() bool {
	return f == FrequencyWeekly || f == FrequencyCustom
}

// =============================================================================
// WEEKDAY TAGS
// =============================================================================

// Weekday is the lowercase English tag stored in days_of_week.
type Weekday string

const (
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
)

// WeekOrder lists tags in Persian week order (Saturday first).
var WeekOrder = []Weekday{Saturday, Sunday, Monday, Tuesday, Wednesday, Thursday, Friday}

var weekdayTags = map[time.Weekday]Weekday{
	time.Saturday:  Saturday,
	time.Sunday:    Sunday,
	time.Monday:    Monday,
	time.Tuesday:   Tuesday,
	time.Wednesday: Wednesday,
	time.Thursday:  Thursday,
	time.Friday:    Friday,
}

// TagOf returns the tag for a time.Weekday.
func TagOf(w time.Weekday) Weekday { return weekdayTags[w] }

// ParseWeekday accepts any casing and surrounding whitespace.
func ParseWeekday(s string) (Weekday, bool) {
	w := Weekday(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range WeekOrder {
		if w == known {
			return w, true
		}
	}
	return "", false
}

// NormalizeWeekdays parses, de-duplicates and sorts tags in week order.
// Unknown tags are returned in the second result.
func NormalizeWeekdays(raw []string) ([]Weekday, []string) {
	seen := make(map[Weekday]bool)
	var unknown []string
	for _, s := range raw {
		w, ok := ParseWeekday(s)
		if !ok {
			unknown = append(unknown, s)
			continue
		}
		seen[w] = true
	}
	days := make([]Weekday, 0, len(seen))
	for _, w := range WeekOrder {
		if seen[w] {
			days = append(days, w)
		}
	}
	return days, unknown
}

// =============================================================================
// JOB
// =============================================================================

type JobID string

// Job is a routine job together with its open accrual cycle.
// Completions holds the markers of cycle Cycle only, oldest first.
type Job struct {
	ID             JobID
	OwnerID        generic.OwnerID
	Name           string
	Earnings       generic.Amount
	Frequency      Frequency
	DaysOfWeek     []Weekday
	Active         bool
	Cycle          int
	Completions    []generic.Day
	LastPayoutDate *generic.Day
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Misconfigured reports a weekly/custom job without weekdays. Such a job is
// never due; it is not an error.
func (j Job) Misconfigured() bool {
	return j.Frequency.UsesWeekdays() && len(j.DaysOfWeek) == 0
}

// PaidOutOn reports whether the last payout happened on d.
func (j Job) PaidOutOn(d generic.Day) bool {
	return j.LastPayoutDate != nil && j.LastPayoutDate.Equal(d)
}

// Validate checks user-editable fields.
func (j Job) Validate() error {
	if j.OwnerID == "" {
		return &generic.ValidationError{Field: "owner_id", Reason: "required"}
	}
	if strings.TrimSpace(j.Name) == "" {
		return &generic.ValidationError{Field: "name", Reason: "required"}
	}
	if !j.Earnings.IsPositive() {
		return &generic.ValidationError{Field: "earnings", Reason: "must be greater than zero"}
	}
	if !j.Earnings.Currency.Valid() {
		return &generic.ValidationError{Field: "currency", Reason: "must be IRR or IRT"}
	}
	if !j.Frequency.Valid() {
		return &generic.ValidationError{Field: "frequency", Reason: "must be daily, weekly, monthly or custom"}
	}
	for _, w := range j.DaysOfWeek {
		if _, ok := ParseWeekday(string(w)); !ok {
			return &generic.ValidationError{Field: "days_of_week", Reason: "unknown weekday " + string(w)}
		}
	}
	return nil
}
