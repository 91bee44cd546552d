package routine

import (
	"github.com/warp/life-planner/generic"
	"github.com/warp/life-planner/jalali"
)

// =============================================================================
// CALENDAR - Which calendar defines "first day of month"
// =============================================================================

type Calendar string

const (
	CalendarGregorian Calendar = "gregorian"
	CalendarJalali    Calendar = "jalali"
)

func (c Calendar) Valid() bool {
	return c == CalendarGregorian || c == CalendarJalali
}

// IsFirstOfMonth reports whether d opens a month in c.
func (c Calendar) IsFirstOfMonth(d generic.Day) bool {
	if c == CalendarJalali {
		return jalali.FromGregorian(d.Year, d.Month, d.Dom).IsFirstOfMonth()
	}
	return d.Dom == 1
}

// =============================================================================
// DUE-TODAY EVALUATOR
// =============================================================================

// IsDue reports whether today is an occurrence of job. It ignores Active and
// the completion log; those are the reconciler's concern.
//
//	daily          always
//	weekly, custom today's weekday tag is in DaysOfWeek (empty = never)
//	monthly        today is the first day of the month in cal
func IsDue(job Job, today generic.Day, cal Calendar) bool {
	switch job.Frequency {
	case FrequencyDaily:
		return true
	case FrequencyWeekly, FrequencyCustom:
		tag := TagOf(today.Weekday())
		for _, w := range job.DaysOfWeek {
			if w == tag {
				return true
			}
		}
		return false
	case FrequencyMonthly:
		return cal.IsFirstOfMonth(today)
	default:
		return false
	}
}

// NextDue returns the first due day on or after from within horizon days.
func NextDue(job Job, from generic.Day, cal Calendar, horizon int) (generic.Day, bool) {
	for i := 0; i <= horizon; i++ {
		d := from.AddDays(i)
		if IsDue(job, d, cal) {
			return d, true
		}
	}
	return generic.Day{}, false
}

// =============================================================================
// THRESHOLD CALCULATOR
// =============================================================================

const (
	dailyThreshold   = 30 // approximate month of daily occurrences
	weeksPerCycle    = 4  // approximate weeks per month
	monthlyThreshold = 1
)

// RequiredCompletions is the number of completions that make one payout
// cycle. These are calendar approximations, not exact month lengths.
// A custom job with no weekdays gets 0 and is never due anyway.
func RequiredCompletions(freq Frequency, days []Weekday) int {
	switch freq {
	case FrequencyDaily:
		return dailyThreshold
	case FrequencyWeekly:
		return weeksPerCycle
	case FrequencyMonthly:
		return monthlyThreshold
	case FrequencyCustom:
		return len(days) * weeksPerCycle
	default:
		return 0
	}
}

// =============================================================================
// IDEMPOTENCY GUARD
// =============================================================================

// AlreadyLogged reports whether completions already holds today.
// Matching is exact day equality; today must be computed once per run.
func AlreadyLogged(completions []generic.Day, today generic.Day) bool {
	for _, c := range completions {
		if c.Equal(today) {
			return true
		}
	}
	return false
}
