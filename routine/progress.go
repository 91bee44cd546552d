package routine

import (
	"github.com/shopspring/decimal"
	"github.com/warp/life-planner/generic"
)

// nextDueHorizon covers the longest gap between occurrences (a Jalali
// 31-day month plus slack).
const nextDueHorizon = 62

// Progress is the client's read-only view of a job's accrual.
type Progress struct {
	Completions   int
	Threshold     int
	Remaining     int
	Percent       int
	DueToday      bool
	LoggedToday   bool
	Misconfigured bool
	NextDue       *generic.Day
	CyclePayout   generic.Amount
}

// ProgressOf computes progress as of today. It never mutates job.
func ProgressOf(job Job, today generic.Day, cal Calendar) Progress {
	threshold := RequiredCompletions(job.Frequency, job.DaysOfWeek)
	count := len(job.Completions)

	p := Progress{
		Completions:   count,
		Threshold:     threshold,
		DueToday:      job.Active && IsDue(job, today, cal),
		LoggedToday:   AlreadyLogged(job.Completions, today),
		Misconfigured: job.Misconfigured(),
		CyclePayout:   job.Earnings,
	}
	if threshold > 0 {
		p.Remaining = threshold - count
		if p.Remaining < 0 {
			p.Remaining = 0
		}
		p.Percent = int(decimal.NewFromInt(int64(count)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(threshold))).
			IntPart())
		if p.Percent > 100 {
			p.Percent = 100
		}
	}

	if job.Active && !p.Misconfigured {
		from := today
		if p.LoggedToday {
			from = today.AddDays(1)
		}
		if d, ok := NextDue(job, from, cal, nextDueHorizon); ok {
			p.NextDue = &d
		}
	}
	return p
}
