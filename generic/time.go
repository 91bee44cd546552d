package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// DAY - Civil calendar date (the unit of every completion marker)
// =============================================================================

// DayLayout is the canonical date-stamp format stored in the database and
// compared by the idempotency guard.
const DayLayout = "2006-01-02"

// Day is a calendar date without time of day or zone.
// Two Days are equal iff year, month and day are equal.
type Day struct {
	Year  int
	Month time.Month
	Dom   int
}

// Constructors
func NewDay(year int, month time.Month, day int) Day {
	return DayOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DayOf returns the calendar date of t in t's own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Dom: d}
}

func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid day %q (use YYYY-MM-DD): %w", s, err)
	}
	return DayOf(t), nil
}

// MustParseDay panics on malformed input. Intended for tests and constants.
func MustParseDay(s string) Day {
	d, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Time returns midnight UTC of the day.
func (d Day) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Dom, 0, 0, 0, 0, time.UTC)
}

// Comparison
func (d Day) Before(other Day) bool        { return d.Time().Before(other.Time()) }
func (d Day) After(other Day) bool         { return d.Time().After(other.Time()) }
func (d Day) Equal(other Day) bool         { return d == other }
func (d Day) BeforeOrEqual(other Day) bool { return !d.After(other) }
func (d Day) AfterOrEqual(other Day) bool  { return !d.Before(other) }

// Arithmetic
func (d Day) AddDays(n int) Day   { return DayOf(d.Time().AddDate(0, 0, n)) }
func (d Day) AddMonths(n int) Day { return DayOf(d.Time().AddDate(0, n, 0)) }

// Properties
func (d Day) Weekday() time.Weekday { return d.Time().Weekday() }
func (d Day) IsZero() bool          { return d == Day{} }

func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(DayLayout)
}

func DaysBetween(from, to Day) int { return int(to.Time().Sub(from.Time()).Hours() / 24) }
func StartOfMonth(d Day) Day       { return NewDay(d.Year, d.Month, 1) }
func EndOfMonth(d Day) Day         { return StartOfMonth(d).AddMonths(1).AddDays(-1) }

// =============================================================================
// DAY RANGE
// =============================================================================

// DayRange is an inclusive [From, To] range. A zero bound is open.
type DayRange struct {
	From Day
	To   Day
}

func (r DayRange) Contains(d Day) bool {
	if !r.From.IsZero() && d.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && d.After(r.To) {
		return false
	}
	return true
}

func (r DayRange) String() string {
	return "[" + r.From.String() + ", " + r.To.String() + "]"
}
