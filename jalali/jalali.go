/*
Package jalali converts between the Gregorian and the Jalali (Solar Hijri)
calendars.

PURPOSE:
  The planner's users think in Jalali dates ("1 Farvardin"), the store
  keeps Gregorian date-stamps. This package is the single place that maps
  one to the other. It is used by:
  - routine: "first day of month" for monthly jobs when the Jalali calendar
    is configured
  - api: date_jalali fields in responses

  Conversion, leap years and month/weekday names come from ptime
  (github.com/yaa110/go-persian-calendar). Date keeps a plain value form so
  it compares with == and prints without a location.

SEE ALSO:
  - routine/schedule.go: Calendar selection for due evaluation
*/
package jalali

import (
	"fmt"
	"strings"
	"time"

	ptime "github.com/yaa110/go-persian-calendar"
)

// =============================================================================
// TYPES
// =============================================================================

type Month = ptime.Month

const (
	Farvardin   = ptime.Farvardin
	Ordibehesht = ptime.Ordibehesht
	Khordad     = ptime.Khordad
	Tir         = ptime.Tir
	Mordad      = ptime.Mordad
	Shahrivar   = ptime.Shahrivar
	Mehr        = ptime.Mehr
	Aban        = ptime.Aban
	Azar        = ptime.Azar
	Dey         = ptime.Dey
	Bahman      = ptime.Bahman
	Esfand      = ptime.Esfand
)

// WeekdayName returns the Persian name of w.
func WeekdayName(w time.Weekday) string {
	// ptime weeks start on Saturday (Shanbeh = 0).
	return ptime.Weekday((int(w) + 1) % 7).String()
}

// Date is a Jalali calendar date.
type Date struct {
	Year  int
	Month Month
	Day   int
}

// =============================================================================
// CONVERSION
// =============================================================================

// FromGregorian converts a Gregorian date.
func FromGregorian(year int, month time.Month, day int) Date {
	// Noon keeps the date stable whatever zone ptime reads it in.
	return fromPtime(ptime.New(time.Date(year, month, day, 12, 0, 0, 0, time.UTC)))
}

// FromTime converts the calendar date of t (in t's location).
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return FromGregorian(y, m, d)
}

func fromPtime(pt ptime.Time) Date {
	return Date{Year: pt.Year(), Month: pt.Month(), Day: pt.Day()}
}

func (d Date) ptime() ptime.Time {
	return ptime.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC)
}

// Gregorian returns the Gregorian date for d.
func (d Date) Gregorian() (int, time.Month, int) {
	return d.ptime().Time().Date()
}

// Time returns midnight of d in loc. A nil loc means UTC.
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	gy, gm, gd := d.Gregorian()
	return time.Date(gy, gm, gd, 0, 0, 0, 0, loc)
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return FromTime(d.Time(time.UTC).AddDate(0, 0, n))
}

// Valid reports whether d names an existing Jalali day.
func (d Date) Valid() bool {
	if d.Year < 1 || d.Month < Farvardin || d.Month > Esfand || d.Day < 1 {
		return false
	}
	return d.Day <= MonthLength(d.Year, d.Month)
}

func (d Date) IsFirstOfMonth() bool { return d.Day == 1 }

// String formats as 1404/01/01 with Latin digits.
func (d Date) String() string {
	return fmt.Sprintf("%04d/%02d/%02d", d.Year, int(d.Month), d.Day)
}

var persianDigits = strings.NewReplacer(
	"0", "۰", "1", "۱", "2", "۲", "3", "۳", "4", "۴",
	"5", "۵", "6", "۶", "7", "۷", "8", "۸", "9", "۹",
)

// FormatPersian formats as "۱ فروردین ۱۴۰۴".
func (d Date) FormatPersian() string {
	return persianDigits.Replace(fmt.Sprintf("%d %s %d", d.Day, d.Month.String(), d.Year))
}

// IsLeap reports whether the Jalali year has 366 days.
func IsLeap(year int) bool {
	return Date{Year: year, Month: Farvardin, Day: 1}.ptime().IsLeap()
}

// MonthLength returns the number of days in the month.
func MonthLength(year int, m Month) int {
	switch {
	case m <= Shahrivar:
		return 31
	case m <= Bahman:
		return 30
	case IsLeap(year):
		return 30
	default:
		return 29
	}
}
