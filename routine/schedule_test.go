package routine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/life-planner/generic"
	"github.com/warp/life-planner/routine"
)

// 2025-03-01 is a Saturday.
var (
	sat = generic.NewDay(2025, time.March, 1)
	sun = generic.NewDay(2025, time.March, 2)
	mon = generic.NewDay(2025, time.March, 3)
)

func TestIsDue_RuleTable(t *testing.T) {
	weekly := routine.Job{Frequency: routine.FrequencyWeekly, DaysOfWeek: []routine.Weekday{routine.Saturday, routine.Monday}}
	custom := routine.Job{Frequency: routine.FrequencyCustom, DaysOfWeek: []routine.Weekday{routine.Sunday}}
	daily := routine.Job{Frequency: routine.FrequencyDaily}
	monthly := routine.Job{Frequency: routine.FrequencyMonthly}

	cases := []struct {
		name string
		job  routine.Job
		day  generic.Day
		want bool
	}{
		{"daily saturday", daily, sat, true},
		{"daily sunday", daily, sun, true},
		{"weekly member", weekly, sat, true},
		{"weekly member monday", weekly, mon, true},
		{"weekly non-member", weekly, sun, false},
		{"custom member", custom, sun, true},
		{"custom non-member", custom, mon, false},
		{"monthly first", monthly, generic.NewDay(2025, time.April, 1), true},
		{"monthly second", monthly, generic.NewDay(2025, time.April, 2), false},
		{"weekly without days", routine.Job{Frequency: routine.FrequencyWeekly}, sat, false},
		{"custom without days", routine.Job{Frequency: routine.FrequencyCustom}, sat, false},
		{"unknown frequency", routine.Job{Frequency: "hourly"}, sat, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, routine.IsDue(tc.job, tc.day, routine.CalendarGregorian))
		})
	}
}

func TestIsDue_MonthlyJalaliCalendar(t *testing.T) {
	monthly := routine.Job{Frequency: routine.FrequencyMonthly}

	nowruz := generic.NewDay(2025, time.March, 21) // 1 Farvardin 1404
	assert.True(t, routine.IsDue(monthly, nowruz, routine.CalendarJalali))
	assert.False(t, routine.IsDue(monthly, nowruz, routine.CalendarGregorian))

	aprilFirst := generic.NewDay(2025, time.April, 1) // 12 Farvardin
	assert.False(t, routine.IsDue(monthly, aprilFirst, routine.CalendarJalali))
	assert.True(t, routine.IsDue(monthly, aprilFirst, routine.CalendarGregorian))
}

func TestRequiredCompletions(t *testing.T) {
	two := []routine.Weekday{routine.Saturday, routine.Monday}

	assert.Equal(t, 30, routine.RequiredCompletions(routine.FrequencyDaily, nil))
	assert.Equal(t, 4, routine.RequiredCompletions(routine.FrequencyWeekly, two))
	assert.Equal(t, 1, routine.RequiredCompletions(routine.FrequencyMonthly, nil))
	assert.Equal(t, 8, routine.RequiredCompletions(routine.FrequencyCustom, two))
	assert.Equal(t, 0, routine.RequiredCompletions(routine.FrequencyCustom, nil))
}

func TestAlreadyLogged_ExactDayMatch(t *testing.T) {
	completions := []generic.Day{sat, mon}

	assert.True(t, routine.AlreadyLogged(completions, sat))
	assert.True(t, routine.AlreadyLogged(completions, mon))
	assert.False(t, routine.AlreadyLogged(completions, sun))
	assert.False(t, routine.AlreadyLogged(nil, sat))
}

func TestNormalizeWeekdays(t *testing.T) {
	days, unknown := routine.NormalizeWeekdays([]string{"Monday", " saturday", "monday", "funday"})

	assert.Equal(t, []routine.Weekday{routine.Saturday, routine.Monday}, days)
	assert.Equal(t, []string{"funday"}, unknown)
}

func TestNextDue(t *testing.T) {
	weekly := routine.Job{Frequency: routine.FrequencyWeekly, DaysOfWeek: []routine.Weekday{routine.Monday}}

	d, ok := routine.NextDue(weekly, sat, routine.CalendarGregorian, 7)
	assert.True(t, ok)
	assert.Equal(t, mon, d)

	_, ok = routine.NextDue(routine.Job{Frequency: routine.FrequencyWeekly}, sat, routine.CalendarGregorian, 14)
	assert.False(t, ok)
}

func TestProgressOf(t *testing.T) {
	job := routine.Job{
		Active:      true,
		Frequency:   routine.FrequencyWeekly,
		DaysOfWeek:  []routine.Weekday{routine.Saturday, routine.Monday},
		Earnings:    generic.NewAmountFromInt(100000, generic.CurrencyIRR),
		Completions: []generic.Day{sat},
	}

	p := routine.ProgressOf(job, sat, routine.CalendarGregorian)
	assert.Equal(t, 1, p.Completions)
	assert.Equal(t, 4, p.Threshold)
	assert.Equal(t, 3, p.Remaining)
	assert.Equal(t, 25, p.Percent)
	assert.True(t, p.DueToday)
	assert.True(t, p.LoggedToday)
	if assert.NotNil(t, p.NextDue) {
		assert.Equal(t, mon, *p.NextDue)
	}

	job.DaysOfWeek = nil
	p = routine.ProgressOf(job, sat, routine.CalendarGregorian)
	assert.True(t, p.Misconfigured)
	assert.Nil(t, p.NextDue)
}

func TestJobValidate(t *testing.T) {
	valid := routine.Job{
		OwnerID:   "user-1",
		Name:      "Tutoring",
		Earnings:  generic.NewAmountFromInt(100000, generic.CurrencyIRR),
		Frequency: routine.FrequencyDaily,
	}
	assert.NoError(t, valid.Validate())

	noEarnings := valid
	noEarnings.Earnings = generic.NewAmountFromInt(0, generic.CurrencyIRR)
	assert.ErrorIs(t, noEarnings.Validate(), generic.ErrInvalidInput)

	badFreq := valid
	badFreq.Frequency = "yearly"
	assert.ErrorIs(t, badFreq.Validate(), generic.ErrInvalidInput)

	badDay := valid
	badDay.DaysOfWeek = []routine.Weekday{"someday"}
	assert.ErrorIs(t, badDay.Validate(), generic.ErrInvalidInput)

	toman := valid
	toman.Earnings = generic.NewAmountFromInt(10000, generic.CurrencyIRT)
	assert.NoError(t, toman.Validate())

	dollars := valid
	dollars.Earnings = generic.NewAmountFromInt(10, "USD")
	assert.ErrorIs(t, dollars.Validate(), generic.ErrInvalidInput)
}
