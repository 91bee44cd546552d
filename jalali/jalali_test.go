package jalali_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/life-planner/jalali"
)

func TestFromGregorian_KnownDates(t *testing.T) {
	cases := []struct {
		name string
		gy   int
		gm   time.Month
		gd   int
		want jalali.Date
	}{
		{"nowruz 1402", 2023, time.March, 21, jalali.Date{Year: 1402, Month: jalali.Farvardin, Day: 1}},
		{"nowruz 1403", 2024, time.March, 20, jalali.Date{Year: 1403, Month: jalali.Farvardin, Day: 1}},
		{"leap esfand 30", 2025, time.March, 20, jalali.Date{Year: 1403, Month: jalali.Esfand, Day: 30}},
		{"nowruz 1404", 2025, time.March, 21, jalali.Date{Year: 1404, Month: jalali.Farvardin, Day: 1}},
		{"mehr", 2025, time.October, 17, jalali.Date{Year: 1404, Month: jalali.Mehr, Day: 25}},
		{"common esfand 29", 2026, time.March, 20, jalali.Date{Year: 1404, Month: jalali.Esfand, Day: 29}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := jalali.FromGregorian(tc.gy, tc.gm, tc.gd)
			assert.Equal(t, tc.want, got)

			gy, gm, gd := got.Gregorian()
			assert.Equal(t, tc.gy, gy)
			assert.Equal(t, tc.gm, gm)
			assert.Equal(t, tc.gd, gd)
		})
	}
}

func TestRoundTrip_EveryDayOfTwoYears(t *testing.T) {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	prev := jalali.FromTime(start.AddDate(0, 0, -1))

	for i := 0; i < 731; i++ {
		day := start.AddDate(0, 0, i)
		j := jalali.FromTime(day)
		if !assert.True(t, j.Valid(), "invalid jalali date %v for %s", j, day) {
			return
		}
		assert.Equal(t, day, j.Time(time.UTC))
		assert.Equal(t, j, prev.AddDays(1), "consecutive days must stay consecutive")
		prev = j
	}
}

func TestIsLeap(t *testing.T) {
	assert.True(t, jalali.IsLeap(1399))
	assert.True(t, jalali.IsLeap(1403))
	assert.False(t, jalali.IsLeap(1404))
	assert.False(t, jalali.IsLeap(1407))
	assert.True(t, jalali.IsLeap(1408))
}

func TestMonthLength(t *testing.T) {
	assert.Equal(t, 31, jalali.MonthLength(1404, jalali.Farvardin))
	assert.Equal(t, 31, jalali.MonthLength(1404, jalali.Shahrivar))
	assert.Equal(t, 30, jalali.MonthLength(1404, jalali.Mehr))
	assert.Equal(t, 29, jalali.MonthLength(1404, jalali.Esfand))
	assert.Equal(t, 30, jalali.MonthLength(1403, jalali.Esfand))
}

func TestFormatting(t *testing.T) {
	d := jalali.Date{Year: 1404, Month: jalali.Farvardin, Day: 1}
	assert.Equal(t, "1404/01/01", d.String())
	assert.Equal(t, "۱ فروردین ۱۴۰۴", d.FormatPersian())
	assert.Equal(t, "شنبه", jalali.WeekdayName(time.Saturday))
	assert.Equal(t, "جمعه", jalali.WeekdayName(time.Friday))
	assert.True(t, d.IsFirstOfMonth())
}
