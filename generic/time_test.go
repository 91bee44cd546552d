package generic

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDay_ParseAndFormat(t *testing.T) {
	d, err := ParseDay("2025-03-21")
	require.NoError(t, err)
	assert.Equal(t, NewDay(2025, time.March, 21), d)
	assert.Equal(t, "2025-03-21", d.String())

	_, err = ParseDay("21/03/2025")
	assert.Error(t, err)

	assert.Equal(t, "", Day{}.String())
}

func TestDayOf_UsesTimesLocation(t *testing.T) {
	// GIVEN: 22:00 UTC on March 20, which is already March 21 in Tehran
	tehran, err := time.LoadLocation("Asia/Tehran")
	require.NoError(t, err)
	instant := time.Date(2025, time.March, 20, 22, 0, 0, 0, time.UTC)

	// THEN: The day depends on the zone
	assert.Equal(t, NewDay(2025, time.March, 20), DayOf(instant))
	assert.Equal(t, NewDay(2025, time.March, 21), DayOf(instant.In(tehran)))
}

func TestDay_Arithmetic(t *testing.T) {
	d := NewDay(2024, time.February, 28)

	assert.Equal(t, NewDay(2024, time.February, 29), d.AddDays(1), "leap year")
	assert.Equal(t, NewDay(2024, time.March, 1), d.AddDays(2))
	assert.Equal(t, 2, DaysBetween(d, d.AddDays(2)))
	assert.Equal(t, NewDay(2024, time.February, 1), StartOfMonth(d))
	assert.Equal(t, NewDay(2024, time.February, 29), EndOfMonth(d))
	assert.Equal(t, time.Wednesday, d.Weekday())

	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.BeforeOrEqual(d))
	assert.True(t, d.AfterOrEqual(d))
	assert.False(t, d.After(d))
}

func TestDayRange_Contains(t *testing.T) {
	from := NewDay(2025, time.March, 1)
	to := NewDay(2025, time.March, 31)

	tests := []struct {
		name string
		r    DayRange
		day  Day
		want bool
	}{
		{"inside", DayRange{from, to}, NewDay(2025, time.March, 15), true},
		{"from is inclusive", DayRange{from, to}, from, true},
		{"to is inclusive", DayRange{from, to}, to, true},
		{"before", DayRange{from, to}, NewDay(2025, time.February, 28), false},
		{"after", DayRange{from, to}, NewDay(2025, time.April, 1), false},
		{"open start", DayRange{To: to}, NewDay(1990, time.January, 1), true},
		{"open end", DayRange{From: from}, NewDay(2100, time.January, 1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.r.Contains(tt.day))
		})
	}
}

func TestAmount_Arithmetic(t *testing.T) {
	a, err := ParseAmount("100.50", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultCurrency, a.Currency)

	b := NewAmountFromInt(50, DefaultCurrency)
	assert.Equal(t, "150.5", a.Add(b).Value.String())
	assert.Equal(t, "50.5", a.Sub(b).Value.String())
	assert.True(t, a.GreaterThan(b))
	assert.True(t, b.Neg().IsNegative())
	assert.True(t, b.Zero().IsZero())

	_, err = ParseAmount("ten", "")
	assert.Error(t, err)
}
