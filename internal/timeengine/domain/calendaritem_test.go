package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarItemIsValid(t *testing.T) {
	valid := CalendarItem{HasStartTime: true, StartTime: 9 * time.Hour, DurationMinutes: 30}
	assert.NoError(t, valid.IsValid())

	zeroDuration := CalendarItem{HasStartTime: true, StartTime: 9 * time.Hour, DurationMinutes: 0}
	assert.Error(t, zeroDuration.IsValid())

	bothAnchors := CalendarItem{
		HasStartTime: true, StartTime: 9 * time.Hour,
		DateTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), DurationMinutes: 30,
	}
	assert.Error(t, bothAnchors.IsValid())

	dateTimeWithDailyRepeat := CalendarItem{
		DateTime:        time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
		DurationMinutes: 30,
		Repeating:       RepeatingOption{Mode: RepeatingModeDaily},
	}
	assert.Error(t, dateTimeWithDailyRepeat.IsValid())
}

func TestCalendarItemOneShot(t *testing.T) {
	item := CalendarItem{
		DateTime:        time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 30,
	}

	assert.False(t, item.Evaluate(time.Date(2026, 8, 1, 9, 59, 0, 0, time.UTC)))
	assert.True(t, item.Evaluate(time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)))
	assert.True(t, item.Evaluate(time.Date(2026, 8, 1, 10, 29, 0, 0, time.UTC)))
	assert.False(t, item.Evaluate(time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC)))
}

func TestCalendarItemHourly(t *testing.T) {
	item := CalendarItem{
		HasStartTime:    true,
		StartTime:       15 * time.Minute,
		DurationMinutes: 10,
		Repeating:       RepeatingOption{Mode: RepeatingModeHourly},
	}

	assert.True(t, item.Evaluate(time.Date(2026, 8, 3, 14, 20, 0, 0, time.UTC)))
	assert.False(t, item.Evaluate(time.Date(2026, 8, 3, 14, 30, 0, 0, time.UTC)))
	assert.False(t, item.Evaluate(time.Date(2026, 8, 3, 14, 10, 0, 0, time.UTC)))
}

func TestCalendarItemHourlyDurationAtLeastAnHourAlwaysTrue(t *testing.T) {
	item := CalendarItem{HasStartTime: true, StartTime: 0, DurationMinutes: 60, Repeating: RepeatingOption{Mode: RepeatingModeHourly}}
	assert.True(t, item.Evaluate(time.Date(2026, 8, 3, 23, 59, 0, 0, time.UTC)))
}

func TestCalendarItemDaily(t *testing.T) {
	item := CalendarItem{
		HasStartTime:    true,
		StartTime:       22 * time.Hour,
		DurationMinutes: 180,
		Repeating:       RepeatingOption{Mode: RepeatingModeNone},
	}

	assert.True(t, item.Evaluate(time.Date(2026, 8, 3, 22, 30, 0, 0, time.UTC)))
	// Carries over past midnight into the next day.
	assert.True(t, item.Evaluate(time.Date(2026, 8, 4, 0, 30, 0, 0, time.UTC)))
	assert.False(t, item.Evaluate(time.Date(2026, 8, 4, 1, 0, 0, 0, time.UTC)))
}

func TestCalendarItemWeekly(t *testing.T) {
	item := CalendarItem{
		HasStartTime:    true,
		StartTime:       9 * time.Hour,
		DurationMinutes: 60,
		Repeating:       RepeatingOption{Mode: RepeatingModeWeekly, WeekDays: []int{1, 3}},
	}

	monday := time.Date(2026, 8, 3, 9, 30, 0, 0, time.UTC)
	wednesday := time.Date(2026, 8, 5, 9, 30, 0, 0, time.UTC)
	tuesday := time.Date(2026, 8, 4, 9, 30, 0, 0, time.UTC)

	assert.True(t, item.Evaluate(monday))
	assert.True(t, item.Evaluate(wednesday))
	assert.False(t, item.Evaluate(tuesday))
}

func TestCalendarItemMonthly(t *testing.T) {
	item := CalendarItem{
		HasStartTime:    true,
		StartTime:       8 * time.Hour,
		DurationMinutes: 30,
		Repeating:       RepeatingOption{Mode: RepeatingModeMonthly, MonthDays: []int{1, 15}},
	}

	assert.True(t, item.Evaluate(time.Date(2026, 8, 1, 8, 15, 0, 0, time.UTC)))
	assert.True(t, item.Evaluate(time.Date(2026, 8, 15, 8, 15, 0, 0, time.UTC)))
	assert.False(t, item.Evaluate(time.Date(2026, 8, 10, 8, 15, 0, 0, time.UTC)))
}

func TestCalendarItemMonthlyFallsBackToPreviousMonthWhenThisMonthsOccurrenceIsStillAhead(t *testing.T) {
	item := CalendarItem{
		HasStartTime:    true,
		StartTime:       0,
		DurationMinutes: 25000,
		Repeating:       RepeatingOption{Mode: RepeatingModeMonthly, MonthDays: []int{20}},
	}

	// This month's 20th hasn't happened yet; the long-running window
	// opened on last month's 20th is still what's open right now.
	assert.True(t, item.Evaluate(time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC)))
}

func TestCalendarItemYearly(t *testing.T) {
	item := CalendarItem{
		DateTime:        time.Date(2020, 12, 24, 18, 0, 0, 0, time.UTC),
		DurationMinutes: 120,
		Repeating:       RepeatingOption{Mode: RepeatingModeYearly},
	}

	assert.True(t, item.Evaluate(time.Date(2026, 12, 24, 19, 0, 0, 0, time.UTC)))
	assert.False(t, item.Evaluate(time.Date(2026, 12, 24, 17, 0, 0, 0, time.UTC)))
}

func TestCalendarItemYearlyLeapDayAnchorSkipsNonLeapYears(t *testing.T) {
	item := CalendarItem{
		DateTime:        time.Date(2020, 2, 29, 12, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		Repeating:       RepeatingOption{Mode: RepeatingModeYearly},
	}

	require.False(t, isLeapYear(2027))
	assert.False(t, item.Evaluate(time.Date(2027, 2, 28, 12, 30, 0, 0, time.UTC)))
	assert.False(t, item.Evaluate(time.Date(2027, 3, 1, 12, 30, 0, 0, time.UTC)))

	require.True(t, isLeapYear(2028))
	assert.True(t, item.Evaluate(time.Date(2028, 2, 29, 12, 30, 0, 0, time.UTC)))
}
