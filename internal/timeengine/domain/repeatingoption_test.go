package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRepeatingOptionValidate(t *testing.T) {
	tests := []struct {
		name    string
		option  RepeatingOption
		wantErr bool
	}{
		{"none is valid empty", RepeatingOption{Mode: RepeatingModeNone}, false},
		{"weekly requires weekdays", RepeatingOption{Mode: RepeatingModeWeekly}, true},
		{"weekly with weekdays", RepeatingOption{Mode: RepeatingModeWeekly, WeekDays: []int{1, 3, 5}}, false},
		{"weekly rejects monthdays", RepeatingOption{Mode: RepeatingModeWeekly, WeekDays: []int{1}, MonthDays: []int{1}}, true},
		{"monthly requires monthdays", RepeatingOption{Mode: RepeatingModeMonthly}, true},
		{"monthly with monthdays", RepeatingOption{Mode: RepeatingModeMonthly, MonthDays: []int{1, 15}}, false},
		{"daily rejects weekdays", RepeatingOption{Mode: RepeatingModeDaily, WeekDays: []int{1}}, true},
		{"weekday out of range", RepeatingOption{Mode: RepeatingModeWeekly, WeekDays: []int{8}}, true},
		{"monthday out of range", RepeatingOption{Mode: RepeatingModeMonthly, MonthDays: []int{32}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.option.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRepeatingOptionEvaluateWeekDay(t *testing.T) {
	monday := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	sunday := time.Date(2026, 8, 9, 12, 0, 0, 0, time.UTC)

	empty := RepeatingOption{}
	assert.True(t, empty.EvaluateWeekDay(monday))

	mondaysOnly := RepeatingOption{Mode: RepeatingModeWeekly, WeekDays: []int{1}}
	assert.True(t, mondaysOnly.EvaluateWeekDay(monday))
	assert.False(t, mondaysOnly.EvaluateWeekDay(sunday))

	sundaysOnly := RepeatingOption{Mode: RepeatingModeWeekly, WeekDays: []int{7}}
	assert.True(t, sundaysOnly.EvaluateWeekDay(sunday))
}

func TestRepeatingOptionEvaluateMonthDay(t *testing.T) {
	fifteenth := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	empty := RepeatingOption{}
	assert.True(t, empty.EvaluateMonthDay(fifteenth))

	onlyFirst := RepeatingOption{Mode: RepeatingModeMonthly, MonthDays: []int{1}}
	assert.False(t, onlyFirst.EvaluateMonthDay(fifteenth))

	onlyFifteenth := RepeatingOption{Mode: RepeatingModeMonthly, MonthDays: []int{15}}
	assert.True(t, onlyFifteenth.EvaluateMonthDay(fifteenth))
}

func TestIsoWeekdayMondayFirst(t *testing.T) {
	monday := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	sunday := time.Date(2026, 8, 9, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, isoWeekday(monday))
	assert.Equal(t, 7, isoWeekday(sunday))
}
