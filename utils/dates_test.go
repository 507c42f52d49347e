package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBusinessDay(t *testing.T) {
	rules := BusinessDayRules{
		Holidays: []string{"2026-09-07"},
	}

	tests := []struct {
		name     string
		date     time.Time
		rules    BusinessDayRules
		expected bool
	}{
		{
			name:     "regular weekday",
			date:     time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC), // Wednesday
			rules:    rules,
			expected: true,
		},
		{
			name:     "saturday disabled by default",
			date:     time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC),
			rules:    rules,
			expected: false,
		},
		{
			name:     "sunday disabled by default",
			date:     time.Date(2026, 9, 6, 0, 0, 0, 0, time.UTC),
			rules:    rules,
			expected: false,
		},
		{
			name:     "saturday enabled",
			date:     time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC),
			rules:    BusinessDayRules{SaturdayEnabled: true},
			expected: true,
		},
		{
			name:     "holiday on a weekday",
			date:     time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC), // Monday, Independence Day
			rules:    rules,
			expected: false,
		},
		{
			name:     "holiday on an enabled weekend day",
			date:     time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC),
			rules:    BusinessDayRules{SaturdayEnabled: true, Holidays: []string{"2026-09-05"}},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.rules.IsBusinessDay(tt.date))
		})
	}
}

func TestShiftToBusinessDay(t *testing.T) {
	rules := BusinessDayRules{
		Holidays: []string{"2026-09-07"},
	}

	tests := []struct {
		name      string
		date      time.Time
		direction ShiftDirection
		rules     BusinessDayRules
		expected  time.Time
		ok        bool
	}{
		{
			name:      "already a business day",
			date:      time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC),
			direction: ShiftForward,
			rules:     rules,
			expected:  time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC),
			ok:        true,
		},
		{
			name:      "saturday shifts forward over holiday monday",
			date:      time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC),
			direction: ShiftForward,
			rules:     rules,
			expected:  time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC), // Tuesday
			ok:        true,
		},
		{
			name:      "sunday shifts backward to friday",
			date:      time.Date(2026, 9, 6, 0, 0, 0, 0, time.UTC),
			direction: ShiftBackward,
			rules:     rules,
			expected:  time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC),
			ok:        true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ShiftToBusinessDay(tt.date, tt.direction, tt.rules)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, tt.expected.Equal(got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestShiftToBusinessDayExhausted(t *testing.T) {
	// Every day within the search bound is a holiday.
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	var holidays []string
	for i := 0; i < BusinessDayShiftLimit+5; i++ {
		holidays = append(holidays, start.AddDate(0, 0, i).Format(HolidayDateFormat))
	}

	got, ok := ShiftToBusinessDay(start, ShiftForward, BusinessDayRules{Holidays: holidays})
	require.False(t, ok)
	assert.True(t, start.Equal(got), "exhausted shift must return the original date")
}

func TestDaysOverdue(t *testing.T) {
	sp, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	due := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		now      time.Time
		loc      *time.Location
		expected int
	}{
		{
			name:     "three days past due",
			now:      time.Date(2026, 8, 13, 9, 0, 0, 0, time.UTC),
			loc:      time.UTC,
			expected: 3,
		},
		{
			name:     "same day is zero",
			now:      time.Date(2026, 8, 10, 23, 0, 0, 0, time.UTC),
			loc:      time.UTC,
			expected: 0,
		},
		{
			name:     "before due clamps at zero",
			now:      time.Date(2026, 8, 7, 0, 0, 0, 0, time.UTC),
			loc:      time.UTC,
			expected: 0,
		},
		{
			name: "local midnight decides the calendar day",
			// 01:00 UTC on the 11th is still 22:00 on the 10th in Sao Paulo.
			now:      time.Date(2026, 8, 11, 1, 0, 0, 0, time.UTC),
			loc:      sp,
			expected: 0,
		},
		{
			name:     "nil location falls back to UTC",
			now:      time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC),
			loc:      nil,
			expected: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DaysOverdue(due, tt.now, tt.loc))
		})
	}
}

func TestDaysUntilDue(t *testing.T) {
	due := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		now      time.Time
		expected int
	}{
		{
			name:     "five days out",
			now:      time.Date(2026, 8, 15, 18, 0, 0, 0, time.UTC),
			expected: 5,
		},
		{
			name:     "due day is zero",
			now:      time.Date(2026, 8, 20, 1, 0, 0, 0, time.UTC),
			expected: 0,
		},
		{
			name:     "past due clamps at zero",
			now:      time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC),
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DaysUntilDue(due, tt.now, time.UTC))
		})
	}
}

func TestFormatDateBR(t *testing.T) {
	assert.Equal(t, "05/09/2026", FormatDateBR(time.Date(2026, 9, 5, 10, 30, 0, 0, time.UTC)))
	assert.Equal(t, "01/01/2027", FormatDateBR(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestFormatCurrencyBRL(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected string
	}{
		{
			name:     "float with thousands",
			value:    1234.56,
			expected: "R$ 1.234,56",
		},
		{
			name:     "small float",
			value:    150.5,
			expected: "R$ 150,50",
		},
		{
			name:     "integer",
			value:    1000000,
			expected: "R$ 1.000.000,00",
		},
		{
			name:     "int64 zero",
			value:    int64(0),
			expected: "R$ 0,00",
		},
		{
			name:     "string with comma decimal",
			value:    "150,50",
			expected: "R$ 150,50",
		},
		{
			name:     "string with brazilian grouping",
			value:    "1.234,56",
			expected: "R$ 1.234,56",
		},
		{
			name:     "string with currency prefix",
			value:    "R$ 99.90",
			expected: "R$ 99,90",
		},
		{
			name:     "string with dot decimal",
			value:    "42.5",
			expected: "R$ 42,50",
		},
		{
			name:     "unparseable string",
			value:    "abc",
			expected: "R$ 0,00",
		},
		{
			name:     "unsupported type",
			value:    struct{}{},
			expected: "R$ 0,00",
		},
		{
			name:     "negative value",
			value:    -1234.5,
			expected: "R$ -1.234,50",
		},
		{
			name:     "rounding to cents",
			value:    10.999,
			expected: "R$ 11,00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatCurrencyBRL(tt.value))
		})
	}
}
