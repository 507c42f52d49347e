package services

import (
	"context"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapflow/billing-engine/models"
)

// fakeResolver returns canned business hours records keyed by department,
// falling back to the tenant-wide record like the real repository does.
type fakeResolver struct {
	byDepartment map[string]*models.BusinessHours
	tenantWide   *models.BusinessHours
	err          error
}

func (f *fakeResolver) Effective(ctx context.Context, tenantID uint, department *string) (*models.BusinessHours, error) {
	if f.err != nil {
		return nil, f.err
	}
	if department != nil {
		if record, ok := f.byDepartment[*department]; ok {
			return record, nil
		}
	}
	return f.tenantWide, nil
}

func weekdayHours(start, end string) models.WeekSchedule {
	var week models.WeekSchedule
	for d := time.Monday; d <= time.Friday; d++ {
		week[int(d)] = models.DaySchedule{Enabled: true, Start: start, End: end}
	}
	return week
}

func TestIsOpen(t *testing.T) {
	record := &models.BusinessHours{
		TenantID: 1,
		Timezone: "America/Sao_Paulo",
		Weekdays: weekdayHours("08:00", "18:00"),
		Holidays: pq.StringArray{"2026-09-07"},
	}
	oracle := NewBusinessHoursOracle(&fakeResolver{tenantWide: record})

	saoPaulo, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	tests := []struct {
		name     string
		instant  time.Time
		expected bool
	}{
		{
			name:     "weekday inside window",
			instant:  time.Date(2026, 9, 2, 10, 0, 0, 0, saoPaulo), // Wednesday
			expected: true,
		},
		{
			name:     "weekday before opening",
			instant:  time.Date(2026, 9, 2, 7, 59, 0, 0, saoPaulo),
			expected: false,
		},
		{
			name:     "weekday after closing",
			instant:  time.Date(2026, 9, 2, 18, 1, 0, 0, saoPaulo),
			expected: false,
		},
		{
			name:     "closing minute still open",
			instant:  time.Date(2026, 9, 2, 18, 0, 0, 0, saoPaulo),
			expected: true,
		},
		{
			name:     "saturday closed",
			instant:  time.Date(2026, 9, 5, 10, 0, 0, 0, saoPaulo),
			expected: false,
		},
		{
			name:     "holiday closed",
			instant:  time.Date(2026, 9, 7, 10, 0, 0, 0, saoPaulo), // Monday, Independence Day
			expected: false,
		},
		{
			name: "utc instant evaluated in local time",
			// 20:00 UTC is 17:00 in Sao Paulo, still inside the window.
			instant:  time.Date(2026, 9, 2, 20, 0, 0, 0, time.UTC),
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			open, err := oracle.IsOpen(context.Background(), 1, nil, tt.instant)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, open)
		})
	}
}

func TestIsOpenWithoutRecord(t *testing.T) {
	oracle := NewBusinessHoursOracle(&fakeResolver{})

	open, err := oracle.IsOpen(context.Background(), 1, nil, time.Date(2026, 9, 6, 3, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, open, "tenants without a schedule are always open")
}

func TestIsOpenDepartmentOverride(t *testing.T) {
	tenantWide := &models.BusinessHours{
		TenantID: 1,
		Timezone: "America/Sao_Paulo",
		Weekdays: weekdayHours("08:00", "18:00"),
	}
	financeiro := &models.BusinessHours{
		TenantID: 1,
		Timezone: "America/Sao_Paulo",
		Weekdays: weekdayHours("09:00", "12:00"),
	}
	oracle := NewBusinessHoursOracle(&fakeResolver{
		tenantWide:   tenantWide,
		byDepartment: map[string]*models.BusinessHours{"financeiro": financeiro},
	})

	saoPaulo, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	instant := time.Date(2026, 9, 2, 15, 0, 0, 0, saoPaulo)

	dept := "financeiro"
	open, err := oracle.IsOpen(context.Background(), 1, &dept, instant)
	require.NoError(t, err)
	assert.False(t, open, "department window ends at noon")

	open, err = oracle.IsOpen(context.Background(), 1, nil, instant)
	require.NoError(t, err)
	assert.True(t, open, "tenant-wide window is still open")
}

func TestNextOpen(t *testing.T) {
	record := &models.BusinessHours{
		TenantID: 1,
		Timezone: "America/Sao_Paulo",
		Weekdays: weekdayHours("08:00", "18:00"),
		Holidays: pq.StringArray{"2026-09-07"},
	}
	oracle := NewBusinessHoursOracle(&fakeResolver{tenantWide: record})

	saoPaulo, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	// Friday evening: next candidate skips the weekend and the Monday holiday.
	from := time.Date(2026, 9, 4, 19, 0, 0, 0, saoPaulo)
	next, err := oracle.NextOpen(context.Background(), 1, nil, from)
	require.NoError(t, err)
	assert.Equal(t, "Tuesday, 08:00", next)

	// Before opening on an enabled weekday, today's own window is the answer.
	from = time.Date(2026, 9, 2, 6, 30, 0, 0, saoPaulo) // Wednesday
	next, err = oracle.NextOpen(context.Background(), 1, nil, from)
	require.NoError(t, err)
	assert.Equal(t, "Wednesday, 08:00", next)

	// After opening, today no longer counts even though the window is open.
	from = time.Date(2026, 9, 2, 10, 0, 0, 0, saoPaulo)
	next, err = oracle.NextOpen(context.Background(), 1, nil, from)
	require.NoError(t, err)
	assert.Equal(t, "Thursday, 08:00", next)

	// No record means no concrete answer.
	fallback := NewBusinessHoursOracle(&fakeResolver{})
	next, err = fallback.NextOpen(context.Background(), 1, nil, from)
	require.NoError(t, err)
	assert.Equal(t, "soon", next)
}

func TestSendDayRules(t *testing.T) {
	var week models.WeekSchedule
	for d := time.Sunday; d <= time.Saturday; d++ {
		week[int(d)] = models.DaySchedule{Enabled: d != time.Sunday, Start: "08:00", End: "18:00"}
	}
	record := &models.BusinessHours{
		TenantID: 1,
		Timezone: "America/Sao_Paulo",
		Weekdays: week,
		Holidays: pq.StringArray{"2026-12-25"},
	}
	oracle := NewBusinessHoursOracle(&fakeResolver{tenantWide: record})

	rules, loc, err := oracle.SendDayRules(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, rules.SaturdayEnabled)
	assert.False(t, rules.SundayEnabled)
	assert.Equal(t, []string{"2026-12-25"}, []string(rules.Holidays))
	assert.Equal(t, "America/Sao_Paulo", loc.String())
}

func TestSendDayRulesWithoutRecord(t *testing.T) {
	oracle := NewBusinessHoursOracle(&fakeResolver{})

	rules, loc, err := oracle.SendDayRules(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, rules.SaturdayEnabled)
	assert.False(t, rules.SundayEnabled)
	assert.Empty(t, rules.Holidays)
	require.NotNil(t, loc)
}
