package services

import (
	"context"
	"fmt"
	"time"

	"github.com/zapflow/billing-engine/models"
	"github.com/zapflow/billing-engine/utils"
)

// BusinessHoursResolver looks up the effective schedule record for a tenant.
// Resolution is hierarchical: (tenant, department) first, then (tenant, nil).
type BusinessHoursResolver interface {
	Effective(ctx context.Context, tenantID uint, department *string) (*models.BusinessHours, error)
}

// BusinessHoursOracle answers whether a tenant may send at a given instant and
// when the next window opens.
type BusinessHoursOracle interface {
	IsOpen(ctx context.Context, tenantID uint, department *string, instant time.Time) (bool, error)
	NextOpen(ctx context.Context, tenantID uint, department *string, from time.Time) (string, error)
	SendDayRules(ctx context.Context, tenantID uint) (utils.BusinessDayRules, *time.Location, error)
}

// BusinessHoursOracleImpl implements BusinessHoursOracle on top of a resolver.
type BusinessHoursOracleImpl struct {
	resolver BusinessHoursResolver
}

// NewBusinessHoursOracle creates a business hours oracle
func NewBusinessHoursOracle(resolver BusinessHoursResolver) BusinessHoursOracle {
	return &BusinessHoursOracleImpl{resolver: resolver}
}

// IsOpen reports whether the instant falls inside the tenant's effective
// window. Tenants without any schedule record are always open.
func (o *BusinessHoursOracleImpl) IsOpen(ctx context.Context, tenantID uint, department *string, instant time.Time) (bool, error) {
	record, err := o.resolver.Effective(ctx, tenantID, department)
	if err != nil {
		return false, fmt.Errorf("failed to resolve business hours: %w", err)
	}
	if record == nil {
		return true, nil
	}

	local := instant.In(record.Location())
	if record.IsHoliday(local.Format(utils.HolidayDateFormat)) {
		return false, nil
	}

	day := record.Weekdays[int(local.Weekday())]
	if !day.Enabled {
		return false, nil
	}

	start, err := parseClock(day.Start)
	if err != nil {
		return false, fmt.Errorf("invalid start time for weekday %s: %w", local.Weekday(), err)
	}
	end, err := parseClock(day.End)
	if err != nil {
		return false, fmt.Errorf("invalid end time for weekday %s: %w", local.Weekday(), err)
	}

	minutes := local.Hour()*60 + local.Minute()
	return minutes >= start && minutes <= end, nil
}

// NextOpen scans the current day and the next 7 for the first window opening
// after the given instant and returns a human-readable "<Weekday>, HH:MM".
// Falls back to "soon" when the scan finds nothing.
func (o *BusinessHoursOracleImpl) NextOpen(ctx context.Context, tenantID uint, department *string, from time.Time) (string, error) {
	record, err := o.resolver.Effective(ctx, tenantID, department)
	if err != nil {
		return "", fmt.Errorf("failed to resolve business hours: %w", err)
	}
	if record == nil {
		return "soon", nil
	}

	local := from.In(record.Location())
	for i := 0; i <= 7; i++ {
		candidate := local.AddDate(0, 0, i)
		if record.IsHoliday(candidate.Format(utils.HolidayDateFormat)) {
			continue
		}
		day := record.Weekdays[int(candidate.Weekday())]
		if !day.Enabled || day.Start == "" {
			continue
		}
		if i == 0 {
			// Today only counts when its window has not started yet.
			start, err := parseClock(day.Start)
			if err != nil {
				continue
			}
			if local.Hour()*60+local.Minute() >= start {
				continue
			}
		}
		return fmt.Sprintf("%s, %s", candidate.Weekday(), day.Start), nil
	}
	return "soon", nil
}

// SendDayRules derives the cycle scheduler's business-day rules from the
// tenant-wide record. Tenants without a record get default rules (weekends
// off, no holidays).
func (o *BusinessHoursOracleImpl) SendDayRules(ctx context.Context, tenantID uint) (utils.BusinessDayRules, *time.Location, error) {
	record, err := o.resolver.Effective(ctx, tenantID, nil)
	if err != nil {
		return utils.BusinessDayRules{}, time.UTC, fmt.Errorf("failed to resolve business hours: %w", err)
	}
	if record == nil {
		loc, _ := time.LoadLocation("America/Sao_Paulo")
		if loc == nil {
			loc = time.UTC
		}
		return utils.BusinessDayRules{}, loc, nil
	}

	rules := utils.BusinessDayRules{
		Holidays:        record.Holidays,
		SaturdayEnabled: record.Weekdays[int(time.Saturday)].Enabled,
		SundayEnabled:   record.Weekdays[int(time.Sunday)].Enabled,
	}
	return rules, record.Location(), nil
}

// parseClock converts "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("out of range clock value %q", s)
	}
	return h*60 + m, nil
}
