package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ShiftDirection controls which way a target date moves off non-business days.
// Forward is used for overdue reminders (never send before due); Backward for
// pre-due reminders (never send after due).
type ShiftDirection int

const (
	ShiftForward ShiftDirection = iota
	ShiftBackward
)

// BusinessDayRules holds the weekly schedule and holiday list the date
// calculator evaluates dates against. Holidays are local YYYY-MM-DD strings.
type BusinessDayRules struct {
	Holidays        []string
	SaturdayEnabled bool
	SundayEnabled   bool
}

// IsBusinessDay reports whether the date is neither a holiday nor a
// disabled weekend day.
func (r BusinessDayRules) IsBusinessDay(date time.Time) bool {
	switch date.Weekday() {
	case time.Saturday:
		if !r.SaturdayEnabled {
			return false
		}
	case time.Sunday:
		if !r.SundayEnabled {
			return false
		}
	}
	day := date.Format(HolidayDateFormat)
	for _, h := range r.Holidays {
		if h == day {
			return false
		}
	}
	return true
}

// ShiftToBusinessDay moves the date one day at a time in the given direction
// until it lands on a business day. The search is bounded; when exhausted the
// original date is returned with ok=false so callers can log the anomaly.
func ShiftToBusinessDay(date time.Time, direction ShiftDirection, rules BusinessDayRules) (time.Time, bool) {
	step := 1
	if direction == ShiftBackward {
		step = -1
	}

	candidate := date
	for i := 0; i < BusinessDayShiftLimit; i++ {
		if rules.IsBusinessDay(candidate) {
			return candidate, true
		}
		candidate = candidate.AddDate(0, 0, step)
	}
	return date, false
}

// DaysOverdue returns how many whole days past the due date "now" is in the
// given location, clamped at zero before the boundary.
func DaysOverdue(due, now time.Time, loc *time.Location) int {
	d := daysBetween(due, now, loc)
	if d < 0 {
		return 0
	}
	return d
}

// DaysUntilDue returns how many whole days remain until the due date in the
// given location, clamped at zero after the boundary.
func DaysUntilDue(due, now time.Time, loc *time.Location) int {
	d := daysBetween(now, due, loc)
	if d < 0 {
		return 0
	}
	return d
}

// daysBetween counts calendar days from a to b using local midnights.
func daysBetween(a, b time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	al := a.In(loc)
	bl := b.In(loc)
	am := time.Date(al.Year(), al.Month(), al.Day(), 0, 0, 0, 0, loc)
	bm := time.Date(bl.Year(), bl.Month(), bl.Day(), 0, 0, 0, 0, loc)
	return int(math.Round(bm.Sub(am).Hours() / 24))
}

// FormatDateBR renders a date as DD/MM/YYYY for template substitution.
func FormatDateBR(t time.Time) string {
	return t.Format(TemplateDateFormat)
}

// FormatCurrencyBRL renders a monetary value as "R$ 1.234,56". String inputs
// accept both dot and comma decimal separators.
func FormatCurrencyBRL(value any) string {
	var v float64
	switch n := value.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	case string:
		s := strings.TrimSpace(n)
		s = strings.TrimPrefix(s, "R$")
		s = strings.TrimSpace(s)
		if strings.Contains(s, ",") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return "R$ 0,00"
		}
		v = parsed
	default:
		return "R$ 0,00"
	}

	neg := v < 0
	if neg {
		v = -v
	}
	cents := int64(math.Round(v * 100))
	whole := cents / 100
	frac := cents % 100

	digits := strconv.FormatInt(whole, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}

	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("R$ %s%s,%02d", sign, b.String(), frac)
}
