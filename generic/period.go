package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Reporting window for KPIs
// =============================================================================

// Period is an inclusive [Start, End] date range. A zero Start or End leaves
// that side open.
//
// Examples:
//   - Month:   2024-03-01 .. 2024-03-31
//   - Quarter: 2024-04-01 .. 2024-06-30
//   - Rolling: last 90 days ending today
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Contains returns true if the time point is within the period.
func (p Period) Contains(t TimePoint) bool {
	if !p.Start.IsZero() && t.Before(p.Start) {
		return false
	}
	if !p.End.IsZero() && t.After(p.End) {
		return false
	}
	return true
}

// Validate rejects periods whose end precedes their start.
func (p Period) Validate() error {
	if !p.Start.IsZero() && !p.End.IsZero() && p.End.Before(p.Start) {
		return Invalid("period", "end %s before start %s", p.End, p.Start)
	}
	return nil
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// PeriodType selects a standard reporting window.
type PeriodType string

const (
	PeriodMonth   PeriodType = "month"
	PeriodQuarter PeriodType = "quarter"
	PeriodYear    PeriodType = "year"
	PeriodRolling PeriodType = "rolling" // RollingDays ending at the date
)

// PeriodConfig describes how to derive a reporting window from a date.
type PeriodConfig struct {
	Type        PeriodType
	RollingDays int
}

// PeriodFor returns the window that contains the given date.
func (pc PeriodConfig) PeriodFor(date TimePoint) Period {
	switch pc.Type {
	case PeriodMonth:
		return Period{
			Start: StartOfMonth(date.Year(), date.Month()),
			End:   EndOfMonth(date.Year(), date.Month()),
		}

	case PeriodQuarter:
		first := time.Month((int(date.Month())-1)/3*3 + 1)
		return Period{
			Start: StartOfMonth(date.Year(), first),
			End:   EndOfMonth(date.Year(), first+2),
		}

	case PeriodRolling:
		days := pc.RollingDays
		if days <= 0 {
			days = 30
		}
		return Period{Start: date.AddDays(-(days - 1)), End: date}

	default:
		return Period{Start: StartOfYear(date.Year()), End: EndOfYear(date.Year())}
	}
}

// ParsePeriodType accepts the wire names above.
func ParsePeriodType(s string) (PeriodType, error) {
	switch PeriodType(s) {
	case PeriodMonth, PeriodQuarter, PeriodYear, PeriodRolling:
		return PeriodType(s), nil
	}
	return "", fmt.Errorf("%w: unknown period type %q", ErrInvalidInput, s)
}
