package maintenance

import (
	"fmt"

	"github.com/warp/asset-engine/generic"
)

// =============================================================================
// ON-TIME RATE
// =============================================================================

// UndatedPolicy decides how completed work orders lacking a completion date
// or a due date are counted. There is no implicit default at this layer;
// callers pass one explicitly (the API defaults to UndatedExclude).
type UndatedPolicy string

const (
	UndatedExclude UndatedPolicy = "exclude" // left out of numerator and denominator
	UndatedOnTime  UndatedPolicy = "on_time"
	UndatedLate    UndatedPolicy = "late"
)

func ParseUndatedPolicy(s string) (UndatedPolicy, error) {
	switch UndatedPolicy(s) {
	case "":
		return UndatedExclude, nil
	case UndatedExclude, UndatedOnTime, UndatedLate:
		return UndatedPolicy(s), nil
	}
	return "", fmt.Errorf("%w: unknown undated policy %q", generic.ErrInvalidInput, s)
}

// OnTimeReport is the on-time KPI over a window.
type OnTimeReport struct {
	Window    generic.Period
	Policy    UndatedPolicy
	Completed int // completed orders in the window, undated included
	OnTime    int
	Late      int
	Undated   int // completed orders missing a completion or due date
	Excluded  int // undated orders left out under UndatedExclude
	Rate      float64
}

// OnTimeRate counts completed work orders finished on or before their due
// date. An order falls in the window by completion date, or by due date when
// undated; orders with neither date are always in the window.
func OnTimeRate(orders []WorkOrder, window generic.Period, policy UndatedPolicy) OnTimeReport {
	report := OnTimeReport{Window: window, Policy: policy}

	for _, wo := range orders {
		if wo.Status != WorkOrderCompleted {
			continue
		}
		dated := wo.CompletedAt != nil && !wo.CompletedAt.IsZero() && !wo.DueDate.IsZero()

		switch {
		case wo.CompletedAt != nil && !wo.CompletedAt.IsZero():
			if !window.Contains(*wo.CompletedAt) {
				continue
			}
		case !wo.DueDate.IsZero():
			if !window.Contains(wo.DueDate) {
				continue
			}
		}
		report.Completed++

		if dated {
			if wo.CompletedAt.BeforeOrEqual(wo.DueDate) {
				report.OnTime++
			} else {
				report.Late++
			}
			continue
		}

		report.Undated++
		switch policy {
		case UndatedOnTime:
			report.OnTime++
		case UndatedLate:
			report.Late++
		default:
			report.Excluded++
		}
	}

	if denominator := report.OnTime + report.Late; denominator > 0 {
		report.Rate = float64(report.OnTime) / float64(denominator)
	}
	return report
}

// =============================================================================
// BACKLOG
// =============================================================================

// Backlog counts reconciled events by display state.
type Backlog struct {
	Scheduled int
	Due       int
	Overdue   int
	Completed int
	// MaxDaysOverdue is the worst lateness across overdue events.
	MaxDaysOverdue int
}

// Add folds one reconciliation into the backlog.
func (b *Backlog) Add(r ReconciliationResult) {
	switch r.State {
	case StateOverdue:
		b.Overdue++
		if r.DaysOverdue > b.MaxDaysOverdue {
			b.MaxDaysOverdue = r.DaysOverdue
		}
	case StateDue:
		b.Due++
	case StateCompleted:
		b.Completed++
	default:
		b.Scheduled++
	}
}
