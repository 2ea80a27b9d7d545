/*
projection.go - Forward schedule of preventive maintenance events

PURPOSE:
  Given an asset's usage profile and a frequency configuration, computes the
  next N maintenance events. Usage and time are independent triggers
  ("every 10,000 km OR every 6 months, whichever comes first"), so neither
  criterion is ever silently dropped.

ALGORITHM (for i in 1..count):
  1. Usage branch (interval set, rate > 0):
       target      = startOffset + interval*i   (rounded up to a whole unit)
       daysByUsage = ceil(max(0, target - startOffset) / dailyRate)
       dateByUsage = reference + daysByUsage days
  2. Time branch (interval set):
       dateByTime  = reference + interval*i units (calendar months/years)
  3. Earlier date wins. On an exact tie the usage branch wins.
  4. Usage events carry the target reading; time events carry 0.

ORDERING:
  Both branches are non-decreasing in i, so their pointwise minimum is too.
  Events come out sorted by due date without an explicit sort.

FAILURES (all-or-nothing, nil slice on error):
  - Neither interval set                       -> ErrNoFrequencyCriteria
  - count <= 0                                 -> ErrInvalidInput
  - usage-only plan with dailyRate <= 0        -> ErrInvalidInput
  When both intervals are set and the rate is 0, the usage branch is skipped
  and the time branch drives the schedule alone.

EXAMPLE:
  usage := UsageProfile{CurrentUsage: d(45000), DailyUsageRate: d(150)}
  freq := FrequencyConfig{UsageInterval: d(10000), TimeInterval: 6, TimeUnit: TimeMonth}
  events, _ := Project(usage, freq, d(45000), 2, generic.NewTimePoint(2024, 1, 1))
  // events[0]: "Maintenance at 55,000 km", due 2024-03-08

SEE ALSO:
  - templates.go: Fixed manufacturer programs (no whichever-comes-first merge)
  - service.go: Persists projected events with generated IDs
*/
package maintenance

import (
	"github.com/shopspring/decimal"
	"github.com/warp/asset-engine/generic"
)

// Project computes count events starting from referenceDate. It is a pure
// function: it never reads the wall clock and never assigns IDs.
func Project(usage UsageProfile, freq FrequencyConfig, startOffset decimal.Decimal, count int, referenceDate generic.TimePoint) ([]ProjectedEvent, error) {
	if err := freq.Validate(); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, generic.Invalid("count", "must be > 0, got %d", count)
	}
	if startOffset.IsNegative() {
		return nil, generic.Invalid("start_offset", "must be >= 0, got %s", startOffset)
	}
	if referenceDate.IsZero() {
		return nil, generic.Invalid("reference_date", "required")
	}

	useUsage := freq.UsageBased() && usage.DailyUsageRate.IsPositive()
	useTime := freq.TimeBased()
	if freq.UsageBased() && !useTime && !useUsage {
		return nil, generic.Invalid("daily_usage_rate",
			"must be > 0 for usage-based projection, got %s", usage.DailyUsageRate)
	}

	events := make([]ProjectedEvent, 0, count)
	for i := 1; i <= count; i++ {
		var byUsage, byTime ProjectedEvent
		if useUsage {
			byUsage = usageEvent(usage, freq, startOffset, i, referenceDate)
		}
		if useTime {
			byTime = timeEvent(freq, i, referenceDate)
		}

		switch {
		case useUsage && useTime:
			if byTime.DueDate.Before(byUsage.DueDate) {
				events = append(events, byTime)
			} else {
				events = append(events, byUsage)
			}
		case useUsage:
			events = append(events, byUsage)
		default:
			events = append(events, byTime)
		}
	}
	return events, nil
}

func usageEvent(usage UsageProfile, freq FrequencyConfig, startOffset decimal.Decimal, i int, ref generic.TimePoint) ProjectedEvent {
	target := startOffset.Add(freq.UsageInterval.Mul(decimal.NewFromInt(int64(i)))).Ceil()

	remaining := target.Sub(startOffset)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	days := generic.CeilDiv(remaining, usage.DailyUsageRate)

	return ProjectedEvent{
		Title:             "Maintenance at " + generic.NewQuantity(target, freq.UsageUnit).String(),
		DueDate:           ref.AddDays(days),
		TriggerUsageValue: target,
		Trigger:           TriggerUsage,
		Status:            StatusScheduled,
		Priority:          PriorityLow,
	}
}

func timeEvent(freq FrequencyConfig, i int, ref generic.TimePoint) ProjectedEvent {
	elapsed := freq.TimeInterval * i
	return ProjectedEvent{
		Title:             "Preventive maintenance (" + freq.TimeUnit.Label(elapsed) + ")",
		DueDate:           freq.TimeUnit.Add(ref, elapsed),
		TriggerUsageValue: decimal.Zero,
		Trigger:           TriggerTime,
		Status:            StatusScheduled,
		Priority:          PriorityLow,
	}
}
