package maintenance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/asset-engine/generic"
	"github.com/warp/asset-engine/maintenance"
)

func completed(id, due, done string) maintenance.WorkOrder {
	wo := maintenance.WorkOrder{ID: generic.WorkOrderID(id), Status: maintenance.WorkOrderCompleted}
	if due != "" {
		wo.DueDate = date(due)
	}
	if done != "" {
		at := date(done)
		wo.CompletedAt = &at
	}
	return wo
}

func kpiOrders() []maintenance.WorkOrder {
	return []maintenance.WorkOrder{
		completed("on-time", "2024-03-10", "2024-03-08"),
		completed("same-day", "2024-03-10", "2024-03-10"),
		completed("late", "2024-03-10", "2024-03-15"),
		completed("no-due", "", "2024-03-12"),
		{ID: "open", Status: maintenance.WorkOrderOpen, DueDate: date("2024-03-01")},
		completed("february", "2024-02-01", "2024-02-02"),
	}
}

func march() generic.Period {
	return generic.Period{Start: date("2024-03-01"), End: date("2024-03-31")}
}

func TestOnTimeRate_ExcludeUndated(t *testing.T) {
	// GIVEN: three dated completions in March, one undated, one open order
	// and one February completion
	// WHEN: computing the March rate, excluding undated orders
	r := maintenance.OnTimeRate(kpiOrders(), march(), maintenance.UndatedExclude)

	// THEN: completing on the due date counts as on time
	assert.Equal(t, 4, r.Completed)
	assert.Equal(t, 2, r.OnTime)
	assert.Equal(t, 1, r.Late)
	assert.Equal(t, 1, r.Undated)
	assert.Equal(t, 1, r.Excluded)
	assert.InDelta(t, 2.0/3.0, r.Rate, 1e-9)
}

func TestOnTimeRate_UndatedPolicies(t *testing.T) {
	onTime := maintenance.OnTimeRate(kpiOrders(), march(), maintenance.UndatedOnTime)
	assert.Equal(t, 3, onTime.OnTime)
	assert.InDelta(t, 0.75, onTime.Rate, 1e-9)

	late := maintenance.OnTimeRate(kpiOrders(), march(), maintenance.UndatedLate)
	assert.Equal(t, 2, late.Late)
	assert.InDelta(t, 0.5, late.Rate, 1e-9)
}

func TestOnTimeRate_EmptyWindow(t *testing.T) {
	r := maintenance.OnTimeRate(kpiOrders(), generic.Period{Start: date("2030-01-01")}, maintenance.UndatedExclude)
	assert.Zero(t, r.Completed)
	assert.Zero(t, r.Rate, "no division by zero")
}

func TestParseUndatedPolicy(t *testing.T) {
	p, err := maintenance.ParseUndatedPolicy("")
	require.NoError(t, err)
	assert.Equal(t, maintenance.UndatedExclude, p)

	_, err = maintenance.ParseUndatedPolicy("sometimes")
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}

func TestBacklog(t *testing.T) {
	var b maintenance.Backlog
	b.Add(maintenance.ReconciliationResult{State: maintenance.StateScheduled})
	b.Add(maintenance.ReconciliationResult{State: maintenance.StateDue})
	b.Add(maintenance.ReconciliationResult{State: maintenance.StateOverdue, IsOverdue: true, DaysOverdue: 4})
	b.Add(maintenance.ReconciliationResult{State: maintenance.StateOverdue, IsOverdue: true, DaysOverdue: 19})
	b.Add(maintenance.ReconciliationResult{State: maintenance.StateCompleted})

	assert.Equal(t, maintenance.Backlog{Scheduled: 1, Due: 1, Overdue: 2, Completed: 1, MaxDaysOverdue: 19}, b)
}
