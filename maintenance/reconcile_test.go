package maintenance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/asset-engine/generic"
	"github.com/warp/asset-engine/maintenance"
)

func oilChange(due string) maintenance.ProjectedEvent {
	return maintenance.ProjectedEvent{
		ID:                "ev-1",
		AssetID:           "van-01",
		PlanID:            "plan-1",
		Title:             "Maintenance at 55,000 km",
		DueDate:           date(due),
		TriggerUsageValue: d(55000),
		Trigger:           maintenance.TriggerUsage,
		Status:            maintenance.StatusScheduled,
		Priority:          maintenance.PriorityMedium,
		Tasks: []maintenance.Task{
			{Description: "Oil change", DurationDays: 1, IsCritical: true},
			{Description: "Brake check", DurationDays: 1},
		},
	}
}

// =============================================================================
// RECONCILE
// =============================================================================

func TestReconcile_States(t *testing.T) {
	ev := oilChange("2024-03-08")
	tests := []struct {
		name     string
		today    string
		state    maintenance.EventState
		overdue  int
		priority maintenance.Priority
	}{
		{"before due", "2024-03-01", maintenance.StateScheduled, 0, maintenance.PriorityMedium},
		{"on due date", "2024-03-08", maintenance.StateDue, 0, maintenance.PriorityMedium},
		{"one day late", "2024-03-09", maintenance.StateOverdue, 1, maintenance.PriorityCritical},
		{"a month late", "2024-04-08", maintenance.StateOverdue, 31, maintenance.PriorityCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := maintenance.Reconcile(ev, nil, date(tt.today))
			assert.Equal(t, tt.state, r.State)
			assert.Equal(t, tt.overdue > 0, r.IsOverdue)
			assert.Equal(t, tt.overdue, r.DaysOverdue)
			assert.Equal(t, tt.priority, r.EscalatedPriority)
			assert.False(t, r.CanReschedule, "no work order, nothing to reschedule")
		})
	}
}

func TestReconcile_CompletedIsNeverOverdue(t *testing.T) {
	// GIVEN: a completed event whose due date is long past
	ev := oilChange("2024-03-08")
	ev.Status = maintenance.StatusCompleted

	// WHEN: reconciling a year later
	r := maintenance.Reconcile(ev, nil, date("2025-03-08"))

	// THEN: it reads as completed
	assert.Equal(t, maintenance.StateCompleted, r.State)
	assert.False(t, r.IsOverdue)
	assert.Zero(t, r.DaysOverdue)
}

func TestReconcile_CanRescheduleLateOpenWorkOrder(t *testing.T) {
	ev := oilChange("2024-03-08")
	wo := &maintenance.WorkOrder{ID: "wo-1", Status: maintenance.WorkOrderOpen, DueDate: date("2024-03-08")}

	assert.True(t, maintenance.Reconcile(ev, wo, date("2024-03-10")).CanReschedule)
	assert.False(t, maintenance.Reconcile(ev, wo, date("2024-03-08")).CanReschedule, "not late yet")

	wo.Status = maintenance.WorkOrderCompleted
	assert.False(t, maintenance.Reconcile(ev, wo, date("2024-03-10")).CanReschedule, "closed orders stay put")
}

// =============================================================================
// EXECUTION
// =============================================================================

func TestPrepareExecution_OnTime(t *testing.T) {
	// GIVEN: an event due next week
	ev := oilChange("2024-03-08")

	// WHEN: executing it early
	exec, err := maintenance.PrepareExecution(ev, "", date("2024-03-01"))
	require.NoError(t, err)

	// THEN: a regular work order keeps the event's schedule and tasks
	wo := exec.WorkOrder
	assert.False(t, wo.Regularization)
	assert.Equal(t, maintenance.PriorityMedium, wo.Priority)
	assert.Equal(t, maintenance.WorkOrderOpen, wo.Status)
	assert.Equal(t, "2024-03-08", wo.ScheduledStart.String())
	assert.Equal(t, "2024-03-08", wo.DueDate.String())
	assert.Equal(t, generic.EventID("ev-1"), wo.EventID)
	assert.Len(t, wo.Tasks, 2)
	assert.Equal(t, "Preventive maintenance: Oil change (critical); Brake check", wo.Description)
	assert.Equal(t, generic.LogCreated, exec.FirstLog.Kind)
}

func TestPrepareExecution_OverdueRequiresReason(t *testing.T) {
	// GIVEN: an event 12 days overdue
	ev := oilChange("2024-03-08")

	// WHEN: executing without a reason (blank counts as missing)
	_, err := maintenance.PrepareExecution(ev, "   ", date("2024-03-20"))

	// THEN: nothing is built and the error carries the delay
	require.ErrorIs(t, err, generic.ErrMissingJustification)
	var jerr *generic.JustificationError
	require.ErrorAs(t, err, &jerr)
	assert.Equal(t, 12, jerr.DaysOverdue)
	assert.Equal(t, generic.EventID("ev-1"), jerr.EventID)
}

func TestPrepareExecution_OverdueRegularization(t *testing.T) {
	// GIVEN: an event 12 days overdue
	ev := oilChange("2024-03-08")

	// WHEN: executing with a reason
	exec, err := maintenance.PrepareExecution(ev, "Vehicle was on a long mission", date("2024-03-20"))
	require.NoError(t, err)

	// THEN: the order is critical, starts today and keeps the original due date
	wo := exec.WorkOrder
	assert.True(t, wo.Regularization)
	assert.Equal(t, 12, wo.DaysOverdue)
	assert.Equal(t, maintenance.PriorityCritical, wo.Priority)
	assert.Equal(t, "2024-03-20", wo.ScheduledStart.String())
	assert.Equal(t, "2024-03-08", wo.DueDate.String())

	// AND: the first log entry explains the regularization
	assert.Equal(t, generic.LogRegularization, exec.FirstLog.Kind)
	assert.Contains(t, exec.FirstLog.Message, "Maintenance at 55,000 km")
	assert.Contains(t, exec.FirstLog.Message, "2024-03-08")
	assert.Contains(t, exec.FirstLog.Message, "12 days overdue")
	assert.Contains(t, exec.FirstLog.Message, "Vehicle was on a long mission")
}

func TestPrepareExecution_Refusals(t *testing.T) {
	linked := oilChange("2024-03-08")
	linked.LinkedWorkOrderID = "wo-9"
	_, err := maintenance.PrepareExecution(linked, "", date("2024-03-01"))
	assert.ErrorIs(t, err, generic.ErrEventAlreadyLinked)

	done := oilChange("2024-03-08")
	done.Status = maintenance.StatusCompleted
	_, err = maintenance.PrepareExecution(done, "", date("2024-03-01"))
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}

// =============================================================================
// RESCHEDULING
// =============================================================================

func TestReschedule_OnlyDatesChange(t *testing.T) {
	// GIVEN: an event linked to an open work order
	ev := oilChange("2024-03-08")
	ev.LinkedWorkOrderID = "wo-1"
	wo := maintenance.WorkOrder{
		ID:             "wo-1",
		EventID:        "ev-1",
		Priority:       maintenance.PriorityMedium,
		Status:         maintenance.WorkOrderInProgress,
		ScheduledStart: date("2024-03-08"),
		DueDate:        date("2024-03-08"),
		Tasks:          ev.Tasks,
	}

	// WHEN: moving it to April
	r, err := maintenance.Reschedule(ev, wo, date("2024-04-02"))
	require.NoError(t, err)

	// THEN: both records carry the new date and nothing else moved
	assert.Equal(t, "2024-04-02", r.Event.DueDate.String())
	assert.Equal(t, "2024-04-02", r.WorkOrder.ScheduledStart.String())
	assert.Equal(t, "2024-04-02", r.WorkOrder.DueDate.String())
	assert.Equal(t, maintenance.PriorityMedium, r.WorkOrder.Priority)
	assert.Equal(t, maintenance.WorkOrderInProgress, r.WorkOrder.Status)
	assert.Equal(t, generic.WorkOrderID("wo-1"), r.Event.LinkedWorkOrderID)
	assert.Equal(t, ev.Tasks, r.Event.Tasks)
	assert.Equal(t, generic.LogRescheduled, r.Log.Kind)
	assert.Equal(t, "Rescheduled from 2024-03-08 to 2024-04-02", r.Log.Message)
}

func TestReschedule_RegularizationKeepsOriginalDueDate(t *testing.T) {
	// GIVEN: a regularization order for an event due 2024-03-08
	ev := oilChange("2024-03-08")
	ev.LinkedWorkOrderID = "wo-1"
	wo := maintenance.WorkOrder{
		ID:             "wo-1",
		EventID:        "ev-1",
		Priority:       maintenance.PriorityCritical,
		Status:         maintenance.WorkOrderOpen,
		ScheduledStart: date("2024-03-20"),
		DueDate:        date("2024-03-08"),
		Regularization: true,
		DaysOverdue:    12,
	}

	// WHEN: pushing the start out
	r, err := maintenance.Reschedule(ev, wo, date("2024-03-25"))
	require.NoError(t, err)

	// THEN: the start and the event move, the SLA date does not
	assert.Equal(t, "2024-03-25", r.Event.DueDate.String())
	assert.Equal(t, "2024-03-25", r.WorkOrder.ScheduledStart.String())
	assert.Equal(t, "2024-03-08", r.WorkOrder.DueDate.String())
	assert.Equal(t, 12, r.WorkOrder.DaysOverdue)

	// AND: completing on the new start date still counts as late
	at := date("2024-03-25")
	r.WorkOrder.Status = maintenance.WorkOrderCompleted
	r.WorkOrder.CompletedAt = &at
	report := maintenance.OnTimeRate([]maintenance.WorkOrder{r.WorkOrder}, generic.Period{}, maintenance.UndatedExclude)
	assert.Equal(t, 0, report.OnTime)
	assert.Equal(t, 1, report.Completed)
}

func TestReschedule_Refusals(t *testing.T) {
	ev := oilChange("2024-03-08")
	wo := maintenance.WorkOrder{ID: "wo-1", Status: maintenance.WorkOrderOpen}

	_, err := maintenance.Reschedule(ev, wo, date("2024-04-02"))
	assert.ErrorIs(t, err, generic.ErrInvalidInput, "event not linked")

	ev.LinkedWorkOrderID = "wo-1"
	_, err = maintenance.Reschedule(ev, wo, generic.TimePoint{})
	assert.ErrorIs(t, err, generic.ErrInvalidInput, "missing date")

	wo.Status = maintenance.WorkOrderCancelled
	_, err = maintenance.Reschedule(ev, wo, date("2024-04-02"))
	assert.ErrorIs(t, err, generic.ErrInvalidInput, "closed work order")
}
