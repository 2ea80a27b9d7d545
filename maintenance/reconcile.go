/*
reconcile.go - Event state classification and late execution

PURPOSE:
  Compares a projected event with "today" and with the work order linked to
  it, and decides what the UI shows: scheduled, due, overdue or completed.
  Reconciliation is read-only and always succeeds.

EXECUTION ESCALATION (regularization):
  When an overdue event is executed:
    1. DaysOverdue is computed exactly as in Reconcile.
    2. A free-text reason is REQUIRED. Without it nothing is created and
       the event stays unlinked (ErrMissingJustification).
    3. The first log entry embeds title, original due date, days overdue
       and the reason.
    4. The work order is forced to critical priority. ScheduledStart is
       today; DueDate stays the original event due date.

RESCHEDULING:
  Only date fields change, on both the event and its work order. Tasks and
  linkage are never touched.

CONCURRENCY:
  PrepareExecution checks LinkedWorkOrderID on the copy it was given. Two
  clients holding the same stale copy both pass that check; the repository
  must enforce at most one work order per event (see Repository).

SEE ALSO:
  - service.go: ExecuteEvent and RescheduleEvent wire these to the repository
  - generic/audit.go: LogEntry
*/
package maintenance

import (
	"fmt"
	"strings"

	"github.com/warp/asset-engine/generic"
)

// EventState is the display state derived at read time.
type EventState string

const (
	StateScheduled EventState = "scheduled"
	StateDue       EventState = "due"
	StateOverdue   EventState = "overdue"
	StateCompleted EventState = "completed"
)

// ReconciliationResult is computed, never persisted.
type ReconciliationResult struct {
	State             EventState
	IsOverdue         bool
	DaysOverdue       int
	EscalatedPriority Priority
	CanReschedule     bool
}

// Reconcile classifies an event as of today. linked may be nil.
func Reconcile(event ProjectedEvent, linked *WorkOrder, today generic.TimePoint) ReconciliationResult {
	result := ReconciliationResult{
		State:             StateScheduled,
		EscalatedPriority: nominalPriority(event),
	}

	if event.Status == StatusCompleted {
		result.State = StateCompleted
		return result
	}

	switch {
	case event.DueDate.Before(today):
		result.State = StateOverdue
		result.IsOverdue = true
		result.DaysOverdue = generic.DaysBetween(event.DueDate, today)
		result.EscalatedPriority = PriorityCritical
	case event.DueDate.Equal(today):
		result.State = StateDue
	}

	if linked != nil && !linked.Done() && linked.DueDate.Before(today) {
		result.CanReschedule = true
	}
	return result
}

func nominalPriority(event ProjectedEvent) Priority {
	if event.Priority == "" {
		return PriorityLow
	}
	return event.Priority
}

// =============================================================================
// EXECUTION - Build the work order for an event
// =============================================================================

// Execution is the data shape handed to the repository. The work order has
// no ID yet; FirstLog becomes the first entry of its audit trail.
type Execution struct {
	WorkOrder      WorkOrder
	FirstLog       generic.LogEntry
	Reconciliation ReconciliationResult
}

// PrepareExecution builds the work order for executing event on today.
// Overdue events require a non-blank reason.
func PrepareExecution(event ProjectedEvent, reason string, today generic.TimePoint) (Execution, error) {
	if event.Status == StatusCompleted {
		return Execution{}, generic.Invalid("status", "event %s is already completed", event.ID)
	}
	if event.LinkedWorkOrderID != "" {
		return Execution{}, fmt.Errorf("event %s: %w (%s)", event.ID, generic.ErrEventAlreadyLinked, event.LinkedWorkOrderID)
	}

	rec := Reconcile(event, nil, today)
	reason = strings.TrimSpace(reason)

	wo := WorkOrder{
		AssetID:     event.AssetID,
		EventID:     event.ID,
		PlanID:      event.PlanID,
		Title:       event.Title,
		Description: describeTasks(event.Tasks),
		Priority:    rec.EscalatedPriority,
		Status:      WorkOrderOpen,
		DueDate:     event.DueDate,
		Tasks:       append([]Task(nil), event.Tasks...),
	}

	if !rec.IsOverdue {
		wo.ScheduledStart = event.DueDate
		return Execution{
			WorkOrder: wo,
			FirstLog: generic.LogEntry{
				Kind:    generic.LogCreated,
				Message: fmt.Sprintf("Generated from preventive event %q due %s", event.Title, event.DueDate),
			},
			Reconciliation: rec,
		}, nil
	}

	if reason == "" {
		return Execution{}, &generic.JustificationError{EventID: event.ID, DaysOverdue: rec.DaysOverdue}
	}

	wo.ScheduledStart = today
	wo.Priority = PriorityCritical
	wo.Regularization = true
	wo.DaysOverdue = rec.DaysOverdue

	return Execution{
		WorkOrder: wo,
		FirstLog: generic.LogEntry{
			Kind: generic.LogRegularization,
			Message: fmt.Sprintf("Regularization of %q: originally due %s, %d days overdue. Reason: %s",
				event.Title, event.DueDate, rec.DaysOverdue, reason),
		},
		Reconciliation: rec,
	}, nil
}

func describeTasks(tasks []Task) string {
	if len(tasks) == 0 {
		return "Preventive maintenance"
	}
	parts := make([]string, 0, len(tasks))
	for _, t := range tasks {
		line := t.Description
		if t.IsCritical {
			line += " (critical)"
		}
		parts = append(parts, line)
	}
	return "Preventive maintenance: " + strings.Join(parts, "; ")
}

// =============================================================================
// RESCHEDULING
// =============================================================================

// Rescheduling is the result of moving an event and its work order.
type Rescheduling struct {
	Event     ProjectedEvent
	WorkOrder WorkOrder
	Log       generic.LogEntry
}

// Reschedule moves the event and its linked work order to newDate. Only the
// date fields change. A regularization order keeps its original due date so
// the delay stays visible to the on-time KPI.
func Reschedule(event ProjectedEvent, wo WorkOrder, newDate generic.TimePoint) (Rescheduling, error) {
	if newDate.IsZero() {
		return Rescheduling{}, generic.Invalid("date", "required")
	}
	if event.LinkedWorkOrderID == "" || event.LinkedWorkOrderID != wo.ID {
		return Rescheduling{}, generic.Invalid("work_order", "event %s is not linked to work order %s", event.ID, wo.ID)
	}
	if wo.Done() {
		return Rescheduling{}, generic.Invalid("work_order", "work order %s is %s", wo.ID, wo.Status)
	}

	previous := event.DueDate
	event.DueDate = newDate
	wo.ScheduledStart = newDate
	if !wo.Regularization {
		wo.DueDate = newDate
	}

	return Rescheduling{
		Event:     event,
		WorkOrder: wo,
		Log: generic.LogEntry{
			WorkOrderID: wo.ID,
			Kind:        generic.LogRescheduled,
			Message:     fmt.Sprintf("Rescheduled from %s to %s", previous, newDate),
		},
	}, nil
}
