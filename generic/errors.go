/*
errors.go - Centralized error types for the asset engine

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  Every kind is recoverable at the call site: the caller asks the user for
  more input or picks a different action. Nothing here is fatal.

ERROR CATEGORIES:
  1. Projection errors - NoFrequencyCriteria, InvalidInput
  2. Execution errors  - MissingJustification, EventAlreadyLinked
  3. Lookup errors     - asset/plan/event/work order/template not found

USAGE:
  events, err := maintenance.Project(usage, freq, offset, 4, ref)
  if errors.Is(err, generic.ErrNoFrequencyCriteria) {
      // ask the user to configure an interval
  }

SEE ALSO:
  - maintenance/projection.go: Returns projection errors
  - maintenance/reconcile.go: Returns execution errors
  - api/handlers.go: Maps errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoFrequencyCriteria is returned when neither a usage nor a time
	// interval is configured. No default cadence is ever guessed.
	ErrNoFrequencyCriteria = errors.New("no frequency criteria configured")

	// ErrInvalidInput covers non-positive counts, zero usage rates on
	// usage-only plans, negative usage and malformed records.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingJustification is returned when an overdue event is executed
	// without a reason for regularization. Only the work order creation is
	// blocked; reconciliation keeps reporting the overdue state.
	ErrMissingJustification = errors.New("missing justification for overdue execution")

	// ErrEventAlreadyLinked is returned when an event already has a work order.
	ErrEventAlreadyLinked = errors.New("event already linked to a work order")

	ErrAssetNotFound     = errors.New("asset not found")
	ErrPlanNotFound      = errors.New("plan not found")
	ErrEventNotFound     = errors.New("event not found")
	ErrWorkOrderNotFound = errors.New("work order not found")
	ErrTemplateNotFound  = errors.New("template not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidInputError names the offending field.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// Invalid is shorthand for building an InvalidInputError.
func Invalid(field, format string, args ...any) error {
	return &InvalidInputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// JustificationError reports how late the event is so the UI can show it
// next to the reason prompt.
type JustificationError struct {
	EventID     EventID
	DaysOverdue int
}

func (e *JustificationError) Error() string {
	return fmt.Sprintf("event %s is %d days overdue: a regularization reason is required",
		e.EventID, e.DaysOverdue)
}

func (e *JustificationError) Unwrap() error {
	return ErrMissingJustification
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNoFrequencyCriteria) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrMissingJustification)
}

// IsConflict returns true if the request collides with existing state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrEventAlreadyLinked)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAssetNotFound) ||
		errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrEventNotFound) ||
		errors.Is(err, ErrWorkOrderNotFound) ||
		errors.Is(err, ErrTemplateNotFound)
}
