/*
audit.go - Append-only audit trail for work orders

PURPOSE:
  Every work order carries a log: who created it, why it was regularized,
  when it was rescheduled, who closed it. The log is the history of record
  for SLA and compliance review.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. ORDERED: Entries are returned in the order they were appended.
  3. FIRST ENTRY: The entry passed when a work order is created is its
     first entry. For regularized events it embeds the justification.

CORRECTIONS:
  A wrong note is never edited. A new LogNote entry states the correction.

SEE ALSO:
  - maintenance/reconcile.go: Builds the initial regularization entry
  - store/sqlite/sqlite.go: work_order_log table
*/
package generic

import (
	"context"
	"time"
)

// LogKind classifies audit entries.
type LogKind string

const (
	LogCreated        LogKind = "created"
	LogRegularization LogKind = "regularization"
	LogRescheduled    LogKind = "rescheduled"
	LogCompleted      LogKind = "completed"
	LogNote           LogKind = "note"
)

// LogEntry records who did what to a work order, and when.
type LogEntry struct {
	ID          string
	WorkOrderID WorkOrderID
	At          time.Time
	Actor       string
	Kind        LogKind
	Message     string
}

// AuditLog stores work order log entries. Append-only.
type AuditLog interface {
	// AppendLog persists an entry. This is the ONLY write operation.
	AppendLog(ctx context.Context, entry LogEntry) error

	// ListLog returns the entries of one work order, oldest first.
	ListLog(ctx context.Context, workOrderID WorkOrderID) ([]LogEntry, error)
}
