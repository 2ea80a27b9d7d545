/*
store.go - Persistence interface for the maintenance domain

PURPOSE:
  The core functions (Project, Reconcile, ApplyTemplate) are pure. All reads
  and writes happen through Repository, injected into Service. Different
  implementations can use SQLite or in-memory storage.

AT-MOST-ONE WORK ORDER PER EVENT:
  Two clients may execute the same event concurrently. CreateWorkOrder MUST
  check the link and write the work order, the link and the first log entry
  atomically, and MUST return ErrEventAlreadyLinked for the loser.
  - store/sqlite: single transaction + UNIQUE(work_orders.event_id)
  - store/memory: one mutex around check and write

EVENT WRITES:
  SaveEvents is a bulk upsert keyed by event ID. Tasks are owned by their
  event and replaced wholesale on upsert; DeleteEvent removes them too.

SEE ALSO:
  - generic/audit.go: AuditLog (embedded)
  - store/sqlite/sqlite.go, store/memory/memory.go: Implementations
*/
package maintenance

import (
	"context"
	"time"

	"github.com/warp/asset-engine/generic"
)

// EventFilter narrows ListEvents. Zero values match everything.
type EventFilter struct {
	AssetID generic.AssetID
	PlanID  generic.PlanID
	Status  EventStatus
}

// Matches reports whether e passes the filter.
func (f EventFilter) Matches(e ProjectedEvent) bool {
	return (f.AssetID == "" || e.AssetID == f.AssetID) &&
		(f.PlanID == "" || e.PlanID == f.PlanID) &&
		(f.Status == "" || e.Status == f.Status)
}

// WorkOrderFilter narrows ListWorkOrders. Zero values match everything.
type WorkOrderFilter struct {
	AssetID generic.AssetID
	Status  WorkOrderStatus
}

func (f WorkOrderFilter) Matches(wo WorkOrder) bool {
	return (f.AssetID == "" || wo.AssetID == f.AssetID) &&
		(f.Status == "" || wo.Status == f.Status)
}

// Repository is everything Service needs from storage. Get* methods return
// an error wrapping the matching generic.Err*NotFound sentinel.
type Repository interface {
	generic.AuditLog

	GetAsset(ctx context.Context, id generic.AssetID) (*Asset, error)
	ListAssets(ctx context.Context) ([]Asset, error)
	SaveAsset(ctx context.Context, a Asset) error

	GetPlan(ctx context.Context, id generic.PlanID) (*Plan, error)
	ListPlans(ctx context.Context, assetID generic.AssetID) ([]Plan, error)
	SavePlan(ctx context.Context, p Plan) error

	// SaveEvents upserts all events atomically. An existing event keeps its
	// status and work order link.
	SaveEvents(ctx context.Context, events []ProjectedEvent) error
	GetEvent(ctx context.Context, id generic.EventID) (*ProjectedEvent, error)
	// ListEvents returns matching events ordered by due date.
	ListEvents(ctx context.Context, filter EventFilter) ([]ProjectedEvent, error)
	DeleteEvent(ctx context.Context, id generic.EventID) error

	// CreateWorkOrder writes wo, links it to wo.EventID and appends first,
	// all or nothing.
	CreateWorkOrder(ctx context.Context, wo WorkOrder, first generic.LogEntry) error
	GetWorkOrder(ctx context.Context, id generic.WorkOrderID) (*WorkOrder, error)
	ListWorkOrders(ctx context.Context, filter WorkOrderFilter) ([]WorkOrder, error)
	// CompleteWorkOrder closes the order, marks its event completed and
	// appends entry, all or nothing.
	CompleteWorkOrder(ctx context.Context, id generic.WorkOrderID, at generic.TimePoint, entry generic.LogEntry) error
	// RescheduleLinked stores the new dates of an event and its work order
	// and appends entry, all or nothing.
	RescheduleLinked(ctx context.Context, event ProjectedEvent, wo WorkOrder, entry generic.LogEntry) error
}

// SweepRun records one pass of the overdue sweeper.
type SweepRun struct {
	ID             string
	AsOf           generic.TimePoint
	Status         string // completed, failed
	Overdue        int
	MaxDaysOverdue int
	Error          string
	StartedAt      time.Time
	CompletedAt    time.Time
}

// SweepLog stores sweeper runs. Optional; both bundled stores implement it.
type SweepLog interface {
	SaveSweepRun(ctx context.Context, run SweepRun) error
	// ListSweepRuns returns the newest runs first, at most limit.
	ListSweepRuns(ctx context.Context, limit int) ([]SweepRun, error)
}
