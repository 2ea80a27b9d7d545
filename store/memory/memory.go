// Package memory provides an in-memory maintenance.Repository.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/asset-engine/generic"
	"github.com/warp/asset-engine/maintenance"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps everything in maps behind one lock. Values are copied in and
// out so callers never share slices with the store.
type Memory struct {
	mu         sync.RWMutex
	assets     map[generic.AssetID]maintenance.Asset
	plans      map[generic.PlanID]maintenance.Plan
	events     map[generic.EventID]maintenance.ProjectedEvent
	workOrders map[generic.WorkOrderID]maintenance.WorkOrder
	log        map[generic.WorkOrderID][]generic.LogEntry
	sweeps     []maintenance.SweepRun
}

var (
	_ maintenance.Repository = (*Memory)(nil)
	_ maintenance.SweepLog   = (*Memory)(nil)
)

func New() *Memory {
	return &Memory{
		assets:     make(map[generic.AssetID]maintenance.Asset),
		plans:      make(map[generic.PlanID]maintenance.Plan),
		events:     make(map[generic.EventID]maintenance.ProjectedEvent),
		workOrders: make(map[generic.WorkOrderID]maintenance.WorkOrder),
		log:        make(map[generic.WorkOrderID][]generic.LogEntry),
	}
}

// Reset clears all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.assets)
	clear(m.plans)
	clear(m.events)
	clear(m.workOrders)
	clear(m.log)
	m.sweeps = nil
	return nil
}

// =============================================================================
// ASSETS AND PLANS
// =============================================================================

func (m *Memory) GetAsset(_ context.Context, id generic.AssetID) (*maintenance.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", generic.ErrAssetNotFound, id)
	}
	return &a, nil
}

func (m *Memory) ListAssets(_ context.Context) ([]maintenance.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]maintenance.Asset, 0, len(m.assets))
	for _, a := range m.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) SaveAsset(_ context.Context, a maintenance.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[a.ID] = a
	return nil
}

func (m *Memory) GetPlan(_ context.Context, id generic.PlanID) (*maintenance.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", generic.ErrPlanNotFound, id)
	}
	p.Tasks = copyTasks(p.Tasks)
	return &p, nil
}

func (m *Memory) ListPlans(_ context.Context, assetID generic.AssetID) ([]maintenance.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []maintenance.Plan
	for _, p := range m.plans {
		if assetID == "" || p.AssetID == assetID {
			p.Tasks = copyTasks(p.Tasks)
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SavePlan(_ context.Context, p maintenance.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.Tasks = copyTasks(p.Tasks)
	m.plans[p.ID] = p
	return nil
}

// =============================================================================
// EVENTS
// =============================================================================

// SaveEvents upserts all events. Validation happens before any write so the
// batch is all or nothing.
func (m *Memory) SaveEvents(_ context.Context, events []maintenance.ProjectedEvent) error {
	for _, e := range events {
		if e.ID == "" {
			return generic.Invalid("id", "event id required")
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range events {
		if old, ok := m.events[e.ID]; ok {
			e.Status = old.Status
			e.LinkedWorkOrderID = old.LinkedWorkOrderID
		}
		e.Tasks = copyTasks(e.Tasks)
		m.events[e.ID] = e
	}
	return nil
}

func (m *Memory) GetEvent(_ context.Context, id generic.EventID) (*maintenance.ProjectedEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", generic.ErrEventNotFound, id)
	}
	e.Tasks = copyTasks(e.Tasks)
	return &e, nil
}

func (m *Memory) ListEvents(_ context.Context, filter maintenance.EventFilter) ([]maintenance.ProjectedEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []maintenance.ProjectedEvent
	for _, e := range m.events {
		if filter.Matches(e) {
			e.Tasks = copyTasks(e.Tasks)
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) DeleteEvent(_ context.Context, id generic.EventID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return fmt.Errorf("%w: %s", generic.ErrEventNotFound, id)
	}
	delete(m.events, id)
	return nil
}

// =============================================================================
// WORK ORDERS
// =============================================================================

// CreateWorkOrder checks the link and writes under one lock.
func (m *Memory) CreateWorkOrder(_ context.Context, wo maintenance.WorkOrder, first generic.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if wo.EventID != "" {
		e, ok := m.events[wo.EventID]
		if !ok {
			return fmt.Errorf("%w: %s", generic.ErrEventNotFound, wo.EventID)
		}
		if e.LinkedWorkOrderID != "" {
			return fmt.Errorf("%w: event %s has work order %s",
				generic.ErrEventAlreadyLinked, e.ID, e.LinkedWorkOrderID)
		}
		e.LinkedWorkOrderID = wo.ID
		m.events[e.ID] = e
	}

	wo.Tasks = copyTasks(wo.Tasks)
	m.workOrders[wo.ID] = wo
	m.log[wo.ID] = append(m.log[wo.ID], first)
	return nil
}

func (m *Memory) GetWorkOrder(_ context.Context, id generic.WorkOrderID) (*maintenance.WorkOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wo, ok := m.workOrders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", generic.ErrWorkOrderNotFound, id)
	}
	wo = copyWorkOrder(wo)
	return &wo, nil
}

func (m *Memory) ListWorkOrders(_ context.Context, filter maintenance.WorkOrderFilter) ([]maintenance.WorkOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []maintenance.WorkOrder
	for _, wo := range m.workOrders {
		if filter.Matches(wo) {
			out = append(out, copyWorkOrder(wo))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) CompleteWorkOrder(_ context.Context, id generic.WorkOrderID, at generic.TimePoint, entry generic.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	wo, ok := m.workOrders[id]
	if !ok {
		return fmt.Errorf("%w: %s", generic.ErrWorkOrderNotFound, id)
	}
	if wo.Done() {
		return generic.Invalid("status", "work order %s is already %s", id, wo.Status)
	}
	wo.Status = maintenance.WorkOrderCompleted
	wo.CompletedAt = &at
	m.workOrders[id] = wo

	if e, ok := m.events[wo.EventID]; ok {
		e.Status = maintenance.StatusCompleted
		m.events[e.ID] = e
	}
	m.log[id] = append(m.log[id], entry)
	return nil
}

func (m *Memory) RescheduleLinked(_ context.Context, event maintenance.ProjectedEvent, wo maintenance.WorkOrder, entry generic.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	storedEvent, ok := m.events[event.ID]
	if !ok {
		return fmt.Errorf("%w: %s", generic.ErrEventNotFound, event.ID)
	}
	storedWO, ok := m.workOrders[wo.ID]
	if !ok {
		return fmt.Errorf("%w: %s", generic.ErrWorkOrderNotFound, wo.ID)
	}

	// Only the dates move.
	storedEvent.DueDate = event.DueDate
	storedWO.ScheduledStart = wo.ScheduledStart
	storedWO.DueDate = wo.DueDate
	m.events[event.ID] = storedEvent
	m.workOrders[wo.ID] = storedWO
	m.log[wo.ID] = append(m.log[wo.ID], entry)
	return nil
}

// =============================================================================
// AUDIT LOG (generic.AuditLog)
// =============================================================================

// AppendLog adds a single entry. Append-only.
func (m *Memory) AppendLog(_ context.Context, entry generic.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workOrders[entry.WorkOrderID]; !ok {
		return fmt.Errorf("%w: %s", generic.ErrWorkOrderNotFound, entry.WorkOrderID)
	}
	m.log[entry.WorkOrderID] = append(m.log[entry.WorkOrderID], entry)
	return nil
}

func (m *Memory) ListLog(_ context.Context, id generic.WorkOrderID) ([]generic.LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]generic.LogEntry, len(m.log[id]))
	copy(result, m.log[id])
	return result, nil
}

// =============================================================================
// SWEEP RUNS (maintenance.SweepLog)
// =============================================================================

func (m *Memory) SaveSweepRun(_ context.Context, run maintenance.SweepRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweeps = append(m.sweeps, run)
	return nil
}

func (m *Memory) ListSweepRuns(_ context.Context, limit int) ([]maintenance.SweepRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []maintenance.SweepRun
	for i := len(m.sweeps) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, m.sweeps[i])
	}
	return out, nil
}

func copyTasks(tasks []maintenance.Task) []maintenance.Task {
	if tasks == nil {
		return nil
	}
	out := make([]maintenance.Task, len(tasks))
	copy(out, tasks)
	return out
}

func copyWorkOrder(wo maintenance.WorkOrder) maintenance.WorkOrder {
	wo.Tasks = copyTasks(wo.Tasks)
	if wo.CompletedAt != nil {
		at := *wo.CompletedAt
		wo.CompletedAt = &at
	}
	return wo
}
