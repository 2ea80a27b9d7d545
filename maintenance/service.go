package maintenance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/asset-engine/generic"
	"go.uber.org/zap"
)

// =============================================================================
// SERVICE - Boundary between the pure core and the repository
// =============================================================================

// Observer receives domain counters. api.Metrics implements it.
type Observer interface {
	EventsProjected(trigger Trigger, n int)
	ProjectionFailed(reason string)
	WorkOrderCreated(regularization bool)
}

// Service runs maintenance operations against a Repository.
type Service struct {
	Repo      Repository
	Logger    *zap.Logger
	Suggester PlanSuggester // optional external generator
	Observer  Observer      // optional

	// NewID and Now are replaceable for deterministic tests.
	NewID func() string
	Now   func() time.Time
}

// NewService wires defaults: uuid IDs, wall clock, no-op logger.
func NewService(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Repo:   repo,
		Logger: logger,
		NewID:  uuid.NewString,
		Now:    time.Now,
	}
}

// EventView is an event together with its linked work order and read-time
// reconciliation.
type EventView struct {
	Event          ProjectedEvent
	WorkOrder      *WorkOrder
	Reconciliation ReconciliationResult
}

// =============================================================================
// ASSETS AND PLANS
// =============================================================================

// CreateAsset validates and stores a new asset.
func (s *Service) CreateAsset(ctx context.Context, a Asset) (Asset, error) {
	if strings.TrimSpace(a.Name) == "" {
		return Asset{}, generic.Invalid("name", "required")
	}
	if !a.Category.Valid() {
		return Asset{}, generic.Invalid("category", "unknown category %q", a.Category)
	}
	if a.UsageUnit != "" && !a.UsageUnit.Valid() {
		return Asset{}, generic.Invalid("usage_unit", "unknown unit %q", a.UsageUnit)
	}
	if _, err := NewUsageProfile(a.CurrentUsage, a.DailyUsageRate); err != nil {
		return Asset{}, err
	}
	if a.ID == "" {
		a.ID = generic.AssetID(s.NewID())
	}
	a.Active = true
	if err := s.Repo.SaveAsset(ctx, a); err != nil {
		return Asset{}, fmt.Errorf("save asset: %w", err)
	}
	s.Logger.Info("asset created", zap.String("asset_id", string(a.ID)), zap.String("category", string(a.Category)))
	return a, nil
}

// UpdateUsage records a new usage reading. Counters never run backwards.
func (s *Service) UpdateUsage(ctx context.Context, id generic.AssetID, current, dailyRate decimal.Decimal) (Asset, error) {
	asset, err := s.Repo.GetAsset(ctx, id)
	if err != nil {
		return Asset{}, err
	}
	usage, err := NewUsageProfile(current, dailyRate)
	if err != nil {
		return Asset{}, err
	}
	if usage.CurrentUsage.LessThan(asset.CurrentUsage) {
		return Asset{}, generic.Invalid("current_usage", "reading %s is below the recorded %s",
			usage.CurrentUsage, asset.CurrentUsage)
	}
	asset.CurrentUsage = usage.CurrentUsage
	asset.DailyUsageRate = usage.DailyUsageRate
	if err := s.Repo.SaveAsset(ctx, *asset); err != nil {
		return Asset{}, fmt.Errorf("save asset: %w", err)
	}
	return *asset, nil
}

// CreatePlan validates the frequency and stores a plan for an existing asset.
func (s *Service) CreatePlan(ctx context.Context, p Plan) (Plan, error) {
	asset, err := s.Repo.GetAsset(ctx, p.AssetID)
	if err != nil {
		return Plan{}, err
	}
	if p.Frequency.UsageUnit == "" {
		p.Frequency.UsageUnit = asset.UsageUnit
	}
	if err := p.Frequency.Validate(); err != nil {
		return Plan{}, err
	}
	if p.StartOffset.IsNegative() {
		return Plan{}, generic.Invalid("start_offset", "must be >= 0")
	}
	if p.ID == "" {
		p.ID = generic.PlanID(s.NewID())
	}
	if p.Name == "" {
		p.Name = "Preventive plan"
	}
	p.Active = true
	if err := s.Repo.SavePlan(ctx, p); err != nil {
		return Plan{}, fmt.Errorf("save plan: %w", err)
	}
	return p, nil
}

// =============================================================================
// EVENT GENERATION
// =============================================================================

// GenerateEvents projects count events for a plan and stores them. A plan
// with no start offset projects from the asset's current usage.
//
// Regenerating replaces the plan's schedule iteration by iteration: the i-th
// projected event reuses the ID of the plan's i-th stored event (by due
// date), and iterations whose stored event is already linked or completed
// are kept as they are. Manual events are never matched.
func (s *Service) GenerateEvents(ctx context.Context, planID generic.PlanID, count int, ref generic.TimePoint) ([]ProjectedEvent, error) {
	plan, err := s.Repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	asset, err := s.Repo.GetAsset(ctx, plan.AssetID)
	if err != nil {
		return nil, err
	}

	offset := plan.StartOffset
	if offset.IsZero() {
		offset = asset.CurrentUsage
	}

	events, err := Project(asset.Usage(), plan.Frequency, offset, count, ref)
	if err != nil {
		s.projectionFailed(err)
		s.Logger.Info("projection refused",
			zap.String("plan_id", string(plan.ID)), zap.Int("count", count), zap.Error(err))
		return nil, err
	}

	stored, err := s.planSchedule(ctx, plan.ID)
	if err != nil {
		return nil, err
	}

	fresh := make([]ProjectedEvent, 0, len(events))
	for i := range events {
		if i < len(stored) && stored[i].Locked() {
			events[i] = stored[i]
			continue
		}
		if i < len(stored) {
			events[i].ID = stored[i].ID
		} else {
			events[i].ID = generic.EventID(s.NewID())
		}
		events[i].AssetID = asset.ID
		events[i].PlanID = plan.ID
		events[i].Tasks = append([]Task(nil), plan.Tasks...)
		fresh = append(fresh, events[i])
	}
	if err := s.Repo.SaveEvents(ctx, fresh); err != nil {
		return nil, fmt.Errorf("save events: %w", err)
	}

	s.observeProjected(fresh)
	s.Logger.Info("events generated",
		zap.String("plan_id", string(plan.ID)),
		zap.String("asset_id", string(asset.ID)),
		zap.Int("count", len(events)),
		zap.Int("replaced", min(len(stored), len(events))),
		zap.Int("kept", len(events)-len(fresh)),
		zap.Stringer("first_due", events[0].DueDate))
	return events, nil
}

// planSchedule returns the plan's projected events ordered by due date.
func (s *Service) planSchedule(ctx context.Context, planID generic.PlanID) ([]ProjectedEvent, error) {
	all, err := s.Repo.ListEvents(ctx, EventFilter{PlanID: planID})
	if err != nil {
		return nil, fmt.Errorf("list plan events: %w", err)
	}
	out := all[:0]
	for _, e := range all {
		if e.Trigger != TriggerManual {
			out = append(out, e)
		}
	}
	return out, nil
}

// ApplyTemplate seeds a plan from a template and stores its events.
func (s *Service) ApplyTemplate(ctx context.Context, assetID generic.AssetID, key string, ref generic.TimePoint) (Plan, []ProjectedEvent, error) {
	asset, err := s.Repo.GetAsset(ctx, assetID)
	if err != nil {
		return Plan{}, nil, err
	}
	tpl, err := LookupTemplate(key)
	if err != nil {
		return Plan{}, nil, err
	}
	if ref.IsZero() {
		return Plan{}, nil, generic.Invalid("reference_date", "required")
	}

	freq, events := ApplyTemplate(tpl, asset.Usage(), ref)
	plan := Plan{
		ID:          generic.PlanID(s.NewID()),
		AssetID:     asset.ID,
		Name:        tpl.Name,
		Frequency:   freq,
		StartOffset: asset.CurrentUsage,
		TemplateKey: tpl.Key,
		Active:      true,
	}
	if err := s.Repo.SavePlan(ctx, plan); err != nil {
		return Plan{}, nil, fmt.Errorf("save plan: %w", err)
	}

	for i := range events {
		events[i].ID = generic.EventID(s.NewID())
		events[i].AssetID = asset.ID
		events[i].PlanID = plan.ID
	}
	if err := s.Repo.SaveEvents(ctx, events); err != nil {
		return Plan{}, nil, fmt.Errorf("save events: %w", err)
	}

	s.observeProjected(events)
	if !asset.DailyUsageRate.IsPositive() {
		s.Logger.Warn("template applied without a daily usage rate, assuming 1 unit/day",
			zap.String("asset_id", string(asset.ID)), zap.String("template", tpl.Key))
	}
	return plan, events, nil
}

// CreateManualEvent stores a user-authored event.
func (s *Service) CreateManualEvent(ctx context.Context, ev ProjectedEvent) (ProjectedEvent, error) {
	if _, err := s.Repo.GetAsset(ctx, ev.AssetID); err != nil {
		return ProjectedEvent{}, err
	}
	if err := ev.Validate(); err != nil {
		return ProjectedEvent{}, err
	}
	if ev.ID == "" {
		ev.ID = generic.EventID(s.NewID())
	}
	if ev.Priority == "" {
		ev.Priority = PriorityLow
	}
	ev.Trigger = TriggerManual
	ev.Status = StatusScheduled
	ev.LinkedWorkOrderID = ""
	if err := s.Repo.SaveEvents(ctx, []ProjectedEvent{ev}); err != nil {
		return ProjectedEvent{}, fmt.Errorf("save event: %w", err)
	}
	return ev, nil
}

// DeleteEvent removes an event and its tasks. Linked work orders are kept.
func (s *Service) DeleteEvent(ctx context.Context, id generic.EventID) error {
	if _, err := s.Repo.GetEvent(ctx, id); err != nil {
		return err
	}
	return s.Repo.DeleteEvent(ctx, id)
}

// =============================================================================
// READ-TIME RECONCILIATION
// =============================================================================

// EventStatus loads and reconciles one event. It never fails for an
// existing event, whatever its state.
func (s *Service) EventStatus(ctx context.Context, id generic.EventID, today generic.TimePoint) (EventView, error) {
	ev, err := s.Repo.GetEvent(ctx, id)
	if err != nil {
		return EventView{}, err
	}
	return s.view(ctx, *ev, today)
}

// AssetEventStatuses reconciles every event of an asset, ordered by due date.
func (s *Service) AssetEventStatuses(ctx context.Context, assetID generic.AssetID, today generic.TimePoint) ([]EventView, Backlog, error) {
	if _, err := s.Repo.GetAsset(ctx, assetID); err != nil {
		return nil, Backlog{}, err
	}
	return s.reconcileAll(ctx, EventFilter{AssetID: assetID}, today)
}

// Overdue returns every scheduled event that is overdue as of today.
func (s *Service) Overdue(ctx context.Context, today generic.TimePoint) ([]EventView, error) {
	views, _, err := s.reconcileAll(ctx, EventFilter{Status: StatusScheduled}, today)
	if err != nil {
		return nil, err
	}
	overdue := views[:0]
	for _, v := range views {
		if v.Reconciliation.IsOverdue {
			overdue = append(overdue, v)
		}
	}
	return overdue, nil
}

func (s *Service) reconcileAll(ctx context.Context, filter EventFilter, today generic.TimePoint) ([]EventView, Backlog, error) {
	events, err := s.Repo.ListEvents(ctx, filter)
	if err != nil {
		return nil, Backlog{}, err
	}
	var backlog Backlog
	views := make([]EventView, 0, len(events))
	for _, ev := range events {
		v, err := s.view(ctx, ev, today)
		if err != nil {
			return nil, Backlog{}, err
		}
		backlog.Add(v.Reconciliation)
		views = append(views, v)
	}
	return views, backlog, nil
}

func (s *Service) view(ctx context.Context, ev ProjectedEvent, today generic.TimePoint) (EventView, error) {
	v := EventView{Event: ev}
	if ev.LinkedWorkOrderID != "" {
		wo, err := s.Repo.GetWorkOrder(ctx, ev.LinkedWorkOrderID)
		switch {
		case err == nil:
			v.WorkOrder = wo
		case generic.IsNotFound(err):
			s.Logger.Warn("event links a missing work order",
				zap.String("event_id", string(ev.ID)), zap.String("work_order_id", string(ev.LinkedWorkOrderID)))
		default:
			return EventView{}, err
		}
	}
	v.Reconciliation = Reconcile(ev, v.WorkOrder, today)
	return v, nil
}

// =============================================================================
// EXECUTION
// =============================================================================

// ExecuteInput is a request to turn an event into a work order.
type ExecuteInput struct {
	EventID generic.EventID
	Reason  string // required when the event is overdue
	Actor   string
	Today   generic.TimePoint // defaults to the service clock
}

// ExecuteEvent creates the work order for an event. Overdue events are
// regularized: critical priority, start today, original due date kept, and
// the reason recorded as the first log entry.
func (s *Service) ExecuteEvent(ctx context.Context, in ExecuteInput) (WorkOrder, error) {
	ev, err := s.Repo.GetEvent(ctx, in.EventID)
	if err != nil {
		return WorkOrder{}, err
	}

	today := in.Today
	if today.IsZero() {
		today = generic.DateOf(s.Now())
	}
	exec, err := PrepareExecution(*ev, in.Reason, today)
	if err != nil {
		return WorkOrder{}, err
	}

	now := s.Now()
	wo := exec.WorkOrder
	wo.ID = generic.WorkOrderID(s.NewID())
	wo.CreatedAt = now

	first := exec.FirstLog
	first.ID = s.NewID()
	first.WorkOrderID = wo.ID
	first.At = now
	first.Actor = actorOrSystem(in.Actor)

	if err := s.Repo.CreateWorkOrder(ctx, wo, first); err != nil {
		return WorkOrder{}, err
	}

	if s.Observer != nil {
		s.Observer.WorkOrderCreated(wo.Regularization)
	}
	fields := []zap.Field{
		zap.String("event_id", string(ev.ID)),
		zap.String("work_order_id", string(wo.ID)),
		zap.String("actor", first.Actor),
	}
	if wo.Regularization {
		s.Logger.Warn("overdue event regularized", append(fields, zap.Int("days_overdue", wo.DaysOverdue))...)
	} else {
		s.Logger.Info("work order created", fields...)
	}
	return wo, nil
}

// RescheduleEvent moves an event and its open work order to newDate.
func (s *Service) RescheduleEvent(ctx context.Context, id generic.EventID, newDate generic.TimePoint, actor string) (EventView, error) {
	ev, err := s.Repo.GetEvent(ctx, id)
	if err != nil {
		return EventView{}, err
	}
	if ev.LinkedWorkOrderID == "" {
		return EventView{}, generic.Invalid("event", "event %s has no work order to reschedule", id)
	}
	wo, err := s.Repo.GetWorkOrder(ctx, ev.LinkedWorkOrderID)
	if err != nil {
		return EventView{}, err
	}

	r, err := Reschedule(*ev, *wo, newDate)
	if err != nil {
		return EventView{}, err
	}
	r.Log.ID = s.NewID()
	r.Log.At = s.Now()
	r.Log.Actor = actorOrSystem(actor)

	if err := s.Repo.RescheduleLinked(ctx, r.Event, r.WorkOrder, r.Log); err != nil {
		return EventView{}, err
	}
	s.Logger.Info("event rescheduled",
		zap.String("event_id", string(id)), zap.Stringer("due", newDate), zap.String("actor", r.Log.Actor))
	return EventView{
		Event:          r.Event,
		WorkOrder:      &r.WorkOrder,
		Reconciliation: Reconcile(r.Event, &r.WorkOrder, generic.DateOf(s.Now())),
	}, nil
}

// CompleteWorkOrder closes a work order and marks its event completed.
func (s *Service) CompleteWorkOrder(ctx context.Context, id generic.WorkOrderID, at generic.TimePoint, actor, note string) (WorkOrder, error) {
	wo, err := s.Repo.GetWorkOrder(ctx, id)
	if err != nil {
		return WorkOrder{}, err
	}
	if wo.Done() {
		return WorkOrder{}, generic.Invalid("status", "work order %s is already %s", id, wo.Status)
	}
	if at.IsZero() {
		at = generic.DateOf(s.Now())
	}

	msg := "Completed on " + at.String()
	if note = strings.TrimSpace(note); note != "" {
		msg += ": " + note
	}
	entry := generic.LogEntry{
		ID:          s.NewID(),
		WorkOrderID: id,
		At:          s.Now(),
		Actor:       actorOrSystem(actor),
		Kind:        generic.LogCompleted,
		Message:     msg,
	}
	if err := s.Repo.CompleteWorkOrder(ctx, id, at, entry); err != nil {
		return WorkOrder{}, err
	}

	wo.Status = WorkOrderCompleted
	wo.CompletedAt = &at
	s.Logger.Info("work order completed",
		zap.String("work_order_id", string(id)),
		zap.Bool("late", !wo.DueDate.IsZero() && at.After(wo.DueDate)))
	return *wo, nil
}

// AddNote appends a free-text entry to a work order's log.
func (s *Service) AddNote(ctx context.Context, id generic.WorkOrderID, actor, note string) (generic.LogEntry, error) {
	if strings.TrimSpace(note) == "" {
		return generic.LogEntry{}, generic.Invalid("note", "required")
	}
	if _, err := s.Repo.GetWorkOrder(ctx, id); err != nil {
		return generic.LogEntry{}, err
	}
	entry := generic.LogEntry{
		ID:          s.NewID(),
		WorkOrderID: id,
		At:          s.Now(),
		Actor:       actorOrSystem(actor),
		Kind:        generic.LogNote,
		Message:     strings.TrimSpace(note),
	}
	return entry, s.Repo.AppendLog(ctx, entry)
}

// =============================================================================
// REPORTING AND SUGGESTIONS
// =============================================================================

// OnTimeKPI computes the on-time rate over all work orders in window.
func (s *Service) OnTimeKPI(ctx context.Context, window generic.Period, policy UndatedPolicy) (OnTimeReport, error) {
	if err := window.Validate(); err != nil {
		return OnTimeReport{}, err
	}
	orders, err := s.Repo.ListWorkOrders(ctx, WorkOrderFilter{Status: WorkOrderCompleted})
	if err != nil {
		return OnTimeReport{}, err
	}
	return OnTimeRate(orders, window, policy), nil
}

// SuggestPlan proposes a plan for an asset. The external suggester is
// optional; failures fall back to the template rules.
func (s *Service) SuggestPlan(ctx context.Context, assetID generic.AssetID) (PlanSuggestion, error) {
	asset, err := s.Repo.GetAsset(ctx, assetID)
	if err != nil {
		return PlanSuggestion{}, err
	}
	plans, err := s.Repo.ListPlans(ctx, assetID)
	if err != nil {
		return PlanSuggestion{}, err
	}

	var primary PlanSuggester
	if s.Suggester != nil {
		primary = loggingSuggester{next: s.Suggester, logger: s.Logger}
	}
	return SuggestPlan(ctx, primary, AssetContext{Asset: *asset, ExistingPlans: plans})
}

type loggingSuggester struct {
	next   PlanSuggester
	logger *zap.Logger
}

func (l loggingSuggester) Suggest(ctx context.Context, in AssetContext) (PlanSuggestion, error) {
	s, err := l.next.Suggest(ctx, in)
	if err != nil {
		l.logger.Warn("plan suggester failed, using rules",
			zap.String("asset_id", string(in.Asset.ID)), zap.Error(err))
	}
	return s, err
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) observeProjected(events []ProjectedEvent) {
	if s.Observer == nil {
		return
	}
	counts := make(map[Trigger]int)
	for _, e := range events {
		counts[e.Trigger]++
	}
	for trigger, n := range counts {
		s.Observer.EventsProjected(trigger, n)
	}
}

func (s *Service) projectionFailed(err error) {
	if s.Observer == nil {
		return
	}
	if errors.Is(err, generic.ErrNoFrequencyCriteria) {
		s.Observer.ProjectionFailed("no_frequency_criteria")
		return
	}
	s.Observer.ProjectionFailed("invalid_input")
}

func actorOrSystem(actor string) string {
	if actor = strings.TrimSpace(actor); actor == "" {
		return "system"
	}
	return actor
}
