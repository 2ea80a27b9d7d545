package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/asset-engine/generic"
	"github.com/warp/asset-engine/maintenance"
	"github.com/warp/asset-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func day(s string) generic.TimePoint {
	tp, err := generic.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return tp
}

// seed stores van-01, one plan and two projected events.
func seed(t *testing.T, s *sqlite.Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.SaveAsset(ctx, maintenance.Asset{
		ID:             "van-01",
		Name:           "Delivery van",
		Category:       maintenance.CategoryVehicle,
		UsageUnit:      generic.UnitKilometers,
		CurrentUsage:   decimal.NewFromInt(45000),
		DailyUsageRate: decimal.RequireFromString("150.5"),
		Active:         true,
	}))
	require.NoError(t, s.SavePlan(ctx, maintenance.Plan{
		ID:      "plan-1",
		AssetID: "van-01",
		Name:    "Service",
		Frequency: maintenance.FrequencyConfig{
			UsageInterval: decimal.NewFromInt(10000),
			UsageUnit:     generic.UnitKilometers,
			TimeInterval:  6,
			TimeUnit:      maintenance.TimeMonth,
		},
		Tasks:  []maintenance.Task{{Description: "Oil change", DurationDays: 1, IsCritical: true}},
		Active: true,
	}))
	require.NoError(t, s.SaveEvents(ctx, []maintenance.ProjectedEvent{
		event("ev-2", "2024-05-14", 65000),
		event("ev-1", "2024-03-08", 55000),
	}))
}

func event(id, due string, at int64) maintenance.ProjectedEvent {
	return maintenance.ProjectedEvent{
		ID:                generic.EventID(id),
		AssetID:           "van-01",
		PlanID:            "plan-1",
		Title:             "Maintenance",
		DueDate:           day(due),
		TriggerUsageValue: decimal.NewFromInt(at),
		Trigger:           maintenance.TriggerUsage,
		Status:            maintenance.StatusScheduled,
		Priority:          maintenance.PriorityMedium,
		Tasks: []maintenance.Task{
			{Description: "Oil change", DurationDays: 1, IsCritical: true},
			{Description: "Brake check", DurationDays: 1},
		},
	}
}

func workOrderFor(id, eventID string) (maintenance.WorkOrder, generic.LogEntry) {
	wo := maintenance.WorkOrder{
		ID:             generic.WorkOrderID(id),
		AssetID:        "van-01",
		EventID:        generic.EventID(eventID),
		PlanID:         "plan-1",
		Title:          "Maintenance",
		Priority:       maintenance.PriorityMedium,
		Status:         maintenance.WorkOrderOpen,
		ScheduledStart: day("2024-03-08"),
		DueDate:        day("2024-03-08"),
		CreatedAt:      time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	first := generic.LogEntry{
		ID:          id + "-log-1",
		WorkOrderID: wo.ID,
		At:          wo.CreatedAt,
		Actor:       "system",
		Kind:        generic.LogCreated,
		Message:     "Created",
	}
	return wo, first
}

// =============================================================================
// ASSETS AND PLANS
// =============================================================================

func TestAssetRoundTrip(t *testing.T) {
	s := newStore(t)
	seed(t, s)
	ctx := context.Background()

	a, err := s.GetAsset(ctx, "van-01")
	require.NoError(t, err)
	assert.Equal(t, "Delivery van", a.Name)
	assert.True(t, a.DailyUsageRate.Equal(decimal.RequireFromString("150.5")), "decimals survive as text")
	assert.True(t, a.Active)

	_, err = s.GetAsset(ctx, "ghost")
	assert.ErrorIs(t, err, generic.ErrAssetNotFound)
}

func TestPlanRoundTrip(t *testing.T) {
	s := newStore(t)
	seed(t, s)
	ctx := context.Background()

	p, err := s.GetPlan(ctx, "plan-1")
	require.NoError(t, err)
	assert.True(t, p.Frequency.UsageInterval.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, 6, p.Frequency.TimeInterval)
	assert.Equal(t, maintenance.TimeMonth, p.Frequency.TimeUnit)
	require.Len(t, p.Tasks, 1)
	assert.True(t, p.Tasks[0].IsCritical)

	plans, err := s.ListPlans(ctx, "van-01")
	require.NoError(t, err)
	assert.Len(t, plans, 1)

	_, err = s.GetPlan(ctx, "ghost")
	assert.ErrorIs(t, err, generic.ErrPlanNotFound)
}

// =============================================================================
// EVENTS
// =============================================================================

func TestListEvents_OrderedByDueDate(t *testing.T) {
	s := newStore(t)
	seed(t, s)

	events, err := s.ListEvents(context.Background(), maintenance.EventFilter{AssetID: "van-01"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, generic.EventID("ev-1"), events[0].ID)
	assert.Equal(t, generic.EventID("ev-2"), events[1].ID)
	assert.Len(t, events[0].Tasks, 2)
	assert.True(t, events[1].TriggerUsageValue.Equal(decimal.NewFromInt(65000)))
}

func TestSaveEvents_UpsertKeepsStatusAndLink(t *testing.T) {
	// GIVEN: ev-1 executed into a work order
	s := newStore(t)
	seed(t, s)
	ctx := context.Background()
	wo, first := workOrderFor("wo-1", "ev-1")
	require.NoError(t, s.CreateWorkOrder(ctx, wo, first))

	// WHEN: the plan is regenerated with a new date, status and fewer tasks
	again := event("ev-1", "2024-03-10", 55000)
	again.Status = maintenance.StatusScheduled
	again.Tasks = again.Tasks[:1]
	require.NoError(t, s.SaveEvents(ctx, []maintenance.ProjectedEvent{again}))

	// THEN: the projection fields are replaced, the link is not
	got, err := s.GetEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10", got.DueDate.String())
	assert.Len(t, got.Tasks, 1)
	assert.Equal(t, generic.WorkOrderID("wo-1"), got.LinkedWorkOrderID)
}

func TestSaveEvents_RejectsMissingID(t *testing.T) {
	s := newStore(t)
	seed(t, s)

	err := s.SaveEvents(context.Background(), []maintenance.ProjectedEvent{event("", "2024-01-01", 0)})
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}

func TestDeleteEvent(t *testing.T) {
	s := newStore(t)
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.DeleteEvent(ctx, "ev-2"))
	_, err := s.GetEvent(ctx, "ev-2")
	assert.ErrorIs(t, err, generic.ErrEventNotFound)

	assert.ErrorIs(t, s.DeleteEvent(ctx, "ev-2"), generic.ErrEventNotFound)
}

// =============================================================================
// WORK ORDERS
// =============================================================================

func TestCreateWorkOrder_AtMostOnePerEvent(t *testing.T) {
	// GIVEN: ev-1 already has a work order
	s := newStore(t)
	seed(t, s)
	ctx := context.Background()
	wo, first := workOrderFor("wo-1", "ev-1")
	require.NoError(t, s.CreateWorkOrder(ctx, wo, first))

	// WHEN: a second order is created for the same event
	dup, dupLog := workOrderFor("wo-2", "ev-1")
	err := s.CreateWorkOrder(ctx, dup, dupLog)

	// THEN: it is refused and nothing of it remains
	require.ErrorIs(t, err, generic.ErrEventAlreadyLinked)
	_, err = s.GetWorkOrder(ctx, "wo-2")
	assert.ErrorIs(t, err, generic.ErrWorkOrderNotFound)

	ev, err := s.GetEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, generic.WorkOrderID("wo-1"), ev.LinkedWorkOrderID)
}

func TestCreateWorkOrder_UnknownEvent(t *testing.T) {
	s := newStore(t)
	seed(t, s)

	wo, first := workOrderFor("wo-1", "ghost")
	assert.ErrorIs(t, s.CreateWorkOrder(context.Background(), wo, first), generic.ErrEventNotFound)
}

func TestCompleteWorkOrder_MarksEventCompleted(t *testing.T) {
	// GIVEN: an open work order for ev-1
	s := newStore(t)
	seed(t, s)
	ctx := context.Background()
	wo, first := workOrderFor("wo-1", "ev-1")
	require.NoError(t, s.CreateWorkOrder(ctx, wo, first))

	// WHEN: completing it
	entry := generic.LogEntry{ID: "log-2", WorkOrderID: "wo-1", At: time.Now(), Actor: "tech", Kind: generic.LogCompleted, Message: "done"}
	require.NoError(t, s.CompleteWorkOrder(ctx, "wo-1", day("2024-03-07"), entry))

	// THEN: both the order and the event are closed
	got, err := s.GetWorkOrder(ctx, "wo-1")
	require.NoError(t, err)
	assert.Equal(t, maintenance.WorkOrderCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, "2024-03-07", got.CompletedAt.String())

	ev, err := s.GetEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, maintenance.StatusCompleted, ev.Status)

	// AND: a second completion is refused
	entry.ID = "log-3"
	assert.ErrorIs(t, s.CompleteWorkOrder(ctx, "wo-1", day("2024-03-08"), entry), generic.ErrInvalidInput)
}

func TestRescheduleLinked_OnlyDatesChange(t *testing.T) {
	// GIVEN: ev-1 linked to wo-1
	s := newStore(t)
	seed(t, s)
	ctx := context.Background()
	wo, first := workOrderFor("wo-1", "ev-1")
	require.NoError(t, s.CreateWorkOrder(ctx, wo, first))

	// WHEN: rescheduling with records whose other fields were tampered with
	ev := event("ev-1", "2024-04-02", 55000)
	ev.Title = "Changed"
	moved := wo
	moved.ScheduledStart = day("2024-04-02")
	moved.DueDate = day("2024-04-02")
	moved.Priority = maintenance.PriorityCritical
	entry := generic.LogEntry{ID: "log-2", WorkOrderID: "wo-1", At: time.Now(), Actor: "planner", Kind: generic.LogRescheduled, Message: "moved"}
	require.NoError(t, s.RescheduleLinked(ctx, ev, moved, entry))

	// THEN: only the dates were written
	gotEv, err := s.GetEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, "2024-04-02", gotEv.DueDate.String())
	assert.Equal(t, "Maintenance", gotEv.Title)

	gotWO, err := s.GetWorkOrder(ctx, "wo-1")
	require.NoError(t, err)
	assert.Equal(t, "2024-04-02", gotWO.ScheduledStart.String())
	assert.Equal(t, "2024-04-02", gotWO.DueDate.String())
	assert.Equal(t, maintenance.PriorityMedium, gotWO.Priority)
}

func TestListWorkOrders_Filter(t *testing.T) {
	s := newStore(t)
	seed(t, s)
	ctx := context.Background()

	wo1, log1 := workOrderFor("wo-1", "ev-1")
	wo2, log2 := workOrderFor("wo-2", "ev-2")
	wo2.CreatedAt = wo2.CreatedAt.Add(time.Hour)
	require.NoError(t, s.CreateWorkOrder(ctx, wo1, log1))
	require.NoError(t, s.CreateWorkOrder(ctx, wo2, log2))
	require.NoError(t, s.CompleteWorkOrder(ctx, "wo-1", day("2024-03-08"),
		generic.LogEntry{ID: "c-1", WorkOrderID: "wo-1", At: time.Now(), Actor: "tech", Kind: generic.LogCompleted}))

	all, err := s.ListWorkOrders(ctx, maintenance.WorkOrderFilter{AssetID: "van-01"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	open, err := s.ListWorkOrders(ctx, maintenance.WorkOrderFilter{Status: maintenance.WorkOrderOpen})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, generic.WorkOrderID("wo-2"), open[0].ID)
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func TestAuditLog_InsertionOrder(t *testing.T) {
	s := newStore(t)
	seed(t, s)
	ctx := context.Background()
	wo, first := workOrderFor("wo-1", "ev-1")
	require.NoError(t, s.CreateWorkOrder(ctx, wo, first))

	at := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	for _, id := range []string{"n-1", "n-2"} {
		require.NoError(t, s.AppendLog(ctx, generic.LogEntry{
			ID: id, WorkOrderID: "wo-1", At: at, Actor: "tech", Kind: generic.LogNote, Message: id,
		}))
	}

	entries, err := s.ListLog(ctx, "wo-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, generic.LogCreated, entries[0].Kind)
	assert.Equal(t, "n-1", entries[1].Message)
	assert.Equal(t, "n-2", entries[2].Message)

	err = s.AppendLog(ctx, generic.LogEntry{ID: "n-3", WorkOrderID: "ghost", At: at, Kind: generic.LogNote})
	assert.ErrorIs(t, err, generic.ErrWorkOrderNotFound)
}

// =============================================================================
// SWEEP RUNS AND RESET
// =============================================================================

func TestSweepRuns_NewestFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-1", "run-2", "run-3"} {
		require.NoError(t, s.SaveSweepRun(ctx, maintenance.SweepRun{
			ID:          id,
			AsOf:        generic.DateOf(base.AddDate(0, 0, i)),
			Status:      "completed",
			Overdue:     i,
			StartedAt:   base.Add(time.Duration(i) * time.Hour),
			CompletedAt: base.Add(time.Duration(i)*time.Hour + time.Second),
		}))
	}

	runs, err := s.ListSweepRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-3", runs[0].ID)
	assert.Equal(t, "run-2", runs[1].ID)
	assert.Equal(t, 2, runs[0].Overdue)
	assert.Equal(t, "2024-03-03", runs[0].AsOf.String())

	all, err := s.ListSweepRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestReset(t *testing.T) {
	s := newStore(t)
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.Reset(ctx))

	assets, err := s.ListAssets(ctx)
	require.NoError(t, err)
	assert.Empty(t, assets)
	events, err := s.ListEvents(ctx, maintenance.EventFilter{})
	require.NoError(t, err)
	assert.Empty(t, events)
}
