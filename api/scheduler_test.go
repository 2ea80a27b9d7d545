package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/asset-engine/maintenance"
	"github.com/warp/asset-engine/store/memory"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

// memoryHandler avoids database/sql so goleak sees no pool goroutines.
func memoryHandler(t *testing.T) *Handler {
	t.Helper()
	h := NewHandler(memory.New(), zaptest.NewLogger(t))
	setClock(h, "2024-06-01")
	return h
}

func TestOverdueSweeper_RunNow(t *testing.T) {
	// GIVEN: the light fleet with one overdue van
	h := memoryHandler(t)
	require.NoError(t, h.loadLightFleetScenario(context.Background()))
	reg := prometheus.NewRegistry()
	metrics := MustNewMetrics(reg)

	sweeper := NewOverdueSweeper(h.Service, h.Store, metrics, zaptest.NewLogger(t))
	sweeper.Clock = h.Clock

	// WHEN: sweeping once
	run := sweeper.RunNow(context.Background())

	// THEN: the run is recorded and the gauge set
	assert.Equal(t, "completed", run.Status)
	assert.Equal(t, 1, run.Overdue)
	assert.Equal(t, 23, run.MaxDaysOverdue)
	assert.Equal(t, "2024-06-01", run.AsOf.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.overdueEvents))

	runs, err := h.Store.ListSweepRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	// AND: the sweep only reads
	orders, err := h.Store.ListWorkOrders(context.Background(), maintenance.WorkOrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestOverdueSweeper_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	// GIVEN: a sweeper on a short interval
	h := memoryHandler(t)
	sweeper := NewOverdueSweeper(h.Service, h.Store, nil, zaptest.NewLogger(t))
	sweeper.Clock = h.Clock
	sweeper.Interval = 10 * time.Millisecond

	// WHEN: started twice and left running
	sweeper.Start()
	sweeper.Start()
	require.Eventually(t, func() bool {
		runs, _ := h.Store.ListSweepRuns(context.Background(), 0)
		return len(runs) >= 2
	}, time.Second, 5*time.Millisecond)

	// THEN: Stop waits for the goroutine, and a second Stop is harmless
	sweeper.Stop()
	sweeper.Stop()
}

func TestListSweepRuns_Endpoint(t *testing.T) {
	h := memoryHandler(t)
	router := newTestRouter(t, h)
	sweeper := NewOverdueSweeper(h.Service, h.Store, nil, nil)
	sweeper.Clock = h.Clock
	for i := 0; i < 3; i++ {
		sweeper.RunNow(context.Background())
	}

	rec := do(t, router, http.MethodGet, "/api/sweeps?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[[]SweepRunDTO](t, rec)
	assert.Len(t, runs, 2)
	assert.Equal(t, "2024-06-01", runs[0].AsOf)

	rec = do(t, router, http.MethodGet, "/api/sweeps?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetrics_ObserveService(t *testing.T) {
	// GIVEN: a handler whose service reports to a fresh registry
	h := memoryHandler(t)
	reg := prometheus.NewRegistry()
	metrics := MustNewMetrics(reg)
	h.Service.Observer = metrics
	router := NewRouter(h, RouterOptions{Gatherer: reg})

	// WHEN: generating events, refusing a projection and executing late
	out := seedVan(t, router)
	rec := do(t, router, http.MethodPost, "/api/plans/plan-van-01/generate", map[string]any{"count": -1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, router, http.MethodPost, "/api/events/"+out.Events[0].ID+"/execute",
		ExecuteEventRequest{Reason: "late"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// THEN: the counters moved
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.eventsProjected.WithLabelValues("usage")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.workOrdersCreated.WithLabelValues("regularization")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.projectionFailures))

	// AND: /metrics exposes them
	rec = do(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "asset_engine_events_projected_total")
	assert.Contains(t, rec.Body.String(), "asset_engine_work_orders_created_total")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.EventsProjected("usage", 3)
		m.ProjectionFailed("invalid_input")
		m.WorkOrderCreated(true)
		m.SetOverdue(2)
	})
}
