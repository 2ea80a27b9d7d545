package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/warp/asset-engine/maintenance"
)

// Metrics records domain counters. It implements maintenance.Observer.
type Metrics struct {
	eventsProjected    *prometheus.CounterVec
	workOrdersCreated  *prometheus.CounterVec
	projectionFailures *prometheus.CounterVec
	overdueEvents      prometheus.Gauge
}

var _ maintenance.Observer = (*Metrics)(nil)

// MustNewMetrics registers the collectors on reg. It panics on duplicate
// registration, so call it once per registry.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		eventsProjected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "asset_engine",
			Name:      "events_projected_total",
			Help:      "Events produced by projection and templates, by trigger",
		}, []string{"trigger"}),
		workOrdersCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "asset_engine",
			Name:      "work_orders_created_total",
			Help:      "Work orders created from events, regular or regularization",
		}, []string{"kind"}),
		projectionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "asset_engine",
			Name:      "projection_failures_total",
			Help:      "Projections refused, by reason",
		}, []string{"reason"}),
		overdueEvents: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "asset_engine",
			Name:      "overdue_events",
			Help:      "Scheduled events overdue at the last sweep",
		}),
	}
}

func (m *Metrics) EventsProjected(trigger maintenance.Trigger, n int) {
	if m == nil {
		return
	}
	m.eventsProjected.WithLabelValues(string(trigger)).Add(float64(n))
}

func (m *Metrics) ProjectionFailed(reason string) {
	if m == nil {
		return
	}
	m.projectionFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) WorkOrderCreated(regularization bool) {
	if m == nil {
		return
	}
	kind := "regular"
	if regularization {
		kind = "regularization"
	}
	m.workOrdersCreated.WithLabelValues(kind).Inc()
}

// SetOverdue publishes the overdue count from the latest sweep.
func (m *Metrics) SetOverdue(n int) {
	if m == nil {
		return
	}
	m.overdueEvents.Set(float64(n))
}
