/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. Access log: One structured zap line per request
  4. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/assets/*       Assets, usage, plans, schedules, templates, suggestions
  /api/plans/*        Event generation
  /api/events/*       Manual events, status, execution, rescheduling
  /api/work-orders/*  Work orders and their log
  /api/templates      Template registry
  /api/kpi/*          On-time rate
  /api/sweeps         Overdue sweeper history
  /api/scenarios/*    Demo scenarios
  /metrics            Prometheus

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterOptions configures NewRouter. Zero values are usable.
type RouterOptions struct {
	CORSOrigins []string
	// Gatherer backs /metrics. Nil serves the default registry.
	Gatherer prometheus.Gatherer
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(h.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/assets", func(r chi.Router) {
			r.Get("/", h.ListAssets)
			r.Post("/", h.CreateAsset)
			r.Get("/{id}", h.GetAsset)
			r.Put("/{id}/usage", h.UpdateUsage)
			r.Get("/{id}/plans", h.ListPlans)
			r.Post("/{id}/plans", h.CreatePlan)
			r.Get("/{id}/events", h.GetAssetSchedule)
			r.Post("/{id}/templates/{key}", h.ApplyTemplate)
			r.Post("/{id}/suggest", h.SuggestPlan)
		})

		r.Route("/plans", func(r chi.Router) {
			r.Post("/{id}/generate", h.GenerateEvents)
		})

		r.Route("/events", func(r chi.Router) {
			r.Post("/", h.CreateEvent)
			r.Get("/overdue", h.ListOverdue)
			r.Get("/{id}", h.GetEventStatus)
			r.Delete("/{id}", h.DeleteEvent)
			r.Post("/{id}/execute", h.ExecuteEvent)
			r.Post("/{id}/reschedule", h.RescheduleEvent)
		})

		r.Route("/work-orders", func(r chi.Router) {
			r.Get("/", h.ListWorkOrders)
			r.Get("/{id}", h.GetWorkOrder)
			r.Get("/{id}/log", h.GetWorkOrderLog)
			r.Post("/{id}/notes", h.AddWorkOrderNote)
			r.Post("/{id}/complete", h.CompleteWorkOrder)
		})

		r.Get("/templates", h.ListTemplates)
		r.Get("/kpi/on-time", h.GetOnTimeKPI)
		r.Get("/sweeps", h.ListSweepRuns)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}

// accessLog writes one line per request.
func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
