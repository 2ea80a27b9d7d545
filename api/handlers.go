/*
handlers.go - HTTP API handlers for the maintenance projection engine

PURPOSE:
  Exposes the maintenance service via REST API. Handles HTTP request and
  response, JSON serialization, and delegates to maintenance.Service.

ENDPOINTS:
  Assets:
    GET    /api/assets                      List all assets
    POST   /api/assets                      Create asset
    GET    /api/assets/{id}                 Get asset
    PUT    /api/assets/{id}/usage           Record a usage reading
    GET    /api/assets/{id}/plans           List plans
    POST   /api/assets/{id}/plans           Create plan
    GET    /api/assets/{id}/events          Events with reconciliation + backlog
    POST   /api/assets/{id}/templates/{key} Apply a template
    POST   /api/assets/{id}/suggest         Suggest a plan (never saved)

  Plans:
    POST   /api/plans/{id}/generate         Project and store events

  Events:
    POST   /api/events                      Create manual event
    GET    /api/events/overdue              Overdue scheduled events
    GET    /api/events/{id}                 Event status
    DELETE /api/events/{id}                 Delete event
    POST   /api/events/{id}/execute         Create work order (regularize if overdue)
    POST   /api/events/{id}/reschedule      Move event and its work order

  Work orders:
    GET    /api/work-orders                 List (?asset_id=&status=)
    GET    /api/work-orders/{id}            Get
    GET    /api/work-orders/{id}/log        Audit log
    POST   /api/work-orders/{id}/notes      Append a note
    POST   /api/work-orders/{id}/complete   Complete

  Reporting:
    GET    /api/templates                   Registered templates
    GET    /api/kpi/on-time                 On-time rate (?from=&to= or ?period=)
    GET    /api/sweeps                      Overdue sweeper history

READ-TIME DATE:
  Reconciliation endpoints accept ?today=YYYY-MM-DD. Without it the handler
  clock is used.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, missing frequency criteria, missing justification
  - 404: Resource not found
  - 409: Event already linked to a work order
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/warp/asset-engine/factory"
	"github.com/warp/asset-engine/generic"
	"github.com/warp/asset-engine/maintenance"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the storage the API needs: the service repository, sweep history
// and a reset for scenarios.
type Store interface {
	maintenance.Repository
	maintenance.SweepLog
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *maintenance.Service
	Store   Store
	Logger  *zap.Logger

	// Clock returns the date used when a request does not pass one.
	Clock func() generic.TimePoint

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over store with a service bound to it.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service: maintenance.NewService(store, logger),
		Store:   store,
		Logger:  logger,
		Clock:   generic.Today,
	}
}

// =============================================================================
// ASSET HANDLERS
// =============================================================================

func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.Store.ListAssets(r.Context())
	if err != nil {
		h.fail(w, "Failed to list assets", err)
		return
	}
	dtos := make([]factory.AssetJSON, 0, len(assets))
	for _, a := range assets {
		dtos = append(dtos, factory.AssetToJSON(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var req factory.AssetJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	asset, err := req.ToAsset()
	if err != nil {
		h.fail(w, "Invalid asset", err)
		return
	}
	asset, err = h.Service.CreateAsset(r.Context(), asset)
	if err != nil {
		h.fail(w, "Failed to create asset", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.AssetToJSON(asset))
}

func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := h.Store.GetAsset(r.Context(), generic.AssetID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, "Asset not found", err)
		return
	}
	writeJSON(w, http.StatusOK, factory.AssetToJSON(*asset))
}

// UpdateUsage records a usage reading and a new daily rate.
func (h *Handler) UpdateUsage(w http.ResponseWriter, r *http.Request) {
	var req UpdateUsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	asset, err := h.Service.UpdateUsage(r.Context(), generic.AssetID(chi.URLParam(r, "id")), req.CurrentUsage, req.DailyUsageRate)
	if err != nil {
		h.fail(w, "Failed to update usage", err)
		return
	}
	writeJSON(w, http.StatusOK, factory.AssetToJSON(asset))
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	assetID := generic.AssetID(chi.URLParam(r, "id"))
	if _, err := h.Store.GetAsset(r.Context(), assetID); err != nil {
		h.fail(w, "Asset not found", err)
		return
	}
	plans, err := h.Store.ListPlans(r.Context(), assetID)
	if err != nil {
		h.fail(w, "Failed to list plans", err)
		return
	}
	dtos := make([]factory.PlanJSON, 0, len(plans))
	for _, p := range plans {
		dtos = append(dtos, factory.PlanToJSON(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePlan stores a plan for the asset in the URL. A body asset_id is
// ignored.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req factory.PlanJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.AssetID = chi.URLParam(r, "id")
	plan, err := req.ToPlan()
	if err != nil {
		h.fail(w, "Invalid plan", err)
		return
	}
	plan, err = h.Service.CreatePlan(r.Context(), plan)
	if err != nil {
		h.fail(w, "Failed to create plan", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.PlanToJSON(plan))
}

// GenerateEvents projects count events from the reference date.
func (h *Handler) GenerateEvents(w http.ResponseWriter, r *http.Request) {
	var req GenerateEventsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	ref, err := h.dateOrToday(req.ReferenceDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid reference_date", err)
		return
	}

	planID := generic.PlanID(chi.URLParam(r, "id"))
	events, err := h.Service.GenerateEvents(r.Context(), planID, req.Count, ref)
	if err != nil {
		h.fail(w, "Failed to generate events", err)
		return
	}
	plan, err := h.Store.GetPlan(r.Context(), planID)
	if err != nil {
		h.fail(w, "Plan not found", err)
		return
	}
	writeJSON(w, http.StatusCreated, GeneratedEventsDTO{
		Plan:   factory.PlanToJSON(*plan),
		Events: toEventDTOs(events),
	})
}

// ApplyTemplate creates a plan and its events from a registered template.
func (h *Handler) ApplyTemplate(w http.ResponseWriter, r *http.Request) {
	var req ApplyTemplateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	ref, err := h.dateOrToday(req.ReferenceDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid reference_date", err)
		return
	}

	plan, events, err := h.Service.ApplyTemplate(r.Context(),
		generic.AssetID(chi.URLParam(r, "id")), chi.URLParam(r, "key"), ref)
	if err != nil {
		h.fail(w, "Failed to apply template", err)
		return
	}
	writeJSON(w, http.StatusCreated, GeneratedEventsDTO{
		Plan:   factory.PlanToJSON(plan),
		Events: toEventDTOs(events),
	})
}

// SuggestPlan returns a proposal. Nothing is saved.
func (h *Handler) SuggestPlan(w http.ResponseWriter, r *http.Request) {
	s, err := h.Service.SuggestPlan(r.Context(), generic.AssetID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, "Failed to suggest plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toSuggestionDTO(s))
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates := maintenance.ListTemplates()
	dtos := make([]TemplateDTO, 0, len(templates))
	for _, t := range templates {
		dtos = append(dtos, toTemplateDTO(t))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// EVENT HANDLERS
// =============================================================================

// CreateEvent stores a manual event.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	due, err := generic.ParseDate(req.DueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid due_date", err)
		return
	}

	ev, err := h.Service.CreateManualEvent(r.Context(), maintenance.ProjectedEvent{
		AssetID:           generic.AssetID(req.AssetID),
		Title:             req.Title,
		DueDate:           due,
		TriggerUsageValue: req.TriggerUsageValue,
		Priority:          maintenance.Priority(req.Priority),
		Tasks:             factory.TasksFromJSON(req.Tasks),
	})
	if err != nil {
		h.fail(w, "Failed to create event", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEventDTO(ev))
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteEvent(r.Context(), generic.EventID(chi.URLParam(r, "id"))); err != nil {
		h.fail(w, "Failed to delete event", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetEventStatus reconciles one event as of ?today.
func (h *Handler) GetEventStatus(w http.ResponseWriter, r *http.Request) {
	today, ok := h.todayParam(w, r)
	if !ok {
		return
	}
	v, err := h.Service.EventStatus(r.Context(), generic.EventID(chi.URLParam(r, "id")), today)
	if err != nil {
		h.fail(w, "Event not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toEventStatusDTO(v))
}

// GetAssetSchedule lists an asset's events with their states and backlog.
func (h *Handler) GetAssetSchedule(w http.ResponseWriter, r *http.Request) {
	today, ok := h.todayParam(w, r)
	if !ok {
		return
	}
	assetID := generic.AssetID(chi.URLParam(r, "id"))
	views, backlog, err := h.Service.AssetEventStatuses(r.Context(), assetID, today)
	if err != nil {
		h.fail(w, "Failed to load events", err)
		return
	}

	dto := AssetScheduleDTO{
		AssetID: string(assetID),
		Today:   today.String(),
		Events:  make([]EventStatusDTO, 0, len(views)),
		Backlog: toBacklogDTO(backlog),
	}
	for _, v := range views {
		dto.Events = append(dto.Events, toEventStatusDTO(v))
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) ListOverdue(w http.ResponseWriter, r *http.Request) {
	today, ok := h.todayParam(w, r)
	if !ok {
		return
	}
	views, err := h.Service.Overdue(r.Context(), today)
	if err != nil {
		h.fail(w, "Failed to list overdue events", err)
		return
	}
	dtos := make([]EventStatusDTO, 0, len(views))
	for _, v := range views {
		dtos = append(dtos, toEventStatusDTO(v))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ExecuteEvent creates the work order for an event. An overdue event needs
// a reason; without one the response is 400 with the overdue days.
func (h *Handler) ExecuteEvent(w http.ResponseWriter, r *http.Request) {
	var req ExecuteEventRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	// The overdue gate always runs against the server's date.
	wo, err := h.Service.ExecuteEvent(r.Context(), maintenance.ExecuteInput{
		EventID: generic.EventID(chi.URLParam(r, "id")),
		Reason:  req.Reason,
		Actor:   req.Actor,
		Today:   h.today(),
	})
	if err != nil {
		h.fail(w, "Failed to execute event", err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkOrderDTO(wo))
}

func (h *Handler) RescheduleEvent(w http.ResponseWriter, r *http.Request) {
	var req RescheduleEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	v, err := h.Service.RescheduleEvent(r.Context(), generic.EventID(chi.URLParam(r, "id")), date, req.Actor)
	if err != nil {
		h.fail(w, "Failed to reschedule event", err)
		return
	}
	writeJSON(w, http.StatusOK, toEventStatusDTO(v))
}

// =============================================================================
// WORK ORDER HANDLERS
// =============================================================================

func (h *Handler) ListWorkOrders(w http.ResponseWriter, r *http.Request) {
	filter := maintenance.WorkOrderFilter{
		AssetID: generic.AssetID(r.URL.Query().Get("asset_id")),
		Status:  maintenance.WorkOrderStatus(r.URL.Query().Get("status")),
	}
	orders, err := h.Store.ListWorkOrders(r.Context(), filter)
	if err != nil {
		h.fail(w, "Failed to list work orders", err)
		return
	}
	dtos := make([]WorkOrderDTO, 0, len(orders))
	for _, wo := range orders {
		dtos = append(dtos, toWorkOrderDTO(wo))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetWorkOrder(w http.ResponseWriter, r *http.Request) {
	wo, err := h.Store.GetWorkOrder(r.Context(), generic.WorkOrderID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, "Work order not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkOrderDTO(*wo))
}

func (h *Handler) GetWorkOrderLog(w http.ResponseWriter, r *http.Request) {
	id := generic.WorkOrderID(chi.URLParam(r, "id"))
	if _, err := h.Store.GetWorkOrder(r.Context(), id); err != nil {
		h.fail(w, "Work order not found", err)
		return
	}
	entries, err := h.Store.ListLog(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to load log", err)
		return
	}
	dtos := make([]LogEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toLogEntryDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) AddWorkOrderNote(w http.ResponseWriter, r *http.Request) {
	var req AddNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	entry, err := h.Service.AddNote(r.Context(), generic.WorkOrderID(chi.URLParam(r, "id")), req.Actor, req.Note)
	if err != nil {
		h.fail(w, "Failed to add note", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLogEntryDTO(entry))
}

func (h *Handler) CompleteWorkOrder(w http.ResponseWriter, r *http.Request) {
	var req CompleteWorkOrderRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	at, err := h.dateOrToday(req.CompletedAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid completed_at", err)
		return
	}
	wo, err := h.Service.CompleteWorkOrder(r.Context(), generic.WorkOrderID(chi.URLParam(r, "id")), at, req.Actor, req.Note)
	if err != nil {
		h.fail(w, "Failed to complete work order", err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkOrderDTO(wo))
}

// =============================================================================
// REPORTING HANDLERS
// =============================================================================

// GetOnTimeKPI computes the on-time rate. The window is ?from=&to= (either
// may be omitted) or ?period=month|quarter|year|rolling&days=N around ?today.
// ?undated= picks the policy for orders missing a date (default exclude).
func (h *Handler) GetOnTimeKPI(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	policy, err := maintenance.ParseUndatedPolicy(q.Get("undated"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid undated policy", err)
		return
	}

	var window generic.Period
	if p := q.Get("period"); p != "" {
		pt, err := generic.ParsePeriodType(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid period", err)
			return
		}
		days, _ := strconv.Atoi(q.Get("days"))
		today, ok := h.todayParam(w, r)
		if !ok {
			return
		}
		window = generic.PeriodConfig{Type: pt, RollingDays: days}.PeriodFor(today)
	} else {
		if window.Start, err = optionalDate(q.Get("from")); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from", err)
			return
		}
		if window.End, err = optionalDate(q.Get("to")); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to", err)
			return
		}
	}

	report, err := h.Service.OnTimeKPI(r.Context(), window, policy)
	if err != nil {
		h.fail(w, "Failed to compute on-time rate", err)
		return
	}
	writeJSON(w, http.StatusOK, toOnTimeReportDTO(report))
}

// ListSweepRuns returns recent sweeper runs, newest first (?limit=, default 20).
func (h *Handler) ListSweepRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}
	runs, err := h.Store.ListSweepRuns(r.Context(), limit)
	if err != nil {
		h.fail(w, "Failed to list sweeps", err)
		return
	}
	dtos := make([]SweepRunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toSweepRunDTO(run))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// fail maps a service error to its status code.
func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error(message, zap.Error(err))
	}
	writeError(w, status, message, err)
}

func statusFor(err error) int {
	switch {
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsConflict(err):
		return http.StatusConflict
	case generic.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) today() generic.TimePoint {
	if h.Clock == nil {
		return generic.Today()
	}
	return h.Clock()
}

// dateOrToday parses s, or returns the handler's today when s is empty.
func (h *Handler) dateOrToday(s string) (generic.TimePoint, error) {
	if s == "" {
		return h.today(), nil
	}
	return generic.ParseDate(s)
}

// todayParam reads ?today. On a malformed value it writes 400 and returns false.
func (h *Handler) todayParam(w http.ResponseWriter, r *http.Request) (generic.TimePoint, bool) {
	today, err := h.dateOrToday(r.URL.Query().Get("today"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid today", err)
		return generic.TimePoint{}, false
	}
	return today, true
}

func optionalDate(s string) (generic.TimePoint, error) {
	if s == "" {
		return generic.TimePoint{}, nil
	}
	return generic.ParseDate(s)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
