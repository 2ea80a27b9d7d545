/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	fleets. Dates are relative to the handler clock so a freshly loaded
	scenario always shows the same mix of upcoming, due and overdue work.

AVAILABLE SCENARIOS:

	light-fleet:  Two vans on km; one follows a plan that is already overdue
	mixed-site:   Excavator on hours, server rack on calendar, bridge on
	              infrastructure template, one completed work order

HOW SCENARIOS WORK:
 1. Reset store (clear all data)
 2. Create assets via factory JSON
 3. Create plans or apply templates
 4. Generate events from a reference date in the past or today
 5. Optionally execute and complete some events

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "light-fleet"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Endpoints used to inspect the loaded data
  - factory/plan.go: Asset and plan JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/asset-engine/factory"
	"github.com/warp/asset-engine/generic"
	"github.com/warp/asset-engine/maintenance"
	"go.uber.org/zap"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "light-fleet",
		Name:        "Light Fleet",
		Description: "Two vans on mileage plans, one with an overdue service",
	},
	{
		ID:          "mixed-site",
		Name:        "Mixed Site",
		Description: "Hours, calendar and infrastructure plans side by side",
	},
}

// ListScenarios returns all available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario ID.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, map[string]any{"scenario": nil})
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, map[string]any{"scenario": s})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenario": map[string]string{"id": current}})
}

// LoadScenario resets the store and loads a demo scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "light-fleet":
		load = h.loadLightFleetScenario
	case "mixed-site":
		load = h.loadMixedSiteScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		h.fail(w, "Failed to reset store", err)
		return
	}
	h.currentScenario = ""

	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID
	h.Logger.Info("scenario loaded", zap.String("scenario", req.ScenarioID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadLightFleetScenario(ctx context.Context) error {
	today := h.today()

	// van-01 started its plan 90 days ago at 45000 km and drives 150 km/day:
	// the 55000 km service fell due 23 days ago.
	if err := h.createAssetFromJSON(ctx, `{
		"id": "van-01",
		"name": "Delivery van 01",
		"category": "vehicle",
		"usage_unit": "km",
		"current_usage": "58500",
		"daily_usage_rate": "150",
		"location": "North depot"
	}`); err != nil {
		return err
	}
	plan, err := h.createPlanFromJSON(ctx, "van-01", `{
		"id": "plan-van-01",
		"name": "Van service",
		"frequency": {"usage_interval": "10000", "usage_unit": "km", "time_interval": 6, "time_unit": "month"},
		"start_offset": "45000",
		"tasks": [
			{"description": "Oil and filter change", "duration_days": 1, "is_critical": true},
			{"description": "Brake inspection", "duration_days": 1}
		]
	}`)
	if err != nil {
		return err
	}
	if _, err := h.Service.GenerateEvents(ctx, plan.ID, 4, today.AddDays(-90)); err != nil {
		return fmt.Errorf("generate van-01 events: %w", err)
	}

	if err := h.createAssetFromJSON(ctx, `{
		"id": "van-02",
		"name": "Delivery van 02",
		"category": "vehicle",
		"usage_unit": "km",
		"current_usage": "12000",
		"daily_usage_rate": "90",
		"location": "South depot"
	}`); err != nil {
		return err
	}
	if _, _, err := h.Service.ApplyTemplate(ctx, "van-02", "light-vehicle", today); err != nil {
		return fmt.Errorf("apply template to van-02: %w", err)
	}
	return nil
}

func (h *Handler) loadMixedSiteScenario(ctx context.Context) error {
	today := h.today()

	if err := h.createAssetFromJSON(ctx, `{
		"id": "exc-01",
		"name": "Excavator 01",
		"category": "machinery",
		"usage_unit": "hours",
		"current_usage": "3200",
		"daily_usage_rate": "6",
		"location": "Quarry"
	}`); err != nil {
		return err
	}
	if _, _, err := h.Service.ApplyTemplate(ctx, "exc-01", "heavy-machinery", today.AddDays(-30)); err != nil {
		return fmt.Errorf("apply template to exc-01: %w", err)
	}

	if err := h.createAssetFromJSON(ctx, `{
		"id": "rack-01",
		"name": "Server rack A",
		"category": "it_equipment",
		"location": "Site office"
	}`); err != nil {
		return err
	}
	rackPlan, err := h.createPlanFromJSON(ctx, "rack-01", `{
		"id": "plan-rack-01",
		"name": "Rack inspection",
		"frequency": {"time_interval": 3, "time_unit": "month"},
		"tasks": [
			{"description": "Dust filters", "duration_days": 1},
			{"description": "UPS battery test", "duration_days": 1, "is_critical": true}
		]
	}`)
	if err != nil {
		return err
	}
	events, err := h.Service.GenerateEvents(ctx, rackPlan.ID, 4, today.AddMonths(-4))
	if err != nil {
		return fmt.Errorf("generate rack-01 events: %w", err)
	}

	// The first inspection was done on its due date.
	first := events[0]
	wo, err := h.Service.ExecuteEvent(ctx, maintenance.ExecuteInput{
		EventID: first.ID,
		Actor:   "site-tech",
		Today:   first.DueDate.AddDays(-2),
	})
	if err != nil {
		return fmt.Errorf("execute rack-01 inspection: %w", err)
	}
	if _, err := h.Service.CompleteWorkOrder(ctx, wo.ID, first.DueDate, "site-tech", "filters replaced"); err != nil {
		return fmt.Errorf("complete rack-01 inspection: %w", err)
	}

	if err := h.createAssetFromJSON(ctx, `{
		"id": "bridge-01",
		"name": "Access bridge",
		"category": "infrastructure",
		"location": "Site entrance"
	}`); err != nil {
		return err
	}
	if _, _, err := h.Service.ApplyTemplate(ctx, "bridge-01", "infrastructure", today); err != nil {
		return fmt.Errorf("apply template to bridge-01: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) createAssetFromJSON(ctx context.Context, jsonStr string) error {
	asset, err := factory.ParseAsset([]byte(jsonStr))
	if err != nil {
		return fmt.Errorf("parse asset: %w", err)
	}
	if _, err := h.Service.CreateAsset(ctx, asset); err != nil {
		return fmt.Errorf("create asset %s: %w", asset.ID, err)
	}
	return nil
}

func (h *Handler) createPlanFromJSON(ctx context.Context, assetID generic.AssetID, jsonStr string) (maintenance.Plan, error) {
	plan, err := factory.ParsePlan([]byte(jsonStr))
	if err != nil {
		return maintenance.Plan{}, fmt.Errorf("parse plan: %w", err)
	}
	plan.AssetID = assetID
	created, err := h.Service.CreatePlan(ctx, plan)
	if err != nil {
		return maintenance.Plan{}, fmt.Errorf("create plan %s: %w", plan.ID, err)
	}
	return created, nil
}
