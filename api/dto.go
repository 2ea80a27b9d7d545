/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the maintenance model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Assets and plans:
    factory.AssetJSON, factory.PlanJSON (shared with fixtures)
    UpdateUsageRequest, GenerateEventsRequest, ApplyTemplateRequest

  Events:
    EventDTO, ReconciliationDTO, EventStatusDTO, AssetScheduleDTO,
    CreateEventRequest, ExecuteEventRequest, RescheduleEventRequest

  Work orders:
    WorkOrderDTO, LogEntryDTO, CompleteWorkOrderRequest, AddNoteRequest

  Reporting:
    OnTimeReportDTO, BacklogDTO, SuggestionDTO, TemplateDTO, SweepRunDTO

VALIDATION:
  Validation is done in handlers and the service, not in DTOs.
  Dates are YYYY-MM-DD strings; usage figures are decimal strings.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/plan.go: AssetJSON, PlanJSON, TaskJSON
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/asset-engine/factory"
	"github.com/warp/asset-engine/generic"
	"github.com/warp/asset-engine/maintenance"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

type UpdateUsageRequest struct {
	CurrentUsage   decimal.Decimal `json:"current_usage"`
	DailyUsageRate decimal.Decimal `json:"daily_usage_rate"`
}

type GenerateEventsRequest struct {
	Count         int    `json:"count"`
	ReferenceDate string `json:"reference_date"` // defaults to today
}

type ApplyTemplateRequest struct {
	ReferenceDate string `json:"reference_date"` // defaults to today
}

// CreateEventRequest is a user-authored event.
type CreateEventRequest struct {
	AssetID           string             `json:"asset_id"`
	Title             string             `json:"title"`
	DueDate           string             `json:"due_date"`
	TriggerUsageValue decimal.Decimal    `json:"trigger_usage_value"`
	Priority          string             `json:"priority,omitempty"`
	Tasks             []factory.TaskJSON `json:"tasks,omitempty"`
}

// ExecuteEventRequest turns an event into a work order. Reason is required
// when the event is overdue as of the server's date.
type ExecuteEventRequest struct {
	Reason string `json:"reason,omitempty"`
	Actor  string `json:"actor,omitempty"`
}

type RescheduleEventRequest struct {
	Date  string `json:"date"`
	Actor string `json:"actor,omitempty"`
}

type CompleteWorkOrderRequest struct {
	CompletedAt string `json:"completed_at,omitempty"` // defaults to today
	Actor       string `json:"actor,omitempty"`
	Note        string `json:"note,omitempty"`
}

type AddNoteRequest struct {
	Actor string `json:"actor,omitempty"`
	Note  string `json:"note"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type EventDTO struct {
	ID                string             `json:"id"`
	AssetID           string             `json:"asset_id"`
	PlanID            string             `json:"plan_id,omitempty"`
	Title             string             `json:"title"`
	DueDate           string             `json:"due_date"`
	TriggerUsageValue decimal.Decimal    `json:"trigger_usage_value"`
	Trigger           string             `json:"trigger"`
	Status            string             `json:"status"`
	Priority          string             `json:"priority"`
	Tasks             []factory.TaskJSON `json:"tasks"`
	LinkedWorkOrderID string             `json:"linked_work_order_id,omitempty"`
}

// ReconciliationDTO is computed at read time, never stored.
type ReconciliationDTO struct {
	State             string `json:"state"`
	IsOverdue         bool   `json:"is_overdue"`
	DaysOverdue       int    `json:"days_overdue"`
	EscalatedPriority string `json:"escalated_priority"`
	CanReschedule     bool   `json:"can_reschedule"`
}

type EventStatusDTO struct {
	Event          EventDTO          `json:"event"`
	WorkOrder      *WorkOrderDTO     `json:"work_order,omitempty"`
	Reconciliation ReconciliationDTO `json:"reconciliation"`
}

type BacklogDTO struct {
	Scheduled      int `json:"scheduled"`
	Due            int `json:"due"`
	Overdue        int `json:"overdue"`
	Completed      int `json:"completed"`
	MaxDaysOverdue int `json:"max_days_overdue"`
}

// AssetScheduleDTO is an asset's events with their states as of Today.
type AssetScheduleDTO struct {
	AssetID string           `json:"asset_id"`
	Today   string           `json:"today"`
	Events  []EventStatusDTO `json:"events"`
	Backlog BacklogDTO       `json:"backlog"`
}

type GeneratedEventsDTO struct {
	Plan   factory.PlanJSON `json:"plan"`
	Events []EventDTO       `json:"events"`
}

type WorkOrderDTO struct {
	ID             string             `json:"id"`
	AssetID        string             `json:"asset_id"`
	EventID        string             `json:"event_id,omitempty"`
	PlanID         string             `json:"plan_id,omitempty"`
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	Priority       string             `json:"priority"`
	Status         string             `json:"status"`
	ScheduledStart string             `json:"scheduled_start,omitempty"`
	DueDate        string             `json:"due_date,omitempty"`
	CompletedAt    string             `json:"completed_at,omitempty"`
	Regularization bool               `json:"regularization"`
	DaysOverdue    int                `json:"days_overdue,omitempty"`
	Tasks          []factory.TaskJSON `json:"tasks"`
	CreatedAt      string             `json:"created_at"`
}

type LogEntryDTO struct {
	ID          string `json:"id"`
	WorkOrderID string `json:"work_order_id"`
	At          string `json:"at"`
	Actor       string `json:"actor"`
	Kind        string `json:"kind"`
	Message     string `json:"message"`
}

type OnTimeReportDTO struct {
	From      string  `json:"from,omitempty"`
	To        string  `json:"to,omitempty"`
	Policy    string  `json:"undated_policy"`
	Completed int     `json:"completed"`
	OnTime    int     `json:"on_time"`
	Late      int     `json:"late"`
	Undated   int     `json:"undated"`
	Excluded  int     `json:"excluded"`
	Rate      float64 `json:"rate"`
}

type SuggestionDTO struct {
	Name        string                `json:"name"`
	TemplateKey string                `json:"template_key,omitempty"`
	Frequency   factory.FrequencyJSON `json:"frequency"`
	Tasks       []factory.TaskJSON    `json:"tasks"`
	Rationale   string                `json:"rationale"`
	Source      string                `json:"source"`
}

type TemplateEntryDTO struct {
	Offset           decimal.Decimal `json:"offset"`
	TimeOffsetMonths int             `json:"time_offset_months,omitempty"`
	Tasks            []string        `json:"tasks"`
}

type TemplateDTO struct {
	Key          string             `json:"key"`
	Name         string             `json:"name"`
	Description  string             `json:"description"`
	Category     string             `json:"category,omitempty"`
	UsageUnit    string             `json:"usage_unit,omitempty"`
	BaseInterval decimal.Decimal    `json:"base_interval"`
	BaseMonths   int                `json:"base_months"`
	Entries      []TemplateEntryDTO `json:"entries"`
}

type SweepRunDTO struct {
	ID             string `json:"id"`
	AsOf           string `json:"as_of"`
	Status         string `json:"status"`
	Overdue        int    `json:"overdue"`
	MaxDaysOverdue int    `json:"max_days_overdue"`
	Error          string `json:"error,omitempty"`
	StartedAt      string `json:"started_at"`
	CompletedAt    string `json:"completed_at,omitempty"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toEventDTO(e maintenance.ProjectedEvent) EventDTO {
	return EventDTO{
		ID:                string(e.ID),
		AssetID:           string(e.AssetID),
		PlanID:            string(e.PlanID),
		Title:             e.Title,
		DueDate:           e.DueDate.String(),
		TriggerUsageValue: e.TriggerUsageValue,
		Trigger:           string(e.Trigger),
		Status:            string(e.Status),
		Priority:          string(e.Priority),
		Tasks:             factory.TasksToJSON(e.Tasks),
		LinkedWorkOrderID: string(e.LinkedWorkOrderID),
	}
}

func toEventDTOs(events []maintenance.ProjectedEvent) []EventDTO {
	out := make([]EventDTO, 0, len(events))
	for _, e := range events {
		out = append(out, toEventDTO(e))
	}
	return out
}

func toReconciliationDTO(r maintenance.ReconciliationResult) ReconciliationDTO {
	return ReconciliationDTO{
		State:             string(r.State),
		IsOverdue:         r.IsOverdue,
		DaysOverdue:       r.DaysOverdue,
		EscalatedPriority: string(r.EscalatedPriority),
		CanReschedule:     r.CanReschedule,
	}
}

func toEventStatusDTO(v maintenance.EventView) EventStatusDTO {
	dto := EventStatusDTO{
		Event:          toEventDTO(v.Event),
		Reconciliation: toReconciliationDTO(v.Reconciliation),
	}
	if v.WorkOrder != nil {
		wo := toWorkOrderDTO(*v.WorkOrder)
		dto.WorkOrder = &wo
	}
	return dto
}

func toBacklogDTO(b maintenance.Backlog) BacklogDTO {
	return BacklogDTO{
		Scheduled:      b.Scheduled,
		Due:            b.Due,
		Overdue:        b.Overdue,
		Completed:      b.Completed,
		MaxDaysOverdue: b.MaxDaysOverdue,
	}
}

func toWorkOrderDTO(wo maintenance.WorkOrder) WorkOrderDTO {
	dto := WorkOrderDTO{
		ID:             string(wo.ID),
		AssetID:        string(wo.AssetID),
		EventID:        string(wo.EventID),
		PlanID:         string(wo.PlanID),
		Title:          wo.Title,
		Description:    wo.Description,
		Priority:       string(wo.Priority),
		Status:         string(wo.Status),
		ScheduledStart: dateString(wo.ScheduledStart),
		DueDate:        dateString(wo.DueDate),
		Regularization: wo.Regularization,
		DaysOverdue:    wo.DaysOverdue,
		Tasks:          factory.TasksToJSON(wo.Tasks),
		CreatedAt:      wo.CreatedAt.UTC().Format(time.RFC3339),
	}
	if wo.CompletedAt != nil {
		dto.CompletedAt = dateString(*wo.CompletedAt)
	}
	return dto
}

func toLogEntryDTO(e generic.LogEntry) LogEntryDTO {
	return LogEntryDTO{
		ID:          e.ID,
		WorkOrderID: string(e.WorkOrderID),
		At:          e.At.UTC().Format(time.RFC3339),
		Actor:       e.Actor,
		Kind:        string(e.Kind),
		Message:     e.Message,
	}
}

func toOnTimeReportDTO(r maintenance.OnTimeReport) OnTimeReportDTO {
	return OnTimeReportDTO{
		From:      dateString(r.Window.Start),
		To:        dateString(r.Window.End),
		Policy:    string(r.Policy),
		Completed: r.Completed,
		OnTime:    r.OnTime,
		Late:      r.Late,
		Undated:   r.Undated,
		Excluded:  r.Excluded,
		Rate:      r.Rate,
	}
}

func toSuggestionDTO(s maintenance.PlanSuggestion) SuggestionDTO {
	return SuggestionDTO{
		Name:        s.Name,
		TemplateKey: s.TemplateKey,
		Frequency: factory.FrequencyJSON{
			UsageInterval: s.Frequency.UsageInterval,
			UsageUnit:     string(s.Frequency.UsageUnit),
			TimeInterval:  s.Frequency.TimeInterval,
			TimeUnit:      string(s.Frequency.TimeUnit),
		},
		Tasks:     factory.TasksToJSON(s.Tasks),
		Rationale: s.Rationale,
		Source:    s.Source,
	}
}

func toTemplateDTO(t maintenance.Template) TemplateDTO {
	dto := TemplateDTO{
		Key:          t.Key,
		Name:         t.Name,
		Description:  t.Description,
		Category:     string(t.Category),
		UsageUnit:    string(t.UsageUnit),
		BaseInterval: t.BaseInterval,
		BaseMonths:   t.BaseMonths,
	}
	for _, e := range t.Entries {
		dto.Entries = append(dto.Entries, TemplateEntryDTO{
			Offset:           e.Offset,
			TimeOffsetMonths: e.TimeOffsetMonths,
			Tasks:            e.Tasks,
		})
	}
	return dto
}

func toSweepRunDTO(r maintenance.SweepRun) SweepRunDTO {
	dto := SweepRunDTO{
		ID:             r.ID,
		AsOf:           dateString(r.AsOf),
		Status:         r.Status,
		Overdue:        r.Overdue,
		MaxDaysOverdue: r.MaxDaysOverdue,
		Error:          r.Error,
		StartedAt:      r.StartedAt.UTC().Format(time.RFC3339),
	}
	if !r.CompletedAt.IsZero() {
		dto.CompletedAt = r.CompletedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func dateString(tp generic.TimePoint) string {
	if tp.IsZero() {
		return ""
	}
	return tp.String()
}
