// Package maintenance implements preventive maintenance planning for physical
// assets: projecting events from usage and calendar triggers, reconciling them
// against work orders, and regularizing overdue work.
package maintenance

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/asset-engine/generic"
)

// =============================================================================
// USAGE PROFILE
// =============================================================================

// UsageProfile is an asset's cumulative usage and its estimated daily rate.
type UsageProfile struct {
	CurrentUsage   decimal.Decimal
	DailyUsageRate decimal.Decimal
}

// NewUsageProfile validates that neither figure is negative.
func NewUsageProfile(current, dailyRate decimal.Decimal) (UsageProfile, error) {
	if current.IsNegative() {
		return UsageProfile{}, generic.Invalid("current_usage", "must be >= 0, got %s", current)
	}
	if dailyRate.IsNegative() {
		return UsageProfile{}, generic.Invalid("daily_usage_rate", "must be >= 0, got %s", dailyRate)
	}
	return UsageProfile{CurrentUsage: current, DailyUsageRate: dailyRate}, nil
}

// =============================================================================
// FREQUENCY CONFIG
// =============================================================================

type TimeUnit string

const (
	TimeDay   TimeUnit = "day"
	TimeWeek  TimeUnit = "week"
	TimeMonth TimeUnit = "month"
	TimeYear  TimeUnit = "year"
)

func (u TimeUnit) Valid() bool {
	switch u {
	case TimeDay, TimeWeek, TimeMonth, TimeYear:
		return true
	}
	return false
}

// Add advances tp by n units using calendar arithmetic.
func (u TimeUnit) Add(tp generic.TimePoint, n int) generic.TimePoint {
	switch u {
	case TimeDay:
		return tp.AddDays(n)
	case TimeWeek:
		return tp.AddWeeks(n)
	case TimeYear:
		return tp.AddYears(n)
	default:
		return tp.AddMonths(n)
	}
}

// Label renders "6 months", "1 week", etc.
func (u TimeUnit) Label(n int) string {
	name := string(u)
	if n != 1 {
		name += "s"
	}
	return strconv.Itoa(n) + " " + name
}

// FrequencyConfig says how often maintenance should occur. A zero interval
// disables that criterion; at least one must be set.
type FrequencyConfig struct {
	UsageInterval decimal.Decimal
	UsageUnit     generic.UsageUnit
	TimeInterval  int
	TimeUnit      TimeUnit
}

func (f FrequencyConfig) UsageBased() bool { return f.UsageInterval.IsPositive() }
func (f FrequencyConfig) TimeBased() bool  { return f.TimeInterval > 0 }

// Validate checks the criteria without looking at any usage profile.
func (f FrequencyConfig) Validate() error {
	if !f.UsageBased() && !f.TimeBased() {
		return generic.ErrNoFrequencyCriteria
	}
	if f.UsageInterval.IsNegative() {
		return generic.Invalid("usage_interval", "must be >= 0")
	}
	if f.TimeInterval < 0 {
		return generic.Invalid("time_interval", "must be >= 0")
	}
	if f.TimeBased() && !f.TimeUnit.Valid() {
		return generic.Invalid("time_unit", "unknown unit %q", f.TimeUnit)
	}
	if f.UsageBased() && f.UsageUnit != "" && !f.UsageUnit.Valid() {
		return generic.Invalid("usage_unit", "unknown unit %q", f.UsageUnit)
	}
	return nil
}

// =============================================================================
// PROJECTED EVENT
// =============================================================================

type EventStatus string

const (
	StatusScheduled EventStatus = "scheduled"
	StatusCompleted EventStatus = "completed"
)

// Trigger records which criterion produced an event.
type Trigger string

const (
	TriggerUsage    Trigger = "usage"
	TriggerTime     Trigger = "time"
	TriggerTemplate Trigger = "template"
	TriggerManual   Trigger = "manual"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Task belongs to exactly one event (or work order copied from it).
type Task struct {
	Description  string
	DurationDays int
	IsCritical   bool
}

// ProjectedEvent is a scheduled preventive maintenance action. IDs are
// supplied by the caller; Project leaves them empty.
type ProjectedEvent struct {
	ID                generic.EventID
	AssetID           generic.AssetID
	PlanID            generic.PlanID
	Title             string
	DueDate           generic.TimePoint
	TriggerUsageValue decimal.Decimal
	Trigger           Trigger
	Status            EventStatus
	Priority          Priority
	Tasks             []Task
	LinkedWorkOrderID generic.WorkOrderID
}

// Locked reports whether the event has left the open schedule, so plan
// regeneration must not rewrite it.
func (e ProjectedEvent) Locked() bool {
	return e.LinkedWorkOrderID != "" || e.Status != StatusScheduled
}

// Validate checks a user-authored event before it is stored.
func (e ProjectedEvent) Validate() error {
	if e.Title == "" {
		return generic.Invalid("title", "required")
	}
	if e.DueDate.IsZero() {
		return generic.Invalid("due_date", "required")
	}
	if e.TriggerUsageValue.IsNegative() {
		return generic.Invalid("trigger_usage_value", "must be >= 0")
	}
	if e.Priority != "" && !e.Priority.Valid() {
		return generic.Invalid("priority", "unknown priority %q", e.Priority)
	}
	for _, t := range e.Tasks {
		if t.DurationDays < 0 {
			return generic.Invalid("tasks.duration_days", "must be >= 0")
		}
	}
	return nil
}

// =============================================================================
// RECORDS - Persistence shapes around the core
// =============================================================================

type AssetCategory string

const (
	CategoryVehicle        AssetCategory = "vehicle"
	CategoryMachinery      AssetCategory = "machinery"
	CategoryInfrastructure AssetCategory = "infrastructure"
	CategoryITEquipment    AssetCategory = "it_equipment"
)

func (c AssetCategory) Valid() bool {
	switch c {
	case CategoryVehicle, CategoryMachinery, CategoryInfrastructure, CategoryITEquipment:
		return true
	}
	return false
}

// Asset is a tracked piece of equipment.
type Asset struct {
	ID             generic.AssetID
	Name           string
	Category       AssetCategory
	UsageUnit      generic.UsageUnit
	CurrentUsage   decimal.Decimal
	DailyUsageRate decimal.Decimal
	Location       string
	Active         bool
}

// Usage returns the asset's usage profile.
func (a Asset) Usage() UsageProfile {
	return UsageProfile{CurrentUsage: a.CurrentUsage, DailyUsageRate: a.DailyUsageRate}
}

// Plan binds a frequency configuration to an asset.
type Plan struct {
	ID          generic.PlanID
	AssetID     generic.AssetID
	Name        string
	Frequency   FrequencyConfig
	StartOffset decimal.Decimal
	Tasks       []Task
	TemplateKey string
	Active      bool
}

type WorkOrderStatus string

const (
	WorkOrderOpen       WorkOrderStatus = "open"
	WorkOrderInProgress WorkOrderStatus = "in_progress"
	WorkOrderCompleted  WorkOrderStatus = "completed"
	WorkOrderCancelled  WorkOrderStatus = "cancelled"
)

// WorkOrder is the execution record for an event or ad-hoc repair.
type WorkOrder struct {
	ID             generic.WorkOrderID
	AssetID        generic.AssetID
	EventID        generic.EventID
	PlanID         generic.PlanID
	Title          string
	Description    string
	Priority       Priority
	Status         WorkOrderStatus
	ScheduledStart generic.TimePoint
	DueDate        generic.TimePoint
	CompletedAt    *generic.TimePoint
	Regularization bool
	DaysOverdue    int
	Tasks          []Task
	CreatedAt      time.Time
}

// Done reports whether the work order is closed.
func (w WorkOrder) Done() bool {
	return w.Status == WorkOrderCompleted || w.Status == WorkOrderCancelled
}
