/*
templates.go - Fixed maintenance programs for common asset classes

PURPOSE:
  A template is a manufacturer-style program: a list of entries, each due at
  a usage offset OR a calendar offset, with the tasks to perform. Applying a
  template seeds a FrequencyConfig and bulk-produces dated events.

DIFFERENCE FROM Project():
  Each entry uses exactly one criterion. There is no whichever-comes-first
  merge and no per-iteration time arithmetic:
    - offset > 0:  due = reference + ceil(offset / dailyRate) days,
                   trigger reading = current usage + offset
    - offset == 0: due = reference + timeOffsetMonths months
  A missing or zero daily rate falls back to 1 unit/day, so templates still
  produce dated defaults for assets with incomplete data.

REGISTRY:
  Built-in templates register on init(). Extra templates can be loaded from
  YAML (factory.LoadTemplatesYAML) and registered at startup.

AVAILABLE TEMPLATES:
  light-vehicle:   10k/20k/30k km services + annual inspection
  heavy-machinery: 250/500/1000 h services + 6-month structural check
  it-equipment:    6/12/24 month checks
  infrastructure:  3/6/12 month inspections

SEE ALSO:
  - projection.go: Derived schedules from a FrequencyConfig
  - suggestion.go: Picks a template by asset category
*/
package maintenance

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/asset-engine/generic"
)

// Template is a named, fixed maintenance program.
type Template struct {
	Key          string
	Name         string
	Description  string
	Category     AssetCategory
	UsageUnit    generic.UsageUnit
	BaseInterval decimal.Decimal // seeds FrequencyConfig.UsageInterval
	BaseMonths   int             // seeds FrequencyConfig.TimeInterval
	Entries      []TemplateEntry
}

// TemplateEntry is due at Offset usage units (when > 0) or at
// TimeOffsetMonths months after the reference date.
type TemplateEntry struct {
	Offset           decimal.Decimal
	TimeOffsetMonths int
	Tasks            []string
}

// Validate rejects templates that cannot produce dated events.
func (t Template) Validate() error {
	if t.Key == "" {
		return generic.Invalid("key", "required")
	}
	if len(t.Entries) == 0 {
		return generic.Invalid("entries", "template %s has no entries", t.Key)
	}
	for i, e := range t.Entries {
		switch {
		case e.Offset.IsNegative() || e.TimeOffsetMonths < 0:
			return generic.Invalid("entries", "template %s entry %d has a negative offset", t.Key, i)
		case e.Offset.IsPositive() && e.TimeOffsetMonths > 0:
			return generic.Invalid("entries", "template %s entry %d mixes usage and time offsets", t.Key, i)
		case e.Offset.IsZero() && e.TimeOffsetMonths == 0:
			return generic.Invalid("entries", "template %s entry %d has no offset", t.Key, i)
		}
	}
	return nil
}

// Frequency is the configuration a template seeds on its plan.
func (t Template) Frequency() FrequencyConfig {
	freq := FrequencyConfig{
		UsageInterval: t.BaseInterval,
		UsageUnit:     t.UsageUnit,
		TimeInterval:  t.BaseMonths,
	}
	if freq.TimeInterval > 0 {
		freq.TimeUnit = TimeMonth
	}
	return freq
}

// ApplyTemplate produces the template's events for an asset, sorted by due
// date. It never fails: a missing daily rate falls back to 1.
func ApplyTemplate(t Template, usage UsageProfile, referenceDate generic.TimePoint) (FrequencyConfig, []ProjectedEvent) {
	rate := usage.DailyUsageRate
	if !rate.IsPositive() {
		rate = decimal.NewFromInt(1)
	}

	events := make([]ProjectedEvent, 0, len(t.Entries))
	for _, entry := range t.Entries {
		ev := ProjectedEvent{
			Trigger:           TriggerTemplate,
			Status:            StatusScheduled,
			Priority:          PriorityLow,
			TriggerUsageValue: decimal.Zero,
			Tasks:             make([]Task, 0, len(entry.Tasks)),
		}
		for _, desc := range entry.Tasks {
			ev.Tasks = append(ev.Tasks, Task{Description: desc, DurationDays: 1})
		}

		if entry.Offset.IsPositive() {
			trigger := usage.CurrentUsage.Add(entry.Offset)
			ev.DueDate = referenceDate.AddDays(generic.CeilDiv(entry.Offset, rate))
			ev.TriggerUsageValue = trigger
			ev.Title = "Maintenance at " + generic.NewQuantity(trigger, t.UsageUnit).String()
		} else {
			ev.DueDate = referenceDate.AddMonths(entry.TimeOffsetMonths)
			ev.Title = "Preventive maintenance (" + TimeMonth.Label(entry.TimeOffsetMonths) + ")"
		}
		events = append(events, ev)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].DueDate.Before(events[j].DueDate)
	})
	return t.Frequency(), events
}

// =============================================================================
// TEMPLATE REGISTRY
// =============================================================================

var (
	templateRegistry = make(map[string]Template)
	templateMu       sync.RWMutex
)

// RegisterTemplate adds or replaces a template.
func RegisterTemplate(t Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	templateMu.Lock()
	defer templateMu.Unlock()
	templateRegistry[t.Key] = t
	return nil
}

// LookupTemplate finds a registered template by key.
func LookupTemplate(key string) (Template, error) {
	templateMu.RLock()
	defer templateMu.RUnlock()
	t, ok := templateRegistry[key]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", generic.ErrTemplateNotFound, key)
	}
	return t, nil
}

// ListTemplates returns all registered templates ordered by key.
func ListTemplates() []Template {
	templateMu.RLock()
	defer templateMu.RUnlock()
	out := make([]Template, 0, len(templateRegistry))
	for _, t := range templateRegistry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// TemplateForCategory returns the first registered template for a category.
func TemplateForCategory(category AssetCategory) (Template, bool) {
	for _, t := range ListTemplates() {
		if t.Category == category {
			return t, true
		}
	}
	return Template{}, false
}

func init() {
	for _, t := range builtinTemplates() {
		if err := RegisterTemplate(t); err != nil {
			panic(err)
		}
	}
}

func units(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func builtinTemplates() []Template {
	return []Template{
		{
			Key:          "light-vehicle",
			Name:         "Light vehicle",
			Description:  "Cars and vans: oil services every 10,000 km plus an annual inspection",
			Category:     CategoryVehicle,
			UsageUnit:    generic.UnitKilometers,
			BaseInterval: units(10000),
			BaseMonths:   12,
			Entries: []TemplateEntry{
				{Offset: units(10000), Tasks: []string{"Engine oil and filter change", "Tire pressure and rotation"}},
				{Offset: units(20000), Tasks: []string{"Engine oil and filter change", "Air filter replacement", "Brake pad inspection"}},
				{Offset: units(30000), Tasks: []string{"Engine oil and filter change", "Fuel filter replacement", "Coolant check"}},
				{TimeOffsetMonths: 12, Tasks: []string{"Annual safety inspection", "Lights and wipers check"}},
			},
		},
		{
			Key:          "heavy-machinery",
			Name:         "Heavy machinery",
			Description:  "Excavators, loaders and cranes serviced on engine hours",
			Category:     CategoryMachinery,
			UsageUnit:    generic.UnitHours,
			BaseInterval: units(250),
			BaseMonths:   6,
			Entries: []TemplateEntry{
				{Offset: units(250), Tasks: []string{"Grease all fittings", "Hydraulic level check"}},
				{Offset: units(500), Tasks: []string{"Engine oil and filter change", "Hydraulic filter replacement"}},
				{Offset: units(1000), Tasks: []string{"Hydraulic oil change", "Final drive oil change"}},
				{TimeOffsetMonths: 6, Tasks: []string{"Structural inspection", "Safety devices test"}},
			},
		},
		{
			Key:         "it-equipment",
			Name:        "IT equipment",
			Description: "Servers, network gear and workstations on a calendar program",
			Category:    CategoryITEquipment,
			BaseMonths:  6,
			Entries: []TemplateEntry{
				{TimeOffsetMonths: 6, Tasks: []string{"Firmware and patch review", "Dust cleaning"}},
				{TimeOffsetMonths: 12, Tasks: []string{"Backup restore test", "UPS battery check"}},
				{TimeOffsetMonths: 24, Tasks: []string{"Hardware refresh assessment"}},
			},
		},
		{
			Key:         "infrastructure",
			Name:        "Infrastructure",
			Description: "Buildings, bridges and fixed installations",
			Category:    CategoryInfrastructure,
			BaseMonths:  3,
			Entries: []TemplateEntry{
				{TimeOffsetMonths: 3, Tasks: []string{"Visual inspection"}},
				{TimeOffsetMonths: 6, Tasks: []string{"Drainage and gutter cleaning"}},
				{TimeOffsetMonths: 12, Tasks: []string{"Structural survey", "Fire safety systems test"}},
			},
		},
	}
}
