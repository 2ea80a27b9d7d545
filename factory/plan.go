/*
Package factory converts external asset, plan and template definitions into
maintenance types.

PURPOSE:
  Plans and assets arrive as JSON (API bodies, scenario fixtures) and custom
  templates as YAML files maintained by fleet managers. The factory validates
  them and builds the Go structs, so maintenance programs can change without
  code changes.

PLAN JSON:
  {
    "id": "plan-van-01",
    "asset_id": "van-01",
    "name": "Van service",
    "frequency": {
      "usage_interval": "10000",
      "usage_unit": "km",
      "time_interval": 6,
      "time_unit": "month"
    },
    "start_offset": "45000",
    "tasks": [
      {"description": "Oil change", "duration_days": 1, "is_critical": true}
    ]
  }

TEMPLATE YAML:
  templates:
    - key: forklift
      name: Forklift
      category: machinery
      usage_unit: hours
      base_interval: 200
      base_months: 6
      entries:
        - offset: 200
          tasks: [Mast chain lubrication]
        - months: 6
          tasks: [Load test]

USAGE:
  plan, err := factory.ParsePlan(body)
  n, err := factory.RegisterFromFile("templates.yaml")

SEE ALSO:
  - maintenance/templates.go: Template registry
  - api/handlers.go: Uses AssetJSON and PlanJSON as request and response bodies
*/
package factory

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"github.com/warp/asset-engine/generic"
	"github.com/warp/asset-engine/maintenance"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// AssetJSON is the JSON representation of an asset.
type AssetJSON struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Category       string          `json:"category"`
	UsageUnit      string          `json:"usage_unit,omitempty"` // km, hours
	CurrentUsage   decimal.Decimal `json:"current_usage"`
	DailyUsageRate decimal.Decimal `json:"daily_usage_rate"`
	Location       string          `json:"location,omitempty"`
	Active         bool            `json:"active"`
}

// FrequencyJSON is a plan's trigger configuration.
type FrequencyJSON struct {
	UsageInterval decimal.Decimal `json:"usage_interval"`
	UsageUnit     string          `json:"usage_unit,omitempty"`
	TimeInterval  int             `json:"time_interval,omitempty"`
	TimeUnit      string          `json:"time_unit,omitempty"` // day, week, month, year
}

type TaskJSON struct {
	Description  string `json:"description"`
	DurationDays int    `json:"duration_days"`
	IsCritical   bool   `json:"is_critical,omitempty"`
}

// PlanJSON is the JSON representation of a plan.
type PlanJSON struct {
	ID          string          `json:"id"`
	AssetID     string          `json:"asset_id"`
	Name        string          `json:"name"`
	Frequency   FrequencyJSON   `json:"frequency"`
	StartOffset decimal.Decimal `json:"start_offset"`
	Tasks       []TaskJSON      `json:"tasks,omitempty"`
	TemplateKey string          `json:"template_key,omitempty"`
	Active      bool            `json:"active"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

// ParseAsset decodes and converts an asset.
func ParseAsset(data []byte) (maintenance.Asset, error) {
	var a AssetJSON
	if err := json.Unmarshal(data, &a); err != nil {
		return maintenance.Asset{}, fmt.Errorf("%w: asset json: %v", generic.ErrInvalidInput, err)
	}
	return a.ToAsset()
}

// ToAsset validates the categorical fields and converts.
func (a AssetJSON) ToAsset() (maintenance.Asset, error) {
	asset := maintenance.Asset{
		ID:             generic.AssetID(a.ID),
		Name:           a.Name,
		Category:       maintenance.AssetCategory(a.Category),
		UsageUnit:      generic.UsageUnit(a.UsageUnit),
		CurrentUsage:   a.CurrentUsage,
		DailyUsageRate: a.DailyUsageRate,
		Location:       a.Location,
		Active:         a.Active,
	}
	if !asset.Category.Valid() {
		return maintenance.Asset{}, generic.Invalid("category", "unknown category %q", a.Category)
	}
	if asset.UsageUnit != "" && !asset.UsageUnit.Valid() {
		return maintenance.Asset{}, generic.Invalid("usage_unit", "unknown unit %q", a.UsageUnit)
	}
	return asset, nil
}

func AssetToJSON(a maintenance.Asset) AssetJSON {
	return AssetJSON{
		ID:             string(a.ID),
		Name:           a.Name,
		Category:       string(a.Category),
		UsageUnit:      string(a.UsageUnit),
		CurrentUsage:   a.CurrentUsage,
		DailyUsageRate: a.DailyUsageRate,
		Location:       a.Location,
		Active:         a.Active,
	}
}

// ParsePlan decodes a plan and validates its frequency.
func ParsePlan(data []byte) (maintenance.Plan, error) {
	var p PlanJSON
	if err := json.Unmarshal(data, &p); err != nil {
		return maintenance.Plan{}, fmt.Errorf("%w: plan json: %v", generic.ErrInvalidInput, err)
	}
	return p.ToPlan()
}

// ToPlan converts and validates. Neither interval set is
// ErrNoFrequencyCriteria, never a default cadence.
func (p PlanJSON) ToPlan() (maintenance.Plan, error) {
	freq := maintenance.FrequencyConfig{
		UsageInterval: p.Frequency.UsageInterval,
		UsageUnit:     generic.UsageUnit(p.Frequency.UsageUnit),
		TimeInterval:  p.Frequency.TimeInterval,
		TimeUnit:      maintenance.TimeUnit(p.Frequency.TimeUnit),
	}
	if err := freq.Validate(); err != nil {
		return maintenance.Plan{}, err
	}
	if p.StartOffset.IsNegative() {
		return maintenance.Plan{}, generic.Invalid("start_offset", "must be >= 0")
	}

	plan := maintenance.Plan{
		ID:          generic.PlanID(p.ID),
		AssetID:     generic.AssetID(p.AssetID),
		Name:        p.Name,
		Frequency:   freq,
		StartOffset: p.StartOffset,
		TemplateKey: p.TemplateKey,
		Active:      p.Active,
	}
	for _, t := range p.Tasks {
		if t.DurationDays < 0 {
			return maintenance.Plan{}, generic.Invalid("tasks.duration_days", "must be >= 0")
		}
		plan.Tasks = append(plan.Tasks, maintenance.Task{
			Description:  t.Description,
			DurationDays: t.DurationDays,
			IsCritical:   t.IsCritical,
		})
	}
	return plan, nil
}

func PlanToJSON(p maintenance.Plan) PlanJSON {
	out := PlanJSON{
		ID:      string(p.ID),
		AssetID: string(p.AssetID),
		Name:    p.Name,
		Frequency: FrequencyJSON{
			UsageInterval: p.Frequency.UsageInterval,
			UsageUnit:     string(p.Frequency.UsageUnit),
			TimeInterval:  p.Frequency.TimeInterval,
			TimeUnit:      string(p.Frequency.TimeUnit),
		},
		StartOffset: p.StartOffset,
		TemplateKey: p.TemplateKey,
		Active:      p.Active,
	}
	out.Tasks = TasksToJSON(p.Tasks)
	return out
}

func TasksToJSON(tasks []maintenance.Task) []TaskJSON {
	out := make([]TaskJSON, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, TaskJSON{Description: t.Description, DurationDays: t.DurationDays, IsCritical: t.IsCritical})
	}
	return out
}

func TasksFromJSON(tasks []TaskJSON) []maintenance.Task {
	out := make([]maintenance.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, maintenance.Task{Description: t.Description, DurationDays: t.DurationDays, IsCritical: t.IsCritical})
	}
	return out
}

// =============================================================================
// TEMPLATE YAML
// =============================================================================

// TemplateFileYAML is the root of a custom template file.
type TemplateFileYAML struct {
	Templates []TemplateYAML `yaml:"templates"`
}

type TemplateYAML struct {
	Key          string              `yaml:"key"`
	Name         string              `yaml:"name"`
	Description  string              `yaml:"description"`
	Category     string              `yaml:"category"`
	UsageUnit    string              `yaml:"usage_unit"`
	BaseInterval int64               `yaml:"base_interval"`
	BaseMonths   int                 `yaml:"base_months"`
	Entries      []TemplateEntryYAML `yaml:"entries"`
}

// TemplateEntryYAML sets exactly one of Offset and Months.
type TemplateEntryYAML struct {
	Offset int64    `yaml:"offset"`
	Months int      `yaml:"months"`
	Tasks  []string `yaml:"tasks"`
}

// LoadTemplatesYAML reads and validates every template in r.
func LoadTemplatesYAML(r io.Reader) ([]maintenance.Template, error) {
	var file TemplateFileYAML
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: template yaml: %v", generic.ErrInvalidInput, err)
	}

	out := make([]maintenance.Template, 0, len(file.Templates))
	seen := make(map[string]bool)
	for _, ty := range file.Templates {
		if seen[ty.Key] {
			return nil, generic.Invalid("key", "duplicate template %q", ty.Key)
		}
		seen[ty.Key] = true

		t, err := ty.ToTemplate()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// ToTemplate converts and validates one template.
func (ty TemplateYAML) ToTemplate() (maintenance.Template, error) {
	t := maintenance.Template{
		Key:          ty.Key,
		Name:         ty.Name,
		Description:  ty.Description,
		Category:     maintenance.AssetCategory(ty.Category),
		UsageUnit:    generic.UsageUnit(ty.UsageUnit),
		BaseInterval: decimal.NewFromInt(ty.BaseInterval),
		BaseMonths:   ty.BaseMonths,
	}
	if t.Name == "" {
		t.Name = t.Key
	}
	if ty.Category != "" && !t.Category.Valid() {
		return maintenance.Template{}, generic.Invalid("category", "template %s: unknown category %q", ty.Key, ty.Category)
	}
	if t.UsageUnit != "" && !t.UsageUnit.Valid() {
		return maintenance.Template{}, generic.Invalid("usage_unit", "template %s: unknown unit %q", ty.Key, ty.UsageUnit)
	}
	for _, e := range ty.Entries {
		t.Entries = append(t.Entries, maintenance.TemplateEntry{
			Offset:           decimal.NewFromInt(e.Offset),
			TimeOffsetMonths: e.Months,
			Tasks:            e.Tasks,
		})
	}
	if err := t.Validate(); err != nil {
		return maintenance.Template{}, err
	}
	return t, nil
}

// RegisterFromFile loads a YAML template file and registers every template
// in it. A template with a built-in key replaces the built-in.
func RegisterFromFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open templates file: %w", err)
	}
	defer f.Close()

	templates, err := LoadTemplatesYAML(f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	for _, t := range templates {
		if err := maintenance.RegisterTemplate(t); err != nil {
			return 0, err
		}
	}
	return len(templates), nil
}
