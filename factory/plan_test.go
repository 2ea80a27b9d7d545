package factory_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/asset-engine/factory"
	"github.com/warp/asset-engine/generic"
	"github.com/warp/asset-engine/maintenance"
)

// =============================================================================
// ASSETS AND PLANS
// =============================================================================

func TestParseAsset(t *testing.T) {
	a, err := factory.ParseAsset([]byte(`{
		"id": "van-01",
		"name": "Delivery van",
		"category": "vehicle",
		"usage_unit": "km",
		"current_usage": "45000",
		"daily_usage_rate": 150,
		"active": true
	}`))
	require.NoError(t, err)

	assert.Equal(t, generic.AssetID("van-01"), a.ID)
	assert.Equal(t, maintenance.CategoryVehicle, a.Category)
	assert.True(t, a.CurrentUsage.Equal(decimal.NewFromInt(45000)))
	assert.True(t, a.DailyUsageRate.Equal(decimal.NewFromInt(150)), "numbers and strings both decode")
}

func TestParseAsset_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"id":`},
		{"unknown category", `{"id":"x","category":"spaceship"}`},
		{"unknown unit", `{"id":"x","category":"vehicle","usage_unit":"miles"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.ParseAsset([]byte(tt.body))
			assert.ErrorIs(t, err, generic.ErrInvalidInput)
		})
	}
}

func TestParsePlan(t *testing.T) {
	// GIVEN: the documented plan body
	body := `{
		"id": "plan-van-01",
		"asset_id": "van-01",
		"name": "Van service",
		"frequency": {"usage_interval": "10000", "usage_unit": "km", "time_interval": 6, "time_unit": "month"},
		"start_offset": "45000",
		"tasks": [{"description": "Oil change", "duration_days": 1, "is_critical": true}]
	}`

	// WHEN: parsing it
	p, err := factory.ParsePlan([]byte(body))
	require.NoError(t, err)

	// THEN: every field lands in the plan
	assert.Equal(t, generic.PlanID("plan-van-01"), p.ID)
	assert.True(t, p.Frequency.UsageInterval.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, 6, p.Frequency.TimeInterval)
	assert.Equal(t, maintenance.TimeMonth, p.Frequency.TimeUnit)
	assert.True(t, p.StartOffset.Equal(decimal.NewFromInt(45000)))
	require.Len(t, p.Tasks, 1)
	assert.True(t, p.Tasks[0].IsCritical)

	// AND: converting back keeps the shape
	back := factory.PlanToJSON(p)
	assert.Equal(t, "km", back.Frequency.UsageUnit)
	assert.Equal(t, "Oil change", back.Tasks[0].Description)
}

func TestParsePlan_NoCriteria(t *testing.T) {
	_, err := factory.ParsePlan([]byte(`{"id":"p","asset_id":"a","name":"Nothing","frequency":{}}`))
	assert.ErrorIs(t, err, generic.ErrNoFrequencyCriteria)
}

func TestParsePlan_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative offset", `{"frequency":{"time_interval":3,"time_unit":"month"},"start_offset":"-1"}`},
		{"negative task duration", `{"frequency":{"time_interval":3,"time_unit":"month"},"tasks":[{"description":"x","duration_days":-2}]}`},
		{"unknown time unit", `{"frequency":{"time_interval":3,"time_unit":"fortnight"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.ParsePlan([]byte(tt.body))
			assert.ErrorIs(t, err, generic.ErrInvalidInput)
		})
	}
}

// =============================================================================
// TEMPLATE YAML
// =============================================================================

const forkliftYAML = `
templates:
  - key: test-forklift
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
`

func TestLoadTemplatesYAML(t *testing.T) {
	templates, err := factory.LoadTemplatesYAML(strings.NewReader(forkliftYAML))
	require.NoError(t, err)
	require.Len(t, templates, 1)

	tpl := templates[0]
	assert.Equal(t, "test-forklift", tpl.Key)
	assert.Equal(t, maintenance.CategoryMachinery, tpl.Category)
	assert.Equal(t, generic.UnitHours, tpl.UsageUnit)
	assert.True(t, tpl.BaseInterval.Equal(decimal.NewFromInt(200)))
	require.Len(t, tpl.Entries, 2)
	assert.Equal(t, 6, tpl.Entries[1].TimeOffsetMonths)
}

func TestLoadTemplatesYAML_Empty(t *testing.T) {
	templates, err := factory.LoadTemplatesYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, templates)
}

func TestLoadTemplatesYAML_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "templates:\n  - key: x\n    colour: red\n"},
		{"duplicate key", "templates:\n  - key: x\n    entries: [{months: 1}]\n  - key: x\n    entries: [{months: 2}]\n"},
		{"no entries", "templates:\n  - key: x\n"},
		{"mixed offsets", "templates:\n  - key: x\n    entries: [{offset: 10, months: 1}]\n"},
		{"unknown category", "templates:\n  - key: x\n    category: boat\n    entries: [{months: 1}]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.LoadTemplatesYAML(strings.NewReader(tt.yaml))
			assert.ErrorIs(t, err, generic.ErrInvalidInput)
		})
	}
}

func TestRegisterFromFile(t *testing.T) {
	// GIVEN: a template file on disk
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(forkliftYAML), 0o600))

	// WHEN: registering it
	n, err := factory.RegisterFromFile(path)
	require.NoError(t, err)

	// THEN: the template is available to the engine
	assert.Equal(t, 1, n)
	tpl, err := maintenance.LookupTemplate("test-forklift")
	require.NoError(t, err)
	assert.Equal(t, "Forklift", tpl.Name)

	_, err = factory.RegisterFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
