package maintenance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/asset-engine/generic"
	"github.com/warp/asset-engine/maintenance"
)

func TestBuiltinTemplatesRegistered(t *testing.T) {
	for _, key := range []string{"light-vehicle", "heavy-machinery", "it-equipment", "infrastructure"} {
		tpl, err := maintenance.LookupTemplate(key)
		require.NoError(t, err, key)
		assert.NoError(t, tpl.Validate(), key)
	}

	_, err := maintenance.LookupTemplate("space-shuttle")
	assert.ErrorIs(t, err, generic.ErrTemplateNotFound)
}

func TestApplyTemplate_LightVehicle(t *testing.T) {
	// GIVEN: a van at 45,000 km driving 150 km/day
	tpl, err := maintenance.LookupTemplate("light-vehicle")
	require.NoError(t, err)

	// WHEN: applying the light vehicle program on 2024-01-01
	freq, events := maintenance.ApplyTemplate(tpl, vanUsage(), date("2024-01-01"))

	// THEN: the plan is seeded with the template cadence
	assert.True(t, freq.UsageInterval.Equal(d(10000)))
	assert.Equal(t, 12, freq.TimeInterval)
	assert.Equal(t, maintenance.TimeMonth, freq.TimeUnit)

	// AND: every entry yields one event, sorted by due date
	require.Len(t, events, 4)
	assert.Equal(t, "2024-03-08", events[0].DueDate.String(), "10,000 km at 150/day")
	assert.True(t, events[0].TriggerUsageValue.Equal(d(55000)))
	assert.Equal(t, "2024-05-14", events[1].DueDate.String())
	assert.Equal(t, "2024-07-19", events[2].DueDate.String())
	assert.Equal(t, "2025-01-01", events[3].DueDate.String(), "annual inspection")
	assert.True(t, events[3].TriggerUsageValue.IsZero())

	for _, e := range events {
		assert.Equal(t, maintenance.TriggerTemplate, e.Trigger)
		assert.Equal(t, maintenance.StatusScheduled, e.Status)
		assert.NotEmpty(t, e.Tasks)
	}
}

func TestApplyTemplate_ZeroRateFallsBackToOnePerDay(t *testing.T) {
	// GIVEN: an asset with no known usage rate
	tpl, err := maintenance.LookupTemplate("light-vehicle")
	require.NoError(t, err)

	// WHEN: applying the template
	_, events := maintenance.ApplyTemplate(tpl, maintenance.UsageProfile{}, date("2024-01-01"))

	// THEN: events are still produced, the calendar entry first
	require.Len(t, events, 4)
	assert.Equal(t, "2025-01-01", events[0].DueDate.String())
	assert.Equal(t, date("2024-01-01").AddDays(10000).String(), events[1].DueDate.String())
}

func TestTemplate_Validate(t *testing.T) {
	tests := []struct {
		name  string
		entry maintenance.TemplateEntry
	}{
		{"no offset", maintenance.TemplateEntry{Tasks: []string{"x"}}},
		{"both offsets", maintenance.TemplateEntry{Offset: d(100), TimeOffsetMonths: 3}},
		{"negative offset", maintenance.TemplateEntry{Offset: d(-100)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := maintenance.Template{Key: "bad", Entries: []maintenance.TemplateEntry{tt.entry}}
			assert.ErrorIs(t, tpl.Validate(), generic.ErrInvalidInput)
		})
	}
	assert.ErrorIs(t, maintenance.Template{Key: "empty"}.Validate(), generic.ErrInvalidInput)
}

func TestRegisterTemplate(t *testing.T) {
	// GIVEN: a custom program without a category
	custom := maintenance.Template{
		Key:       "test-compressor",
		Name:      "Compressor",
		UsageUnit: generic.UnitHours,
		Entries: []maintenance.TemplateEntry{
			{Offset: d(500), Tasks: []string{"Replace intake filter"}},
		},
	}

	// WHEN: registering it
	require.NoError(t, maintenance.RegisterTemplate(custom))

	// THEN: it can be looked up and listed
	got, err := maintenance.LookupTemplate("test-compressor")
	require.NoError(t, err)
	assert.Equal(t, "Compressor", got.Name)

	keys := make([]string, 0)
	for _, tpl := range maintenance.ListTemplates() {
		keys = append(keys, tpl.Key)
	}
	assert.Contains(t, keys, "test-compressor")
	assert.IsIncreasing(t, keys)

	// AND: invalid templates are refused
	assert.Error(t, maintenance.RegisterTemplate(maintenance.Template{Key: "broken"}))
}
