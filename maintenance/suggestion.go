package maintenance

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warp/asset-engine/generic"
)

// AssetContext is what a suggester sees about an asset.
type AssetContext struct {
	Asset         Asset
	ExistingPlans []Plan
}

// PlanSuggestion is a proposed plan. It is never saved automatically.
type PlanSuggestion struct {
	Name        string
	TemplateKey string
	Frequency   FrequencyConfig
	Tasks       []Task
	Rationale   string
	Source      string // "rules" or the external generator's name
}

// PlanSuggester proposes a plan for an asset. Implementations may call an
// external text-generation service; nothing in this package depends on one.
type PlanSuggester interface {
	Suggest(ctx context.Context, in AssetContext) (PlanSuggestion, error)
}

// RuleBasedSuggester derives suggestions from the template registry and the
// asset's usage unit. It never fails.
type RuleBasedSuggester struct{}

func (RuleBasedSuggester) Suggest(_ context.Context, in AssetContext) (PlanSuggestion, error) {
	if t, ok := TemplateForCategory(in.Asset.Category); ok {
		s := PlanSuggestion{
			Name:        t.Name + " program",
			TemplateKey: t.Key,
			Frequency:   t.Frequency(),
			Rationale:   t.Description,
			Source:      "rules",
		}
		if len(t.Entries) > 0 {
			for _, desc := range t.Entries[0].Tasks {
				s.Tasks = append(s.Tasks, Task{Description: desc, DurationDays: 1})
			}
		}
		return s, nil
	}

	freq := FrequencyConfig{TimeInterval: 6, TimeUnit: TimeMonth}
	switch in.Asset.UsageUnit {
	case generic.UnitKilometers:
		freq.UsageInterval = decimal.NewFromInt(10000)
		freq.UsageUnit = generic.UnitKilometers
		freq.TimeInterval = 12
	case generic.UnitHours:
		freq.UsageInterval = decimal.NewFromInt(250)
		freq.UsageUnit = generic.UnitHours
	}
	return PlanSuggestion{
		Name:      "General preventive program",
		Frequency: freq,
		Tasks:     []Task{{Description: "General inspection", DurationDays: 1}},
		Rationale: "No template for category " + string(in.Asset.Category),
		Source:    "rules",
	}, nil
}

// SuggestPlan asks primary first and falls back to the rules when primary is
// nil, fails, or returns a suggestion without frequency criteria.
func SuggestPlan(ctx context.Context, primary PlanSuggester, in AssetContext) (PlanSuggestion, error) {
	if primary != nil {
		s, err := primary.Suggest(ctx, in)
		if err == nil && s.Frequency.Validate() == nil {
			return s, nil
		}
	}
	return RuleBasedSuggester{}.Suggest(ctx, in)
}
