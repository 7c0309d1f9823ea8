package cost

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/leofalp/graphyte/providers/ai"
)

// Currency of every amount in this package.
const Currency = "USD"

// ModelCost represents the pricing structure for a language model.
// Costs are expressed in USD per million tokens.
//
// Example usage:
//
//	modelCost := cost.ModelCost{
//	    InputCostPerMillion:       0.15,
//	    OutputCostPerMillion:      0.60,
//	    CachedInputCostPerMillion: 0.075,
//	}
type ModelCost struct {
	// InputCostPerMillion is the cost in USD per 1 million prompt tokens.
	InputCostPerMillion float64 `json:"input_cost_per_million" yaml:"input_cost_per_million"`

	// OutputCostPerMillion is the cost in USD per 1 million completion tokens.
	OutputCostPerMillion float64 `json:"output_cost_per_million" yaml:"output_cost_per_million"`

	// CachedInputCostPerMillion is the discounted rate for prompt tokens
	// served from the provider cache. Zero bills them at the input rate.
	CachedInputCostPerMillion float64 `json:"cached_input_cost_per_million,omitempty" yaml:"cached_input_cost_per_million"`
}

func perMillion(tokens int, rate float64) float64 {
	return float64(tokens) / 1_000_000.0 * rate
}

// Calculate returns the cost of usage.
func (mc ModelCost) Calculate(usage ai.Usage) float64 {
	cached := min(usage.CachedTokens, usage.PromptTokens)
	cachedRate := mc.CachedInputCostPerMillion
	if cachedRate == 0 {
		cachedRate = mc.InputCostPerMillion
	}
	return perMillion(usage.PromptTokens-cached, mc.InputCostPerMillion) +
		perMillion(cached, cachedRate) +
		perMillion(usage.CompletionTokens, mc.OutputCostPerMillion)
}

// String returns a formatted string representation of the model costs.
func (mc ModelCost) String() string {
	return fmt.Sprintf("Input: $%.3f/M, Output: $%.3f/M", mc.InputCostPerMillion, mc.OutputCostPerMillion)
}

// Table maps model names to their prices.
type Table map[string]ModelCost

// DefaultTable returns list prices for common OpenAI chat models.
func DefaultTable() Table {
	return Table{
		"gpt-4o-mini":  {InputCostPerMillion: 0.15, OutputCostPerMillion: 0.60, CachedInputCostPerMillion: 0.075},
		"gpt-4o":       {InputCostPerMillion: 2.50, OutputCostPerMillion: 10.00, CachedInputCostPerMillion: 1.25},
		"gpt-4.1":      {InputCostPerMillion: 2.00, OutputCostPerMillion: 8.00, CachedInputCostPerMillion: 0.50},
		"gpt-4.1-mini": {InputCostPerMillion: 0.40, OutputCostPerMillion: 1.60, CachedInputCostPerMillion: 0.10},
		"gpt-4.1-nano": {InputCostPerMillion: 0.10, OutputCostPerMillion: 0.40, CachedInputCostPerMillion: 0.025},
	}
}

// Merge returns a copy of t with overrides applied on top.
func (t Table) Merge(overrides Table) Table {
	out := maps.Clone(t)
	if out == nil {
		out = Table{}
	}
	maps.Copy(out, overrides)
	return out
}

// Lookup returns the price of model. Dated snapshots such as
// "gpt-4o-mini-2024-07-18" resolve to the longest table key they extend.
func (t Table) Lookup(model string) (ModelCost, bool) {
	if mc, ok := t[model]; ok {
		return mc, true
	}
	best := ""
	for name := range t {
		if len(name) > len(best) && strings.HasPrefix(model, name+"-") {
			best = name
		}
	}
	if best == "" {
		return ModelCost{}, false
	}
	return t[best], true
}

// Estimate is the priced usage of one run.
type Estimate struct {
	// ByModel holds the cost of every priced model.
	ByModel map[string]float64 `json:"by_model,omitempty"`

	// Total is the sum of ByModel.
	Total float64 `json:"total"`

	// Unpriced lists, sorted, the models with usage but no price.
	Unpriced []string `json:"unpriced,omitempty"`
}

// Estimate prices the usage of each model.
func (t Table) Estimate(usageByModel map[string]ai.Usage) Estimate {
	est := Estimate{ByModel: make(map[string]float64, len(usageByModel))}
	for _, model := range slices.Sorted(maps.Keys(usageByModel)) {
		mc, ok := t.Lookup(model)
		if !ok {
			est.Unpriced = append(est.Unpriced, model)
			continue
		}
		amount := mc.Calculate(usageByModel[model])
		est.ByModel[model] = amount
		est.Total += amount
	}
	return est
}

// String formats the total, noting models that could not be priced.
func (e Estimate) String() string {
	s := fmt.Sprintf("$%.4f", e.Total)
	if len(e.Unpriced) > 0 {
		s += fmt.Sprintf(" (unpriced: %s)", strings.Join(e.Unpriced, ", "))
	}
	return s
}
