package cost

import (
	"math"
	"testing"

	"github.com/leofalp/graphyte/providers/ai"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestModelCost_Calculate(t *testing.T) {
	mini := ModelCost{InputCostPerMillion: 0.15, OutputCostPerMillion: 0.60, CachedInputCostPerMillion: 0.075}

	tests := []struct {
		name  string
		cost  ModelCost
		usage ai.Usage
		want  float64
	}{
		{
			name:  "prompt and completion",
			cost:  mini,
			usage: ai.Usage{PromptTokens: 1_000_000, CompletionTokens: 500_000},
			want:  0.15 + 0.30,
		},
		{
			name:  "cached prompt tokens use the cached rate",
			cost:  mini,
			usage: ai.Usage{PromptTokens: 1_000_000, CachedTokens: 400_000},
			want:  0.6*0.15 + 0.4*0.075,
		},
		{
			name:  "no cached rate bills cached tokens as input",
			cost:  ModelCost{InputCostPerMillion: 2, OutputCostPerMillion: 8},
			usage: ai.Usage{PromptTokens: 500_000, CachedTokens: 500_000},
			want:  1,
		},
		{
			name:  "cached count above prompt count is capped",
			cost:  mini,
			usage: ai.Usage{PromptTokens: 100, CachedTokens: 1_000},
			want:  100.0 / 1_000_000 * 0.075,
		},
		{
			name: "zero usage",
			cost: mini,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cost.Calculate(tt.usage); !almostEqual(got, tt.want) {
				t.Errorf("Calculate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTable_Lookup(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		model  string
		want   string
		wantOK bool
	}{
		{model: "gpt-4o-mini", want: "gpt-4o-mini", wantOK: true},
		{model: "gpt-4o-mini-2024-07-18", want: "gpt-4o-mini", wantOK: true},
		{model: "gpt-4o-2024-08-06", want: "gpt-4o", wantOK: true},
		{model: "gpt-4.1-mini-2025-04-14", want: "gpt-4.1-mini", wantOK: true},
		{model: "gpt-4omega", wantOK: false},
		{model: "claude-3-haiku", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got, ok := table.Lookup(tt.model)
			if ok != tt.wantOK {
				t.Fatalf("Lookup(%q) ok = %v, want %v", tt.model, ok, tt.wantOK)
			}
			if ok && got != table[tt.want] {
				t.Errorf("Lookup(%q) = %v, want the %s price", tt.model, got, tt.want)
			}
		})
	}
}

func TestTable_Merge(t *testing.T) {
	base := DefaultTable()
	merged := base.Merge(Table{
		"gpt-4o-mini": {InputCostPerMillion: 1, OutputCostPerMillion: 2},
		"local-llm":   {},
	})

	if merged["gpt-4o-mini"].InputCostPerMillion != 1 {
		t.Errorf("override not applied: %v", merged["gpt-4o-mini"])
	}
	if _, ok := merged["local-llm"]; !ok {
		t.Error("new model not added")
	}
	if base["gpt-4o-mini"].InputCostPerMillion != 0.15 {
		t.Error("Merge modified the receiver")
	}
	if got := Table(nil).Merge(Table{"x": {}}); len(got) != 1 {
		t.Errorf("merge into nil table = %v", got)
	}
}

func TestTable_Estimate(t *testing.T) {
	table := Table{"gpt-4o-mini": {InputCostPerMillion: 0.15, OutputCostPerMillion: 0.60}}

	est := table.Estimate(map[string]ai.Usage{
		"gpt-4o-mini-2024-07-18": {PromptTokens: 2_000_000, CompletionTokens: 1_000_000},
		"mystery-b":              {PromptTokens: 10},
		"mystery-a":              {PromptTokens: 10},
	})

	if !almostEqual(est.Total, 0.90) {
		t.Errorf("Total = %v, want 0.90", est.Total)
	}
	if len(est.ByModel) != 1 {
		t.Errorf("ByModel = %v", est.ByModel)
	}
	if len(est.Unpriced) != 2 || est.Unpriced[0] != "mystery-a" || est.Unpriced[1] != "mystery-b" {
		t.Errorf("Unpriced = %v, want sorted unknown models", est.Unpriced)
	}
	if got, want := est.String(), "$0.9000 (unpriced: mystery-a, mystery-b)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestEstimate_StringWithoutUnpriced(t *testing.T) {
	if got := (Estimate{Total: 0.00123}).String(); got != "$0.0012" {
		t.Errorf("String() = %q", got)
	}
}
