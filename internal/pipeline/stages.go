package pipeline

import (
	"github.com/leofalp/graphyte/internal/schema"
	"github.com/leofalp/graphyte/internal/steps"
)

// ParamKind is the node parameter naming the concept kind of a per-kind
// stage.
const ParamKind = "kind"

// Stage is one node of the workflow.
type Stage struct {
	ID    string
	Label string
	// Hard lists stages that must complete with a result first.
	Hard []string
	// Soft lists stages that must finish first but may be absent.
	Soft []string
	// Params is handed to the stage executor as NodeInput.Params.
	Params map[string]any
}

func kindParams(kind schema.Kind) map[string]any {
	return map[string]any{ParamKind: kind}
}

// Stages returns the workflow in execution order.
func Stages() []Stage {
	core := []string{steps.StageDomain, steps.StageSubDomains}
	withTopics := append(clone(core), steps.StageTopics)

	stages := []Stage{
		{ID: steps.StageDomain, Label: "Domain"},
		{ID: steps.StageSubDomains, Label: "Sub-domains", Hard: []string{steps.StageDomain}},
		{ID: steps.StageTopics, Label: "Topics", Hard: clone(core)},
	}
	for _, kind := range schema.Kinds {
		stages = append(stages, Stage{
			ID:     kind.TypeStage(),
			Label:  kind.Spec().Title + " types",
			Hard:   clone(withTopics),
			Params: kindParams(kind),
		})
	}
	for _, kind := range schema.Kinds {
		stages = append(stages, Stage{
			ID:     kind.InstanceStage(),
			Label:  kind.Spec().Title + " instances",
			Hard:   append(clone(core), kind.TypeStage()),
			Params: kindParams(kind),
		})
	}

	aggregateSoft := make([]string, 0, len(schema.Kinds)+1)
	for _, kind := range schema.Kinds {
		aggregateSoft = append(aggregateSoft, kind.InstanceStage())
	}
	aggregateSoft = append(aggregateSoft, steps.StageRelationshipInstances)

	return append(stages,
		Stage{
			ID:    steps.StageRelationshipTypes,
			Label: "Relationship types",
			Hard:  append(clone(withTopics), schema.Entity.TypeStage()),
		},
		Stage{
			ID:    steps.StageRelationshipInstances,
			Label: "Relationship instances",
			Hard:  append(clone(core), steps.StageRelationshipTypes),
			Soft:  []string{schema.Entity.InstanceStage()},
		},
		Stage{
			ID:    steps.StageAggregate,
			Label: "Aggregated instances",
			Hard:  clone(core),
			Soft:  aggregateSoft,
		},
	)
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}
