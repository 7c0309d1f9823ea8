package steps

import (
	"context"
	"strings"

	"github.com/leofalp/graphyte/internal/aggregate"
	"github.com/leofalp/graphyte/internal/artifact"
	"github.com/leofalp/graphyte/internal/schema"
)

// StageAggregate is the stage id of the aggregator.
const StageAggregate = "06c_aggregated_instances"

var aggregateStage = stage{id: StageAggregate, agent: "InstanceAggregator"}

// Aggregate merges every instance list of the run and persists the result.
// It makes no model calls; absent sources yield empty lists.
func (r *Runner) Aggregate(ctx context.Context, doc string, in aggregate.Inputs) (result *schema.AggregatedInstances, err error) {
	err = r.guard(ctx, StageAggregate, func(ctx context.Context) error {
		if in.Domain == nil || strings.TrimSpace(in.Domain.Domain) == "" {
			return precondition("primary domain was not identified")
		}
		if len(in.SubDomains.Names()) == 0 {
			return precondition("no sub-domains available")
		}

		merged := aggregate.Aggregate(in)
		present := make([]string, 0, len(schema.Kinds)+1)
		for _, kind := range schema.Kinds {
			if in.Instances[kind] != nil {
				present = append(present, string(kind))
			}
		}
		if in.Relationships != nil {
			present = append(present, "relationship")
		}

		r.persist(ctx, StageAggregate, artifact.Aggregated, merged,
			details(doc, aggregateStage, "N/A", schema.ExtractedInstancesSchemaName,
				schema.Field{Key: "sources_present", Value: present},
				schema.Field{Key: "total_instances", Value: merged.Len()},
			),
			"Aggregated locally from the instance extractor outputs; no model call.")
		result = &merged
		return nil
	})
	return result, err
}
