package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/leofalp/graphyte/internal/artifact"
	"github.com/leofalp/graphyte/internal/schema"
)

func instanceStage(kind schema.Kind) stage {
	spec := kind.Spec()
	return stage{
		id:           kind.InstanceStage(),
		agent:        spec.Title + "InstanceExtractorAgent",
		schemaName:   kind.InstanceSchemaName(),
		schema:       schema.InstanceExtractorSchema(kind),
		instructions: instanceInstructions(spec),
	}
}

// Instances extracts the mentions of the types in types from doc. Mentions
// with a blank text span are dropped.
func (r *Runner) Instances(ctx context.Context, kind schema.Kind, doc string, domain *schema.DomainResult, subs *schema.SubDomainSet, types *schema.ConceptTypeSet) (result *schema.InstanceSet, err error) {
	st := instanceStage(kind)
	err = r.guard(ctx, st.id, func(ctx context.Context) error {
		if domain == nil || strings.TrimSpace(domain.Domain) == "" {
			return precondition("primary domain was not identified")
		}
		names := subs.Names()
		if len(names) == 0 {
			return precondition("no sub-domains available")
		}
		typeNames := types.Names()
		if len(typeNames) == 0 {
			return precondition("no %ss identified upstream", kind.Spec().Singular)
		}
		if types.Kind != kind {
			return precondition("upstream types are %s types, want %s types", types.Kind, kind)
		}
		primary := strings.TrimSpace(domain.Domain)
		spec := kind.Spec()

		var cb contextBuilder
		cb.line("Primary domain: %s", primary)
		cb.list("Sub-domains", names)
		cb.list(strings.ToUpper(spec.Singular[:1])+spec.Singular[1:]+"s to extract", typeNames)
		answer, model, err := ask[schema.InstanceSet](ctx, r, st, st.modelKey(), cb.prompt(doc))
		if err != nil {
			return err
		}
		if answer.Kind != kind {
			return fmt.Errorf("answer holds %s instances, want %s instances", answer.Kind, kind)
		}

		answer.PrimaryDomain = r.reconcile(ctx, st.id, "primary_domain", answer.PrimaryDomain, primary, false)
		answer.AnalyzedSubDomains = r.reconcileList(ctx, st.id, "analyzed_sub_domains", answer.AnalyzedSubDomains, names)
		answer.AnalyzedTypes = r.reconcileList(ctx, st.id, spec.AnalyzedField, answer.AnalyzedTypes, typeNames)
		kept := answer.Instances[:0]
		for _, in := range answer.Instances {
			if strings.TrimSpace(in.TextSpan) == "" {
				continue
			}
			in.Type = strings.TrimSpace(in.Type)
			kept = append(kept, in)
		}
		answer.Instances = kept

		targets := make([]scoreTarget, len(kept))
		for i, in := range kept {
			targets[i] = scoreTarget{
				label:    spec.Title + " instance (" + in.Type + ")",
				item:     in.TextSpan,
				dims:     schema.AllDimensions,
				existing: in.GetScores(),
			}
		}
		for i, s := range r.score(ctx, st.id, doc, targets) {
			answer.Instances[i].SetScores(s)
		}

		r.persist(ctx, st.id, artifact.InstanceLocation(kind), answer,
			details(doc, st, model, kind.InstanceSchemaName(),
				schema.Field{Key: "types_in_context", Value: len(typeNames)},
			),
			"Generated by "+st.agent+" after scoring in Step 5"+spec.Letter+".")

		if len(answer.Instances) == 0 {
			return empty("no %s mentions extracted", string(kind))
		}
		result = &answer
		return nil
	})
	return result, err
}
