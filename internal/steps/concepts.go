package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/leofalp/graphyte/internal/artifact"
	"github.com/leofalp/graphyte/internal/schema"
)

func typeStage(kind schema.Kind) stage {
	spec := kind.Spec()
	return stage{
		id:           kind.TypeStage(),
		agent:        spec.Title + "TypeIdentifierAgent",
		schemaName:   kind.TypeSchemaName(),
		schema:       schema.TypeIdentifierSchema(kind),
		instructions: typeInstructions(spec),
	}
}

// ConceptTypes identifies the types of one concept kind, given the domain,
// sub-domain and topic context. A set with no types is persisted and
// reported as ErrEmpty.
func (r *Runner) ConceptTypes(ctx context.Context, kind schema.Kind, doc string, domain *schema.DomainResult, subs *schema.SubDomainSet, topics *schema.TopicMap) (result *schema.ConceptTypeSet, err error) {
	st := typeStage(kind)
	err = r.guard(ctx, st.id, func(ctx context.Context) error {
		if domain == nil || strings.TrimSpace(domain.Domain) == "" {
			return precondition("primary domain was not identified")
		}
		names := subs.Names()
		if len(names) == 0 {
			return precondition("no sub-domains available")
		}
		if topics == nil || len(topics.SubDomainTopicMap) == 0 {
			return precondition("no topics available")
		}
		primary := strings.TrimSpace(domain.Domain)

		var cb contextBuilder
		cb.line("Primary domain: %s", primary)
		cb.list("Sub-domains", names)
		cb.topics(topics, 0)
		answer, model, err := ask[schema.ConceptTypeSet](ctx, r, st, st.modelKey(), cb.prompt(doc))
		if err != nil {
			return err
		}
		if answer.Kind != kind {
			return fmt.Errorf("answer lists %s types, want %s types", answer.Kind, kind)
		}

		answer.PrimaryDomain = r.reconcile(ctx, st.id, "primary_domain", answer.PrimaryDomain, primary, false)
		answer.AnalyzedSubDomains = r.reconcileList(ctx, st.id, "analyzed_sub_domains", answer.AnalyzedSubDomains, names)
		kept := answer.Items[:0]
		for _, item := range answer.Items {
			if item.Type = strings.TrimSpace(item.Type); item.Type != "" {
				kept = append(kept, item)
			}
		}
		answer.Items = kept

		spec := kind.Spec()
		targets := make([]scoreTarget, len(kept))
		for i, item := range kept {
			targets[i] = scoreTarget{
				label:    spec.Title + " type",
				item:     item.Type,
				dims:     []schema.ScoreDimension{schema.Relevance},
				existing: schema.Scores{Relevance: item.RelevanceScore},
			}
		}
		for i, s := range r.score(ctx, st.id, doc, targets) {
			answer.Items[i].RelevanceScore = s.Relevance
		}

		r.persist(ctx, st.id, artifact.TypeLocation(kind), answer,
			details(doc, st, model, kind.TypeSchemaName(),
				schema.Field{Key: "sub_domains_in_context", Value: len(names)},
				schema.Field{Key: "topics_in_context", Value: topicCount(topics)},
			),
			"Generated by "+st.agent+" after scoring in Step 4"+spec.Letter+".")

		if len(answer.Items) == 0 {
			return empty("no %s identified", spec.Singular+"s")
		}
		result = &answer
		return nil
	})
	return result, err
}

func topicCount(topics *schema.TopicMap) int {
	if topics == nil {
		return 0
	}
	n := 0
	for _, entry := range topics.SubDomainTopicMap {
		n += len(entry.IdentifiedTopics)
	}
	return n
}
