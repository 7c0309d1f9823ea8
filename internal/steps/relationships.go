package steps

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/leofalp/graphyte/internal/artifact"
	"github.com/leofalp/graphyte/internal/fanout"
	"github.com/leofalp/graphyte/internal/schema"
	"github.com/leofalp/graphyte/internal/utils"
)

// Stage ids of the relationship stages.
const (
	StageRelationshipTypes     = "06_relationship_identifier"
	StageRelationshipInstances = "06b_relationship_instance_extractor"
)

// topicsPerSubDomain bounds the topics listed per sub-domain in the
// relationship context.
const topicsPerSubDomain = 3

var (
	relationshipStage = stage{
		id:           StageRelationshipTypes,
		agent:        "RelationshipTypeIdentifierAgent",
		schemaName:   "SingleEntityTypeRelationshipSchema",
		schema:       schema.SingleEntityTypeRelationshipSchema(),
		instructions: relationshipInstructions,
	}
	relationshipInstanceStage = stage{
		id:           StageRelationshipInstances,
		agent:        "RelationshipInstanceExtractorAgent",
		schemaName:   "RelationshipInstanceExtractorSchema",
		schema:       schema.RelationshipInstanceExtractorSchema(),
		instructions: relationshipInstanceInstructions,
	}
)

// RelationshipTypes identifies relationship types with one concurrent call
// per unique entity type.
func (r *Runner) RelationshipTypes(ctx context.Context, doc string, domain *schema.DomainResult, subs *schema.SubDomainSet, topics *schema.TopicMap, entities *schema.ConceptTypeSet) (result *schema.RelationshipTypeMap, err error) {
	err = r.guard(ctx, StageRelationshipTypes, func(ctx context.Context) error {
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
		focus := uniqueSorted(entities.Names())
		if len(focus) == 0 {
			return precondition("no entity types identified")
		}
		primary := strings.TrimSpace(domain.Domain)
		model := r.models(relationshipStage.modelKey())

		branches := make([]fanout.Branch[schema.EntityRelationships], len(focus))
		for i, entityType := range focus {
			var cb contextBuilder
			cb.line("Primary domain: %s", primary)
			cb.list("Sub-domains", names)
			cb.topics(topics, topicsPerSubDomain)
			cb.list("Entity types", focus)
			cb.line("Focus entity type: %s", entityType)
			prompt := cb.prompt(doc)
			branches[i] = fanout.Branch[schema.EntityRelationships]{
				Key: entityType,
				Run: func(ctx context.Context) (schema.EntityRelationships, error) {
					answer, _, err := ask[schema.EntityRelationships](ctx, r, relationshipStage, relationshipStage.modelKey(), prompt)
					if err != nil {
						return answer, err
					}
					answer.EntityTypeFocus = r.reconcile(ctx, StageRelationshipTypes, "entity_type_focus", answer.EntityTypeFocus, entityType, true)
					kept := answer.IdentifiedRelationships[:0]
					for _, rel := range answer.IdentifiedRelationships {
						if rel.RelationshipType = strings.TrimSpace(rel.RelationshipType); rel.RelationshipType != "" {
							kept = append(kept, rel)
						}
					}
					answer.IdentifiedRelationships = kept
					return answer, nil
				},
			}
		}

		succeeded := fanout.Succeeded(fanout.Gather(ctx, r.fanout("step6a_relationships"), branches))
		if len(succeeded) == 0 {
			return fmt.Errorf("relationship identification failed for all %d entity types", len(focus))
		}
		entries := make([]schema.EntityRelationships, len(succeeded))
		for i, res := range succeeded {
			entries[i] = res.Value
		}

		var (
			targets []scoreTarget
			index   [][2]int
		)
		for i, entry := range entries {
			for j, rel := range entry.IdentifiedRelationships {
				targets = append(targets, scoreTarget{
					label:    "Relationship type",
					item:     rel.RelationshipType,
					dims:     []schema.ScoreDimension{schema.Relevance},
					existing: schema.Scores{Relevance: rel.RelevanceScore},
				})
				index = append(index, [2]int{i, j})
			}
		}
		for k, s := range r.score(ctx, StageRelationshipTypes, doc, targets) {
			entries[index[k][0]].IdentifiedRelationships[index[k][1]].RelevanceScore = s.Relevance
		}
		for i := range entries {
			if entries[i].IdentifiedRelationships == nil {
				entries[i].IdentifiedRelationships = []schema.RelationshipType{}
			}
		}

		rels := schema.RelationshipTypeMap{
			PrimaryDomain:          primary,
			AnalyzedSubDomains:     slices.Clone(names),
			AnalyzedEntityTypes:    focus,
			EntityRelationshipsMap: entries,
			AnalysisSummary:        utils.Ptr(fmt.Sprintf("Generated relationships in parallel focusing on %d entity types (out of %d attempted).", len(entries), len(focus))),
		}
		r.persist(ctx, StageRelationshipTypes, artifact.Relationships, rels,
			details(doc, relationshipStage, model, schema.RelationshipSchemaName,
				schema.Field{Key: "entity_types_attempted", Value: len(focus)},
				schema.Field{Key: "entity_types_successfully_processed", Value: fanout.Keys(succeeded)},
				schema.Field{Key: "execution_mode", Value: "parallel"},
			),
			"Generated by "+relationshipStage.agent+" in parallel, one call per entity type.")

		if len(targets) == 0 {
			return empty("no relationship types identified across %d entity types", len(entries))
		}
		result = &rels
		return nil
	})
	return result, err
}

// RelationshipInstances extracts subject-relationship-object triples for the
// types identified in rels. Entity mentions, when present, are passed as
// extra context only.
func (r *Runner) RelationshipInstances(ctx context.Context, doc string, domain *schema.DomainResult, subs *schema.SubDomainSet, rels *schema.RelationshipTypeMap, entities *schema.InstanceSet) (result *schema.RelationshipInstanceSet, err error) {
	st := relationshipInstanceStage
	err = r.guard(ctx, st.id, func(ctx context.Context) error {
		if domain == nil || strings.TrimSpace(domain.Domain) == "" {
			return precondition("primary domain was not identified")
		}
		names := subs.Names()
		if len(names) == 0 {
			return precondition("no sub-domains available")
		}
		relTypes := uniqueSorted(rels.Types())
		if len(relTypes) == 0 {
			return precondition("no relationship types identified")
		}
		primary := strings.TrimSpace(domain.Domain)

		var cb contextBuilder
		cb.line("Primary domain: %s", primary)
		cb.list("Sub-domains", names)
		cb.list("Relationship types", relTypes)
		if entities != nil && len(entities.Instances) > 0 {
			cb.line("Entity mentions:")
			for _, in := range entities.Instances {
				cb.line("  - %s (%s)", in.TextSpan, in.Type)
			}
		}
		answer, model, err := ask[schema.RelationshipInstanceSet](ctx, r, st, st.modelKey(), cb.prompt(doc))
		if err != nil {
			return err
		}

		answer.PrimaryDomain = r.reconcile(ctx, st.id, "primary_domain", answer.PrimaryDomain, primary, false)
		answer.AnalyzedSubDomains = r.reconcileList(ctx, st.id, "analyzed_sub_domains", answer.AnalyzedSubDomains, names)
		answer.AnalysisSummary = trimSummary(answer.AnalysisSummary)
		kept := answer.IdentifiedInstances[:0]
		for _, in := range answer.IdentifiedInstances {
			in.Subject = strings.TrimSpace(in.Subject)
			in.Object = strings.TrimSpace(in.Object)
			in.RelationshipType = strings.TrimSpace(in.RelationshipType)
			if in.Subject == "" || in.Object == "" || in.RelationshipType == "" {
				continue
			}
			kept = append(kept, in)
		}
		answer.IdentifiedInstances = kept

		targets := make([]scoreTarget, len(kept))
		for i, in := range kept {
			targets[i] = scoreTarget{
				label:    "Relationship",
				item:     fmt.Sprintf("%s %s %s", in.Subject, in.RelationshipType, in.Object),
				dims:     schema.AllDimensions,
				existing: in.GetScores(),
			}
		}
		for i, s := range r.score(ctx, st.id, doc, targets) {
			answer.IdentifiedInstances[i].SetScores(s)
		}
		if answer.IdentifiedInstances == nil {
			answer.IdentifiedInstances = []schema.RelationshipInstance{}
		}

		r.persist(ctx, st.id, artifact.RelationshipInstance, answer,
			details(doc, st, model, schema.RelationshipInstanceSchemaName,
				schema.Field{Key: "relationship_types_in_context", Value: len(relTypes)},
			),
			"Generated by "+st.agent+" after scoring in Step 6b.")

		if len(answer.IdentifiedInstances) == 0 {
			return empty("no relationship instances extracted")
		}
		result = &answer
		return nil
	})
	return result, err
}

func uniqueSorted(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func trimSummary(s *string) *string {
	if s == nil {
		return nil
	}
	return schema.Summary(strings.TrimSpace(*s))
}
