package steps

import (
	"context"
	"strings"

	"github.com/leofalp/graphyte/internal/artifact"
	"github.com/leofalp/graphyte/internal/schema"
)

// StageSubDomains is the stage id of the sub-domain identifier.
const StageSubDomains = "02_sub_domain_identifier"

var subDomainStage = stage{
	id:           StageSubDomains,
	agent:        "SubDomainIdentifierAgent",
	schemaName:   "SubDomainIdentifierSchema",
	schema:       schema.SubDomainIdentifierSchema(),
	instructions: subDomainInstructions,
}

// SubDomains identifies the sub-domains of the primary domain. Blank entries
// are dropped; when none remain the artifact is still written and ErrEmpty
// is returned.
func (r *Runner) SubDomains(ctx context.Context, doc string, domain *schema.DomainResult) (result *schema.SubDomainSet, err error) {
	err = r.guard(ctx, StageSubDomains, func(ctx context.Context) error {
		if domain == nil || strings.TrimSpace(domain.Domain) == "" {
			return precondition("primary domain was not identified")
		}
		primary := strings.TrimSpace(domain.Domain)

		var cb contextBuilder
		cb.line("Primary domain: %s", primary)
		answer, model, err := ask[schema.SubDomainSet](ctx, r, subDomainStage, subDomainStage.modelKey(), cb.prompt(doc))
		if err != nil {
			return err
		}

		answer.PrimaryDomain = r.reconcile(ctx, StageSubDomains, "primary_domain", answer.PrimaryDomain, primary, false)
		kept := answer.IdentifiedSubDomains[:0]
		for _, item := range answer.IdentifiedSubDomains {
			if item.SubDomain = strings.TrimSpace(item.SubDomain); item.SubDomain != "" {
				kept = append(kept, item)
			}
		}
		answer.IdentifiedSubDomains = kept

		targets := make([]scoreTarget, len(kept))
		for i, item := range kept {
			targets[i] = scoreTarget{label: "Sub-domain", item: item.SubDomain, dims: schema.AllDimensions, existing: item.GetScores()}
		}
		for i, s := range r.score(ctx, StageSubDomains, doc, targets) {
			answer.IdentifiedSubDomains[i].SetScores(s)
		}
		if answer.IdentifiedSubDomains == nil {
			answer.IdentifiedSubDomains = []schema.SubDomain{}
		}

		r.persist(ctx, StageSubDomains, artifact.SubDomains, answer,
			details(doc, subDomainStage, model, schema.SubDomainSchemaName,
				schema.Field{Key: "primary_domain_context", Value: primary}),
			"Generated by "+subDomainStage.agent+" after scoring in Step 2.")

		if len(answer.IdentifiedSubDomains) == 0 {
			return empty("no sub-domains identified for %q", primary)
		}
		result = &answer
		return nil
	})
	return result, err
}
