package steps

import (
	"context"
	"errors"
	"strings"

	"github.com/leofalp/graphyte/internal/artifact"
	"github.com/leofalp/graphyte/internal/schema"
	"github.com/leofalp/graphyte/providers/observability"
)

// StageDomain is the stage id of the domain identifier.
const StageDomain = "01_domain_identifier"

var domainStage = stage{
	id:           StageDomain,
	agent:        "DomainIdentifierAgent",
	schemaName:   "DomainSchema",
	schema:       schema.DomainSchema(),
	instructions: domainInstructions,
}

// Domain identifies the primary domain of doc and scores it.
func (r *Runner) Domain(ctx context.Context, doc string) (result *schema.DomainResult, err error) {
	err = r.guard(ctx, StageDomain, func(ctx context.Context) error {
		if strings.TrimSpace(doc) == "" {
			return precondition("input is empty")
		}

		answer, model, err := ask[schema.DomainResult](ctx, r, domainStage, domainStage.modelKey(), document(doc))
		if err != nil {
			return err
		}
		answer.Domain = strings.TrimSpace(answer.Domain)
		if answer.Domain == "" {
			return errors.New("model returned a blank domain")
		}
		r.observer.Info(ctx, "primary domain identified",
			observability.String(observability.AttrStage, StageDomain),
			observability.String("domain", answer.Domain),
		)

		scores := r.score(ctx, StageDomain, doc, []scoreTarget{{
			label:    "Domain",
			item:     answer.Domain,
			dims:     schema.AllDimensions,
			existing: answer.GetScores(),
		}})
		answer.SetScores(scores[0])

		r.persist(ctx, StageDomain, artifact.Domain, answer,
			details(doc, domainStage, model, schema.DomainResultSchemaName),
			"Generated by "+domainStage.agent+" after scoring in Step 1.")
		result = &answer
		return nil
	})
	return result, err
}
