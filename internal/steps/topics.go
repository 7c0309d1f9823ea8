package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/leofalp/graphyte/internal/artifact"
	"github.com/leofalp/graphyte/internal/fanout"
	"github.com/leofalp/graphyte/internal/schema"
	"github.com/leofalp/graphyte/internal/utils"
)

// StageTopics is the stage id of the topic identifier.
const StageTopics = "03_topic_identifier"

var topicStage = stage{
	id:           StageTopics,
	agent:        "TopicIdentifierAgent",
	schemaName:   "SingleSubDomainTopicSchema",
	schema:       schema.SingleSubDomainTopicSchema(),
	instructions: topicInstructions,
}

// Topics identifies the topics of every sub-domain with one concurrent call
// per sub-domain. Failed branches are left out of the map; the stage fails
// only when every branch failed.
func (r *Runner) Topics(ctx context.Context, doc string, domain *schema.DomainResult, subs *schema.SubDomainSet) (result *schema.TopicMap, err error) {
	err = r.guard(ctx, StageTopics, func(ctx context.Context) error {
		if domain == nil || strings.TrimSpace(domain.Domain) == "" {
			return precondition("primary domain was not identified")
		}
		names := subs.Names()
		if len(names) == 0 {
			return precondition("no sub-domains to analyze")
		}
		primary := strings.TrimSpace(domain.Domain)
		model := r.models(topicStage.modelKey())

		branches := make([]fanout.Branch[schema.SubDomainTopics], len(names))
		for i, name := range names {
			var cb contextBuilder
			cb.line("Primary domain: %s", primary)
			cb.line("Sub-domain to analyze: %s", name)
			prompt := cb.prompt(doc)
			branches[i] = fanout.Branch[schema.SubDomainTopics]{
				Key: name,
				Run: func(ctx context.Context) (schema.SubDomainTopics, error) {
					answer, _, err := ask[schema.SubDomainTopics](ctx, r, topicStage, topicStage.modelKey(), prompt)
					if err != nil {
						return answer, err
					}
					answer.SubDomain = r.reconcile(ctx, StageTopics, "sub_domain", answer.SubDomain, name, true)
					kept := answer.IdentifiedTopics[:0]
					for _, t := range answer.IdentifiedTopics {
						if t.Topic = strings.TrimSpace(t.Topic); t.Topic != "" {
							kept = append(kept, t)
						}
					}
					answer.IdentifiedTopics = kept
					return answer, nil
				},
			}
		}

		results := fanout.Gather(ctx, r.fanout("step3_topics"), branches)
		succeeded := fanout.Succeeded(results)
		if len(succeeded) == 0 {
			return fmt.Errorf("topic identification failed for all %d sub-domains", len(names))
		}

		entries := make([]schema.SubDomainTopics, len(succeeded))
		for i, res := range succeeded {
			entries[i] = res.Value
		}

		var (
			targets []scoreTarget
			index   [][2]int
			total   int
		)
		for i, entry := range entries {
			for j, t := range entry.IdentifiedTopics {
				targets = append(targets, scoreTarget{label: "Topic", item: t.Topic, dims: schema.AllDimensions, existing: t.GetScores()})
				index = append(index, [2]int{i, j})
			}
			total += len(entry.IdentifiedTopics)
		}
		for k, s := range r.score(ctx, StageTopics, doc, targets) {
			entries[index[k][0]].IdentifiedTopics[index[k][1]].SetScores(s)
		}
		for i := range entries {
			if entries[i].IdentifiedTopics == nil {
				entries[i].IdentifiedTopics = []schema.Topic{}
			}
		}

		topics := schema.TopicMap{
			PrimaryDomain:     primary,
			SubDomainTopicMap: entries,
			AnalysisSummary:   utils.Ptr(fmt.Sprintf("Generated topics in parallel for %d sub-domains (out of %d attempted).", len(entries), len(names))),
		}
		r.persist(ctx, StageTopics, artifact.Topics, topics,
			details(doc, topicStage, model, schema.TopicSchemaName,
				schema.Field{Key: "sub_domains_attempted", Value: len(names)},
				schema.Field{Key: "sub_domains_successfully_processed", Value: fanout.Keys(succeeded)},
				schema.Field{Key: "execution_mode", Value: "parallel"},
			),
			"Generated by "+topicStage.agent+" in parallel, one call per sub-domain.")

		if total == 0 {
			return empty("no topics identified across %d sub-domains", len(entries))
		}
		result = &topics
		return nil
	})
	return result, err
}
