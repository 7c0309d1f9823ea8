package steps

import (
	"fmt"
	"strings"

	"github.com/leofalp/graphyte/internal/schema"
)

const domainInstructions = `Analyze the provided text and identify the single, most relevant high-level domain.
Examples include Finance, Technology, Healthcare, Arts, Science, Entertainment, Sports, Politics, Education, Environment, Business, Lifestyle and Travel.
The "domain" field must contain one concise label for the dominant subject. If several domains appear, pick the one with the greatest overall coverage.
Output ONLY valid JSON matching the DomainSchema.`

const subDomainInstructions = `You are given a text and its primary domain. Identify the specific sub-domains of that primary domain discussed in the text, and give a brief overall analysis summary.
Echo the primary domain you were given in "primary_domain".
Output ONLY valid JSON matching the SubDomainIdentifierSchema.`

const topicInstructions = `You are given a text, its primary domain and ONE sub-domain. Analyze the full text and identify the specific topics it discusses that fall under that single sub-domain.
Echo the sub-domain you were given in "sub_domain".
Output ONLY valid JSON matching the SingleSubDomainTopicSchema.`

const typeInstructionsTemplate = `Analyze the provided text to identify key %[1]s. %[2]s
You are given the full text and context about its primary domain, sub-domains and topics found by earlier analysis. Use this context to judge which %[3]ss matter most to the subject.
For each identified %[3]s give the classified %[3]s in "%[5]s".
Echo "primary_domain" and "analyzed_sub_domains" from the context and add an overall analysis summary if applicable.
Output ONLY valid JSON with the list of items in "%[4]s".`

const instanceInstructionsTemplate = `Extract every %[1]s from the provided text.
You are given the full text, its primary domain, its sub-domains and the list of %[2]ss to look for.
For each mention give its %[2]s in "%[3]s", the exact text span copied verbatim in "text_span", and its character offsets in "start_char" and "end_char" when you can determine them.
Echo "primary_domain", "analyzed_sub_domains" and "%[4]s" from the context.
Output ONLY valid JSON with the mentions in "identified_instances".`

const relationshipInstructions = `Analyze the provided text and context (domain, sub-domains, topics and entity types) to identify relationships between entities.
You are also given ONE entity type to focus on, for example ORGANIZATION. Identify explicit or strongly implied relationships in which the focus entity type participates.
Examples: WORKS_FOR, LOCATED_IN, ACQUIRED, PARTNERED_WITH, COMPETES_WITH, FOUNDED_BY, MANUFACTURES, USES_TECHNOLOGY.
State each unique relationship type once. Echo the focus entity type in "entity_type_focus".
Output ONLY valid JSON matching the SingleEntityTypeRelationshipSchema.`

const relationshipInstanceInstructions = `Extract subject-object relationships from the provided text.
You are given the full text, its primary domain, its sub-domains, the relationship types to look for and, when available, entity mentions found earlier.
For each relationship mention give "subject", "relationship_type" (one of the provided types), "object" and, optionally, a supporting "snippet" copied from the text.
Echo "primary_domain" and "analyzed_sub_domains" from the context.
Output ONLY valid JSON with the triples in "identified_instances".`

const scoringInstructionsTemplate = `Evaluate the provided %[1]s and assign a numeric %[2]s score between 0.0 and 1.0.
Use the accompanying text to inform your assessment.
Output ONLY JSON with the "%[3]s" field.`

func typeInstructions(spec schema.KindSpec) string {
	return fmt.Sprintf(typeInstructionsTemplate, spec.Description, spec.Constraint, spec.Singular, spec.ListField, spec.TypeField)
}

func instanceInstructions(spec schema.KindSpec) string {
	return fmt.Sprintf(instanceInstructionsTemplate, spec.Mentions, spec.Singular, spec.TypeField, spec.AnalyzedField)
}

var scoredItems = map[schema.ScoreDimension]string{
	schema.Confidence: "classification or extracted item",
	schema.Relevance:  "sub-domain, topic, concept type or relationship type",
	schema.Clarity:    "text, relationship or entity",
}

func scoringInstructions(d schema.ScoreDimension) string {
	return fmt.Sprintf(scoringInstructionsTemplate, scoredItems[d], string(d), d.Field())
}

// document wraps the full text in delimiters.
func document(doc string) string {
	return "--- Full Text Start ---\n" + doc + "\n--- Full Text End ---"
}

// contextBuilder assembles the context summary that precedes the document.
type contextBuilder struct {
	b strings.Builder
}

func (c *contextBuilder) line(format string, args ...any) *contextBuilder {
	fmt.Fprintf(&c.b, format, args...)
	c.b.WriteByte('\n')
	return c
}

func (c *contextBuilder) list(label string, items []string) *contextBuilder {
	if len(items) == 0 {
		return c.line("%s: (none)", label)
	}
	return c.line("%s: %s", label, strings.Join(items, ", "))
}

func (c *contextBuilder) topics(topics *schema.TopicMap, perSubDomain int) *contextBuilder {
	if topics == nil {
		return c
	}
	c.line("Topics by sub-domain:")
	for _, entry := range topics.SubDomainTopicMap {
		names := make([]string, 0, len(entry.IdentifiedTopics))
		for _, t := range entry.IdentifiedTopics {
			if name := strings.TrimSpace(t.Topic); name != "" {
				names = append(names, name)
			}
		}
		more := ""
		if perSubDomain > 0 && len(names) > perSubDomain {
			names, more = names[:perSubDomain], ", ..."
		}
		c.line("  - %s: %s%s", entry.SubDomain, strings.Join(names, ", "), more)
	}
	return c
}

// prompt returns the context summary followed by the document.
func (c *contextBuilder) prompt(doc string) string {
	return c.b.String() + "\n" + document(doc)
}
