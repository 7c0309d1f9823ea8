package schema

import "strings"

// Scores are the optional per-item judgements filled by scoring calls.
type Scores struct {
	Confidence *float64
	Relevance  *float64
	Clarity    *float64
}

// DomainResult is the output of stage 1.
type DomainResult struct {
	Domain          string   `json:"domain"`
	ConfidenceScore *float64 `json:"confidence_score"`
	RelevanceScore  *float64 `json:"relevance_score"`
	ClarityScore    *float64 `json:"clarity_score"`
}

// SubDomain is one entry of a SubDomainSet.
type SubDomain struct {
	SubDomain       string   `json:"sub_domain"`
	ConfidenceScore *float64 `json:"confidence_score"`
	RelevanceScore  *float64 `json:"relevance_score"`
	ClarityScore    *float64 `json:"clarity_score"`
}

// SubDomainSet is the output of stage 2.
type SubDomainSet struct {
	PrimaryDomain        string      `json:"primary_domain"`
	IdentifiedSubDomains []SubDomain `json:"identified_sub_domains"`
	AnalysisSummary      *string     `json:"analysis_summary"`
}

// Names returns the trimmed, non-blank sub-domain names in order.
func (s *SubDomainSet) Names() []string {
	if s == nil {
		return nil
	}
	var out []string
	for _, item := range s.IdentifiedSubDomains {
		if name := strings.TrimSpace(item.SubDomain); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Topic is one entry of a SubDomainTopics list.
type Topic struct {
	Topic           string   `json:"topic"`
	ConfidenceScore *float64 `json:"confidence_score"`
	RelevanceScore  *float64 `json:"relevance_score"`
	ClarityScore    *float64 `json:"clarity_score"`
}

// SubDomainTopics is the answer of one stage 3 branch.
type SubDomainTopics struct {
	SubDomain        string  `json:"sub_domain"`
	IdentifiedTopics []Topic `json:"identified_topics"`
}

// TopicMap is the merged output of stage 3.
type TopicMap struct {
	PrimaryDomain     string            `json:"primary_domain"`
	SubDomainTopicMap []SubDomainTopics `json:"sub_domain_topic_map"`
	AnalysisSummary   *string           `json:"analysis_summary"`
}

// RelationshipType is one entry of an EntityRelationships list.
type RelationshipType struct {
	RelationshipType string   `json:"relationship_type"`
	RelevanceScore   *float64 `json:"relevance_score"`
}

// EntityRelationships is the answer of one stage 6a branch.
type EntityRelationships struct {
	EntityTypeFocus         string             `json:"entity_type_focus"`
	IdentifiedRelationships []RelationshipType `json:"identified_relationships"`
}

// RelationshipTypeMap is the merged output of stage 6a.
type RelationshipTypeMap struct {
	PrimaryDomain          string                `json:"primary_domain"`
	AnalyzedSubDomains     []string              `json:"analyzed_sub_domains"`
	AnalyzedEntityTypes    []string              `json:"analyzed_entity_types"`
	EntityRelationshipsMap []EntityRelationships `json:"entity_relationships_map"`
	AnalysisSummary        *string               `json:"analysis_summary"`
}

// Types returns the unique trimmed relationship types across every focus,
// in first-seen order.
func (m *RelationshipTypeMap) Types() []string {
	if m == nil {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, focus := range m.EntityRelationshipsMap {
		for _, rel := range focus.IdentifiedRelationships {
			name := strings.TrimSpace(rel.RelationshipType)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// RelationshipInstance is one subject-relationship-object triple.
type RelationshipInstance struct {
	Subject          string   `json:"subject"`
	RelationshipType string   `json:"relationship_type"`
	Object           string   `json:"object"`
	Snippet          *string  `json:"snippet"`
	ConfidenceScore  *float64 `json:"confidence_score"`
	RelevanceScore   *float64 `json:"relevance_score"`
	ClarityScore     *float64 `json:"clarity_score"`
}

// RelationshipInstanceSet is the output of stage 6b.
type RelationshipInstanceSet struct {
	PrimaryDomain       string                 `json:"primary_domain"`
	AnalyzedSubDomains  []string               `json:"analyzed_sub_domains"`
	IdentifiedInstances []RelationshipInstance `json:"identified_instances"`
	AnalysisSummary     *string                `json:"analysis_summary"`
}

// Summary returns a pointer to s, or nil when s is blank.
func Summary(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
