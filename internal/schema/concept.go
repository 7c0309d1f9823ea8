package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ConceptType is one identified type of a concept kind.
type ConceptType struct {
	Type           string
	RelevanceScore *float64
}

// ConceptTypeSet is the output of a stage 4 identifier. Its JSON keys depend
// on Kind; decoding infers Kind from the list key when it is not preset.
type ConceptTypeSet struct {
	Kind               Kind
	PrimaryDomain      string
	AnalyzedSubDomains []string
	Items              []ConceptType
	AnalysisSummary    string
}

// Names returns the trimmed, non-blank type names in order.
func (s *ConceptTypeSet) Names() []string {
	if s == nil {
		return nil
	}
	var out []string
	for _, item := range s.Items {
		if name := strings.TrimSpace(item.Type); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Fields returns the ordered JSON object of s.
func (s ConceptTypeSet) Fields() Fields {
	spec := s.Kind.Spec()
	items := make([]Fields, 0, len(s.Items))
	for _, item := range s.Items {
		items = append(items, Fields{
			{spec.TypeField, item.Type},
			{"relevance_score", item.RelevanceScore},
		})
	}
	return Fields{
		{"primary_domain", s.PrimaryDomain},
		{"analyzed_sub_domains", nonNil(s.AnalyzedSubDomains)},
		{spec.ListField, items},
		{"analysis_summary", nullable(s.AnalysisSummary)},
	}
}

// MarshalJSON implements json.Marshaler.
func (s ConceptTypeSet) MarshalJSON() ([]byte, error) {
	if !s.Kind.Valid() {
		return nil, fmt.Errorf("schema: concept type set has unknown kind %q", string(s.Kind))
	}
	return s.Fields().MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *ConceptTypeSet) UnmarshalJSON(data []byte) error {
	var obj rawObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	kind := s.Kind
	if kind == "" {
		for _, k := range Kinds {
			if _, ok := obj[k.Spec().ListField]; ok {
				kind = k
				break
			}
		}
	}
	if !kind.Valid() {
		return errors.New("schema: no identified concept type list")
	}
	spec := kind.Spec()

	out := ConceptTypeSet{Kind: kind}
	var err error
	if out.PrimaryDomain, err = obj.string("primary_domain"); err != nil {
		return err
	}
	if out.AnalysisSummary, err = obj.string("analysis_summary"); err != nil {
		return err
	}
	if err := obj.decode("analyzed_sub_domains", &out.AnalyzedSubDomains); err != nil {
		return err
	}

	var items []rawObject
	if err := obj.decode(spec.ListField, &items); err != nil {
		return err
	}
	for i, item := range items {
		name, err := item.string(spec.TypeField)
		if err != nil {
			return fmt.Errorf("%s[%d]: %w", spec.ListField, i, err)
		}
		ct := ConceptType{Type: name}
		if err := item.decode("relevance_score", &ct.RelevanceScore); err != nil {
			return fmt.Errorf("%s[%d]: %w", spec.ListField, i, err)
		}
		out.Items = append(out.Items, ct)
	}

	*s = out
	return nil
}
