package schema

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Instance is one mention of a concept type in the document.
type Instance struct {
	Type            string
	TextSpan        string
	StartChar       *int
	EndChar         *int
	ConfidenceScore *float64
	RelevanceScore  *float64
	ClarityScore    *float64
}

func (in Instance) fields(spec KindSpec) Fields {
	return Fields{
		{spec.TypeField, in.Type},
		{"text_span", in.TextSpan},
		{"start_char", in.StartChar},
		{"end_char", in.EndChar},
		{"confidence_score", in.ConfidenceScore},
		{"relevance_score", in.RelevanceScore},
		{"clarity_score", in.ClarityScore},
	}
}

func decodeInstance(spec KindSpec, item rawObject) (Instance, error) {
	var in Instance
	var err error
	if in.Type, err = item.string(spec.TypeField); err != nil {
		return in, err
	}
	if in.TextSpan, err = item.string("text_span"); err != nil {
		return in, err
	}
	for key, dst := range map[string]**int{"start_char": &in.StartChar, "end_char": &in.EndChar} {
		if err := item.decode(key, dst); err != nil {
			return in, err
		}
	}
	for key, dst := range map[string]**float64{
		"confidence_score": &in.ConfidenceScore,
		"relevance_score":  &in.RelevanceScore,
		"clarity_score":    &in.ClarityScore,
	} {
		if err := item.decode(key, dst); err != nil {
			return in, err
		}
	}
	return in, nil
}

// InstanceSet is the output of a stage 5 extractor.
type InstanceSet struct {
	Kind               Kind
	PrimaryDomain      string
	AnalyzedSubDomains []string
	AnalyzedTypes      []string
	Instances          []Instance
	AnalysisSummary    string
}

// Fields returns the ordered JSON object of s.
func (s InstanceSet) Fields() Fields {
	spec := s.Kind.Spec()
	return Fields{
		{"primary_domain", s.PrimaryDomain},
		{"analyzed_sub_domains", nonNil(s.AnalyzedSubDomains)},
		{spec.AnalyzedField, nonNil(s.AnalyzedTypes)},
		{"identified_instances", instanceFields(spec, s.Instances)},
		{"analysis_summary", nullable(s.AnalysisSummary)},
	}
}

func instanceFields(spec KindSpec, instances []Instance) []Fields {
	out := make([]Fields, 0, len(instances))
	for _, in := range instances {
		out = append(out, in.fields(spec))
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (s InstanceSet) MarshalJSON() ([]byte, error) {
	if !s.Kind.Valid() {
		return nil, fmt.Errorf("schema: instance set has unknown kind %q", string(s.Kind))
	}
	return s.Fields().MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler. Kind is inferred from the
// analyzed_<kind>_types key, or from the type key of the first instance.
func (s *InstanceSet) UnmarshalJSON(data []byte) error {
	var obj rawObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	var items []rawObject
	if err := obj.decode("identified_instances", &items); err != nil {
		return err
	}

	kind := s.Kind
	if kind == "" {
		kind = inferInstanceKind(obj, items)
	}
	if !kind.Valid() {
		return errors.New("schema: cannot tell the concept kind of the instance set")
	}
	spec := kind.Spec()

	out := InstanceSet{Kind: kind}
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
	if err := obj.decode(spec.AnalyzedField, &out.AnalyzedTypes); err != nil {
		return err
	}
	for i, item := range items {
		in, err := decodeInstance(spec, item)
		if err != nil {
			return fmt.Errorf("identified_instances[%d]: %w", i, err)
		}
		out.Instances = append(out.Instances, in)
	}

	*s = out
	return nil
}

func inferInstanceKind(obj rawObject, items []rawObject) Kind {
	for _, k := range Kinds {
		if _, ok := obj[k.Spec().AnalyzedField]; ok {
			return k
		}
	}
	if len(items) == 0 {
		return ""
	}
	for _, k := range Kinds {
		if _, ok := items[0][k.Spec().TypeField]; ok {
			return k
		}
	}
	return ""
}
