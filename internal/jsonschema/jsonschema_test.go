package jsonschema

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var out any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("bad fixture %q: %v", raw, err)
	}
	return out
}

func topicSchema() *Schema {
	return Object("topics",
		Field("primary_domain", String("domain")),
		Field("identified_topics", Array("topics", Object("topic",
			Field("topic", String("name")),
			OptionalField("relevance_score", Score("relevance")),
		))),
		OptionalField("analysis_summary", String("summary")),
	)
}

func TestObject_RequiredKeepsDeclarationOrder(t *testing.T) {
	s := topicSchema()
	if got := strings.Join(s.Required, ","); got != "primary_domain,identified_topics" {
		t.Errorf("Required = %q", got)
	}
	if len(s.Properties) != 3 {
		t.Errorf("expected 3 properties, got %d", len(s.Properties))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantErr  bool
		contains string
	}{
		{
			name:  "valid with optional fields",
			input: `{"primary_domain":"Business","identified_topics":[{"topic":"M&A","relevance_score":0.9}],"analysis_summary":"ok"}`,
		},
		{
			name:  "optional null is accepted",
			input: `{"primary_domain":"Business","identified_topics":[{"topic":"M&A","relevance_score":null}]}`,
		},
		{
			name:     "missing required",
			input:    `{"identified_topics":[]}`,
			wantErr:  true,
			contains: `missing required property "primary_domain"`,
		},
		{
			name:     "wrong nested type",
			input:    `{"primary_domain":"B","identified_topics":[{"topic":7}]}`,
			wantErr:  true,
			contains: "$.identified_topics[0].topic: expected string",
		},
		{
			name:     "score out of range",
			input:    `{"primary_domain":"B","identified_topics":[{"topic":"x","relevance_score":1.5}]}`,
			wantErr:  true,
			contains: "above maximum",
		},
		{
			name:     "not an object",
			input:    `[1,2]`,
			wantErr:  true,
			contains: "expected object, got array",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := topicSchema().Validate(decode(t, tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.contains)
			}
		})
	}
}

func TestValidate_ClosedObjectRejectsUnknownKeys(t *testing.T) {
	s := Object("closed", Field("a", String("")))
	s.AdditionalProperties = false

	if err := s.Validate(decode(t, `{"a":"x","b":1}`)); err == nil {
		t.Fatal("expected unexpected-property error")
	}
	s.AdditionalProperties = nil
	if err := s.Validate(decode(t, `{"a":"x","b":1}`)); err != nil {
		t.Fatalf("open object should accept unknown keys: %v", err)
	}
}

func TestValidate_IntegerAndEnum(t *testing.T) {
	s := Object("", Field("n", Integer("")), Field("k", &Schema{Type: "string", Enum: []any{"a", "b"}}))

	if err := s.Validate(decode(t, `{"n":3,"k":"a"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := s.Validate(decode(t, `{"n":3.5,"k":"c"}`))
	if err == nil {
		t.Fatal("expected error")
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) || len(vErr.Problems) != 2 {
		t.Fatalf("expected 2 problems, got %v", err)
	}
}

func TestValidate_NilSchema(t *testing.T) {
	var s *Schema
	if err := s.Validate(map[string]any{}); !errors.Is(err, ErrNilSchema) {
		t.Fatalf("expected ErrNilSchema, got %v", err)
	}
}

func TestJsonString(t *testing.T) {
	out, err := Object("d", Field("x", Number(""))).JsonString()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"required":["x"]`) {
		t.Errorf("unexpected schema json: %s", out)
	}
}
