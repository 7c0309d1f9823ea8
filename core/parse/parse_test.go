package parse

import (
	"errors"
	"reflect"
	"testing"

	"github.com/leofalp/graphyte/internal/jsonschema"
)

type domainAnswer struct {
	Domain    string   `json:"domain"`
	Relevance *float64 `json:"relevance_score,omitempty"`
}

func domainSchema() *jsonschema.Schema {
	return jsonschema.Object("domain result",
		jsonschema.Field("domain", jsonschema.String("primary domain")),
		jsonschema.OptionalField("relevance_score", jsonschema.Score("relevance")),
	)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKind Kind
		want     string
	}{
		{
			name:     "strict JSON",
			input:    `{"domain":"Physics"}`,
			wantKind: Typed,
			want:     "Physics",
		},
		{
			name:     "markdown fence",
			input:    "Here you go:\n```json\n{\"domain\": \"Biology\"}\n```",
			wantKind: Validated,
			want:     "Biology",
		},
		{
			name:     "prose around object",
			input:    `The answer is {"domain": "Law"} as requested.`,
			wantKind: Validated,
			want:     "Law",
		},
		{
			name:     "malformed JSON repaired",
			input:    `{domain: 'Economics'}`,
			wantKind: Validated,
			want:     "Economics",
		},
		{
			name:     "schema-wrapped value",
			input:    `{"domain": {"type": "string", "value": "Chemistry"}}`,
			wantKind: Validated,
			want:     "Chemistry",
		},
		{
			name:     "unknown key goes through validation",
			input:    `{"domain":"History","reasoning":"dates"}`,
			wantKind: Validated,
			want:     "History",
		},
		{
			name:     "missing required field",
			input:    `{"relevance_score":0.4}`,
			wantKind: Rejected,
		},
		{
			name:     "score out of bounds",
			input:    `{"domain":"Physics","relevance_score":1.7}`,
			wantKind: Rejected,
		},
		{
			name:     "no JSON at all",
			input:    "I cannot classify this document.",
			wantKind: Rejected,
		},
		{
			name:     "wrong type",
			input:    `{"domain": 42}`,
			wantKind: Rejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode[domainAnswer](tt.input, domainSchema())
			if got.Kind != tt.wantKind {
				t.Fatalf("Decode() kind = %v, want %v (err: %v)", got.Kind, tt.wantKind, got.Err)
			}
			if tt.wantKind == Rejected {
				if !errors.Is(got.Err, ErrRejected) {
					t.Errorf("expected ErrRejected, got %v", got.Err)
				}
				if got.OK() {
					t.Error("rejected result reports OK")
				}
				return
			}
			if got.Err != nil {
				t.Errorf("unexpected error %v", got.Err)
			}
			if got.Value.Domain != tt.want {
				t.Errorf("Decode() domain = %q, want %q", got.Value.Domain, tt.want)
			}
		})
	}
}

func TestDecode_NilSchemaSkipsValidation(t *testing.T) {
	got := Decode[domainAnswer](`{"relevance_score": 3}`, nil)
	if got.Kind != Typed {
		t.Fatalf("kind = %v, err = %v", got.Kind, got.Err)
	}
	if got.Value.Relevance == nil || *got.Value.Relevance != 3 {
		t.Errorf("unexpected value %+v", got.Value)
	}
}

func TestDecodeValue(t *testing.T) {
	t.Run("typed passthrough", func(t *testing.T) {
		got := DecodeValue[domainAnswer](domainAnswer{Domain: "Physics"}, domainSchema())
		if got.Kind != Typed || got.Value.Domain != "Physics" {
			t.Errorf("unexpected result %+v", got)
		}
	})
	t.Run("validated mapping", func(t *testing.T) {
		got := DecodeValue[domainAnswer](map[string]any{"domain": "Physics", "relevance_score": 0.9}, domainSchema())
		if got.Kind != Validated {
			t.Fatalf("kind = %v, err = %v", got.Kind, got.Err)
		}
		if got.Value.Relevance == nil || *got.Value.Relevance != 0.9 {
			t.Errorf("unexpected value %+v", got.Value)
		}
	})
	t.Run("invalid mapping", func(t *testing.T) {
		got := DecodeValue[domainAnswer](map[string]any{"topic": "x"}, domainSchema())
		if got.Kind != Rejected || !errors.Is(got.Err, ErrRejected) {
			t.Errorf("unexpected result %+v", got)
		}
	})
	t.Run("unexpected type", func(t *testing.T) {
		got := DecodeValue[domainAnswer]("Physics", domainSchema())
		if got.Kind != Rejected {
			t.Errorf("unexpected result %+v", got)
		}
	})
}

func TestResult_Unwrap(t *testing.T) {
	ok := Result[int]{Kind: Typed, Value: 4}
	if v, err := ok.Unwrap(); v != 4 || err != nil {
		t.Errorf("Unwrap() = %v, %v", v, err)
	}
	bad := reject[int](errors.New("nope"))
	if _, err := bad.Unwrap(); !errors.Is(err, ErrRejected) {
		t.Errorf("Unwrap() err = %v", err)
	}
}

func TestExtractCandidate(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n[1,2]\n```", `[1,2]`},
		{`prefix {"a":{"b":2}} suffix`, `{"a":{"b":2}}`},
		{`{"a":1`, `{"a":1`},
		{"no json", ""},
	}
	for _, tt := range tests {
		if got := extractCandidate(tt.input); got != tt.want {
			t.Errorf("extractCandidate(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestRecursiveUnwrap(t *testing.T) {
	input := map[string]any{
		"name":  map[string]any{"type": "string", "value": "Ada"},
		"items": []any{map[string]any{"type": "integer", "value": 1.0}},
		"kind":  map[string]any{"type": "object", "extra": true, "value": 2.0},
	}
	want := map[string]any{
		"name":  "Ada",
		"items": []any{1.0},
		"kind":  map[string]any{"type": "object", "extra": true, "value": 2.0},
	}
	if got := recursiveUnwrap(input); !reflect.DeepEqual(got, want) {
		t.Errorf("recursiveUnwrap() = %#v, want %#v", got, want)
	}
}

func TestKindString(t *testing.T) {
	for kind, want := range map[Kind]string{Typed: "typed", Validated: "validated", Rejected: "rejected"} {
		if kind.String() != want {
			t.Errorf("%d.String() = %q, want %q", kind, kind.String(), want)
		}
	}
}
