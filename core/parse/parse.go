package parse

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/leofalp/graphyte/internal/jsonschema"
)

// ErrRejected is wrapped by every Rejected result.
var ErrRejected = errors.New("response rejected")

// Kind tags how a response was accepted.
type Kind int

const (
	// Rejected means neither decode path produced a valid value.
	Rejected Kind = iota
	// Typed means the answer decoded strictly into the target type.
	Typed
	// Validated means the answer was recovered as a generic value, passed
	// schema validation and was then decoded.
	Validated
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Typed:
		return "typed"
	case Validated:
		return "validated"
	default:
		return "rejected"
	}
}

// Result is the tagged outcome of Decode. Value is the zero value unless
// Kind is Typed or Validated; Err is set only when Kind is Rejected.
type Result[T any] struct {
	Kind  Kind
	Value T
	Err   error
}

// OK reports whether the result carries a value.
func (r Result[T]) OK() bool {
	return r.Kind == Typed || r.Kind == Validated
}

// Unwrap returns the value or the rejection error.
func (r Result[T]) Unwrap() (T, error) {
	if r.OK() {
		return r.Value, nil
	}
	return r.Value, r.Err
}

// Decode parses content into T.
//
// The strict path requires content to be a single JSON document with no keys
// unknown to T that also satisfies schema. The fallback path extracts a JSON
// candidate from content, repairs it, unwraps schema-shaped values and
// validates the generic result against schema before decoding it into T. A
// nil schema skips validation.
func Decode[T any](content string, schema *jsonschema.Schema) Result[T] {
	var zero T

	strictErr := decodeStrict(content, schema, &zero)
	if strictErr == nil {
		return Result[T]{Kind: Typed, Value: zero}
	}

	generic, recoverErr := recoverGeneric(content)
	if recoverErr != nil {
		return reject[T](fmt.Errorf("strict decode: %v; recovery: %w", strictErr, recoverErr))
	}

	result := DecodeValue[T](generic, schema)
	if result.Kind == Rejected {
		result.Err = fmt.Errorf("strict decode: %v; recovery: %w", strictErr, result.Err)
	}
	return result
}

// DecodeValue validates an already-decoded generic value (typically a
// map[string]any) against schema and converts it into T. It is the second
// half of Decode, for callers that receive untyped structures directly.
func DecodeValue[T any](value any, schema *jsonschema.Schema) Result[T] {
	if typed, ok := value.(T); ok {
		return Result[T]{Kind: Typed, Value: typed}
	}
	if schema != nil {
		if err := schema.Validate(value); err != nil {
			return reject[T](fmt.Errorf("schema validation: %w", err))
		}
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return reject[T](fmt.Errorf("encode value: %w", err))
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return reject[T](fmt.Errorf("decode value as %T: %w", out, err))
	}
	return Result[T]{Kind: Validated, Value: out}
}

func reject[T any](err error) Result[T] {
	return Result[T]{Kind: Rejected, Err: fmt.Errorf("%w: %w", ErrRejected, err)}
}

func decodeStrict(content string, schema *jsonschema.Schema, target any) error {
	dec := json.NewDecoder(strings.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON document")
	}
	if schema == nil {
		return nil
	}
	// required fields and bounds are not visible to encoding/json
	var generic any
	if err := json.Unmarshal([]byte(content), &generic); err != nil {
		return err
	}
	return schema.Validate(generic)
}

// recoverGeneric extracts, repairs and unwraps a JSON value from content.
func recoverGeneric(content string) (any, error) {
	candidate := extractCandidate(content)
	if candidate == "" {
		return nil, errors.New("no JSON found in response")
	}

	var generic any
	if err := json.Unmarshal([]byte(candidate), &generic); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(candidate)
		if repairErr != nil {
			return nil, fmt.Errorf("repair JSON: %w", repairErr)
		}
		if err := json.Unmarshal([]byte(repaired), &generic); err != nil {
			return nil, fmt.Errorf("unmarshal repaired JSON: %w", err)
		}
	}
	return recursiveUnwrap(generic), nil
}

// extractCandidate strips markdown fences and surrounding prose, returning
// the outermost JSON object or array in content.
func extractCandidate(content string) string {
	s := strings.TrimSpace(content)
	if fenced, ok := stripFence(s); ok {
		s = fenced
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		// unterminated; let jsonrepair close it
		return s[start:]
	}
	return s[start : end+1]
}

func stripFence(s string) (string, bool) {
	open := strings.Index(s, "```")
	if open < 0 {
		return "", false
	}
	rest := s[open+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		// drop the info string, e.g. ```json
		rest = rest[nl+1:]
	}
	if closeIdx := strings.Index(rest, "```"); closeIdx >= 0 {
		rest = rest[:closeIdx]
	}
	return strings.TrimSpace(rest), true
}

// recursiveUnwrap replaces schema-shaped {"type": ..., "value": ...} maps
// with their value. Models sometimes echo the schema instead of filling it.
//
//	{"domain": {"type": "string", "value": "Physics"}}  ->  {"domain": "Physics"}
func recursiveUnwrap(data any) any {
	switch v := data.(type) {
	case map[string]any:
		if _, hasType := v["type"]; hasType {
			if value, hasValue := v["value"]; hasValue && len(v) == 2 {
				return recursiveUnwrap(value)
			}
		}
		result := make(map[string]any, len(v))
		for key, val := range v {
			result[key] = recursiveUnwrap(val)
		}
		return result

	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			result[i] = recursiveUnwrap(val)
		}
		return result

	default:
		return data
	}
}
