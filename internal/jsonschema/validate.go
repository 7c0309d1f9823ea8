package jsonschema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
)

// ValidationError lists every violation found while validating one value.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "schema validation failed: " + e.Problems[0]
	}
	return fmt.Sprintf("schema validation failed with %d problems: %v", len(e.Problems), e.Problems)
}

// ErrNilSchema is returned when Validate is called on a nil schema.
var ErrNilSchema = errors.New("jsonschema: nil schema")

// Validate checks a value produced by encoding/json decoding into `any`
// (maps, slices, float64, json.Number, string, bool, nil) against the schema.
// It returns a *ValidationError describing every violation, or nil.
func (s *Schema) Validate(value any) error {
	if s == nil {
		return ErrNilSchema
	}
	v := &validator{}
	v.check("$", s, value)
	if len(v.problems) > 0 {
		return &ValidationError{Problems: v.problems}
	}
	return nil
}

type validator struct {
	problems []string
}

func (v *validator) fail(path, format string, args ...any) {
	v.problems = append(v.problems, path+": "+fmt.Sprintf(format, args...))
}

func (v *validator) check(path string, s *Schema, value any) {
	if s == nil {
		return
	}

	switch s.Type {
	case "object":
		obj, ok := value.(map[string]any)
		if !ok {
			v.fail(path, "expected object, got %s", kindOf(value))
			return
		}
		v.checkObject(path, s, obj)
	case "array":
		arr, ok := value.([]any)
		if !ok {
			v.fail(path, "expected array, got %s", kindOf(value))
			return
		}
		for i, item := range arr {
			v.check(fmt.Sprintf("%s[%d]", path, i), s.Items, item)
		}
	case "string":
		if _, ok := value.(string); !ok {
			v.fail(path, "expected string, got %s", kindOf(value))
			return
		}
	case "number", "integer":
		n, ok := toFloat(value)
		if !ok {
			v.fail(path, "expected %s, got %s", s.Type, kindOf(value))
			return
		}
		if s.Type == "integer" && n != math.Trunc(n) {
			v.fail(path, "expected integer, got %v", n)
		}
		if s.Minimum != nil && n < *s.Minimum {
			v.fail(path, "%v is below minimum %v", n, *s.Minimum)
		}
		if s.Maximum != nil && n > *s.Maximum {
			v.fail(path, "%v is above maximum %v", n, *s.Maximum)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			v.fail(path, "expected boolean, got %s", kindOf(value))
			return
		}
	}

	if len(s.Enum) > 0 && !inEnum(s.Enum, value) {
		v.fail(path, "value %v is not one of %v", value, s.Enum)
	}
}

func (v *validator) checkObject(path string, s *Schema, obj map[string]any) {
	for _, name := range s.Required {
		if val, ok := obj[name]; !ok || val == nil {
			v.fail(path, "missing required property %q", name)
		}
	}

	names := make([]string, 0, len(obj))
	for name := range obj {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		val := obj[name]
		propSchema, known := s.Properties[name]
		if !known {
			if closed, isBool := s.AdditionalProperties.(bool); isBool && !closed {
				v.fail(path, "unexpected property %q", name)
			}
			continue
		}
		// Optional properties may be explicitly null.
		if val == nil {
			continue
		}
		v.check(path+"."+name, propSchema, val)
	}
}

func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func inEnum(enum []any, value any) bool {
	for _, candidate := range enum {
		if reflect.DeepEqual(candidate, value) {
			return true
		}
	}
	return false
}

func kindOf(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, json.Number, int, int64:
		return "number"
	default:
		return fmt.Sprintf("%T", value)
	}
}
