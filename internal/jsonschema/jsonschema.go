package jsonschema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Schema represents the structure of JSON Schema used for defining responses.
// It follows the JSON Schema standard and is typically used to define the
// expected format of a model answer and to validate that incoming data
// conforms to it.
type Schema struct {
	//  Type Specifies the data type (e.g., "object", "array", "string", "number")
	Type        string   `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`
	Required    []string `json:"required,omitempty"`
	// Properties of the object, each with its own schema
	Properties map[string]*Schema `json:"properties,omitempty"`
	// For array types, defines the schema of items in the array
	Items *Schema `json:"items,omitempty"`
	// AdditionalProperties: Controls whether properties not defined in Properties are allowed
	AdditionalProperties any `json:"additionalProperties,omitempty"`
	// Enum contains the list of allowed values
	Enum []any `json:"enum,omitempty"`
	// Minimum and Maximum bound numeric values when set
	Minimum *float64 `json:"minimum,omitempty"`
	Maximum *float64 `json:"maximum,omitempty"`
}

// Property names one field of an object schema.
type Property struct {
	Name     string
	Schema   *Schema
	Required bool
}

// Field declares a required object property.
func Field(name string, schema *Schema) Property {
	return Property{Name: name, Schema: schema, Required: true}
}

// OptionalField declares an object property that may be absent or null.
func OptionalField(name string, schema *Schema) Property {
	return Property{Name: name, Schema: schema}
}

// Object builds an object schema. Required names keep declaration order.
func Object(description string, props ...Property) *Schema {
	s := &Schema{
		Type:        "object",
		Description: description,
		Properties:  make(map[string]*Schema, len(props)),
	}
	for _, p := range props {
		s.Properties[p.Name] = p.Schema
		if p.Required {
			s.Required = append(s.Required, p.Name)
		}
	}
	return s
}

// Array builds an array schema of items.
func Array(description string, items *Schema) *Schema {
	return &Schema{Type: "array", Description: description, Items: items}
}

// String builds a string schema.
func String(description string) *Schema {
	return &Schema{Type: "string", Description: description}
}

// Number builds a number schema.
func Number(description string) *Schema {
	return &Schema{Type: "number", Description: description}
}

// Score builds a number schema bounded to [0, 1].
func Score(description string) *Schema {
	low, high := 0.0, 1.0
	return &Schema{Type: "number", Description: description, Minimum: &low, Maximum: &high}
}

// Integer builds an integer schema.
func Integer(description string) *Schema {
	return &Schema{Type: "integer", Description: description}
}

// JsonString returns the JSON representation of the schema, indented when
// requested.
func (s *Schema) JsonString(indent ...bool) (string, error) {
	var (
		data []byte
		err  error
	)
	if len(indent) > 0 && indent[0] {
		data, err = json.MarshalIndent(s, "", "  ")
	} else {
		data, err = json.Marshal(s)
	}
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}
	return string(data), nil
}

// String implements fmt.Stringer.
func (s *Schema) String() string {
	out, err := s.JsonString()
	if err != nil {
		return "<invalid schema: " + strings.TrimSpace(err.Error()) + ">"
	}
	return out
}
