// Package jsonschema models the subset of JSON Schema the pipeline exchanges
// with model providers: objects, arrays, strings, numbers, integers and
// booleans with required fields and enums.
//
// Schemas are assembled with the small builder helpers ([Object], [Array],
// [String], [Number], [Integer]) and serve two purposes: they are sent to the
// provider as the structured-output contract, and [Schema.Validate] checks an
// untyped decoded mapping against them before it is accepted.
package jsonschema
