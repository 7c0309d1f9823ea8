// Package steps implements every stage of the classification pipeline on top
// of a shared [Runner].
//
// A stage never panics or propagates a raw failure past its boundary. It
// returns either a populated result and nil, or nil and an error classified
// by the sentinels of this package:
//
//   - ErrPrecondition: an upstream result was missing or empty; the stage
//     made no model call.
//   - ErrEmpty: the model answered validly but every list was empty; the
//     artifact is still written.
//   - anything else: the stage failed (transport, decode, panic).
package steps
