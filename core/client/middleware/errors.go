package middleware

import "errors"

// ErrRetryExhausted is returned by the retry middleware when every attempt
// failed with a transient error. The last provider error is wrapped too, so
// [errors.Is] and [errors.As] still reach the root cause.
var ErrRetryExhausted = errors.New("all retry attempts exhausted")
