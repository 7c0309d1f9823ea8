package middleware

import (
	"context"
	"time"

	"github.com/leofalp/graphyte/core/client"
	"github.com/leofalp/graphyte/providers/ai"
)

// NewTimeoutMiddleware creates a MiddlewareConfig that enforces a deadline on
// each provider call. Placed inside the retry middleware it bounds a single
// attempt; a deadline hit there is transient and gets retried.
//
// If the caller supplies a context that already has a shorter deadline, that
// shorter deadline wins as per normal context semantics. A non-positive
// timeout disables the middleware.
func NewTimeoutMiddleware(timeout time.Duration) client.MiddlewareConfig {
	return client.MiddlewareConfig{Send: func(next client.SendFunc) client.SendFunc {
		if timeout <= 0 {
			return next
		}
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			return next(ctx, request)
		}
	}}
}
