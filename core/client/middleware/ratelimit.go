package middleware

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/leofalp/graphyte/core/client"
	"github.com/leofalp/graphyte/providers/ai"
)

// NewRateLimitMiddleware limits calls to requestsPerSecond with the given
// burst. The limiter is shared by every request passing through the returned
// middleware, which includes concurrent fan-out branches. A non-positive rate
// disables limiting.
func NewRateLimitMiddleware(requestsPerSecond float64, burst int) client.MiddlewareConfig {
	if burst < 1 {
		burst = 1
	}
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}

	return client.MiddlewareConfig{Send: func(next client.SendFunc) client.SendFunc {
		if limiter == nil {
			return next
		}
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
			return next(ctx, request)
		}
	}}
}
