package middleware

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/leofalp/graphyte/core/client"
	"github.com/leofalp/graphyte/providers/ai"
	"github.com/leofalp/graphyte/providers/observability"
)

// RetryConfig holds the tuning parameters for the retry middleware. Zero values
// are replaced with the defaults documented below when NewRetryMiddleware is called.
type RetryConfig struct {
	// MaxAttempts is the total number of calls, first attempt included.
	// Default: 3.
	MaxAttempts int

	// InitialBackoff is the wait duration before the second attempt.
	// Default: 2s.
	InitialBackoff time.Duration

	// MaxBackoff caps the computed backoff so it never exceeds this value.
	// Default: 10s.
	MaxBackoff time.Duration

	// BackoffFactor is the exponential growth multiplier applied to InitialBackoff
	// on successive retries (backoff = min(InitialBackoff * BackoffFactor^n, MaxBackoff)).
	// Default: 2.0.
	BackoffFactor float64

	// JitterFraction adds random noise in [0, JitterFraction * backoff].
	// Default: 0.1 (10% jitter).
	JitterFraction float64

	// RetryableFunc returns true when an error should trigger a retry.
	// Default: ai.IsTransient.
	RetryableFunc func(error) bool

	// Sleep waits between attempts and returns early with ctx's error on
	// cancellation. Tests replace it to avoid real delays.
	Sleep func(ctx context.Context, d time.Duration) error

	// Observer, when set, receives a retry counter and a span event per retry.
	Observer observability.Provider
}

// applyRetryDefaults fills in zero-valued fields in config with sensible defaults.
func applyRetryDefaults(config *RetryConfig) {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = 2 * time.Second
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = 10 * time.Second
	}
	if config.BackoffFactor == 0 {
		config.BackoffFactor = 2.0
	}
	if config.JitterFraction == 0 {
		config.JitterFraction = 0.1
	}
	if config.RetryableFunc == nil {
		config.RetryableFunc = ai.IsTransient
	}
	if config.Sleep == nil {
		config.Sleep = sleepContext
	}
}

// computeBackoff returns the backoff before retry number n (0-indexed).
// The cap applies after jitter so MaxBackoff is a hard ceiling.
func computeBackoff(config RetryConfig, n int) time.Duration {
	base := float64(config.InitialBackoff) * math.Pow(config.BackoffFactor, float64(n))
	jitter := base * config.JitterFraction * rand.Float64() //nolint:gosec // non-cryptographic jitter is intentional
	return time.Duration(math.Min(base+jitter, float64(config.MaxBackoff)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NewRetryMiddleware constructs a MiddlewareConfig that retries transient
// failures.
//
// A call failing transiently k times with k < MaxAttempts returns the
// eventual success after k+1 calls. When every attempt fails the error wraps
// both [ErrRetryExhausted] and the last provider error, after exactly
// MaxAttempts calls. Non-transient errors (schema rejections, bad requests)
// return immediately.
func NewRetryMiddleware(config RetryConfig) client.MiddlewareConfig {
	applyRetryDefaults(&config)

	return client.MiddlewareConfig{Send: func(next client.SendFunc) client.SendFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			var lastErr error

			for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
				if attempt > 1 {
					backoff := computeBackoff(config, attempt-2)
					recordRetry(ctx, config.Observer, request, attempt, backoff, lastErr)
					if err := config.Sleep(ctx, backoff); err != nil {
						return nil, fmt.Errorf("retry interrupted: %w", err)
					}
				}

				response, err := next(ctx, request)
				if err == nil {
					return response, nil
				}
				lastErr = err

				if !config.RetryableFunc(err) {
					return nil, err
				}
			}

			return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, config.MaxAttempts, lastErr)
		}
	}}
}

// NewSingleAttemptMiddleware is the configured stand-in when retries are
// disabled: it calls the provider exactly once. The warning is logged when the
// chain is built, so a run that never reaches the model still reports it.
func NewSingleAttemptMiddleware(observer observability.Provider) client.MiddlewareConfig {
	if observer != nil {
		observer.Warn(context.Background(), "retries disabled; model calls run a single attempt")
	}
	return client.MiddlewareConfig{Send: func(next client.SendFunc) client.SendFunc {
		return next
	}}
}

func recordRetry(ctx context.Context, observer observability.Provider, request ai.ChatRequest, attempt int, backoff time.Duration, cause error) {
	attrs := []observability.Attribute{
		observability.String(observability.AttrLLMModel, request.Model),
		observability.Int(observability.AttrLLMAttempt, attempt),
		observability.Duration(observability.AttrDuration, backoff),
		observability.Error(cause),
	}
	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent(observability.EventRetryScheduled, attrs...)
	}
	if observer == nil {
		return
	}
	observer.Counter(observability.MetricClientRetries).Add(ctx, 1,
		observability.String(observability.AttrLLMModel, request.Model),
	)
	observer.Debug(ctx, "retrying llm call", append(attrs,
		observability.String(observability.AttrStage, request.Metadata[client.MetadataStage]),
	)...)
}
