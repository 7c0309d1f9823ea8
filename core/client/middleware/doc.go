// Package middleware provides the built-in client middlewares. Each
// middleware is constructed via a New* function that returns a
// [client.MiddlewareConfig] ready to be passed to [client.WithMiddleware].
//
//   - [NewRetryMiddleware]: bounded retries with exponential backoff and
//     jitter for transient failures (see ai.IsTransient).
//   - [NewTimeoutMiddleware]: a per-attempt deadline.
//   - [NewLoggingMiddleware]: structured slog entries around each call.
//   - [NewRateLimitMiddleware]: a token-bucket limit shared by all callers of
//     one client, so fan-out branches cannot flood the provider.
//
// Middlewares execute outermost-first. The pipeline uses
//
//	Retry -> RateLimit -> Timeout -> Logging -> Provider
//
// so every attempt waits for a token and gets its own deadline.
package middleware
