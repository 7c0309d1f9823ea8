// Package client sits between the pipeline stages and an [ai.Provider].
//
// A [Client] owns a middleware chain (retry, timeout, logging, rate
// limiting, observability) and sends one stateless request per call; every
// pipeline stage is a single-shot exchange, so no conversation memory is
// kept. [StructuredClient] adds a target schema and decodes answers with
// parse.Decode, tagging each result as typed or validated.
//
// The primary entry point is [New], which accepts a provider and functional
// options such as [WithDefaultModel], [WithObserver] and [WithMiddleware].
package client
