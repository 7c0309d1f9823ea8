// Package provider offers a scripted ai.Provider for tests. Responses are
// produced by a Handler, so a test can route by stage, fail a fixed number of
// times, or count calls without any network.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/leofalp/graphyte/providers/ai"
)

// Handler produces the answer for one request.
type Handler func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error)

// Scripted records every request and delegates answers to a Handler.
type Scripted struct {
	mu      sync.Mutex
	handler Handler
	calls   []ai.ChatRequest
}

var _ ai.Provider = (*Scripted)(nil)

// New returns a provider answering with handler.
func New(handler Handler) *Scripted {
	return &Scripted{handler: handler}
}

// SendMessage implements ai.Provider.
func (s *Scripted) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	s.mu.Lock()
	s.calls = append(s.calls, request)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.handler == nil {
		return nil, fmt.Errorf("scripted provider: no handler for %q", request.Metadata["stage"])
	}
	return s.handler(ctx, request)
}

func (s *Scripted) Name() string {
	return "scripted"
}

func (s *Scripted) WithAPIKey(string) ai.Provider {
	return s
}

func (s *Scripted) WithBaseURL(string) ai.Provider {
	return s
}

func (s *Scripted) WithHttpClient(*http.Client) ai.Provider {
	return s
}

// Calls returns a copy of every request received so far.
func (s *Scripted) Calls() []ai.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ai.ChatRequest(nil), s.calls...)
}

// CallCount returns the number of requests received so far.
func (s *Scripted) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// CallsFor returns the requests whose metadata key equals value.
func (s *Scripted) CallsFor(key, value string) []ai.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ai.ChatRequest
	for _, call := range s.calls {
		if call.Metadata[key] == value {
			out = append(out, call)
		}
	}
	return out
}

// Text answers with content verbatim.
func Text(content string) Handler {
	return func(context.Context, ai.ChatRequest) (*ai.ChatResponse, error) {
		return &ai.ChatResponse{
			Id:           "scripted",
			Content:      content,
			FinishReason: "stop",
			Usage:        &ai.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2},
		}, nil
	}
}

// JSON answers with v encoded as JSON.
func JSON(v any) Handler {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("scripted provider: marshal fixture: %v", err))
	}
	return Text(string(data))
}

// Fail always returns err.
func Fail(err error) Handler {
	return func(context.Context, ai.ChatRequest) (*ai.ChatResponse, error) {
		return nil, err
	}
}

// Block waits until the request context is done and returns its error.
func Block() Handler {
	return func(ctx context.Context, _ ai.ChatRequest) (*ai.ChatResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

// FailTimes returns err for the first n calls, then delegates to then.
func FailTimes(n int, err error, then Handler) Handler {
	var mu sync.Mutex
	failures := 0
	return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
		mu.Lock()
		fail := failures < n
		if fail {
			failures++
		}
		mu.Unlock()
		if fail {
			return nil, err
		}
		return then(ctx, request)
	}
}

// Router dispatches on request.Metadata[key]. Unrouted requests go to
// Fallback, or fail when it is nil.
type Router struct {
	Key      string
	Routes   map[string]Handler
	Fallback Handler
}

// Handle implements Handler.
func (r Router) Handle(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	if h, ok := r.Routes[request.Metadata[r.Key]]; ok {
		return h(ctx, request)
	}
	if r.Fallback != nil {
		return r.Fallback(ctx, request)
	}
	return nil, fmt.Errorf("scripted provider: no route for %s=%q", r.Key, request.Metadata[r.Key])
}
