package client

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/leofalp/graphyte/core/overview"
	"github.com/leofalp/graphyte/providers/ai"
	"github.com/leofalp/graphyte/providers/observability"
)

// MetadataStage is the request metadata key naming the pipeline stage that
// issued a call. It labels spans, logs and the usage ledger.
const MetadataStage = "stage"

// ErrEmptyPrompt is returned when SendMessage is called without input.
var ErrEmptyPrompt = errors.New("client: prompt must not be empty")

// ClientOptions collects the settings applied by the functional options of [New].
type ClientOptions struct {
	// DefaultModel is used when a request does not name a model.
	DefaultModel string
	// SystemPrompt is sent with every request unless overridden per call.
	SystemPrompt string
	// Observer, when set, adds an outermost observability middleware.
	Observer observability.Provider
	// Middlewares run in order, first entry outermost.
	Middlewares []MiddlewareConfig
}

// WithDefaultModel sets the model used when a request does not name one.
func WithDefaultModel(model string) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.DefaultModel = model
	}
}

// WithSystemPrompt sets the instructions sent with every request.
func WithSystemPrompt(prompt string) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.SystemPrompt = prompt
	}
}

// WithObserver enables tracing, metrics and logs for every request.
func WithObserver(observer observability.Provider) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.Observer = observer
	}
}

// WithMiddleware appends middlewares to the chain.
func WithMiddleware(middlewares ...MiddlewareConfig) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.Middlewares = append(o.Middlewares, middlewares...)
	}
}

// Client sends single-shot requests through a middleware chain. A Client is
// immutable after New and safe for concurrent use.
type Client struct {
	provider ai.Provider
	options  ClientOptions
	send     SendFunc
}

// New builds a Client. When an observer is configured, the observability
// middleware is placed outermost so it records the final outcome after any
// retries.
func New(provider ai.Provider, opts ...func(*ClientOptions)) (*Client, error) {
	if provider == nil {
		return nil, errors.New("client: provider must not be nil")
	}

	var options ClientOptions
	for _, opt := range opts {
		opt(&options)
	}

	for i, mw := range options.Middlewares {
		if mw.Send == nil {
			return nil, fmt.Errorf("client: middleware at index %d has a nil Send function", i)
		}
	}

	chain := options.Middlewares
	if options.Observer != nil {
		chain = append([]MiddlewareConfig{NewObservabilityMiddleware(options.Observer, options.DefaultModel)}, chain...)
	}

	return &Client{
		provider: provider,
		options:  options,
		send:     buildSendChain(provider, chain),
	}, nil
}

// Provider returns the underlying provider.
func (c *Client) Provider() ai.Provider { return c.provider }

// DefaultModel returns the configured default model.
func (c *Client) DefaultModel() string { return c.options.DefaultModel }

// SendMessageOptions holds per-call overrides.
type SendMessageOptions struct {
	Model          string
	SystemPrompt   string
	ResponseFormat *ai.ResponseFormat
	Metadata       map[string]string
}

// SendMessageOption customizes a single request.
type SendMessageOption func(*SendMessageOptions)

// WithModel overrides the model for one request.
func WithModel(model string) SendMessageOption {
	return func(o *SendMessageOptions) {
		if model != "" {
			o.Model = model
		}
	}
}

// WithInstructions overrides the system prompt for one request.
func WithInstructions(instructions string) SendMessageOption {
	return func(o *SendMessageOptions) {
		o.SystemPrompt = instructions
	}
}

// WithResponseFormat asks for a structured answer.
func WithResponseFormat(format *ai.ResponseFormat) SendMessageOption {
	return func(o *SendMessageOptions) {
		o.ResponseFormat = format
	}
}

// WithMetadata attaches a key/value pair forwarded to tracing.
func WithMetadata(key, value string) SendMessageOption {
	return func(o *SendMessageOptions) {
		if o.Metadata == nil {
			o.Metadata = make(map[string]string)
		}
		o.Metadata[key] = value
	}
}

// SendMessage sends prompt as a single user message and returns the raw
// response. The call is recorded in the usage ledger found in ctx, if any.
func (c *Client) SendMessage(ctx context.Context, prompt string, opts ...SendMessageOption) (*ai.ChatResponse, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	callOpts := SendMessageOptions{
		Model:        c.options.DefaultModel,
		SystemPrompt: c.options.SystemPrompt,
	}
	for _, opt := range opts {
		opt(&callOpts)
	}

	request := ai.ChatRequest{
		Model:          callOpts.Model,
		SystemPrompt:   callOpts.SystemPrompt,
		Messages:       []ai.Message{{Role: ai.RoleUser, Content: prompt}},
		ResponseFormat: callOpts.ResponseFormat,
		Metadata:       maps.Clone(callOpts.Metadata),
	}

	response, err := c.send(ctx, request)

	if ledger := overview.OverviewFromContext(ctx); ledger != nil {
		var usage *ai.Usage
		if response != nil {
			usage = response.Usage
		}
		ledger.RecordRequest(request.Metadata[MetadataStage], request.Model, usage, err)
	}

	if err != nil {
		return nil, err
	}
	if response == nil {
		return nil, ai.ErrEmptyResponse
	}
	return response, nil
}
