package openai

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/leofalp/graphyte/internal/utils"
	"github.com/leofalp/graphyte/providers/ai"
)

const (
	defaultBaseURL          = "https://api.openai.com/v1"
	chatCompletionsEndpoint = "/chat/completions"
	providerName            = "openai"
)

// ErrMissingAPIKey is returned by SendMessage when no key was configured.
var ErrMissingAPIKey = errors.New("openai: API key is not set")

// Provider implements ai.Provider for OpenAI-compatible chat completions.
type Provider struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	capabilities *Capabilities // nil means auto-detect from baseURL
}

var _ ai.Provider = (*Provider)(nil)

// New creates a provider from OPENAI_API_KEY and OPENAI_API_BASE_URL.
func New() *Provider {
	baseURL := os.Getenv("OPENAI_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{
		apiKey:  os.Getenv("OPENAI_API_KEY"),
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// Name implements ai.Provider.
func (p *Provider) Name() string { return providerName }

// WithAPIKey sets the API key for the provider
func (p *Provider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL sets the base URL for the API. An empty value keeps the default.
func (p *Provider) WithBaseURL(baseURL string) ai.Provider {
	if baseURL != "" {
		p.baseURL = baseURL
	}
	return p
}

// WithHttpClient sets a custom HTTP client
func (p *Provider) WithHttpClient(httpClient *http.Client) ai.Provider {
	if httpClient != nil {
		p.client = httpClient
	}
	return p
}

// WithCapabilities overrides capability auto-detection.
func (p *Provider) WithCapabilities(caps Capabilities) *Provider {
	p.capabilities = &caps
	return p
}

// Capabilities returns the effective capabilities for the configured host.
func (p *Provider) Capabilities() Capabilities {
	if p.capabilities != nil {
		return *p.capabilities
	}
	return detectCapabilities(p.baseURL)
}

// SendMessage implements ai.Provider.
//
// An answer without content (no choices, or a null message) is reported as
// ai.ErrEmptyResponse so the retry middleware treats it as transient. A
// refusal is returned as a normal response with Refusal set.
func (p *Provider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	if p.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	url := strings.TrimRight(p.baseURL, "/") + chatCompletionsEndpoint
	_, resp, err := utils.DoPostSync[chatCompletionResponse](ctx, p.client, url, p.apiKey, requestToChatCompletion(request, p.Capabilities()))
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, ai.ErrEmptyResponse
	}

	out := chatCompletionToGeneric(*resp)
	if out.Content == "" && out.Refusal == "" {
		return nil, ai.ErrEmptyResponse
	}
	return out, nil
}
