package openai

import "strings"

// Capabilities describes what an OpenAI-compatible endpoint accepts.
// Populated by [detectCapabilities]; override with [Provider.WithCapabilities].
type Capabilities struct {
	// SupportsStructuredOutputs enables response_format json_schema.
	SupportsStructuredOutputs bool
	// SupportsJSONMode enables response_format json_object as a fallback.
	SupportsJSONMode bool
}

// detectCapabilities guesses capabilities from well-known hosts.
func detectCapabilities(baseURL string) Capabilities {
	baseURL = strings.ToLower(baseURL)

	switch {
	case strings.Contains(baseURL, "api.openai.com"),
		strings.Contains(baseURL, "openai.azure.com"),
		strings.Contains(baseURL, "openrouter.ai"):
		return Capabilities{SupportsStructuredOutputs: true, SupportsJSONMode: true}
	case strings.Contains(baseURL, "localhost:11434"),
		strings.Contains(baseURL, "127.0.0.1:11434"),
		strings.Contains(baseURL, "ollama"):
		return Capabilities{SupportsStructuredOutputs: false, SupportsJSONMode: true}
	default:
		// Unknown OpenAI-compatible hosts: assume the modern contract.
		return Capabilities{SupportsStructuredOutputs: true, SupportsJSONMode: true}
	}
}
