package ai

import (
	"github.com/leofalp/graphyte/internal/jsonschema"
)

/*
	##### PROVIDER INPUT #####
*/

// ChatRequest represents a request to send a chat message
type ChatRequest struct {
	Model          string          `json:"model,omitempty"`           // Model name or identifier
	Messages       []Message       `json:"messages"`                  // Conversation messages except the system prompt
	SystemPrompt   string          `json:"system_prompt,omitempty"`   // Agent instructions
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"` // Optional structured-output contract

	// Metadata is a string map forwarded to tracing (workflow step, branch label, ...).
	// Providers must not send it to the model.
	Metadata map[string]string `json:"-"`
}

// Message represents a single message in a conversation
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content,omitempty"`
}

// ResponseFormat asks the provider for a JSON answer matching OutputSchema.
type ResponseFormat struct {
	Name         string             `json:"name,omitempty"`          // Schema name, e.g. "DomainSchema"
	OutputSchema *jsonschema.Schema `json:"output_schema,omitempty"` // Schema the answer must follow
	Strict       bool               `json:"strict,omitempty"`        // Ask the provider to enforce the schema
}

/*
	##### PROVIDER OUTPUT #####
*/

type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`

	// CachedTokens is the part of PromptTokens served from the prompt cache.
	CachedTokens int `json:"cached_tokens,omitempty"`
}

// ChatResponse represents the response from a chat completion
type ChatResponse struct {
	Id           string `json:"id"`
	Model        string `json:"model"`
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason,omitempty"`
	Refusal      string `json:"refusal,omitempty"` // If model refuses to respond (safety/policy)
	Usage        *Usage `json:"usage,omitempty"`
}

/*
	##### ENUMS #####
*/

type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)
