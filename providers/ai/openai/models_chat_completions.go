package openai

import (
	"strings"

	"github.com/leofalp/graphyte/internal/jsonschema"
	"github.com/leofalp/graphyte/providers/ai"
)

/*
	CHAT COMPLETIONS API - INPUT
*/

// chatCompletionRequest represents the /v1/chat/completions request format
type chatCompletionRequest struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	Temperature    *float64            `json:"temperature,omitempty"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

type chatResponseFormat struct {
	Type       string                `json:"type"` // "text", "json_object", "json_schema"
	JSONSchema *chatJSONSchemaFormat `json:"json_schema,omitempty"`
}

type chatJSONSchemaFormat struct {
	Name   string             `json:"name"`
	Schema *jsonschema.Schema `json:"schema"`
	Strict bool               `json:"strict,omitempty"`
}

/*
	CHAT COMPLETIONS API - OUTPUT
*/

type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"` // "chat.completion"
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage,omitempty"`
}

type chatChoice struct {
	Index        int                 `json:"index"`
	Message      chatResponseMessage `json:"message"`
	FinishReason string              `json:"finish_reason"` // "stop", "length", "content_filter"
}

type chatResponseMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
	Refusal string  `json:"refusal,omitempty"` // If model refuses
}

type chatUsage struct {
	PromptTokens        int `json:"prompt_tokens"`
	CompletionTokens    int `json:"completion_tokens"`
	TotalTokens         int `json:"total_tokens"`
	PromptTokensDetails *struct {
		CachedTokens int `json:"cached_tokens"`
	} `json:"prompt_tokens_details,omitempty"`
}

/*
	CONVERSION FUNCTIONS
*/

// requestToChatCompletion converts ai.ChatRequest to chat completions format
func requestToChatCompletion(request ai.ChatRequest, caps Capabilities) chatCompletionRequest {
	req := chatCompletionRequest{Model: request.Model}

	systemPrompt := request.SystemPrompt
	if rf := request.ResponseFormat; rf != nil && rf.OutputSchema != nil {
		switch {
		case caps.SupportsStructuredOutputs:
			req.ResponseFormat = &chatResponseFormat{
				Type: "json_schema",
				JSONSchema: &chatJSONSchemaFormat{
					Name:   schemaName(rf.Name),
					Schema: rf.OutputSchema,
					Strict: rf.Strict,
				},
			}
		case caps.SupportsJSONMode:
			req.ResponseFormat = &chatResponseFormat{Type: "json_object"}
			systemPrompt = appendSchemaInstructions(systemPrompt, rf.OutputSchema)
		default:
			systemPrompt = appendSchemaInstructions(systemPrompt, rf.OutputSchema)
		}
	}

	if systemPrompt != "" {
		req.Messages = append(req.Messages, chatMessage{Role: string(ai.RoleSystem), Content: systemPrompt})
	}
	for _, msg := range request.Messages {
		req.Messages = append(req.Messages, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}
	return req
}

// chatCompletionToGeneric converts the first choice into an ai.ChatResponse.
func chatCompletionToGeneric(resp chatCompletionResponse) *ai.ChatResponse {
	out := &ai.ChatResponse{
		Id:    resp.ID,
		Model: resp.Model,
	}
	if resp.Usage != nil {
		out.Usage = &ai.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
		if details := resp.Usage.PromptTokensDetails; details != nil {
			out.Usage.CachedTokens = details.CachedTokens
		}
	}
	if len(resp.Choices) == 0 {
		return out
	}

	choice := resp.Choices[0]
	out.FinishReason = choice.FinishReason
	out.Refusal = choice.Message.Refusal
	if choice.Message.Content != nil {
		out.Content = *choice.Message.Content
	}
	return out
}

// schemaName sanitizes a schema name to the [a-zA-Z0-9_-] alphabet the API accepts.
func schemaName(name string) string {
	if name == "" {
		return "response"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func appendSchemaInstructions(systemPrompt string, schema *jsonschema.Schema) string {
	instructions := "Respond only with a JSON object that conforms to this JSON schema:\n" + schema.String()
	if systemPrompt == "" {
		return instructions
	}
	return systemPrompt + "\n\n" + instructions
}
