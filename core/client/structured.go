package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/leofalp/graphyte/core/overview"
	"github.com/leofalp/graphyte/core/parse"
	"github.com/leofalp/graphyte/internal/jsonschema"
	"github.com/leofalp/graphyte/providers/ai"
	"github.com/leofalp/graphyte/providers/observability"
)

// ErrRefused is returned when the model declines to answer.
var ErrRefused = errors.New("model refused to answer")

// StructuredResponse carries a decoded answer alongside the raw response.
type StructuredResponse[T any] struct {
	Data T
	// Kind records whether Data came from a strict decode or from a
	// validated generic value.
	Kind parse.Kind
	Raw  ai.ChatResponse
}

// StructuredClient is a single-shot extractor: it sends one prompt with a
// fixed output schema and decodes the answer into T.
//
//	topics := client.NewStructured[TopicSet](base, "TopicSchema", schema.Topic())
//	resp, err := topics.SendMessage(ctx, prompt, client.WithMetadata(client.MetadataStage, "03_topic_identifier"))
//	if err != nil {
//	    return nil, err
//	}
//	fmt.Println(len(resp.Data.Topics), resp.Kind)
type StructuredClient[T any] struct {
	client *Client
	format *ai.ResponseFormat
}

// NewStructured wraps base with an output schema named name.
func NewStructured[T any](base *Client, name string, schema *jsonschema.Schema) *StructuredClient[T] {
	return &StructuredClient[T]{
		client: base,
		format: &ai.ResponseFormat{Name: name, OutputSchema: schema},
	}
}

// Schema returns the JSON schema used for structured output.
func (sc *StructuredClient[T]) Schema() *jsonschema.Schema {
	return sc.format.OutputSchema
}

// SendMessage sends prompt and decodes the answer.
//
// A refusal returns ErrRefused. An answer that neither decodes strictly nor
// validates as a generic value returns an error wrapping parse.ErrRejected.
// Both are non-transient, so the retry middleware has already passed them
// through untouched.
func (sc *StructuredClient[T]) SendMessage(ctx context.Context, prompt string, opts ...SendMessageOption) (*StructuredResponse[T], error) {
	opts = append([]SendMessageOption{WithResponseFormat(sc.format)}, opts...)

	resp, err := sc.client.SendMessage(ctx, prompt, opts...)
	if err != nil {
		return nil, err
	}
	if resp.Content == "" && resp.Refusal != "" {
		return nil, fmt.Errorf("%w: %s", ErrRefused, resp.Refusal)
	}

	result := parse.Decode[T](resp.Content, sc.format.OutputSchema)

	if ledger := overview.OverviewFromContext(ctx); ledger != nil {
		ledger.RecordDecode(result.Kind.String())
	}
	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent("structured.decoded", observability.String(observability.AttrDecodeKind, result.Kind.String()))
	}

	if !result.OK() {
		return nil, fmt.Errorf("decode %s: %w", sc.format.Name, result.Err)
	}
	return &StructuredResponse[T]{
		Data: result.Value,
		Kind: result.Kind,
		Raw:  *resp,
	}, nil
}
