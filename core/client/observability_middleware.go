package client

import (
	"context"
	"maps"
	"slices"

	"github.com/leofalp/graphyte/internal/utils"
	"github.com/leofalp/graphyte/providers/ai"
	"github.com/leofalp/graphyte/providers/observability"
)

// NewObservabilityMiddleware creates a MiddlewareConfig that records a span,
// metrics and log events for every LLM request.
//
// Both the span and the observer are injected into the context before calling
// next, so that provider implementations can retrieve them via
// [observability.SpanFromContext] and [observability.ObserverFromContext].
//
// [New] prepends it to the chain when [WithObserver] is provided, making it
// the outermost wrapper: it observes the final outcome after any retry or
// timeout middleware.
func NewObservabilityMiddleware(observer observability.Provider, defaultModel string) MiddlewareConfig {
	return MiddlewareConfig{Send: buildObsSend(observer, defaultModel)}
}

func buildObsSend(observer observability.Provider, defaultModel string) Middleware {
	return func(next SendFunc) SendFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			model := effectiveModel(request.Model, defaultModel)
			attrs := requestAttributes(request, model)

			ctx, span := observer.StartSpan(ctx, observability.SpanClientSendMessage, attrs...)
			ctx = observability.ContextWithSpan(ctx, span)
			ctx = observability.ContextWithObserver(ctx, observer)

			observer.Debug(ctx, "llm send", append(attrs,
				observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
			)...)

			timer := utils.NewTimer()
			response, err := next(ctx, request)
			timer.Stop()

			observer.Histogram(observability.MetricClientRequestDuration).Record(ctx, timer.GetDuration().Seconds(),
				observability.String(observability.AttrLLMModel, model),
			)

			if err != nil {
				span.RecordError(err)
				span.SetStatus(observability.StatusError, "llm send failed")
				span.End()

				// Warn rather than Error: a failed call is absorbed by its stage.
				observer.Warn(ctx, "llm send failed", append(attrs,
					observability.Error(err),
					observability.Duration(observability.AttrDuration, timer.GetDuration()),
				)...)
				observer.Counter(observability.MetricClientRequestCount).Add(ctx, 1,
					observability.String(observability.AttrStatus, "error"),
					observability.String(observability.AttrLLMModel, model),
				)
				return nil, err
			}

			recordObsSuccess(ctx, span, observer, response, timer, model, attrs)
			return response, nil
		}
	}
}

// recordObsSuccess writes the success-path counters, span attributes and an
// INFO log, then ends the span.
func recordObsSuccess(
	ctx context.Context,
	span observability.Span,
	observer observability.Provider,
	response *ai.ChatResponse,
	timer *utils.Timer,
	model string,
	attrs []observability.Attribute,
) {
	observer.Counter(observability.MetricClientRequestCount).Add(ctx, 1,
		observability.String(observability.AttrStatus, "success"),
		observability.String(observability.AttrLLMModel, model),
	)

	logAttrs := append(slices.Clone(attrs),
		observability.Duration(observability.AttrDuration, timer.GetDuration()),
	)
	if response != nil {
		logAttrs = append(logAttrs,
			observability.String(observability.AttrLLMFinishReason, response.FinishReason),
			observability.Int(observability.AttrResponseLength, len(response.Content)),
		)
		if response.Usage != nil {
			observer.Counter(observability.MetricClientTokensTotal).Add(ctx, int64(response.Usage.TotalTokens),
				observability.String(observability.AttrLLMModel, model),
			)
			usageAttrs := []observability.Attribute{
				observability.Int(observability.AttrLLMTokensPrompt, response.Usage.PromptTokens),
				observability.Int(observability.AttrLLMTokensCompletion, response.Usage.CompletionTokens),
				observability.Int(observability.AttrLLMTokensTotal, response.Usage.TotalTokens),
			}
			span.SetAttributes(usageAttrs...)
			logAttrs = append(logAttrs, usageAttrs...)
		}
	}

	observer.Debug(ctx, "llm send completed", logAttrs...)

	span.SetStatus(observability.StatusOK, "success")
	span.End()
}

// requestAttributes labels a request with its model, schema name and metadata.
func requestAttributes(request ai.ChatRequest, model string) []observability.Attribute {
	attrs := []observability.Attribute{observability.String(observability.AttrLLMModel, model)}
	if request.ResponseFormat != nil && request.ResponseFormat.Name != "" {
		attrs = append(attrs, observability.String(observability.AttrLLMSchemaName, request.ResponseFormat.Name))
	}
	for _, key := range slices.Sorted(maps.Keys(request.Metadata)) {
		if key == MetadataStage {
			attrs = append(attrs, observability.String(observability.AttrStage, request.Metadata[key]))
			continue
		}
		attrs = append(attrs, observability.String(observability.AttrMetadataPrefix+key, request.Metadata[key]))
	}
	return attrs
}

// effectiveModel returns the request-level model when set, falling back to the
// client's configured default. Both being empty is valid (provider chooses).
func effectiveModel(requestModel, defaultModel string) string {
	if requestModel != "" {
		return requestModel
	}
	return defaultModel
}
