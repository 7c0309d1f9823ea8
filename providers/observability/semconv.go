package observability

// Semantic conventions for observability attributes.
// These constants define standard attribute names to ensure consistency
// across the client, the providers and the pipeline stages.

// --- LLM Provider Attributes ---

const (
	// AttrLLMProvider is the name of the LLM provider (e.g., "openai")
	AttrLLMProvider = "llm.provider"

	// AttrLLMModel is the model identifier (e.g., "gpt-4o-mini")
	AttrLLMModel = "llm.model"

	// AttrLLMEndpoint is the API endpoint URL
	AttrLLMEndpoint = "llm.endpoint"

	// AttrLLMResponseID is the unique response identifier from the provider
	AttrLLMResponseID = "llm.response.id"

	// AttrLLMFinishReason is the reason the generation finished
	AttrLLMFinishReason = "llm.finish_reason"

	// AttrLLMSchemaName is the name of the structured output schema requested
	AttrLLMSchemaName = "llm.schema.name"

	// AttrLLMAttempt is the 1-based attempt number of a retried call
	AttrLLMAttempt = "llm.attempt"
)

// --- Token Usage Attributes ---

const (
	// AttrLLMTokensPrompt is the number of prompt tokens
	AttrLLMTokensPrompt = "llm.tokens.prompt" // #nosec G101 -- Not a credential, token refers to LLM tokens

	// AttrLLMTokensCompletion is the number of completion tokens
	AttrLLMTokensCompletion = "llm.tokens.completion" // #nosec G101 -- Not a credential, token refers to LLM tokens

	// AttrLLMTokensTotal is the total number of tokens
	AttrLLMTokensTotal = "llm.tokens.total" // #nosec G101 -- Not a credential, token refers to LLM tokens
)

// --- Request/Response Attributes ---

const (
	// AttrRequestMessagesCount is the number of messages in the request
	AttrRequestMessagesCount = "request.messages_count"

	// AttrResponseLength is the length of the response content in bytes
	AttrResponseLength = "response.length"

	// AttrDecodeKind is the outcome of decoding a structured response
	AttrDecodeKind = "decode.kind"
)

// --- HTTP Attributes ---

const (
	// AttrHTTPMethod is the HTTP method (GET, POST, etc.)
	AttrHTTPMethod = "http.method"

	// AttrHTTPStatusCode is the HTTP response status code
	AttrHTTPStatusCode = "http.status_code"

	// AttrHTTPURL is the full request URL
	AttrHTTPURL = "http.url"

	// AttrHTTPRequestBodySize is the request body size in bytes
	AttrHTTPRequestBodySize = "http.request.body.size"

	// AttrHTTPResponseBodySize is the response body size in bytes
	AttrHTTPResponseBodySize = "http.response.body.size"
)

// --- Pipeline Attributes ---

const (
	// AttrTraceID is the trace identifier of the enclosing workflow
	AttrTraceID = "trace.id"

	// AttrGroupID links all traces of one pipeline run
	AttrGroupID = "trace.group_id"

	// AttrMetadataPrefix prefixes free-form trace metadata keys
	AttrMetadataPrefix = "trace.metadata."

	// AttrStage is the stage identifier (e.g., "03_topic_identifier")
	AttrStage = "pipeline.stage"

	// AttrStageStatus is the terminal status of a stage
	AttrStageStatus = "pipeline.stage.status"

	// AttrFanoutBranches is the number of branches scattered by a stage
	AttrFanoutBranches = "pipeline.fanout.branches"

	// AttrFanoutSucceeded is the number of branches that produced a result
	AttrFanoutSucceeded = "pipeline.fanout.succeeded"

	// AttrBranchKey identifies one branch of a fan-out
	AttrBranchKey = "pipeline.fanout.key"

	// AttrArtifactPath is the path of a written artifact
	AttrArtifactPath = "artifact.path"

	// AttrInputSource describes where the document came from
	AttrInputSource = "input.source"

	// AttrInputLength is the document length in bytes
	AttrInputLength = "input.length"
)

// --- General Attributes ---

const (
	// AttrError is the error message
	AttrError = "error"

	// AttrErrorType is the error type/class
	AttrErrorType = "error.type"

	// AttrDuration is the operation duration
	AttrDuration = "duration"

	// AttrStatus is the operation status
	AttrStatus = "status"

	// AttrStatusDescription is the status description
	AttrStatusDescription = "status_description"
)

// --- Span Names ---

const (
	// SpanClientSendMessage is the span name for client message sending
	SpanClientSendMessage = "client.send_message"

	// SpanLLMRequest is the span name for LLM API requests
	SpanLLMRequest = "llm.request"

	// SpanPipelineRun is the span name wrapping a whole run
	SpanPipelineRun = "pipeline.run"

	// SpanFanoutBranch is the span name for a single scatter branch
	SpanFanoutBranch = "pipeline.fanout.branch"

	// SpanScoring is the span name for a scoring sub-call
	SpanScoring = "pipeline.scoring"
)

// --- Event Names ---

const (
	// EventLLMRequestStart marks the start of an LLM request
	EventLLMRequestStart = "llm.request.start"

	// EventLLMRequestEnd marks the end of an LLM request
	EventLLMRequestEnd = "llm.request.end"

	// EventRetryScheduled marks a retry after a transient failure
	EventRetryScheduled = "llm.retry.scheduled"

	// EventArtifactWritten marks a successfully written artifact
	EventArtifactWritten = "artifact.written"
)

// --- Metric Names ---

const (
	// MetricClientRequestCount is the counter for client requests
	MetricClientRequestCount = "graphyte.llm.requests"

	// MetricClientRequestDuration is the histogram for request duration
	MetricClientRequestDuration = "graphyte.llm.request.duration"

	// MetricClientRetries is the counter for retried attempts
	MetricClientRetries = "graphyte.llm.retries"

	// MetricClientTokensTotal is the counter for total tokens
	MetricClientTokensTotal = "graphyte.llm.tokens.total"

	// MetricStageOutcomes counts stage terminal statuses
	MetricStageOutcomes = "graphyte.stage.outcomes"
)
