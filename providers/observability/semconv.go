package observability

// Semantic conventions for observability attributes.
// These constants define standard attribute names to ensure consistency
// across the gateway, the adapters, and the conversation store.

// --- LLM Provider Attributes ---

const (
	// AttrLLMProvider is the backend identifier (e.g., "openai", "cohere")
	AttrLLMProvider = "llm.provider"

	// AttrLLMModel is the model identifier
	AttrLLMModel = "llm.model"

	// AttrLLMEndpoint is the API endpoint URL
	AttrLLMEndpoint = "llm.endpoint"

	// AttrLLMStreaming marks streaming requests
	AttrLLMStreaming = "llm.streaming"

	// AttrLLMFinishReason is the reason the generation finished
	AttrLLMFinishReason = "llm.finish_reason"

	// AttrLLMTokensPrompt is the number of prompt tokens
	AttrLLMTokensPrompt = "llm.tokens.prompt" // #nosec G101 -- LLM tokens, not credentials

	// AttrLLMTokensCompletion is the number of completion tokens
	AttrLLMTokensCompletion = "llm.tokens.completion" // #nosec G101 -- LLM tokens, not credentials

	// AttrLLMTokensTotal is the total number of tokens
	AttrLLMTokensTotal = "llm.tokens.total" // #nosec G101 -- LLM tokens, not credentials

	// AttrRequestMessagesCount is the number of messages in the request
	AttrRequestMessagesCount = "request.messages_count"
)

// --- HTTP Attributes ---

const (
	AttrHTTPMethod           = "http.method"
	AttrHTTPStatusCode       = "http.status_code"
	AttrHTTPURL              = "http.url"
	AttrHTTPRequestBodySize  = "http.request.body.size"
	AttrHTTPResponseBodySize = "http.response.body.size"
)

// --- Conversation Store Attributes ---

const (
	// AttrConversationID is the conversation being read or written
	AttrConversationID = "store.conversation_id"

	// AttrMessageRole is the role of the message being stored
	AttrMessageRole = "store.message.role"

	// AttrMessageCount is the logical message count after an append
	AttrMessageCount = "store.message_count"

	// AttrStoredMessages is the number of messages physically kept after truncation
	AttrStoredMessages = "store.stored_messages"
)

// --- General Attributes ---

const (
	AttrError             = "error"
	AttrDuration          = "duration"
	AttrStatus            = "status"
	AttrStatusDescription = "status_description"
)

// --- Span Names ---

const (
	SpanGatewayRespond = "gateway.respond"
	SpanGatewayStream  = "gateway.stream"
	SpanGatewayCompare = "gateway.compare"
)

// --- Event Names ---

const (
	EventLLMRequestStart = "llm.request.start"
	EventLLMRequestEnd   = "llm.request.end"
	EventTokensReceived  = "llm.tokens.received" // #nosec G101 -- LLM tokens, not credentials
	EventStoreAppend     = "store.append"
	EventStoreDelete     = "store.delete"
	EventStoreImport     = "store.import"
)

// --- Metric Names ---

const (
	MetricGatewayRequestCount    = "chatgate.gateway.request.count"
	MetricGatewayRequestDuration = "chatgate.gateway.request.duration"
	MetricGatewayTokensTotal     = "chatgate.gateway.tokens.total"
)
