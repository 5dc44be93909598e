package anthropic

/*
	ANTHROPIC MESSAGES API - REQUEST TYPES
*/

// anthropicRequest represents the request body for Anthropic's Messages API.
type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"` // Required by Anthropic on every request
	Temperature *float64           `json:"temperature,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

// anthropicMessage represents a single message in the conversation.
type anthropicMessage struct {
	Role    string                  `json:"role"`    // "user" or "assistant"
	Content []anthropicContentBlock `json:"content"` // Array of content blocks
}

// anthropicContentBlock is a text content block. Other block types are never
// sent by this adapter.
type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

/*
	ANTHROPIC MESSAGES API - RESPONSE TYPES
*/

// anthropicResponse represents the response from Anthropic's Messages API.
type anthropicResponse struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`    // "message"
	Role       string                 `json:"role"`    // "assistant"
	Content    []responseContentBlock `json:"content"` // Response content blocks
	Model      string                 `json:"model"`
	StopReason string                 `json:"stop_reason"`
	Usage      anthropicUsage         `json:"usage"`
}

// responseContentBlock represents a content block in the response. Only "text"
// blocks contribute to the reply; unknown types are ignored.
type responseContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// anthropicUsage reports token consumption for a single request. There is no
// total field.
type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

/*
	ANTHROPIC SSE STREAMING - WIRE TYPES

	Anthropic streaming uses SSE with "event:" lines to identify event types,
	followed by "data:" lines containing JSON payloads. The SSEScanner only
	processes "data:" lines, so the "type" field inside the JSON payload
	discriminates events.

	Event lifecycle:
	  message_start → content_block_start → content_block_delta → content_block_stop →
	  message_delta → message_stop
*/

// anthropicStreamEvent is the top-level envelope for all Anthropic SSE events.
type anthropicStreamEvent struct {
	Type    string             `json:"type"`              // Event discriminator
	Message *anthropicResponse `json:"message,omitempty"` // For "message_start"
	Delta   *streamDelta       `json:"delta,omitempty"`   // For "content_block_delta" and "message_delta"
	Usage   *anthropicUsage    `json:"usage,omitempty"`   // For "message_delta"
	Error   *anthropicError    `json:"error,omitempty"`   // For "error" events
}

// streamDelta carries incremental content within a content_block_delta or message_delta event.
type streamDelta struct {
	Type       string `json:"type,omitempty"`        // "text_delta" for content deltas
	Text       string `json:"text,omitempty"`        // For text_delta
	StopReason string `json:"stop_reason,omitempty"` // For message_delta
}

// anthropicError represents an error event in the Anthropic SSE stream.
type anthropicError struct {
	Type    string `json:"type"`    // Error type (e.g., "overloaded_error", "api_error")
	Message string `json:"message"` // Human-readable error description
}
