package cohere

/*
	COHERE CHAT API - REQUEST TYPES
*/

// chatRequest represents the request body for POST /chat.
type chatRequest struct {
	Model       string        `json:"model"`
	Message     string        `json:"message"`
	ChatHistory []chatMessage `json:"chat_history,omitempty"`
	Preamble    string        `json:"preamble,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// chatMessage is one entry of chat_history.
type chatMessage struct {
	Role    string `json:"role"` // "USER", "CHATBOT" or "SYSTEM"
	Message string `json:"message"`
}

/*
	COHERE CHAT API - RESPONSE TYPES
*/

// chatResponse is the non-streaming reply, also embedded in the stream-end event.
type chatResponse struct {
	ResponseID   string `json:"response_id,omitempty"`
	GenerationID string `json:"generation_id,omitempty"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
	Meta         *meta  `json:"meta,omitempty"`
}

// meta carries token accounting. billed_units is preferred; tokens is the
// fallback when billing data is absent.
type meta struct {
	BilledUnits *tokenCounts `json:"billed_units,omitempty"`
	Tokens      *tokenCounts `json:"tokens,omitempty"`
}

type tokenCounts struct {
	InputTokens  float64 `json:"input_tokens"`
	OutputTokens float64 `json:"output_tokens"`
}

/*
	COHERE CHAT API - STREAM EVENTS

	One JSON object per line:
	  stream-start → text-generation(s) → stream-end
*/

// streamEvent is a single NDJSON line of a streamed chat.
type streamEvent struct {
	EventType    string        `json:"event_type"`
	IsFinished   bool          `json:"is_finished"`
	Text         string        `json:"text,omitempty"`          // For text-generation
	FinishReason string        `json:"finish_reason,omitempty"` // For stream-end
	Response     *chatResponse `json:"response,omitempty"`      // For stream-end
}
