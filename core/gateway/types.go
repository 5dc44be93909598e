package gateway

import (
	"time"

	"github.com/leofalp/chatgate/providers/ai"
	"github.com/leofalp/chatgate/providers/memory"
)

// ChatInput is a single generation request addressed to one provider.
type ChatInput struct {
	Message        string   `json:"message"`
	Provider       string   `json:"provider"`
	Model          string   `json:"model,omitempty"`          // Empty selects the provider default
	ConversationID string   `json:"conversationId,omitempty"` // Empty starts a new conversation
	SystemPrompt   string   `json:"systemPrompt,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	MaxTokens      int      `json:"maxTokens,omitempty"`
	IncludeHistory *bool    `json:"includeHistory,omitempty"` // nil means true
}

// includeHistory reports whether stored turns are sent as context.
func (in ChatInput) includeHistory() bool {
	return in.IncludeHistory == nil || *in.IncludeHistory
}

// ChatOutput is the result of Respond.
type ChatOutput struct {
	Response       string    `json:"response"`
	ConversationID string    `json:"conversationId"`
	Model          string    `json:"model"`
	Usage          ai.Usage  `json:"usage"`
	FinishReason   string    `json:"finishReason,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// StreamFrame is one element of RespondStream's output: zero or more frames
// carrying Delta, then exactly one frame with Done set or Error non-empty.
type StreamFrame struct {
	Delta          string    `json:"delta,omitempty"`
	Done           bool      `json:"done,omitempty"`
	ConversationID string    `json:"conversationId,omitempty"`
	Model          string    `json:"model,omitempty"`
	Usage          *ai.Usage `json:"usage,omitempty"`
	Error          string    `json:"error,omitempty"`

	// StoreError is set on a done frame when the reply was delivered but the
	// turns could not be recorded.
	StoreError string `json:"storeError,omitempty"`
}

// IsTerminal reports whether the frame ends the sequence.
func (f StreamFrame) IsTerminal() bool {
	return f.Done || f.Error != ""
}

// CompareInput sends one prompt to several providers.
type CompareInput struct {
	Message      string            `json:"message"`
	Providers    []string          `json:"providers"`
	Models       map[string]string `json:"models,omitempty"` // Provider name to model override
	SystemPrompt string            `json:"systemPrompt,omitempty"`
	Temperature  *float64          `json:"temperature,omitempty"`
	MaxTokens    int               `json:"maxTokens,omitempty"`
}

// CompareStatus is the outcome of one Compare branch.
type CompareStatus string

const (
	StatusFulfilled CompareStatus = "fulfilled"
	StatusRejected  CompareStatus = "rejected"
)

// CompareResult is one provider's outcome within Compare.
type CompareResult struct {
	Provider string        `json:"provider"`
	Status   CompareStatus `json:"status"`
	Response string        `json:"response,omitempty"`
	Model    string        `json:"model,omitempty"`
	Usage    *ai.Usage     `json:"usage,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Conversation is a stored conversation together with its index record.
type Conversation struct {
	ID       string           `json:"id"`
	Metadata *memory.Metadata `json:"metadata,omitempty"`
	Messages []ai.Message     `json:"messages"`
}
