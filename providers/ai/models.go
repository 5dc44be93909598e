package ai

import (
	"strconv"
	"strings"
	"time"
)

/*
	##### PROVIDER INPUT #####
*/

// ChatRequest is the canonical, backend-agnostic generation request. The last
// element of Messages is the turn to answer; everything before it is context.
type ChatRequest struct {
	Model            string            `json:"model,omitempty"`             // Model name or identifier; empty selects the adapter default
	Messages         []Message         `json:"messages"`                    // Conversation history followed by the new turn
	SystemPrompt     string            `json:"system_prompt,omitempty"`     // Optional system prompt
	GenerationConfig *GenerationConfig `json:"generation_config,omitempty"` // Optional sampling configuration
}

// Message represents a single turn in a conversation. Messages are immutable
// once appended to a conversation log.
type Message struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// GenerationConfig carries the caller-controlled sampling parameters. The same
// values apply to both SendMessage and StreamMessage.
type GenerationConfig struct {
	Temperature *float64 `json:"temperature,omitempty"` // Sampling temperature [0..2]; nil leaves the vendor default
	MaxTokens   int      `json:"max_tokens,omitempty"`  // Upper bound on generated tokens; 0 leaves the adapter default
}

// MaxTemperature is the upper bound accepted by Validate. Vendors with a
// narrower range clamp on their side.
const MaxTemperature = 2.0

// LastMessage returns the turn to answer, or the zero Message when the request
// carries no messages.
func (r ChatRequest) LastMessage() Message {
	if len(r.Messages) == 0 {
		return Message{}
	}
	return r.Messages[len(r.Messages)-1]
}

// History returns every message preceding the turn to answer.
func (r ChatRequest) History() []Message {
	if len(r.Messages) <= 1 {
		return nil
	}
	return r.Messages[:len(r.Messages)-1]
}

// Temperature returns the requested temperature and whether one was set.
func (r ChatRequest) Temperature() (float64, bool) {
	if r.GenerationConfig == nil || r.GenerationConfig.Temperature == nil {
		return 0, false
	}
	return *r.GenerationConfig.Temperature, true
}

// MaxTokens returns the requested token limit, or fallback when none was set.
func (r ChatRequest) MaxTokens(fallback int) int {
	if r.GenerationConfig == nil || r.GenerationConfig.MaxTokens <= 0 {
		return fallback
	}
	return r.GenerationConfig.MaxTokens
}

// Validate checks the request invariants before any adapter sees it.
func (r ChatRequest) Validate() error {
	if len(r.Messages) == 0 {
		return &ValidationError{Field: "messages", Reason: "at least one message is required"}
	}

	for i, message := range r.Messages {
		if !message.Role.Valid() {
			return &ValidationError{Field: "messages", Reason: "message " + strconv.Itoa(i) + " has unknown role " + string(message.Role)}
		}
	}

	last := r.LastMessage()
	if last.Role != RoleUser {
		return &ValidationError{Field: "messages", Reason: "the last message must be a user turn"}
	}
	if strings.TrimSpace(last.Content) == "" {
		return &ValidationError{Field: "message", Reason: "must not be empty"}
	}

	if temperature, ok := r.Temperature(); ok && (temperature < 0 || temperature > MaxTemperature) {
		return &ValidationError{Field: "temperature", Reason: "must be within [0, 2]"}
	}
	if r.GenerationConfig != nil && r.GenerationConfig.MaxTokens < 0 {
		return &ValidationError{Field: "maxTokens", Reason: "must be positive"}
	}

	return nil
}

/*
	##### PROVIDER OUTPUT #####
*/

// Usage is the canonical token accounting shape every adapter produces.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Normalize clamps negative counters to zero and derives TotalTokens from its
// components when the vendor did not report a total.
func (u Usage) Normalize() Usage {
	if u.PromptTokens < 0 {
		u.PromptTokens = 0
	}
	if u.CompletionTokens < 0 {
		u.CompletionTokens = 0
	}
	if u.TotalTokens <= 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u
}

// ChatResponse is the canonical generation result.
type ChatResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"` // Model actually used; vendors may normalize aliases
	Usage        Usage  `json:"usage"`
	FinishReason string `json:"finish_reason,omitempty"`
}

/*
	##### ENUMS #####
*/

// MessageRole represents the role of a message; compatible with string
type MessageRole string

const (
	RoleSystem    MessageRole = "system"    // System instructions/configuration
	RoleUser      MessageRole = "user"      // End-user message
	RoleAssistant MessageRole = "assistant" // Model response
)

// Valid reports whether r is one of the canonical roles.
func (r MessageRole) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}
