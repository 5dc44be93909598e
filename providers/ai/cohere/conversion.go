package cohere

import (
	"github.com/leofalp/chatgate/providers/ai"
)

const (
	roleUser    = "USER"
	roleChatbot = "CHATBOT"
	roleSystem  = "SYSTEM"

	// Finish reasons that end a stream normally; anything else is an error.
	finishComplete  = "COMPLETE"
	finishMaxTokens = "MAX_TOKENS"
)

// requestToCohere splits the canonical request into chat_history and message.
func requestToCohere(request ai.ChatRequest, model string) chatRequest {
	history := request.History()
	chatHistory := make([]chatMessage, 0, len(history))
	for _, message := range history {
		chatHistory = append(chatHistory, chatMessage{Role: roleToCohere(message.Role), Message: message.Content})
	}

	req := chatRequest{
		Model:       model,
		Message:     request.LastMessage().Content,
		ChatHistory: chatHistory,
		Preamble:    request.SystemPrompt,
		MaxTokens:   request.MaxTokens(0),
	}
	if temperature, ok := request.Temperature(); ok {
		req.Temperature = &temperature
	}
	return req
}

func roleToCohere(role ai.MessageRole) string {
	switch role {
	case ai.RoleAssistant:
		return roleChatbot
	case ai.RoleSystem:
		return roleSystem
	default:
		return roleUser
	}
}

// responseToGeneric maps a chat reply. Cohere does not echo the model.
func responseToGeneric(resp chatResponse, model string) *ai.ChatResponse {
	return &ai.ChatResponse{
		Content:      resp.Text,
		Model:        model,
		Usage:        usageToGeneric(resp.Meta),
		FinishReason: resp.FinishReason,
	}
}

// usageToGeneric reads billed_units, falling back to tokens. Cohere never
// reports a total, so it is derived.
func usageToGeneric(m *meta) ai.Usage {
	if m == nil {
		return ai.Usage{}
	}
	counts := m.BilledUnits
	if counts == nil {
		counts = m.Tokens
	}
	if counts == nil {
		return ai.Usage{}
	}
	return ai.Usage{
		PromptTokens:     int(counts.InputTokens),
		CompletionTokens: int(counts.OutputTokens),
	}.Normalize()
}
