package mistral

import "github.com/leofalp/chatgate/providers/ai"

// requestToMistral builds the flat message list with the system prompt first.
func requestToMistral(request ai.ChatRequest, model string) chatCompletionRequest {
	messages := make([]chatMessage, 0, len(request.Messages)+1)
	if request.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: string(ai.RoleSystem), Content: request.SystemPrompt})
	}
	for _, message := range request.Messages {
		messages = append(messages, chatMessage{Role: string(message.Role), Content: message.Content})
	}

	req := chatCompletionRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: request.MaxTokens(0),
	}
	if temperature, ok := request.Temperature(); ok {
		// Mistral accepts [0, 1].
		clamped := min(temperature, 1.0)
		req.Temperature = &clamped
	}
	return req
}

func responseToGeneric(resp chatCompletionResponse) *ai.ChatResponse {
	result := &ai.ChatResponse{
		Model: resp.Model,
		Usage: usageToGeneric(resp.Usage),
	}
	if len(resp.Choices) > 0 {
		result.Content = resp.Choices[0].Message.Content
		result.FinishReason = resp.Choices[0].FinishReason
	}
	return result
}

func usageToGeneric(usage *usageFields) ai.Usage {
	if usage == nil {
		return ai.Usage{}
	}
	return ai.Usage{
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	}.Normalize()
}
