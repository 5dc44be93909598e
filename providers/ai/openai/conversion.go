package openai

import (
	"math"

	openaiapi "github.com/sashabaranov/go-openai"

	"github.com/leofalp/chatgate/providers/ai"
)

// requestToOpenAI converts the canonical request into a chat completion request.
func requestToOpenAI(request ai.ChatRequest, model string) openaiapi.ChatCompletionRequest {
	messages := make([]openaiapi.ChatCompletionMessage, 0, len(request.Messages)+1)
	if request.SystemPrompt != "" {
		messages = append(messages, openaiapi.ChatCompletionMessage{
			Role:    openaiapi.ChatMessageRoleSystem,
			Content: request.SystemPrompt,
		})
	}
	for _, message := range request.Messages {
		messages = append(messages, openaiapi.ChatCompletionMessage{
			Role:    roleToOpenAI(message.Role),
			Content: message.Content,
		})
	}

	apiReq := openaiapi.ChatCompletionRequest{
		Model:               model,
		Messages:            messages,
		MaxCompletionTokens: request.MaxTokens(0),
	}
	if temperature, ok := request.Temperature(); ok {
		apiReq.Temperature = float32(temperature)
		// Temperature is omitempty in go-openai; the smallest non-zero value
		// keeps an explicit 0 on the wire.
		if apiReq.Temperature == 0 {
			apiReq.Temperature = math.SmallestNonzeroFloat32
		}
	}

	return apiReq
}

func roleToOpenAI(role ai.MessageRole) string {
	switch role {
	case ai.RoleSystem:
		return openaiapi.ChatMessageRoleSystem
	case ai.RoleAssistant:
		return openaiapi.ChatMessageRoleAssistant
	default:
		return openaiapi.ChatMessageRoleUser
	}
}

// responseToGeneric maps the first choice and the reported usage. OpenAI
// reports the total directly.
func responseToGeneric(resp openaiapi.ChatCompletionResponse) *ai.ChatResponse {
	result := &ai.ChatResponse{
		Model: resp.Model,
		Usage: usageToGeneric(resp.Usage),
	}
	if len(resp.Choices) > 0 {
		result.Content = resp.Choices[0].Message.Content
		result.FinishReason = string(resp.Choices[0].FinishReason)
	}
	return result
}

func usageToGeneric(usage openaiapi.Usage) ai.Usage {
	return ai.Usage{
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	}.Normalize()
}
