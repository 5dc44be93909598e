package anthropic

import (
	"strings"

	"github.com/leofalp/chatgate/providers/ai"
)

// requestToAnthropic converts an ai.ChatRequest into an anthropicRequest ready
// to POST to Anthropic's Messages API.
func requestToAnthropic(request ai.ChatRequest, model string) anthropicRequest {
	req := anthropicRequest{
		Model:     model,
		Messages:  buildMessages(request.Messages),
		System:    request.SystemPrompt,
		MaxTokens: request.MaxTokens(defaultMaxTokens),
	}

	if temperature, ok := request.Temperature(); ok {
		// Anthropic accepts [0, 1].
		clamped := min(temperature, 1.0)
		req.Temperature = &clamped
	}

	return req
}

// buildMessages converts the canonical turns into Anthropic messages. System
// turns are dropped because system content travels in the dedicated field.
func buildMessages(messages []ai.Message) []anthropicMessage {
	result := make([]anthropicMessage, 0, len(messages))
	for _, message := range messages {
		if message.Role == ai.RoleSystem {
			continue
		}
		result = append(result, anthropicMessage{
			Role:    string(message.Role),
			Content: []anthropicContentBlock{{Type: "text", Text: message.Content}},
		})
	}
	return result
}

// anthropicToGeneric maps a Messages API response to the canonical result.
// Text blocks are concatenated in order.
func anthropicToGeneric(response anthropicResponse) *ai.ChatResponse {
	var content strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &ai.ChatResponse{
		Content:      content.String(),
		Model:        response.Model,
		Usage:        usageToGeneric(response.Usage),
		FinishReason: response.StopReason,
	}
}

func usageToGeneric(usage anthropicUsage) ai.Usage {
	return ai.Usage{
		PromptTokens:     usage.InputTokens,
		CompletionTokens: usage.OutputTokens,
	}.Normalize()
}
