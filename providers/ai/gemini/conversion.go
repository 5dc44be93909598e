package gemini

import (
	"strings"

	"github.com/leofalp/chatgate/providers/ai"
)

const (
	roleUser  = "user"
	roleModel = "model"

	// systemAcknowledgment is the synthetic model turn that follows the system
	// prompt so the sequence keeps alternating.
	systemAcknowledgment = "Understood. I will follow these instructions."
)

// requestToGemini converts the canonical request into a generateContent body.
func requestToGemini(request ai.ChatRequest) generateContentRequest {
	geminiReq := generateContentRequest{
		Contents: buildContents(request.SystemPrompt, request.Messages),
	}

	temperature, hasTemperature := request.Temperature()
	maxTokens := request.MaxTokens(0)
	if hasTemperature || maxTokens > 0 {
		geminiReq.GenerationConfig = &generationConfig{}
		if hasTemperature {
			geminiReq.GenerationConfig.Temperature = &temperature
		}
		if maxTokens > 0 {
			geminiReq.GenerationConfig.MaxOutputTokens = &maxTokens
		}
	}

	return geminiReq
}

// buildContents produces the alternating user/model sequence Gemini requires.
// System turns in the history are folded into user turns.
func buildContents(systemPrompt string, messages []ai.Message) []content {
	contents := make([]content, 0, len(messages)+2)

	if systemPrompt != "" {
		contents = append(contents,
			content{Role: roleUser, Parts: []part{{Text: systemPrompt}}},
			content{Role: roleModel, Parts: []part{{Text: systemAcknowledgment}}},
		)
	}

	for _, message := range messages {
		role := roleUser
		if message.Role == ai.RoleAssistant {
			role = roleModel
		}

		if last := len(contents) - 1; last >= 0 && contents[last].Role == role {
			contents[last].Parts = append(contents[last].Parts, part{Text: message.Content})
			continue
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: message.Content}}})
	}

	return contents
}

// geminiToGeneric maps a generateContent response to the canonical result.
// Only the first candidate is used.
func geminiToGeneric(response generateContentResponse) *ai.ChatResponse {
	result := &ai.ChatResponse{
		Model: response.ModelVersion,
		Usage: usageToGeneric(response.UsageMetadata),
	}

	if len(response.Candidates) > 0 {
		result.Content = candidateText(response.Candidates[0])
		result.FinishReason = mapFinishReason(response.Candidates[0].FinishReason)
	}

	return result
}

func candidateText(c candidate) string {
	var text strings.Builder
	for _, p := range c.Content.Parts {
		text.WriteString(p.Text)
	}
	return text.String()
}

// usageToGeneric maps usageMetadata; a missing block yields zero usage.
func usageToGeneric(usage *usageMetadata) ai.Usage {
	if usage == nil {
		return ai.Usage{}
	}
	return ai.Usage{
		PromptTokens:     usage.PromptTokenCount,
		CompletionTokens: usage.CandidatesTokenCount,
		TotalTokens:      usage.TotalTokenCount,
	}.Normalize()
}

// mapFinishReason converts Gemini finish reason to ai.ChatResponse finish reason.
func mapFinishReason(geminiReason string) string {
	switch geminiReason {
	case "":
		return ""
	case "MAX_TOKENS":
		return "length"
	case "SAFETY", "RECITATION":
		return "content_filter"
	default:
		return "stop"
	}
}
