package mistral

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/leofalp/chatgate/internal/utils"
	"github.com/leofalp/chatgate/providers/ai"
	"github.com/leofalp/chatgate/providers/observability"
)

const (
	// ProviderName is the backend identifier used in errors and logs.
	ProviderName = "mistral"

	defaultBaseURL          = "https://api.mistral.ai/v1"
	chatCompletionsEndpoint = "/chat/completions"

	// DefaultModel is used when the request names no model.
	DefaultModel = "mistral-small-latest"
)

var errMissingAPIKey = errors.New("MISTRAL_API_KEY is not set")

// MistralProvider implements [ai.Provider] for Mistral's chat completions API.
type MistralProvider struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	defaultModel string
}

// New creates a Mistral provider from MISTRAL_API_KEY and MISTRAL_API_BASE_URL.
func New() *MistralProvider {
	baseURL := os.Getenv("MISTRAL_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &MistralProvider{
		apiKey:       os.Getenv("MISTRAL_API_KEY"),
		baseURL:      baseURL,
		client:       &http.Client{},
		defaultModel: DefaultModel,
	}
}

// Name implements [ai.Provider].
func (p *MistralProvider) Name() string {
	return ProviderName
}

// WithAPIKey sets the API key for the provider.
func (p *MistralProvider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL sets the base URL for the API.
func (p *MistralProvider) WithBaseURL(baseURL string) ai.Provider {
	p.baseURL = baseURL
	return p
}

// WithHttpClient sets a custom HTTP client.
func (p *MistralProvider) WithHttpClient(httpClient *http.Client) ai.Provider {
	p.client = httpClient
	return p
}

// WithDefaultModel changes the model used when a request names none.
func (p *MistralProvider) WithDefaultModel(model string) *MistralProvider {
	p.defaultModel = model
	return p
}

func (p *MistralProvider) resolveModel(request ai.ChatRequest) string {
	if request.Model != "" {
		return request.Model
	}
	return p.defaultModel
}

// SendMessage implements [ai.Provider].
func (p *MistralProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	span := observability.SpanFromContext(ctx)
	observer := observability.ObserverFromContext(ctx)
	model := p.resolveModel(request)

	if span != nil {
		span.AddEvent(observability.EventLLMRequestStart)
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, ProviderName),
			observability.String(observability.AttrLLMEndpoint, p.baseURL),
			observability.String(observability.AttrLLMModel, model),
		)
		defer span.AddEvent(observability.EventLLMRequestEnd)
	}

	if observer != nil {
		observer.Trace(ctx, "Mistral provider preparing request",
			observability.String(observability.AttrLLMProvider, ProviderName),
			observability.String(observability.AttrLLMModel, model),
			observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
		)
	}

	if p.apiKey == "" {
		return nil, ai.NewProviderError(ProviderName, 0, errMissingAPIKey)
	}

	httpResponse, resp, err := utils.DoPostSync[chatCompletionResponse](ctx, p.client, p.baseURL+chatCompletionsEndpoint, p.apiKey, requestToMistral(request, model))
	if err != nil {
		if observer != nil {
			observer.Trace(ctx, "HTTP request failed", observability.Error(err))
		}
		return nil, ai.NewProviderError(ProviderName, utils.StatusCodeOf(err), err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, ai.NewProviderError(ProviderName, httpResponse.StatusCode, errors.New("no choices in response"))
	}

	result := responseToGeneric(*resp)
	if result.Model == "" {
		result.Model = model
	}

	if span != nil {
		span.SetAttributes(
			observability.String(observability.AttrLLMFinishReason, result.FinishReason),
			observability.Int(observability.AttrHTTPStatusCode, httpResponse.StatusCode),
		)
		span.AddEvent(observability.EventTokensReceived,
			observability.Int(observability.AttrLLMTokensTotal, result.Usage.TotalTokens),
		)
	}

	return result, nil
}
