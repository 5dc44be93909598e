package cohere

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
	ProviderName = "cohere"

	defaultBaseURL = "https://api.cohere.ai/v1"
	chatEndpoint   = "/chat"

	// DefaultModel is used when the request names no model.
	DefaultModel = "command-r"
)

var errMissingAPIKey = errors.New("COHERE_API_KEY is not set")

// CohereProvider implements [ai.Provider] for Cohere's Chat API.
type CohereProvider struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	defaultModel string
}

// New creates a Cohere provider from COHERE_API_KEY and COHERE_API_BASE_URL.
func New() *CohereProvider {
	baseURL := os.Getenv("COHERE_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &CohereProvider{
		apiKey:       os.Getenv("COHERE_API_KEY"),
		baseURL:      baseURL,
		client:       &http.Client{},
		defaultModel: DefaultModel,
	}
}

// Name implements [ai.Provider].
func (p *CohereProvider) Name() string {
	return ProviderName
}

// WithAPIKey sets the API key for the provider.
func (p *CohereProvider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL sets the base URL for the API.
func (p *CohereProvider) WithBaseURL(baseURL string) ai.Provider {
	p.baseURL = baseURL
	return p
}

// WithHttpClient sets a custom HTTP client.
func (p *CohereProvider) WithHttpClient(httpClient *http.Client) ai.Provider {
	p.client = httpClient
	return p
}

// WithDefaultModel changes the model used when a request names none.
func (p *CohereProvider) WithDefaultModel(model string) *CohereProvider {
	p.defaultModel = model
	return p
}

func (p *CohereProvider) resolveModel(request ai.ChatRequest) string {
	if request.Model != "" {
		return request.Model
	}
	return p.defaultModel
}

// SendMessage implements [ai.Provider].
func (p *CohereProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
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
		observer.Trace(ctx, "Cohere provider preparing request",
			observability.String(observability.AttrLLMProvider, ProviderName),
			observability.String(observability.AttrLLMModel, model),
			observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
		)
	}

	if p.apiKey == "" {
		return nil, ai.NewProviderError(ProviderName, 0, errMissingAPIKey)
	}

	httpResponse, resp, err := utils.DoPostSync[chatResponse](ctx, p.client, p.baseURL+chatEndpoint, p.apiKey, requestToCohere(request, model))
	if err != nil {
		if observer != nil {
			observer.Trace(ctx, "HTTP request failed", observability.Error(err))
		}
		return nil, ai.NewProviderError(ProviderName, utils.StatusCodeOf(err), err)
	}
	if resp == nil {
		return nil, ai.NewProviderError(ProviderName, httpResponse.StatusCode, errors.New("empty response body"))
	}

	result := responseToGeneric(*resp, model)

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
