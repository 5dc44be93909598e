package openai

import (
	"context"
	"errors"
	"net/http"
	"os"

	openaiapi "github.com/sashabaranov/go-openai"

	"github.com/leofalp/chatgate/providers/ai"
	"github.com/leofalp/chatgate/providers/observability"
)

const (
	// ProviderName is the backend identifier used in errors and logs.
	ProviderName = "openai"

	defaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is used when the request names no model.
	DefaultModel = "gpt-4o-mini"
)

var errMissingAPIKey = errors.New("OPENAI_API_KEY is not set")

// OpenAIProvider implements the Provider interface for the OpenAI API.
type OpenAIProvider struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	defaultModel string
}

// New creates a new OpenAI provider instance with default values from environment.
// Environment variables:
//   - OPENAI_API_KEY: API key for authentication
//   - OPENAI_API_BASE_URL: Base URL for API (optional)
func New() *OpenAIProvider {
	baseURL := os.Getenv("OPENAI_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &OpenAIProvider{
		apiKey:       os.Getenv("OPENAI_API_KEY"),
		baseURL:      baseURL,
		client:       &http.Client{},
		defaultModel: DefaultModel,
	}
}

// Name implements [ai.Provider].
func (p *OpenAIProvider) Name() string {
	return ProviderName
}

// WithAPIKey sets the API key for the provider
func (p *OpenAIProvider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL sets the base URL for the API
func (p *OpenAIProvider) WithBaseURL(baseURL string) ai.Provider {
	p.baseURL = baseURL
	return p
}

// WithHttpClient sets a custom HTTP client
func (p *OpenAIProvider) WithHttpClient(httpClient *http.Client) ai.Provider {
	p.client = httpClient
	return p
}

// WithDefaultModel changes the model used when a request names none.
func (p *OpenAIProvider) WithDefaultModel(model string) *OpenAIProvider {
	p.defaultModel = model
	return p
}

func (p *OpenAIProvider) resolveModel(request ai.ChatRequest) string {
	if request.Model != "" {
		return request.Model
	}
	return p.defaultModel
}

// api builds a vendor client from the current settings. Building per call
// keeps the builder methods free of ordering constraints.
func (p *OpenAIProvider) api() *openaiapi.Client {
	config := openaiapi.DefaultConfig(p.apiKey)
	config.BaseURL = p.baseURL
	if p.client != nil {
		config.HTTPClient = p.client
	}
	return openaiapi.NewClientWithConfig(config)
}

// SendMessage implements the Provider interface
func (p *OpenAIProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
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
		observer.Trace(ctx, "OpenAI provider preparing request",
			observability.String(observability.AttrLLMProvider, ProviderName),
			observability.String(observability.AttrLLMModel, model),
			observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
		)
	}

	if p.apiKey == "" {
		return nil, ai.NewProviderError(ProviderName, 0, errMissingAPIKey)
	}

	resp, err := p.api().CreateChatCompletion(ctx, requestToOpenAI(request, model))
	if err != nil {
		if observer != nil {
			observer.Trace(ctx, "chat completion failed", observability.Error(err))
		}
		return nil, wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, ai.NewProviderError(ProviderName, 0, errors.New("no choices in response"))
	}

	result := responseToGeneric(resp)
	if result.Model == "" {
		result.Model = model
	}

	if span != nil {
		span.SetAttributes(observability.String(observability.AttrLLMFinishReason, result.FinishReason))
		span.AddEvent(observability.EventTokensReceived,
			observability.Int(observability.AttrLLMTokensTotal, result.Usage.TotalTokens),
		)
	}

	return result, nil
}

// wrapError turns a go-openai error into an ai.ProviderError, keeping the
// HTTP status the client reports.
func wrapError(err error) error {
	var apiErr *openaiapi.APIError
	if errors.As(err, &apiErr) {
		return ai.NewProviderError(ProviderName, apiErr.HTTPStatusCode, err)
	}
	var requestErr *openaiapi.RequestError
	if errors.As(err, &requestErr) {
		return ai.NewProviderError(ProviderName, requestErr.HTTPStatusCode, err)
	}
	return ai.NewProviderError(ProviderName, 0, err)
}
