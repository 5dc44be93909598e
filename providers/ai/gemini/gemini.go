package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/leofalp/chatgate/internal/utils"
	"github.com/leofalp/chatgate/providers/ai"
	"github.com/leofalp/chatgate/providers/observability"
)

const (
	// ProviderName is the backend identifier used in errors and logs.
	ProviderName = "gemini"

	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultModel is the most cost-effective model, used when the request names none.
	DefaultModel = "gemini-2.0-flash-lite"
)

var errMissingAPIKey = errors.New("GEMINI_API_KEY is not set")

// GeminiProvider implements the ai.Provider interface for Google's Gemini API.
type GeminiProvider struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	defaultModel string
}

// New creates a new Gemini provider instance with default values from environment.
// Environment variables:
//   - GEMINI_API_KEY: API key for authentication
//   - GEMINI_API_BASE_URL: Base URL for API (optional, defaults to Google's API)
func New() *GeminiProvider {
	baseURL := os.Getenv("GEMINI_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &GeminiProvider{
		apiKey:       os.Getenv("GEMINI_API_KEY"),
		baseURL:      baseURL,
		client:       &http.Client{},
		defaultModel: DefaultModel,
	}
}

// Name implements [ai.Provider].
func (p *GeminiProvider) Name() string {
	return ProviderName
}

// WithAPIKey sets the API key for the provider.
func (p *GeminiProvider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL sets the base URL for the API.
func (p *GeminiProvider) WithBaseURL(baseURL string) ai.Provider {
	p.baseURL = baseURL
	return p
}

// WithHttpClient sets a custom HTTP client.
func (p *GeminiProvider) WithHttpClient(httpClient *http.Client) ai.Provider {
	p.client = httpClient
	return p
}

// WithDefaultModel changes the model used when a request names none.
func (p *GeminiProvider) WithDefaultModel(model string) *GeminiProvider {
	p.defaultModel = model
	return p
}

func (p *GeminiProvider) resolveModel(request ai.ChatRequest) string {
	if request.Model != "" {
		return request.Model
	}
	return p.defaultModel
}

func (p *GeminiProvider) authHeader() utils.HeaderOption {
	return utils.HeaderOption{Key: "x-goog-api-key", Value: p.apiKey}
}

// SendMessage implements the ai.Provider interface.
// It sends a chat request to the Gemini API and returns the response.
func (p *GeminiProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
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
		observer.Trace(ctx, "Gemini provider preparing request",
			observability.String(observability.AttrLLMProvider, ProviderName),
			observability.String(observability.AttrLLMModel, model),
			observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
		)
	}

	if p.apiKey == "" {
		return nil, ai.NewProviderError(ProviderName, 0, errMissingAPIKey)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, model)

	// Empty apiKey: Gemini authenticates with x-goog-api-key, not Bearer.
	httpResponse, resp, err := utils.DoPostSync[generateContentResponse](ctx, p.client, url, "", requestToGemini(request), p.authHeader())
	if err != nil {
		if observer != nil {
			observer.Trace(ctx, "HTTP request failed", observability.Error(err))
		}
		return nil, ai.NewProviderError(ProviderName, utils.StatusCodeOf(err), err)
	}
	if resp == nil {
		return nil, ai.NewProviderError(ProviderName, httpResponse.StatusCode, errors.New("empty response body"))
	}
	if len(resp.Candidates) == 0 && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, ai.NewProviderError(ProviderName, httpResponse.StatusCode, fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason))
	}

	result := geminiToGeneric(*resp)
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
