package anthropic

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
	ProviderName = "anthropic"

	// defaultBaseURL is the canonical base URL for Anthropic's Messages API.
	defaultBaseURL = "https://api.anthropic.com/v1"

	// messagesEndpoint is the path for the Messages API endpoint.
	messagesEndpoint = "/messages"

	// anthropicVersion is the required anthropic-version header value.
	// Anthropic uses this to version-lock response formats independently of the URL.
	anthropicVersion = "2023-06-01"

	// DefaultModel is used when the request does not name a model.
	DefaultModel = "claude-3-5-haiku-latest"

	// defaultMaxTokens is sent when the caller sets no limit; the field is mandatory.
	defaultMaxTokens = 1024
)

var errMissingAPIKey = errors.New("ANTHROPIC_API_KEY is not set")

// AnthropicProvider implements [ai.Provider] for Anthropic's Messages API.
// Use [New] to construct a ready-to-use instance.
type AnthropicProvider struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	defaultModel string
}

// New returns an [AnthropicProvider] initialized from environment variables.
// It reads ANTHROPIC_API_KEY for authentication and ANTHROPIC_API_BASE_URL for
// the endpoint base (defaulting to https://api.anthropic.com/v1 when unset).
// A missing key is reported by the first call, not here.
func New() *AnthropicProvider {
	baseURL := os.Getenv("ANTHROPIC_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &AnthropicProvider{
		apiKey:       os.Getenv("ANTHROPIC_API_KEY"),
		baseURL:      baseURL,
		client:       &http.Client{},
		defaultModel: DefaultModel,
	}
}

// Name implements [ai.Provider].
func (p *AnthropicProvider) Name() string {
	return ProviderName
}

// WithAPIKey sets the API key used for authenticating requests and returns the
// provider so calls can be chained. It overrides the value read from ANTHROPIC_API_KEY.
func (p *AnthropicProvider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL overrides the API base URL and returns the provider so calls can
// be chained. Use this when targeting a proxy or local testing endpoint.
func (p *AnthropicProvider) WithBaseURL(baseURL string) ai.Provider {
	p.baseURL = baseURL
	return p
}

// WithHttpClient replaces the default [http.Client] used for API calls and
// returns the provider so calls can be chained.
func (p *AnthropicProvider) WithHttpClient(httpClient *http.Client) ai.Provider {
	p.client = httpClient
	return p
}

// WithDefaultModel changes the model used when a request names none.
func (p *AnthropicProvider) WithDefaultModel(model string) *AnthropicProvider {
	p.defaultModel = model
	return p
}

func (p *AnthropicProvider) resolveModel(request ai.ChatRequest) string {
	if request.Model != "" {
		return request.Model
	}
	return p.defaultModel
}

// buildHeaders constructs the HTTP headers required for every Anthropic request.
// x-api-key carries the credential (Anthropic does not use Bearer tokens) and
// anthropic-version pins the wire format.
func (p *AnthropicProvider) buildHeaders() []utils.HeaderOption {
	return []utils.HeaderOption{
		{Key: "x-api-key", Value: p.apiKey},
		{Key: "anthropic-version", Value: anthropicVersion},
	}
}

// SendMessage implements [ai.Provider] by sending a synchronous chat request to
// Anthropic's Messages API and returning the full response mapped to the generic
// [ai.ChatResponse] format. Every failure is returned as an [ai.ProviderError].
func (p *AnthropicProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
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
		observer.Trace(ctx, "Anthropic provider preparing request",
			observability.String(observability.AttrLLMProvider, ProviderName),
			observability.String(observability.AttrLLMModel, model),
			observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
		)
	}

	if p.apiKey == "" {
		return nil, ai.NewProviderError(ProviderName, 0, errMissingAPIKey)
	}

	// Pass empty apiKey so DoPostSync does not inject a Bearer token;
	// Anthropic authenticates via x-api-key instead.
	httpResponse, resp, err := utils.DoPostSync[anthropicResponse](
		ctx,
		p.client,
		p.baseURL+messagesEndpoint,
		"",
		requestToAnthropic(request, model),
		p.buildHeaders()...,
	)
	if err != nil {
		if observer != nil {
			observer.Trace(ctx, "HTTP request failed", observability.Error(err))
		}
		return nil, ai.NewProviderError(ProviderName, utils.StatusCodeOf(err), err)
	}
	if resp == nil {
		return nil, ai.NewProviderError(ProviderName, httpResponse.StatusCode, errors.New("empty response body"))
	}

	result := anthropicToGeneric(*resp)
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
