package ai

import (
	"context"
	"net/http"
)

// StreamProvider is implemented by adapters that can deliver a reply
// incrementally. Callers detect streaming support via type assertion:
// provider.(StreamProvider). Every adapter in this module implements it; the
// gateway falls back to NewSingleEventStream for providers that do not.
type StreamProvider interface {
	Provider
	// StreamMessage sends a chat request and returns a ChatStream that yields
	// content deltas as they arrive. Pre-stream errors (missing credential,
	// non-2xx response, network) are returned as a *ProviderError. Mid-stream
	// failures are delivered through the stream as a terminal error event.
	StreamMessage(ctx context.Context, request ChatRequest) (*ChatStream, error)
}

// Provider is the contract every vendor adapter satisfies: translate the
// canonical request into one authenticated vendor call and translate the
// answer back into a ChatResponse. Adapters never retry; a failed attempt is
// returned immediately as a *ProviderError.
type Provider interface {
	// Name returns the backend identifier used in errors and logs.
	Name() string

	// SendMessage sends a chat request and returns the completed response.
	// When request.Model is empty the adapter's default model is used.
	SendMessage(ctx context.Context, request ChatRequest) (*ChatResponse, error)

	// WithAPIKey sets the credential used for authenticating requests.
	WithAPIKey(apiKey string) Provider

	// WithBaseURL overrides the default base URL for API requests.
	WithBaseURL(baseURL string) Provider

	// WithHttpClient sets the HTTP client used for outbound requests.
	WithHttpClient(httpClient *http.Client) Provider
}
