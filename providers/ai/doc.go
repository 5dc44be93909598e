// Package ai defines the canonical, provider-agnostic vocabulary shared by the
// gateway, the conversation store, and every vendor adapter (OpenAI, Anthropic,
// Gemini, Cohere, Mistral). Each adapter's conversion layer maps these types
// to its own wire format, keeping the rest of the codebase decoupled from
// vendor details.
//
// The two central interfaces are [Provider] for one-shot generation and
// [StreamProvider] for incremental replies. Requests flow through
// [ChatRequest] and results are returned as [ChatResponse]. Streams are
// normalized by [ChatStream] so every caller sees the same event discipline
// regardless of how the vendor delivers its deltas.
//
// Failures are reported through a closed set of error variants:
// [ValidationError], [ProviderError], [StreamError], and [StoreError].
package ai
