// Package mistral implements [ai.Provider] and [ai.StreamProvider] for Mistral's
// OpenAI-compatible chat completions API.
//
// There is no vendor client in the dependency set, so streaming is parsed by
// hand from the raw response body with [utils.EventStreamParser]: bytes are
// buffered, split on line boundaries, "data:" payloads are extracted, and the
// "[DONE]" sentinel ends the stream. Payloads that fail to decode are dropped
// and parsing resumes with the next complete line.
package mistral
