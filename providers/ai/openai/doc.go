// Package openai implements [ai.Provider] and [ai.StreamProvider] for the
// OpenAI chat completions API on top of github.com/sashabaranov/go-openai.
//
// The conversation is sent as a flat list of role-tagged turns with the system
// prompt prepended as a leading system message. Streaming consumes the
// client's native event iterator and asks the API to append a final usage
// chunk (stream_options.include_usage).
//
// The main entry point is [New], which reads OPENAI_API_KEY and
// OPENAI_API_BASE_URL from the environment.
package openai
