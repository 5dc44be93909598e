// Package cohere implements [ai.Provider] and [ai.StreamProvider] for Cohere's
// v1 Chat API.
//
// Cohere takes the conversation history and the turn to answer as two separate
// fields: chat_history excludes the final turn, which travels in message. The
// system prompt is sent as the preamble and roles use Cohere's own labels
// (USER, CHATBOT, SYSTEM). Streaming responses are newline-delimited JSON
// events rather than SSE.
package cohere
