// Package gemini implements [ai.Provider] and [ai.StreamProvider] for Google's
// Gemini generateContent API.
//
// Gemini expects a strictly alternating user/model sequence. The system prompt
// is sent as a synthetic user turn followed by a short model acknowledgment,
// the assistant role is renamed to "model", and consecutive turns that end up
// with the same role are merged so alternation is preserved.
package gemini
