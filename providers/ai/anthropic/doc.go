// Package anthropic implements the [ai.Provider] and [ai.StreamProvider] interfaces
// for Anthropic's Messages API.
//
// The system prompt travels in the dedicated "system" field, so any turn tagged
// [ai.RoleSystem] is filtered out of the message list. Anthropic reports input
// and output token counts only; the canonical total is their sum.
//
// The primary entry point is [New], which reads ANTHROPIC_API_KEY and
// ANTHROPIC_API_BASE_URL from the environment. Use [AnthropicProvider.WithAPIKey],
// [AnthropicProvider.WithBaseURL], or [AnthropicProvider.WithHttpClient] to configure
// the provider programmatically.
package anthropic
