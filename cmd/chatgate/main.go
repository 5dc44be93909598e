// Command chatgate talks to several LLM providers through one gateway and
// keeps the conversations on disk (or in Redis).
//
//	chatgate chat --provider openai "Hello there"
//	chatgate stream --provider anthropic -c <conversation-id> "And then?"
//	chatgate compare --providers openai,gemini --models gemini=gemini-1.5-pro "Explain channels"
//	chatgate conversations list|get|delete|search|stats|export|import
//
// Vendor credentials are read from OPENAI_API_KEY, ANTHROPIC_API_KEY,
// GEMINI_API_KEY, COHERE_API_KEY and MISTRAL_API_KEY. A .env file in the
// working directory is loaded first.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
