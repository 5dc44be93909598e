package gateway

import (
	"context"

	"github.com/leofalp/chatgate/providers/memory"
)

// Conversations lists index records, newest first.
func (g *Gateway) Conversations(ctx context.Context, limit, offset int) ([]memory.Metadata, error) {
	return g.store.List(ctx, limit, offset)
}

// Conversation returns the stored messages and index record for id. An
// unknown id yields an empty conversation with nil Metadata.
func (g *Gateway) Conversation(ctx context.Context, id string) (*Conversation, error) {
	messages, err := g.store.Messages(ctx, id)
	if err != nil {
		return nil, err
	}
	metadata, err := g.store.Metadata(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Conversation{ID: id, Metadata: metadata, Messages: messages}, nil
}

// DeleteConversation removes id. Unknown ids are a no-op.
func (g *Gateway) DeleteConversation(ctx context.Context, id string) error {
	return g.store.Delete(ctx, id)
}

// SearchConversations finds conversations whose messages contain query.
func (g *Gateway) SearchConversations(ctx context.Context, query string, limit int) ([]memory.SearchResult, error) {
	return g.store.Search(ctx, query, limit)
}

// Stats summarizes every stored conversation.
func (g *Gateway) Stats(ctx context.Context) (memory.Stats, error) {
	return g.store.Stats(ctx)
}

// Export renders conversation id in format.
func (g *Gateway) Export(ctx context.Context, id string, format memory.ExportFormat) ([]byte, error) {
	return g.store.Export(ctx, id, format)
}

// Import stores data as conversation id and returns the id used.
func (g *Gateway) Import(ctx context.Context, data []byte, id string) (string, error) {
	return g.store.Import(ctx, data, id)
}
