package inmemory

import (
	"context"
	"slices"
	"sync"

	"github.com/leofalp/chatgate/providers/ai"
	"github.com/leofalp/chatgate/providers/memory"
)

// Backend is a simple, concurrency-safe in-memory conversation backend.
// It uses RWMutex to guard access and is efficient for read-heavy workloads.
type Backend struct {
	mu    sync.RWMutex
	logs  map[string][]ai.Message
	index map[string]memory.Metadata
}

// New returns a new, empty [Backend] ready for immediate use.
func New() *Backend {
	return &Backend{
		logs:  make(map[string][]ai.Message),
		index: make(map[string]memory.Metadata),
	}
}

// Ensure Backend implements memory.Backend at compile time.
var _ memory.Backend = (*Backend)(nil)

// LoadLog returns a copy of the stored log to avoid external mutation of
// internal state.
func (b *Backend) LoadLog(_ context.Context, id string) ([]ai.Message, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	messages, ok := b.logs[id]
	if !ok {
		return nil, ai.ErrNotFound
	}
	return slices.Clone(messages), nil
}

// SaveLog stores a copy of messages.
func (b *Backend) SaveLog(_ context.Context, id string, messages []ai.Message) error {
	b.mu.Lock()
	b.logs[id] = slices.Clone(messages)
	b.mu.Unlock()
	return nil
}

func (b *Backend) DeleteLog(_ context.Context, id string) error {
	b.mu.Lock()
	delete(b.logs, id)
	b.mu.Unlock()
	return nil
}

func (b *Backend) LoadMetadata(_ context.Context, id string) (memory.Metadata, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	metadata, ok := b.index[id]
	if !ok {
		return memory.Metadata{}, ai.ErrNotFound
	}
	return metadata, nil
}

// LoadIndex returns a snapshot of the index.
func (b *Backend) LoadIndex(_ context.Context) (map[string]memory.Metadata, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snapshot := make(map[string]memory.Metadata, len(b.index))
	for id, metadata := range b.index {
		snapshot[id] = metadata
	}
	return snapshot, nil
}

func (b *Backend) PutMetadata(_ context.Context, metadata memory.Metadata) error {
	b.mu.Lock()
	b.index[metadata.ID] = metadata
	b.mu.Unlock()
	return nil
}

func (b *Backend) DeleteMetadata(_ context.Context, id string) error {
	b.mu.Lock()
	delete(b.index, id)
	b.mu.Unlock()
	return nil
}
