package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/leofalp/chatgate/providers/ai"
	"github.com/leofalp/chatgate/providers/memory"
)

const (
	// defaultKeyPrefix namespaces every key written by the backend.
	defaultKeyPrefix = "chatgate:"

	conversationKey = "conversation:"
	metadataKey     = "metadata:"
	indexKey        = "conversations"
)

// Backend stores conversations in Redis.
type Backend struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// Option configures a Backend.
type Option func(*Backend)

// WithKeyPrefix changes the namespace of every key.
func WithKeyPrefix(prefix string) Option {
	return func(b *Backend) {
		b.prefix = prefix
	}
}

// WithTTL expires conversations after ttl of inactivity. The log and the
// metadata record share the TTL and are refreshed together on every write.
// Zero keeps them forever, which is the default.
func WithTTL(ttl time.Duration) Option {
	return func(b *Backend) {
		b.ttl = ttl
	}
}

// New creates a Redis-backed conversation backend.
func New(client redis.UniversalClient, opts ...Option) *Backend {
	backend := &Backend{client: client, prefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(backend)
	}
	return backend
}

// Ensure Backend implements memory.Backend at compile time.
var _ memory.Backend = (*Backend)(nil)

func (b *Backend) logKey(id string) string {
	return b.prefix + conversationKey + id
}

func (b *Backend) metadataKey(id string) string {
	return b.prefix + metadataKey + id
}

func (b *Backend) indexKey() string {
	return b.prefix + indexKey
}

func (b *Backend) LoadLog(ctx context.Context, id string) ([]ai.Message, error) {
	val, err := b.client.Get(ctx, b.logKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ai.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var messages []ai.Message
	if err := json.Unmarshal([]byte(val), &messages); err != nil {
		return nil, fmt.Errorf("decode conversation %q: %w", id, err)
	}
	return messages, nil
}

func (b *Backend) SaveLog(ctx context.Context, id string, messages []ai.Message) error {
	if messages == nil {
		messages = []ai.Message{}
	}
	val, err := json.Marshal(messages)
	if err != nil {
		return err
	}
	return b.client.Set(ctx, b.logKey(id), val, b.ttl).Err()
}

func (b *Backend) DeleteLog(ctx context.Context, id string) error {
	return b.client.Del(ctx, b.logKey(id)).Err()
}

func (b *Backend) LoadMetadata(ctx context.Context, id string) (memory.Metadata, error) {
	val, err := b.client.Get(ctx, b.metadataKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return memory.Metadata{}, ai.ErrNotFound
	}
	if err != nil {
		return memory.Metadata{}, err
	}
	return decodeMetadata(id, val)
}

// LoadIndex resolves every id in the index set. Ids whose metadata key has
// expired are removed from the set and left out of the result.
func (b *Backend) LoadIndex(ctx context.Context) (map[string]memory.Metadata, error) {
	ids, err := b.client.SMembers(ctx, b.indexKey()).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return map[string]memory.Metadata{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = b.metadataKey(id)
	}
	values, err := b.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	index := make(map[string]memory.Metadata, len(ids))
	var expired []any
	for i, value := range values {
		val, ok := value.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		metadata, err := decodeMetadata(ids[i], val)
		if err != nil {
			return nil, err
		}
		index[ids[i]] = metadata
	}

	if len(expired) > 0 {
		if err := b.client.SRem(ctx, b.indexKey(), expired...).Err(); err != nil {
			return nil, err
		}
	}
	return index, nil
}

// PutMetadata writes the record with the same TTL as the log, so both
// expire together.
func (b *Backend) PutMetadata(ctx context.Context, metadata memory.Metadata) error {
	val, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, b.metadataKey(metadata.ID), val, b.ttl)
		pipe.SAdd(ctx, b.indexKey(), metadata.ID)
		return nil
	})
	return err
}

func (b *Backend) DeleteMetadata(ctx context.Context, id string) error {
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.metadataKey(id))
		pipe.SRem(ctx, b.indexKey(), id)
		return nil
	})
	return err
}

func decodeMetadata(id, val string) (memory.Metadata, error) {
	var metadata memory.Metadata
	if err := json.Unmarshal([]byte(val), &metadata); err != nil {
		return memory.Metadata{}, fmt.Errorf("decode metadata %q: %w", id, err)
	}
	return metadata, nil
}

// Close closes the underlying client.
func (b *Backend) Close() error {
	return b.client.Close()
}
