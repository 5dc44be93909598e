package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/leofalp/chatgate/providers/ai"
	"github.com/leofalp/chatgate/providers/memory"
)

func newBackend(t *testing.T, opts ...Option) (*Backend, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	backend := New(client, opts...)
	t.Cleanup(func() { _ = backend.Close() })
	return backend, server
}

// TestBackend_RoundTrip verifies log and metadata persistence and key layout.
func TestBackend_RoundTrip(t *testing.T) {
	ctx := context.Background()
	backend, server := newBackend(t)

	if _, err := backend.LoadLog(ctx, "c1"); !errors.Is(err, ai.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	stamp := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if err := backend.SaveLog(ctx, "c1", []ai.Message{{Role: ai.RoleUser, Content: "hi", Timestamp: stamp}}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !server.Exists("chatgate:conversation:c1") {
		t.Errorf("expected log key to exist, keys: %v", server.Keys())
	}

	loaded, err := backend.LoadLog(ctx, "c1")
	if err != nil || len(loaded) != 1 || !loaded[0].Timestamp.Equal(stamp) {
		t.Fatalf("unexpected log %+v (%v)", loaded, err)
	}

	if err := backend.PutMetadata(ctx, memory.Metadata{ID: "c1", Title: "hi", MessageCount: 1}); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	metadata, err := backend.LoadMetadata(ctx, "c1")
	if err != nil || metadata.Title != "hi" {
		t.Fatalf("unexpected metadata %+v (%v)", metadata, err)
	}
	if !server.Exists("chatgate:metadata:c1") {
		t.Errorf("expected metadata key, keys: %v", server.Keys())
	}
	if member, _ := server.SIsMember("chatgate:conversations", "c1"); !member {
		t.Errorf("expected c1 in the index set")
	}

	if err := backend.DeleteMetadata(ctx, "c1"); err != nil {
		t.Fatalf("delete metadata failed: %v", err)
	}
	if err := backend.DeleteLog(ctx, "c1"); err != nil {
		t.Fatalf("delete log failed: %v", err)
	}
	if _, err := backend.LoadMetadata(ctx, "c1"); !errors.Is(err, ai.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

// TestBackend_PrefixAndTTL verifies the key namespace and optional expiry.
func TestBackend_PrefixAndTTL(t *testing.T) {
	ctx := context.Background()
	backend, server := newBackend(t, WithKeyPrefix("test:"), WithTTL(time.Hour))

	if err := backend.SaveLog(ctx, "c1", nil); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if server.TTL("test:conversation:c1") != time.Hour {
		t.Errorf("expected 1h TTL, got %v", server.TTL("test:conversation:c1"))
	}

	server.FastForward(2 * time.Hour)
	if _, err := backend.LoadLog(ctx, "c1"); !errors.Is(err, ai.ErrNotFound) {
		t.Errorf("expected expired log, got %v", err)
	}
}

// TestBackend_WithStore runs the Store against Redis end to end.
func TestBackend_WithStore(t *testing.T) {
	ctx := context.Background()
	backend, _ := newBackend(t)
	store := memory.New(backend)

	for _, content := range []string{"Hello there, friend", "second", "third"} {
		if err := store.Append(ctx, "c1", ai.Message{Role: ai.RoleUser, Content: content}); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	list, err := store.List(ctx, 10, 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("unexpected list %+v (%v)", list, err)
	}
	if list[0].Title != "Hello there friend" || list[0].MessageCount != 3 || list[0].LastMessage.Content != "third" {
		t.Errorf("unexpected metadata %+v", list[0])
	}

	results, err := store.Search(ctx, "SECOND", 5)
	if err != nil || len(results) != 1 || results[0].MatchCount != 1 {
		t.Errorf("unexpected search results %+v (%v)", results, err)
	}
}

// TestBackend_TTLExpiresIndexWithLog verifies that an expired conversation
// disappears from listings and stats together with its log.
func TestBackend_TTLExpiresIndexWithLog(t *testing.T) {
	ctx := context.Background()
	backend, server := newBackend(t, WithTTL(time.Minute))
	store := memory.New(backend)

	if err := store.Append(ctx, "c1", ai.Message{Role: ai.RoleUser, Content: "hello"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if server.TTL("chatgate:metadata:c1") != time.Minute {
		t.Errorf("expected metadata TTL, got %v", server.TTL("chatgate:metadata:c1"))
	}

	server.FastForward(2 * time.Minute)

	messages, err := store.Messages(ctx, "c1")
	if err != nil || len(messages) != 0 {
		t.Fatalf("expected expired log, got %+v (%v)", messages, err)
	}
	list, err := store.List(ctx, 0, 0)
	if err != nil || len(list) != 0 {
		t.Errorf("expected empty listing, got %+v (%v)", list, err)
	}
	stats, err := store.Stats(ctx)
	if err != nil || stats != (memory.Stats{}) {
		t.Errorf("expected zero stats, got %+v (%v)", stats, err)
	}
	if member, _ := server.SIsMember("chatgate:conversations", "c1"); member {
		t.Errorf("expected expired id to be pruned from the index set")
	}
	if metadata, _ := store.Metadata(ctx, "c1"); metadata != nil {
		t.Errorf("expected no metadata, got %+v", metadata)
	}
}
