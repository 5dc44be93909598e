package memory

import (
	"cmp"
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/leofalp/chatgate/internal/utils"
	"github.com/leofalp/chatgate/providers/ai"
	"github.com/leofalp/chatgate/providers/observability"
)

const (
	// DefaultMaxMessages is the number of most recent messages kept per conversation.
	DefaultMaxMessages = 50

	// DefaultTitle is used when the first message yields no title words.
	DefaultTitle = "New Conversation"

	titleWords          = 5
	lastMessageLength   = 100
	searchPreviewLength = 200
)

// Store is the conversation store. It is safe for concurrent use: operations
// on the same conversation id are serialized, operations on different ids
// proceed in parallel.
type Store struct {
	backend     Backend
	maxMessages int
	now         func() time.Time
	newID       func() string
	locks       *keyedMutex
}

// Option configures a Store.
type Option func(*Store)

// WithMaxMessages changes the per-conversation log bound.
func WithMaxMessages(limit int) Option {
	return func(s *Store) {
		if limit > 0 {
			s.maxMessages = limit
		}
	}
}

// WithClock replaces time.Now for messages without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator replaces the UUID generator used by Import.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) {
		s.newID = newID
	}
}

// New creates a Store persisting through backend.
func New(backend Backend, opts ...Option) *Store {
	store := &Store{
		backend:     backend,
		maxMessages: DefaultMaxMessages,
		now:         time.Now,
		newID:       uuid.NewString,
		locks:       newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Append adds message to the conversation, creating it on first use.
func (s *Store) Append(ctx context.Context, id string, message ai.Message) error {
	return s.AppendTurns(ctx, id, message)
}

// AppendTurns appends messages in order under a single lock, so no other
// append to the same conversation can interleave. Each message counts as one
// logical append in the metadata. If the index update fails the log is
// restored, leaving the conversation as it was.
func (s *Store) AppendTurns(ctx context.Context, id string, messages ...ai.Message) error {
	if id == "" {
		return &ai.ValidationError{Field: "conversationId", Reason: "must not be empty"}
	}
	if len(messages) == 0 {
		return nil
	}
	for _, message := range messages {
		if !message.Role.Valid() {
			return &ai.ValidationError{Field: "role", Reason: "unknown role " + string(message.Role)}
		}
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	previous, existed, err := s.loadLog(ctx, id)
	if err != nil {
		return &ai.StoreError{Op: "append", ConversationID: id, Cause: err}
	}

	metadata, err := s.backend.LoadMetadata(ctx, id)
	isNew := errors.Is(err, ai.ErrNotFound)
	if err != nil && !isNew {
		return &ai.StoreError{Op: "append", ConversationID: id, Cause: err}
	}

	updated := slices.Clone(previous)
	for _, message := range messages {
		if message.Timestamp.IsZero() {
			message.Timestamp = s.now()
		}
		updated = append(updated, message)

		if isNew {
			metadata = Metadata{ID: id, CreatedAt: message.Timestamp, Title: GenerateTitle(message.Content)}
			isNew = false
		}
		metadata.MessageCount++
		metadata.LastUpdated = message.Timestamp
		metadata.LastMessage = summarize(message)
	}
	updated = s.truncate(updated)

	if err := s.commit(ctx, id, updated, previous, existed, metadata); err != nil {
		return &ai.StoreError{Op: "append", ConversationID: id, Cause: err}
	}

	observability.AddConversationEvent(ctx, observability.EventStoreAppend, id,
		observability.Int(observability.AttrMessageCount, metadata.MessageCount),
		observability.Int(observability.AttrStoredMessages, len(updated)),
	)
	return nil
}

// commit writes the log then the index record. A failed index write restores
// the previous log so the two never disagree.
func (s *Store) commit(ctx context.Context, id string, updated, previous []ai.Message, existed bool, metadata Metadata) error {
	if err := s.backend.SaveLog(ctx, id, updated); err != nil {
		return err
	}

	if err := s.backend.PutMetadata(ctx, metadata); err != nil {
		var rollbackErr error
		if existed {
			rollbackErr = s.backend.SaveLog(ctx, id, previous)
		} else {
			rollbackErr = s.backend.DeleteLog(ctx, id)
		}
		return errors.Join(err, rollbackErr)
	}
	return nil
}

func summarize(message ai.Message) LastMessage {
	return LastMessage{
		Role:      message.Role,
		Content:   utils.TruncateString(message.Content, lastMessageLength, "..."),
		Timestamp: message.Timestamp,
	}
}

func (s *Store) loadLog(ctx context.Context, id string) ([]ai.Message, bool, error) {
	messages, err := s.backend.LoadLog(ctx, id)
	if errors.Is(err, ai.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return messages, true, nil
}

func (s *Store) truncate(messages []ai.Message) []ai.Message {
	if len(messages) <= s.maxMessages {
		return messages
	}
	return slices.Clone(messages[len(messages)-s.maxMessages:])
}

// Messages returns the stored log, or an empty slice for an unknown id.
func (s *Store) Messages(ctx context.Context, id string) ([]ai.Message, error) {
	messages, _, err := s.loadLog(ctx, id)
	if err != nil {
		return nil, &ai.StoreError{Op: "get", ConversationID: id, Cause: err}
	}
	if messages == nil {
		return []ai.Message{}, nil
	}
	return messages, nil
}

// Metadata returns the index record for id, or nil when the id is unknown.
func (s *Store) Metadata(ctx context.Context, id string) (*Metadata, error) {
	metadata, err := s.backend.LoadMetadata(ctx, id)
	if errors.Is(err, ai.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &ai.StoreError{Op: "metadata", ConversationID: id, Cause: err}
	}
	return &metadata, nil
}

// List returns index records ordered by LastUpdated, newest first, skipping
// offset records and returning at most limit. A limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Metadata, error) {
	records, err := s.sortedIndex(ctx)
	if err != nil {
		return nil, &ai.StoreError{Op: "list", Cause: err}
	}

	offset = max(offset, 0)
	if offset >= len(records) {
		return []Metadata{}, nil
	}
	records = records[offset:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records, nil
}

func (s *Store) sortedIndex(ctx context.Context) ([]Metadata, error) {
	index, err := s.backend.LoadIndex(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]Metadata, 0, len(index))
	for _, metadata := range index {
		records = append(records, metadata)
	}
	slices.SortFunc(records, func(a, b Metadata) int {
		if c := b.LastUpdated.Compare(a.LastUpdated); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return records, nil
}

// Delete removes the index record and the log. Unknown ids are a no-op. If
// the log cannot be removed the index record is put back, so a failed delete
// leaves the conversation intact.
func (s *Store) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	metadata, err := s.backend.LoadMetadata(ctx, id)
	existed := err == nil
	if err != nil && !errors.Is(err, ai.ErrNotFound) {
		return &ai.StoreError{Op: "delete", ConversationID: id, Cause: err}
	}

	if err := s.backend.DeleteMetadata(ctx, id); err != nil {
		return &ai.StoreError{Op: "delete", ConversationID: id, Cause: err}
	}
	if err := s.backend.DeleteLog(ctx, id); err != nil {
		if existed {
			err = errors.Join(err, s.backend.PutMetadata(ctx, metadata))
		}
		return &ai.StoreError{Op: "delete", ConversationID: id, Cause: err}
	}

	observability.AddConversationEvent(ctx, observability.EventStoreDelete, id)
	return nil
}

// Search scans every conversation for messages containing query, ignoring
// case. The query is matched as given, surrounding spaces included. Results
// are ordered by match count, highest first, and capped at limit when
// limit > 0.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if query == "" {
		return nil, &ai.ValidationError{Field: "query", Reason: "must not be empty"}
	}

	needle := strings.ToLower(query)

	records, err := s.sortedIndex(ctx)
	if err != nil {
		return nil, &ai.StoreError{Op: "search", Cause: err}
	}

	results := []SearchResult{}
	for _, metadata := range records {
		messages, _, err := s.loadLog(ctx, metadata.ID)
		if err != nil {
			return nil, &ai.StoreError{Op: "search", ConversationID: metadata.ID, Cause: err}
		}

		result := SearchResult{ConversationID: metadata.ID, Title: metadata.Title}
		for _, message := range messages {
			if !strings.Contains(strings.ToLower(message.Content), needle) {
				continue
			}
			if result.MatchCount == 0 {
				result.Preview = utils.TruncateString(message.Content, searchPreviewLength, "...")
			}
			result.MatchCount++
		}
		if result.MatchCount > 0 {
			results = append(results, result)
		}
	}

	// Stable keeps the recency order among equal counts.
	slices.SortStableFunc(results, func(a, b SearchResult) int {
		return cmp.Compare(b.MatchCount, a.MatchCount)
	})
	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results, nil
}

// Stats aggregates the index.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	index, err := s.backend.LoadIndex(ctx)
	if err != nil {
		return Stats{}, &ai.StoreError{Op: "stats", Cause: err}
	}

	stats := Stats{TotalConversations: len(index)}
	for _, metadata := range index {
		stats.TotalMessages += metadata.MessageCount
	}
	if stats.TotalConversations > 0 {
		stats.AverageMessages = int(math.Round(float64(stats.TotalMessages) / float64(stats.TotalConversations)))
	}
	return stats, nil
}

// GenerateTitle derives a conversation title from its first message: the
// first five words once punctuation is removed, or DefaultTitle.
func GenerateTitle(content string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return r
	}, content)

	words := strings.Fields(stripped)
	if len(words) == 0 {
		return DefaultTitle
	}
	if len(words) > titleWords {
		words = words[:titleWords]
	}
	return strings.Join(words, " ")
}
