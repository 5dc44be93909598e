package memory

import (
	"context"
	"time"

	"github.com/leofalp/chatgate/providers/ai"
)

// Backend persists conversation logs and the metadata index. Implementations
// must be safe for concurrent use and must serialize their own writes to the
// shared index; the Store only guarantees that calls for the same
// conversation id never overlap.
type Backend interface {
	// LoadLog returns the stored messages for id, or ai.ErrNotFound.
	LoadLog(ctx context.Context, id string) ([]ai.Message, error)
	// SaveLog replaces the stored messages for id.
	SaveLog(ctx context.Context, id string, messages []ai.Message) error
	// DeleteLog removes the log for id. Missing logs are not an error.
	DeleteLog(ctx context.Context, id string) error

	// LoadMetadata returns the index record for id, or ai.ErrNotFound.
	LoadMetadata(ctx context.Context, id string) (Metadata, error)
	// LoadIndex returns every index record keyed by conversation id.
	LoadIndex(ctx context.Context) (map[string]Metadata, error)
	// PutMetadata creates or replaces the index record for metadata.ID.
	PutMetadata(ctx context.Context, metadata Metadata) error
	// DeleteMetadata removes the index record for id. Missing records are not an error.
	DeleteMetadata(ctx context.Context, id string) error
}

// Metadata is the index record kept for every conversation.
type Metadata struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	CreatedAt    time.Time   `json:"createdAt"`
	LastUpdated  time.Time   `json:"lastUpdated"`
	MessageCount int         `json:"messageCount"` // Logical appends, not the number of stored messages
	LastMessage  LastMessage `json:"lastMessage"`
}

// LastMessage summarizes the most recent message of a conversation. Content
// is truncated for listing.
type LastMessage struct {
	Role      ai.MessageRole `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
}

// SearchResult is one conversation matching a search query.
type SearchResult struct {
	ConversationID string `json:"conversationId"`
	Title          string `json:"title"`
	MatchCount     int    `json:"matchCount"`
	Preview        string `json:"preview"`
}

// Stats summarizes the whole index.
type Stats struct {
	TotalConversations int `json:"totalConversations"`
	TotalMessages      int `json:"totalMessages"`
	AverageMessages    int `json:"averageMessages"`
}

// ExportFormat selects the output of Store.Export.
type ExportFormat string

const (
	// ExportJSON is a structured dump of the metadata and the messages.
	ExportJSON ExportFormat = "json"
	// ExportText is a transcript with one "[timestamp] ROLE: content" line per message.
	ExportText ExportFormat = "text"
)

// ExportDocument is the structure written by ExportJSON. Import accepts it
// back, as well as a bare JSON array of messages.
type ExportDocument struct {
	ConversationID string       `json:"conversationId"`
	Metadata       *Metadata    `json:"metadata,omitempty"`
	Messages       []ai.Message `json:"messages"`
	ExportedAt     time.Time    `json:"exportedAt"`
}
