package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/leofalp/chatgate/internal/utils"
	"github.com/leofalp/chatgate/providers/ai"
	"github.com/leofalp/chatgate/providers/observability"
)

// Export renders a conversation in the requested format. Unknown ids export
// as an empty conversation.
func (s *Store) Export(ctx context.Context, id string, format ExportFormat) ([]byte, error) {
	messages, err := s.Messages(ctx, id)
	if err != nil {
		return nil, err
	}

	switch format {
	case ExportJSON, "":
		metadata, err := s.Metadata(ctx, id)
		if err != nil {
			return nil, err
		}
		document := ExportDocument{
			ConversationID: id,
			Metadata:       metadata,
			Messages:       messages,
			ExportedAt:     s.now().UTC(),
		}
		data, err := json.MarshalIndent(document, "", "  ")
		if err != nil {
			return nil, &ai.StoreError{Op: "export", ConversationID: id, Cause: err}
		}
		return data, nil

	case ExportText:
		var transcript strings.Builder
		for _, message := range messages {
			fmt.Fprintf(&transcript, "[%s] %s: %s\n",
				message.Timestamp.Format(time.RFC3339),
				strings.ToUpper(string(message.Role)),
				message.Content,
			)
		}
		return []byte(transcript.String()), nil

	default:
		return nil, &ai.ValidationError{Field: "format", Reason: "unsupported export format " + string(format)}
	}
}

// Import stores a message sequence as conversation id, replacing any existing
// log, and rebuilds its index record from the imported messages. data is
// either a JSON array of messages or an ExportDocument; slightly malformed
// JSON is repaired before decoding. An empty id is replaced with a new UUID.
// The id actually used is returned.
func (s *Store) Import(ctx context.Context, data []byte, id string) (string, error) {
	messages, err := decodeImport(data)
	if err != nil {
		return "", &ai.ValidationError{Field: "data", Reason: err.Error()}
	}
	if len(messages) == 0 {
		return "", &ai.ValidationError{Field: "data", Reason: "no messages to import"}
	}
	for i := range messages {
		if !messages[i].Role.Valid() {
			return "", &ai.ValidationError{Field: "data", Reason: "unknown role " + string(messages[i].Role)}
		}
		if messages[i].Timestamp.IsZero() {
			messages[i].Timestamp = s.now()
		}
	}

	if id == "" {
		id = s.newID()
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	previous, existed, err := s.loadLog(ctx, id)
	if err != nil {
		return "", &ai.StoreError{Op: "import", ConversationID: id, Cause: err}
	}

	first, last := messages[0], messages[len(messages)-1]
	metadata := Metadata{
		ID:           id,
		Title:        GenerateTitle(first.Content),
		CreatedAt:    first.Timestamp,
		LastUpdated:  last.Timestamp,
		MessageCount: len(messages),
		LastMessage:  summarize(last),
	}

	stored := s.truncate(messages)
	if err := s.commit(ctx, id, stored, previous, existed, metadata); err != nil {
		return "", &ai.StoreError{Op: "import", ConversationID: id, Cause: err}
	}

	observability.AddConversationEvent(ctx, observability.EventStoreImport, id,
		observability.Int(observability.AttrStoredMessages, len(stored)),
	)
	return id, nil
}

// decodeImport accepts a bare message array or an export document.
func decodeImport(data []byte) ([]ai.Message, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, fmt.Errorf("empty input")
	}

	if strings.HasPrefix(trimmed, "[") {
		return utils.DecodeLenient[[]ai.Message]([]byte(trimmed))
	}

	document, err := utils.DecodeLenient[ExportDocument]([]byte(trimmed))
	if err != nil {
		return nil, err
	}
	return document.Messages, nil
}
