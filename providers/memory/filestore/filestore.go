package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/leofalp/chatgate/providers/ai"
	"github.com/leofalp/chatgate/providers/memory"
)

const (
	conversationsDir = "conversations"
	indexFile        = "index.json"
	filePerm         = 0o600
	dirPerm          = 0o755
)

// ErrInvalidID is returned for conversation ids that cannot be used as file names.
var ErrInvalidID = errors.New("invalid conversation id")

// Backend stores conversations under a root directory.
type Backend struct {
	root string

	// indexMu serializes index.json updates; logs are per-file and rely on
	// the Store's per-conversation lock.
	indexMu sync.Mutex
}

// New creates the directory layout under root and returns the backend.
func New(root string) (*Backend, error) {
	if err := os.MkdirAll(filepath.Join(root, conversationsDir), dirPerm); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Backend{root: root}, nil
}

// Ensure Backend implements memory.Backend at compile time.
var _ memory.Backend = (*Backend)(nil)

func (b *Backend) logPath(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return filepath.Join(b.root, conversationsDir, id+".json"), nil
}

func (b *Backend) LoadLog(_ context.Context, id string) ([]ai.Message, error) {
	path, err := b.logPath(id)
	if err != nil {
		return nil, err
	}

	var messages []ai.Message
	if err := readJSON(path, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (b *Backend) SaveLog(_ context.Context, id string, messages []ai.Message) error {
	path, err := b.logPath(id)
	if err != nil {
		return err
	}
	if messages == nil {
		messages = []ai.Message{}
	}
	return writeJSON(path, messages)
}

func (b *Backend) DeleteLog(_ context.Context, id string) error {
	path, err := b.logPath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (b *Backend) LoadMetadata(_ context.Context, id string) (memory.Metadata, error) {
	b.indexMu.Lock()
	defer b.indexMu.Unlock()

	index, err := b.readIndex()
	if err != nil {
		return memory.Metadata{}, err
	}
	metadata, ok := index[id]
	if !ok {
		return memory.Metadata{}, ai.ErrNotFound
	}
	return metadata, nil
}

func (b *Backend) LoadIndex(_ context.Context) (map[string]memory.Metadata, error) {
	b.indexMu.Lock()
	defer b.indexMu.Unlock()
	return b.readIndex()
}

func (b *Backend) PutMetadata(_ context.Context, metadata memory.Metadata) error {
	return b.updateIndex(func(index map[string]memory.Metadata) {
		index[metadata.ID] = metadata
	})
}

func (b *Backend) DeleteMetadata(_ context.Context, id string) error {
	return b.updateIndex(func(index map[string]memory.Metadata) {
		delete(index, id)
	})
}

func (b *Backend) updateIndex(mutate func(map[string]memory.Metadata)) error {
	b.indexMu.Lock()
	defer b.indexMu.Unlock()

	index, err := b.readIndex()
	if err != nil {
		return err
	}
	mutate(index)
	return writeJSON(filepath.Join(b.root, indexFile), index)
}

// readIndex must be called with indexMu held. A missing file is an empty index.
func (b *Backend) readIndex() (map[string]memory.Metadata, error) {
	index := make(map[string]memory.Metadata)
	err := readJSON(filepath.Join(b.root, indexFile), &index)
	if errors.Is(err, ai.ErrNotFound) {
		return make(map[string]memory.Metadata), nil
	}
	if err != nil {
		return nil, err
	}
	return index, nil
}

// readJSON decodes path into target, mapping a missing file to ai.ErrNotFound.
func readJSON(path string, target any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ai.ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSON replaces path atomically: readers see the old or the new document,
// never a partial one.
func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
