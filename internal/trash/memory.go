package trash

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryTrash is an in-memory implementation of the library.Trash
// interface, useful for testing. Safe for concurrent use.
type MemoryTrash struct {
	mu      sync.RWMutex
	content map[string][]byte // hash -> preserved bytes
}

// NewMemoryTrash creates a new in-memory trash.
func NewMemoryTrash() *MemoryTrash {
	return &MemoryTrash{content: make(map[string][]byte)}
}

func (t *MemoryTrash) Name() string { return "memory" }

// Put preserves content under the given hash.
// Idempotent: storing the same hash multiple times is safe.
func (t *MemoryTrash) Put(_ context.Context, hash string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.content[hash] = data
	return nil
}

// Contains reports whether content with the given hash has been preserved.
func (t *MemoryTrash) Contains(hash string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.content[hash]
	return ok
}

// Get returns the preserved bytes for a hash, or nil.
func (t *MemoryTrash) Get(hash string) []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.content[hash]
}
