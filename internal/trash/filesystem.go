package trash

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileSystemTrash preserves deleted file content as files under a root
// directory, named by content hash:
//
//	<root>/
//	  <hash>    (preserved content, named by SHA-256)
type FileSystemTrash struct {
	root string
}

// NewFileSystemTrash creates a filesystem trash rooted at the given path.
func NewFileSystemTrash(root string) (*FileSystemTrash, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create trash directory: %w", err)
	}
	return &FileSystemTrash{root: root}, nil
}

func (t *FileSystemTrash) Name() string { return "filesystem" }

// Put preserves content under the given hash.
// Idempotent: when the hash is already present the reader is consumed and
// verified against the expected size, but nothing is rewritten.
func (t *FileSystemTrash) Put(_ context.Context, hash string, r io.Reader, size int64) error {
	destPath := filepath.Join(t.root, hash)

	if _, err := os.Stat(destPath); err == nil {
		written, err := io.Copy(io.Discard, r)
		if err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}
		if written != size {
			return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
		}
		return nil
	}

	// Write to a temp file first so a partial copy never looks like a
	// fully preserved entry.
	tmp, err := os.CreateTemp(t.root, ".put-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	written, err := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write content: %w", err)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", closeErr)
	}
	if written != size {
		os.Remove(tmpPath)
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize content: %w", err)
	}
	return nil
}
