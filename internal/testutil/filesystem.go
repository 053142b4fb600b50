package testutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	iofs "io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/Live-to-Role/grimoire/internal/library"
)

// MockFilesystemManager is an in-memory implementation of
// library.FilesystemManager for tests.
type MockFilesystemManager struct {
	mu       sync.Mutex
	files    map[string][]byte // absolute path -> content
	noDelete map[string]bool   // paths that fail deletion with permission denied
	walkErrs map[string]error  // roots whose walk fails
}

// NewMockFilesystemManager creates an empty mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files:    make(map[string][]byte),
		noDelete: make(map[string]bool),
		walkErrs: make(map[string]error),
	}
}

// AddFile places a file with the given content on the mock filesystem.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = content
}

// DenyDelete makes future Remove calls for the path fail with a
// permission error.
func (m *MockFilesystemManager) DenyDelete(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noDelete[path] = true
}

// FailWalk makes future WalkFolder calls for the root fail with err,
// simulating an unmounted or unreadable folder. A nil err restores normal
// walking.
func (m *MockFilesystemManager) FailWalk(root string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.walkErrs, root)
		return
	}
	m.walkErrs[root] = err
}

// Exists reports whether the path currently holds a file.
func (m *MockFilesystemManager) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok
}

// WalkFolder returns all files under root in path order.
func (m *MockFilesystemManager) WalkFolder(root string) ([]library.FileCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.walkErrs[root]; err != nil {
		return nil, err
	}

	prefix := strings.TrimSuffix(root, "/") + "/"
	var out []library.FileCandidate
	for p, content := range m.files {
		if strings.HasPrefix(p, prefix) {
			out = append(out, library.FileCandidate{Path: p, Size: int64(len(content))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// HashFile returns the SHA-256 hex digest of the stored content.
func (m *MockFilesystemManager) HashFile(path string) (string, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	content, ok := m.files[path]
	if !ok {
		return "", 0, fmt.Errorf("stat %s: %w", path, iofs.ErrNotExist)
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:]), int64(len(content)), nil
}

// Open opens the stored content for reading.
func (m *MockFilesystemManager) Open(path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	content, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, iofs.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

// Remove deletes the file, honoring DenyDelete.
func (m *MockFilesystemManager) Remove(path string) (library.RemoveOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.noDelete[path] {
		return library.RemovePermissionDenied, fmt.Errorf("remove %s: %w", path, iofs.ErrPermission)
	}
	if _, ok := m.files[path]; !ok {
		return library.RemoveAlreadyMissing, nil
	}
	delete(m.files, path)
	return library.RemoveDeleted, nil
}

// Hash returns the SHA-256 hex digest of arbitrary content, for building
// test expectations.
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

var _ library.FilesystemManager = (*MockFilesystemManager)(nil)
