package fs

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"

	"github.com/Live-to-Role/grimoire/internal/library"
)

// OSFilesystemManager is the real filesystem implementation of
// library.FilesystemManager. It performs actual filesystem operations
// using the os package.
type OSFilesystemManager struct{}

// NewOSFilesystemManager creates a filesystem manager operating on the
// real filesystem.
func NewOSFilesystemManager() *OSFilesystemManager {
	return &OSFilesystemManager{}
}

// WalkFolder discovers regular files under root, recursively. Symlinks,
// devices and other special files are skipped.
func (m *OSFilesystemManager) WalkFolder(root string) ([]library.FileCandidate, error) {
	var candidates []library.FileCandidate
	err := filepath.WalkDir(root, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		candidates = append(candidates, library.FileCandidate{Path: p, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking folder: %w", err)
	}
	return candidates, nil
}

// HashFile computes the SHA-256 hex digest of the file's bytes and returns
// it with the number of bytes read.
func (m *OSFilesystemManager) HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hashing file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// Remove deletes a file from disk, classifying the result. A file already
// gone counts as RemoveAlreadyMissing with no error; the end state is the
// same either way.
func (m *OSFilesystemManager) Remove(path string) (library.RemoveOutcome, error) {
	err := os.Remove(path)
	if err == nil {
		return library.RemoveDeleted, nil
	}
	if errors.Is(err, iofs.ErrNotExist) {
		return library.RemoveAlreadyMissing, nil
	}
	if errors.Is(err, iofs.ErrPermission) {
		return library.RemovePermissionDenied, err
	}
	return library.RemoveOtherError, err
}

// Compile-time check that OSFilesystemManager implements library.FilesystemManager
var _ library.FilesystemManager = (*OSFilesystemManager)(nil)
