package library

import "io"

// FileCandidate is a regular file discovered while walking a watched folder.
type FileCandidate struct {
	Path string // Absolute path
	Size int64
}

// FilesystemManager provides an interface for filesystem operations.
// It abstracts file access to enable testing without touching the real filesystem.
type FilesystemManager interface {
	// WalkFolder discovers regular files under root, recursively.
	// Symlinks, devices and other special files are skipped.
	WalkFolder(root string) ([]FileCandidate, error)

	// HashFile computes the SHA-256 hex digest of the file bytes and
	// returns it together with the size read.
	HashFile(path string) (hash string, size int64, err error)

	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)

	// Remove deletes a file from disk, classifying the result.
	// A missing file yields RemoveAlreadyMissing with a nil error; the end
	// state is the same either way. The error is non-nil only for
	// RemovePermissionDenied and RemoveOtherError.
	Remove(path string) (RemoveOutcome, error)
}
