package library

import (
	"context"
	"io"
)

// Trash is an optional soft-delete target. Before a duplicate's file is
// unlinked its bytes are preserved here, keyed by content hash, so an
// accidental resolution can be undone by hand. Storing the same hash twice
// is safe; duplicates are byte-identical by definition.
type Trash interface {
	// Put preserves content under the given hash.
	Put(ctx context.Context, hash string, r io.Reader, size int64) error

	// Name identifies the backend for logging.
	Name() string
}
