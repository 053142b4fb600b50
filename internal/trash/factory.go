package trash

import (
	"context"
	"fmt"

	"github.com/Live-to-Role/grimoire/internal/config"
	"github.com/Live-to-Role/grimoire/internal/library"
)

// NewTrashFromConfig creates a Trash implementation based on the trash
// config type. Type "none" (or empty) returns nil: deletion proceeds
// without preserving content.
func NewTrashFromConfig(ctx context.Context, cfg config.TrashConfig) (library.Trash, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryTrash(), nil
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem trash requires root to be set")
		}
		return NewFileSystemTrash(cfg.Root)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 trash requires s3_bucket to be set")
		}
		return NewS3Trash(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown trash type: %s", cfg.Type)
	}
}
