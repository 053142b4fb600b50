package trash_test

import (
	"context"
	"testing"

	"github.com/Live-to-Role/grimoire/internal/config"
	"github.com/Live-to-Role/grimoire/internal/trash"
)

func TestNewTrashFromConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("none disables preservation", func(t *testing.T) {
		for _, typ := range []string{"", "none"} {
			tr, err := trash.NewTrashFromConfig(ctx, config.TrashConfig{Type: typ})
			if err != nil {
				t.Fatalf("NewTrashFromConfig(%q) error = %v", typ, err)
			}
			if tr != nil {
				t.Errorf("NewTrashFromConfig(%q) = %v, want nil", typ, tr)
			}
		}
	})

	t.Run("memory", func(t *testing.T) {
		tr, err := trash.NewTrashFromConfig(ctx, config.TrashConfig{Type: "memory"})
		if err != nil {
			t.Fatalf("NewTrashFromConfig() error = %v", err)
		}
		if tr.Name() != "memory" {
			t.Errorf("Name() = %q, want memory", tr.Name())
		}
	})

	t.Run("filesystem", func(t *testing.T) {
		tr, err := trash.NewTrashFromConfig(ctx, config.TrashConfig{Type: "filesystem", Root: t.TempDir()})
		if err != nil {
			t.Fatalf("NewTrashFromConfig() error = %v", err)
		}
		if tr.Name() != "filesystem" {
			t.Errorf("Name() = %q, want filesystem", tr.Name())
		}
	})

	t.Run("filesystem requires a root", func(t *testing.T) {
		if _, err := trash.NewTrashFromConfig(ctx, config.TrashConfig{Type: "filesystem"}); err == nil {
			t.Error("missing root did not error")
		}
	})

	t.Run("s3 requires a bucket", func(t *testing.T) {
		if _, err := trash.NewTrashFromConfig(ctx, config.TrashConfig{Type: "s3"}); err == nil {
			t.Error("missing bucket did not error")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := trash.NewTrashFromConfig(ctx, config.TrashConfig{Type: "tape"}); err == nil {
			t.Error("unknown type did not error")
		}
	})
}
