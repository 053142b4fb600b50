package fs_test

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/Live-to-Role/grimoire/internal/fs"
	"github.com/Live-to-Role/grimoire/internal/library"
)

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestOSFilesystemManager_WalkFolder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.pdf"), []byte("aa"))
	writeFile(t, filepath.Join(root, "sub", "b.pdf"), []byte("bbbb"))
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	m := fs.NewOSFilesystemManager()
	got, err := m.WalkFolder(root)
	if err != nil {
		t.Fatalf("WalkFolder() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("WalkFolder() returned %d candidates, want 2", len(got))
	}

	bySuffix := make(map[string]int64)
	for _, c := range got {
		bySuffix[filepath.Base(c.Path)] = c.Size
	}
	if bySuffix["a.pdf"] != 2 || bySuffix["b.pdf"] != 4 {
		t.Errorf("sizes = %v, want a.pdf=2, b.pdf=4", bySuffix)
	}
}

func TestOSFilesystemManager_HashFile(t *testing.T) {
	root := t.TempDir()
	content := []byte("module bytes")
	path := filepath.Join(root, "module.pdf")
	writeFile(t, path, content)

	m := fs.NewOSFilesystemManager()
	hash, size, err := m.HashFile(path)
	if err != nil {
		t.Fatalf("HashFile() error = %v", err)
	}

	sum := sha256.Sum256(content)
	if want := hex.EncodeToString(sum[:]); hash != want {
		t.Errorf("hash = %q, want %q", hash, want)
	}
	if size != int64(len(content)) {
		t.Errorf("size = %d, want %d", size, len(content))
	}
}

func TestOSFilesystemManager_Remove(t *testing.T) {
	t.Run("deletes an existing file", func(t *testing.T) {
		root := t.TempDir()
		path := filepath.Join(root, "module.pdf")
		writeFile(t, path, []byte("bytes"))

		m := fs.NewOSFilesystemManager()
		outcome, err := m.Remove(path)
		if err != nil {
			t.Fatalf("Remove() error = %v", err)
		}
		if outcome != library.RemoveDeleted {
			t.Errorf("outcome = %s, want deleted", outcome)
		}
		if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
			t.Error("file still exists")
		}
	})

	t.Run("missing file reports already_missing without error", func(t *testing.T) {
		m := fs.NewOSFilesystemManager()
		outcome, err := m.Remove(filepath.Join(t.TempDir(), "gone.pdf"))
		if err != nil {
			t.Fatalf("Remove() error = %v", err)
		}
		if outcome != library.RemoveAlreadyMissing {
			t.Errorf("outcome = %s, want already_missing", outcome)
		}
	})
}
