package library_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Live-to-Role/grimoire/internal/library"
)

func TestService_Scan(t *testing.T) {
	ctx := context.Background()

	t.Run("tracks discovered files", func(t *testing.T) {
		f := newFixture(t)
		f.svc.AddFolder("/library", "")
		f.fsmgr.AddFile("/library/core-rules.pdf", []byte("core"))
		f.fsmgr.AddFile("/library/bestiary.pdf", []byte("bestiary"))

		res, err := f.svc.Scan(ctx)
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if res.FilesSeen != 2 || res.FilesAdded != 2 {
			t.Errorf("Scan() = %+v, want 2 seen, 2 added", res)
		}

		got, err := f.store.FindFileByPath("/library/core-rules.pdf")
		if err != nil {
			t.Fatalf("FindFileByPath() error = %v", err)
		}
		if got == nil {
			t.Fatal("scanned file not in store")
		}
		if got.Title != "core-rules" {
			t.Errorf("Title = %q, want %q", got.Title, "core-rules")
		}
		if got.FileSize != 4 {
			t.Errorf("FileSize = %d, want 4", got.FileSize)
		}
	})

	t.Run("ignores untracked extensions", func(t *testing.T) {
		f := newFixture(t)
		f.svc.AddFolder("/library", "")
		f.fsmgr.AddFile("/library/module.pdf", []byte("pdf"))
		f.fsmgr.AddFile("/library/notes.txt", []byte("txt"))
		f.fsmgr.AddFile("/library/Module.PDF", []byte("upper"))

		res, err := f.svc.Scan(ctx)
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if res.FilesSeen != 2 || res.FilesAdded != 2 {
			t.Errorf("Scan() = %+v, want 2 seen, 2 added", res)
		}
	})

	t.Run("applies exclusion rules and records matches", func(t *testing.T) {
		f := newFixture(t)
		if err := f.svc.EnsureDefaultRules(); err != nil {
			t.Fatalf("EnsureDefaultRules() error = %v", err)
		}
		f.svc.AddFolder("/downloads", "")
		f.fsmgr.AddFile("/downloads/module.pdf", []byte("keep"))
		f.fsmgr.AddFile("/downloads/__MACOSX/module.pdf", []byte("junk"))
		f.fsmgr.AddFile("/downloads/__MACOSX/other.pdf", []byte("junk2"))

		res, err := f.svc.Scan(ctx)
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if res.FilesExcluded != 2 {
			t.Errorf("FilesExcluded = %d, want 2", res.FilesExcluded)
		}
		if res.FilesAdded != 1 {
			t.Errorf("FilesAdded = %d, want 1", res.FilesAdded)
		}

		rules, _ := f.svc.ListRules()
		for _, r := range rules {
			if r.RuleType == library.RuleFolderName && r.Pattern == "__MACOSX" {
				if r.FilesExcluded != 2 {
					t.Errorf("rule counter = %d, want 2", r.FilesExcluded)
				}
				if r.LastMatchedAt == nil {
					t.Error("LastMatchedAt not stamped")
				}
			}
		}
	})

	t.Run("counters accumulate across scans", func(t *testing.T) {
		f := newFixture(t)
		f.svc.EnsureDefaultRules()
		f.svc.AddFolder("/downloads", "")
		f.fsmgr.AddFile("/downloads/__MACOSX/module.pdf", []byte("junk"))

		for i := 0; i < 2; i++ {
			if _, err := f.svc.Scan(ctx); err != nil {
				t.Fatalf("Scan() error = %v", err)
			}
		}

		rules, _ := f.svc.ListRules()
		for _, r := range rules {
			if r.RuleType == library.RuleFolderName && r.Pattern == "__MACOSX" && r.FilesExcluded != 2 {
				t.Errorf("rule counter = %d, want 2 after two scans", r.FilesExcluded)
			}
		}
	})

	t.Run("updates changed content in place", func(t *testing.T) {
		f := newFixture(t)
		f.svc.AddFolder("/library", "")
		f.fsmgr.AddFile("/library/module.pdf", []byte("v1"))
		f.svc.Scan(ctx)

		f.fsmgr.AddFile("/library/module.pdf", []byte("version two"))
		res, err := f.svc.Scan(ctx)
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if res.FilesUpdated != 1 || res.FilesAdded != 0 {
			t.Errorf("Scan() = %+v, want 1 updated, 0 added", res)
		}

		got, _ := f.store.FindFileByPath("/library/module.pdf")
		if got.FileSize != int64(len("version two")) {
			t.Errorf("FileSize = %d, want %d", got.FileSize, len("version two"))
		}
	})

	t.Run("unchanged files are left alone", func(t *testing.T) {
		f := newFixture(t)
		f.svc.AddFolder("/library", "")
		f.fsmgr.AddFile("/library/module.pdf", []byte("stable"))
		f.svc.Scan(ctx)

		res, err := f.svc.Scan(ctx)
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if res.FilesAdded != 0 || res.FilesUpdated != 0 || res.FilesRemoved != 0 {
			t.Errorf("Scan() = %+v, want no changes", res)
		}
	})

	t.Run("prunes files that vanished from an enabled folder", func(t *testing.T) {
		f := newFixture(t)
		f.svc.AddFolder("/library", "")
		f.fsmgr.AddFile("/library/module.pdf", []byte("gone soon"))
		f.svc.Scan(ctx)

		f.fsmgr.Remove("/library/module.pdf")
		res, err := f.svc.Scan(ctx)
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if res.FilesRemoved != 1 {
			t.Errorf("FilesRemoved = %d, want 1", res.FilesRemoved)
		}
		got, _ := f.store.FindFileByPath("/library/module.pdf")
		if got != nil {
			t.Error("vanished file still tracked")
		}
	})

	t.Run("skips disabled folders and keeps their files", func(t *testing.T) {
		f := newFixture(t)
		folder, _ := f.svc.AddFolder("/library", "")
		f.fsmgr.AddFile("/library/module.pdf", []byte("content"))
		f.svc.Scan(ctx)

		disabled := false
		f.svc.UpdateFolder(folder.ID, library.FolderPatch{Enabled: &disabled})
		f.fsmgr.Remove("/library/module.pdf")

		res, err := f.svc.Scan(ctx)
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if res.FilesSeen != 0 || res.FilesRemoved != 0 {
			t.Errorf("Scan() = %+v, want disabled folder untouched", res)
		}
		got, _ := f.store.FindFileByPath("/library/module.pdf")
		if got == nil {
			t.Error("file in disabled folder was pruned")
		}
	})

	t.Run("keeps rows of a folder whose walk failed", func(t *testing.T) {
		f := newFixture(t)
		f.svc.AddFolder("/library", "")
		f.fsmgr.AddFile("/library/module.pdf", []byte("content"))
		f.svc.Scan(ctx)

		// The folder becomes unreadable (unmounted share, transient I/O
		// error); its files are still on disk.
		f.fsmgr.FailWalk("/library", errors.New("input/output error"))

		res, err := f.svc.Scan(ctx)
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if res.FilesRemoved != 0 {
			t.Errorf("FilesRemoved = %d, want 0 for unreadable folder", res.FilesRemoved)
		}
		got, _ := f.store.FindFileByPath("/library/module.pdf")
		if got == nil {
			t.Fatal("row pruned while its folder was unreadable")
		}

		// Once the folder is readable again the same row survives with its
		// original identity.
		f.fsmgr.FailWalk("/library", nil)
		if _, err := f.svc.Scan(ctx); err != nil {
			t.Fatalf("Scan() after recovery error = %v", err)
		}
		after, _ := f.store.FindFileByPath("/library/module.pdf")
		if after == nil || after.ID != got.ID {
			t.Errorf("row identity changed across the outage: %v -> %v", got, after)
		}
	})

	t.Run("honors cancellation", func(t *testing.T) {
		f := newFixture(t)
		f.svc.AddFolder("/library", "")
		f.fsmgr.AddFile("/library/module.pdf", []byte("content"))

		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := f.svc.Scan(cancelled)
		if err == nil {
			t.Error("Scan() with cancelled context did not error")
		}
	})
}
