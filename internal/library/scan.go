package library

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Scan walks every enabled watched folder, applies the exclusion rules,
// hashes discovered files and reconciles the store: new paths are
// inserted, paths with changed content are updated, and rows whose file
// vanished from an enabled folder are pruned. Files in disabled folders
// keep their rows untouched.
//
// Scans take the resolution lock, so a scan never interleaves with an
// execute mutating the same rows.
func (s *Service) Scan(ctx context.Context) (*ScanResult, error) {
	s.resolveMu.Lock()
	defer s.resolveMu.Unlock()

	folders, err := s.store.ListFolders()
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	rules, err := s.store.ListRules()
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	existing, err := s.store.ListFiles()
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}

	matcher := NewRuleMatcher(rules)
	byPath := make(map[string]*TrackedFile, len(existing))
	for _, f := range existing {
		byPath[f.FilePath] = f
	}

	res := &ScanResult{}
	matchCounts := make(map[string]int)
	seen := make(map[string]bool)
	walkedIDs := make(map[string]bool)

	for _, folder := range folders {
		if !folder.Enabled {
			continue
		}

		if err := ctx.Err(); err != nil {
			return res, err
		}

		candidates, err := s.fsmgr.WalkFolder(folder.Path)
		if err != nil {
			// The folder may be unmounted or transiently unreadable; its
			// rows are only pruned after a walk that actually saw the
			// folder's contents.
			s.logger.Warn("scanning folder failed", "path", folder.Path, "error", err)
			continue
		}
		walkedIDs[folder.ID] = true

		for _, c := range candidates {
			if !s.tracksExtension(c.Path) {
				continue
			}
			res.FilesSeen++

			if rule := matcher.Match(NewCandidate(c.Path, c.Size)); rule != nil {
				matchCounts[rule.ID]++
				res.FilesExcluded++
				continue
			}
			seen[c.Path] = true

			hash, size, err := s.fsmgr.HashFile(c.Path)
			if err != nil {
				s.logger.Warn("hashing file failed", "path", c.Path, "error", err)
				continue
			}

			prev := byPath[c.Path]
			if prev == nil {
				f := &TrackedFile{
					ID:          s.idgen.New(),
					ContentHash: hash,
					FilePath:    c.Path,
					FileSize:    size,
					FolderID:    folder.ID,
					Title:       titleFromPath(c.Path),
					CreatedAt:   s.clock.Now(),
				}
				if err := s.store.InsertFile(f); err != nil {
					s.logger.Warn("recording file failed", "path", c.Path, "error", err)
					continue
				}
				res.FilesAdded++
			} else if prev.ContentHash != hash || prev.FileSize != size || prev.FolderID != folder.ID {
				prev.ContentHash = hash
				prev.FileSize = size
				prev.FolderID = folder.ID
				if err := s.store.UpdateFile(prev); err != nil {
					s.logger.Warn("updating file failed", "path", c.Path, "error", err)
					continue
				}
				res.FilesUpdated++
			}
		}
	}

	// Prune rows whose file disappeared from a successfully walked folder.
	// Rows in disabled or unreadable folders, and rows imported outside
	// folder tracking, stay.
	var pruneIDs []string
	for _, f := range existing {
		if walkedIDs[f.FolderID] && !seen[f.FilePath] {
			pruneIDs = append(pruneIDs, f.ID)
		}
	}
	if len(pruneIDs) > 0 {
		if err := s.store.DeleteFiles(pruneIDs); err != nil {
			return res, fmt.Errorf("pruning vanished files: %w", err)
		}
		res.FilesRemoved = len(pruneIDs)
	}

	if len(matchCounts) > 0 {
		if err := s.store.RecordRuleMatches(matchCounts, s.clock.Now()); err != nil {
			return res, fmt.Errorf("recording rule matches: %w", err)
		}
	}

	s.logger.Info("scan complete",
		"seen", res.FilesSeen,
		"added", res.FilesAdded,
		"updated", res.FilesUpdated,
		"removed", res.FilesRemoved,
		"excluded", res.FilesExcluded)
	return res, nil
}

// tracksExtension reports whether scanning tracks files with this path's
// extension. An empty extension set tracks everything.
func (s *Service) tracksExtension(path string) bool {
	if len(s.extensions) == 0 {
		return true
	}
	return s.extensions[strings.ToLower(filepath.Ext(path))]
}

// titleFromPath derives a display title from a file's base name.
func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
