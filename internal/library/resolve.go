package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
)

// ListDuplicates computes every duplicate group with canonical selection
// applied. Read-only and safe to call repeatedly.
func (s *Service) ListDuplicates() ([]*DuplicateGroup, error) {
	s.resolveMu.Lock()
	defer s.resolveMu.Unlock()

	files, folders, err := s.loadLibrary()
	if err != nil {
		return nil, err
	}
	return BuildGroups(files, folders), nil
}

// Stats aggregates duplicate statistics across the library.
func (s *Service) Stats() (DuplicateStats, error) {
	s.resolveMu.Lock()
	defer s.resolveMu.Unlock()

	files, folders, err := s.loadLibrary()
	if err != nil {
		return DuplicateStats{}, err
	}
	return ComputeStats(files, BuildGroups(files, folders)), nil
}

// BuildPreview computes the full dry-run resolution plan. Read-only; an
// empty library or one with no duplicates yields an empty plan, never an
// error. When HasSourceOfTruth is false every entry uses ReasonNewest and
// callers should warn the user before executing.
func (s *Service) BuildPreview() (*ResolutionPlan, error) {
	s.resolveMu.Lock()
	defer s.resolveMu.Unlock()

	files, folders, err := s.loadLibrary()
	if err != nil {
		return nil, err
	}
	return buildPlan(files, folders), nil
}

func buildPlan(files []*TrackedFile, folders []*WatchedFolder) *ResolutionPlan {
	plan := &ResolutionPlan{HasSourceOfTruth: SourceOfTruth(folders) != nil}
	for _, g := range BuildGroups(files, folders) {
		plan.Entries = append(plan.Entries, PlanEntry{
			ContentHash:     g.ContentHash,
			Keep:            g.Canonical,
			KeepReason:      g.KeepReason,
			Delete:          g.Duplicates,
			SpaceFreedBytes: g.WastedSpaceBytes,
		})
		plan.TotalGroups++
		plan.TotalDuplicates += len(g.Duplicates)
		plan.TotalSpaceBytes += g.WastedSpaceBytes
	}
	return plan
}

// Execute resolves every duplicate group: each group's non-canonical
// members lose their metadata rows and, when deleteFiles is set, their
// bytes on disk. The plan is recomputed fresh here — a preview surviving
// across the API boundary is never trusted — using the same deterministic
// selection, so results match the approved preview unless the data changed.
//
// Idempotent: a second run with no intervening scan reports zero groups.
// ctx is honored between group iterations only; a group is never left
// half-resolved by cancellation.
func (s *Service) Execute(ctx context.Context, deleteFiles bool) (*ExecutionResult, error) {
	s.resolveMu.Lock()
	defer s.resolveMu.Unlock()

	files, folders, err := s.loadLibrary()
	if err != nil {
		return nil, err
	}

	res := &ExecutionResult{}
	for _, g := range BuildGroups(files, folders) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		s.resolveGroupLocked(ctx, g, deleteFiles, res)
	}

	s.logger.Info("duplicate resolution complete",
		"groups", res.GroupsProcessed,
		"removed", res.FilesRemoved,
		"deleted", res.FilesDeleted,
		"already_missing", res.AlreadyMissing,
		"bytes_freed", res.BytesFreed,
		"errors", len(res.Errors))
	return res, nil
}

// ResolveGroup resolves the single duplicate group with the given content
// hash using canonical selection. A hash with no remaining group is a
// no-op, not an error.
func (s *Service) ResolveGroup(ctx context.Context, hash string, deleteFiles bool) (*ExecutionResult, error) {
	s.resolveMu.Lock()
	defer s.resolveMu.Unlock()

	files, folders, err := s.loadLibrary()
	if err != nil {
		return nil, err
	}

	res := &ExecutionResult{}
	for _, g := range BuildGroups(files, folders) {
		if g.ContentHash == hash {
			s.resolveGroupLocked(ctx, g, deleteFiles, res)
			break
		}
	}
	return res, nil
}

// BulkDelete removes a user-selected set of file records outside of
// canonical selection. Unknown ids are skipped; the caller picked them
// from a listing that may since have shrunk.
func (s *Service) BulkDelete(ctx context.Context, ids []string, deleteFiles bool) (*ExecutionResult, error) {
	s.resolveMu.Lock()
	defer s.resolveMu.Unlock()

	files, err := s.store.FindFilesByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("finding files: %w", err)
	}

	res := &ExecutionResult{}
	var removeIDs []string
	var cancelErr error
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			cancelErr = err
			break
		}
		if deleteFiles && !s.removeFromDisk(ctx, f, res) {
			continue
		}
		removeIDs = append(removeIDs, f.ID)
	}
	if len(removeIDs) > 0 {
		if err := s.store.DeleteFiles(removeIDs); err != nil {
			return nil, fmt.Errorf("deleting file records: %w", err)
		}
		res.FilesRemoved = len(removeIDs)
	}
	// Cancellation still reports the files processed so far, but the
	// caller learns the run was cut short.
	return res, cancelErr
}

// resolveGroupLocked removes one group's non-canonical members as a unit.
// Per-file disk failures are recorded on res and leave that file's
// metadata in place; they never abort the remaining members or groups.
func (s *Service) resolveGroupLocked(ctx context.Context, g *DuplicateGroup, deleteFiles bool, res *ExecutionResult) {
	var removeIDs []string
	for _, d := range g.Duplicates {
		if deleteFiles && !s.removeFromDisk(ctx, d, res) {
			continue
		}
		removeIDs = append(removeIDs, d.ID)
	}

	if len(removeIDs) > 0 {
		if err := s.store.DeleteFiles(removeIDs); err != nil {
			res.Errors = append(res.Errors, FileError{
				FilePath: g.Canonical.FilePath,
				Outcome:  RemoveOtherError,
				Message:  fmt.Sprintf("removing metadata for group %s: %v", g.ContentHash, err),
			})
			return
		}
		res.FilesRemoved += len(removeIDs)
	}
	res.GroupsProcessed++
}

// removeFromDisk deletes one file's bytes, preserving them in the trash
// first when one is configured. It returns true when the metadata row may
// be removed: the file was deleted, or was already gone. Failures are
// recorded on res and keep the metadata row so a re-run can retry.
func (s *Service) removeFromDisk(ctx context.Context, f *TrackedFile, res *ExecutionResult) bool {
	if s.trash != nil {
		if err := s.preserveInTrash(ctx, f); err != nil {
			res.Errors = append(res.Errors, FileError{
				FilePath: f.FilePath,
				Outcome:  RemoveOtherError,
				Message:  err.Error(),
			})
			return false
		}
	}

	outcome, err := s.fsmgr.Remove(f.FilePath)
	switch outcome {
	case RemoveDeleted:
		res.FilesDeleted++
		res.BytesFreed += f.FileSize
		return true
	case RemoveAlreadyMissing:
		res.AlreadyMissing++
		return true
	default:
		res.Errors = append(res.Errors, FileError{
			FilePath: f.FilePath,
			Outcome:  outcome,
			Message:  err.Error(),
		})
		return false
	}
}

// preserveInTrash copies a file's bytes into the trash before deletion.
// A file already missing from disk has nothing to preserve; Remove will
// classify it as already_missing.
func (s *Service) preserveInTrash(ctx context.Context, f *TrackedFile) error {
	rc, err := s.fsmgr.Open(f.FilePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("opening file for trash: %w", err)
	}
	defer rc.Close()

	if err := s.trash.Put(ctx, f.ContentHash, rc, f.FileSize); err != nil {
		return fmt.Errorf("preserving file in trash: %w", err)
	}
	s.logger.Debug("file preserved in trash", "path", f.FilePath, "trash", s.trash.Name())
	return nil
}
