package library

// SourceOfTruth returns the folder flagged is_source_of_truth, or nil when
// none is configured. The write path guarantees at most one folder carries
// the flag; should more than one somehow be set, the lowest folder id wins
// so readers stay deterministic.
func SourceOfTruth(folders []*WatchedFolder) *WatchedFolder {
	var found *WatchedFolder
	for _, f := range folders {
		if !f.IsSourceOfTruth {
			continue
		}
		if found == nil || f.ID < found.ID {
			found = f
		}
	}
	return found
}

// SelectCanonical picks exactly one member of a duplicate group to keep.
//
// Members owned by the source-of-truth folder take precedence with
// ReasonSourceOfTruth, regardless of timestamps; when several members live
// in that folder, the newest of that subset wins. Otherwise the member
// with the most recent CreatedAt wins with ReasonNewest. Ties break to the
// lowest id.
//
// The function is pure and deterministic: the same inputs always yield the
// same canonical, so the plan a user approved at preview time matches what
// execution recomputes unless the underlying data changed.
func SelectCanonical(members []*TrackedFile, sotFolderID string) (*TrackedFile, KeepReason) {
	if len(members) == 0 {
		return nil, ReasonNewest
	}

	pool := members
	reason := ReasonNewest
	if sotFolderID != "" {
		var inSOT []*TrackedFile
		for _, m := range members {
			if m.FolderID == sotFolderID {
				inSOT = append(inSOT, m)
			}
		}
		if len(inSOT) > 0 {
			pool = inSOT
			reason = ReasonSourceOfTruth
		}
	}

	best := pool[0]
	for _, m := range pool[1:] {
		if m.CreatedAt.After(best.CreatedAt) {
			best = m
		} else if m.CreatedAt.Equal(best.CreatedAt) && m.ID < best.ID {
			best = m
		}
	}
	return best, reason
}
