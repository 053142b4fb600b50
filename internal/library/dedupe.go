package library

import (
	"math"
	"sort"
)

// GroupByHash buckets tracked files by content hash in a single pass and
// returns the buckets with cardinality >= 2. Hash equality is treated as
// byte equality, so this is O(n) with a map rather than pairwise
// comparison. A file with a unique hash belongs to no group.
//
// Buckets are ordered by hash and members within a bucket by id, so the
// output is deterministic for a given file set.
func GroupByHash(files []*TrackedFile) [][]*TrackedFile {
	byHash := make(map[string][]*TrackedFile)
	for _, f := range files {
		if f.ContentHash == "" {
			continue
		}
		byHash[f.ContentHash] = append(byHash[f.ContentHash], f)
	}

	var groups [][]*TrackedFile
	for _, members := range byHash {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
		groups = append(groups, members)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i][0].ContentHash < groups[j][0].ContentHash
	})
	return groups
}

// BuildGroups runs duplicate grouping and canonical selection over the
// given files. Read-only: it never mutates the store.
func BuildGroups(files []*TrackedFile, folders []*WatchedFolder) []*DuplicateGroup {
	sotID := ""
	if sot := SourceOfTruth(folders); sot != nil {
		sotID = sot.ID
	}

	var groups []*DuplicateGroup
	for _, members := range GroupByHash(files) {
		keep, reason := SelectCanonical(members, sotID)
		g := &DuplicateGroup{
			ContentHash: members[0].ContentHash,
			Canonical:   keep,
			KeepReason:  reason,
		}
		for _, m := range members {
			if m.ID == keep.ID {
				continue
			}
			g.Duplicates = append(g.Duplicates, m)
			g.WastedSpaceBytes += m.FileSize
		}
		groups = append(groups, g)
	}
	return groups
}

// ComputeStats aggregates duplicate statistics across all groups.
func ComputeStats(files []*TrackedFile, groups []*DuplicateGroup) DuplicateStats {
	s := DuplicateStats{
		TotalProducts:         len(files),
		UniqueDuplicateGroups: len(groups),
	}
	for _, g := range groups {
		s.DuplicateCount += len(g.Duplicates)
		s.WastedSpaceBytes += g.WastedSpaceBytes
	}
	s.WastedSpaceMB = math.Round(float64(s.WastedSpaceBytes)/(1024*1024)*100) / 100
	return s
}
