package library

import "time"

// TrackedFile represents one file on disk known to the library.
// Two files with equal ContentHash are considered byte-identical duplicates.
type TrackedFile struct {
	ID          string     // UUID
	ContentHash string     // SHA-256 hex digest of the file bytes
	FilePath    string     // Absolute path, unique per row
	FileSize    int64      // Bytes, non-negative
	FolderID    string     // Owning folder; empty if imported outside folder tracking
	Title       string     // Display label, may be empty
	CreatedAt   time.Time  // When the library first recorded the file
}

// WatchedFolder is a registered root directory scanned for library files.
type WatchedFolder struct {
	ID              string
	Path            string // Absolute path, unique
	Label           string
	Enabled         bool // Disabled folders are skipped by scans; their files stay tracked
	IsSourceOfTruth bool // At most one folder has this set at any time
	CreatedAt       time.Time
}

// RuleType identifies the matching semantics of an ExclusionRule pattern.
type RuleType string

const (
	RuleFolderName RuleType = "folder_name" // Case-insensitive exact match on the parent directory's base name
	RuleFolderPath RuleType = "folder_path" // Substring match against the full parent directory path
	RuleFilename   RuleType = "filename"    // Glob match against the file's base name
	RuleSizeMin    RuleType = "size_min"    // Exclude files smaller than pattern (bytes)
	RuleSizeMax    RuleType = "size_max"    // Exclude files larger than pattern (bytes)
	RuleRegex      RuleType = "regex"       // Regular expression tested against the full path
)

// ExclusionRule suppresses matching files from being tracked during scans.
type ExclusionRule struct {
	ID            string
	RuleType      RuleType
	Pattern       string
	Enabled       bool
	Priority      int // Higher priority rules are evaluated first
	IsDefault     bool // System-seeded rules cannot be deleted, only disabled
	FilesExcluded int64
	LastMatchedAt *time.Time
	CreatedAt     time.Time
}

// KeepReason records why a group member was selected as canonical.
type KeepReason string

const (
	ReasonSourceOfTruth KeepReason = "source_of_truth"
	ReasonNewest        KeepReason = "newest"
)

// DuplicateGroup is the set of all tracked files sharing one content hash,
// with cardinality >= 2. Exactly one member is canonical; the canonical
// member never appears in Duplicates.
type DuplicateGroup struct {
	ContentHash      string
	Canonical        *TrackedFile
	KeepReason       KeepReason
	Duplicates       []*TrackedFile
	WastedSpaceBytes int64 // Sum of Duplicates sizes; the canonical's size is not wasted
}

// DuplicateStats aggregates duplicate detection results across the library.
type DuplicateStats struct {
	TotalProducts         int
	DuplicateCount        int // Non-canonical members across all groups
	UniqueDuplicateGroups int
	WastedSpaceBytes      int64
	WastedSpaceMB         float64
}

// PlanEntry is the dry-run resolution decision for a single duplicate group.
type PlanEntry struct {
	ContentHash     string
	Keep            *TrackedFile
	KeepReason      KeepReason
	Delete          []*TrackedFile
	SpaceFreedBytes int64
}

// ResolutionPlan is the full dry-run resolution across all duplicate groups.
type ResolutionPlan struct {
	Entries          []PlanEntry
	TotalGroups      int
	TotalDuplicates  int
	TotalSpaceBytes  int64
	HasSourceOfTruth bool // When false every entry uses ReasonNewest
}

// RemoveOutcome is the typed result of removing a file from disk.
type RemoveOutcome int

const (
	RemoveDeleted RemoveOutcome = iota
	RemoveAlreadyMissing
	RemovePermissionDenied
	RemoveOtherError
)

func (o RemoveOutcome) String() string {
	switch o {
	case RemoveDeleted:
		return "deleted"
	case RemoveAlreadyMissing:
		return "already_missing"
	case RemovePermissionDenied:
		return "permission_denied"
	default:
		return "other_error"
	}
}

// FileError records a single file that could not be processed during
// execution. The batch continues past these.
type FileError struct {
	FilePath string
	Outcome  RemoveOutcome
	Message  string
}

// ExecutionResult aggregates the outcome of a resolution run.
// AlreadyMissing counts files whose bytes were gone before deletion;
// they are tracked separately from FilesDeleted so statistics stay honest.
type ExecutionResult struct {
	GroupsProcessed int
	FilesRemoved    int // Metadata rows removed
	FilesDeleted    int // Files removed from disk
	AlreadyMissing  int
	BytesFreed      int64
	Errors          []FileError
}

// ScanResult summarizes a single library scan.
type ScanResult struct {
	FilesSeen     int
	FilesAdded    int
	FilesUpdated  int
	FilesRemoved  int
	FilesExcluded int
}
