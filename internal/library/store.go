package library

import (
	"errors"
	"time"
)

// Sentinel errors returned by the Store and Service layers. Callers map
// these to transport-level responses (404, 400, 409).
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("invalid")
	ErrConflict   = errors.New("conflict")
)

// Store provides an interface for library metadata persistence.
// All methods must be implemented with appropriate transaction handling.
type Store interface {
	// Tracked file operations

	// ListFiles returns every tracked file.
	ListFiles() ([]*TrackedFile, error)

	// FindFileByPath returns the file with an exact path match, or nil.
	FindFileByPath(path string) (*TrackedFile, error)

	// FindFilesByIDs returns the files matching the given ids. Missing ids
	// are silently omitted; callers treat absence as "group has shrunk".
	FindFilesByIDs(ids []string) ([]*TrackedFile, error)

	// InsertFile records a newly discovered file.
	InsertFile(f *TrackedFile) error

	// UpdateFile updates hash, size and title for an existing path.
	UpdateFile(f *TrackedFile) error

	// DeleteFiles removes the metadata rows for the given ids in one transaction.
	DeleteFiles(ids []string) error

	// Folder operations

	ListFolders() ([]*WatchedFolder, error)

	// FindFolder returns the folder with the given id, or nil.
	FindFolder(id string) (*WatchedFolder, error)

	// FindFolderByPath returns the folder with an exact path match, or nil.
	FindFolderByPath(path string) (*WatchedFolder, error)

	CreateFolder(f *WatchedFolder) error

	// UpdateFolder updates label and enabled for an existing folder.
	UpdateFolder(f *WatchedFolder) error

	// DeleteFolder removes a folder. Files owned by it keep their rows but
	// lose their folder association.
	DeleteFolder(id string) error

	// SetSourceOfTruth marks the given folder as the source of truth,
	// atomically clearing the flag from all other folders.
	SetSourceOfTruth(id string) error

	// ClearSourceOfTruth clears the flag from every folder.
	ClearSourceOfTruth() error

	// Exclusion rule operations

	ListRules() ([]*ExclusionRule, error)

	// FindRule returns the rule with the given id, or nil.
	FindRule(id string) (*ExclusionRule, error)

	CreateRule(r *ExclusionRule) error

	// UpdateRule updates pattern, enabled and priority for an existing rule.
	UpdateRule(r *ExclusionRule) error

	// DeleteRule removes a rule. Default rules are rejected by the Service
	// before this is called.
	DeleteRule(id string) error

	// RecordRuleMatches adds the per-rule match counts from one scan to the
	// running files_excluded counters and stamps last_matched_at.
	RecordRuleMatches(counts map[string]int, at time.Time) error

	Close() error
}
