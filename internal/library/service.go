package library

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// Service is the orchestration layer coordinating the store, filesystem
// and trash to perform library scans, duplicate detection and resolution.
type Service struct {
	store      Store
	fsmgr      FilesystemManager
	trash      Trash // nil when soft deletion is disabled
	logger     Logger
	clock      Clock
	idgen      IDGenerator
	extensions map[string]bool // lowercase extensions tracked by scans; empty tracks everything

	// resolveMu serializes scans and resolution runs: execute mutates the
	// store while grouping and selection read it. Previews take it too;
	// this is not a high-throughput path.
	resolveMu sync.Mutex
}

// NewService creates a Service with the provided dependencies.
// trash may be nil. extensions restricts scanning to the given file
// extensions (e.g. ".pdf"); an empty list tracks every regular file.
func NewService(store Store, fsmgr FilesystemManager, trash Trash, logger Logger, clock Clock, idgen IDGenerator, extensions []string) *Service {
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = true
	}
	return &Service{
		store:      store,
		fsmgr:      fsmgr,
		trash:      trash,
		logger:     logger,
		clock:      clock,
		idgen:      idgen,
		extensions: exts,
	}
}

// Folder registry operations

// ListFolders returns every watched folder.
func (s *Service) ListFolders() ([]*WatchedFolder, error) {
	return s.store.ListFolders()
}

// AddFolder registers a new watched folder. The path must be absolute and
// not already registered.
func (s *Service) AddFolder(path, label string) (*WatchedFolder, error) {
	if !filepath.IsAbs(path) {
		return nil, fmt.Errorf("%w: folder path must be absolute, got %q", ErrValidation, path)
	}
	path = filepath.Clean(path)

	existing, err := s.store.FindFolderByPath(path)
	if err != nil {
		return nil, fmt.Errorf("checking for existing folder: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: folder already registered: %s", ErrConflict, path)
	}

	if label == "" {
		label = filepath.Base(path)
	}
	folder := &WatchedFolder{
		ID:        s.idgen.New(),
		Path:      path,
		Label:     label,
		Enabled:   true,
		CreatedAt: s.clock.Now(),
	}
	if err := s.store.CreateFolder(folder); err != nil {
		return nil, fmt.Errorf("creating folder: %w", err)
	}

	s.logger.Info("folder registered", "path", path)
	return folder, nil
}

// FolderPatch carries partial folder updates; nil fields are left unchanged.
type FolderPatch struct {
	Label           *string
	Enabled         *bool
	IsSourceOfTruth *bool
}

// UpdateFolder applies a patch to a folder. Setting is_source_of_truth on
// one folder atomically clears it from all others; setting it on a
// disabled folder is rejected. Disabling the source-of-truth folder clears
// its flag, so precedence never flows from a folder scans no longer visit.
func (s *Service) UpdateFolder(id string, patch FolderPatch) (*WatchedFolder, error) {
	folder, err := s.store.FindFolder(id)
	if err != nil {
		return nil, fmt.Errorf("finding folder: %w", err)
	}
	if folder == nil {
		return nil, fmt.Errorf("%w: folder %s", ErrNotFound, id)
	}

	if patch.Label != nil {
		folder.Label = *patch.Label
	}
	if patch.Enabled != nil {
		folder.Enabled = *patch.Enabled
	}
	if err := s.store.UpdateFolder(folder); err != nil {
		return nil, fmt.Errorf("updating folder: %w", err)
	}

	if patch.Enabled != nil && !*patch.Enabled && folder.IsSourceOfTruth {
		if err := s.store.ClearSourceOfTruth(); err != nil {
			return nil, fmt.Errorf("clearing source of truth: %w", err)
		}
		folder.IsSourceOfTruth = false
		s.logger.Warn("source-of-truth flag cleared from disabled folder", "path", folder.Path)
	}

	if patch.IsSourceOfTruth != nil {
		if *patch.IsSourceOfTruth {
			if err := s.SetSourceOfTruth(id); err != nil {
				return nil, err
			}
			folder.IsSourceOfTruth = true
		} else if folder.IsSourceOfTruth {
			if err := s.store.ClearSourceOfTruth(); err != nil {
				return nil, fmt.Errorf("clearing source of truth: %w", err)
			}
			folder.IsSourceOfTruth = false
		}
	}

	return folder, nil
}

// SetSourceOfTruth marks the given folder as the source of truth,
// clearing the flag from every other folder in the same transaction.
// Marking a disabled folder is a configuration error.
func (s *Service) SetSourceOfTruth(id string) error {
	folder, err := s.store.FindFolder(id)
	if err != nil {
		return fmt.Errorf("finding folder: %w", err)
	}
	if folder == nil {
		return fmt.Errorf("%w: folder %s", ErrNotFound, id)
	}
	if !folder.Enabled {
		return fmt.Errorf("%w: cannot mark disabled folder %s as source of truth", ErrValidation, folder.Path)
	}
	if err := s.store.SetSourceOfTruth(id); err != nil {
		return fmt.Errorf("setting source of truth: %w", err)
	}
	s.logger.Info("source of truth set", "path", folder.Path)
	return nil
}

// RemoveFolder deletes a folder from the registry. Its files keep their
// rows but lose folder precedence until removed explicitly or pruned.
func (s *Service) RemoveFolder(id string) error {
	folder, err := s.store.FindFolder(id)
	if err != nil {
		return fmt.Errorf("finding folder: %w", err)
	}
	if folder == nil {
		return fmt.Errorf("%w: folder %s", ErrNotFound, id)
	}
	if err := s.store.DeleteFolder(id); err != nil {
		return fmt.Errorf("deleting folder: %w", err)
	}
	s.logger.Info("folder removed", "path", folder.Path)
	return nil
}

// Exclusion rule operations

// ListRules returns every exclusion rule.
func (s *Service) ListRules() ([]*ExclusionRule, error) {
	return s.store.ListRules()
}

// AddRule validates and creates a custom exclusion rule.
func (s *Service) AddRule(ruleType RuleType, pattern string, priority int) (*ExclusionRule, error) {
	rule := &ExclusionRule{
		ID:        s.idgen.New(),
		RuleType:  ruleType,
		Pattern:   pattern,
		Enabled:   true,
		Priority:  priority,
		CreatedAt: s.clock.Now(),
	}
	if err := ValidateRule(rule); err != nil {
		return nil, err
	}
	if err := s.store.CreateRule(rule); err != nil {
		return nil, fmt.Errorf("creating rule: %w", err)
	}
	s.logger.Info("exclusion rule added", "type", string(ruleType), "pattern", pattern)
	return rule, nil
}

// RulePatch carries partial rule updates; nil fields are left unchanged.
type RulePatch struct {
	Pattern  *string
	Enabled  *bool
	Priority *int
}

// UpdateRule applies a patch to a rule. A changed pattern is revalidated
// against the rule's type before it is stored. Default rules accept only
// the enabled flag.
func (s *Service) UpdateRule(id string, patch RulePatch) (*ExclusionRule, error) {
	rule, err := s.store.FindRule(id)
	if err != nil {
		return nil, fmt.Errorf("finding rule: %w", err)
	}
	if rule == nil {
		return nil, fmt.Errorf("%w: rule %s", ErrNotFound, id)
	}
	if rule.IsDefault && (patch.Pattern != nil || patch.Priority != nil) {
		return nil, fmt.Errorf("%w: default rules can only be enabled or disabled", ErrValidation)
	}

	if patch.Pattern != nil {
		rule.Pattern = *patch.Pattern
	}
	if patch.Enabled != nil {
		rule.Enabled = *patch.Enabled
	}
	if patch.Priority != nil {
		rule.Priority = *patch.Priority
	}
	if err := ValidateRule(rule); err != nil {
		return nil, err
	}
	if err := s.store.UpdateRule(rule); err != nil {
		return nil, fmt.Errorf("updating rule: %w", err)
	}
	return rule, nil
}

// RemoveRule deletes a custom rule. Default rules can only be disabled.
func (s *Service) RemoveRule(id string) error {
	rule, err := s.store.FindRule(id)
	if err != nil {
		return fmt.Errorf("finding rule: %w", err)
	}
	if rule == nil {
		return fmt.Errorf("%w: rule %s", ErrNotFound, id)
	}
	if rule.IsDefault {
		return fmt.Errorf("%w: default rules cannot be deleted, only disabled", ErrValidation)
	}
	if err := s.store.DeleteRule(id); err != nil {
		return fmt.Errorf("deleting rule: %w", err)
	}
	return nil
}

// EnsureDefaultRules seeds the system default exclusion rules when none
// exist yet. Called once at startup.
func (s *Service) EnsureDefaultRules() error {
	rules, err := s.store.ListRules()
	if err != nil {
		return fmt.Errorf("listing rules: %w", err)
	}
	for _, r := range rules {
		if r.IsDefault {
			return nil // already seeded
		}
	}
	for _, r := range DefaultRules() {
		r.ID = s.idgen.New()
		r.CreatedAt = s.clock.Now()
		if err := s.store.CreateRule(r); err != nil {
			return fmt.Errorf("seeding default rule %q: %w", r.Pattern, err)
		}
	}
	s.logger.Info("default exclusion rules seeded", "count", len(DefaultRules()))
	return nil
}

// loadLibrary reads the full file and folder sets the dedup computations
// operate over. Callers hold resolveMu.
func (s *Service) loadLibrary() ([]*TrackedFile, []*WatchedFolder, error) {
	files, err := s.store.ListFiles()
	if err != nil {
		return nil, nil, fmt.Errorf("listing files: %w", err)
	}
	folders, err := s.store.ListFolders()
	if err != nil {
		return nil, nil, fmt.Errorf("listing folders: %w", err)
	}
	return files, folders, nil
}
