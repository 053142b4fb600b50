package library

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Candidate carries what the exclusion engine needs to know about a file
// before it is tracked.
type Candidate struct {
	Path       string // Full absolute path
	Size       int64
	FolderName string // Base name of the immediate parent directory
	FolderPath string // Full parent directory path
}

// NewCandidate builds a Candidate from a path and size.
func NewCandidate(path string, size int64) Candidate {
	dir := filepath.Dir(path)
	return Candidate{
		Path:       path,
		Size:       size,
		FolderName: filepath.Base(dir),
		FolderPath: dir,
	}
}

// compiledRule is an ExclusionRule with its pattern pre-parsed for matching.
type compiledRule struct {
	rule      *ExclusionRule
	re        *regexp.Regexp // RuleRegex only
	sizeBytes int64          // RuleSizeMin / RuleSizeMax only
}

// RuleMatcher evaluates a rule set against candidate files.
// Enabled rules are evaluated by descending priority (a higher number is
// checked first); the first matching rule decides the outcome, and a
// candidate matching no rule is included.
type RuleMatcher struct {
	rules []compiledRule
}

// NewRuleMatcher compiles the given rules. Disabled rules are skipped, as
// are rules whose pattern no longer parses; ValidateRule rejects those at
// creation, so a bad stored pattern is ignored rather than fatal.
func NewRuleMatcher(rules []*ExclusionRule) *RuleMatcher {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		cr := compiledRule{rule: r}
		switch r.RuleType {
		case RuleRegex:
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				continue
			}
			cr.re = re
		case RuleSizeMin, RuleSizeMax:
			n, err := strconv.ParseInt(strings.TrimSpace(r.Pattern), 10, 64)
			if err != nil {
				continue
			}
			cr.sizeBytes = n
		}
		compiled = append(compiled, cr)
	}
	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].rule.Priority > compiled[j].rule.Priority
	})
	return &RuleMatcher{rules: compiled}
}

// Match returns the first enabled rule that excludes the candidate, or nil
// if the candidate should be tracked. Match never mutates rule counters;
// recording matches is the caller's concern.
func (m *RuleMatcher) Match(c Candidate) *ExclusionRule {
	for _, cr := range m.rules {
		if cr.matches(c) {
			return cr.rule
		}
	}
	return nil
}

func (cr compiledRule) matches(c Candidate) bool {
	switch cr.rule.RuleType {
	case RuleFolderName:
		return strings.EqualFold(c.FolderName, cr.rule.Pattern)
	case RuleFolderPath:
		return strings.Contains(c.FolderPath, cr.rule.Pattern)
	case RuleFilename:
		ok, err := filepath.Match(cr.rule.Pattern, filepath.Base(c.Path))
		return err == nil && ok
	case RuleSizeMin:
		return c.Size < cr.sizeBytes
	case RuleSizeMax:
		return c.Size > cr.sizeBytes
	case RuleRegex:
		return cr.re.MatchString(c.Path)
	}
	return false
}

// ValidateRule checks a rule's type and pattern at creation time.
// An invalid regex, glob or size pattern is a configuration error rejected
// here, never silently ignored at match time.
func ValidateRule(r *ExclusionRule) error {
	if r.Pattern == "" {
		return fmt.Errorf("%w: rule pattern required", ErrValidation)
	}
	switch r.RuleType {
	case RuleFolderName, RuleFolderPath:
		// Any non-empty string is a valid name/substring pattern.
	case RuleFilename:
		if _, err := filepath.Match(r.Pattern, "probe"); err != nil {
			return fmt.Errorf("%w: bad glob pattern %q: %v", ErrValidation, r.Pattern, err)
		}
	case RuleSizeMin, RuleSizeMax:
		n, err := strconv.ParseInt(strings.TrimSpace(r.Pattern), 10, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: size pattern must be a non-negative byte count, got %q", ErrValidation, r.Pattern)
		}
	case RuleRegex:
		if _, err := regexp.Compile(r.Pattern); err != nil {
			return fmt.Errorf("%w: bad regex %q: %v", ErrValidation, r.Pattern, err)
		}
	default:
		return fmt.Errorf("%w: unknown rule type %q", ErrValidation, r.RuleType)
	}
	return nil
}

// DefaultRules returns the system-seeded exclusion rules created on first
// run. Default rules can be disabled but not deleted.
func DefaultRules() []*ExclusionRule {
	return []*ExclusionRule{
		{RuleType: RuleFolderName, Pattern: "__MACOSX", Priority: 100, Enabled: true, IsDefault: true},
		{RuleType: RuleFilename, Pattern: ".*", Priority: 90, Enabled: true, IsDefault: true},
		{RuleType: RuleFilename, Pattern: "*.tmp", Priority: 90, Enabled: true, IsDefault: true},
		{RuleType: RuleFilename, Pattern: "*.part", Priority: 90, Enabled: true, IsDefault: true},
		{RuleType: RuleSizeMin, Pattern: "1", Priority: 80, Enabled: true, IsDefault: true},
	}
}
