// Package selector walks a spec's working directory and classifies
// regular files into candidates tagged with a selection priority
// (spec §4.8). It mirrors the priority-glob design in the original
// Rust packet crate's PriorityRules (high SPEC/ADR/REPORT/problem-statement
// globs, medium README/SCHEMA globs, low catch-all), expressed with
// doublestar's "**" glob matcher since none of the Go example repos in
// the retrieval pack import a dedicated glob-matching library.
package selector

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/xchecker-dev/xchecker/internal/spec"
)

// Rules is the ordered set of glob classes the selector applies.
type Rules struct {
	AlwaysExclude []string
	Exclude       []string
	Include       []string
	High          []string
	Medium        []string
	Low           []string
}

// DefaultRules matches spec §4.8's documented defaults.
func DefaultRules() Rules {
	return Rules{
		AlwaysExclude: []string{
			"**/.git/**",
			"**/.xchecker/**",
			"**/node_modules/**",
			"**/target/**",
			"**/.venv/**",
			"**/vendor/**",
		},
		Include: []string{
			"docs/**/SPEC*.md",
			"docs/**/ADR*.md",
			"README.md",
			"**/*.core.yaml",
			"SCHEMASET.*",
			"**/Cargo.toml",
		},
		High: []string{
			"**/SPEC*", "**/ADR*", "**/REPORT*",
			"**/*SPEC*", "**/*ADR*", "**/*REPORT*",
			"**/problem-statement*", "**/*problem-statement*",
		},
		Medium: []string{
			"**/README*", "**/SCHEMA*", "**/*README*", "**/*SCHEMA*",
		},
		Low: []string{"**/*"},
	}
}

// Selector walks a repo root and produces priority-tagged candidates.
type Selector struct {
	rules Rules
}

// New builds a Selector with the given rules.
func New(rules Rules) *Selector { return &Selector{rules: rules} }

// Walk discovers every regular file under root, in deterministic
// (lexical) order, classifying each into a CandidateFile or skipping it.
// Files matched by AlwaysExclude or Exclude never appear; files matched
// by Include are always emitted; everything else must match one of
// High/Medium/Low to be emitted at all.
func (s *Selector) Walk(root string) ([]spec.CandidateFile, error) {
	var candidates []spec.CandidateFile

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if matchesAny(s.rules.AlwaysExclude, rel) {
			return nil
		}
		if matchesAny(s.rules.Exclude, rel) {
			return nil
		}

		if matchesAny(s.rules.Include, rel) {
			candidates = append(candidates, spec.CandidateFile{Path: rel, Priority: priorityFor(s.rules, rel)})
			return nil
		}

		if p, ok := classify(s.rules, rel); ok {
			candidates = append(candidates, spec.CandidateFile{Path: rel, Priority: p})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortCandidates(candidates)
	return candidates, nil
}

// priorityFor assigns a priority to a path that matched Include,
// falling through to whichever of High/Medium/Low it also matches, or
// Low if none do (an always-included file with no other classification).
func priorityFor(rules Rules, rel string) spec.Priority {
	if p, ok := classify(rules, rel); ok {
		return p
	}
	return spec.PriorityLow
}

func classify(rules Rules, rel string) (spec.Priority, bool) {
	if matchesAny(rules.High, rel) {
		return spec.PriorityHigh, true
	}
	if matchesAny(rules.Medium, rel) {
		return spec.PriorityMedium, true
	}
	if matchesAny(rules.Low, rel) {
		return spec.PriorityLow, true
	}
	return "", false
}

func matchesAny(globs []string, rel string) bool {
	for _, g := range globs {
		ok, err := doublestar.Match(g, rel)
		if err == nil && ok {
			return true
		}
	}
	return false
}

// sortCandidates orders by priority (High, Medium, Low) then by
// descending path, giving LIFO-within-class determinism (spec §4.8).
func sortCandidates(candidates []spec.CandidateFile) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Priority != b.Priority {
			return a.Priority.Less(b.Priority)
		}
		return a.Path > b.Path
	})
}
