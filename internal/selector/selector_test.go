package selector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xchecker-dev/xchecker/internal/spec"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestSelector_ClassifiesByPriority(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/SPEC-001.md", "spec body")
	writeFile(t, root, "README.md", "readme body")
	writeFile(t, root, "src/main.go", "package main")
	writeFile(t, root, ".git/HEAD", "ref: refs/heads/main")

	s := New(DefaultRules())
	candidates, err := s.Walk(root)
	require.NoError(t, err)

	byPath := map[string]spec.Priority{}
	for _, c := range candidates {
		byPath[c.Path] = c.Priority
	}

	require.Equal(t, spec.PriorityHigh, byPath["docs/SPEC-001.md"])
	require.Equal(t, spec.PriorityMedium, byPath["README.md"])
	require.Equal(t, spec.PriorityLow, byPath["src/main.go"])
	_, sawGit := byPath[".git/HEAD"]
	require.False(t, sawGit)
}

func TestSelector_SortsHighBeforeMediumBeforeLowThenDescendingPath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a-README.md", "x")
	writeFile(t, root, "b-README.md", "x")
	writeFile(t, root, "a-SPEC.md", "x")
	writeFile(t, root, "misc.txt", "x")

	s := New(DefaultRules())
	candidates, err := s.Walk(root)
	require.NoError(t, err)
	require.True(t, len(candidates) >= 4)

	require.Equal(t, spec.PriorityHigh, candidates[0].Priority)
	require.Equal(t, "a-SPEC.md", candidates[0].Path)

	require.Equal(t, spec.PriorityMedium, candidates[1].Priority)
	require.Equal(t, "b-README.md", candidates[1].Path)
	require.Equal(t, spec.PriorityMedium, candidates[2].Priority)
	require.Equal(t, "a-README.md", candidates[2].Path)
}

func TestSelector_ExcludesNodeModulesAndVendor(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "node_modules/pkg/index.js", "x")
	writeFile(t, root, "vendor/lib/file.go", "x")
	writeFile(t, root, "keep.txt", "x")

	s := New(DefaultRules())
	candidates, err := s.Walk(root)
	require.NoError(t, err)

	for _, c := range candidates {
		require.NotContains(t, c.Path, "node_modules")
		require.NotContains(t, c.Path, "vendor/")
	}
}
