package fixup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xchecker-dev/xchecker/internal/sandbox"
)

const sampleReview = `Some review narrative.

FIXUP PLAN:

` + "```diff" + `
--- a/src/greet.go
+++ b/src/greet.go
@@ -1,3 +1,3 @@
 package main

-func Greet() string { return "hi" }
+func Greet() string { return "hello" }
` + "```" + `
`

func TestParser_ParsesWellFormedDiffBlock(t *testing.T) {
	p := NewParser()
	require.True(t, p.HasMarker(sampleReview))

	diffs, errs, hadMarker := p.Parse(sampleReview)
	require.True(t, hadMarker)
	require.Empty(t, errs)
	require.Len(t, diffs, 1)
	require.Equal(t, "src/greet.go", diffs[0].TargetFile)
	require.Len(t, diffs[0].Hunks, 1)
}

func TestParser_NoMarkerReturnsFalse(t *testing.T) {
	p := NewParser()
	_, _, hadMarker := p.Parse("nothing to see here")
	require.False(t, hadMarker)
}

func TestParser_MismatchedPathsIsInvalid(t *testing.T) {
	review := "FIXUP PLAN:\n```diff\n--- a/one.go\n+++ b/two.go\n@@ -1,1 +1,1 @@\n-old\n+new\n```\n"
	p := NewParser()
	_, errs, hadMarker := p.Parse(review)
	require.True(t, hadMarker)
	require.NotEmpty(t, errs)
}

func TestApplier_PreviewReportsChangeSummaryWithoutWriting(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "src", "greet.go")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	original := "package main\n\nfunc Greet() string { return \"hi\" }\n"
	require.NoError(t, os.WriteFile(target, []byte(original), 0o644))

	root, err := sandbox.NewRoot(dir)
	require.NoError(t, err)

	p := NewParser()
	diffs, _, _ := p.Parse(sampleReview)

	a := NewApplier(root, 0, 0)
	preview := a.Preview(diffs)
	require.True(t, preview.AllValid)
	require.Contains(t, preview.TargetFiles, "src/greet.go")

	after, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, original, string(after))
}

func TestApplier_ApplyWritesNewContent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "src", "greet.go")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	original := "package main\n\nfunc Greet() string { return \"hi\" }\n"
	require.NoError(t, os.WriteFile(target, []byte(original), 0o644))

	root, err := sandbox.NewRoot(dir)
	require.NoError(t, err)

	p := NewParser()
	diffs, _, _ := p.Parse(sampleReview)

	a := NewApplier(root, 0, 0)
	result := a.Apply(diffs)
	require.Empty(t, result.FailedFiles)
	require.Len(t, result.AppliedFiles, 1)
	require.False(t, result.ThreeWayUsed)

	after, err := os.ReadFile(target)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(after), "hello"))
	require.False(t, strings.Contains(string(after), `"hi"`))
}

func TestApplier_RejectsTargetOutsideSandbox(t *testing.T) {
	dir := t.TempDir()
	root, err := sandbox.NewRoot(dir)
	require.NoError(t, err)

	diffs := []Diff{{TargetFile: "../escape.go", Hunks: []Hunk{{OldStart: 1, OldCount: 1, NewStart: 1, NewCount: 1, Lines: []string{"-a", "+b"}}}}}
	a := NewApplier(root, 0, 0)
	result := a.Apply(diffs)
	require.Len(t, result.FailedFiles, 1)
	require.Empty(t, result.AppliedFiles)
}

func TestPendingFixups_TriState(t *testing.T) {
	require.Equal(t, PendingNone, PendingFixups("").State)
	require.Equal(t, PendingNone, PendingFixups("no markers here").State)
	require.Equal(t, PendingSome, PendingFixups(sampleReview).State)

	malformed := "FIXUP PLAN:\n```diff\nnot a real diff\n```\n"
	require.Equal(t, PendingUnknown, PendingFixups(malformed).State)
}
