package auditlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xchecker-dev/xchecker/internal/spec"
)

func TestLogger_AppendAssignsIDAndTimestamp(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)

	id, err := l.Append(&Entry{Kind: "llm_call", SpecID: "demo", Phase: spec.PhaseDesign})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	lines := readLines(t, filepath.Join(dir, FileName))
	require.Len(t, lines, 1)

	var decoded Entry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &decoded))
	require.Equal(t, id, decoded.ID)
	require.False(t, decoded.CreatedAt.IsZero())
}

func TestLogger_AppendRejectsEmptyKind(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)
	_, err := l.Append(&Entry{})
	require.Error(t, err)
}

func TestLogger_AppendIsCumulativeAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)

	_, err := l.Append(&Entry{Kind: "llm_call"})
	require.NoError(t, err)
	_, err = l.Append(&Entry{Kind: "tool_call"})
	require.NoError(t, err)

	lines := readLines(t, filepath.Join(dir, FileName))
	require.Len(t, lines, 2)
}

func TestLogger_EnsureFileIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)
	require.NoError(t, l.EnsureFile())
	require.NoError(t, l.EnsureFile())

	info, err := os.Stat(filepath.Join(dir, FileName))
	require.NoError(t, err)
	require.Zero(t, info.Size())
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}
