package atomicio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteFile_CreatesParentAndWritesContent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "receipts", "requirements-1.json")

	_, err := WriteFile(target, []byte(`{"ok":true}`), 0o644)
	require.NoError(t, err)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, `{"ok":true}`, string(got))
}

func TestWriteFile_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "artifact.md")

	_, err := WriteFile(target, []byte("body"), 0o644)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "artifact.md", entries[0].Name())
}

func TestWriteFile_OverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "f.txt")

	_, err := WriteFile(target, []byte("first"), 0o644)
	require.NoError(t, err)
	_, err = WriteFile(target, []byte("second"), 0o644)
	require.NoError(t, err)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "second", string(got))
}
