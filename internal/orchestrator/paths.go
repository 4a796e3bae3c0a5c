package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xchecker-dev/xchecker/internal/spec"
)

// Home resolves $XCHECKER_HOME if set, else "<cwd>/.xchecker" (spec §6).
func Home() (string, error) {
	if h := os.Getenv("XCHECKER_HOME"); h != "" {
		return h, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("orchestrator: resolve cwd: %w", err)
	}
	return filepath.Join(cwd, ".xchecker"), nil
}

// SpecDir returns <home>/specs/<spec_id>.
func SpecDir(home, specID string) string {
	return filepath.Join(home, "specs", specID)
}

// LockPath returns the per-spec lock file path.
func LockPath(specDir string) string { return filepath.Join(specDir, ".lock") }

// ArtifactsDir, ReceiptsDir, ContextDir return the three fixed
// subdirectories every spec owns (spec §6).
func ArtifactsDir(specDir string) string { return filepath.Join(specDir, "artifacts") }
func ReceiptsDir(specDir string) string  { return filepath.Join(specDir, "receipts") }
func ContextDir(specDir string) string   { return filepath.Join(specDir, "context") }

// ArtifactFilename returns the numbered filename for a phase's primary
// artifact, e.g. "00-requirements.md", "10-design.md".
func ArtifactFilename(phase spec.PhaseID) string {
	return fmt.Sprintf("%02d-%s.md", phase.Index(), phase)
}

// EnsureSpecDirs creates the spec's directory tree if it doesn't exist.
func EnsureSpecDirs(specDir string) error {
	for _, dir := range []string{specDir, ArtifactsDir(specDir), ReceiptsDir(specDir), ContextDir(specDir)} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("orchestrator: create %q: %w", dir, err)
		}
	}
	return nil
}
