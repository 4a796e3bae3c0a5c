// Package receipt writes and reads the JCS-canonical, append-only audit
// record for each phase execution (spec §4.12, §3). The write/read split
// and "sort filenames by embedded timestamp to find latest" approach
// follow the original Rust xchecker-receipt writer; JCS canonicalization
// and atomic persistence are delegated to internal/canon and
// internal/atomicio respectively.
package receipt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xchecker-dev/xchecker/internal/atomicio"
	"github.com/xchecker-dev/xchecker/internal/canon"
	"github.com/xchecker-dev/xchecker/internal/spec"
)

// Manager writes and reads receipts for a single spec's receipts/ directory.
type Manager struct {
	receiptsDir string
}

// New builds a Manager rooted at receiptsDir (<home>/specs/<id>/receipts).
func New(receiptsDir string) *Manager {
	return &Manager{receiptsDir: receiptsDir}
}

// Write serializes r to JCS-canonical JSON with a terminating LF and
// writes it atomically to <phase>-<emitted_at>.json.
func (m *Manager) Write(r spec.Receipt) (string, error) {
	if err := os.MkdirAll(m.receiptsDir, 0o750); err != nil {
		return "", fmt.Errorf("receipt: create receipts dir: %w", err)
	}

	filename := fmt.Sprintf("%s-%s.json", r.Phase, r.EmittedAt.UTC().Format("20060102_150405"))
	path := filepath.Join(m.receiptsDir, filename)

	body, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("receipt: marshal: %w", err)
	}
	canonical, err := canon.Canonicalize(body, spec.ArtifactJSON)
	if err != nil {
		return "", fmt.Errorf("receipt: canonicalize: %w", err)
	}
	if !bytes.HasSuffix(canonical, []byte("\n")) {
		canonical = append(canonical, '\n')
	}

	if _, err := atomicio.WriteFile(path, canonical, 0o640); err != nil {
		return "", fmt.Errorf("receipt: write: %w", err)
	}
	return path, nil
}

// ReadLatest returns the most recently emitted receipt for phase, or
// (nil, nil) if none exists yet.
func (m *Manager) ReadLatest(phase spec.PhaseID) (*spec.Receipt, error) {
	entries, err := os.ReadDir(m.receiptsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("receipt: read dir: %w", err)
	}

	prefix := string(phase) + "-"
	var matches []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".json") {
			matches = append(matches, name)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}
	sort.Strings(matches)
	latest := matches[len(matches)-1]

	return m.readFile(filepath.Join(m.receiptsDir, latest))
}

// List returns every receipt in the directory, ordered by EmittedAt.
func (m *Manager) List() ([]spec.Receipt, error) {
	entries, err := os.ReadDir(m.receiptsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("receipt: read dir: %w", err)
	}

	var receipts []spec.Receipt
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		r, err := m.readFile(filepath.Join(m.receiptsDir, e.Name()))
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, *r)
	}
	sort.Slice(receipts, func(i, j int) bool { return receipts[i].EmittedAt.Before(receipts[j].EmittedAt) })
	return receipts, nil
}

func (m *Manager) readFile(path string) (*spec.Receipt, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("receipt: read %s: %w", path, err)
	}
	var r spec.Receipt
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("receipt: decode %s: %w", path, err)
	}
	return &r, nil
}
