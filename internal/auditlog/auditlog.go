// Package auditlog appends a JSONL trail of every LLM call and tool
// invocation xchecker makes, independent of and in addition to the
// per-phase receipt — grounded on the teacher's internal/audit package,
// generalized from its issue-compaction-specific fields to phase/backend
// invocation fields and switched from hand-rolled random IDs to
// google/uuid.
package auditlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/xchecker-dev/xchecker/internal/spec"
)

// FileName is the audit log file name stored under a spec's home directory.
const FileName = "audit.jsonl"

// Entry is one append-only audit event.
type Entry struct {
	ID        string       `json:"id"`
	Kind      string       `json:"kind"`
	CreatedAt time.Time    `json:"created_at"`
	SpecID    string       `json:"spec_id,omitempty"`
	Phase     spec.PhaseID `json:"phase,omitempty"`
	Actor     string       `json:"actor,omitempty"`
	Model     string       `json:"model,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
	ExitCode  *int         `json:"exit_code,omitempty"`
	Error     string       `json:"error,omitempty"`

	Extra map[string]any `json:"extra,omitempty"`
}

// Logger appends entries to a single JSONL file.
type Logger struct {
	path string
}

// New builds a Logger writing to <dir>/audit.jsonl.
func New(dir string) *Logger {
	return &Logger{path: filepath.Join(dir, FileName)}
}

// EnsureFile creates the audit log file (and its parent directory) if it
// does not already exist.
func (l *Logger) EnsureFile() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return fmt.Errorf("auditlog: create parent dir: %w", err)
	}
	if _, err := os.Stat(l.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("auditlog: stat: %w", err)
	}
	if err := os.WriteFile(l.path, nil, 0o640); err != nil {
		return fmt.Errorf("auditlog: create: %w", err)
	}
	return nil
}

// Append writes e as a single JSON line, assigning ID and CreatedAt if
// unset. Entries are append-only: callers must never rewrite the file.
func (l *Logger) Append(e *Entry) (string, error) {
	if e == nil {
		return "", fmt.Errorf("auditlog: nil entry")
	}
	if e.Kind == "" {
		return "", fmt.Errorf("auditlog: kind is required")
	}
	if err := l.EnsureFile(); err != nil {
		return "", err
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	} else {
		e.CreatedAt = e.CreatedAt.UTC()
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return "", fmt.Errorf("auditlog: open: %w", err)
	}
	defer func() { _ = f.Close() }()

	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return "", fmt.Errorf("auditlog: write entry: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return "", fmt.Errorf("auditlog: flush: %w", err)
	}

	return e.ID, nil
}
