// Package packet assembles the bounded, redacted, priority-ordered byte
// stream that gets piped to the backend's stdin (spec §4.8). It is
// grounded on the original Rust packet crate's budget/render split,
// reimplemented against the teacher's atomic-write idiom via
// internal/atomicio.
package packet

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/xchecker-dev/xchecker/internal/atomicio"
	"github.com/xchecker-dev/xchecker/internal/canon"
	"github.com/xchecker-dev/xchecker/internal/redact"
	"github.com/xchecker-dev/xchecker/internal/sandbox"
	"github.com/xchecker-dev/xchecker/internal/spec"
)

// DefaultMaxBytes and DefaultMaxLines are the packet budget caps (spec §4.8).
const (
	DefaultMaxBytes = 65536
	DefaultMaxLines = 1200
)

// Builder assembles a Packet from a set of candidates read relative to a
// repo root, applying redaction and the dual budget.
type Builder struct {
	root     *sandbox.Root
	maxBytes int
	maxLines int
}

// NewBuilder constructs a Builder rooted at repoRoot with the given
// budget caps (0 selects the spec default for that dimension).
func NewBuilder(repoRoot *sandbox.Root, maxBytes, maxLines int) *Builder {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	return &Builder{root: repoRoot, maxBytes: maxBytes, maxLines: maxLines}
}

// Build reads candidates in the order given (callers sort by priority
// before calling), redacting and budgeting each in turn, and always
// writes the redacted preview to contextDir; a manifest is additionally
// written whenever any file was skipped.
func (b *Builder) Build(candidates []spec.CandidateFile, phase string, contextDir string) (spec.Packet, error) {
	var content bytes.Buffer
	var evidence []spec.FileEvidence
	var skipped []spec.SkippedFile
	budget := spec.BudgetUsage{MaxBytes: b.maxBytes, MaxLines: b.maxLines}
	secretDetected := false
	categoriesSeen := map[string]bool{}
	var categories []string

	for _, cand := range candidates {
		full, err := b.root.Join(cand.Path)
		if err != nil {
			skipped = append(skipped, spec.SkippedFile{Path: cand.Path, Priority: cand.Priority, Reason: "path rejected: " + err.Error()})
			continue
		}

		raw, err := os.ReadFile(full)
		if err != nil {
			skipped = append(skipped, spec.SkippedFile{Path: cand.Path, Priority: cand.Priority, Reason: "read error: " + err.Error()})
			continue
		}

		preRedactionHash := canon.HashRaw(raw)
		scrubbed, report := redact.Redact(raw)
		if report.HighSeverity {
			secretDetected = true
		}
		for _, cat := range report.CategoriesHit {
			if !categoriesSeen[cat] {
				categoriesSeen[cat] = true
				categories = append(categories, cat)
			}
		}

		header := fmt.Sprintf("\n===== %s (priority=%s, blake3=%s) =====\n", cand.Path, cand.Priority, preRedactionHash)
		entryBytes := len(header) + len(scrubbed)
		entryLines := countLines(scrubbed)

		if budget.WouldExceed(entryBytes, entryLines) {
			skipped = append(skipped, spec.SkippedFile{
				Path:               cand.Path,
				Priority:           cand.Priority,
				Reason:             "budget exceeded",
				BLAKE3PreRedaction: preRedactionHash,
				Bytes:              len(scrubbed),
			})
			continue
		}

		content.WriteString(header)
		content.Write(scrubbed)
		budget.BytesUsed += entryBytes
		budget.LinesUsed += entryLines

		evidence = append(evidence, spec.FileEvidence{
			Path:               cand.Path,
			Priority:           cand.Priority,
			BLAKE3PreRedaction: preRedactionHash,
			Bytes:              len(scrubbed),
			Lines:              entryLines,
		})
	}

	packetBytes := content.Bytes()
	packetHash := canon.HashRaw(packetBytes)

	overflowed := len(skipped) > 0

	if err := writePreview(contextDir, phase, packetBytes); err != nil {
		return spec.Packet{}, err
	}
	if overflowed {
		if err := writeManifest(contextDir, phase, evidence, skipped, budget); err != nil {
			return spec.Packet{}, err
		}
	}

	return spec.Packet{
		Content:          packetBytes,
		BLAKE3:           packetHash,
		Evidence:         evidence,
		Skipped:          skipped,
		Budget:           budget,
		Overflowed:       overflowed,
		SecretDetected:   secretDetected,
		SecretCategories: categories,
	}, nil
}

// WriteDebugPacket writes the unredacted-equivalent full packet content
// for --debug-packet, but ONLY ever called by the caller after confirming
// the secret scan was clean (spec §4.8 FR-PKT-007); this function itself
// performs no such check.
func WriteDebugPacket(contextDir, phase string, content []byte) error {
	path := filepath.Join(contextDir, lowerPhase(phase)+"-packet-debug.txt")
	if _, err := atomicio.WriteFile(path, content, 0o640); err != nil {
		return fmt.Errorf("packet: write debug packet: %w", err)
	}
	return nil
}

func writePreview(contextDir, phase string, content []byte) error {
	path := filepath.Join(contextDir, lowerPhase(phase)+"-packet.txt")
	if _, err := atomicio.WriteFile(path, content, 0o640); err != nil {
		return fmt.Errorf("packet: write preview: %w", err)
	}
	return nil
}

// manifestEntry is the sanitized (path/priority/hash, no content) record
// written to the overflow manifest.
type manifestEntry struct {
	Path               string        `json:"path"`
	Priority           spec.Priority `json:"priority"`
	BLAKE3PreRedaction string        `json:"blake3_pre_redaction"`
	Bytes              int           `json:"bytes"`
	Lines              int           `json:"lines"`
}

type manifest struct {
	Phase    string          `json:"phase"`
	Overflow bool            `json:"overflow"`
	Budget   spec.BudgetUsage `json:"budget"`
	Files    []manifestEntry `json:"files"`
}

// writeManifest records every candidate the builder considered — both
// files that made it into the packet and ones it skipped — so a
// reviewer can see the full set spec §4.8 step 6 requires ("listing
// only paths/priorities/hashes/sizes of everything considered"),
// without ever repeating file content.
func writeManifest(contextDir, phase string, evidence []spec.FileEvidence, skipped []spec.SkippedFile, budget spec.BudgetUsage) error {
	entries := make([]manifestEntry, 0, len(evidence)+len(skipped))
	for _, e := range evidence {
		entries = append(entries, manifestEntry{
			Path:               e.Path,
			Priority:           e.Priority,
			BLAKE3PreRedaction: e.BLAKE3PreRedaction,
			Bytes:              e.Bytes,
			Lines:              e.Lines,
		})
	}
	for _, s := range skipped {
		entries = append(entries, manifestEntry{
			Path:               s.Path,
			Priority:           s.Priority,
			BLAKE3PreRedaction: s.BLAKE3PreRedaction,
			Bytes:              s.Bytes,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	m := manifest{Phase: phase, Overflow: true, Budget: budget, Files: entries}
	body, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("packet: marshal manifest: %w", err)
	}
	body = append(body, '\n')

	path := filepath.Join(contextDir, lowerPhase(phase)+"-packet.manifest.json")
	if _, err := atomicio.WriteFile(path, body, 0o640); err != nil {
		return fmt.Errorf("packet: write manifest: %w", err)
	}
	return nil
}

func countLines(b []byte) int {
	if len(b) == 0 {
		return 0
	}
	n := 0
	scanner := bufio.NewScanner(bytes.NewReader(b))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		n++
	}
	return n
}

func lowerPhase(phase string) string {
	out := make([]byte, len(phase))
	for i := 0; i < len(phase); i++ {
		c := phase[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
