package fixup

import (
	"fmt"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/xchecker-dev/xchecker/internal/atomicio"
	"github.com/xchecker-dev/xchecker/internal/canon"
	"github.com/xchecker-dev/xchecker/internal/sandbox"
)

// Applier applies parsed diffs against files rooted at a sandbox.
type Applier struct {
	root     *sandbox.Root
	window   int
	minRatio float64
}

// NewApplier builds an Applier; window/minRatio of 0 select the spec
// defaults (±20 lines, 0.8 ratio).
func NewApplier(root *sandbox.Root, window int, minRatio float64) *Applier {
	if window <= 0 {
		window = DefaultWindow
	}
	if minRatio <= 0 {
		minRatio = DefaultMinRatio
	}
	return &Applier{root: root, window: window, minRatio: minRatio}
}

// targetedFile is one diff resolved against its current on-disk content.
type targetedFile struct {
	diff       Diff
	oldPath    string
	oldContent []byte
	oldLines   []string
	newLines   []string
	err        error
}

// resolve validates each diff's target path and reads its current
// content; diffs targeting paths outside the sandbox are rejected
// without reading anything.
func (a *Applier) resolve(diffs []Diff) []targetedFile {
	out := make([]targetedFile, 0, len(diffs))
	for _, d := range diffs {
		tf := targetedFile{diff: d}
		full, err := a.root.Join(d.TargetFile)
		if err != nil {
			tf.err = fmt.Errorf("target path rejected: %w", err)
			out = append(out, tf)
			continue
		}
		tf.oldPath = full

		body, err := os.ReadFile(full)
		if err != nil {
			tf.err = fmt.Errorf("read target: %w", err)
			out = append(out, tf)
			continue
		}
		tf.oldContent = body
		tf.oldLines = splitLinesKeepEmpty(string(body))

		newLines, ok := a.applyAllHunks(tf.oldLines, d.Hunks)
		if !ok {
			tf.err = fmt.Errorf("one or more hunks did not match the current file content")
			out = append(out, tf)
			continue
		}
		tf.newLines = newLines
		out = append(out, tf)
	}
	return out
}

// Preview computes the projected per-file change summary without
// writing anything.
func (a *Applier) Preview(diffs []Diff) Preview {
	resolved := a.resolve(diffs)

	p := Preview{ChangeSummary: map[string]ChangeSummary{}, AllValid: true}
	for _, tf := range resolved {
		if tf.err != nil {
			p.AllValid = false
			p.Warnings = append(p.Warnings, fmt.Sprintf("%s: %s", tf.diff.TargetFile, tf.err))
			p.ChangeSummary[tf.diff.TargetFile] = ChangeSummary{
				HunkCount:        len(tf.diff.Hunks),
				ValidationPassed: false,
				ValidationMessages: []string{tf.err.Error()},
			}
			continue
		}
		added, removed := lineDiffCounts(tf.oldContent, []byte(strings.Join(tf.newLines, "\n")))
		p.TargetFiles = append(p.TargetFiles, tf.diff.TargetFile)
		p.ChangeSummary[tf.diff.TargetFile] = ChangeSummary{
			HunkCount:        len(tf.diff.Hunks),
			LinesAdded:       added,
			LinesRemoved:     removed,
			ValidationPassed: true,
		}
	}
	return p
}

// Apply runs a dry-validate pass (every diff must resolve cleanly against
// current content) and only then writes each new file body. On a
// mid-batch write failure, files already written stay written; the
// result reports failed_files and the caller should treat the overall
// status as partial.
func (a *Applier) Apply(diffs []Diff) Result {
	resolved := a.resolve(diffs)

	var result Result
	anyInvalid := false
	for _, tf := range resolved {
		if tf.err != nil {
			anyInvalid = true
			result.FailedFiles = append(result.FailedFiles, tf.diff.TargetFile)
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %s", tf.diff.TargetFile, tf.err))
		}
	}
	if anyInvalid {
		return result
	}

	for _, tf := range resolved {
		newBody := []byte(strings.Join(tf.newLines, "\n"))
		if len(tf.oldContent) > 0 && tf.oldContent[len(tf.oldContent)-1] == '\n' {
			newBody = append(newBody, '\n')
		}

		perm := os.FileMode(0o644)
		if info, statErr := os.Stat(tf.oldPath); statErr == nil {
			perm = info.Mode().Perm()
		}

		writeResult, err := atomicio.WriteFile(tf.oldPath, newBody, perm)
		if err != nil {
			result.FailedFiles = append(result.FailedFiles, tf.diff.TargetFile)
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: write failed: %s", tf.diff.TargetFile, err))
			continue
		}

		var warnings []string
		if writeResult.RenameRetryCount > 0 {
			warnings = append(warnings, fmt.Sprintf("rename required %d retries", writeResult.RenameRetryCount))
		}

		result.AppliedFiles = append(result.AppliedFiles, AppliedFile{
			Path:         tf.diff.TargetFile,
			BLAKE3First8: canon.HashRaw(newBody)[:8],
			Applied:      true,
			Warnings:     warnings,
		})
	}

	return result
}

// applyAllHunks applies each hunk in order against a progressively
// updated line slice; hunks are matched against the slice as it stands
// after prior hunks in the same file, which is correct for
// non-overlapping hunks ordered top-to-bottom (the only shape a real
// unified diff produces).
func (a *Applier) applyAllHunks(lines []string, hunks []Hunk) ([]string, bool) {
	current := lines
	growth := 0
	for _, h := range hunks {
		ctx := contextLines(h)
		expected := h.OldStart - 1 + growth
		if expected < 0 {
			expected = 0
		}
		before := len(current)
		pos, _, ok := findBestContextMatch(current, expected, ctx, a.window, a.minRatio)
		if !ok {
			return nil, false
		}
		next, _ := applyHunkAt(current, h, pos)
		growth += len(next) - before
		current = next
	}
	return current, true
}

// applyHunkAt splices hunk's additions/removals into lines starting at
// pos, returning the new slice and how many original lines were consumed.
func applyHunkAt(lines []string, hunk Hunk, pos int) ([]string, int) {
	out := make([]string, 0, len(lines)+len(hunk.Lines))
	out = append(out, lines[:pos]...)

	cursor := pos
	for _, l := range hunk.Lines {
		if l == "" {
			if cursor < len(lines) {
				out = append(out, lines[cursor])
				cursor++
			}
			continue
		}
		switch l[0] {
		case ' ':
			if cursor < len(lines) {
				out = append(out, lines[cursor])
			} else {
				out = append(out, l[1:])
			}
			cursor++
		case '-':
			cursor++
		case '+':
			out = append(out, l[1:])
		default:
			if cursor < len(lines) {
				out = append(out, lines[cursor])
			}
			cursor++
		}
	}
	out = append(out, lines[cursor:]...)
	return out, cursor - pos
}

// lineDiffCounts reports added/removed line counts between old and new
// content via go-diff's line-mode diff, rather than re-deriving them from
// the hunk markers directly — this is the genuine reason this package
// depends on sergi/go-diff.
func lineDiffCounts(oldContent, newContent []byte) (added, removed int) {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(string(oldContent), string(newContent))
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	for _, d := range diffs {
		n := strings.Count(d.Text, "\n")
		if !strings.HasSuffix(d.Text, "\n") && d.Text != "" {
			n++
		}
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += n
		case diffmatchpatch.DiffDelete:
			removed += n
		}
	}
	return added, removed
}

func splitLinesKeepEmpty(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
