package orchestrator

import (
	"fmt"
	"os"
	"strings"

	"github.com/xchecker-dev/xchecker/internal/sandbox"
	"github.com/xchecker-dev/xchecker/internal/spec"
)

// phaseInstructions gives each phase its own task framing; the packet and
// problem statement are identical in shape across phases (spec §9 design
// note: phases share a capability set dispatched from a small table
// rather than open-ended inheritance).
var phaseInstructions = map[spec.PhaseID]string{
	spec.PhaseRequirements: "Write a requirements document for the system described below. Open with a top-level heading. Use EARS-style acceptance criteria under numbered user stories.",
	spec.PhaseDesign:       "Write a design document for the requirements captured in the packet below. Cover architecture, data model, and the rationale for key decisions.",
	spec.PhaseTasks:        "Write an implementation task list derived from the design in the packet below. Each task must reference the requirement(s) it satisfies.",
	spec.PhaseReview:       "Review the artifacts in the packet below for gaps, inconsistencies, and missing edge cases. Where a concrete fix is warranted, propose it as a unified diff under a \"FIXUP PLAN:\" section.",
	spec.PhaseFixup:        "Summarize the fixups applied to the repository based on the review in the packet below.",
	spec.PhaseFinal:        "Produce the final, consolidated specification document synthesizing every prior phase's artifacts in the packet below.",
}

// loadProblemStatement reads the problem statement per cfg's configured
// source, falling back to the documented default string when the file is
// absent (spec §4.11 step 4).
func loadProblemStatement(repoRoot *sandbox.Root, cfg Config) (string, error) {
	switch cfg.ProblemStatementSource {
	case spec.ProblemStatementStdin:
		if cfg.ProblemStatementText == "" {
			return spec.FallbackProblemStatement, nil
		}
		return cfg.ProblemStatementText, nil
	default:
		path := cfg.ProblemStatementPath
		if path == "" {
			path = spec.DefaultProblemStatementPath
		}
		full, err := repoRoot.Join(path)
		if err != nil {
			return spec.FallbackProblemStatement, nil
		}
		body, err := os.ReadFile(full)
		if err != nil {
			if os.IsNotExist(err) {
				return spec.FallbackProblemStatement, nil
			}
			return "", fmt.Errorf("orchestrator: read problem statement: %w", err)
		}
		return strings.TrimSpace(string(body)), nil
	}
}

// renderPrompt builds the phase-specific prompt text, which MUST include
// spec_id, the problem statement, and the packet content (spec §4.11
// step 4), in that order.
func renderPrompt(phase spec.PhaseID, specID, problemStatement string, packet spec.Packet) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "spec_id: %s\nphase: %s\n\n", specID, phase)
	b.WriteString(phaseInstructions[phase])
	b.WriteString("\n\n## Problem Statement\n\n")
	b.WriteString(problemStatement)
	b.WriteString("\n\n## Context Packet\n")
	b.Write(packet.Content)
	return []byte(b.String())
}
