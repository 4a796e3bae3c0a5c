package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xchecker-dev/xchecker/internal/spec"
)

func repeatLines(header string, n int) string {
	lines := make([]string, 0, n+1)
	lines = append(lines, header)
	for i := 0; i < n; i++ {
		lines = append(lines, "- a concrete requirement line")
	}
	return strings.Join(lines, "\n")
}

func TestValidate_RequirementsPassesWithHeaderAndEnoughLines(t *testing.T) {
	text := repeatLines("# Requirements", 35)
	errs := Validate(spec.PhaseRequirements, text)
	require.Empty(t, errs)
}

func TestValidate_RequirementsFailsTooFewLines(t *testing.T) {
	text := repeatLines("# Requirements", 5)
	errs := Validate(spec.PhaseRequirements, text)
	require.NotEmpty(t, errs)
	found := false
	for _, e := range errs {
		if e.Rule == "MinLines" {
			found = true
		}
	}
	require.True(t, found)
}

func TestValidate_RequirementsFailsMissingHeader(t *testing.T) {
	text := repeatLines("plain text, no header", 35)
	errs := Validate(spec.PhaseRequirements, text)
	found := false
	for _, e := range errs {
		if e.Rule == "MissingRequiredHeader" {
			found = true
		}
	}
	require.True(t, found)
}

func TestValidate_RejectsMetaCommentaryOpening(t *testing.T) {
	text := "I've created the requirements document below.\n" + repeatLines("# Requirements", 35)
	errs := Validate(spec.PhaseRequirements, text)
	found := false
	for _, e := range errs {
		if e.Rule == "MetaSummaryDetected" {
			found = true
		}
	}
	require.True(t, found)
}

func TestValidate_AccumulatesMultipleFailures(t *testing.T) {
	text := "Here's a short one"
	errs := Validate(spec.PhaseRequirements, text)
	require.Len(t, errs, 3) // MinLines + MetaSummaryDetected + MissingRequiredHeader
}

func TestValidate_FinalPhaseHasLowMinimumAndNoHeaderRequirement(t *testing.T) {
	text := repeatLines("any text works", 5)
	errs := Validate(spec.PhaseFinal, text)
	require.Empty(t, errs)
}
