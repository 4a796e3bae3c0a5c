// Package validate checks assistant text against phase-specific rules
// after a successful runner invocation (spec §4.9). The composable,
// function-returning-function shape follows the teacher's
// internal/validation package (Chain() over IssueValidator); unlike the
// teacher's chain, which stops at the first failing validator, a phase's
// rules here all run and every failure is collected, since the spec
// requires the full list of validation errors rather than just the first.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xchecker-dev/xchecker/internal/spec"
)

// Error is one failed rule.
type Error struct {
	Rule   string
	Detail string
}

func (e Error) Error() string { return fmt.Sprintf("%s: %s", e.Rule, e.Detail) }

// Rule checks assistant text and appends any failures it finds.
type Rule func(text string) []Error

// Chain runs every rule against text and returns the concatenation of
// all failures, in rule order.
func Chain(rules ...Rule) Rule {
	return func(text string) []Error {
		var all []Error
		for _, r := range rules {
			all = append(all, r(text)...)
		}
		return all
	}
}

// MinLines rejects text with fewer than n lines.
func MinLines(n int) Rule {
	return func(text string) []Error {
		got := strings.Count(text, "\n") + 1
		if strings.TrimSpace(text) == "" {
			got = 0
		}
		if got < n {
			return []Error{{Rule: "MinLines", Detail: fmt.Sprintf("expected at least %d lines, got %d", n, got)}}
		}
		return nil
	}
}

// RequiresOneHeader rejects text containing none of the given headers.
func RequiresOneHeader(headers ...string) Rule {
	return func(text string) []Error {
		for _, h := range headers {
			if strings.Contains(text, h) {
				return nil
			}
		}
		return []Error{{Rule: "MissingRequiredHeader", Detail: fmt.Sprintf("expected one of %v", headers)}}
	}
}

// metaCommentaryPatterns are scanned against the first 200 characters of
// the response; a match means the model talked about what it's doing
// instead of producing the artifact itself (spec §4.9).
var metaCommentaryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^I('ve| have| will| am)`),
	regexp.MustCompile(`^Here('s| is)`),
	regexp.MustCompile(`^Perfect!`),
	regexp.MustCompile(`^Great!`),
	regexp.MustCompile(`^Based on`),
	regexp.MustCompile(`^I('ll| will) (create|generate|write|produce)`),
}

// RejectMetaCommentary flags responses that open with assistant
// narration rather than the artifact itself.
func RejectMetaCommentary() Rule {
	return func(text string) []Error {
		head := text
		if len(head) > 200 {
			head = head[:200]
		}
		for _, p := range metaCommentaryPatterns {
			if p.MatchString(head) {
				return []Error{{Rule: "MetaSummaryDetected", Detail: fmt.Sprintf("response opens with meta-commentary matching %q", p.String())}}
			}
		}
		return nil
	}
}

// minLinesByPhase are the per-phase minimums from spec §4.9.
var minLinesByPhase = map[spec.PhaseID]int{
	spec.PhaseRequirements: 30,
	spec.PhaseDesign:       50,
	spec.PhaseTasks:        25,
	spec.PhaseReview:       15,
	spec.PhaseFixup:        10,
	spec.PhaseFinal:        5,
}

// requiredHeadersByPhase lists the one-of-these-required headers per
// phase; phases with no entry have no header requirement.
var requiredHeadersByPhase = map[spec.PhaseID][]string{
	spec.PhaseRequirements: {"# Requirements", "## Introduction", "## Requirements"},
}

// ForPhase builds the full rule chain for a given phase.
func ForPhase(phase spec.PhaseID) Rule {
	rules := []Rule{
		MinLines(minLinesByPhase[phase]),
		RejectMetaCommentary(),
	}
	if headers, ok := requiredHeadersByPhase[phase]; ok {
		rules = append(rules, RequiresOneHeader(headers...))
	}
	return Chain(rules...)
}

// Validate runs the phase's full rule set against text.
func Validate(phase spec.PhaseID, text string) []Error {
	return ForPhase(phase)(text)
}
