// Package gate evaluates a declarative GatePolicy against a spec's
// observed state (phase completion, receipt age, pending fixups) without
// mutating anything — grounded on the original Rust xchecker-gate crate's
// policy/types/command split (spec §4.13).
package gate

import (
	"fmt"
	"time"

	"github.com/xchecker-dev/xchecker/internal/fixup"
	"github.com/xchecker-dev/xchecker/internal/spec"
)

// Exit codes mirrored from the original gate command (xchecker-gate::exit_codes).
const (
	ExitSuccess        = 0
	ExitPolicyViolation = 1
)

// Condition is one evaluated policy rule.
type Condition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Passed      bool   `json:"passed"`
	Actual      string `json:"actual,omitempty"`
	Expected    string `json:"expected,omitempty"`
}

// Result is the outcome of evaluating a GatePolicy.
type Result struct {
	Passed         bool        `json:"passed"`
	Summary        string      `json:"summary"`
	Conditions     []Condition `json:"conditions"`
	FailureReasons []string    `json:"failure_reasons"`
}

// DataProvider supplies the facts an Evaluate call checks a policy
// against, decoupling gate evaluation from the orchestrator/receipt
// manager concrete types.
type DataProvider interface {
	// PhaseCompleted reports whether phase has a successful receipt.
	PhaseCompleted(phase spec.PhaseID) bool
	// LatestPhaseEmittedAt returns the emitted_at of the most recent
	// successful receipt across all phases, or ok=false if none exists.
	LatestPhaseEmittedAt() (emittedAt time.Time, ok bool)
	// PendingFixups reports the tri-state pending-fixups status.
	PendingFixups() fixup.PendingResult
}

var nowFunc = time.Now

// Evaluate checks policy against provider's observed state, returning
// every condition evaluated (not just the first failure) so a caller can
// report all violations at once.
func Evaluate(policy spec.GatePolicy, provider DataProvider) Result {
	var conditions []Condition
	var reasons []string

	if policy.MinPhase != nil {
		c := evaluateMinPhase(*policy.MinPhase, provider)
		conditions = append(conditions, c)
		if !c.Passed {
			reasons = append(reasons, fmt.Sprintf("phase %q is not yet completed", *policy.MinPhase))
		}
	}

	if policy.FailOnPendingFixups {
		c := evaluatePendingFixups(provider)
		conditions = append(conditions, c)
		if !c.Passed {
			reasons = append(reasons, "pending fixups block this gate")
		}
	}

	if policy.MaxPhaseAge != nil {
		c, reason := evaluateMaxPhaseAge(*policy.MaxPhaseAge, provider)
		conditions = append(conditions, c)
		if !c.Passed {
			reasons = append(reasons, reason)
		}
	}

	passed := true
	for _, c := range conditions {
		if !c.Passed {
			passed = false
			break
		}
	}

	summary := "spec passes all gate conditions"
	if !passed {
		summary = fmt.Sprintf("spec fails %d of %d gate condition(s)", len(reasons), len(conditions))
	}

	return Result{
		Passed:         passed,
		Summary:        summary,
		Conditions:     conditions,
		FailureReasons: reasons,
	}
}

// evaluateMinPhase passes if the spec has completed min or any later
// phase — spec §4.13 frames this as "the latest successful receipt's
// phase index >= required", which a forward-only pipeline satisfies as
// soon as any phase at or past the minimum has its own successful
// receipt, even if an individual --phase re-run skipped writing a fresh
// receipt for an earlier phase in between.
func evaluateMinPhase(min spec.PhaseID, provider DataProvider) Condition {
	passed := false
	var reached spec.PhaseID
	for _, p := range spec.Phases {
		if p.Ordinal() < min.Ordinal() {
			continue
		}
		if provider.PhaseCompleted(p) {
			passed = true
			reached = p
			break
		}
	}
	return Condition{
		Name:        "min_phase",
		Description: "spec must have completed at least the configured minimum phase",
		Passed:      passed,
		Expected:    string(min),
		Actual:      actualMinPhaseState(passed, reached),
	}
}

func actualMinPhaseState(passed bool, reached spec.PhaseID) string {
	if passed {
		return fmt.Sprintf("completed (%s)", reached)
	}
	return "not completed"
}

func evaluatePendingFixups(provider DataProvider) Condition {
	pending := provider.PendingFixups()
	passed := pending.State == fixup.PendingNone

	actual := "none pending"
	switch pending.State {
	case fixup.PendingSome:
		actual = fmt.Sprintf("%d diff(s) pending across %d hunk(s)", pending.Stats.DiffCount, pending.Stats.HunkCount)
	case fixup.PendingUnknown:
		actual = fmt.Sprintf("indeterminate: %s", pending.Reason)
	}

	return Condition{
		Name:        "fail_on_pending_fixups",
		Description: "no pending or indeterminate fixups may remain",
		Passed:      passed,
		Expected:    "none pending",
		Actual:      actual,
	}
}

func evaluateMaxPhaseAge(maxAge time.Duration, provider DataProvider) (Condition, string) {
	emittedAt, ok := provider.LatestPhaseEmittedAt()
	if !ok {
		c := Condition{
			Name:        "max_phase_age",
			Description: "the latest successful phase must be no older than the configured maximum age",
			Passed:      false,
			Expected:    fmt.Sprintf("<= %s", maxAge),
			Actual:      "no successful phase yet",
		}
		return c, "no phase has completed yet, so its age cannot satisfy max_phase_age"
	}

	age := nowFunc().Sub(emittedAt)
	passed := age <= maxAge
	c := Condition{
		Name:        "max_phase_age",
		Description: "the latest successful phase must be no older than the configured maximum age",
		Passed:      passed,
		Expected:    fmt.Sprintf("<= %s", maxAge),
		Actual:      age.String(),
	}
	if passed {
		return c, ""
	}
	return c, fmt.Sprintf("latest phase is %s old, exceeding max_phase_age of %s", age, maxAge)
}
