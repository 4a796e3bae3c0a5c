package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xchecker-dev/xchecker/internal/fixup"
	"github.com/xchecker-dev/xchecker/internal/spec"
)

type fakeProvider struct {
	completed map[spec.PhaseID]bool
	latest    time.Time
	hasLatest bool
	pending   fixup.PendingResult
}

func (f fakeProvider) PhaseCompleted(phase spec.PhaseID) bool { return f.completed[phase] }
func (f fakeProvider) LatestPhaseEmittedAt() (time.Time, bool) { return f.latest, f.hasLatest }
func (f fakeProvider) PendingFixups() fixup.PendingResult      { return f.pending }

func phasePtr(p spec.PhaseID) *spec.PhaseID { return &p }
func durPtr(d time.Duration) *time.Duration { return &d }

func TestEvaluate_MinPhasePassesWhenCompleted(t *testing.T) {
	policy := spec.GatePolicy{MinPhase: phasePtr(spec.PhaseDesign)}
	provider := fakeProvider{completed: map[spec.PhaseID]bool{spec.PhaseDesign: true}}

	result := Evaluate(policy, provider)
	require.True(t, result.Passed)
	require.Len(t, result.Conditions, 1)
	require.Empty(t, result.FailureReasons)
}

func TestEvaluate_MinPhaseFailsWhenNotCompleted(t *testing.T) {
	policy := spec.GatePolicy{MinPhase: phasePtr(spec.PhaseReview)}
	provider := fakeProvider{completed: map[spec.PhaseID]bool{spec.PhaseDesign: true}}

	result := Evaluate(policy, provider)
	require.False(t, result.Passed)
	require.Len(t, result.FailureReasons, 1)
}

func TestEvaluate_MinPhasePassesWhenLaterPhaseCompletedButNotTheNamedOne(t *testing.T) {
	policy := spec.GatePolicy{MinPhase: phasePtr(spec.PhaseDesign)}
	provider := fakeProvider{completed: map[spec.PhaseID]bool{spec.PhaseTasks: true}}

	result := Evaluate(policy, provider)
	require.True(t, result.Passed)
	require.Contains(t, result.Conditions[0].Actual, "tasks")
}

func TestEvaluate_FailOnPendingFixupsRejectsSomeAndUnknown(t *testing.T) {
	policy := spec.GatePolicy{FailOnPendingFixups: true}

	some := Evaluate(policy, fakeProvider{pending: fixup.PendingResult{State: fixup.PendingSome, Stats: fixup.Stats{DiffCount: 2, HunkCount: 3}}})
	require.False(t, some.Passed)

	unknown := Evaluate(policy, fakeProvider{pending: fixup.PendingResult{State: fixup.PendingUnknown, Reason: "malformed diff"}})
	require.False(t, unknown.Passed)
	require.Contains(t, unknown.Conditions[0].Actual, "malformed diff")

	none := Evaluate(policy, fakeProvider{pending: fixup.PendingResult{State: fixup.PendingNone}})
	require.True(t, none.Passed)
}

func TestEvaluate_MaxPhaseAgeFailsWithNoReceiptYet(t *testing.T) {
	policy := spec.GatePolicy{MaxPhaseAge: durPtr(24 * time.Hour)}
	result := Evaluate(policy, fakeProvider{hasLatest: false})
	require.False(t, result.Passed)
	require.Contains(t, result.FailureReasons[0], "no phase has completed")
}

func TestEvaluate_MaxPhaseAgePassesWithinWindow(t *testing.T) {
	restore := nowFunc
	fixedNow := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return fixedNow }
	defer func() { nowFunc = restore }()

	policy := spec.GatePolicy{MaxPhaseAge: durPtr(24 * time.Hour)}
	result := Evaluate(policy, fakeProvider{hasLatest: true, latest: fixedNow.Add(-2 * time.Hour)})
	require.True(t, result.Passed)
}

func TestEvaluate_MaxPhaseAgeFailsWhenStale(t *testing.T) {
	restore := nowFunc
	fixedNow := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return fixedNow }
	defer func() { nowFunc = restore }()

	policy := spec.GatePolicy{MaxPhaseAge: durPtr(24 * time.Hour)}
	result := Evaluate(policy, fakeProvider{hasLatest: true, latest: fixedNow.Add(-48 * time.Hour)})
	require.False(t, result.Passed)
}

func TestEvaluate_AccumulatesAllConditionsNotJustFirstFailure(t *testing.T) {
	policy := spec.GatePolicy{
		MinPhase:            phasePtr(spec.PhaseFinal),
		FailOnPendingFixups: true,
	}
	provider := fakeProvider{
		completed: map[spec.PhaseID]bool{},
		pending:   fixup.PendingResult{State: fixup.PendingSome, Stats: fixup.Stats{DiffCount: 1, HunkCount: 1}},
	}

	result := Evaluate(policy, provider)
	require.False(t, result.Passed)
	require.Len(t, result.Conditions, 2)
	require.Len(t, result.FailureReasons, 2)
}

func TestEvaluate_NoPolicyConditionsAlwaysPasses(t *testing.T) {
	result := Evaluate(spec.GatePolicy{}, fakeProvider{})
	require.True(t, result.Passed)
	require.Empty(t, result.Conditions)
}
