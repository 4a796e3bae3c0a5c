package fixup

// PendingState distinguishes "no fixups proposed" from "fixups
// proposed and parsed cleanly" from "fixups proposed but unparseable",
// since a gate policy with fail_on_pending_fixups needs to treat the
// last case as a failure even though it isn't itself a count of pending
// work (spec §4.10).
type PendingState int

const (
	// PendingNone means no FIXUP PLAN marker was found, or there is no
	// review artifact yet.
	PendingNone PendingState = iota
	// PendingSome means markers were present and parsed; Stats is valid.
	PendingSome
	// PendingUnknown means markers were present but parsing failed;
	// policy must treat this as a failure.
	PendingUnknown
)

// Stats summarizes a parsed fixup plan for gate evaluation.
type Stats struct {
	DiffCount int
	HunkCount int
}

// PendingResult is the tri-state result of PendingFixups.
type PendingResult struct {
	State  PendingState
	Stats  Stats
	Reason string // populated only when State == PendingUnknown
}

// PendingFixups inspects review text (empty string if no review phase
// has run yet) and reports the tri-state pending-fixups status the gate
// evaluator consumes.
func PendingFixups(reviewText string) PendingResult {
	if reviewText == "" {
		return PendingResult{State: PendingNone}
	}

	p := NewParser()
	if !p.HasMarker(reviewText) {
		return PendingResult{State: PendingNone}
	}

	diffs, errs, _ := p.Parse(reviewText)
	if len(errs) > 0 && len(diffs) == 0 {
		return PendingResult{State: PendingUnknown, Reason: errs[0].Error()}
	}
	if len(errs) > 0 {
		return PendingResult{State: PendingUnknown, Reason: "some diff blocks failed to parse"}
	}

	hunks := 0
	for _, d := range diffs {
		hunks += len(d.Hunks)
	}
	return PendingResult{State: PendingSome, Stats: Stats{DiffCount: len(diffs), HunkCount: hunks}}
}
