// Package orchestrator drives the six-phase state machine — Idle,
// Locked, PacketBuilt, Invoking, Validating, Persisting, ReceiptWritten,
// Released — composing every other package into one run_phase operation
// (spec §4.11). Grounded on the original xchecker-engine orchestrator;
// Go-specific pieces (lock manager, runner, backend) are this repo's own
// packages, composed here rather than reimplemented.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xchecker-dev/xchecker/internal/atomicio"
	"github.com/xchecker-dev/xchecker/internal/auditlog"
	"github.com/xchecker-dev/xchecker/internal/backend"
	"github.com/xchecker-dev/xchecker/internal/canon"
	"github.com/xchecker-dev/xchecker/internal/fixup"
	"github.com/xchecker-dev/xchecker/internal/lockmgr"
	"github.com/xchecker-dev/xchecker/internal/packet"
	"github.com/xchecker-dev/xchecker/internal/receipt"
	"github.com/xchecker-dev/xchecker/internal/redact"
	"github.com/xchecker-dev/xchecker/internal/sandbox"
	"github.com/xchecker-dev/xchecker/internal/selector"
	"github.com/xchecker-dev/xchecker/internal/spec"
	"github.com/xchecker-dev/xchecker/internal/validate"
	"github.com/xchecker-dev/xchecker/internal/xerrors"
)

// DefaultPhaseTimeout is used when Config.PhaseTimeout is zero (spec §4.11
// step 5: "typically 300-900s").
const DefaultPhaseTimeout = 600 * time.Second

// DefaultLockStaleThreshold is used when Config.LockStaleThreshold is zero.
const DefaultLockStaleThreshold = 30 * time.Minute

// Config parameterizes an Orchestrator. Zero values select the documented
// defaults for every optional field.
type Config struct {
	Home     string
	RepoRoot string

	Backend backend.Backend
	Model   string

	PhaseTimeout time.Duration
	MaxTurns     int

	MaxBytes int
	MaxLines int

	SelectorRules *selector.Rules

	ProblemStatementSource spec.ProblemStatementSource
	ProblemStatementPath   string
	ProblemStatementText   string

	Force              bool
	LockStaleThreshold time.Duration

	ToolVersion string
	ToolGitHash string
}

// ExecutionResult is the terminal outcome of one RunPhase call.
type ExecutionResult struct {
	Phase         spec.PhaseID
	Success       bool
	ExitCode      int
	ArtifactPaths []string
	ReceiptPath   string
	Error         *xerrors.Error
}

// Orchestrator drives phase execution for a single spec.
type Orchestrator struct {
	specID  string
	specDir string
	cfg     Config
	receipt *receipt.Manager
	audit   *auditlog.Logger
}

// New builds an Orchestrator for specID, resolving Home/RepoRoot defaults
// and creating the spec's directory tree.
func New(specID string, cfg Config) (*Orchestrator, error) {
	if err := spec.ValidateSpecID(specID); err != nil {
		return nil, xerrors.New(xerrors.KindConfigInvalid, err.Error())
	}

	home := cfg.Home
	if home == "" {
		h, err := Home()
		if err != nil {
			return nil, err
		}
		home = h
	}
	if cfg.RepoRoot == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("orchestrator: resolve cwd: %w", err)
		}
		cfg.RepoRoot = cwd
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.PhaseTimeout <= 0 {
		cfg.PhaseTimeout = DefaultPhaseTimeout
	}
	if cfg.LockStaleThreshold <= 0 {
		cfg.LockStaleThreshold = DefaultLockStaleThreshold
	}
	if cfg.Backend == nil {
		b, err := backend.FromEnv()
		if err != nil {
			return nil, err
		}
		cfg.Backend = b
	}

	specDir := SpecDir(home, specID)
	if err := EnsureSpecDirs(specDir); err != nil {
		return nil, err
	}

	return &Orchestrator{
		specID:  specID,
		specDir: specDir,
		cfg:     cfg,
		receipt: receipt.New(ReceiptsDir(specDir)),
		audit:   auditlog.New(specDir),
	}, nil
}

// RunPhase executes a single phase end to end: acquire lock, build
// packet, invoke backend, validate, persist artifacts, write receipt,
// release lock.
func (o *Orchestrator) RunPhase(ctx context.Context, phase spec.PhaseID) (*ExecutionResult, error) {
	lockMgr := lockmgr.New(LockPath(o.specDir), o.cfg.LockStaleThreshold)
	handle, stolen, err := lockMgr.Acquire(o.cfg.Force)
	if err != nil {
		return nil, xerrors.New(xerrors.KindLockHeld, err.Error())
	}
	defer func() { _ = handle.Release() }()

	var lockWarnings []string
	if stolen {
		lockWarnings = append(lockWarnings, "lock_stolen")
	}

	started := time.Now()

	repoRoot, err := sandbox.NewRoot(o.cfg.RepoRoot)
	if err != nil {
		return o.fail(phase, started, nil, nil, xerrors.New(xerrors.KindConfigInvalid, err.Error()), lockWarnings)
	}

	rules := selector.DefaultRules()
	if o.cfg.SelectorRules != nil {
		rules = *o.cfg.SelectorRules
	}
	candidates, err := selector.New(rules).Walk(repoRoot.Abs())
	if err != nil {
		return o.fail(phase, started, nil, nil, xerrors.New(xerrors.KindConfigInvalid, err.Error()), lockWarnings)
	}

	builder := packet.NewBuilder(repoRoot, o.cfg.MaxBytes, o.cfg.MaxLines)
	pkt, err := builder.Build(candidates, string(phase), ContextDir(o.specDir))
	if err != nil {
		return o.fail(phase, started, nil, nil, xerrors.New(xerrors.KindUnknown, err.Error()), lockWarnings)
	}
	if pkt.SecretDetected {
		return o.fail(phase, started, &pkt, nil, xerrors.New(xerrors.KindSecretDetected, "high-severity secret pattern matched in packet input: "+strings.Join(pkt.SecretCategories, ",")), lockWarnings)
	}

	warnings := append([]string{}, lockWarnings...)
	if pkt.Overflowed {
		if highPrioritySkipped(pkt.Skipped) {
			return o.fail(phase, started, &pkt, nil, xerrors.New(xerrors.KindPacketOverflow, "budget could not fit all required high-priority files"), warnings)
		}
		warnings = append(warnings, "packet_overflow")
	}

	if phase == spec.PhaseFixup {
		fixupWarnings, ferr := o.applyPendingFixups(repoRoot)
		if ferr != nil {
			return o.fail(phase, started, &pkt, nil, ferr, append(warnings, fixupWarnings...))
		}
		warnings = append(warnings, fixupWarnings...)
	}

	problemStatement, err := loadProblemStatement(repoRoot, o.cfg)
	if err != nil {
		return o.fail(phase, started, &pkt, nil, xerrors.New(xerrors.KindUnknown, err.Error()), warnings)
	}

	prompt := renderPrompt(phase, o.specID, problemStatement, pkt)

	invCtx, cancel := context.WithTimeout(ctx, o.cfg.PhaseTimeout)
	defer cancel()

	maxTurns := o.cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 1
	}
	res, err := o.cfg.Backend.Invoke(invCtx, backend.Invocation{
		Phase:    phase,
		Model:    o.cfg.Model,
		Prompt:   prompt,
		Timeout:  o.cfg.PhaseTimeout,
		MaxTurns: maxTurns,
	})
	if err != nil {
		return o.fail(phase, started, &pkt, nil, xerrors.New(xerrors.KindClaudeFailure, err.Error()), warnings)
	}
	warnings = append(warnings, res.Warnings...)

	if res.TimedOut {
		return o.fail(phase, started, &pkt, res, xerrors.New(xerrors.KindPhaseTimeout, fmt.Sprintf("backend did not complete within %s", o.cfg.PhaseTimeout)), warnings)
	}
	if res.ExitCode != 0 {
		return o.fail(phase, started, &pkt, res, xerrors.New(xerrors.KindClaudeFailure, fmt.Sprintf("backend exited %d", res.ExitCode)), warnings)
	}

	if errs := validate.Validate(phase, res.AssembledText); len(errs) > 0 {
		reasons := make([]string, len(errs))
		for i, e := range errs {
			reasons[i] = e.Error()
		}
		return o.fail(phase, started, &pkt, res, xerrors.New(xerrors.KindValidationFailed, strings.Join(reasons, "; ")), warnings)
	}

	canonical, err := canon.Canonicalize([]byte(res.AssembledText), spec.ArtifactMarkdown)
	if err != nil {
		return o.fail(phase, started, &pkt, res, xerrors.New(xerrors.KindUnknown, err.Error()), warnings)
	}

	artifactPath, err := o.writeArtifact(phase, canonical)
	if err != nil {
		return o.fail(phase, started, &pkt, res, xerrors.New(xerrors.KindUnknown, err.Error()), warnings)
	}

	outputs := []spec.OutputInfo{{
		Path:            artifactRelPath(phase),
		BLAKE3Canonical: canon.HashRaw(canonical),
	}}

	rcpt := o.buildReceipt(phase, started, &pkt, res, outputs, spec.Outcome{ExitCode: 0, FallbackUsed: res.FallbackUsed, Warnings: warnings})
	receiptPath, err := o.receipt.Write(rcpt)
	if err != nil {
		return nil, err
	}

	o.logAudit(phase, res, nil)

	return &ExecutionResult{
		Phase:         phase,
		Success:       true,
		ExitCode:      0,
		ArtifactPaths: []string{artifactPath},
		ReceiptPath:   receiptPath,
	}, nil
}

// RunAll runs every phase in pipeline order, stopping at the first failure.
func (o *Orchestrator) RunAll(ctx context.Context) ([]*ExecutionResult, error) {
	var results []*ExecutionResult
	for _, phase := range spec.Phases {
		res, err := o.RunPhase(ctx, phase)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		if !res.Success {
			break
		}
	}
	return results, nil
}

// applyPendingFixups reads the latest Review artifact (if any) and
// applies any FIXUP PLAN diffs it contains, returning warnings on
// success or a classified error when one or more diffs fail to apply.
func (o *Orchestrator) applyPendingFixups(repoRoot *sandbox.Root) ([]string, *xerrors.Error) {
	reviewPath := filepath.Join(ArtifactsDir(o.specDir), ArtifactFilename(spec.PhaseReview))
	body, err := os.ReadFile(reviewPath)
	if err != nil {
		return nil, nil
	}

	pending := fixup.PendingFixups(string(body))
	switch pending.State {
	case fixup.PendingNone:
		return nil, nil
	case fixup.PendingUnknown:
		return nil, xerrors.New(xerrors.KindFixupApplyFailed, "pending fixups could not be parsed: "+pending.Reason)
	}

	parser := fixup.NewParser()
	diffs, parseErrs, _ := parser.Parse(string(body))
	if len(parseErrs) > 0 {
		msgs := make([]string, len(parseErrs))
		for i, e := range parseErrs {
			msgs[i] = e.Error()
		}
		return nil, xerrors.New(xerrors.KindFixupApplyFailed, strings.Join(msgs, "; "))
	}

	applier := fixup.NewApplier(repoRoot, 0, 0)
	result := applier.Apply(diffs)
	if len(result.FailedFiles) > 0 {
		return nil, xerrors.New(xerrors.KindFixupApplyFailed, fmt.Sprintf("failed to apply fixups to: %s", strings.Join(result.FailedFiles, ", ")))
	}
	return result.Warnings, nil
}

func (o *Orchestrator) writeArtifact(phase spec.PhaseID, canonicalBody []byte) (string, error) {
	path := filepath.Join(ArtifactsDir(o.specDir), ArtifactFilename(phase))
	if _, err := atomicio.WriteFile(path, canonicalBody, 0o640); err != nil {
		return "", fmt.Errorf("orchestrator: write artifact: %w", err)
	}
	return path, nil
}

func (o *Orchestrator) buildReceipt(phase spec.PhaseID, started time.Time, pkt *spec.Packet, res *backend.Result, outputs []spec.OutputInfo, outcome spec.Outcome) spec.Receipt {
	r := spec.Receipt{
		SpecID:        o.specID,
		Phase:         phase,
		EmittedAt:     time.Now().UTC(),
		SchemaVersion: spec.SchemaVersion,
		Versions: spec.Versions{
			ToolVersion:             o.cfg.ToolVersion,
			ToolGitHash:             o.cfg.ToolGitHash,
			CanonicalizationVersion: canon.Version,
			CanonicalizationBackend: canon.Backend,
		},
		Outputs: outputs,
		Outcome: outcome,
	}
	if pkt != nil {
		r.Packet = spec.PacketInfo{Files: pkt.Evidence, MaxBytes: pkt.Budget.MaxBytes, MaxLines: pkt.Budget.MaxLines}
	}
	if res != nil {
		r.Invocation = spec.Invocation{
			Model:        o.cfg.Model,
			RunnerMode:   res.RunnerMode,
			RunnerDistro: res.RunnerDistro,
			RequestID:    res.RequestID,
		}
		r.LLM = spec.LLMInfo{
			Provider:        string(o.cfg.Backend.Kind()),
			TokensIn:        res.TokensIn,
			TokensOut:       res.TokensOut,
			TimedOut:        res.TimedOut,
			TimeoutSeconds:  int(o.cfg.PhaseTimeout.Seconds()),
		}
		r.Outcome.StderrTail = redactedStderrTail(res.Stderr)
	} else {
		r.Invocation = spec.Invocation{Model: o.cfg.Model}
	}
	return r
}

// fail writes a terminal receipt for every failing path (spec §4.11
// invariant: a receipt is written on every terminal outcome) and returns
// the corresponding ExecutionResult.
func (o *Orchestrator) fail(phase spec.PhaseID, started time.Time, pkt *spec.Packet, res *backend.Result, perr *xerrors.Error, warnings []string) (*ExecutionResult, error) {
	outcome := spec.Outcome{
		ExitCode:    perr.Kind.ExitCode(),
		ErrorKind:   string(perr.Kind),
		ErrorReason: perr.Reason,
		Warnings:    warnings,
	}
	if res != nil {
		outcome.FallbackUsed = res.FallbackUsed
	}

	rcpt := o.buildReceipt(phase, started, pkt, res, nil, outcome)
	receiptPath, werr := o.receipt.Write(rcpt)
	if werr != nil {
		return nil, werr
	}

	o.logAudit(phase, res, perr)

	return &ExecutionResult{
		Phase:    phase,
		Success:  false,
		ExitCode: outcome.ExitCode,
		Error:    perr,
		ReceiptPath: receiptPath,
	}, nil
}

func (o *Orchestrator) logAudit(phase spec.PhaseID, res *backend.Result, perr *xerrors.Error) {
	entry := &auditlog.Entry{Kind: "phase_run", SpecID: o.specID, Phase: phase, Model: o.cfg.Model}
	if res != nil {
		entry.RequestID = res.RequestID
	}
	if perr != nil {
		entry.Error = perr.Error()
	}
	_, _ = o.audit.Append(entry)
}

// redactedStderrTail redacts stderr before truncating it to the
// receipt's 2048-byte cap — spec §3 requires stderr_tail be
// post-redaction, and redaction must run before truncation so a split
// secret can't straddle the cut point unredacted.
func redactedStderrTail(stderr []byte) string {
	const maxTail = 2048
	clean, _ := redact.Redact(stderr)
	if len(clean) <= maxTail {
		return string(clean)
	}
	return string(clean[len(clean)-maxTail:])
}

// highPrioritySkipped reports whether the overflow manifest dropped any
// High-priority candidate — required input the phase cannot proceed
// without, as opposed to overflow among Medium/Low candidates which is a
// benign, expected trimming of optional context (spec §4.8/§6).
func highPrioritySkipped(skipped []spec.SkippedFile) bool {
	for _, s := range skipped {
		if s.Priority == spec.PriorityHigh {
			return true
		}
	}
	return false
}

func artifactRelPath(phase spec.PhaseID) string {
	return "artifacts/" + ArtifactFilename(phase)
}
