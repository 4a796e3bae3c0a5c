// Package backend abstracts "how xchecker talks to the LLM" behind one
// interface with two implementations: CLIBackend spawns the claude CLI
// subprocess (spec §4.7/§6, the only backend spec.md describes), and
// APIBackend calls the Anthropic API directly. The split is grounded on
// the original Rust xchecker-llm crate's LlmBackend trait
// (Controlled/ExternalTool execution strategies, provider-agnostic
// LlmInvocation/LlmResult) which spec.md's distillation collapsed down
// to just the CLI path.
package backend

import (
	"context"
	"os"
	"time"

	"github.com/xchecker-dev/xchecker/internal/spec"
)

// Kind names which backend implementation is in use.
type Kind string

const (
	KindCLI Kind = "cli"
	KindAPI Kind = "api"
)

// ExecutionStrategy mirrors the original's LlmBackend execution modes.
// Only Controlled is implemented — ExternalTool (delegating turn control
// to an external harness) is modeled for forward compatibility only,
// matching the original's "not supported" note for that mode.
type ExecutionStrategy string

const (
	StrategyControlled   ExecutionStrategy = "controlled"
	StrategyExternalTool ExecutionStrategy = "external_tool"
)

// EnvVar selects the backend; "api" selects APIBackend, anything else
// (including unset) selects CLIBackend.
const EnvVar = "XCHECKER_BACKEND"

// Invocation is a single phase's backend call.
type Invocation struct {
	Phase    spec.PhaseID
	Model    string
	Prompt   []byte
	Timeout  time.Duration
	MaxTurns int
	Env      map[string]string
	Strategy ExecutionStrategy
}

// Result is the backend-agnostic outcome of one Invocation, shaped to
// feed directly into a receipt's Invocation/LLM/Outcome sections.
type Result struct {
	ExitCode        int
	AssembledText   string
	TokensIn        int64
	TokensOut       int64
	TimedOut        bool
	FallbackUsed    bool
	Warnings        []string
	RunnerMode      string
	RunnerDistro    string
	RequestID       string
	Stdout          []byte
	Stderr          []byte
	StdoutTruncated bool
	StderrTruncated bool
}

// Backend invokes the LLM for one phase.
type Backend interface {
	Kind() Kind
	Invoke(ctx context.Context, inv Invocation) (*Result, error)
}

// FromEnv selects a Backend per the XCHECKER_BACKEND environment
// variable, defaulting to the CLI backend.
func FromEnv() (Backend, error) {
	if os.Getenv(EnvVar) == "api" {
		return NewAPIBackend("")
	}
	return NewCLIBackend(CLIConfig{}), nil
}
