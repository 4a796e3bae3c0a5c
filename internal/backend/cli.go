package backend

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/xchecker-dev/xchecker/internal/runner"
)

// CLIConfig configures the CLI backend's invocation of the claude binary.
type CLIConfig struct {
	Command   string
	Mode      runner.Mode
	WSLDistro string
	BufferCap int
}

// CLIBackend spawns the claude CLI subprocess per phase, per spec §4.7/§6:
// argv is [claude, --output-format, stream-json, --model, <model>,
// --max-turns, <N>], stdin carries the packet bytes, stdout is parsed as
// stream-json by the Runner.
type CLIBackend struct {
	cfg    CLIConfig
	runner *runner.Runner
}

// NewCLIBackend builds a CLIBackend; a zero CLIConfig defaults Command to
// "claude" and Mode to Auto.
func NewCLIBackend(cfg CLIConfig) *CLIBackend {
	if cfg.Command == "" {
		cfg.Command = "claude"
	}
	if cfg.Mode == "" {
		cfg.Mode = runner.ModeAuto
	}
	return &CLIBackend{cfg: cfg, runner: runner.New()}
}

func (b *CLIBackend) Kind() Kind { return KindCLI }

func (b *CLIBackend) Invoke(ctx context.Context, inv Invocation) (*Result, error) {
	args := []string{"--output-format", "stream-json", "--model", inv.Model}
	if inv.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(inv.MaxTurns))
	}

	cfg := runner.Config{
		Command:   b.cfg.Command,
		Args:      args,
		Env:       inv.Env,
		Mode:      b.cfg.Mode,
		WSLDistro: b.cfg.WSLDistro,
		Timeout:   inv.Timeout,
		BufferCap: b.cfg.BufferCap,
	}

	requestID := uuid.NewString()
	res, err := b.runner.Invoke(ctx, cfg, inv.Prompt)
	if err != nil {
		return nil, fmt.Errorf("backend: cli invoke: %w", err)
	}

	return &Result{
		ExitCode:        res.ExitCode,
		AssembledText:   res.AssembledText,
		TokensIn:        res.TokensIn,
		TokensOut:       res.TokensOut,
		TimedOut:        res.TimedOut,
		FallbackUsed:    res.FallbackUsed,
		Warnings:        res.Warnings,
		RunnerMode:      res.RunnerMode,
		RunnerDistro:    res.RunnerDistro,
		RequestID:       requestID,
		Stdout:          res.Stdout,
		Stderr:          res.Stderr,
		StdoutTruncated: res.StdoutTruncated,
		StderrTruncated: res.StderrTruncated,
	}, nil
}
