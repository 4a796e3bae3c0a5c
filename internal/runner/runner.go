// Package runner spawns the backend CLI, streams the packet to its stdin,
// captures bounded stdout/stderr, and guarantees the whole process tree
// dies on timeout or cancellation (spec §4.7). The concurrent-pipe-drain
// and context-timeout shape follows the teacher's hook runner
// (internal/hooks/hooks_unix.go / hooks_windows.go); process-group
// termination is generalized here to the SIGTERM-then-SIGKILL escalation
// the spec requires instead of the teacher's immediate SIGKILL.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/xchecker-dev/xchecker/internal/ringbuf"
)

// Mode selects how the backend CLI is invoked.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeNative Mode = "native"
	ModeWSL    Mode = "wsl"
)

// Config describes one invocation of the backend CLI.
type Config struct {
	Command    string            // backend executable, e.g. "claude"
	Args       []string          // discrete argv, never shell-interpreted
	Env        map[string]string // additions layered on top of the inherited environment
	Mode       Mode
	WSLDistro  string
	Timeout    time.Duration
	BufferCap  int // RingBuffer capacity for stdout/stderr; 0 uses DefaultBufferCap
}

// DefaultBufferCap bounds how much stdout/stderr is retained in memory.
const DefaultBufferCap = 1 << 20 // 1 MiB

// postKillDrain is how long stdout/stderr are drained after a kill to
// capture any trailing output already in flight (spec §4.7).
const postKillDrain = 100 * time.Millisecond

// tokenUsage carries the token counts parsed out of stream-json events.
type tokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// Result is everything the orchestrator needs to build a receipt.
type Result struct {
	ExitCode          int
	Stdout            []byte
	Stderr            []byte
	StdoutTruncated   bool
	StderrTruncated   bool
	StdoutBytesTotal  int64
	StderrBytesTotal  int64
	TimedOut          bool
	RunnerMode        string
	RunnerDistro      string
	AssembledText     string
	TokensIn          int64
	TokensOut         int64
	FallbackUsed      bool
	Warnings          []string
}

// Runner spawns and supervises a single backend invocation.
type Runner struct{}

// New returns a Runner. It holds no state; every invocation is independent.
func New() *Runner { return &Runner{} }

// Invoke spawns the configured backend, writes stdin (already redacted),
// closes it, and blocks until the process exits, the context is
// cancelled, or cfg.Timeout elapses.
func (r *Runner) Invoke(ctx context.Context, cfg Config, stdin []byte) (*Result, error) {
	mode, distro, command, args := resolveInvocation(cfg)

	runCtx := ctx
	var cancel context.CancelFunc
	if cfg.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	cmd := exec.Command(command, args...)
	cmd.Env = mergeEnv(cfg.Env)
	configureProcAttr(cmd)

	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("runner: stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("runner: stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("runner: stderr pipe: %w", err)
	}

	bufCap := cfg.BufferCap
	if bufCap <= 0 {
		bufCap = DefaultBufferCap
	}
	stdout := ringbuf.New(bufCap)
	stderr := ringbuf.New(bufCap)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("runner: start %s: %w", command, err)
	}
	afterStart(cmd)

	go func() {
		_, _ = stdinPipe.Write(stdin)
		_ = stdinPipe.Close()
	}()

	drainDone := make(chan struct{}, 2)
	go func() { drainInto(stdoutPipe, stdout); drainDone <- struct{}{} }()
	go func() { drainInto(stderrPipe, stderr); drainDone <- struct{}{} }()

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	var timedOut bool
	var waitErr error

	select {
	case <-runCtx.Done():
		timedOut = true
		terminateTree(cmd)
		select {
		case waitErr = <-waitDone:
		case <-time.After(postKillDrain + time.Second):
		}
	case waitErr = <-waitDone:
	}

	if timedOut {
		deadline := time.After(postKillDrain)
		drained := 0
		for drained < 2 {
			select {
			case <-drainDone:
				drained++
			case <-deadline:
				drained = 2
			}
		}
	} else {
		<-drainDone
		<-drainDone
	}

	exitCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else if timedOut {
			exitCode = -1
		} else {
			return nil, fmt.Errorf("runner: wait: %w", waitErr)
		}
	}

	res := &Result{
		ExitCode:         exitCode,
		Stdout:           stdout.Bytes(),
		Stderr:           stderr.Bytes(),
		StdoutTruncated:  stdout.WasTruncated(),
		StderrTruncated:  stderr.WasTruncated(),
		StdoutBytesTotal: stdout.TotalWritten(),
		StderrBytesTotal: stderr.TotalWritten(),
		TimedOut:         timedOut,
		RunnerMode:       string(mode),
		RunnerDistro:     distro,
	}

	text, usage, fallback, warn := parseStreamJSON(res.Stdout)
	res.AssembledText = text
	res.TokensIn = usage.InputTokens
	res.TokensOut = usage.OutputTokens
	res.FallbackUsed = fallback
	if warn != "" {
		res.Warnings = append(res.Warnings, warn)
	}

	return res, nil
}

// resolveInvocation turns a Config's Mode/Command into the actual argv to
// exec: Native execs the command directly; WSL prefixes it with
// "wsl.exe -d <distro> --exec <command>"; Auto resolves to Native on
// non-Windows and to Native-then-WSL on Windows (the WSL fallback is
// selected by the caller retrying with ModeWSL after a Native failure,
// since only the caller knows whether the Native attempt's failure was
// "binary not found" versus something else worth surfacing directly).
func resolveInvocation(cfg Config) (mode Mode, distro, command string, args []string) {
	mode = cfg.Mode
	if mode == "" {
		mode = ModeAuto
	}
	if mode == ModeAuto {
		mode = nativeOrWSLDefault()
	}
	if mode == ModeWSL {
		wslArgs := append([]string{"-d", cfg.WSLDistro, "--exec", cfg.Command}, cfg.Args...)
		return ModeWSL, cfg.WSLDistro, "wsl.exe", wslArgs
	}
	return ModeNative, "", cfg.Command, cfg.Args
}

// mergeEnv layers cfg's explicit additions on top of the inherited
// environment; additions win on key collision.
func mergeEnv(additions map[string]string) []string {
	base := os.Environ()
	if len(additions) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(additions))
	skip := make(map[string]bool, len(additions))
	for k := range additions {
		skip[k] = true
	}
	for _, kv := range base {
		if idx := strings.IndexByte(kv, '='); idx >= 0 && skip[kv[:idx]] {
			continue
		}
		out = append(out, kv)
	}
	for k, v := range additions {
		out = append(out, k+"="+v)
	}
	return out
}

func drainInto(r io.Reader, buf *ringbuf.Buffer) {
	br := bufio.NewReaderSize(r, 32*1024)
	tmp := make([]byte, 32*1024)
	for {
		n, err := br.Read(tmp)
		if n > 0 {
			_, _ = buf.Write(tmp[:n])
		}
		if err != nil {
			return
		}
	}
}

// streamEvent mirrors the subset of stream-json event fields xchecker
// cares about; unknown fields and event types are ignored.
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Text string `json:"text"`
	} `json:"delta"`
	Message struct {
		Usage struct {
			InputTokens  int64 `json:"input_tokens"`
			OutputTokens int64 `json:"output_tokens"`
		} `json:"usage"`
	} `json:"message"`
}

// parseStreamJSON assembles the response text and token usage from a
// stream of newline-delimited stream-json events. On any malformed line
// it falls back to returning the raw stdout verbatim with fallback=true.
func parseStreamJSON(stdout []byte) (text string, usage tokenUsage, fallback bool, warning string) {
	var sb strings.Builder
	scanner := bufio.NewScanner(bytes.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	sawEvent := false
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev streamEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return string(stdout), tokenUsage{}, true, "malformed stream-json event, returning raw stdout"
		}
		switch ev.Type {
		case "conversation_start", "message_start":
			sawEvent = true
		case "content_block_delta":
			sawEvent = true
			sb.WriteString(ev.Delta.Text)
		case "message_stop":
			sawEvent = true
			if ev.Message.Usage.InputTokens > 0 || ev.Message.Usage.OutputTokens > 0 {
				usage.InputTokens = ev.Message.Usage.InputTokens
				usage.OutputTokens = ev.Message.Usage.OutputTokens
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return string(stdout), tokenUsage{}, true, "stream-json scan error, returning raw stdout"
	}
	if !sawEvent {
		return string(stdout), tokenUsage{}, true, "no recognized stream-json events, returning raw stdout"
	}
	return sb.String(), usage, false, ""
}
