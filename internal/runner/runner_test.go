package runner

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseStreamJSON_AssemblesDeltasAndUsage(t *testing.T) {
	stdout := []byte(
		`{"type":"conversation_start"}` + "\n" +
			`{"type":"message_start"}` + "\n" +
			`{"type":"content_block_delta","delta":{"text":"Hello, "}}` + "\n" +
			`{"type":"content_block_delta","delta":{"text":"world."}}` + "\n" +
			`{"type":"message_stop","message":{"usage":{"input_tokens":42,"output_tokens":7}}}` + "\n")

	text, usage, fallback, warn := parseStreamJSON(stdout)
	require.False(t, fallback)
	require.Empty(t, warn)
	require.Equal(t, "Hello, world.", text)
	require.Equal(t, int64(42), usage.InputTokens)
	require.Equal(t, int64(7), usage.OutputTokens)
}

func TestParseStreamJSON_MalformedLineFallsBack(t *testing.T) {
	stdout := []byte("not json at all\n")
	text, _, fallback, warn := parseStreamJSON(stdout)
	require.True(t, fallback)
	require.NotEmpty(t, warn)
	require.Equal(t, "not json at all\n", text)
}

func TestParseStreamJSON_NoRecognizedEventsFallsBack(t *testing.T) {
	stdout := []byte(`{"type":"unknown_event"}` + "\n")
	_, _, fallback, _ := parseStreamJSON(stdout)
	require.True(t, fallback)
}

func TestMergeEnv_AdditionsOverrideInherited(t *testing.T) {
	env := mergeEnv(map[string]string{"XCHECKER_TEST_VAR": "override"})
	found := false
	for _, kv := range env {
		if kv == "XCHECKER_TEST_VAR=override" {
			found = true
		}
	}
	require.True(t, found)
}

func TestInvoke_CapturesStdoutAndExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a Unix shell")
	}
	r := New()
	cfg := Config{
		Command: "/bin/sh",
		Args:    []string{"-c", `echo '{"type":"content_block_delta","delta":{"text":"ok"}}'`},
		Timeout: 5 * time.Second,
	}
	res, err := r.Invoke(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)
	require.False(t, res.TimedOut)
}

func TestInvoke_TimeoutKillsProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a Unix shell")
	}
	r := New()
	cfg := Config{
		Command: "/bin/sh",
		Args:    []string{"-c", "sleep 30"},
		Timeout: 200 * time.Millisecond,
	}
	res, err := r.Invoke(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.True(t, res.TimedOut)
}
