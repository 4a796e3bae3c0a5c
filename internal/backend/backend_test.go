package backend

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromEnv_DefaultsToCLI(t *testing.T) {
	t.Setenv(EnvVar, "")
	b, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, KindCLI, b.Kind())
}

func TestFromEnv_APISelectsAPIBackendAndRequiresKey(t *testing.T) {
	t.Setenv(EnvVar, "api")
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := FromEnv()
	require.ErrorIs(t, err, ErrAPIKeyRequired)
}

func TestFromEnv_APIWithKeySucceeds(t *testing.T) {
	t.Setenv(EnvVar, "api")
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	b, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, KindAPI, b.Kind())
}

func TestNewAPIBackend_EnvKeyTakesPrecedenceOverArgument(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-key")
	b, err := NewAPIBackend("explicit-key")
	require.NoError(t, err)
	require.NotNil(t, b)
}

func TestNewAPIBackend_ErrorsWithoutAnyKey(t *testing.T) {
	require.NoError(t, os.Unsetenv("ANTHROPIC_API_KEY"))
	_, err := NewAPIBackend("")
	require.ErrorIs(t, err, ErrAPIKeyRequired)
}

func TestIsRetryable_ContextErrorsAreNotRetryable(t *testing.T) {
	require.False(t, isRetryable(context.Canceled))
	require.False(t, isRetryable(context.DeadlineExceeded))
	require.False(t, isRetryable(nil))
}

func TestIsRetryable_UnknownErrorIsNotRetryable(t *testing.T) {
	require.False(t, isRetryable(errors.New("boom")))
}

func TestNewCLIBackend_DefaultsCommandAndMode(t *testing.T) {
	b := NewCLIBackend(CLIConfig{})
	require.Equal(t, KindCLI, b.Kind())
	require.Equal(t, "claude", b.cfg.Command)
}
