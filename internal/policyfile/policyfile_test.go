package policyfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDuration_ParsesAllUnits(t *testing.T) {
	cases := map[string]time.Duration{
		"90s":  90 * time.Second,
		"30m":  30 * time.Minute,
		"24h":  24 * time.Hour,
		"7d":   7 * 24 * time.Hour,
		"2w":   2 * 7 * 24 * time.Hour,
		"1.5h": 90 * time.Minute,
	}
	for in, want := range cases {
		got, err := ParseDuration(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
}

func TestParseDuration_RejectsUnknownUnit(t *testing.T) {
	_, err := ParseDuration("5x")
	require.Error(t, err)
}

func TestParsePhase_CaseInsensitive(t *testing.T) {
	p, err := ParsePhase("REVIEW")
	require.NoError(t, err)
	require.Equal(t, "review", string(p))
}

func TestParsePhase_RejectsUnknown(t *testing.T) {
	_, err := ParsePhase("bogus")
	require.Error(t, err)
}

func TestResolve_ExplicitPathMustExist(t *testing.T) {
	_, _, err := Resolve(filepath.Join(t.TempDir(), "missing.toml"), t.TempDir())
	require.Error(t, err)
}

func TestResolve_FindsLocalXcheckerDir(t *testing.T) {
	dir := t.TempDir()
	policyDir := filepath.Join(dir, ".xchecker")
	require.NoError(t, os.MkdirAll(policyDir, 0o755))
	policyPath := filepath.Join(policyDir, "policy.toml")
	require.NoError(t, os.WriteFile(policyPath, []byte("fail_on_pending_fixups = true\n"), 0o644))

	found, ok, err := Resolve("", dir)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, policyPath, found)
}

func TestResolve_ReturnsNotFoundWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	_, ok, err := Resolve("", dir)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLoad_ParsesPolicyAndMaxPhaseAge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.toml")
	content := "min_phase = \"design\"\nfail_on_pending_fixups = true\nmax_phase_age = \"7d\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	policy, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, policy.MinPhase)
	require.Equal(t, "design", string(*policy.MinPhase))
	require.True(t, policy.FailOnPendingFixups)
	require.NotNil(t, policy.MaxPhaseAge)
	require.Equal(t, 7*24*time.Hour, *policy.MaxPhaseAge)
}

func TestLoad_RejectsUnknownMinPhase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.toml")
	require.NoError(t, os.WriteFile(path, []byte("min_phase = \"bogus\"\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
