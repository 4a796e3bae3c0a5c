package lockmgr

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func currentPIDForTest() int { return os.Getpid() }

func TestManager_AcquireAndRelease(t *testing.T) {
	dir := t.TempDir()
	m := New(filepath.Join(dir, "spec.lock"), time.Hour)

	h, stolen, err := m.Acquire(false)
	require.NoError(t, err)
	require.False(t, stolen)
	require.NoError(t, h.Release())
}

func TestManager_SecondAcquireFailsWhileHeld(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "spec.lock")
	m1 := New(lockPath, time.Hour)
	m2 := New(lockPath, time.Hour)

	h1, _, err := m1.Acquire(false)
	require.NoError(t, err)
	defer h1.Release()

	_, _, err = m2.Acquire(false)
	require.ErrorIs(t, err, ErrHeld)
}

func TestManager_ReacquireAfterReleaseSucceedsCleanly(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "spec.lock")
	m1 := New(lockPath, time.Hour)
	m2 := New(lockPath, time.Hour)

	h1, _, err := m1.Acquire(false)
	require.NoError(t, err)
	require.NoError(t, h1.Release())

	h2, stolen, err := m2.Acquire(false)
	require.NoError(t, err)
	require.False(t, stolen)
	require.NoError(t, h2.Release())
}

func TestManager_WriteAndReadInfoRoundTrips(t *testing.T) {
	dir := t.TempDir()
	m := New(filepath.Join(dir, "spec.lock"), time.Hour)

	require.NoError(t, m.writeInfo())
	info, err := m.readInfo()
	require.NoError(t, err)
	require.Greater(t, info.PID, 0)
	require.WithinDuration(t, time.Now(), info.StartedAt, 5*time.Second)
}

func TestManager_IsStale_DeadPIDIsStaleRegardlessOfAge(t *testing.T) {
	m := New("/unused", time.Hour)
	require.True(t, m.isStale(Info{PID: 999999999, StartedAt: time.Now()}))
}

func TestManager_IsStale_LiveRecentHolderIsNotStale(t *testing.T) {
	m := New("/unused", time.Hour)
	require.False(t, m.isStale(Info{PID: currentPIDForTest(), StartedAt: time.Now()}))
}

func TestManager_IsStale_LiveButOverAgeThresholdIsStale(t *testing.T) {
	m := New("/unused", time.Hour)
	old := time.Now().Add(-2 * time.Hour)
	require.True(t, m.isStale(Info{PID: currentPIDForTest(), StartedAt: old}))
}

func TestManager_IsStale_ZeroThresholdDisablesAgeCheck(t *testing.T) {
	m := New("/unused", 0)
	old := time.Now().Add(-999 * time.Hour)
	require.False(t, m.isStale(Info{PID: currentPIDForTest(), StartedAt: old}))
}
