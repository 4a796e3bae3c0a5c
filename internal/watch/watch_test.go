package watch

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDebouncer_CollapsesBurst(t *testing.T) {
	var fires int32
	d := NewDebouncer(20*time.Millisecond, func() {
		atomic.AddInt32(&fires, 1)
	})

	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&fires) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestDebouncer_Cancel(t *testing.T) {
	var fires int32
	d := NewDebouncer(10*time.Millisecond, func() {
		atomic.AddInt32(&fires, 1)
	})

	d.Trigger()
	d.Cancel()

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(0), atomic.LoadInt32(&fires))
}

func TestNew_FallsBackWhenRootMissing(t *testing.T) {
	// A nonexistent root fails fsnotify's Add call, so New should fall
	// back to polling mode rather than returning an error.
	rw, err := New("/nonexistent/xchecker-watch-test-root", func() {})
	require.NoError(t, err)
	require.True(t, rw.polling)
	require.NoError(t, rw.Close())
}
