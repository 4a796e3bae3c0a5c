//go:build !windows

package lockmgr

import (
	"os"
	"syscall"
)

// processAlive reports whether pid refers to a live process, using the
// conventional Unix liveness probe: signal 0 delivers no signal but still
// fails with ESRCH if the process is gone.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return err == syscall.EPERM
}
