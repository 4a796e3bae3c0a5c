//go:build windows

package lockmgr

import "golang.org/x/sys/windows"

// processAlive reports whether pid refers to a live process by opening it
// and checking its exit code, since Windows' os.FindProcess never fails
// just because the PID is gone.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	return code == uint32(windows.STILL_ACTIVE)
}
