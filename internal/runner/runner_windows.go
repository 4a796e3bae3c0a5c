//go:build windows

package runner

import (
	"os/exec"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// jobHandles tracks the Job Object created for each running cmd so
// terminateTree can find it; Windows has no process-group equivalent, so
// the tree-kill mechanism is a Job Object with
// JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE (spec §4.7) rather than a signal.
// Guarded by jobHandlesMu since concurrent Invoke calls (e.g. separate
// specs processed at once) share this package-level map.
var (
	jobHandlesMu sync.Mutex
	jobHandles   = map[*exec.Cmd]windows.Handle{}
)

// configureProcAttr has nothing to set up front on Windows; the Job
// Object is created and the process assigned to it in afterStart, once
// the PID is known.
func configureProcAttr(cmd *exec.Cmd) {}

// afterStart creates a Job Object with kill-on-close semantics and
// assigns the just-started process to it. There is an unavoidable race
// between Start() and this call in which a child could escape the job if
// it forks immediately, but it closes the window the teacher's
// direct-kill-only approach left open entirely.
func afterStart(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return
	}

	info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{
		BasicLimitInformation: windows.JOBOBJECT_BASIC_LIMIT_INFORMATION{
			LimitFlags: windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE,
		},
	}
	_, _ = windows.SetInformationJobObject(
		job,
		windows.JobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&info)),
		uint32(unsafe.Sizeof(info)),
	)

	proc, err := windows.OpenProcess(windows.PROCESS_ALL_ACCESS, false, uint32(cmd.Process.Pid))
	if err == nil {
		_ = windows.AssignProcessToJobObject(job, proc)
		_ = windows.CloseHandle(proc)
	}

	jobHandlesMu.Lock()
	jobHandles[cmd] = job
	jobHandlesMu.Unlock()
}

// terminateTree closes the Job Object, which kills every process it
// contains, then falls back to a direct process kill if no job was
// registered (e.g. CreateJobObject failed).
func terminateTree(cmd *exec.Cmd) {
	jobHandlesMu.Lock()
	job, ok := jobHandles[cmd]
	if ok {
		delete(jobHandles, cmd)
	}
	jobHandlesMu.Unlock()

	if ok {
		_ = windows.CloseHandle(job)
		return
	}
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// nativeOrWSLDefault resolves ModeAuto on Windows: try Native first; the
// caller falls back to ModeWSL if the Native attempt fails to find the
// backend binary (resolveInvocation itself only picks the first
// candidate — the orchestrator is responsible for the WSL retry since it
// alone can distinguish "binary not found" from a real invocation
// failure worth surfacing).
func nativeOrWSLDefault() Mode { return ModeNative }
