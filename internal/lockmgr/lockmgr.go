// Package lockmgr provides advisory, per-spec exclusive locking so two
// xchecker invocations never run the same phase concurrently against the
// same spec (spec §4.6). It wraps gofrs/flock the same way BeadsLog's
// sync command wraps it around a single ".sync.lock" file, adding
// staleness detection and a forced-takeover path neither of BeadsLog's
// flock call sites needed.
package lockmgr

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"

	"github.com/xchecker-dev/xchecker/internal/atomicio"
)

// Info is the JSON sidecar written next to the lock file recording who
// holds it, so a later invocation can decide whether the holder is dead.
type Info struct {
	PID       int       `json:"pid"`
	Host      string    `json:"host"`
	StartedAt time.Time `json:"started_at"`
}

// Handle represents a held lock; callers must Release it.
type Handle struct {
	flock    *flock.Flock
	infoPath string
}

// Release drops the lock and removes its info sidecar.
func (h *Handle) Release() error {
	err := h.flock.Unlock()
	_ = os.Remove(h.infoPath)
	return err
}

// Manager acquires and inspects the lock for a single spec directory.
type Manager struct {
	lockPath string
	infoPath string
	stale    time.Duration
}

// New builds a Manager for the lock file at lockPath (conventionally
// <spec-dir>/.xchecker.lock), with staleThreshold governing how old a
// dead holder's start time must be before it's eligible for takeover.
func New(lockPath string, staleThreshold time.Duration) *Manager {
	return &Manager{
		lockPath: lockPath,
		infoPath: lockPath + ".info.json",
		stale:    staleThreshold,
	}
}

// Acquire takes the lock. If it's already held by a live process, Acquire
// fails with ErrHeld unless force is true, in which case a stolen lock is
// reported via the returned bool so the caller can surface a
// lock_stolen warning on the receipt.
func (m *Manager) Acquire(force bool) (*Handle, bool, error) {
	lk := flock.New(m.lockPath)
	locked, err := lk.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("lockmgr: acquiring %s: %w", m.lockPath, err)
	}

	if !locked {
		held, infoErr := m.readInfo()
		staleHolder := infoErr == nil && m.isStale(held)

		if !force && !staleHolder {
			if infoErr == nil {
				return nil, false, fmt.Errorf("%w: held by pid %d since %s", ErrHeld, held.PID, held.StartedAt.Format(time.RFC3339))
			}
			return nil, false, fmt.Errorf("%w: held by another process", ErrHeld)
		}

		// Either forced or the holder looks stale/dead: attempt takeover by
		// blocking briefly, since the OS will release the holder's lock as
		// soon as that process exits (or never, if it's genuinely alive —
		// in which case this call simply fails and we report it).
		locked, err = lk.TryLock()
		if err != nil {
			return nil, false, fmt.Errorf("lockmgr: retrying %s: %w", m.lockPath, err)
		}
		if !locked {
			if !force {
				return nil, false, fmt.Errorf("%w: holder not actually dead", ErrHeld)
			}
			return nil, false, fmt.Errorf("%w: force requested but lock still held by a live process", ErrHeld)
		}
		stolen := staleHolder || force
		if err := m.writeInfo(); err != nil {
			_ = lk.Unlock()
			return nil, false, err
		}
		return &Handle{flock: lk, infoPath: m.infoPath}, stolen, nil
	}

	if err := m.writeInfo(); err != nil {
		_ = lk.Unlock()
		return nil, false, err
	}
	return &Handle{flock: lk, infoPath: m.infoPath}, false, nil
}

func (m *Manager) writeInfo() error {
	host, _ := os.Hostname()
	info := Info{PID: os.Getpid(), Host: host, StartedAt: nowFunc()}
	body, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("lockmgr: marshal lock info: %w", err)
	}
	if _, err := atomicio.WriteFile(m.infoPath, body, 0o640); err != nil {
		return fmt.Errorf("lockmgr: write lock info: %w", err)
	}
	return nil
}

func (m *Manager) readInfo() (Info, error) {
	var info Info
	body, err := os.ReadFile(m.infoPath)
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return info, fmt.Errorf("lockmgr: parse lock info: %w", err)
	}
	return info, nil
}

// isStale reports whether the recorded holder is dead, or alive but
// started longer ago than the staleness threshold.
func (m *Manager) isStale(info Info) bool {
	if !processAlive(info.PID) {
		return true
	}
	if m.stale <= 0 {
		return false
	}
	return nowFunc().Sub(info.StartedAt) > m.stale
}

// nowFunc is overridden in tests.
var nowFunc = time.Now
