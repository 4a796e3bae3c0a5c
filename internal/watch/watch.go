// Package watch provides a debounced filesystem watcher used by the
// "resume --watch" CLI mode: it re-triggers a phase run whenever the
// repository's selected source files change, instead of requiring the
// caller to re-invoke the command by hand.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Debouncer collapses bursts of Trigger calls into a single invocation
// of onFire, fired after the quiet period has elapsed.
type Debouncer struct {
	mu     sync.Mutex
	delay  time.Duration
	onFire func()
	timer  *time.Timer
}

// NewDebouncer returns a Debouncer that calls onFire once delay has
// passed since the most recent Trigger.
func NewDebouncer(delay time.Duration, onFire func()) *Debouncer {
	return &Debouncer{delay: delay, onFire: onFire}
}

// Trigger schedules (or reschedules) the debounced callback.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.onFire)
}

// Cancel stops any pending callback.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

// RepoWatcher watches a repository root for file changes and debounces
// them into a single onChanged call. Falls back to a polling ticker if
// fsnotify can't be initialized (e.g. inotify watch limits exhausted),
// mirroring the teacher's watcher/polling fallback.
type RepoWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	root      string
	polling   bool
	interval  time.Duration
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a RepoWatcher rooted at root. onChanged fires at most once
// per debounce window (500ms) after one or more files under root change.
func New(root string, onChanged func()) (*RepoWatcher, error) {
	rw := &RepoWatcher{
		root:      root,
		debouncer: NewDebouncer(500*time.Millisecond, onChanged),
		interval:  5 * time.Second,
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		rw.polling = true
		return rw, nil
	}
	rw.watcher = w

	if err := addTree(w, root); err != nil {
		_ = w.Close()
		rw.watcher = nil
		rw.polling = true
		return rw, nil
	}
	return rw, nil
}

// addTree registers root and its first-level subdirectories; xchecker
// repos of interest (spec home, docs/) are shallow, so a full recursive
// walk is unnecessary and this keeps watch-descriptor usage bounded.
func addTree(w *fsnotify.Watcher, root string) error {
	if err := w.Add(root); err != nil {
		return fmt.Errorf("watch: add root: %w", err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		if e.IsDir() && e.Name() != ".git" {
			_ = w.Add(filepath.Join(root, e.Name()))
		}
	}
	return nil
}

// Start begins watching in the background until ctx is cancelled or
// Close is called.
func (rw *RepoWatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	rw.cancel = cancel

	if rw.polling {
		rw.startPolling(ctx)
		return
	}

	rw.wg.Add(1)
	go func() {
		defer rw.wg.Done()
		for {
			select {
			case _, ok := <-rw.watcher.Events:
				if !ok {
					return
				}
				rw.debouncer.Trigger()
			case _, ok := <-rw.watcher.Errors:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (rw *RepoWatcher) startPolling(ctx context.Context) {
	rw.wg.Add(1)
	go func() {
		defer rw.wg.Done()
		ticker := time.NewTicker(rw.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rw.debouncer.Trigger()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close stops the watcher and releases its resources.
func (rw *RepoWatcher) Close() error {
	rw.debouncer.Cancel()
	if rw.cancel != nil {
		rw.cancel()
	}
	rw.wg.Wait()
	if rw.watcher != nil {
		return rw.watcher.Close()
	}
	return nil
}
