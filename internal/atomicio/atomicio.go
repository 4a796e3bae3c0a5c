// Package atomicio writes files via a temp-file-then-rename sequence so
// readers never observe a partially written artifact, receipt, or
// manifest.
package atomicio

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Result reports non-fatal detail about how the write completed.
type Result struct {
	// RenameRetryCount is non-zero only on Windows when the rename had
	// to be retried past a transient sharing violation.
	RenameRetryCount int
}

// WriteFile writes data to path atomically: it creates a sibling temp
// file in the same directory, writes and fsyncs it, then renames it onto
// path. On any failure the temp file is removed.
func WriteFile(path string, data []byte, perm os.FileMode) (Result, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return Result{}, fmt.Errorf("atomicio: ensure parent dir %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp.*")
	if err != nil {
		return Result{}, fmt.Errorf("atomicio: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return Result{}, fmt.Errorf("atomicio: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return Result{}, fmt.Errorf("atomicio: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return Result{}, fmt.Errorf("atomicio: close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		_ = os.Remove(tmpPath)
		return Result{}, fmt.Errorf("atomicio: set permissions: %w", err)
	}

	res, err := renameWithRetry(tmpPath, path)
	if err != nil {
		_ = os.Remove(tmpPath)
		return res, fmt.Errorf("atomicio: rename temp file onto %q: %w", path, err)
	}
	return res, nil
}

// renameWithRetry renames src onto dst. On POSIX this is a single atomic
// rename. On Windows, a concurrent reader can hold a sharing lock on dst
// briefly; retry a bounded number of times with exponential backoff
// before giving up, recording how many retries fired.
func renameWithRetry(src, dst string) (Result, error) {
	if runtime.GOOS != "windows" {
		return Result{}, os.Rename(src, dst)
	}

	const maxAttempts = 5
	backoff := 10 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}
		if err := os.Rename(src, dst); err != nil {
			lastErr = err
			continue
		}
		return Result{RenameRetryCount: attempt}, nil
	}
	return Result{RenameRetryCount: maxAttempts}, lastErr
}
