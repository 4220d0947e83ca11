package fileutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// RunLock is a cross-process lock that keeps two pipeline runs from
// rewriting the same cache and context files at once.
type RunLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewRunLock creates a lock backed by <dir>/run.lock.
func NewRunLock(dir string) *RunLock {
	lockPath := filepath.Join(dir, "run.lock")
	return &RunLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns false if another process holds it.
func (l *RunLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	l.locked = acquired
	return acquired, nil
}

// Unlock releases the lock. Safe to call when not held.
func (l *RunLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *RunLock) Path() string {
	return l.path
}
