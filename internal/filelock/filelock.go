// Package filelock coordinates cross-process access to the history database.
// SQLite's busy timeout handles contention inside one process; the flock
// guards against two stagehand processes initializing the same database file
// at once.
package filelock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// retryDelay is the poll interval while waiting for a held lock.
const retryDelay = 50 * time.Millisecond

// Lock is an advisory cross-process lock backed by a sidecar lock file.
type Lock struct {
	flock *flock.Flock
	path  string
}

// ForDatabase creates a lock guarding the database at dbPath, using a
// sidecar file next to it. The parent directory is created if missing.
func ForDatabase(dbPath string) (*Lock, error) {
	lockPath := dbPath + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	return &Lock{flock: flock.New(lockPath), path: lockPath}, nil
}

// Acquire blocks until the lock is held or the context is done.
func (l *Lock) Acquire(ctx context.Context) error {
	acquired, err := l.flock.TryLockContext(ctx, retryDelay)
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", l.path, err)
	}
	if !acquired {
		return fmt.Errorf("acquire lock %s: context done", l.path)
	}
	return nil
}

// TryAcquire attempts to take the lock without blocking.
func (l *Lock) TryAcquire() (bool, error) {
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("try lock %s: %w", l.path, err)
	}
	return acquired, nil
}

// Release lets the lock go. Releasing an unheld lock is a no-op.
func (l *Lock) Release() error {
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}

// WithLock runs fn while holding the lock.
func (l *Lock) WithLock(ctx context.Context, fn func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}
