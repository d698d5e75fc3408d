package filelock

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestForDatabaseCreatesParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "history.db")

	lock, err := ForDatabase(dbPath)
	if err != nil {
		t.Fatalf("ForDatabase: %v", err)
	}
	if lock.path != dbPath+".lock" {
		t.Errorf("lock path = %s, want %s", lock.path, dbPath+".lock")
	}
	if _, err := os.Stat(filepath.Dir(dbPath)); err != nil {
		t.Errorf("parent directory not created: %v", err)
	}
}

func TestAcquireRelease(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	lock, err := ForDatabase(dbPath)
	if err != nil {
		t.Fatalf("ForDatabase: %v", err)
	}

	if err := lock.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestTryAcquireContention(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	first, err := ForDatabase(dbPath)
	if err != nil {
		t.Fatalf("ForDatabase: %v", err)
	}
	if err := first.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer first.Release()

	// flock is held per file descriptor, so contention needs a second Lock
	// value with its own descriptor.
	second, err := ForDatabase(dbPath)
	if err != nil {
		t.Fatalf("ForDatabase: %v", err)
	}
	acquired, err := second.TryAcquire()
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	if acquired {
		t.Error("TryAcquire succeeded while the lock was held")
	}
}

func TestAcquireHonorsContext(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	first, err := ForDatabase(dbPath)
	if err != nil {
		t.Fatalf("ForDatabase: %v", err)
	}
	if err := first.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer first.Release()

	second, err := ForDatabase(dbPath)
	if err != nil {
		t.Fatalf("ForDatabase: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := second.Acquire(ctx); err == nil {
		second.Release()
		t.Fatal("Acquire succeeded while the lock was held")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("Acquire did not return promptly after context deadline")
	}
}

func TestWithLockRuns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	lock, err := ForDatabase(dbPath)
	if err != nil {
		t.Fatalf("ForDatabase: %v", err)
	}

	ran := false
	err = lock.WithLock(context.Background(), func() error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("WithLock: %v", err)
	}
	if !ran {
		t.Error("WithLock did not run the function")
	}

	// Lock must be free again afterwards.
	acquired, err := lock.TryAcquire()
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	if !acquired {
		t.Error("lock still held after WithLock returned")
	}
	lock.Release()
}
