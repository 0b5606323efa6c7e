package envconfig

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTryLock_AcquireAndRelease(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	unlock, err := s.TryLock()
	if err != nil {
		t.Fatalf("TryLock() error = %v", err)
	}
	lockPath := filepath.Join(dir, lockFileName)
	if _, statErr := os.Stat(lockPath); statErr != nil {
		t.Errorf("lock file missing while held: %v", statErr)
	}
	unlock()
	if _, statErr := os.Stat(lockPath); !os.IsNotExist(statErr) {
		t.Errorf("lock file remains after release: %v", statErr)
	}
}

func TestTryLock_HeldReturnsErrLocked(t *testing.T) {
	s := NewStore(t.TempDir())

	unlock, err := s.TryLock()
	if err != nil {
		t.Fatalf("first TryLock() error = %v", err)
	}
	defer unlock()

	if _, err := s.TryLock(); !errors.Is(err, ErrLocked) {
		t.Errorf("second TryLock() error = %v, want ErrLocked", err)
	}
}

func TestTryLock_StaleLockTakenOver(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	// A PID that cannot exist marks the lock as stale.
	stale := filepath.Join(dir, lockFileName)
	if err := os.WriteFile(stale, []byte("4194399"), lockFileMode); err != nil {
		t.Fatalf("seeding stale lock: %v", err)
	}

	unlock, err := s.TryLock()
	if err != nil {
		t.Fatalf("TryLock() error = %v, want takeover of stale lock", err)
	}
	unlock()
}

func TestLock_BlocksUntilReleased(t *testing.T) {
	s := NewStore(t.TempDir())

	unlock, err := s.TryLock()
	if err != nil {
		t.Fatalf("TryLock() error = %v", err)
	}

	acquired := make(chan error, 1)
	go func() {
		u, lockErr := s.Lock(context.Background())
		if lockErr == nil {
			u()
		}
		acquired <- lockErr
	}()

	select {
	case <-acquired:
		t.Fatal("Lock() returned while lock still held")
	case <-time.After(150 * time.Millisecond):
	}

	unlock()
	select {
	case err := <-acquired:
		if err != nil {
			t.Errorf("Lock() error = %v after release", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Lock() did not acquire after release")
	}
}

func TestLock_ContextCancelled(t *testing.T) {
	s := NewStore(t.TempDir())

	unlock, err := s.TryLock()
	if err != nil {
		t.Fatalf("TryLock() error = %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if _, err := s.Lock(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Lock() error = %v, want context.DeadlineExceeded", err)
	}
}
