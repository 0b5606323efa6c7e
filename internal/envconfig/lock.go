package envconfig

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Lock file settings. The lock serializes logical read-modify-write
// sequences (load, mutate, save, restart) across processes; individual
// file writes are already atomic without it.
const (
	lockFileName = ".z2m-manager.lock"
	lockFileMode = 0o600

	// lockPollInterval is how often a blocked Lock retries acquisition.
	lockPollInterval = 100 * time.Millisecond

	// maxLockTakeoverRetries bounds stale-lock removal races.
	maxLockTakeoverRetries = 3
)

// Lock acquires the exclusive configuration lock, blocking until it is
// acquired or ctx is done. A lock file left behind by a dead process is
// taken over. The returned Unlock must be called on every exit path.
func (s *Store) Lock(ctx context.Context) (unlock func(), err error) {
	path := filepath.Join(s.baseDir, lockFileName)

	for {
		acquired, err := tryAcquireLock(path, 0)
		if err != nil {
			return nil, err
		}
		if acquired {
			return func() { os.Remove(path) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", ErrLocked, path, ctx.Err())
		case <-time.After(lockPollInterval):
		}
	}
}

// TryLock is the non-blocking variant: it returns ErrLocked immediately
// when another live process holds the lock.
func (s *Store) TryLock() (unlock func(), err error) {
	path := filepath.Join(s.baseDir, lockFileName)
	acquired, err := tryAcquireLock(path, 0)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return func() { os.Remove(path) }, nil
}

// tryAcquireLock attempts one O_EXCL creation of the lock file with our
// PID. A stale file (holder dead or unreadable) is removed and the attempt
// retried a bounded number of times.
func tryAcquireLock(path string, attempt int) (bool, error) {
	if attempt >= maxLockTakeoverRetries {
		return false, fmt.Errorf("envconfig: lock takeover failed after %d attempts: %s", maxLockTakeoverRetries, path)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, lockFileMode)
	if err == nil {
		_, writeErr := fmt.Fprintf(f, "%d\n", os.Getpid())
		closeErr := f.Close()
		if writeErr != nil || closeErr != nil {
			os.Remove(path)
			return false, fmt.Errorf("envconfig: writing lock file %s: %w", path, firstErr(writeErr, closeErr))
		}
		return true, nil
	}
	if !os.IsExist(err) {
		return false, fmt.Errorf("envconfig: creating lock file %s: %w", path, err)
	}

	data, readErr := os.ReadFile(path)
	if readErr != nil {
		os.Remove(path)
		return tryAcquireLock(path, attempt+1)
	}
	pid, parseErr := strconv.Atoi(strings.TrimSpace(string(data)))
	if parseErr != nil || !processAlive(pid) {
		os.Remove(path)
		return tryAcquireLock(path, attempt+1)
	}

	// Held by a live process.
	return false, nil
}

// processAlive checks liveness with signal 0.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
