package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// RunLock is an advisory lock file preventing two sync runs from racing on
// the same asset cache file. The lock holds the owning PID so a stale lock
// from a crashed process can be identified and removed.
type RunLock struct {
	path string
}

// AcquireRunLock creates the lock file exclusively. It fails if the lock is
// already held, unless the recorded PID no longer refers to a live process,
// in which case the stale lock is replaced.
func AcquireRunLock(path string) (*RunLock, error) {
	if path == "" {
		return nil, errors.New("lock file path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_, writeErr := fmt.Fprintf(file, "%d\n", os.Getpid())
			closeErr := file.Close()
			if writeErr != nil || closeErr != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("writing lock file: %w", errors.Join(writeErr, closeErr))
			}
			return &RunLock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("creating lock file: %w", err)
		}

		pid, readErr := readLockPID(path)
		if readErr == nil && processAlive(pid) {
			return nil, fmt.Errorf("another sync run is in progress (pid %d, lock %s)", pid, path)
		}

		// Stale or unreadable lock - remove and retry once.
		if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
			return nil, fmt.Errorf("removing stale lock file: %w", removeErr)
		}
	}

	return nil, fmt.Errorf("could not acquire lock file %s", path)
}

// Release removes the lock file.
func (l *RunLock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lock file: %w", err)
	}
	return nil
}

// readLockPID parses the PID recorded in the lock file.
func readLockPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// processAlive reports whether a process with the given PID exists. Signal 0
// performs the existence check without delivering a signal.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
