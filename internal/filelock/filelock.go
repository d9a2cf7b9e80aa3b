// Package filelock guards output files against concurrent writers.
package filelock

import (
	"errors"
	"fmt"
	"os"

	"github.com/gofrs/flock"
)

// LockFileSuffix is appended to a target path to derive its lock file.
const LockFileSuffix = ".lock"

// ErrLocked reports that another process holds the lock.
var ErrLocked = errors.New("file is locked by another process")

// FileLock wraps a flock lock on the lock file derived from a target path.
type FileLock struct {
	flock *flock.Flock
	path  string
}

// NewFileLock creates a lock for target. The lock file is target plus LockFileSuffix.
func NewFileLock(target string) *FileLock {
	lockPath := target + LockFileSuffix
	return &FileLock{flock: flock.New(lockPath), path: lockPath}
}

// Path returns the lock file path.
func (fileLock *FileLock) Path() string {
	return fileLock.path
}

// Acquire takes the lock without blocking and returns ErrLocked when it is held elsewhere.
func (fileLock *FileLock) Acquire() error {
	acquired, err := fileLock.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to try lock on %s: %w", fileLock.path, err)
	}
	if !acquired {
		return fmt.Errorf("%s: %w", fileLock.path, ErrLocked)
	}
	return nil
}

// Release unlocks and removes the lock file.
func (fileLock *FileLock) Release() error {
	if err := fileLock.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", fileLock.path, err)
	}
	if err := os.Remove(fileLock.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file %s: %w", fileLock.path, err)
	}
	return nil
}
