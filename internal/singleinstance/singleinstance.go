// Package singleinstance elects the primary launcher process with an
// advisory, exclusive, non-blocking lock on a per-user lock file.
package singleinstance

import (
	"errors"
	"io/fs"
	"os"

	"github.com/gofrs/flock"
)

// Lock is a held instance lock. The kernel drops it when the process
// exits, so callers normally never release it explicitly.
type Lock struct {
	lock *flock.Flock
}

// Acquire creates the lock file if needed and tries to take the
// exclusive lock without waiting. It returns ErrAlreadyRunning when
// another process holds it, *LockFileError when the file cannot be
// opened and *LockError for any other lock failure.
func Acquire(path string) (*Lock, error) {
	fl := flock.New(path,
		flock.SetFlag(os.O_CREATE|os.O_RDWR),
		flock.SetPermissions(0o600),
	)
	locked, err := fl.TryLock()
	if err != nil {
		_ = fl.Close()
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil, &LockFileError{Path: path, Err: err}
		}
		return nil, &LockError{Path: path, Err: err}
	}
	if !locked {
		_ = fl.Close()
		return nil, ErrAlreadyRunning
	}

	return &Lock{lock: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	if l == nil || l.lock == nil {
		return ""
	}
	return l.lock.Path()
}

// Release drops the lock. The lock file is left in place for the next
// launch. Calling Release more than once is safe.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	path := l.lock.Path()
	err := l.lock.Close()
	l.lock = nil
	if err != nil {
		return &LockError{Path: path, Err: err}
	}
	return nil
}

// IsHeld reports whether some process currently holds the exclusive
// lock at path. It probes with a shared non-blocking lock that is
// dropped straight away, and never creates the file. While the probe
// holds its shared lock an Acquire elsewhere reports ErrAlreadyRunning;
// launch.Start retries once when no primary answers.
func IsHeld(path string) (bool, error) {
	probe := flock.New(path, flock.SetFlag(os.O_RDONLY))
	defer probe.Close()

	ok, err := probe.TryRLock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, &LockError{Path: path, Err: err}
	}
	return !ok, nil
}
