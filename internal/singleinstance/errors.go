package singleinstance

import (
	"errors"
	"fmt"
)

// ErrAlreadyRunning means another process holds the instance lock. It is
// the expected outcome for every launch after the first.
var ErrAlreadyRunning = errors.New("another instance is already running")

// LockFileError reports that the lock file itself could not be opened or
// created, e.g. a permission problem or a full disk.
type LockFileError struct {
	Path string
	Err  error
}

func (e *LockFileError) Error() string {
	return fmt.Sprintf("open lock file %s: %v", e.Path, e.Err)
}

func (e *LockFileError) Unwrap() error { return e.Err }

// LockError reports a lock attempt that failed for a reason other than
// contention.
type LockError struct {
	Path string
	Err  error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("lock %s: %v", e.Path, e.Err)
}

func (e *LockError) Unwrap() error { return e.Err }
