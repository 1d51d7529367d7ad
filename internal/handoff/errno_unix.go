//go:build unix

package handoff

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isNotListening matches the errors a client sees while the primary has
// the lock but has not bound its socket yet, or after it died and left
// the file behind.
func isNotListening(err error) bool {
	return errors.Is(err, unix.ENOENT) || errors.Is(err, unix.ECONNREFUSED)
}

func isAddrInUse(err error) bool {
	return errors.Is(err, unix.EADDRINUSE)
}
