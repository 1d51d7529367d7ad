package handoff

import "fmt"

// BindError means the primary could not open the hand-off endpoint.
// The primary keeps running; later launches just cannot reach it.
type BindError struct {
	Path string
	Op   string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// AddrInUse reports whether another live socket already owns the path.
func (e *BindError) AddrInUse() bool {
	return isAddrInUse(e.Err)
}

// ConnectError means a secondary could not reach the primary. The
// secondary exits regardless.
type ConnectError struct {
	Path     string
	Attempts int
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s after %d attempt(s): %v", e.Path, e.Attempts, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// NotListening reports whether the last attempt found no socket or a
// socket nobody accepts on.
func (e *ConnectError) NotListening() bool {
	return isNotListening(e.Err)
}
