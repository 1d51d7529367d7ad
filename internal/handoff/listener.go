// Package handoff carries the "show yourself" signal from a secondary
// launcher to the primary over a Unix domain socket. The protocol has
// no payload: an accepted connection is the signal.
package handoff

import (
	"errors"
	"io/fs"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Listener owns the primary's hand-off endpoint.
type Listener struct {
	path     string
	onSignal func()
	logger   zerolog.Logger

	mu     sync.Mutex
	ln     *net.UnixListener
	bound  os.FileInfo
	closed bool
	done   chan struct{}

	accepted atomic.Uint64
	rebinds  atomic.Uint64
}

// Listen removes any stale socket file at path and binds a new endpoint
// there. onSignal is called once per accepted connection, from the
// Serve goroutine.
func Listen(path string, onSignal func(), logger zerolog.Logger) (*Listener, error) {
	ln, info, err := bind(path)
	if err != nil {
		return nil, err
	}
	if onSignal == nil {
		onSignal = func() {}
	}
	return &Listener{
		path:     path,
		onSignal: onSignal,
		logger:   logger.With().Str("socket", path).Logger(),
		ln:       ln,
		bound:    info,
		done:     make(chan struct{}),
	}, nil
}

func bind(path string) (*net.UnixListener, os.FileInfo, error) {
	// First launch has nothing to remove; anything else is a leftover
	// from a primary that has exited.
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, &BindError{Path: path, Op: "remove stale socket", Err: err}
	}

	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, nil, &BindError{Path: path, Op: "listen", Err: err}
	}
	// Close must not unlink a path that may by then belong to a rebound
	// endpoint; Listener.Close removes the file itself.
	ln.SetUnlinkOnClose(false)

	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		os.Remove(path)
		return nil, nil, &BindError{Path: path, Op: "chmod", Err: err}
	}
	info, err := os.Stat(path)
	if err != nil {
		ln.Close()
		return nil, nil, &BindError{Path: path, Op: "stat", Err: err}
	}
	return ln, info, nil
}

// Addr returns the socket path.
func (l *Listener) Addr() string { return l.path }

// Accepted returns how many signals have been delivered.
func (l *Listener) Accepted() uint64 { return l.accepted.Load() }

// Rebinds returns how many times the endpoint was recreated.
func (l *Listener) Rebinds() uint64 { return l.rebinds.Load() }

func (l *Listener) current() *net.UnixListener {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	return l.ln
}

// Serve accepts connections until Close is called. Accept failures are
// logged and retried; they never end the loop.
func (l *Listener) Serve() {
	var delay time.Duration
	for {
		ln := l.current()
		if ln == nil {
			return
		}

		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				// Either Close or a rebind swapped the endpoint.
				continue
			}
			if delay == 0 {
				delay = minAcceptDelay
			} else if delay *= 2; delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			l.logger.Warn().Err(err).Dur("retry_in", delay).Msg("Hand-off accept failed")
			select {
			case <-time.After(delay):
			case <-l.done:
				return
			}
			continue
		}
		delay = 0

		conn.Close()
		n := l.accepted.Add(1)
		l.logger.Debug().Uint64("count", n).Msg("Hand-off signal received")
		l.onSignal()
	}
}

// Close stops Serve and removes the socket file if it is still the one
// this listener bound.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	close(l.done)

	err := l.ln.Close()
	if info, statErr := os.Stat(l.path); statErr == nil && os.SameFile(info, l.bound) {
		if rmErr := os.Remove(l.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) && err == nil {
			err = rmErr
		}
	}
	return err
}

// ownsPath reports whether the file at the socket path is the endpoint
// this listener is serving.
func (l *Listener) ownsPath() bool {
	l.mu.Lock()
	bound := l.bound
	l.mu.Unlock()

	info, err := os.Stat(l.path)
	if err != nil {
		return false
	}
	return os.SameFile(info, bound)
}

// rebind binds a fresh endpoint at the same path and retires the old
// one. Serve picks up the new listener on its next iteration.
func (l *Listener) rebind() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return net.ErrClosed
	}

	ln, info, err := bind(l.path)
	if err != nil {
		return err
	}
	old := l.ln
	l.ln, l.bound = ln, info
	l.rebinds.Add(1)
	old.Close()
	return nil
}
