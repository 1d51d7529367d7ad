// Package launch decides, once per process, whether this launcher is the
// primary instance or a secondary that hands off and exits.
package launch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"runner-launcher/internal/handoff"
	"runner-launcher/internal/mainthread"
	"runner-launcher/internal/paths"
	"runner-launcher/internal/singleinstance"
)

type Role int

const (
	RolePrimary Role = iota + 1
	RoleSecondary
)

func (r Role) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleSecondary:
		return "secondary"
	default:
		return "unknown"
	}
}

// Poster queues an action for the UI thread.
type Poster interface {
	Post(fn func())
}

type Options struct {
	Paths  paths.Paths
	Notify handoff.NotifyOptions

	// Rebind recreates the socket if its file is deleted while the
	// primary runs.
	Rebind        bool
	WatchInterval time.Duration

	Logger zerolog.Logger
}

// Instance is the outcome of Start.
type Instance struct {
	Role  Role
	Paths paths.Paths

	// Handoff is true when a primary is listening for later launches.
	Handoff bool

	// NotifyErr holds a secondary's failed attempt to reach the primary.
	// The secondary exits either way.
	NotifyErr error

	lock     *singleinstance.Lock
	listener *handoff.Listener
	stop     context.CancelFunc
}

// Start resolves the role of this process. A primary gets a listener
// whose signals post reveal to ui; a secondary notifies the primary and
// must exit without touching any UI.
//
// Errors are returned only for failures that stop both roles: an
// unusable support directory or lock file.
func Start(ctx context.Context, opts Options, ui Poster, reveal func()) (*Instance, error) {
	logger := opts.Logger
	p := opts.Paths

	if err := paths.EnsureDir(p); err != nil {
		return nil, err
	}

	lock, err := singleinstance.Acquire(p.LockFile)
	if errors.Is(err, singleinstance.ErrAlreadyRunning) {
		logger.Info().Str("socket", p.Socket).Msg("Another instance is running, handing off")
		notifyErr := handoff.Notify(ctx, p.Socket, opts.Notify)
		if notifyErr == nil {
			return &Instance{Role: RoleSecondary, Paths: p}, nil
		}

		// A shared probe (runner status) also makes Acquire fail. If
		// nobody is listening, the holder may already be gone.
		var connErr *handoff.ConnectError
		if errors.As(notifyErr, &connErr) && connErr.NotListening() {
			lock, err = singleinstance.Acquire(p.LockFile)
		}
		if errors.Is(err, singleinstance.ErrAlreadyRunning) {
			logger.Warn().Err(notifyErr).Msg("Could not reach running instance")
			return &Instance{Role: RoleSecondary, Paths: p, NotifyErr: notifyErr}, nil
		}
		if err == nil {
			logger.Info().Msg("Lock holder went away, taking over")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("acquire instance lock: %w", err)
	}

	inst := &Instance{Role: RolePrimary, Paths: p, lock: lock}
	logger.Info().Str("lock", p.LockFile).Msg("Running as primary instance")

	if err := p.Validate(); err != nil {
		logger.Error().Err(err).Msg("Hand-off disabled")
		return inst, nil
	}

	listener, err := handoff.Listen(p.Socket, func() { ui.Post(reveal) }, logger)
	if err != nil {
		// The window still opens; later launches just cannot surface it.
		logger.Error().Err(err).Msg("Hand-off disabled")
		return inst, nil
	}
	inst.listener = listener
	inst.Handoff = true
	go listener.Serve()

	if opts.Rebind {
		watchCtx, cancel := context.WithCancel(context.Background())
		inst.stop = cancel
		go func() {
			if err := listener.Watch(watchCtx, opts.WatchInterval); err != nil {
				logger.Warn().Err(err).Msg("Socket watcher stopped")
			}
		}()
	}

	return inst, nil
}

// Listener returns the primary's hand-off listener, or nil.
func (i *Instance) Listener() *handoff.Listener {
	return i.listener
}

// Close tears down the listener and releases the lock. The launcher
// binary relies on process exit instead.
func (i *Instance) Close() error {
	if i == nil {
		return nil
	}
	if i.stop != nil {
		i.stop()
	}
	var errs []error
	if i.listener != nil {
		errs = append(errs, i.listener.Close())
	}
	if i.lock != nil {
		errs = append(errs, i.lock.Release())
	}
	return errors.Join(errs...)
}

// UI is the window collaborator. Init is called at most once, and only
// in a primary; Reveal only ever runs on the dispatcher goroutine.
type UI interface {
	Init() error
	Reveal()
}

// Run performs the whole launch on the calling goroutine, which must be
// the UI thread. A primary initializes ui and serves dispatched actions
// until ctx is done; a secondary returns at once.
func Run(ctx context.Context, opts Options, ui UI) (Role, error) {
	d := mainthread.NewWithLogger(opts.Logger)

	inst, err := Start(ctx, opts, d, ui.Reveal)
	if err != nil {
		return 0, err
	}
	if inst.Role == RoleSecondary {
		return RoleSecondary, nil
	}
	defer inst.Close()

	if err := ui.Init(); err != nil {
		return RolePrimary, fmt.Errorf("initialize window: %w", err)
	}
	// Run only returns once ctx is done.
	_ = d.Run(ctx)
	return RolePrimary, nil
}
