// Package mainthread runs UI actions on the goroutine that owns the UI.
//
// Window toolkits only allow UI state to be touched from the process's
// main thread. Background goroutines Post actions; the main goroutine,
// pinned to the main OS thread with runtime.LockOSThread, drains them
// in Run.
package mainthread

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Dispatcher is an unbounded FIFO of zero-argument actions with a single
// consumer.
type Dispatcher struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	logger zerolog.Logger
}

// New returns a Dispatcher that reports recovered panics to the global
// logger.
func New() *Dispatcher {
	return NewWithLogger(log.Logger)
}

func NewWithLogger(logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		wake:   make(chan struct{}, 1),
		logger: logger,
	}
}

// Post queues fn. It never blocks and may be called from any goroutine.
func (d *Dispatcher) Post(fn func()) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	d.queue = append(d.queue, fn)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of queued actions.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Run executes queued actions on the calling goroutine, in the order
// they were posted, until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		d.drain(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.wake:
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for ctx.Err() == nil {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		fn := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()

		d.call(fn)
	}
}

func (d *Dispatcher) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Interface("panic", r).Msg("Main-thread action panicked")
		}
	}()
	fn()
}
