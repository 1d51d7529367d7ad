package main

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// App stands in for the launcher window. Every method is expected to be
// called from the main-thread dispatcher.
type App struct {
	version     string
	startHidden bool
	quit        func()
	logger      zerolog.Logger

	mu      sync.Mutex
	created bool
	closed  bool
	visible bool
	reveals int
}

// NewApp returns a window that calls quit when it is closed.
func NewApp(startHidden bool, quit func()) *App {
	if quit == nil {
		quit = func() {}
	}
	return &App{
		startHidden: startHidden,
		quit:        quit,
		logger:      log.Logger.With().Str("component", "window").Logger(),
	}
}

// Init creates the window and brings it to the front, unless the
// launcher was started silently. Calling it twice is a no-op.
func (a *App) Init() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.created {
		return nil
	}
	a.created = true
	a.logger.Info().Str("version", a.version).Bool("hidden", a.startHidden).Msg("Window created")
	if !a.startHidden {
		a.visible = true
	}
	return nil
}

// Reveal shows the window and brings it to the front. Revealing an
// already visible window only raises it again.
func (a *App) Reveal() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.created || a.closed {
		a.logger.Warn().Msg("Reveal without an open window ignored")
		return
	}
	a.reveals++
	if a.visible {
		a.logger.Debug().Int("reveals", a.reveals).Msg("Window raised")
		return
	}
	a.visible = true
	a.logger.Info().Int("reveals", a.reveals).Msg("Window shown")
}

// Close closes the window, which ends the launcher.
func (a *App) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.visible = false
	a.mu.Unlock()

	a.logger.Info().Msg("Window closed, quitting")
	a.quit()
}

func (a *App) Visible() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.visible
}

func (a *App) Reveals() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reveals
}
