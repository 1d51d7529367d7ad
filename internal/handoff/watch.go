package handoff

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchInterval is how often Watch re-checks the socket file when
// no filesystem event arrives. Some platforms do not report events for
// socket files.
const DefaultWatchInterval = 2 * time.Second

// Watch recreates the endpoint whenever the socket file stops being the
// one this listener bound, e.g. after an external cleanup deleted it.
// A listening socket keeps working after its path is unlinked, but new
// clients can no longer find it by path.
//
// Watch returns when ctx is done or the listener is closed.
func (l *Listener) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create socket watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.done:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(l.path) {
				continue
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename|fsnotify.Create) != 0 {
				l.ensureBound()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn().Err(err).Msg("Socket watcher error")
		case <-ticker.C:
			l.ensureBound()
		}
	}
}

func (l *Listener) ensureBound() {
	if l.ownsPath() {
		return
	}
	if err := l.rebind(); err != nil {
		select {
		case <-l.done:
			return
		default:
		}
		l.logger.Error().Err(err).Msg("Failed to rebind hand-off socket")
		return
	}
	l.logger.Info().Uint64("rebinds", l.rebinds.Load()).Msg("Hand-off socket rebound")
}
