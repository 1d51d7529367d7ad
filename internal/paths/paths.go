// Package paths resolves where the launcher keeps its per-user state:
// the application support directory, the instance lock file and the
// hand-off socket.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultBundleID names the per-application directory under the
	// support root.
	DefaultBundleID = "runner"

	LockFileName   = "lockfile.lock"
	SocketFileName = "ipc.sock"
	ConfigFileName = "config.yaml"
)

var (
	// ErrDirectoryUnavailable is returned when the support directory
	// cannot be located or created. Neither role can proceed without it.
	ErrDirectoryUnavailable = errors.New("application support directory unavailable")

	ErrSocketPathTooLong = errors.New("socket path exceeds platform limit")
)

// Paths is the resolved on-disk layout for one bundle.
type Paths struct {
	Dir      string
	LockFile string
	Socket   string
}

// Resolve computes the layout under root for bundle. It does not touch
// the filesystem.
func Resolve(root, bundle string) Paths {
	if bundle == "" {
		bundle = DefaultBundleID
	}
	dir := filepath.Join(root, bundle)
	return Paths{
		Dir:      dir,
		LockFile: filepath.Join(dir, LockFileName),
		Socket:   filepath.Join(dir, SocketFileName),
	}
}

// Default resolves the layout under the current user's support root.
func Default(bundle string) (Paths, error) {
	root, err := SupportRoot()
	if err != nil {
		return Paths{}, err
	}
	return Resolve(root, bundle), nil
}

// ConfigFile returns the path of the optional YAML config file.
func (p Paths) ConfigFile() string {
	return filepath.Join(p.Dir, ConfigFileName)
}

// Validate reports layouts that cannot work on this platform, currently
// only a socket path longer than sun_path allows.
func (p Paths) Validate() error {
	if len(p.Socket) >= maxSocketPath {
		return fmt.Errorf("%w: %d bytes (max %d): %s", ErrSocketPathTooLong, len(p.Socket), maxSocketPath-1, p.Socket)
	}
	return nil
}

// EnsureDir creates the support directory if it is missing. Losing a
// creation race to another launcher is not an error.
func EnsureDir(p Paths) error {
	if p.Dir == "" {
		return fmt.Errorf("%w: empty path", ErrDirectoryUnavailable)
	}
	if err := os.MkdirAll(p.Dir, 0o700); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
	}
	info, err := os.Stat(p.Dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrDirectoryUnavailable, p.Dir)
	}
	return nil
}
