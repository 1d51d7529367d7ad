//go:build !darwin

package paths

import (
	"fmt"
	"os"
)

const maxSocketPath = 108

// SupportRoot returns the per-user configuration root, e.g.
// $XDG_CONFIG_HOME or ~/.config on Linux.
func SupportRoot() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
	}
	return dir, nil
}
