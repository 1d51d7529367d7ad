//go:build darwin

package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// sun_path is 104 bytes on Darwin, including the terminating NUL.
const maxSocketPath = 104

// SupportRoot returns ~/Library/Application Support.
func SupportRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
	}
	return filepath.Join(home, "Library", "Application Support"), nil
}
