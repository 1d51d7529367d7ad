// Package autostart registers the launcher to start at login so the
// primary instance is already running when the user first calls it up.
package autostart

import (
	"errors"
	"os"
	"strings"
)

var ErrUnsupported = errors.New("autostart is not supported on this platform")

// fileName turns a bundle identifier into a safe file base name.
func fileName(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "runner"
	}
	return strings.NewReplacer("/", "_", `\`, "_").Replace(label)
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func remove(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
