//go:build linux

package autostart

import (
	"fmt"
	"os"
	"path/filepath"
)

const desktopEntry = `[Desktop Entry]
Type=Application
Name=%s
Exec="%s" --silent
Hidden=false
NoDisplay=true
X-GNOME-Autostart-enabled=true
Comment=Launcher
`

func autostartDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "autostart")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "autostart")
}

// Path returns the XDG autostart entry location for label.
func Path(label string) string {
	return filepath.Join(autostartDir(), fileName(label)+".desktop")
}

func IsEnabled(label string) (bool, error) {
	return exists(Path(label))
}

func Enable(label string) error {
	exePath, err := os.Executable()
	if err != nil {
		return err
	}
	return write(label, exePath)
}

func write(label, exePath string) error {
	if err := os.MkdirAll(autostartDir(), 0o755); err != nil {
		return err
	}
	content := []byte(fmt.Sprintf(desktopEntry, fileName(label), exePath))
	return os.WriteFile(Path(label), content, 0o644)
}

func Disable(label string) error {
	return remove(Path(label))
}
