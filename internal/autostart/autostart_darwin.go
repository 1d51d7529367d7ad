//go:build darwin

package autostart

import (
	"fmt"
	"os"
	"path/filepath"
)

const plistTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>%s</string>
    <key>ProgramArguments</key>
    <array>
        <string>%s</string>
        <string>--silent</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
</dict>
</plist>
`

// Path returns the LaunchAgent plist location for label.
func Path(label string) string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Library", "LaunchAgents", fileName(label)+".plist")
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
	path := Path(label)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	content := []byte(fmt.Sprintf(plistTemplate, fileName(label), exePath))
	return os.WriteFile(path, content, 0o644)
}

func Disable(label string) error {
	return remove(Path(label))
}
