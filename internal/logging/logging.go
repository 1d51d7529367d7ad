// Package logging configures the zerolog logger shared by the launcher.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ParseLevel maps a config value to a zerolog level. Unknown or empty
// values fall back to info.
func ParseLevel(s string) zerolog.Level {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Setup installs a console logger writing to w (stderr when nil) as the
// global logger and returns it.
func Setup(level string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	out := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}

	zerolog.SetGlobalLevel(ParseLevel(level))
	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}
