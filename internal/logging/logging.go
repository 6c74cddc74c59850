package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Version is stamped on every log line.
var Version = "dev"

// New returns a JSON logger on stdout tagged with service and version.
// Console switches to human-readable output for local runs.
func New(service, level string, console bool) zerolog.Logger {
	var out io.Writer = os.Stdout
	if console {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}
	return newLogger(out, service, level)
}

func newLogger(out io.Writer, service, level string) zerolog.Logger {
	return zerolog.New(out).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Str("service", service).
		Str("version", Version).
		Logger()
}

// ParseLevel maps a level name to zerolog, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}
