// Package logger builds the process logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

const service = "lending-admin"

// New returns a console logger on stderr and installs it as the default
// context logger.
func New(level string) zerolog.Logger {
	l := NewWriter(level, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.DefaultContextLogger = &l
	return l
}

// NewWriter returns a logger writing to w. An unknown level falls back to info.
func NewWriter(level string, w io.Writer) zerolog.Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano

	logLevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		if level != "" {
			fmt.Fprintf(os.Stderr, "Invalid log level '%s', defaulting to 'info'\n", level)
		}
		logLevel = zerolog.InfoLevel
	}

	goVersion, revision, modified := build()

	return zerolog.New(w).
		Level(logLevel).
		With().
		Timestamp().
		Caller().
		Str("service", service).
		Int("pid", os.Getpid()).
		Str("go_version", goVersion).
		Str("git_revision", revision).
		Bool("git_modified", modified).
		Logger()
}

func build() (goVersion, revision string, modified bool) {
	goVersion, revision = "unknown", "unknown"

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return goVersion, revision, false
	}
	if info.GoVersion != "" {
		goVersion = info.GoVersion
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}
	return goVersion, revision, modified
}
