// Package logging provides structured logging setup using log/slog.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// DebugEnv forces debug logging when set to "1".
const DebugEnv = "NETSPEED_DEBUG"

// Format selects the slog handler.
type Format int

const (
	// FormatText writes logfmt-style lines, for interactive use.
	FormatText Format = iota
	// FormatJSON writes one JSON object per line, for the daemon.
	FormatJSON
)

// Options configures the default logger.
type Options struct {
	Level  slog.Level
	Format Format
	// Output defaults to os.Stderr.
	Output io.Writer
}

// ParseLevel converts a config string into a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// New builds a logger without installing it.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	var handler slog.Handler
	if opts.Format == FormatJSON {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	return slog.New(handler)
}

// Setup installs a text logger on stderr at the given level.
func Setup(level slog.Level) {
	slog.SetDefault(New(Options{Level: level}))
}

// SetupWith installs a logger built from opts, honouring NETSPEED_DEBUG.
func SetupWith(opts Options) {
	if os.Getenv(DebugEnv) == "1" {
		opts.Level = slog.LevelDebug
	}
	slog.SetDefault(New(opts))
}

// SetupFromEnv installs a text logger at info level, or debug when
// NETSPEED_DEBUG=1.
func SetupFromEnv() {
	SetupWith(Options{Level: slog.LevelInfo})
}
