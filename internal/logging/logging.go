// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Options select the logger level and format.
type Options struct {
	// Debug forces debug level.
	Debug bool

	// Level is one of debug, info, warn, error. Empty means warn.
	Level string

	// Format is text or json. Empty means text.
	Format string
}

// New returns a logger writing to w.
func New(w io.Writer, opts Options) (*slog.Logger, error) {
	level := slog.LevelWarn
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToUpper(opts.Level))); err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}
	if opts.Debug {
		level = slog.LevelDebug
	}

	ho := &slog.HandlerOptions{Level: level}
	switch opts.Format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, ho)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, ho)), nil
	default:
		return nil, fmt.Errorf("log format must be text or json, got %q", opts.Format)
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
