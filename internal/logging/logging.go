// Package logging configures the process-wide slog logger of the commands.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// New returns a tint logger writing to stderr. Colors are enabled only on a
// terminal.
func New(level *slog.LevelVar) *slog.Logger {
	return NewWithWriter(colorable.NewColorable(os.Stderr), level, !isatty.IsTerminal(os.Stderr.Fd()))
}

// NewWithWriter returns a tint logger writing to w.
func NewWithWriter(w io.Writer, level *slog.LevelVar, noColor bool) *slog.Logger {
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    noColor,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			if a.Key == "ip" {
				if v := a.Value.String(); v == "127.0.0.1" || v == "::1" {
					return slog.Attr{}
				}
			}
			if isZero(a.Value.Any()) {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// isZero reports whether an attribute value is not worth printing.
func isZero(val any) bool {
	switch t := val.(type) {
	case string:
		return t == ""
	case bool:
		return !t
	case uint64:
		return t == 0
	case int64:
		return t == 0
	case float64:
		return t == 0
	case time.Time:
		return t.IsZero()
	case time.Duration:
		return t == 0
	case nil:
		return true
	}
	return false
}

// SetLevel parses one of debug, info, warn or error into ll.
func SetLevel(ll *slog.LevelVar, level string) error {
	switch level {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
		ll.Set(slog.LevelInfo)
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", level)
	}
	return nil
}
