package logging

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// New creates a configured application logger.
// It writes to Stderr (stdout belongs to the wire protocol).
// It standardizes common keys (e.g., "error" -> "err").
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, handlerOptions(level)))
}

// NewNop returns a no-op logger.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// LogSender is the part of the framed transport the plugin logger needs.
type LogSender interface {
	SendLog(payload any) error
}

// NewFrameLogger returns a logger whose records travel to the host as "log"
// messages. Used inside the plugin process, where stderr may not be collected.
func NewFrameLogger(sender LogSender, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(&frameWriter{sender: sender}, handlerOptions(level)))
}

// ParseLevel maps a config string to a slog level. Unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func handlerOptions(level slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Standardize 'error' key to 'err'
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}
}

// frameWriter receives exactly one formatted record per Write from slog.TextHandler.
type frameWriter struct {
	mu     sync.Mutex
	sender LogSender
}

func (w *frameWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.sender.SendLog(string(bytes.TrimRight(p, "\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}
