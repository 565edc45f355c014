package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	once   sync.Once
	logger *slog.Logger
	level  = new(slog.LevelVar)
)

// Setup initializes the global logger writing to stderr.
// logic: default to WARN so normal CLI runs stay quiet. If level is invalid, fallback to WARN.
func Setup(levelName, format string) {
	once.Do(func() {
		logger = newLogger(os.Stderr, levelName, format)
		slog.SetDefault(logger)
	})
}

// SetupWriter replaces the global logger with one writing to w. Used by tests
// and by callers that need logs somewhere other than stderr.
func SetupWriter(w io.Writer, levelName, format string) {
	once.Do(func() {})
	logger = newLogger(w, levelName, format)
}

func newLogger(w io.Writer, levelName, format string) *slog.Logger {
	level.Set(ParseLevel(levelName))
	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a level name to a slog.Level, falling back to WARN.
func ParseLevel(name string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// SetLevel changes the level of the global logger at runtime (e.g. --verbose).
func SetLevel(l slog.Level) {
	level.Set(l)
}

// Get returns the configured logger, or a default one if Setup hasn't been called.
func Get() *slog.Logger {
	if logger == nil {
		Setup("WARN", "text")
	}
	return logger
}

// WithComponent returns a logger with the component field set.
func WithComponent(name string) *slog.Logger {
	return Get().With(slog.String("component", name))
}

// WithNamespace returns a logger with the namespace field set.
func WithNamespace(name string) *slog.Logger {
	return Get().With(slog.String("namespace", name))
}

// WithRun returns a logger with the run_id field set.
func WithRun(id string) *slog.Logger {
	return Get().With(slog.String("run_id", id))
}
