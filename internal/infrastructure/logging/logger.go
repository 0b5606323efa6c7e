package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls logger construction. CLI flags map onto it directly.
type Config struct {
	// Level is debug, info, warn or error. Unrecognised values mean info.
	Level string

	// Format is "text" for human terminals or "json" for collectors.
	Format string

	// Output is "stderr" or "stdout".
	Output string
}

// Logger wraps slog.Logger so call sites carry structured fields without
// reaching for the global default logger.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New creates a Logger with the given configuration and version tag.
func New(cfg Config, version string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		output = os.Stdout
	default:
		// This tool prints results on stdout; logs go to stderr so
		// piping status output stays clean.
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "z2m-manager"),
		slog.String("version", version),
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// parseLevel converts a string log level to slog.Level, defaulting to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// With returns a new Logger carrying additional default attributes.
//
// Example:
//
//	stackLogger := logger.With("component", "stack")
//	stackLogger.Info("started") // includes component=stack
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// Default creates a text logger at info level for use before flags are
// parsed.
func Default() *Logger {
	return New(Config{Level: "info", Format: "text", Output: "stderr"}, "dev")
}
