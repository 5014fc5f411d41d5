// Package logger provides the leveled, structured logger used across the console.
//
// Every component takes a Logger and logs with key-value pairs. The default
// implementation is backed by log/slog and renders either JSON records or
// human-readable console lines.
//
// Log Levels:
//
//   - DebugLevel: protocol traffic (frames, SDO segments, guard requests).
//   - InfoLevel:  lifecycle events (bus opened, guarding started).
//   - WarnLevel:  best-effort operations that failed.
//   - ErrorLevel: failures that need attention.
//   - FatalLevel: unrecoverable start-up errors.
package logger

// Level indicates the logging severity level.
type Level = int8

const (
	// DebugLevel logs are voluminous and usually disabled.
	DebugLevel Level = iota - 1
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual
	// human review.
	WarnLevel
	// ErrorLevel logs are high-priority.
	ErrorLevel
	// FatalLevel logs a message, then calls os.Exit(1).
	FatalLevel
)

// Format selects how records are rendered.
type Format string

const (
	// FormatConsole renders colored, human-readable lines.
	FormatConsole Format = "console"
	// FormatJSON renders one JSON object per record.
	FormatJSON Format = "json"
)

// Logger defines a common interface for logging.
type Logger interface {
	// Debug logs a message at DebugLevel.
	Debug(msg string, keysAndValues ...any)
	// Info logs a message at InfoLevel.
	Info(msg string, keysAndValues ...any)
	// Warn logs a message at WarnLevel.
	Warn(msg string, keysAndValues ...any)
	// Error logs a message at ErrorLevel.
	Error(msg string, keysAndValues ...any)
	// Fatal logs a message at FatalLevel and then calls os.Exit(1).
	Fatal(msg string, keysAndValues ...any)
	// With creates a child logger and adds structured context to it.
	With(keyValues ...any) Logger
	// Level returns the minimum enabled level for this logger.
	Level() Level
	// SetLevel sets the minimum enabled level for this logger.
	SetLevel(level Level)
}

// ParseLevel maps a textual level to a Level. The second result is false
// for unrecognized input.
func ParseLevel(raw string) (Level, bool) {
	switch raw {
	case "debug":
		return DebugLevel, true
	case "info", "":
		return InfoLevel, true
	case "warn", "warning":
		return WarnLevel, true
	case "error":
		return ErrorLevel, true
	case "fatal":
		return FatalLevel, true
	default:
		return InfoLevel, false
	}
}
