package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// LogLevel represents logging verbosity levels.
type LogLevel int

// Log level constants.
const (
	LogLevelOff LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// ParseLogLevel parses a log level string. Unknown values map to error.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none":
		return LogLevelOff
	case "warn", "warning":
		return LogLevelWarn
	case "info":
		return LogLevelInfo
	case "debug":
		return LogLevelDebug
	default:
		return LogLevelError
	}
}

// String returns the string representation of a log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelOff:
		return "off"
	case LogLevelWarn:
		return "warn"
	case LogLevelInfo:
		return "info"
	case LogLevelDebug:
		return "debug"
	case LogLevelError:
		return "error"
	default:
		return "error"
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LogLevelOff:
		return zerolog.Disabled
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelInfo:
		return zerolog.InfoLevel
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.ErrorLevel
	}
}

// Logger writes JSON lines through zerolog. Component loggers share the
// parent's output and close it only through the root.
type Logger struct {
	zl    zerolog.Logger
	level LogLevel

	mu   sync.Mutex
	file *os.File
}

// NewLogger creates a logger appending to filePath. An off level or empty
// path yields a logger that discards everything.
func NewLogger(level LogLevel, filePath string) (*Logger, error) {
	if level == LogLevelOff || filePath == "" {
		return NullLogger(), nil
	}

	filePath = ExpandHome(filePath)
	if err := os.MkdirAll(filepath.Dir(filePath), 0o750); err != nil {
		return nil, err
	}

	// #nosec G304 -- log file path is from validated config
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	l := NewWriterLogger(f, level)
	l.file = f
	return l, nil
}

// NewWriterLogger creates a logger writing JSON lines to w.
func NewWriterLogger(w io.Writer, level LogLevel) *Logger {
	return &Logger{
		zl:    zerolog.New(w).Level(level.zerolog()).With().Timestamp().Logger(),
		level: level,
	}
}

// NullLogger returns a logger that discards all output.
func NullLogger() *Logger {
	return &Logger{zl: zerolog.Nop(), level: LogLevelOff}
}

// Component returns a child logger tagging every entry with component=name.
func (l *Logger) Component(name string) *Logger {
	if l == nil {
		return NullLogger()
	}
	return &Logger{
		zl:    l.zl.With().Str("component", name).Logger(),
		level: l.level,
	}
}

// Level returns the logger's level.
func (l *Logger) Level() LogLevel {
	if l == nil {
		return LogLevelOff
	}
	return l.level
}

// Close closes the underlying log file, if any.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...any) {
	l.log(zerolog.DebugLevel, format, args...)
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...any) {
	l.log(zerolog.InfoLevel, format, args...)
}

// Warn logs a warning.
func (l *Logger) Warn(format string, args ...any) {
	l.log(zerolog.WarnLevel, format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...any) {
	l.log(zerolog.ErrorLevel, format, args...)
}

func (l *Logger) log(level zerolog.Level, format string, args ...any) {
	if l == nil {
		return
	}
	ev := l.zl.WithLevel(level)
	if ev == nil {
		return
	}
	ev.Msg(fmt.Sprintf(format, args...))
}
