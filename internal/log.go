package internal

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// LogLevel represents different logging verbosity levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

// ParseLogLevel maps a LOG_LEVEL value to a level, defaulting to INFO
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LogLevelError
	case "WARN":
		return LogLevelWarn
	case "DEBUG":
		return LogLevelDebug
	case "TRACE":
		return LogLevelTrace
	}
	return LogLevelInfo
}

// Logger provides leveled logging with an optional set of key=value fields
// attached to every line.
type Logger struct {
	level  LogLevel
	out    *log.Logger
	fields string
}

// NewLogger creates a new logger with the specified level
func NewLogger(level LogLevel) *Logger {
	return &Logger{level: level, out: log.New(os.Stderr, "", log.LstdFlags)}
}

// NewLoggerTo creates a logger writing to out, mainly for tests.
func NewLoggerTo(level LogLevel, out *log.Logger) *Logger {
	return &Logger{level: level, out: out}
}

// NewDefaultLogger creates a logger based on LOG_LEVEL environment variable
func NewDefaultLogger() *Logger {
	return NewLogger(ParseLogLevel(os.Getenv("LOG_LEVEL")))
}

// With returns a child logger that appends key=value to every line.
func (l *Logger) With(key string, value interface{}) *Logger {
	child := *l
	pair := fmt.Sprintf("%s=%v", key, value)
	if child.fields == "" {
		child.fields = pair
	} else {
		child.fields = child.fields + " " + pair
	}
	return &child
}

func (l *Logger) emit(level LogLevel, tag, format string, args ...interface{}) {
	if l == nil || l.level < level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.fields != "" {
		msg = msg + " " + l.fields
	}
	l.out.Printf("[%s] %s", tag, msg)
}

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.emit(LogLevelError, "ERROR", format, args...)
}

// Warn logs warning messages
func (l *Logger) Warn(format string, args ...interface{}) {
	l.emit(LogLevelWarn, "WARN", format, args...)
}

// Info logs info messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.emit(LogLevelInfo, "INFO", format, args...)
}

// Debug logs debug messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.emit(LogLevelDebug, "DEBUG", format, args...)
}

// Trace logs trace messages
func (l *Logger) Trace(format string, args ...interface{}) {
	l.emit(LogLevelTrace, "TRACE", format, args...)
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

// Discard is a logger that drops everything.
var Discard = &Logger{level: -1}
