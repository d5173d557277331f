// Package log is a small leveled printf logger. The default logger writes
// to stdout and takes its minimum level from the LOG_LEVEL environment
// variable (debug, info, warn, error), defaulting to info.
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel maps a level name to a Level, defaulting to info
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger writes timestamped, caller-tagged lines at or above its minimum
// level. Safe for concurrent use.
type Logger struct {
	mu    sync.Mutex
	min   Level
	out   io.Writer
	depth int
}

// NewLogger creates a logger writing to stdout
func NewLogger(min Level) *Logger {
	return &Logger{min: min, out: os.Stdout, depth: 2}
}

// SetOutput redirects the logger, mainly for tests
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	l.out = w
	l.mu.Unlock()
}

// SetLevel changes the minimum emitted level
func (l *Logger) SetLevel(min Level) {
	l.mu.Lock()
	l.min = min
	l.mu.Unlock()
}

func (l *Logger) Debug(format string, args ...any) { l.emit(LevelDebug, format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.emit(LevelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.emit(LevelWarn, format, args...) }
func (l *Logger) Error(format string, args ...any) { l.emit(LevelError, format, args...) }

func (l *Logger) emit(level Level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.min {
		return
	}

	caller := "unknown"
	if _, file, line, ok := runtime.Caller(l.depth); ok {
		caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	fmt.Fprintf(l.out, "[%s] [%s] [%s] %s\n",
		time.Now().Format("2006-01-02 15:04:05"),
		level,
		caller,
		fmt.Sprintf(format, args...))
}

var (
	defaultOnce   sync.Once
	defaultLogger *Logger
)

func std() *Logger {
	defaultOnce.Do(func() {
		defaultLogger = NewLogger(ParseLevel(os.Getenv("LOG_LEVEL")))
	})
	return defaultLogger
}

func Debug(format string, args ...any) { std().emit(LevelDebug, format, args...) }
func Info(format string, args ...any)  { std().emit(LevelInfo, format, args...) }
func Warn(format string, args ...any)  { std().emit(LevelWarn, format, args...) }
func Error(format string, args ...any) { std().emit(LevelError, format, args...) }
