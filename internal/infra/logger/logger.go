package logger

import (
	"container/ring"
	"fmt"
	"io"
	"log"
	"os"
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
	LevelFatal
)

// recentSize is how many formatted lines Recent can return
const recentSize = 500

type Logger struct {
	fileLogger    *log.Logger
	closer        io.Closer
	level         Level
	includeStdout bool
	stdout        io.Writer

	mu     sync.Mutex
	recent *ring.Ring
}

func New(filePath string, level Level, includeStdout bool) (*Logger, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	l := NewWriter(f, level)
	l.closer = f
	l.includeStdout = includeStdout
	return l, nil
}

// NewWriter logs to w only
func NewWriter(w io.Writer, level Level) *Logger {
	return &Logger{
		fileLogger: log.New(w, "", 0),
		level:      level,
		stdout:     os.Stdout,
		recent:     ring.New(recentSize),
	}
}

// NewNop discards output but still keeps Recent lines
func NewNop() *Logger {
	return NewWriter(io.Discard, LevelDebug)
}

func (l *Logger) log(lvl Level, prefix string, format string, v ...interface{}) {
	if lvl < l.level {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, v...)
	fullMsg := fmt.Sprintf("%s [%s] %s", timestamp, prefix, msg)

	l.fileLogger.Println(fullMsg)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.recent.Value = fullMsg
	l.recent = l.recent.Next()

	// Write to Stdout for Docker/CLI if enabled AND level is Info or higher
	// This prevents Debug spam from breaking progress bar and other CLI UI elements
	if l.includeStdout && lvl >= LevelInfo {
		fmt.Fprintf(l.stdout, "\n%s", fullMsg)
	}
}

// Recent returns up to n of the newest lines, oldest first
func (l *Logger) Recent(n int) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	all := make([]string, 0, recentSize)
	l.recent.Do(func(v any) {
		if s, ok := v.(string); ok {
			all = append(all, s)
		}
	})

	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return all
}

// SetStdout redirects the stdout mirror, e.g. while a progress bar owns the
// terminal, and returns the previous writer.
func (l *Logger) SetStdout(w io.Writer) io.Writer {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.stdout
	l.stdout = w
	return prev
}

func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func ParseLevel(lvl string) Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l *Logger) Debug(f string, v ...any) { l.log(LevelDebug, "DEBUG", f, v...) }
func (l *Logger) Info(f string, v ...any)  { l.log(LevelInfo, "INFO", f, v...) }
func (l *Logger) Warn(f string, v ...any)  { l.log(LevelWarn, "WARN", f, v...) }
func (l *Logger) Error(f string, v ...any) { l.log(LevelError, "ERROR", f, v...) }
func (l *Logger) Fatal(f string, v ...any) { l.log(LevelFatal, "FATAL", f, v...); os.Exit(1) }

func (l *Logger) Write(p []byte) (n int, err error) {
	// Echo and other libraries often include a newline at the end
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		l.Info("%s", msg)
	}
	return len(p), nil
}
