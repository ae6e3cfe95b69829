package palletlog

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	levelColor = map[Level]*color.Color{
		DEBUG: color.New(color.FgCyan),
		INFO:  color.New(color.FgGreen),
		WARN:  color.New(color.FgYellow),
		ERROR: color.New(color.FgRed),
		FATAL: color.New(color.FgRed, color.Bold),
	}
)

// Logger is the engine's process-wide log sink. It is safe for concurrent
// use; the level and filter list may be changed live (the log_level and
// log_filter cvars do exactly that).
type Logger struct {
	mu      sync.RWMutex
	out     io.Writer
	level   Level
	color   bool
	filters []string
	ring    *Ring
}

// New constructs a Logger writing to w at the given initial level, with a
// ring buffer retaining the last ringSize formatted lines.
func New(w io.Writer, level Level, ringSize int) *Logger {
	return &Logger{
		out:   w,
		level: level,
		color: false,
		ring:  NewRing(ringSize),
	}
}

// Default is the engine-wide logger instance used by the package-level
// helper functions below. cmd/pallet may replace it at boot.
var Default = New(os.Stderr, INFO, 512)

// SetLevel changes the minimum level that will be emitted.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Level returns the current minimum emitted level.
func (l *Logger) Level() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

// SetColor toggles ANSI colorization of the level tag.
func (l *Logger) SetColor(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.color = on
}

// SetFilter replaces the substring drop-list: any formatted line containing
// one of these substrings is dropped before being written. This backs the
// log_filter cvar.
func (l *Logger) SetFilter(filter string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if filter == "" {
		l.filters = nil
		return
	}
	l.filters = strings.Split(filter, ",")
}

// WillLog reports whether a message at level would actually be emitted,
// so callers can skip building an expensive format string.
func (l *Logger) WillLog(level Level) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.level
}

// Ring returns the retained recent log lines, oldest first.
func (l *Logger) Ring() []string {
	return l.ring.Dump()
}

func (l *Logger) prologue(level Level) string {
	var msg string
	_, file, line, ok := runtime.Caller(3)
	if ok {
		short := file
		for i := len(file) - 1; i > 0; i-- {
			if file[i] == '/' {
				short = file[i+1:]
				break
			}
		}
		msg = short + ":" + strconv.Itoa(line) + ": "
	}

	tag := level.String()
	l.mu.RLock()
	useColor := l.color
	l.mu.RUnlock()
	if useColor {
		if c, ok := levelColor[level]; ok {
			tag = c.Sprint(tag)
		}
	}
	return tag + " " + msg
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if !l.WillLog(level) {
		return
	}

	msg := l.prologue(level) + fmt.Sprintf(format, args...)

	l.mu.RLock()
	filters := l.filters
	out := l.out
	l.mu.RUnlock()

	for _, f := range filters {
		if f != "" && strings.Contains(msg, f) {
			return
		}
	}

	l.ring.Write(msg)
	fmt.Fprintln(out, time.Now().Format("2006/01/02 15:04:05"), msg)

	if level == FATAL {
		os.Exit(1)
	}
}

func (l *Logger) Debug(format string, args ...interface{}) { l.log(DEBUG, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.log(INFO, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.log(WARN, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.log(ERROR, format, args...) }
func (l *Logger) Fatal(format string, args ...interface{}) { l.log(FATAL, format, args...) }

// Package-level helpers delegate to Default, a package-function-over-
// global-logger convention callers can use without plumbing a *Logger
// through every call site.

func SetLevel(level Level)              { Default.SetLevel(level) }
func SetFilter(filter string)           { Default.SetFilter(filter) }
func WillLog(level Level) bool          { return Default.WillLog(level) }
func Debug(format string, a ...interface{}) { Default.Debug(format, a...) }
func Info(format string, a ...interface{})  { Default.Info(format, a...) }
func Warn(format string, a ...interface{})  { Default.Warn(format, a...) }
func Error(format string, a ...interface{}) { Default.Error(format, a...) }
func Fatal(format string, a ...interface{}) { Default.Fatal(format, a...) }
