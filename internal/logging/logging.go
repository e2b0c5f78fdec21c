// Package logging is the leveled, colorized diagnostic logger every other
// package writes through, honoring QUILL_LOG_LEVEL / QUILL_LOG_MODULES /
// QUILL_LOG_FILE. Coloring follows the same fatih/color idiom the CLI and
// REPL use for their own diagnostics.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Level is an ordered log severity.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
	LevelNone
)

// ParseLevel maps a level name (as found in config files or flags) to a
// Level, defaulting to LevelInfo for anything unrecognized.
func ParseLevel(s string) Level {
	return parseLevel(s)
}

func parseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	case "none":
		return LevelNone
	default:
		return LevelInfo
	}
}

var levelColor = map[Level]*color.Color{
	LevelTrace: color.New(color.FgWhite),
	LevelDebug: color.New(color.FgCyan),
	LevelInfo:  color.New(color.FgGreen),
	LevelWarn:  color.New(color.FgYellow),
	LevelError: color.New(color.FgRed),
	LevelFatal: color.New(color.FgRed, color.Bold),
}

var levelName = map[Level]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

// Logger writes leveled, module-filtered diagnostics to an io.Writer.
type Logger struct {
	mu      sync.Mutex
	out     io.Writer
	level   Level
	modules map[string]bool // consulted only when allMods is false; empty then logs nothing
	allMods bool
}

// FromEnv builds a Logger from the QUILL_LOG_LEVEL, QUILL_LOG_MODULES, and
// QUILL_LOG_FILE environment variables.
func FromEnv() *Logger {
	l := &Logger{out: os.Stderr, level: parseLevel(os.Getenv("QUILL_LOG_LEVEL")), allMods: true}
	if mods := os.Getenv("QUILL_LOG_MODULES"); mods != "" && mods != "all" {
		if mods == "none" {
			l.allMods = false
			l.modules = map[string]bool{}
		} else {
			l.allMods = false
			l.modules = map[string]bool{}
			for _, m := range strings.Split(mods, ",") {
				l.modules[strings.TrimSpace(m)] = true
			}
		}
	}
	if path := os.Getenv("QUILL_LOG_FILE"); path != "" {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			l.out = f
		}
	}
	return l
}

// New builds a Logger writing to out at the given level with no module
// filtering (for tests and embedding).
func New(out io.Writer, level Level) *Logger {
	return &Logger{out: out, level: level, allMods: true}
}

func (l *Logger) enabled(level Level, module string) bool {
	if level < l.level || l.level == LevelNone {
		return false
	}
	if l.allMods {
		return true
	}
	return l.modules[module]
}

func (l *Logger) log(level Level, module, format string, args ...any) {
	if !l.enabled(level, module) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	prefix := levelColor[level].Sprintf("[%s]", levelName[level])
	if module != "" {
		fmt.Fprintf(l.out, "%s %s: %s\n", prefix, module, fmt.Sprintf(format, args...))
	} else {
		fmt.Fprintf(l.out, "%s %s\n", prefix, fmt.Sprintf(format, args...))
	}
}

func (l *Logger) Trace(module, format string, args ...any) { l.log(LevelTrace, module, format, args...) }
func (l *Logger) Debug(module, format string, args ...any) { l.log(LevelDebug, module, format, args...) }
func (l *Logger) Info(module, format string, args ...any)  { l.log(LevelInfo, module, format, args...) }
func (l *Logger) Warn(module, format string, args ...any)  { l.log(LevelWarn, module, format, args...) }
func (l *Logger) Error(module, format string, args ...any) { l.log(LevelError, module, format, args...) }
