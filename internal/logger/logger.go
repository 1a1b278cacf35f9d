package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Level is a logging threshold.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levels = [...]struct {
	name string
	slog slog.Level
}{
	LevelDebug: {"DEBUG", slog.LevelDebug},
	LevelInfo:  {"INFO", slog.LevelInfo},
	LevelWarn:  {"WARN", slog.LevelWarn},
	LevelError: {"ERROR", slog.LevelError},
}

func (l Level) valid() bool { return l >= LevelDebug && l <= LevelError }

func (l Level) String() string {
	if !l.valid() {
		return "UNKNOWN"
	}
	return levels[l].name
}

func (l Level) slogLevel() slog.Level {
	if !l.valid() {
		return slog.LevelInfo
	}
	return levels[l].slog
}

// ParseLevel matches DEBUG, INFO, WARN or ERROR in any case.
func ParseLevel(s string) (Level, bool) {
	for l := range levels {
		if strings.EqualFold(s, levels[l].name) {
			return Level(l), true
		}
	}
	return LevelInfo, false
}

// Config selects level, format and destination of the process logger.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or file path
	Color  *bool  // nil detects a terminal
}

// sink is the destination and encoding records are written with.
type sink struct {
	w      io.Writer
	format string
	color  bool
}

var (
	// minLevel is shared by every handler, so level changes apply without
	// rebuilding the logger.
	minLevel = new(slog.LevelVar)

	mu      sync.Mutex
	current sink
	active  atomic.Pointer[slog.Logger]
)

func init() {
	install(sink{w: os.Stdout, format: "text", color: isTerminal(os.Stdout)})
}

// install replaces the active logger. Callers other than init hold mu.
func install(s sink) {
	current = s
	opts := &slog.HandlerOptions{Level: minLevel}
	var h slog.Handler
	if s.format == "json" {
		h = slog.NewJSONHandler(s.w, opts)
	} else {
		h = NewColorTextHandler(s.w, opts, s.color)
	}
	active.Store(slog.New(contextHandler{h}))
}

func update(fn func(*sink)) {
	mu.Lock()
	defer mu.Unlock()
	s := current
	fn(&s)
	install(s)
}

func openOutput(name string) (io.Writer, bool, error) {
	switch strings.ToLower(name) {
	case "stdout":
		return os.Stdout, isTerminal(os.Stdout), nil
	case "stderr":
		return os.Stderr, isTerminal(os.Stderr), nil
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open log file %q: %w", name, err)
	}
	return f, false, nil
}

func validFormat(format string) (string, bool) {
	format = strings.ToLower(format)
	return format, format == "text" || format == "json"
}

// Init configures the process logger. Empty fields keep their current
// setting; unknown levels and formats are ignored.
func Init(cfg Config) error {
	var w io.Writer
	var color bool
	if cfg.Output != "" {
		var err error
		if w, color, err = openOutput(cfg.Output); err != nil {
			return err
		}
	}

	update(func(s *sink) {
		if w != nil {
			s.w, s.color = w, color
		}
		if cfg.Color != nil {
			s.color = *cfg.Color
		}
		if f, ok := validFormat(cfg.Format); ok {
			s.format = f
		}
	})
	SetLevel(cfg.Level)
	return nil
}

// InitWithWriter sends output to w. Used by tests and benchmarks.
func InitWithWriter(w io.Writer, level, format string, enableColor bool) {
	update(func(s *sink) {
		s.w, s.color = w, enableColor
		if f, ok := validFormat(format); ok {
			s.format = f
		}
	})
	SetLevel(level)
}

// SetLevel sets the minimum level. Unknown names are ignored.
func SetLevel(name string) {
	if l, ok := ParseLevel(name); ok {
		minLevel.Set(l.slogLevel())
	}
}

// SetFormat switches between text and json. Unknown names are ignored.
func SetFormat(format string) {
	if f, ok := validFormat(format); ok {
		update(func(s *sink) { s.format = f })
	}
}

// Enabled reports whether messages at l would be emitted.
func Enabled(l Level) bool {
	return l.slogLevel() >= minLevel.Level()
}

func get() *slog.Logger { return active.Load() }

// Debug logs key/value pairs: Debug("GC: victim", KeyDie, 0, KeyBlock, 7).
func Debug(msg string, args ...any) { get().Debug(msg, args...) }

func Info(msg string, args ...any) { get().Info(msg, args...) }

func Warn(msg string, args ...any) { get().Warn(msg, args...) }

func Error(msg string, args ...any) { get().Error(msg, args...) }

// DebugCtx logs with the run fields of the LogContext carried by ctx.
func DebugCtx(ctx context.Context, msg string, args ...any) { get().DebugContext(ctx, msg, args...) }

func InfoCtx(ctx context.Context, msg string, args ...any) { get().InfoContext(ctx, msg, args...) }

func WarnCtx(ctx context.Context, msg string, args ...any) { get().WarnContext(ctx, msg, args...) }

func ErrorCtx(ctx context.Context, msg string, args ...any) { get().ErrorContext(ctx, msg, args...) }

// With returns a logger with args bound to every record.
func With(args ...any) *slog.Logger {
	return get().With(args...)
}

// Duration returns milliseconds elapsed since start.
func Duration(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
