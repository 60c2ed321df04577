package log

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"os"
	"runtime"
	"sync"
	"time"
)

const (
	levelMaxVerbosity slog.Level = math.MinInt
	LevelTrace        slog.Level = -8
	LevelDebug                   = slog.LevelDebug
	LevelInfo                    = slog.LevelInfo
	LevelWarn                    = slog.LevelWarn
	LevelError                   = slog.LevelError
	LevelCrit         slog.Level = 12
)

// LevelAlignedString returns a 5-character string containing the name of a Lvl.
func LevelAlignedString(l slog.Level) string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case slog.LevelDebug:
		return "DEBUG"
	case slog.LevelInfo:
		return "INFO "
	case slog.LevelWarn:
		return "WARN "
	case slog.LevelError:
		return "ERROR"
	case LevelCrit:
		return "CRIT "
	default:
		return "unknown level"
	}
}

func LevelString(l slog.Level) string {
	switch l {
	case LevelTrace:
		return "trace"
	case slog.LevelDebug:
		return "debug"
	case slog.LevelInfo:
		return "info"
	case slog.LevelWarn:
		return "warn"
	case slog.LevelError:
		return "error"
	case LevelCrit:
		return "crit"
	default:
		return "unknown"
	}
}

// Logger writes key/value pairs to a Handler
type Logger interface {
	// With returns a new Logger that has this logger's attributes plus the given attributes
	With(ctx ...interface{}) Logger

	// Log logs a message at the specified level with context key/value pairs
	Log(level slog.Level, module string, msg string, ctx ...interface{})

	Trace(module string, msg string, ctx ...interface{})
	Debug(module string, msg string, ctx ...interface{})
	Info(module string, msg string, ctx ...interface{})
	Warn(module string, msg string, ctx ...any)
	Error(module string, msg string, ctx ...interface{})

	// Crit logs a message at the crit level with context key/value pairs, and exits
	Crit(module string, msg string, ctx ...interface{})

	// Write logs a message at the specified level
	Write(level slog.Level, module string, msg string, attrs ...any)

	// Enabled reports whether l emits log records at the given context and level.
	Enabled(ctx context.Context, level slog.Level) bool

	// Handler returns the underlying handler of the inner logger.
	Handler() slog.Handler

	// RecordLogs starts keeping a copy of every emitted record in memory.
	RecordLogs()

	// GetRecordedLogs renders the recorded records as text, one per line.
	GetRecordedLogs() ([]byte, error)
}

type recorder struct {
	mu      sync.Mutex
	records []slog.Record
}

type logger struct {
	inner *slog.Logger
	rec   *recorder
}

// NewLogger returns a logger with the specified handler set
func NewLogger(h slog.Handler) Logger {
	return &logger{
		inner: slog.New(h),
		rec:   &recorder{},
	}
}

func (l *logger) Handler() slog.Handler {
	return l.inner.Handler()
}

// Write logs a message at the specified level.
func (l *logger) Write(level slog.Level, module string, msg string, attrs ...any) {
	if !l.inner.Enabled(context.Background(), level) && !l.recording() {
		return
	}

	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	if module != "" {
		r.AddAttrs(slog.String("module", module))
	}
	r.Add(attrs...)

	if l.recording() {
		l.rec.mu.Lock()
		l.rec.records = append(l.rec.records, r.Clone())
		l.rec.mu.Unlock()
	}
	if l.inner.Enabled(context.Background(), level) {
		l.inner.Handler().Handle(context.Background(), r)
	}
}

func (l *logger) recording() bool {
	if l.rec == nil {
		return false
	}
	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()
	return l.rec.records != nil
}

func (l *logger) RecordLogs() {
	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()
	if l.rec.records == nil {
		l.rec.records = make([]slog.Record, 0)
	}
}

func (l *logger) GetRecordedLogs() ([]byte, error) {
	l.rec.mu.Lock()
	records := append([]slog.Record(nil), l.rec.records...)
	l.rec.mu.Unlock()

	var buf bytes.Buffer
	h := NewTerminalHandlerWithLevel(&buf, levelMaxVerbosity, false)
	for _, r := range records {
		if err := h.Handle(context.Background(), r); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (l *logger) Log(level slog.Level, module string, msg string, attrs ...any) {
	l.Write(level, module, msg, attrs...)
}

func (l *logger) With(ctx ...interface{}) Logger {
	return &logger{l.inner.With(ctx...), l.rec}
}

// Enabled reports whether l emits log records at the given context and level.
func (l *logger) Enabled(ctx context.Context, level slog.Level) bool {
	return l.inner.Enabled(ctx, level)
}

func (l *logger) Trace(module string, msg string, ctx ...interface{}) {
	l.Write(LevelTrace, module, msg, ctx...)
}

func (l *logger) Debug(module string, msg string, ctx ...interface{}) {
	l.Write(slog.LevelDebug, module, msg, ctx...)
}

func (l *logger) Info(module string, msg string, ctx ...interface{}) {
	l.Write(slog.LevelInfo, module, msg, ctx...)
}

func (l *logger) Warn(module string, msg string, ctx ...any) {
	l.Write(slog.LevelWarn, module, msg, ctx...)
}

func (l *logger) Error(module string, msg string, ctx ...interface{}) {
	l.Write(slog.LevelError, module, msg, ctx...)
}

func (l *logger) Crit(module string, msg string, ctx ...interface{}) {
	l.Write(LevelCrit, module, msg, ctx...)
	os.Exit(1)
}
