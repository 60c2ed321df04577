package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	ProcMonitoring   = "xpvm_proc"   // fetch/execute, spawn and join
	AllocMonitoring  = "xpvm_alloc"  // arena allocator
	LoadMonitoring   = "xpvm_load"   // object file loader
	ExcMonitoring    = "xpvm_exc"    // raise and unwind
	NativeMonitoring = "xpvm_native" // native call bridge
	TraceMonitoring  = "xpvm_trace"  // instruction trace sinks
	CLIMonitoring    = "xpvm_cli"
)

// Output formats accepted by NewHandler.
const (
	FormatTerminal = "terminal"
	FormatJSON     = "json"
)

var root atomic.Value

func init() {
	root.Store(NewLogger(DiscardHandler()))
}

func ParseLevel(lvl string) (slog.Level, error) {
	switch strings.ToUpper(lvl) {
	case "MAX", "MAXVERBOSITY":
		return levelMaxVerbosity, nil
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	case "CRIT", "CRITICAL":
		return LevelCrit, nil
	default:
		return 0, fmt.Errorf("invalid level: %s", lvl)
	}
}

// NewHandler builds the handler for format. An empty format means terminal.
func NewHandler(wr io.Writer, lvl slog.Level, format string) (slog.Handler, error) {
	switch format {
	case "", FormatTerminal:
		return NewTerminalHandlerWithLevel(wr, lvl, true), nil
	case FormatJSON:
		return JSONHandlerWithLevel(wr, lvl), nil
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
}

func InitLogger(logLevel, format string) {
	logLvl, err := ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	h, err := NewHandler(os.Stderr, logLvl, format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	SetDefault(NewLogger(h))
}

// SetDefault sets the default global logger
func SetDefault(l Logger) {
	root.Store(l)
	if lg, ok := l.(*logger); ok {
		slog.SetDefault(lg.inner)
	}
}

// Root returns the root logger
func Root() Logger {
	return root.Load().(Logger)
}

var knownModules = []string{ProcMonitoring, AllocMonitoring, LoadMonitoring, ExcMonitoring, NativeMonitoring, TraceMonitoring, CLIMonitoring}

// --- Module management ---
// moduleEnabled keeps track of whether a module's logging is enabled.
var (
	moduleMu      sync.RWMutex
	moduleEnabled = func() map[string]bool {
		m := make(map[string]bool, len(knownModules))
		for _, module := range knownModules {
			m[module] = false
		}
		return m
	}()
)

// EnableModule enables logging for the specified module.
func EnableModule(module string) {
	moduleMu.Lock()
	defer moduleMu.Unlock()
	moduleEnabled[module] = true
}

// EnableModules enables a comma separated list of modules, e.g. "xpvm_proc,xpvm_exc".
// "all" enables every known module.
func EnableModules(modules string) {
	for _, m := range strings.Split(modules, ",") {
		m = strings.TrimSpace(m)
		switch m {
		case "":
		case "all":
			for _, k := range knownModules {
				EnableModule(k)
			}
		default:
			EnableModule(m)
		}
	}
}

// DisableModule disables logging for the specified module.
func DisableModule(module string) {
	moduleMu.Lock()
	defer moduleMu.Unlock()
	moduleEnabled[module] = false
}

// isModuleEnabled checks if logging is enabled for the given module.
func isModuleEnabled(module string) bool {
	moduleMu.RLock()
	defer moduleMu.RUnlock()
	enabled, ok := moduleEnabled[module]
	return ok && enabled
}

// --- Adjusted logging functions ---

// Trace logs a message at the trace level for a specific module.
func Trace(module string, msg string, ctx ...interface{}) {
	if !isModuleEnabled(module) {
		return
	}
	Root().Write(LevelTrace, module, msg, ctx...)
}

// Debug logs a message at the debug level for a specific module.
func Debug(module string, msg string, ctx ...interface{}) {
	if !isModuleEnabled(module) {
		return
	}
	Root().Write(slog.LevelDebug, module, msg, ctx...)
}

// The rest of the logging functions (Info, Warn, Error, Crit, New) dont filter on module
func Info(module string, msg string, ctx ...interface{}) {
	Root().Write(slog.LevelInfo, module, msg, ctx...)
}

func Warn(module string, msg string, ctx ...interface{}) {
	Root().Write(slog.LevelWarn, module, msg, ctx...)
}

func Error(module string, msg string, ctx ...interface{}) {
	Root().Write(slog.LevelError, module, msg, ctx...)
}

func Crit(module string, msg string, ctx ...interface{}) {
	Root().Write(LevelCrit, module, msg, ctx...)
	os.Exit(1)
}

func RecordLogs() {
	Root().RecordLogs()
}

func GetRecordedLogs() ([]byte, error) {
	return Root().GetRecordedLogs()
}

func New(ctx ...interface{}) Logger {
	return Root().With(ctx...)
}
