package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/colorfulnotion/xpvm/common"
)

const termTimeFormat = "01-02|15:04:05.000"

type discardHandler struct{}

// DiscardHandler returns a no-op handler
func DiscardHandler() slog.Handler {
	return &discardHandler{}
}

func (h *discardHandler) Handle(_ context.Context, r slog.Record) error {
	return nil
}

func (h *discardHandler) Enabled(_ context.Context, level slog.Level) bool {
	return false
}

func (h *discardHandler) WithGroup(name string) slog.Handler {
	return h
}

func (h *discardHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

// TerminalHandler formats records as single human-readable lines:
//
//	INFO [10-15|12:00:00.000] spawned processor  module=xpvm_proc id=1
type TerminalHandler struct {
	mu       *sync.Mutex
	wr       io.Writer
	lvl      slog.Level
	useColor bool
	attrs    []slog.Attr
}

// NewTerminalHandlerWithLevel returns a handler which writes records at or
// above lvl to wr, optionally colouring the level tag.
func NewTerminalHandlerWithLevel(wr io.Writer, lvl slog.Level, useColor bool) *TerminalHandler {
	return &TerminalHandler{
		mu:       new(sync.Mutex),
		wr:       wr,
		lvl:      lvl,
		useColor: useColor,
	}
}

func (h *TerminalHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	lvl := LevelAlignedString(r.Level)
	if h.useColor {
		lvl = levelColor(r.Level) + lvl + common.ColorReset
	}
	fmt.Fprintf(&buf, "%s[%s] %-40s", lvl, r.Time.Format(termTimeFormat), r.Message)
	for _, a := range h.attrs {
		writeAttr(&buf, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&buf, a)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.wr.Write(buf.Bytes())
	return err
}

func (h *TerminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.lvl
}

func (h *TerminalHandler) WithGroup(name string) slog.Handler {
	return h
}

func (h *TerminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &TerminalHandler{
		mu:       h.mu,
		wr:       h.wr,
		lvl:      h.lvl,
		useColor: h.useColor,
		attrs:    merged,
	}
}

func writeAttr(buf *bytes.Buffer, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	fmt.Fprintf(buf, " %s=%v", a.Key, a.Value.Resolve())
}

func levelColor(l slog.Level) string {
	switch {
	case l >= LevelCrit:
		return common.ColorMagenta
	case l >= slog.LevelError:
		return common.ColorRed
	case l >= slog.LevelWarn:
		return common.ColorYellow
	case l >= slog.LevelInfo:
		return common.ColorGreen
	case l >= slog.LevelDebug:
		return common.ColorCyan
	default:
		return common.ColorBlue
	}
}

// JSONHandlerWithLevel returns a handler which writes records at or above
// lvl as JSON lines, one object per record.
func JSONHandlerWithLevel(wr io.Writer, lvl slog.Level) slog.Handler {
	return slog.NewJSONHandler(wr, &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && len(groups) == 0 {
				if l, ok := a.Value.Any().(slog.Level); ok {
					return slog.String(slog.LevelKey, LevelString(l))
				}
			}
			return a
		},
	})
}
