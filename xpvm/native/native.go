package native

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/colorfulnotion/xpvm/log"
	"github.com/colorfulnotion/xpvm/vmerrors"
	"github.com/colorfulnotion/xpvm/xpvm/block"
)

// MaxArgs is how many registers calln passes to a native function.
const MaxArgs = 6

// Env is the view of the calling processor a native function gets.
type Env interface {
	ProcessorID() uint64
	// ReadString reads a NUL-terminated string from the block h, subject to
	// the caller's read permission. A missing NUL ends the string at the
	// block's end.
	ReadString(h uint64) (string, block.Exception)
	// AllocString copies s plus a NUL into a fresh block.
	AllocString(s string) (uint64, block.Exception)
	Stdout() io.Writer
}

// Func is a native function. A non-zero exception is raised in the caller.
type Func func(env Env, args []uint64) (uint64, block.Exception)

// Registry maps native function names to implementations.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names lists the registered functions in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for n := range r.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve builds the slot table for the configured function names. Slot
// numbers follow the order of names.
func (r *Registry) Resolve(names []string) (*Table, error) {
	t := &Table{slots: make(map[string]uint16, len(names))}
	for _, name := range names {
		if _, dup := t.slots[name]; dup {
			continue
		}
		fn, ok := r.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("native function %q: %w", name, vmerrors.ErrLUnknownNativeFunc)
		}
		if len(t.funcs) > 0xffff {
			return nil, fmt.Errorf("native table full at %q: %w", name, vmerrors.ErrLUnknownNativeFunc)
		}
		t.slots[name] = uint16(len(t.funcs))
		t.names = append(t.names, name)
		t.funcs = append(t.funcs, fn)
	}
	log.Debug(log.NativeMonitoring, "resolved native table", "functions", len(t.funcs))
	return t, nil
}

// Table is the resolved name -> slot mapping used at load time and by calln.
type Table struct {
	names []string
	funcs []Func
	slots map[string]uint16
}

func (t *Table) Len() int { return len(t.funcs) }

func (t *Table) Names() []string { return t.names }

func (t *Table) Slot(name string) (uint16, bool) {
	s, ok := t.slots[name]
	return s, ok
}

// Call invokes slot with at most MaxArgs arguments.
func (t *Table) Call(env Env, slot uint64, args []uint64) (uint64, block.Exception) {
	if slot >= uint64(len(t.funcs)) {
		return 0, block.ExcBadNativeRef
	}
	if len(args) > MaxArgs {
		args = args[:MaxArgs]
	}
	log.Trace(log.NativeMonitoring, "calln", "proc", env.ProcessorID(), "fn", t.names[slot], "args", args)
	return t.funcs[slot](env, args)
}
