package xpvm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"sync"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/colorfulnotion/xpvm/log"
	"github.com/colorfulnotion/xpvm/vmerrors"
	"github.com/colorfulnotion/xpvm/xpvm/block"
	"github.com/colorfulnotion/xpvm/xpvm/native"
	"github.com/colorfulnotion/xpvm/xpvm/trace"
)

const (
	DefaultMemory        = 16 << 20
	DefaultMaxProcessors = 16
	DefaultMaxArgs       = 10
)

var errNoImage = errors.New("no image loaded")

// Options configures a Machine. Zero values take the defaults.
type Options struct {
	Memory        uint64
	MaxProcessors int
	MaxArgs       int
	Natives       *native.Table
	Stdout        io.Writer
	Trace         trace.Sink
}

// Machine owns the arena, the loaded image and the processors running
// against it.
type Machine struct {
	Arena         *block.Arena
	Natives       *native.Table
	Stdout        io.Writer
	Trace         trace.Sink
	MaxProcessors int
	MaxArgs       int

	// OpenTelemetry; a span is recorded per processor run when SendTrace is set.
	Tp        *sdktrace.TracerProvider
	SendTrace bool

	mu     sync.Mutex
	image  *Image
	procs  map[uint64]*procHandle
	nextID uint64
	live   int
	wg     sync.WaitGroup
}

type procHandle struct {
	id     uint64
	done   chan struct{}
	result Result
}

func NewMachine(opts Options) (*Machine, error) {
	if opts.Memory == 0 {
		opts.Memory = DefaultMemory
	}
	if opts.MaxProcessors <= 0 {
		opts.MaxProcessors = DefaultMaxProcessors
	}
	if opts.MaxArgs <= 0 {
		opts.MaxArgs = DefaultMaxArgs
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Natives == nil {
		tbl, err := native.Builtins().Resolve(native.DefaultFunctions)
		if err != nil {
			return nil, err
		}
		opts.Natives = tbl
	}
	return &Machine{
		Arena:         block.NewArena(opts.Memory),
		Natives:       opts.Natives,
		Stdout:        opts.Stdout,
		Trace:         opts.Trace,
		MaxProcessors: opts.MaxProcessors,
		MaxArgs:       opts.MaxArgs,
		procs:         make(map[uint64]*procHandle),
	}, nil
}

func (m *Machine) Image() *Image {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.image
}

// Spawn starts a processor on its own OS thread. A nil entry starts at the
// image's entry block. args are copied into r0 onwards.
func (m *Machine) Spawn(ctx context.Context, entry *block.Block, args []uint64) (uint64, error) {
	img := m.Image()
	if img == nil {
		return 0, errNoImage
	}
	if entry == nil {
		entry = img.Entry()
	}
	if len(args) > m.MaxArgs {
		return 0, fmt.Errorf("spawn with %d args (max %d): %w", len(args), m.MaxArgs, vmerrors.ErrPTooManyArgs)
	}

	m.mu.Lock()
	if m.live >= m.MaxProcessors {
		m.mu.Unlock()
		return 0, fmt.Errorf("%d processors running: %w", m.MaxProcessors, vmerrors.ErrPTooManyProcessors)
	}
	m.nextID++
	h := &procHandle{id: m.nextID, done: make(chan struct{})}
	m.procs[h.id] = h
	m.live++
	m.mu.Unlock()

	p := newProcessor(m, h.id, img)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		h.result = p.start(ctx, entry, args)

		m.mu.Lock()
		m.live--
		m.mu.Unlock()
		close(h.done)
		log.Debug(log.ProcMonitoring, "processor finished", "id", h.id, "status", h.result.Status, "value", h.result.Value, "steps", h.result.Steps)
	}()
	log.Debug(log.ProcMonitoring, "spawned processor", "id", h.id, "entry", entry.Handle(), "args", len(args))
	return h.id, nil
}

// SpawnMain starts a processor at the entry block with argv copied into
// fresh NUL-terminated blocks whose handles are passed in r0 onwards.
func (m *Machine) SpawnMain(ctx context.Context, argv []string) (uint64, error) {
	if len(argv) > m.MaxArgs {
		return 0, fmt.Errorf("%d command line args (max %d): %w", len(argv), m.MaxArgs, vmerrors.ErrPTooManyArgs)
	}
	args := make([]uint64, len(argv))
	for i, s := range argv {
		b, err := m.Arena.AllocateSpec(block.Spec{Name: fmt.Sprintf("argv[%d]", i), Size: uint64(len(s)) + 1})
		if err != nil {
			return 0, fmt.Errorf("copy argv[%d]: %w", i, err)
		}
		copy(b.Data(), s)
		args[i] = uint64(b.Handle())
	}
	return m.Spawn(ctx, nil, args)
}

func (m *Machine) handle(id uint64) (*procHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.procs[id]
	if !ok {
		return nil, fmt.Errorf("processor %d: %w", id, vmerrors.ErrPUnknownProcessor)
	}
	return h, nil
}

// Join blocks until processor id terminates and returns its result. Results
// stay available, so a processor may be joined more than once.
func (m *Machine) Join(id uint64) (Result, error) {
	h, err := m.handle(id)
	if err != nil {
		return Result{}, err
	}
	<-h.done
	return h.result, nil
}

// TryJoin is the non-blocking Join. ok is false while the processor runs.
func (m *Machine) TryJoin(id uint64) (res Result, ok bool, err error) {
	h, err := m.handle(id)
	if err != nil {
		return Result{}, false, err
	}
	select {
	case <-h.done:
		return h.result, true, nil
	default:
		return Result{Proc: id, Status: StatusRunning}, false, nil
	}
}

// Run spawns the entry processor with argv and waits for it.
func (m *Machine) Run(ctx context.Context, argv []string) (Result, error) {
	id, err := m.SpawnMain(ctx, argv)
	if err != nil {
		return Result{}, err
	}
	return m.Join(id)
}

// Results returns the results of every terminated processor, ordered by id.
func (m *Machine) Results() []Result {
	m.mu.Lock()
	handles := make([]*procHandle, 0, len(m.procs))
	for _, h := range m.procs {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	out := make([]Result, 0, len(handles))
	for _, h := range handles {
		select {
		case <-h.done:
			out = append(out, h.result)
		default:
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Proc < out[j].Proc })
	return out
}

// Wait blocks until every spawned processor has terminated.
func (m *Machine) Wait() {
	m.wg.Wait()
}
