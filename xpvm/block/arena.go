package block

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/colorfulnotion/xpvm/log"
	"github.com/colorfulnotion/xpvm/vmerrors"
)

const (
	// HeaderSize is the arena space reserved in front of every block:
	// length(4) frame_size(4) annots(8) owner(8) chain(8) handlers(8) native_refs(8).
	HeaderSize = 48

	// Slack is kept free at the top of the arena.
	Slack = 4

	// MaxBlockSize is the largest length a header can describe.
	MaxBlockSize = math.MaxUint32
)

// Spec describes a block to allocate.
type Spec struct {
	Name       string
	Size       uint64
	FrameSize  uint32
	Annots     uint64
	Owner      uint64 // owner of record; 0 leaves the block shared
	Handlers   []Handler
	NativeRefs []NativeRef
}

// Stats is a snapshot of arena usage.
type Stats struct {
	Capacity  uint64 `json:"capacity"`
	Used      uint64 `json:"used"`
	Allocated uint64 `json:"allocated"`
	Freed     uint64 `json:"freed"`
	Live      int    `json:"live"`
}

// Arena is a single preallocated, zeroed region handed out by a bump
// pointer. Every allocation is recorded in a validity registry; nothing is
// ever returned to the arena.
type Arena struct {
	mu       sync.Mutex
	mem      []byte
	next     uint64
	registry sync.Map // Handle -> *Block

	chainMu   sync.Mutex
	allocated atomic.Uint64
	freed     atomic.Uint64
}

func NewArena(capacity uint64) *Arena {
	return &Arena{mem: make([]byte, capacity)}
}

func (a *Arena) Capacity() uint64 {
	return uint64(len(a.mem))
}

func roundUp4(n uint64) uint64 {
	return (n + 3) &^ 3
}

// Footprint is the arena space an allocation of size bytes consumes.
func Footprint(size uint64) uint64 {
	return HeaderSize + roundUp4(size)
}

// Allocate reserves a zeroed block of size bytes with no annotations.
func (a *Arena) Allocate(size uint64) (*Block, error) {
	return a.AllocateSpec(Spec{Size: size})
}

// AllocateSpec reserves a block described by s. A request the header cannot
// describe fails with ErrTooLarge; running out of arena fails with
// vmerrors.ErrFArenaExhausted.
func (a *Arena) AllocateSpec(s Spec) (*Block, error) {
	if s.Size > MaxBlockSize {
		return nil, fmt.Errorf("allocate %d bytes: %w", s.Size, ErrTooLarge)
	}

	a.mu.Lock()
	start := a.next
	end := start + Footprint(s.Size)
	if end > a.Capacity()-min(Slack, a.Capacity()) {
		a.mu.Unlock()
		log.Warn(log.AllocMonitoring, "arena exhausted", "request", s.Size, "used", start, "capacity", a.Capacity())
		return nil, fmt.Errorf("allocate %d bytes (used %d of %d): %w", s.Size, start, a.Capacity(), vmerrors.ErrFArenaExhausted)
	}
	a.next = end
	a.mu.Unlock()

	h := Handle(start + HeaderSize)
	b := &Block{
		handle:     h,
		name:       s.Name,
		length:     uint32(s.Size),
		frameSize:  s.FrameSize,
		handlers:   s.Handlers,
		nativeRefs: s.NativeRefs,
		data:       a.mem[uint64(h) : uint64(h)+s.Size : uint64(h)+s.Size],
	}
	b.annots.Store(s.Annots)
	b.owner.Store(s.Owner)
	a.registry.Store(h, b)
	a.allocated.Add(1)
	log.Trace(log.AllocMonitoring, "allocate", "handle", h, "size", s.Size, "next", end)
	return b, nil
}

// Lookup validates h against the registry.
func (a *Arena) Lookup(h Handle) (*Block, bool) {
	v, ok := a.registry.Load(h)
	if !ok {
		return nil, false
	}
	return v.(*Block), true
}

// Free drops h from the registry. The space stays consumed.
func (a *Arena) Free(h Handle) error {
	if _, ok := a.registry.LoadAndDelete(h); !ok {
		return fmt.Errorf("free %s: %w", h, ErrNotAllocated)
	}
	a.freed.Add(1)
	return nil
}

// Chain records parent's ultimate ancestor as child's chain target and
// returns that ancestor. Chains are flattened here, so a chained block is
// always one hop from the block that governs it.
func (a *Arena) Chain(child, parent *Block) (*Block, Exception) {
	a.chainMu.Lock()
	defer a.chainMu.Unlock()

	if child == parent || child.HasAnnot(Private) || parent.HasAnnot(Private) {
		return nil, ExcIllegalChain
	}
	if _, ok := a.Lookup(parent.Handle()); !ok {
		return nil, ExcIllegalChain
	}
	root := parent.governor()
	if root == child {
		return nil, ExcIllegalChain
	}
	child.chain.Store(root)
	child.setBits(Chained)
	log.Trace(log.AllocMonitoring, "chain", "child", child.Handle(), "root", root.Handle())
	return root, ExcNone
}

// Blocks returns the live blocks ordered by handle.
func (a *Arena) Blocks() []*Block {
	var out []*Block
	a.registry.Range(func(_, v any) bool {
		out = append(out, v.(*Block))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].handle < out[j].handle })
	return out
}

func (a *Arena) Stats() Stats {
	a.mu.Lock()
	used := a.next
	a.mu.Unlock()
	allocated, freed := a.allocated.Load(), a.freed.Load()
	return Stats{
		Capacity:  a.Capacity(),
		Used:      used,
		Allocated: allocated,
		Freed:     freed,
		Live:      int(allocated - freed),
	}
}
