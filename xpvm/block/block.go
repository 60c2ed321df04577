package block

import (
	"fmt"
	"sync/atomic"
)

// Handle identifies a block: the arena offset of its first content byte.
// Content always follows a header, so a valid handle is never 0.
type Handle uint64

const Null Handle = 0

func (h Handle) String() string {
	return fmt.Sprintf("blk@%#x", uint64(h))
}

// Handler is one exception handler table entry. Offsets are byte offsets
// into the block's code; Start and End are inclusive.
type Handler struct {
	Start  uint32 `json:"start"`
	End    uint32 `json:"end"`
	Target uint32 `json:"target"`
}

func (h Handler) Covers(off uint32) bool {
	return h.Start <= off && off <= h.End
}

// NativeRef is a load-time patch: the instruction at Offset receives the
// native table slot of Name.
type NativeRef struct {
	Name   string `json:"name"`
	Offset uint32 `json:"offset"`
}

// Block is the header of one allocation plus a view of its content.
// Length, frame size and the tables are fixed at allocation; only the
// annotation bits, owner and chain target change afterwards.
type Block struct {
	handle     Handle
	name       string
	length     uint32
	frameSize  uint32
	annots     atomic.Uint64
	owner      atomic.Uint64
	chain      atomic.Pointer[Block]
	handlers   []Handler
	nativeRefs []NativeRef
	data       []byte
}

func (b *Block) Handle() Handle          { return b.handle }
func (b *Block) Name() string            { return b.name }
func (b *Block) Length() uint32          { return b.length }
func (b *Block) FrameSize() uint32       { return b.frameSize }
func (b *Block) Handlers() []Handler     { return b.handlers }
func (b *Block) NativeRefs() []NativeRef { return b.nativeRefs }

// Data is the block content. Callers go through the permission checks first.
func (b *Block) Data() []byte { return b.data }

func (b *Block) Annots() uint64 { return b.annots.Load() }

// heldBit marks an owner word taken by Acquire.
const heldBit = 1 << 63

// Owner is the owner of record: the allocating, private or acquiring
// processor, or 0 for a shared block.
func (b *Block) Owner() uint64 { return b.owner.Load() &^ heldBit }

// ChainTarget returns the ancestor recorded by SetChained, or nil.
func (b *Block) ChainTarget() *Block { return b.chain.Load() }

func (b *Block) HasAnnot(bit uint64) bool { return b.annots.Load()&bit != 0 }

func (b *Block) setBits(bits uint64) uint64 {
	for {
		old := b.annots.Load()
		if b.annots.CompareAndSwap(old, old|bits) {
			return old | bits
		}
	}
}

func (b *Block) clearBits(bits uint64) uint64 {
	for {
		old := b.annots.Load()
		if b.annots.CompareAndSwap(old, old&^bits) {
			return old &^ bits
		}
	}
}

func (b *Block) SetVolatile() { b.setBits(Volatile) }

// SetPrivate marks the block private to proc.
func (b *Block) SetPrivate(proc uint64) {
	b.owner.Store(proc)
	b.setBits(Private)
}

// AddTraits sets trait bits and returns the new mask. Bits outside
// TraitMask are refused with ExcIllegalOperation.
func (b *Block) AddTraits(bits uint64) (uint64, Exception) {
	if bits&^TraitMask != 0 {
		return b.Annots(), ExcIllegalOperation
	}
	return b.setBits(bits), ExcNone
}

// DropTraits clears trait bits and returns the new mask.
func (b *Block) DropTraits(bits uint64) (uint64, Exception) {
	if bits&^TraitMask != 0 {
		return b.Annots(), ExcIllegalOperation
	}
	return b.clearBits(bits), ExcNone
}

// governor is the block whose owner and annotations decide access: the
// chain target for a chained block, else the block itself.
func (b *Block) governor() *Block {
	g := b
	for next := g.chain.Load(); next != nil; next = g.chain.Load() {
		g = next
	}
	return g
}

// EffectiveOwner is the owner of the governing block.
func (b *Block) EffectiveOwner() uint64 {
	return b.governor().Owner()
}

// Slice returns content[off:off+n] if it lies inside the block.
func (b *Block) Slice(off, n uint64) ([]byte, Exception) {
	if off > uint64(b.length) || n > uint64(b.length)-off {
		return nil, ExcIllegalAddress
	}
	return b.data[off : off+n], ExcNone
}

func (b *Block) String() string {
	name := b.name
	if name == "" {
		name = "-"
	}
	return fmt.Sprintf("%s %s len=%d frame=%d annots=%s owner=%d",
		b.handle, name, b.length, b.frameSize, AnnotString(b.Annots()), b.Owner())
}
