package xpvm

import (
	"encoding/binary"
	"fmt"

	"github.com/colorfulnotion/xpvm/log"
	"github.com/colorfulnotion/xpvm/vmerrors"
	"github.com/colorfulnotion/xpvm/xpvm/block"
	"github.com/colorfulnotion/xpvm/xpvm/objfile"
)

// BlockTableName names the read-only block that BLOCK_REG points at.
const BlockTableName = "BLOCK_REG"

// Image is an object file loaded into the arena. It is read-only once Load
// returns and is shared by every processor.
type Image struct {
	Blocks []*block.Block // file order; Blocks[0] is the entry point
	Table  *block.Block   // 8-byte little-endian handles, one per block
	File   *objfile.File
}

func (img *Image) Entry() *block.Block {
	return img.Blocks[0]
}

// Lookup finds a loaded block by name.
func (img *Image) Lookup(name string) (*block.Block, bool) {
	for _, b := range img.Blocks {
		if b.Name() == name {
			return b, true
		}
	}
	return nil, false
}

// LoadFile reads an object file and loads it.
func (m *Machine) LoadFile(path string) (*Image, error) {
	f, err := objfile.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return m.Load(f)
}

// Load copies every block of f into the arena, patches native references
// with their slot in the native table and builds the block table. The image
// becomes the one processors spawned afterwards run against.
func (m *Machine) Load(f *objfile.File) (*Image, error) {
	if len(f.Blocks) == 0 {
		return nil, vmerrors.ErrLNoBlocks
	}
	img := &Image{File: f, Blocks: make([]*block.Block, 0, len(f.Blocks))}
	for _, ob := range f.Blocks {
		b, err := m.Arena.AllocateSpec(block.Spec{
			Name:       ob.Name,
			Size:       uint64(len(ob.Content)),
			FrameSize:  ob.FrameSize,
			Annots:     ob.Annots,
			Handlers:   ob.Handlers,
			NativeRefs: ob.NativeRefs,
		})
		if err != nil {
			return nil, fmt.Errorf("load block %q: %w (%w)", ob.Name, vmerrors.ErrLImageTooLarge, err)
		}
		copy(b.Data(), ob.Content)
		if err := m.patchNatives(b); err != nil {
			return nil, err
		}
		img.Blocks = append(img.Blocks, b)
		log.Debug(log.LoadMonitoring, "loaded block", "name", ob.Name, "handle", b.Handle(), "len", b.Length(),
			"frame", b.FrameSize(), "annots", block.AnnotString(b.Annots()), "handlers", len(ob.Handlers))
	}

	table, err := m.Arena.AllocateSpec(block.Spec{
		Name:   BlockTableName,
		Size:   uint64(len(img.Blocks)) * 8,
		Annots: block.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("block table: %w (%w)", vmerrors.ErrLImageTooLarge, err)
	}
	for i, b := range img.Blocks {
		binary.LittleEndian.PutUint64(table.Data()[i*8:], uint64(b.Handle()))
	}
	img.Table = table

	m.mu.Lock()
	m.image = img
	m.mu.Unlock()
	log.Info(log.LoadMonitoring, "image loaded", "blocks", len(img.Blocks), "table", table.Handle(), "used", m.Arena.Stats().Used)
	return img, nil
}

// patchNatives writes the native slot of each reference into the 16-bit
// immediate of the instruction at its offset.
func (m *Machine) patchNatives(b *block.Block) error {
	for _, ref := range b.NativeRefs() {
		slot, ok := m.Natives.Slot(ref.Name)
		if !ok {
			return fmt.Errorf("block %q references %q: %w", b.Name(), ref.Name, vmerrors.ErrLUnresolvedNative)
		}
		ins, exc := b.Slice(uint64(ref.Offset), 4)
		if exc != block.ExcNone {
			return fmt.Errorf("block %q native ref at %d: %w", b.Name(), ref.Offset, vmerrors.ErrLBadNativeRefSlot)
		}
		binary.BigEndian.PutUint16(ins[2:], slot)
		log.Trace(log.LoadMonitoring, "patched native ref", "block", b.Name(), "offset", ref.Offset, "fn", ref.Name, "slot", slot)
	}
	return nil
}
