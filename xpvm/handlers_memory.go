package xpvm

import (
	"encoding/binary"
	"math"

	"github.com/colorfulnotion/xpvm/xpvm/block"
	"github.com/colorfulnotion/xpvm/xpvm/program"
)

// Block content is little-endian. The A form takes the offset from rk, the
// B form from the unsigned const8.

func loadI8(b []byte) uint64  { return uint64(int64(int8(b[0]))) }
func loadI16(b []byte) uint64 { return uint64(int64(int16(binary.LittleEndian.Uint16(b)))) }
func loadI32(b []byte) uint64 { return uint64(int64(int32(binary.LittleEndian.Uint32(b)))) }
func loadU64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }

// loadF32 widens a stored float to the double held in registers.
func loadF32(b []byte) uint64 {
	return math.Float64bits(float64(math.Float32frombits(binary.LittleEndian.Uint32(b))))
}

func storeU8(b []byte, v uint64)  { b[0] = byte(v) }
func storeU16(b []byte, v uint64) { binary.LittleEndian.PutUint16(b, uint16(v)) }
func storeU32(b []byte, v uint64) { binary.LittleEndian.PutUint32(b, uint32(v)) }
func storeU64(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }

func storeF32(b []byte, v uint64) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(float32(math.Float64frombits(v))))
}

// memRef resolves the block in rj and the offset operand.
func (p *Processor) memRef(in program.Instruction, imm bool) (*block.Block, uint64, bool) {
	h := p.reg[in.Rj]
	off := p.reg[in.Rk]
	if imm {
		off = in.Const8()
	}
	b, ok := p.lookup(h)
	if !ok {
		p.raise(block.ExcIllegalAddress, h)
		return nil, 0, false
	}
	return b, off, true
}

func loadHandler(width uint64, imm bool, conv func([]byte) uint64) opcodeHandler {
	return func(p *Processor, in program.Instruction) {
		b, off, ok := p.memRef(in, imm)
		if !ok {
			return
		}
		buf, exc := b.Slice(off, width)
		if exc == block.ExcNone {
			exc = b.CheckRead(p.id)
		}
		if exc != block.ExcNone {
			p.raise(exc, off)
			return
		}
		p.setReg(in.Ri, conv(buf))
	}
}

// storeHandler writes reg[ri] into the block in rj.
func storeHandler(width uint64, imm bool, put func([]byte, uint64)) opcodeHandler {
	return func(p *Processor, in program.Instruction) {
		b, off, ok := p.memRef(in, imm)
		if !ok {
			return
		}
		buf, exc := b.Slice(off, width)
		if exc == block.ExcNone {
			exc = b.CheckWrite(p.id)
		}
		if exc != block.ExcNone {
			p.raise(exc, off)
			return
		}
		put(buf, p.reg[in.Ri])
		if p.tr != nil {
			p.tr.SetChangedMemory(uint64(b.Handle()), off, buf)
		}
	}
}

func handleLDIMM(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, uint64(in.SConst16()))
}

// handleLDIMM2 shifts 16 more bits into ri, building wide constants.
func handleLDIMM2(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, p.reg[in.Ri]<<16|uint64(in.Const16()))
}

// tableEntry reads entry idx of the block table.
func (p *Processor) tableEntry(idx uint64) (*block.Block, bool) {
	if idx > math.MaxUint64/8 {
		p.raise(block.ExcBadBlock, idx)
		return nil, false
	}
	buf, exc := p.blockReg.Slice(idx*8, 8)
	if exc != block.ExcNone {
		p.raise(block.ExcBadBlock, idx)
		return nil, false
	}
	b, ok := p.lookup(binary.LittleEndian.Uint64(buf))
	if !ok {
		p.raise(block.ExcBadBlock, idx)
		return nil, false
	}
	return b, true
}

func handleLDBLKID(p *Processor, in program.Instruction) {
	b, ok := p.tableEntry(uint64(in.Const16()))
	if !ok {
		return
	}
	p.setReg(in.Ri, uint64(b.Handle()))
}
