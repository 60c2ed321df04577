package xpvm

import (
	"github.com/colorfulnotion/xpvm/log"
	"github.com/colorfulnotion/xpvm/xpvm/block"
	"github.com/colorfulnotion/xpvm/xpvm/program"
)

// operand resolves a register to a block for the ownership opcodes, which
// report unknown handles as ExcBadBlock.
func (p *Processor) operand(r uint8) (*block.Block, bool) {
	b, ok := p.lookup(p.reg[r])
	if !ok {
		p.raise(block.ExcBadBlock, p.reg[r])
		return nil, false
	}
	return b, true
}

// allocBlock allocates reg[rj] bytes and leaves the handle in ri.
func (p *Processor) allocBlock(in program.Instruction, private bool) {
	size := p.reg[in.Rj]
	b, exc := p.alloc(block.Spec{Size: size, Owner: p.id})
	if p.halted {
		return
	}
	if exc != block.ExcNone {
		p.raise(exc, size)
		return
	}
	if private {
		b.SetPrivate(p.id)
	}
	p.setReg(in.Ri, uint64(b.Handle()))
}

func handleALLOC_BLK(p *Processor, in program.Instruction) {
	p.allocBlock(in, false)
}

func handleALLOC_PRIVATE_BLK(p *Processor, in program.Instruction) {
	p.allocBlock(in, true)
}

// handleACQUIRE_BLK never blocks: ri is 1 when the block was taken, 0 when
// another processor holds it.
func handleACQUIRE_BLK(p *Processor, in program.Instruction) {
	b, ok := p.operand(in.Rj)
	if !ok {
		return
	}
	acquired, exc := b.Acquire(p.id)
	if exc != block.ExcNone {
		p.raise(exc, uint64(b.Handle()))
		return
	}
	log.Trace(log.ProcMonitoring, "acquire", "proc", p.id, "block", b.Handle(), "acquired", acquired)
	p.setReg(in.Ri, b2u(acquired))
}

func handleRELEASE_BLK(p *Processor, in program.Instruction) {
	b, ok := p.operand(in.Rj)
	if !ok {
		return
	}
	if exc := b.Release(p.id); exc != block.ExcNone {
		p.raise(exc, uint64(b.Handle()))
		return
	}
	log.Trace(log.ProcMonitoring, "release", "proc", p.id, "block", b.Handle())
	p.setReg(in.Ri, 1)
}

// traits applies atraits/dtraits: rj is the block, rk the mask, and ri
// receives the resulting annotations.
func (p *Processor) traits(in program.Instruction, apply func(*block.Block, uint64) (uint64, block.Exception)) {
	b, ok := p.operand(in.Rj)
	if !ok {
		return
	}
	if exc := b.CheckRead(p.id); exc != block.ExcNone {
		p.raise(exc, uint64(b.Handle()))
		return
	}
	annots, exc := apply(b, p.reg[in.Rk])
	if exc != block.ExcNone {
		p.raise(exc, p.reg[in.Rk])
		return
	}
	p.setReg(in.Ri, annots)
}

func handleATRAITS(p *Processor, in program.Instruction) {
	p.traits(in, (*block.Block).AddTraits)
}

func handleDTRAITS(p *Processor, in program.Instruction) {
	p.traits(in, (*block.Block).DropTraits)
}

func handleRANNOTS(p *Processor, in program.Instruction) {
	b, ok := p.operand(in.Rj)
	if !ok {
		return
	}
	p.setReg(in.Ri, b.Annots())
}

func handleTOWNER(p *Processor, in program.Instruction) {
	b, ok := p.operand(in.Rj)
	if !ok {
		return
	}
	p.setReg(in.Ri, b.EffectiveOwner())
}

// handleCHAIN_BLK chains the block in rj to the one in rk; ri receives the
// ancestor that now governs it.
func handleCHAIN_BLK(p *Processor, in program.Instruction) {
	child, ok := p.operand(in.Rj)
	if !ok {
		return
	}
	parent, ok := p.operand(in.Rk)
	if !ok {
		return
	}
	if exc := child.CheckWrite(p.id); exc != block.ExcNone {
		p.raise(exc, uint64(child.Handle()))
		return
	}
	root, exc := p.m.Arena.Chain(child, parent)
	if exc != block.ExcNone {
		p.raise(exc, uint64(child.Handle()))
		return
	}
	p.setReg(in.Ri, uint64(root.Handle()))
}
