package xpvm

import (
	"github.com/colorfulnotion/xpvm/xpvm/block"
	"github.com/colorfulnotion/xpvm/xpvm/native"
	"github.com/colorfulnotion/xpvm/xpvm/program"
)

// loadFunc reads a block table entry that must be executable.
func (p *Processor) loadFunc(ri uint8, idx uint64) {
	b, ok := p.tableEntry(idx)
	if !ok {
		return
	}
	if exc := b.CheckExecute(); exc != block.ExcNone {
		p.raise(exc, uint64(b.Handle()))
		return
	}
	p.setReg(ri, uint64(b.Handle()))
}

func handleLDFUNC(p *Processor, in program.Instruction) {
	p.loadFunc(in.Ri, uint64(in.Const16()))
}

func handleLDFUNC_REG(p *Processor, in program.Instruction) {
	p.loadFunc(in.Ri, p.reg[in.Rj])
}

// handleCALL calls the block in rj; its return value lands in ri. Arguments
// travel in the shared register file, so const8 is informational.
func handleCALL(p *Processor, in program.Instruction) {
	target, ok := p.operand(in.Rj)
	if !ok {
		return
	}
	if exc := target.CheckExecute(); exc != block.ExcNone {
		p.raise(exc, uint64(target.Handle()))
		return
	}
	p.call(target, in.Ri)
}

// handleCALLN calls the native function whose slot is in rj with const8
// arguments taken from r0 onwards.
func handleCALLN(p *Processor, in program.Instruction) {
	slot := p.reg[in.Rj]
	if p.m.Natives == nil {
		p.raise(block.ExcBadNativeRef, slot)
		return
	}
	n := min(in.Const8(), native.MaxArgs)
	args := make([]uint64, n)
	copy(args, p.reg[:n])
	ret, exc := p.m.Natives.Call(p, slot, args)
	if p.halted {
		return
	}
	if exc != block.ExcNone {
		p.raise(exc, slot)
		return
	}
	p.setReg(in.Ri, ret)
}

func handleRET(p *Processor, in program.Instruction) {
	p.ret(p.reg[in.Rj])
}

func handleTHROW(p *Processor, in program.Instruction) {
	p.raise(block.Exception(p.reg[in.Ri]), p.reg[in.Rj])
}

// handleRETRIEVE reads the exception caught by the active frame: the number
// into ri, the payload into rj.
func handleRETRIEVE(p *Processor, in program.Instruction) {
	f := p.top()
	p.setReg(in.Ri, uint64(f.exc))
	p.setReg(in.Rj, f.payload)
}
