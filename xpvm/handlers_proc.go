package xpvm

import (
	"github.com/colorfulnotion/xpvm/log"
	"github.com/colorfulnotion/xpvm/xpvm/block"
	"github.com/colorfulnotion/xpvm/xpvm/program"
)

// handleINIT_PROC starts a processor at the block in rj with const8
// arguments from rj+1 onwards; ri receives its id.
func handleINIT_PROC(p *Processor, in program.Instruction) {
	entry, ok := p.operand(in.Rj)
	if !ok {
		return
	}
	if exc := entry.CheckExecute(); exc != block.ExcNone {
		p.raise(exc, uint64(entry.Handle()))
		return
	}
	first, n := uint64(in.Rj)+1, in.Const8()
	if first+n > NumRegisters {
		p.raise(block.ExcIllegalOperation, n)
		return
	}
	args := make([]uint64, n)
	copy(args, p.reg[first:first+n])
	id, err := p.m.Spawn(p.ctx, entry, args)
	if err != nil {
		log.Debug(log.ProcMonitoring, "init_proc failed", "proc", p.id, "err", err)
		p.raise(block.ExcIllegalOperation, n)
		return
	}
	p.setReg(in.Ri, id)
}

// handleJOIN waits for the processor in rj: ri receives its return value,
// rk its status.
func handleJOIN(p *Processor, in program.Instruction) {
	id := p.reg[in.Rj]
	if id == p.id {
		p.raise(block.ExcIllegalOperation, id)
		return
	}
	res, err := p.m.Join(id)
	if err != nil {
		p.raise(block.ExcIllegalOperation, id)
		return
	}
	p.setReg(in.Ri, res.Value)
	p.setReg(in.Rk, uint64(res.Status))
}

// handleJOIN2 is the non-blocking join. A running processor reports
// StatusRunning.
func handleJOIN2(p *Processor, in program.Instruction) {
	res, _, err := p.m.TryJoin(p.reg[in.Rj])
	if err != nil {
		p.raise(block.ExcIllegalOperation, p.reg[in.Rj])
		return
	}
	p.setReg(in.Ri, res.Value)
	p.setReg(in.Rk, uint64(res.Status))
}

func handleWHOAMI(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, p.id)
}
