package xpvm

import (
	"math"

	"github.com/colorfulnotion/xpvm/xpvm/block"
	"github.com/colorfulnotion/xpvm/xpvm/program"
)

// Integer arithmetic wraps in two's complement. The B form const8 is sign
// extended.

func handleADDL(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, p.reg[in.Rj]+p.reg[in.Rk])
}

func handleADDL_IMM(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, p.reg[in.Rj]+uint64(in.SConst8()))
}

func handleSUBL(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, p.reg[in.Rj]-p.reg[in.Rk])
}

func handleSUBL_IMM(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, p.reg[in.Rj]-uint64(in.SConst8()))
}

func handleMULL(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, uint64(int64(p.reg[in.Rj])*int64(p.reg[in.Rk])))
}

func handleMULL_IMM(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, uint64(int64(p.reg[in.Rj])*in.SConst8()))
}

func (p *Processor) divl(ri uint8, a, b int64) {
	if b == 0 {
		p.raise(block.ExcDivideByZero, uint64(a))
		return
	}
	p.setReg(ri, uint64(a/b))
}

func (p *Processor) reml(ri uint8, a, b int64) {
	if b == 0 {
		p.raise(block.ExcDivideByZero, uint64(a))
		return
	}
	p.setReg(ri, uint64(a%b))
}

func handleDIVL(p *Processor, in program.Instruction) {
	p.divl(in.Ri, int64(p.reg[in.Rj]), int64(p.reg[in.Rk]))
}

func handleDIVL_IMM(p *Processor, in program.Instruction) {
	p.divl(in.Ri, int64(p.reg[in.Rj]), in.SConst8())
}

func handleREML(p *Processor, in program.Instruction) {
	p.reml(in.Ri, int64(p.reg[in.Rj]), int64(p.reg[in.Rk]))
}

func handleREML_IMM(p *Processor, in program.Instruction) {
	p.reml(in.Ri, int64(p.reg[in.Rj]), in.SConst8())
}

func handleNEGL(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, -p.reg[in.Rj])
}

// Doubles live in registers as IEEE-754 bit patterns.

func (p *Processor) f(r uint8) float64 { return math.Float64frombits(p.reg[r]) }

func (p *Processor) setF(r uint8, v float64) { p.setReg(r, math.Float64bits(v)) }

func handleADDD(p *Processor, in program.Instruction) {
	p.setF(in.Ri, p.f(in.Rj)+p.f(in.Rk))
}

func handleSUBD(p *Processor, in program.Instruction) {
	p.setF(in.Ri, p.f(in.Rj)-p.f(in.Rk))
}

func handleMULD(p *Processor, in program.Instruction) {
	p.setF(in.Ri, p.f(in.Rj)*p.f(in.Rk))
}

func handleDIVD(p *Processor, in program.Instruction) {
	if p.f(in.Rk) == 0 {
		p.raise(block.ExcDivideByZero, p.reg[in.Rj])
		return
	}
	p.setF(in.Ri, p.f(in.Rj)/p.f(in.Rk))
}

func handleNEGD(p *Processor, in program.Instruction) {
	p.setF(in.Ri, -p.f(in.Rj))
}

func handleCVTLD(p *Processor, in program.Instruction) {
	p.setF(in.Ri, float64(int64(p.reg[in.Rj])))
}

func handleCVTDL(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, uint64(int64(p.f(in.Rj))))
}

// Shift counts use the low six bits.

func handleLSHIFT(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, p.reg[in.Rj]<<(p.reg[in.Rk]&63))
}

func handleLSHIFT_IMM(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, p.reg[in.Rj]<<(in.Const8()&63))
}

func handleRSHIFT(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, uint64(int64(p.reg[in.Rj])>>(p.reg[in.Rk]&63)))
}

func handleRSHIFT_IMM(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, uint64(int64(p.reg[in.Rj])>>(in.Const8()&63)))
}

func handleRSHIFTU(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, p.reg[in.Rj]>>(p.reg[in.Rk]&63))
}

func handleRSHIFTU_IMM(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, p.reg[in.Rj]>>(in.Const8()&63))
}

func handleAND(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, p.reg[in.Rj]&p.reg[in.Rk])
}

func handleOR(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, p.reg[in.Rj]|p.reg[in.Rk])
}

func handleXOR(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, p.reg[in.Rj]^p.reg[in.Rk])
}

func handleORNOT(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, p.reg[in.Rj]|^p.reg[in.Rk])
}

// Comparisons write 1 or 0. Signed immediates are sign extended, unsigned
// ones are not.

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func handleCMPEQ(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, b2u(p.reg[in.Rj] == p.reg[in.Rk]))
}

func handleCMPEQ_IMM(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, b2u(int64(p.reg[in.Rj]) == in.SConst8()))
}

func handleCMPLE(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, b2u(int64(p.reg[in.Rj]) <= int64(p.reg[in.Rk])))
}

func handleCMPLE_IMM(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, b2u(int64(p.reg[in.Rj]) <= in.SConst8()))
}

func handleCMPLT(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, b2u(int64(p.reg[in.Rj]) < int64(p.reg[in.Rk])))
}

func handleCMPLT_IMM(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, b2u(int64(p.reg[in.Rj]) < in.SConst8()))
}

func handleCMPULE(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, b2u(p.reg[in.Rj] <= p.reg[in.Rk]))
}

func handleCMPULE_IMM(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, b2u(p.reg[in.Rj] <= in.Const8()))
}

func handleCMPULT(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, b2u(p.reg[in.Rj] < p.reg[in.Rk]))
}

func handleCMPULT_IMM(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, b2u(p.reg[in.Rj] < in.Const8()))
}

func handleFCMPEQ(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, b2u(p.f(in.Rj) == p.f(in.Rk)))
}

func handleFCMPLE(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, b2u(p.f(in.Rj) <= p.f(in.Rk)))
}

func handleFCMPLT(p *Processor, in program.Instruction) {
	p.setReg(in.Ri, b2u(p.f(in.Rj) < p.f(in.Rk)))
}

// Branch offsets count instructions from the one after the branch.

func (p *Processor) branch(in program.Instruction) {
	p.jumpTo(uint64(int64(p.cio) + in.SConst16()*program.InstructionSize))
}

func handleJMP(p *Processor, in program.Instruction) {
	p.branch(in)
}

// handleJMP_REG jumps to the absolute offset in rj.
func handleJMP_REG(p *Processor, in program.Instruction) {
	p.jumpTo(p.reg[in.Rj])
}

func handleBTRUE(p *Processor, in program.Instruction) {
	if p.reg[in.Ri] != 0 {
		p.branch(in)
	}
}

func handleBFALSE(p *Processor, in program.Instruction) {
	if p.reg[in.Ri] == 0 {
		p.branch(in)
	}
}
