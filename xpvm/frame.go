package xpvm

import (
	"github.com/colorfulnotion/xpvm/log"
	"github.com/colorfulnotion/xpvm/xpvm/block"
)

// Frame is the resumption state of one active call.
type Frame struct {
	retCIO    uint32
	retCIB    *block.Block
	savedR255 uint64
	retReg    uint8

	// callSite is the offset of the call instruction in retCIB. Handler
	// ranges of the caller are matched against it while unwinding.
	callSite uint32

	locals *block.Block

	exc     block.Exception
	payload uint64

	root bool // outermost; popping it terminates the processor
}

func (p *Processor) top() *Frame {
	return p.frames[len(p.frames)-1]
}

// popFrame removes the top frame and frees its locals.
func (p *Processor) popFrame() *Frame {
	f := p.top()
	p.frames = p.frames[:len(p.frames)-1]
	if f.locals != nil {
		if err := p.m.Arena.Free(f.locals.Handle()); err != nil {
			log.Warn(log.AllocMonitoring, "free locals", "proc", p.id, "err", err)
		}
		f.locals = nil
	}
	return f
}

func (p *Processor) restore(f *Frame) {
	p.cio = f.retCIO
	p.cib = f.retCIB
	p.reg[StackFrameReg] = f.savedR255
}

// call transfers control to target, allocating its locals.
func (p *Processor) call(target *block.Block, retReg uint8) {
	f := &Frame{
		retCIO:    p.cio,
		retCIB:    p.cib,
		savedR255: p.reg[StackFrameReg],
		retReg:    retReg,
		callSite:  p.cur,
	}
	if target.FrameSize() > 0 {
		locals, _ := p.alloc(block.Spec{Size: uint64(target.FrameSize())})
		if p.halted {
			return
		}
		locals.SetPrivate(p.id)
		f.locals = locals
		p.reg[StackFrameReg] = uint64(locals.Handle())
	}
	p.frames = append(p.frames, f)
	p.cib = target
	p.cio = 0
	log.Trace(log.ProcMonitoring, "call", "proc", p.id, "target", target.Handle(), "depth", len(p.frames))
}

// ret returns value to the caller, or halts the processor from the
// outermost frame.
func (p *Processor) ret(value uint64) {
	f := p.popFrame()
	if f.root {
		p.halt(StatusNormal, value, nil)
		return
	}
	p.restore(f)
	p.setReg(f.retReg, value)
}

func findHandler(b *block.Block, off uint32) (block.Handler, bool) {
	for _, h := range b.Handlers() {
		if h.Covers(off) {
			return h, true
		}
	}
	return block.Handler{}, false
}

// raise searches the current block's handler table for the executing
// instruction, then each caller's table for its call site, popping frames
// as it goes. An exception that escapes the outermost frame halts the
// processor.
func (p *Processor) raise(exc block.Exception, payload uint64) {
	if p.tr != nil {
		p.tr.Exception = exc.String()
	}
	fault := &block.Fault{Exception: exc, Payload: payload, Block: p.cib.Handle(), Offset: p.cur}
	off := p.cur
	for {
		if h, ok := findHandler(p.cib, off); ok {
			f := p.top()
			f.exc, f.payload = exc, payload
			p.cio = h.Target
			log.Debug(log.ExcMonitoring, "exception caught", "proc", p.id, "exc", exc, "block", p.cib.Handle(), "at", off, "handler", h.Target)
			return
		}
		f := p.popFrame()
		if f.root {
			log.Debug(log.ExcMonitoring, "exception uncaught", "proc", p.id, "exc", exc, "payload", payload)
			p.halt(uncaughtStatus(exc), uint64(exc), fault)
			return
		}
		p.restore(f)
		off = f.callSite
		log.Trace(log.ExcMonitoring, "unwound frame", "proc", p.id, "exc", exc, "block", p.cib.Handle(), "callsite", off)
	}
}

func uncaughtStatus(exc block.Exception) Status {
	switch exc {
	case block.ExcDivideByZero:
		return StatusDivideByZero
	case block.ExcIllegalAddress:
		return StatusAddressOutOfRange
	}
	return StatusUncaughtException
}
