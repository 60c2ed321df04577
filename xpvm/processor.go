package xpvm

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/colorfulnotion/xpvm/log"
	"github.com/colorfulnotion/xpvm/vmerrors"
	"github.com/colorfulnotion/xpvm/xpvm/block"
	"github.com/colorfulnotion/xpvm/xpvm/program"
	"github.com/colorfulnotion/xpvm/xpvm/trace"
)

const (
	NumRegisters = 256

	// StackFrameReg holds the active locals block.
	StackFrameReg = 255
)

// Processor is one logical execution unit: a private register file and frame
// stack driving a fetch/execute loop. It is only touched by its own
// goroutine.
type Processor struct {
	id  uint64
	m   *Machine
	img *Image
	ctx context.Context

	reg      [NumRegisters]uint64
	cio      uint32 // offset of the next instruction in cib
	cib      *block.Block
	blockReg *block.Block
	frames   []*Frame

	cur   uint32 // offset of the executing instruction
	steps uint64
	tr    *trace.Step

	halted bool
	result Result
}

func newProcessor(m *Machine, id uint64, img *Image) *Processor {
	return &Processor{id: id, m: m, img: img, blockReg: img.Table, ctx: context.Background()}
}

func (p *Processor) ID() uint64 { return p.id }

// start sets up the outermost frame at entry and runs to termination.
func (p *Processor) start(ctx context.Context, entry *block.Block, args []uint64) Result {
	if ctx != nil {
		p.ctx = ctx
	}
	if exc := entry.CheckExecute(); exc != block.ExcNone {
		err := fmt.Errorf("entry %s: %w", entry.Handle(), vmerrors.ErrFNotExecutable)
		log.Warn(log.ProcMonitoring, "processor entry not executable", "id", p.id, "entry", entry.Handle())
		return Result{Proc: p.id, Status: StatusIllegalInstruction, Err: err}
	}
	copy(p.reg[:], args)

	root := &Frame{root: true}
	if entry.FrameSize() > 0 {
		locals, _ := p.alloc(block.Spec{Size: uint64(entry.FrameSize())})
		if p.halted {
			return p.result
		}
		locals.SetPrivate(p.id)
		root.locals = locals
		p.reg[StackFrameReg] = uint64(locals.Handle())
	}
	p.frames = append(p.frames, root)
	p.cib = entry
	p.cio = 0
	return p.run()
}

func (p *Processor) run() Result {
	if p.m.SendTrace && p.m.Tp != nil {
		tracer := p.m.Tp.Tracer("XPVMTracer")
		ctx, span := tracer.Start(p.ctx, fmt.Sprintf("[P%d] run %s", p.id, p.cib.Name()))
		p.ctx = ctx
		defer span.End()
		defer func() {
			span.SetAttributes(
				attribute.Int64("xpvm.proc", int64(p.id)),
				attribute.Int64("xpvm.status", int64(p.result.Status)),
				attribute.Int64("xpvm.steps", int64(p.result.Steps)),
			)
			if p.result.Err != nil {
				span.RecordError(p.result.Err)
				span.SetStatus(codes.Error, p.result.Status.String())
			}
		}()
	}

	for !p.halted {
		p.step()
	}
	// A fatal status can leave frames behind; their locals go with them.
	for len(p.frames) > 0 {
		p.popFrame()
	}
	p.result.Steps = p.steps
	return p.result
}

func (p *Processor) step() {
	off := p.cio
	in, ok := program.DecodeAt(p.cib.Data(), off)
	if !ok {
		p.halt(StatusAddressOutOfRange, 0, fmt.Errorf("fetch %s+%#x (length %d): %w",
			p.cib.Handle(), off, p.cib.Length(), vmerrors.ErrFFetchOutOfRange))
		return
	}
	p.cur = off
	p.cio = off + program.InstructionSize

	handler := dispatchTable[in.Opcode]
	if handler == nil {
		p.halt(StatusIllegalInstruction, 0, fmt.Errorf("opcode %d at %s+%#x: %w",
			in.Opcode, p.cib.Handle(), off, vmerrors.ErrFIllegalInstruction))
		return
	}
	if p.m.Trace != nil {
		p.tr = &trace.Step{
			Proc:        p.id,
			Step:        p.steps,
			Block:       uint64(p.cib.Handle()),
			Offset:      off,
			Opcode:      in.Opcode,
			OpcodeStr:   in.Info().Name,
			Instruction: in.String(),
		}
	}
	handler(p, in)
	p.steps++
	if p.tr != nil {
		if err := p.m.Trace.WriteStep(p.tr); err != nil {
			log.Warn(log.TraceMonitoring, "trace write failed", "proc", p.id, "step", p.tr.Step, "err", err)
		}
		p.tr = nil
	}
}

func (p *Processor) halt(status Status, value uint64, err error) {
	p.halted = true
	p.result = Result{Proc: p.id, Status: status, Value: value, Err: err}
	if err != nil {
		log.Debug(log.ProcMonitoring, "processor halted", "id", p.id, "status", status, "err", err)
	}
}

func (p *Processor) setReg(r uint8, v uint64) {
	p.reg[r] = v
	if p.tr != nil {
		p.tr.SetDst(r, v)
	}
}

// alloc allocates from the shared arena. A request no header can describe
// returns ExcOutOfMemory; an exhausted arena also halts the processor.
func (p *Processor) alloc(s block.Spec) (*block.Block, block.Exception) {
	b, err := p.m.Arena.AllocateSpec(s)
	if err == nil {
		return b, block.ExcNone
	}
	if errors.Is(err, block.ErrTooLarge) {
		return nil, block.ExcOutOfMemory
	}
	p.halt(StatusOutOfMemory, 0, err)
	return nil, block.ExcOutOfMemory
}

// lookup resolves a register value to a live block.
func (p *Processor) lookup(h uint64) (*block.Block, bool) {
	return p.m.Arena.Lookup(block.Handle(h))
}

// jumpTo moves CIO; an offset past the block fails at the next fetch.
func (p *Processor) jumpTo(off uint64) {
	if off > uint64(^uint32(0)) {
		off = uint64(^uint32(0))
	}
	p.cio = uint32(off)
}
