package xpvm

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colorfulnotion/xpvm/xpvm/block"
	"github.com/colorfulnotion/xpvm/xpvm/objfile"
	"github.com/colorfulnotion/xpvm/xpvm/program"
)

var (
	A  = program.EncodeA
	B  = program.EncodeB
	C  = program.EncodeC
	CS = program.EncodeCSigned
)

// nop pads code out to a handler target.
var nop = program.EncodeC(program.LDIMM, 200, 0)

func code(words ...uint32) []byte { return program.Assemble(words...) }

// pad returns words padded with nops to n instructions.
func pad(n int, words ...uint32) []uint32 {
	for len(words) < n {
		words = append(words, nop)
	}
	return words
}

func fn(name string, frameSize uint32, words ...uint32) *objfile.Block {
	return &objfile.Block{Name: name, Annots: block.Instruction, FrameSize: frameSize, Content: code(words...)}
}

type testVM struct {
	*Machine
	img *Image
	out *bytes.Buffer
}

func newTestVM(t *testing.T, opts Options, blocks ...*objfile.Block) *testVM {
	t.Helper()
	out := new(bytes.Buffer)
	if opts.Stdout == nil {
		opts.Stdout = out
	}
	m, err := NewMachine(opts)
	require.NoError(t, err)
	img, err := m.Load(&objfile.File{Blocks: blocks})
	require.NoError(t, err)
	return &testVM{Machine: m, img: img, out: out}
}

func runBlocks(t *testing.T, blocks ...*objfile.Block) (Result, *testVM) {
	t.Helper()
	vm := newTestVM(t, Options{}, blocks...)
	res, err := vm.Run(context.Background(), nil)
	require.NoError(t, err)
	return res, vm
}

// newTestProcessor returns a processor parked at the start of a one
// instruction block, for driving handlers directly.
func newTestProcessor(t *testing.T) *Processor {
	t.Helper()
	vm := newTestVM(t, Options{}, fn("main", 0, A(program.RET, 0, 0, 0)))
	p := newProcessor(vm.Machine, 1, vm.img)
	p.cib = vm.img.Entry()
	p.frames = []*Frame{{root: true}}
	return p
}

func exec(p *Processor, op, ri, rj, rk byte) {
	in := program.Instruction{Opcode: op, Ri: ri, Rj: rj, Rk: rk}
	dispatchTable[op](p, in)
}
