package xpvm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorfulnotion/xpvm/xpvm/block"
	"github.com/colorfulnotion/xpvm/xpvm/program"
)

func neg(v int64) uint64 { return uint64(v) }

func TestIntegerHandlers(t *testing.T) {
	cases := []struct {
		name string
		op   byte
		a, b uint64
		rk   byte // const8 for B forms
		want uint64
	}{
		{"addl", program.ADDL, 2, 3, 2, 5},
		{"addl wraps", program.ADDL, math.MaxUint64, 1, 2, 0},
		{"addl imm negative", program.ADDL_IMM, 10, 0, 0xff, 9},
		{"subl", program.SUBL, 2, 3, 2, neg(-1)},
		{"subl imm", program.SUBL_IMM, 10, 0, 4, 6},
		{"mull", program.MULL, neg(-4), 5, 2, neg(-20)},
		{"mull imm", program.MULL_IMM, 7, 0, 0xfe, neg(-14)},
		{"divl truncates", program.DIVL, neg(-7), 2, 2, neg(-3)},
		{"divl imm", program.DIVL_IMM, 100, 0, 0xf6, neg(-10)},
		{"reml", program.REML, neg(-7), 2, 2, neg(-1)},
		{"reml imm", program.REML_IMM, 17, 0, 5, 2},
		{"negl", program.NEGL, 5, 0, 0, neg(-5)},
		{"lshift", program.LSHIFT, 1, 65, 2, 2},
		{"lshift imm", program.LSHIFT_IMM, 3, 0, 4, 48},
		{"rshift arithmetic", program.RSHIFT, neg(-16), 2, 2, neg(-4)},
		{"rshift imm", program.RSHIFT_IMM, neg(-16), 0, 4, neg(-1)},
		{"rshiftu logical", program.RSHIFTU, neg(-16), 60, 2, 0xf},
		{"rshiftu imm", program.RSHIFTU_IMM, 256, 0, 4, 16},
		{"and", program.AND, 0b1100, 0b1010, 2, 0b1000},
		{"or", program.OR, 0b1100, 0b1010, 2, 0b1110},
		{"xor", program.XOR, 0b1100, 0b1010, 2, 0b0110},
		{"ornot", program.ORNOT, 0, math.MaxUint64 - 1, 2, 1},
		{"cmpeq", program.CMPEQ, 4, 4, 2, 1},
		{"cmpeq imm signed", program.CMPEQ_IMM, neg(-1), 0, 0xff, 1},
		{"cmple signed", program.CMPLE, neg(-1), 0, 2, 1},
		{"cmple imm", program.CMPLE_IMM, 3, 0, 3, 1},
		{"cmplt", program.CMPLT, 3, 3, 2, 0},
		{"cmplt imm signed", program.CMPLT_IMM, neg(-2), 0, 0xff, 1},
		{"cmpule unsigned", program.CMPULE, neg(-1), 0, 2, 0},
		{"cmpule imm unsigned", program.CMPULE_IMM, 200, 0, 0xff, 1},
		{"cmpult", program.CMPULT, 1, 2, 2, 1},
		{"cmpult imm unsigned", program.CMPULT_IMM, 254, 0, 0xff, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestProcessor(t)
			p.reg[1] = tc.a
			p.reg[2] = tc.b
			exec(p, tc.op, 0, 1, tc.rk)
			require.False(t, p.halted, "unexpected exception: %v", p.result.Err)
			assert.Equal(t, tc.want, p.reg[0])
		})
	}
}

func TestFloatHandlers(t *testing.T) {
	d := math.Float64bits
	cases := []struct {
		name string
		op   byte
		a, b float64
		want uint64
	}{
		{"addd", program.ADDD, 1.5, 2.25, d(3.75)},
		{"subd", program.SUBD, 1.5, 2.25, d(-0.75)},
		{"muld", program.MULD, 1.5, -2, d(-3)},
		{"divd", program.DIVD, 3, 2, d(1.5)},
		{"negd", program.NEGD, 3, 0, d(-3)},
		{"cvtdl truncates", program.CVTDL, -2.75, 0, neg(-2)},
		{"fcmpeq", program.FCMPEQ, 2, 2, 1},
		{"fcmple", program.FCMPLE, 2, 1, 0},
		{"fcmplt", program.FCMPLT, 1, 2, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestProcessor(t)
			p.reg[1] = d(tc.a)
			p.reg[2] = d(tc.b)
			exec(p, tc.op, 0, 1, 2)
			require.False(t, p.halted)
			assert.Equal(t, tc.want, p.reg[0])
		})
	}

	p := newTestProcessor(t)
	p.reg[1] = neg(-7)
	exec(p, program.CVTLD, 0, 1, 0)
	assert.Equal(t, -7.0, math.Float64frombits(p.reg[0]))
}

func TestDivideByZeroRaises(t *testing.T) {
	for _, op := range []byte{program.DIVL, program.REML, program.DIVD} {
		p := newTestProcessor(t)
		p.reg[1] = 1
		exec(p, op, 0, 1, 2)
		require.True(t, p.halted)
		assert.Equal(t, StatusDivideByZero, p.result.Status, program.Info(op).Name)
	}
	p := newTestProcessor(t)
	exec(p, program.DIVL_IMM, 0, 1, 0)
	assert.Equal(t, StatusDivideByZero, p.result.Status)
}

func TestLoadImmediates(t *testing.T) {
	p := newTestProcessor(t)
	in := program.Decode(program.EncodeCSigned(program.LDIMM, 3, -5))
	dispatchTable[in.Opcode](p, in)
	assert.Equal(t, neg(-5), p.reg[3])

	in = program.Decode(program.EncodeC(program.LDIMM, 4, 0x1234))
	dispatchTable[in.Opcode](p, in)
	in = program.Decode(program.EncodeC(program.LDIMM2, 4, 0x5678))
	dispatchTable[in.Opcode](p, in)
	dispatchTable[in.Opcode](p, in)
	assert.Equal(t, uint64(0x123456785678), p.reg[4])
}

func TestFloatLoadStore(t *testing.T) {
	p := newTestProcessor(t)
	b, err := p.m.Arena.Allocate(16)
	require.NoError(t, err)
	p.reg[1] = math.Float64bits(2.5)
	p.reg[2] = uint64(b.Handle())
	p.reg[3] = 8

	exec(p, program.STF, 1, 2, 3)
	exec(p, program.LDF, 4, 2, 3)
	assert.Equal(t, 2.5, math.Float64frombits(p.reg[4]))
	assert.Equal(t, []byte{0, 0, 0x20, 0x40}, b.Data()[8:12], "float32 little-endian")

	exec(p, program.STD_IMM, 1, 2, 0)
	exec(p, program.LDD_IMM, 5, 2, 0)
	assert.Equal(t, p.reg[1], p.reg[5])
	require.False(t, p.halted)
}

func TestOwnershipHandlers(t *testing.T) {
	p := newTestProcessor(t)
	p.reg[1] = 32
	exec(p, program.ALLOC_BLK, 2, 1, 0)
	h := p.reg[2]
	b, ok := p.m.Arena.Lookup(block.Handle(h))
	require.True(t, ok)
	assert.Equal(t, uint32(32), b.Length())

	exec(p, program.ACQUIRE_BLK, 3, 2, 0)
	assert.Equal(t, uint64(1), p.reg[3])
	exec(p, program.TOWNER, 4, 2, 0)
	assert.Equal(t, p.id, p.reg[4])
	exec(p, program.RANNOTS, 5, 2, 0)
	assert.Equal(t, block.Owned, p.reg[5]&block.Owned)

	exec(p, program.RELEASE_BLK, 6, 2, 0)
	assert.Equal(t, uint64(1), p.reg[6])
	exec(p, program.TOWNER, 4, 2, 0)
	assert.Equal(t, p.id, p.reg[4], "releaser stays owner of record")

	p.reg[7] = block.Volatile | 1<<8
	exec(p, program.ATRAITS, 8, 2, 7)
	assert.Equal(t, block.Volatile|1<<8, p.reg[8])
	p.reg[7] = 1 << 8
	exec(p, program.DTRAITS, 8, 2, 7)
	assert.Equal(t, block.Volatile, p.reg[8])
	require.False(t, p.halted)

	// Releasing a block nobody owns raises NOT_OWNER.
	exec(p, program.RELEASE_BLK, 6, 2, 0)
	require.True(t, p.halted)
	assert.Equal(t, uint64(block.ExcNotOwner), p.result.Value)
}

func TestOtherProcessorNeedsVolatile(t *testing.T) {
	p := newTestProcessor(t)
	p.reg[1] = 16
	exec(p, program.ALLOC_BLK, 2, 1, 0)
	b, ok := p.m.Arena.Lookup(block.Handle(p.reg[2]))
	require.True(t, ok)
	assert.Equal(t, p.id, b.Owner())

	sibling := func() *Processor {
		other := newProcessor(p.m, p.id+1, p.img)
		other.cib = p.img.Entry()
		other.frames = []*Frame{{root: true}}
		other.reg[2] = p.reg[2]
		return other
	}

	// The allocator may use the block freely.
	p.reg[3] = 7
	exec(p, program.STL_IMM, 3, 2, 0)
	require.False(t, p.halted)

	other := sibling()
	exec(other, program.LDL_IMM, 4, 2, 0)
	require.True(t, other.halted)
	assert.Equal(t, uint64(block.ExcIllegalOperation), other.result.Value)

	p.reg[5] = block.Volatile
	exec(p, program.ATRAITS, 6, 2, 5)
	require.False(t, p.halted)

	other = sibling()
	exec(other, program.LDL_IMM, 4, 2, 0)
	require.False(t, other.halted, "unexpected exception: %v", other.result.Err)
	assert.Equal(t, uint64(7), other.reg[4])
}

func TestPrivateBlockAndTraitMask(t *testing.T) {
	p := newTestProcessor(t)
	p.reg[1] = 8
	exec(p, program.ALLOC_PRIVATE_BLK, 2, 1, 0)
	b, ok := p.m.Arena.Lookup(block.Handle(p.reg[2]))
	require.True(t, ok)
	assert.True(t, b.HasAnnot(block.Private))
	assert.Equal(t, p.id, b.Owner())

	other := newProcessor(p.m, p.id+1, p.img)
	other.cib = p.img.Entry()
	other.frames = []*Frame{{root: true}}
	other.reg[2] = p.reg[2]
	exec(other, program.LDL_IMM, 3, 2, 0)
	require.True(t, other.halted)
	assert.Equal(t, uint64(block.ExcIllegalOperation), other.result.Value)

	p.reg[7] = block.Instruction
	exec(p, program.ATRAITS, 8, 2, 7)
	require.True(t, p.halted)
	assert.Equal(t, uint64(block.ExcIllegalOperation), p.result.Value)
}

func TestChainHandler(t *testing.T) {
	p := newTestProcessor(t)
	p.reg[1] = 8
	exec(p, program.ALLOC_BLK, 2, 1, 0) // root
	exec(p, program.ALLOC_BLK, 3, 1, 0) // middle
	exec(p, program.ALLOC_BLK, 4, 1, 0) // leaf

	exec(p, program.CHAIN_BLK, 5, 3, 2)
	assert.Equal(t, p.reg[2], p.reg[5])
	exec(p, program.CHAIN_BLK, 5, 4, 3)
	assert.Equal(t, p.reg[2], p.reg[5], "flattened to the root")

	// Acquiring the root takes the whole group.
	exec(p, program.ACQUIRE_BLK, 6, 2, 0)
	exec(p, program.TOWNER, 7, 4, 0)
	assert.Equal(t, p.id, p.reg[7])
	require.False(t, p.halted)

	exec(p, program.CHAIN_BLK, 5, 2, 4)
	require.True(t, p.halted)
	assert.Equal(t, uint64(block.ExcIllegalChain), p.result.Value)
}

func TestRetrieveWithoutException(t *testing.T) {
	p := newTestProcessor(t)
	p.reg[1], p.reg[2] = 7, 7
	exec(p, program.RETRIEVE, 1, 2, 0)
	assert.Equal(t, uint64(0), p.reg[1])
	assert.Equal(t, uint64(0), p.reg[2])
}

func TestWhoami(t *testing.T) {
	p := newTestProcessor(t)
	exec(p, program.WHOAMI, 9, 0, 0)
	assert.Equal(t, uint64(1), p.reg[9])
}

func TestDispatchTableMatchesOpcodeTable(t *testing.T) {
	for op := 0; op < 256; op++ {
		mapped := dispatchTable[op] != nil
		known := op < program.NumOpcodes && program.Info(byte(op)).Format != program.FormatNone
		if op >= program.LOCK && op <= program.SIGALL {
			known = false // decoded for disassembly, never executed
		}
		assert.Equal(t, known, mapped, "opcode %d (%s)", op, program.Info(byte(op)).Name)
	}
}
