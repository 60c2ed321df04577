package xpvm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorfulnotion/xpvm/vmerrors"
	"github.com/colorfulnotion/xpvm/xpvm/block"
	"github.com/colorfulnotion/xpvm/xpvm/objfile"
	"github.com/colorfulnotion/xpvm/xpvm/program"
)

func TestRet42(t *testing.T) {
	res, _ := runBlocks(t, fn("main", 0,
		C(program.LDIMM, 0, 42),
		A(program.RET, 0, 0, 0),
	))
	assert.Equal(t, StatusNormal, res.Status)
	assert.Equal(t, uint64(42), res.Value)
	assert.Equal(t, uint64(2), res.Steps)
	assert.NoError(t, res.Err)
}

// divider divides by zero in a block with locals.
var divider = fn("divide", 8,
	C(program.LDIMM, 5, 1),
	C(program.LDIMM, 6, 0),
	A(program.DIVL, 7, 5, 6),
	A(program.RET, 0, 7, 0),
)

func TestCallDivideByZeroCaught(t *testing.T) {
	main := fn("main", 0,
		C(program.LDBLKID, 1, 1),     // 0
		B(program.CALL, 0, 1, 0),     // 4
		A(program.RET, 0, 0, 0),      // 8
		A(program.RETRIEVE, 2, 3, 0), // 12
		A(program.RET, 0, 2, 0),      // 16
	)
	main.Handlers = []block.Handler{{Start: 4, End: 4, Target: 12}}

	res, vm := runBlocks(t, main, divider)
	assert.Equal(t, StatusNormal, res.Status)
	assert.Equal(t, uint64(block.ExcDivideByZero), res.Value)

	stats := vm.Arena.Stats()
	assert.Equal(t, uint64(1), stats.Freed, "callee locals freed once")
}

func TestCallDivideByZeroUncaught(t *testing.T) {
	res, vm := runBlocks(t, fn("main", 0,
		C(program.LDBLKID, 1, 1),
		B(program.CALL, 0, 1, 0),
		A(program.RET, 0, 0, 0),
	), divider)
	assert.Equal(t, StatusDivideByZero, res.Status)
	assert.ErrorIs(t, res.Err, vmerrors.ErrFDivideByZero)

	var fault *block.Fault
	require.ErrorAs(t, res.Err, &fault)
	assert.Equal(t, uint32(8), fault.Offset)
	assert.Equal(t, uint64(1), vm.Arena.Stats().Freed)
}

func TestHandlerRangeSameBlock(t *testing.T) {
	words := pad(10,
		C(program.LDIMM, 1, 5),   // 0
		C(program.LDIMM, 2, 0),   // 4
		A(program.DIVL, 3, 1, 2), // 8: raises inside (0, 20)
		A(program.RET, 0, 3, 0),  // 12
	)
	words = append(words,
		A(program.RETRIEVE, 4, 5, 0), // 40
		A(program.RET, 0, 4, 0),      // 44
	)
	main := fn("main", 0, words...)
	main.Handlers = []block.Handler{{Start: 0, End: 20, Target: 40}}

	res, _ := runBlocks(t, main)
	assert.Equal(t, StatusNormal, res.Status)
	assert.Equal(t, uint64(block.ExcDivideByZero), res.Value)
}

func TestHandlerRangeBounds(t *testing.T) {
	cases := []struct {
		name   string
		h      block.Handler
		caught bool
	}{
		{"fault at end", block.Handler{Start: 0, End: 8, Target: 16}, true},
		{"fault at start", block.Handler{Start: 8, End: 12, Target: 16}, true},
		{"fault one past end", block.Handler{Start: 0, End: 4, Target: 16}, false},
		{"fault before start", block.Handler{Start: 12, End: 12, Target: 16}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			main := fn("main", 0,
				C(program.LDIMM, 1, 5),       // 0
				C(program.LDIMM, 2, 0),       // 4
				A(program.DIVL, 3, 1, 2),     // 8: faults
				A(program.RET, 0, 3, 0),      // 12
				A(program.RETRIEVE, 4, 5, 0), // 16
				A(program.RET, 0, 4, 0),      // 20
			)
			main.Handlers = []block.Handler{tc.h}

			res, _ := runBlocks(t, main)
			if tc.caught {
				assert.Equal(t, StatusNormal, res.Status)
				assert.Equal(t, uint64(block.ExcDivideByZero), res.Value)
				return
			}
			assert.Equal(t, StatusDivideByZero, res.Status)
			var fault *block.Fault
			require.ErrorAs(t, res.Err, &fault)
			assert.Equal(t, uint32(8), fault.Offset)
		})
	}
}

func TestHandlerRangeMissUnwindsToCaller(t *testing.T) {
	// Callee covers (0, 20) but throws at 100.
	words := pad(24, CS(program.JMP, 0, 23)) // 0: jump to 96
	words = append(words,
		C(program.LDIMM, 1, 300),  // 96
		A(program.THROW, 1, 1, 0), // 100
	)
	words[10] = A(program.RET, 0, 0, 0) // 40: handler that must not run
	callee := fn("callee", 8, words...)
	callee.Handlers = []block.Handler{{Start: 0, End: 20, Target: 40}}

	main := fn("main", 0,
		C(program.LDBLKID, 1, 1),
		B(program.CALL, 0, 1, 0),
		A(program.RET, 0, 0, 0),
		A(program.RETRIEVE, 2, 3, 0),
		A(program.ADDL, 0, 2, 3),
		A(program.RET, 0, 0, 0),
	)
	main.Handlers = []block.Handler{{Start: 4, End: 4, Target: 12}}

	res, _ := runBlocks(t, main, callee)
	assert.Equal(t, StatusNormal, res.Status)
	assert.Equal(t, uint64(600), res.Value, "exception number plus payload")
}

func TestCallNonExecutable(t *testing.T) {
	data := &objfile.Block{Name: "data", Content: make([]byte, 8)}

	main := fn("main", 0,
		C(program.LDBLKID, 1, 1),
		B(program.CALL, 0, 1, 0),
		A(program.RET, 0, 0, 0),
		A(program.RETRIEVE, 2, 3, 0),
		A(program.RET, 0, 2, 0),
	)
	main.Handlers = []block.Handler{{Start: 4, End: 4, Target: 12}}
	res, _ := runBlocks(t, main, data)
	assert.Equal(t, StatusNormal, res.Status)
	assert.Equal(t, uint64(block.ExcIllegalOperation), res.Value)

	res, _ = runBlocks(t, fn("main", 0,
		C(program.LDBLKID, 1, 1),
		B(program.CALL, 0, 1, 0),
		A(program.RET, 0, 0, 0),
	), data)
	assert.Equal(t, StatusUncaughtException, res.Status)
	assert.ErrorIs(t, res.Err, vmerrors.ErrFUncaughtException)
	assert.Equal(t, uint64(block.ExcIllegalOperation), res.Value)
}

func TestCallRestoresCaller(t *testing.T) {
	callee := fn("callee", 8,
		C(program.LDIMM, 3, 9),
		B(program.STL_IMM, 3, StackFrameReg, 0), // locals are writable
		B(program.LDL_IMM, 4, StackFrameReg, 0),
		A(program.RET, 0, 4, 0),
	)
	main := fn("main", 0,
		C(program.LDIMM, StackFrameReg, 77),
		C(program.LDBLKID, 1, 1),
		B(program.CALL, 0, 1, 0),
		A(program.ADDL, 5, 0, StackFrameReg),
		A(program.RET, 0, 5, 0),
	)
	res, vm := runBlocks(t, main, callee)
	require.NoError(t, res.Err)
	assert.Equal(t, uint64(86), res.Value)

	stats := vm.Arena.Stats()
	assert.Equal(t, uint64(1), stats.Freed)
	_, live := vm.Arena.Lookup(block.Handle(stats.Used - 8))
	assert.False(t, live, "locals no longer valid")
}

func TestEntryLocals(t *testing.T) {
	res, vm := runBlocks(t, fn("main", 16,
		CS(program.LDIMM, 1, -3),
		B(program.STL_IMM, 1, StackFrameReg, 8),
		B(program.LDL_IMM, 0, StackFrameReg, 8),
		A(program.RET, 0, 0, 0),
	))
	require.NoError(t, res.Err)
	assert.Equal(t, int64(-3), int64(res.Value))
	assert.Equal(t, uint64(1), vm.Arena.Stats().Freed)
}

func TestIllegalInstruction(t *testing.T) {
	for _, op := range []byte{0, program.LOCK, program.SIGALL, 149, 255} {
		res, _ := runBlocks(t, fn("main", 0, A(op, 0, 0, 0)))
		assert.Equal(t, StatusIllegalInstruction, res.Status, "opcode %d", op)
		assert.ErrorIs(t, res.Err, vmerrors.ErrFIllegalInstruction)
	}
}

func TestFetchOutOfRange(t *testing.T) {
	res, _ := runBlocks(t, fn("main", 0, C(program.LDIMM, 0, 1)))
	assert.Equal(t, StatusAddressOutOfRange, res.Status)
	assert.ErrorIs(t, res.Err, vmerrors.ErrFFetchOutOfRange)
	assert.Equal(t, uint64(1), res.Steps)

	res, _ = runBlocks(t, fn("main", 0, CS(program.JMP, 0, -5)))
	assert.ErrorIs(t, res.Err, vmerrors.ErrFFetchOutOfRange)
}

func TestArenaExhaustionIsFatal(t *testing.T) {
	vm := newTestVM(t, Options{Memory: 512}, fn("main", 0,
		C(program.LDIMM, 1, 1024),
		A(program.ALLOC_BLK, 2, 1, 0),
		A(program.RET, 0, 2, 0),
	))
	res, err := vm.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusOutOfMemory, res.Status)
	assert.ErrorIs(t, res.Err, vmerrors.ErrFArenaExhausted)
}

func TestOversizedAllocationRaises(t *testing.T) {
	res, _ := runBlocks(t, fn("main", 0,
		C(program.LDIMM, 1, 0xffff), // -1: no header can describe it
		A(program.ALLOC_BLK, 2, 1, 0),
		A(program.RET, 0, 2, 0),
	))
	assert.Equal(t, StatusUncaughtException, res.Status)
	assert.Equal(t, uint64(block.ExcOutOfMemory), res.Value)
}

func TestEntryNotExecutable(t *testing.T) {
	vm := newTestVM(t, Options{}, &objfile.Block{Name: "main", Content: code(A(program.RET, 0, 0, 0))})
	res, err := vm.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusIllegalInstruction, res.Status)
	assert.ErrorIs(t, res.Err, vmerrors.ErrFNotExecutable)
}

func TestLoop(t *testing.T) {
	res, _ := runBlocks(t, fn("main", 0,
		C(program.LDIMM, 1, 10),      // 0
		C(program.LDIMM, 0, 0),       // 4
		A(program.ADDL, 0, 0, 1),     // 8
		B(program.SUBL_IMM, 1, 1, 1), // 12
		CS(program.BTRUE, 1, -3),     // 16: back to 8
		A(program.RET, 0, 0, 0),      // 20
	))
	require.NoError(t, res.Err)
	assert.Equal(t, uint64(55), res.Value)
}

func TestJumpRegisterAndBranchFalse(t *testing.T) {
	res, _ := runBlocks(t, fn("main", 0,
		C(program.LDIMM, 1, 16),     // 0
		A(program.JMP_REG, 0, 1, 0), // 4
		C(program.LDIMM, 0, 1),      // 8: skipped
		A(program.RET, 0, 0, 0),     // 12
		CS(program.BFALSE, 2, 1),    // 16: r2 is zero, skip next
		C(program.LDIMM, 0, 3),      // 20: skipped
		C(program.LDIMM, 0, 2),      // 24
		A(program.RET, 0, 0, 0),     // 28
	))
	require.NoError(t, res.Err)
	assert.Equal(t, uint64(2), res.Value)
}

func TestLoadsAndStores(t *testing.T) {
	res, _ := runBlocks(t, fn("main", 0,
		C(program.LDIMM, 1, 16),
		A(program.ALLOC_BLK, 2, 1, 0),
		CS(program.LDIMM, 3, -2),
		B(program.STB_IMM, 3, 2, 3),
		B(program.LDB_IMM, 4, 2, 3), // sign extended
		C(program.LDIMM, 5, 4),
		A(program.STS, 3, 2, 5),
		A(program.LDS, 6, 2, 5),
		A(program.ADDL, 0, 4, 6),    // -4
		B(program.LDI_IMM, 7, 2, 4), // 0x0000fffe
		A(program.ADDL, 0, 0, 7),
		A(program.RET, 0, 0, 0),
	))
	require.NoError(t, res.Err)
	assert.Equal(t, int64(-4+0xfffe), int64(res.Value))
}

func TestStoreOutOfBounds(t *testing.T) {
	res, _ := runBlocks(t, fn("main", 0,
		C(program.LDIMM, 1, 16),
		A(program.ALLOC_BLK, 2, 1, 0),
		B(program.STL_IMM, 1, 2, 12),
		A(program.RET, 0, 0, 0),
	))
	assert.Equal(t, StatusAddressOutOfRange, res.Status)
	assert.ErrorIs(t, res.Err, vmerrors.ErrFIllegalAddress)
}

func TestLoadFromBadHandle(t *testing.T) {
	res, _ := runBlocks(t, fn("main", 0,
		C(program.LDIMM, 1, 12345),
		B(program.LDL_IMM, 0, 1, 0),
		A(program.RET, 0, 0, 0),
	))
	assert.Equal(t, StatusAddressOutOfRange, res.Status)
}

func TestBlockTableIsReadOnly(t *testing.T) {
	res, vm := runBlocks(t, fn("main", 0,
		C(program.LDBLKID, 1, 0),
		B(program.LDL_IMM, 2, 1, 0), // code is readable
		B(program.STL_IMM, 2, 1, 0), // and writable
		A(program.RET, 0, 0, 0),
	))
	require.NoError(t, res.Err)

	p := newProcessor(vm.Machine, 9, vm.img)
	p.cib = vm.img.Entry()
	p.frames = []*Frame{{root: true}}
	p.reg[1] = uint64(vm.img.Table.Handle())
	exec(p, program.STL_IMM, 2, 1, 0)
	assert.True(t, p.halted)
	assert.Equal(t, uint64(block.ExcIllegalOperation), p.result.Value)
}

func TestLdblkidBadIndex(t *testing.T) {
	res, _ := runBlocks(t, fn("main", 0,
		C(program.LDBLKID, 1, 5),
		A(program.RET, 0, 1, 0),
	))
	assert.Equal(t, StatusUncaughtException, res.Status)
	assert.Equal(t, uint64(block.ExcBadBlock), res.Value)
}

func TestLdfunc(t *testing.T) {
	data := &objfile.Block{Name: "data", Content: make([]byte, 8)}
	callee := fn("seven", 0, C(program.LDIMM, 0, 7), A(program.RET, 0, 0, 0))

	res, _ := runBlocks(t, fn("main", 0,
		C(program.LDFUNC, 1, 2),
		B(program.CALL, 0, 1, 0),
		A(program.RET, 0, 0, 0),
	), data, callee)
	require.NoError(t, res.Err)
	assert.Equal(t, uint64(7), res.Value)

	res, _ = runBlocks(t, fn("main", 0,
		C(program.LDIMM, 2, 1),
		A(program.LDFUNC_REG, 1, 2, 0),
		A(program.RET, 0, 1, 0),
	), data, callee)
	assert.Equal(t, StatusUncaughtException, res.Status)
	assert.Equal(t, uint64(block.ExcIllegalOperation), res.Value)
}
