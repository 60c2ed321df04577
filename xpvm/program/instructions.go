package program

import "strconv"

// XPVM instruction opcodes. The numbering is part of the object file format;
// all other packages should use these constants instead of literals.

const NumOpcodes = 150

// Loads and stores. Even opcodes take the offset from rk, odd ones from const8.
const (
	LDB     = 2
	LDB_IMM = 3
	LDS     = 4
	LDS_IMM = 5
	LDI     = 6
	LDI_IMM = 7
	LDL     = 8
	LDL_IMM = 9
	LDF     = 10
	LDF_IMM = 11
	LDD     = 12
	LDD_IMM = 13
	LDIMM   = 14 // 0x0e
	LDIMM2  = 15
	STB     = 16
	STB_IMM = 17
	STS     = 18
	STS_IMM = 19
	STI     = 20
	STI_IMM = 21
	STL     = 22
	STL_IMM = 23
	STF     = 24
	STF_IMM = 25
	STD     = 26
	STD_IMM = 27
	LDBLKID = 28
)

// Integer and floating point arithmetic.
const (
	ADDL     = 32 // 0x20
	ADDL_IMM = 33
	SUBL     = 34
	SUBL_IMM = 35
	MULL     = 36
	MULL_IMM = 37
	DIVL     = 38
	DIVL_IMM = 39
	REML     = 40
	REML_IMM = 41
	NEGL     = 42
	ADDD     = 43
	SUBD     = 44
	MULD     = 45
	DIVD     = 46
	NEGD     = 47
	CVTLD    = 48
	CVTDL    = 49
)

// Shifts and bitwise.
const (
	LSHIFT      = 50
	LSHIFT_IMM  = 51
	RSHIFT      = 52
	RSHIFT_IMM  = 53
	RSHIFTU     = 54
	RSHIFTU_IMM = 55
	AND         = 56
	OR          = 57
	XOR         = 58
	ORNOT       = 59
)

// Comparisons.
const (
	CMPEQ      = 64 // 0x40
	CMPEQ_IMM  = 65
	CMPLE      = 66
	CMPLE_IMM  = 67
	CMPLT      = 68
	CMPLT_IMM  = 69
	CMPULE     = 70
	CMPULE_IMM = 71
	CMPULT     = 72
	CMPULT_IMM = 73
	FCMPEQ     = 74
	FCMPLE     = 75
	FCMPLT     = 76
)

// Branches.
const (
	JMP     = 80 // 0x50
	JMP_REG = 81
	BTRUE   = 82
	BFALSE  = 83
)

// Block allocation, annotations and ownership.
const (
	ALLOC_BLK         = 96 // 0x60
	ALLOC_PRIVATE_BLK = 97
	ACQUIRE_BLK       = 98
	RELEASE_BLK       = 99
	DTRAITS           = 100
	RANNOTS           = 101
	TOWNER            = 102
	LOCK              = 103 // reserved, not implemented
	UNLOCK            = 104 // reserved, not implemented
	WAIT              = 105 // reserved, not implemented
	SIG               = 106 // reserved, not implemented
	SIGALL            = 107 // reserved, not implemented
	ATRAITS           = 108 // xpvm extension
	CHAIN_BLK         = 109 // xpvm extension
)

// Calls.
const (
	LDFUNC     = 112 // 0x70
	LDFUNC_REG = 113
	CALL       = 114
	CALLN      = 115
	RET        = 116
)

// Exceptions.
const (
	THROW    = 128 // 0x80
	RETRIEVE = 129
)

// Processors.
const (
	INIT_PROC = 144 // 0x90
	JOIN      = 145
	JOIN2     = 146
	WHOAMI    = 147
)

// Format is the layout of the three operand bytes following the opcode.
type Format uint8

const (
	FormatNone Format = iota
	FormatA           // opcode | ri | rj | rk
	FormatB           // opcode | ri | rj | const8
	FormatC           // opcode | ri | const16
)

func (f Format) String() string {
	switch f {
	case FormatA:
		return "A"
	case FormatB:
		return "B"
	case FormatC:
		return "C"
	default:
		return "-"
	}
}

type OpcodeInfo struct {
	Name   string
	Format Format
}

var opcodeTable = func() [NumOpcodes]OpcodeInfo {
	var t [NumOpcodes]OpcodeInfo
	pair := func(op int, name string) {
		t[op] = OpcodeInfo{name, FormatA}
		t[op+1] = OpcodeInfo{name, FormatB}
	}
	one := func(op int, name string, f Format) {
		t[op] = OpcodeInfo{name, f}
	}

	pair(LDB, "ldb")
	pair(LDS, "lds")
	pair(LDI, "ldi")
	pair(LDL, "ldl")
	pair(LDF, "ldf")
	pair(LDD, "ldd")
	one(LDIMM, "ldimm", FormatC)
	one(LDIMM2, "ldimm2", FormatC)
	pair(STB, "stb")
	pair(STS, "sts")
	pair(STI, "sti")
	pair(STL, "stl")
	pair(STF, "stf")
	pair(STD, "std")
	one(LDBLKID, "ldblkid", FormatC)

	pair(ADDL, "addl")
	pair(SUBL, "subl")
	pair(MULL, "mull")
	pair(DIVL, "divl")
	pair(REML, "reml")
	one(NEGL, "negl", FormatA)
	one(ADDD, "addd", FormatA)
	one(SUBD, "subd", FormatA)
	one(MULD, "muld", FormatA)
	one(DIVD, "divd", FormatA)
	one(NEGD, "negd", FormatA)
	one(CVTLD, "cvtld", FormatA)
	one(CVTDL, "cvtdl", FormatA)

	pair(LSHIFT, "lshift")
	pair(RSHIFT, "rshift")
	pair(RSHIFTU, "rshiftu")
	one(AND, "and", FormatA)
	one(OR, "or", FormatA)
	one(XOR, "xor", FormatA)
	one(ORNOT, "ornot", FormatA)

	pair(CMPEQ, "cmpeq")
	pair(CMPLE, "cmple")
	pair(CMPLT, "cmplt")
	pair(CMPULE, "cmpule")
	pair(CMPULT, "cmpult")
	one(FCMPEQ, "fcmpeq", FormatA)
	one(FCMPLE, "fcmple", FormatA)
	one(FCMPLT, "fcmplt", FormatA)

	one(JMP, "jmp", FormatC)
	one(JMP_REG, "jmp", FormatA)
	one(BTRUE, "btrue", FormatC)
	one(BFALSE, "bfalse", FormatC)

	one(ALLOC_BLK, "alloc_blk", FormatA)
	one(ALLOC_PRIVATE_BLK, "alloc_private_blk", FormatA)
	one(ACQUIRE_BLK, "acquire_blk", FormatA)
	one(RELEASE_BLK, "release_blk", FormatA)
	one(DTRAITS, "dtraits", FormatA)
	one(RANNOTS, "rannots", FormatA)
	one(TOWNER, "towner", FormatA)
	one(LOCK, "lock", FormatA)
	one(UNLOCK, "unlock", FormatA)
	one(WAIT, "wait", FormatA)
	one(SIG, "sig", FormatA)
	one(SIGALL, "sigall", FormatA)
	one(ATRAITS, "atraits", FormatA)
	one(CHAIN_BLK, "chain_blk", FormatA)

	one(LDFUNC, "ldfunc", FormatC)
	one(LDFUNC_REG, "ldfunc", FormatA)
	one(CALL, "call", FormatB)
	one(CALLN, "calln", FormatB)
	one(RET, "ret", FormatA)

	one(THROW, "throw", FormatA)
	one(RETRIEVE, "retrieve", FormatA)

	one(INIT_PROC, "init_proc", FormatB)
	one(JOIN, "join", FormatA)
	one(JOIN2, "join2", FormatA)
	one(WHOAMI, "whoami", FormatA)
	return t
}()

// Info returns the name and format of op. Unassigned numbers report their
// decimal value as name and FormatNone.
func Info(op byte) OpcodeInfo {
	if int(op) < NumOpcodes && opcodeTable[op].Name != "" {
		return opcodeTable[op]
	}
	return OpcodeInfo{Name: strconv.Itoa(int(op)), Format: FormatNone}
}
