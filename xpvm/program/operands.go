package program

import (
	"encoding/binary"
	"fmt"
)

// InstructionSize is the width of every XPVM instruction in bytes.
const InstructionSize = 4

// Instruction is a decoded 32-bit instruction word. Decoding is a pure
// projection of the word's bytes; which operand view applies depends on the
// opcode's format.
type Instruction struct {
	Opcode byte
	Ri     byte
	Rj     byte
	Rk     byte
}

// Decode splits a big-endian instruction word into its four bytes.
func Decode(word uint32) Instruction {
	return Instruction{
		Opcode: byte(word >> 24),
		Ri:     byte(word >> 16),
		Rj:     byte(word >> 8),
		Rk:     byte(word),
	}
}

// DecodeAt decodes the instruction at byte offset off of code.
func DecodeAt(code []byte, off uint32) (Instruction, bool) {
	if uint64(off)+InstructionSize > uint64(len(code)) {
		return Instruction{}, false
	}
	return Decode(binary.BigEndian.Uint32(code[off:])), true
}

func (in Instruction) Word() uint32 {
	return uint32(in.Opcode)<<24 | uint32(in.Ri)<<16 | uint32(in.Rj)<<8 | uint32(in.Rk)
}

// Const8 is the unsigned format B immediate.
func (in Instruction) Const8() uint64 {
	return uint64(in.Rk)
}

// SConst8 is the format B immediate sign-extended to 64 bits.
func (in Instruction) SConst8() int64 {
	return int64(int8(in.Rk))
}

// Const16 is the unsigned format C immediate.
func (in Instruction) Const16() uint16 {
	return uint16(in.Rj)<<8 | uint16(in.Rk)
}

// SConst16 is the format C immediate sign-extended to 64 bits.
func (in Instruction) SConst16() int64 {
	return int64(int16(in.Const16()))
}

func (in Instruction) Info() OpcodeInfo {
	return Info(in.Opcode)
}

func (in Instruction) String() string {
	info := in.Info()
	switch info.Format {
	case FormatA:
		return fmt.Sprintf("%s r%d, r%d, r%d", info.Name, in.Ri, in.Rj, in.Rk)
	case FormatB:
		return fmt.Sprintf("%s r%d, r%d, #%d", info.Name, in.Ri, in.Rj, in.Rk)
	case FormatC:
		switch in.Opcode {
		case LDBLKID, LDFUNC, LDIMM2:
			return fmt.Sprintf("%s r%d, #%d", info.Name, in.Ri, in.Const16())
		default:
			return fmt.Sprintf("%s r%d, #%d", info.Name, in.Ri, in.SConst16())
		}
	default:
		return fmt.Sprintf(".word 0x%08x", in.Word())
	}
}

func EncodeA(op, ri, rj, rk byte) uint32 {
	return Instruction{op, ri, rj, rk}.Word()
}

func EncodeB(op, ri, rj, const8 byte) uint32 {
	return Instruction{op, ri, rj, const8}.Word()
}

func EncodeC(op, ri byte, const16 uint16) uint32 {
	return Instruction{op, ri, byte(const16 >> 8), byte(const16)}.Word()
}

// EncodeCSigned encodes a signed 16-bit immediate, e.g. a branch word offset.
func EncodeCSigned(op, ri byte, const16 int16) uint32 {
	return EncodeC(op, ri, uint16(const16))
}

// Assemble lays instruction words out big-endian, most-significant byte first.
func Assemble(words ...uint32) []byte {
	code := make([]byte, 0, len(words)*InstructionSize)
	for _, w := range words {
		code = binary.BigEndian.AppendUint32(code, w)
	}
	return code
}
