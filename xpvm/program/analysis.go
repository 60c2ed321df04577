package program

import (
	"fmt"
	"sort"
	"strings"
)

// Code is the content of a block annotated as INSTRUCTION.
type Code []byte

// ProgramStats contains statistics about a code block
type ProgramStats struct {
	InstructionCount   int          // Total number of whole instruction words
	UnknownCount       int          // Words whose opcode has no name
	TrailingBytes      int          // Bytes after the last whole word
	CallCount          int          // call, calln and init_proc sites
	OpcodeDistribution map[byte]int // Distribution of opcodes
	BranchTargets      []uint32     // Sorted, de-duplicated targets of relative branches
}

// Analyze walks every instruction word of the code block.
func (c Code) Analyze() *ProgramStats {
	stats := &ProgramStats{
		OpcodeDistribution: make(map[byte]int),
	}
	targets := make(map[uint32]struct{})

	n := len(c) / InstructionSize
	stats.TrailingBytes = len(c) % InstructionSize
	for i := 0; i < n; i++ {
		off := uint32(i * InstructionSize)
		in, _ := DecodeAt(c, off)
		stats.InstructionCount++
		stats.OpcodeDistribution[in.Opcode]++
		if in.Info().Format == FormatNone {
			stats.UnknownCount++
		}
		switch in.Opcode {
		case JMP, BTRUE, BFALSE:
			if t, ok := BranchTarget(off, in); ok {
				targets[t] = struct{}{}
			}
		case CALL, CALLN, INIT_PROC:
			stats.CallCount++
		}
	}

	for t := range targets {
		stats.BranchTargets = append(stats.BranchTargets, t)
	}
	sort.Slice(stats.BranchTargets, func(i, j int) bool { return stats.BranchTargets[i] < stats.BranchTargets[j] })
	return stats
}

// BranchTarget returns the byte offset a relative branch at off jumps to.
// Offsets count words from the following instruction.
func BranchTarget(off uint32, in Instruction) (uint32, bool) {
	t := int64(off) + InstructionSize + in.SConst16()*InstructionSize
	if t < 0 || t > int64(^uint32(0)) {
		return 0, false
	}
	return uint32(t), true
}

// CountInstructions returns the number of whole instruction words.
func (c Code) CountInstructions() int {
	return len(c) / InstructionSize
}

// Instructions decodes every whole instruction word.
func (c Code) Instructions() []Instruction {
	out := make([]Instruction, 0, c.CountInstructions())
	for off := uint32(0); ; off += InstructionSize {
		in, ok := DecodeAt(c, off)
		if !ok {
			return out
		}
		out = append(out, in)
	}
}

// Disassemble renders one line per instruction: offset, raw word, mnemonic.
// Offsets that are branch targets are marked with a label.
func (c Code) Disassemble() string {
	stats := c.Analyze()
	labels := make(map[uint32]bool, len(stats.BranchTargets))
	for _, t := range stats.BranchTargets {
		labels[t] = true
	}

	var sb strings.Builder
	for i, in := range c.Instructions() {
		off := uint32(i * InstructionSize)
		if labels[off] {
			fmt.Fprintf(&sb, "L%04x:\n", off)
		}
		fmt.Fprintf(&sb, "  %04x  %08x  %s", off, in.Word(), in)
		if in.Opcode == JMP || in.Opcode == BTRUE || in.Opcode == BFALSE {
			if t, ok := BranchTarget(off, in); ok {
				fmt.Fprintf(&sb, "  ; -> L%04x", t)
			}
		}
		sb.WriteByte('\n')
	}
	if stats.TrailingBytes > 0 {
		fmt.Fprintf(&sb, "  ; %d trailing bytes\n", stats.TrailingBytes)
	}
	return sb.String()
}
