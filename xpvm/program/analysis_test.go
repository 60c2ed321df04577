package program

import (
	"strings"
	"testing"
)

func TestAnalyze(t *testing.T) {
	code := Code(Assemble(
		EncodeC(LDIMM, 0, 3),        // 0x00
		EncodeCSigned(BFALSE, 0, 2), // 0x04 -> 0x10
		EncodeB(SUBL_IMM, 0, 0, 1),  // 0x08
		EncodeCSigned(JMP, 0, -3),   // 0x0c -> 0x04
		EncodeB(CALL, 1, 2, 0),      // 0x10
		EncodeA(0x1d, 0, 0, 0),      // 0x14 unassigned
		EncodeA(RET, 0, 0, 0),       // 0x18
	))
	code = append(code, 0xaa)

	stats := code.Analyze()
	if stats.InstructionCount != 7 {
		t.Errorf("Expected 7 instructions, got %d", stats.InstructionCount)
	}
	if stats.UnknownCount != 1 {
		t.Errorf("Expected 1 unknown opcode, got %d", stats.UnknownCount)
	}
	if stats.TrailingBytes != 1 {
		t.Errorf("Expected 1 trailing byte, got %d", stats.TrailingBytes)
	}
	if stats.CallCount != 1 {
		t.Errorf("Expected 1 call site, got %d", stats.CallCount)
	}
	if len(stats.BranchTargets) != 2 || stats.BranchTargets[0] != 0x04 || stats.BranchTargets[1] != 0x10 {
		t.Errorf("Expected branch targets [4 16], got %v", stats.BranchTargets)
	}
	if stats.OpcodeDistribution[LDIMM] != 1 {
		t.Errorf("Expected 1 occurrence of ldimm, got %d", stats.OpcodeDistribution[LDIMM])
	}
}

func TestBranchTargetNegative(t *testing.T) {
	if _, ok := BranchTarget(0, Decode(EncodeCSigned(JMP, 0, -2))); ok {
		t.Errorf("Expected branch before block start to be rejected")
	}
}

func TestDisassemble(t *testing.T) {
	code := Code(Assemble(
		EncodeCSigned(JMP, 0, 0),
		EncodeC(LDIMM, 0, 42),
		EncodeA(RET, 0, 0, 0),
	))
	out := code.Disassemble()
	if !strings.Contains(out, "L0004:") {
		t.Errorf("Expected label for branch target, got:\n%s", out)
	}
	if !strings.Contains(out, "0004  0e00002a  ldimm r0, #42") {
		t.Errorf("Expected ldimm line, got:\n%s", out)
	}
	if !strings.Contains(out, "; -> L0004") {
		t.Errorf("Expected branch annotation, got:\n%s", out)
	}
}
