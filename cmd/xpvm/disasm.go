package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/colorfulnotion/xpvm/xpvm/block"
	"github.com/colorfulnotion/xpvm/xpvm/objfile"
	"github.com/colorfulnotion/xpvm/xpvm/program"
)

func newDisasmCmd() *cobra.Command {
	var (
		name  string
		stats bool
	)
	cmd := &cobra.Command{
		Use:   "disasm <object-file>",
		Short: "Disassemble the instruction blocks of an object file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := objfile.ReadFile(args[0])
			if err != nil {
				return err
			}
			return disassemble(cmd.OutOrStdout(), f, name, stats)
		},
	}
	cmd.Flags().StringVar(&name, "block", "", "only disassemble the named block")
	cmd.Flags().BoolVar(&stats, "stats", false, "print the opcode distribution of each block")
	return cmd
}

func disassemble(w io.Writer, f *objfile.File, only string, withStats bool) error {
	found := only == ""
	for _, b := range f.Blocks {
		if b.Annots&block.Instruction == 0 || (only != "" && b.Name != only) {
			continue
		}
		found = true
		code := program.Code(b.Content)
		fmt.Fprintf(w, "%s:  ; frame=%d\n%s", b.Name, b.FrameSize, code.Disassemble())
		if withStats {
			printStats(w, code.Analyze())
		}
		fmt.Fprintln(w)
	}
	if !found {
		return fmt.Errorf("no instruction block named %q", only)
	}
	return nil
}

func printStats(w io.Writer, s *program.ProgramStats) {
	ops := make([]int, 0, len(s.OpcodeDistribution))
	for op := range s.OpcodeDistribution {
		ops = append(ops, int(op))
	}
	sort.Ints(ops)
	fmt.Fprintf(w, "  ; %d instructions, %d unknown, %d calls\n", s.InstructionCount, s.UnknownCount, s.CallCount)
	for _, op := range ops {
		fmt.Fprintf(w, "  ;   %-12s %d\n", program.Info(byte(op)).Name, s.OpcodeDistribution[byte(op)])
	}
}
