package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/colorfulnotion/xpvm/common"
	"github.com/colorfulnotion/xpvm/xpvm/block"
	"github.com/colorfulnotion/xpvm/xpvm/objfile"
	"github.com/colorfulnotion/xpvm/xpvm/program"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <object-file>",
		Short: "Print the block table of an object file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := objfile.ReadFile(args[0])
			if err != nil {
				return err
			}
			return printInspect(cmd.OutOrStdout(), args[0], f)
		},
	}
}

func printInspect(w io.Writer, path string, f *objfile.File) error {
	raw, err := f.Bytes()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, inspectTree(path, common.Blake2Hash(raw), f).String())
	return err
}

func inspectTree(path string, digest common.Hash, f *objfile.File) treeprint.Tree {
	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("%s%s%s blocks=%d blake2b=%s", common.ColorCyan, path, common.ColorReset, len(f.Blocks), digest.String_short()))
	for i, b := range f.Blocks {
		label := fmt.Sprintf("[%d] %s len=%d frame=%d annots=%s", i, b.Name, len(b.Content), b.FrameSize, block.AnnotString(b.Annots))
		if i == 0 {
			label += " (entry)"
		}
		node := tree.AddBranch(label)
		if b.Annots&block.Instruction != 0 {
			stats := program.Code(b.Content).Analyze()
			node.AddNode(fmt.Sprintf("instructions=%d calls=%d branch targets=%d", stats.InstructionCount, stats.CallCount, len(stats.BranchTargets)))
		}
		if len(b.Handlers) > 0 {
			hs := node.AddBranch("handlers")
			for _, h := range b.Handlers {
				hs.AddNode(fmt.Sprintf("%04x..%04x -> %04x", h.Start, h.End, h.Target))
			}
		}
		if len(b.NativeRefs) > 0 {
			ns := node.AddBranch("native refs")
			for _, r := range b.NativeRefs {
				ns.AddNode(fmt.Sprintf("%04x %s", r.Offset, r.Name))
			}
		}
		if len(b.OutSymbols) > 0 {
			syms := node.AddBranch("out symbols")
			for _, name := range b.OutSymbols {
				syms.AddNode(name)
			}
		}
		if len(b.AuxData) > 0 {
			node.AddNode(fmt.Sprintf("aux data %d bytes", len(b.AuxData)))
		}
	}
	return tree
}
