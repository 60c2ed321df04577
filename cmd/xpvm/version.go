package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/colorfulnotion/xpvm/common"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			commit := Commit
			if commit == "none" {
				commit = common.GetCommitHash()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "xpvm %s (commit %s, built %s, %s %s/%s)\n",
				Version, commit, BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
