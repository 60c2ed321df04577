package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/colorfulnotion/xpvm/xpvm/trace"
)

func newTraceCmd() *cobra.Command {
	var proc uint64
	cmd := &cobra.Command{
		Use:   "trace <leveldb-dir>",
		Short: "Dump an instruction trace recorded with --trace-db",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := trace.OpenStore(args[0])
			if err != nil {
				return err
			}
			defer store.Close()
			return dumpTrace(cmd.OutOrStdout(), store, proc)
		},
	}
	cmd.Flags().Uint64Var(&proc, "proc", 0, "only dump this processor (0 dumps all)")
	return cmd
}

func dumpTrace(w io.Writer, store *trace.Store, only uint64) error {
	procs := []uint64{only}
	if only == 0 {
		var err error
		if procs, err = store.Processors(); err != nil {
			return err
		}
	}
	enc := json.NewEncoder(w)
	for _, id := range procs {
		var encErr error
		err := store.Iterate(id, func(s *trace.Step) bool {
			encErr = enc.Encode(s)
			return encErr == nil
		})
		if err != nil {
			return fmt.Errorf("processor %d: %w", id, err)
		}
		if encErr != nil {
			return encErr
		}
	}
	return nil
}
