package main

import (
	"fmt"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/odvcencio/jarmerge/pkg/config"
	"github.com/odvcencio/jarmerge/pkg/merge"
)

func newBatchCmd() *cobra.Command {
	var parallel int

	cmd := &cobra.Command{
		Use:   "batch <jobs.toml>",
		Short: "Run every [[job]] of a config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := f.Validate(); err != nil {
				return err
			}
			jobs, err := f.JobConfigs()
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				return fmt.Errorf("%s: no [[job]] tables", args[0])
			}
			for i := range jobs {
				jobs[i].Logger = logger
			}

			reports, err := merge.RunBatch(cmd.Context(), jobs, parallel)
			out := cmd.OutOrStdout()
			for i, r := range reports {
				if r == nil {
					fmt.Fprintf(out, "- %s (not written)\n", jobs[i].OutputPath)
					continue
				}
				fmt.Fprintf(out, "ok %s: %d entries, %d merged classes, %s\n",
					r.Output, r.Entries, r.MergedClasses, humanize.Bytes(uint64(r.BytesWritten)))
			}
			return err
		},
	}

	cmd.Flags().IntVarP(&parallel, "parallel", "j", runtime.NumCPU(), "jobs to run at once")
	return cmd
}
