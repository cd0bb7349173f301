package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/odvcencio/jarmerge/pkg/archive"
	"github.com/odvcencio/jarmerge/pkg/logging"
	"github.com/odvcencio/jarmerge/pkg/merge"
	"github.com/odvcencio/jarmerge/pkg/sideonly"
)

const version = "0.1.0-dev"

var logger = zap.NewNop()

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "jarmerge:", err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	var logOpts logging.Options

	root := &cobra.Command{
		Use:           "jarmerge",
		Short:         "Merge client and server jars into one side-annotated jar",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := logging.New(logOpts)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	bindLogFlags(root.PersistentFlags(), &logOpts)

	root.AddCommand(newVersionCmd())
	root.AddCommand(newMergeCmd())
	root.AddCommand(newBatchCmd())
	root.AddCommand(newVerifyCmd())
	root.AddCommand(newDiffCmd())
	root.AddCommand(newInspectCmd())
	return root
}

func bindLogFlags(fs *pflag.FlagSet, opts *logging.Options) {
	fs.BoolVarP(&opts.Verbose, "verbose", "v", false, "log per-entry decisions")
	fs.BoolVar(&opts.JSON, "log-json", false, "log as JSON")
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "jarmerge %s (markers %s)\n", version, sideonly.Version)
		},
	}
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	switch {
	case errors.Is(err, archive.ErrCorrupt), errors.Is(err, archive.ErrDuplicateEntry):
		return 2
	case errors.Is(err, merge.ErrIncompatible), errors.Is(err, merge.ErrResourceConflict):
		return 3
	case errors.Is(err, archive.ErrWrite):
		return 4
	}
	return 1
}
