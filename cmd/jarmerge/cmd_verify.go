package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/jarmerge/pkg/archive"
	"github.com/odvcencio/jarmerge/pkg/merge"
)

var errVerifyFailed = errors.New("verification failed")

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <merged.jar> <expected.jar>",
		Short: "Check a merged jar against a reference jar",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := archive.Open(args[0])
			if err != nil {
				return err
			}
			expected, err := archive.Open(args[1])
			if err != nil {
				return err
			}

			report := merge.Verify(out, expected)
			if !report.OK() {
				fmt.Fprint(cmd.OutOrStdout(), report.String())
				return errVerifyFailed
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d entries match %s\n", out.Len(), args[1])
			return nil
		},
	}
}
