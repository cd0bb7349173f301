package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/odvcencio/jarmerge/pkg/archive"
	"github.com/odvcencio/jarmerge/pkg/sideonly"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.jar>",
		Short: "List the entries of a jar with sizes and CRCs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := archive.Open(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range a.Entries() {
				line := fmt.Sprintf("%08x  %9s  %s", e.CRC32, humanize.Bytes(uint64(e.Size())), e.Path)
				if sideonly.IsMarker(e.Path) {
					line += "  (marker)"
				}
				fmt.Fprintln(out, line)
			}
			fmt.Fprintf(out, "%d entries, %s", a.Len(), humanize.Bytes(uint64(a.TotalSize())))
			if n := len(a.Directories); n > 0 {
				fmt.Fprintf(out, ", %d directory entries", n)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}
