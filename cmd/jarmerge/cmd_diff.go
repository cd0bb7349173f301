package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/jarmerge/pkg/archive"
	"github.com/odvcencio/jarmerge/pkg/diff"
)

func newDiffCmd() *cobra.Command {
	var members bool

	cmd := &cobra.Command{
		Use:   "diff <a.jar> <b.jar>",
		Short: "Show entry changes between two jars",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			before, err := archive.Open(args[0])
			if err != nil {
				return err
			}
			after, err := archive.Open(args[1])
			if err != nil {
				return err
			}

			d := diff.DiffArchives(before, after)
			out := cmd.OutOrStdout()
			if len(d.Changes) == 0 {
				fmt.Fprintln(out, "no changes")
				return nil
			}
			fmt.Fprint(out, diff.FormatArchiveDiff(d))
			if !members {
				return nil
			}

			for _, c := range d.Changes {
				if c.Type != diff.Modified || !strings.HasSuffix(c.Path, ".class") {
					continue
				}
				cd, err := diff.DiffClasses(c.Path, c.Before.Data, c.After.Data)
				if err != nil {
					return err
				}
				if s := diff.FormatClassDiff(cd); s != "" {
					fmt.Fprint(out, "\n"+s)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&members, "members", false, "show field and method changes inside modified classes")
	return cmd
}
