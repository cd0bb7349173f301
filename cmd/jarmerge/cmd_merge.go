package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/odvcencio/jarmerge/pkg/archive"
	"github.com/odvcencio/jarmerge/pkg/config"
	"github.com/odvcencio/jarmerge/pkg/merge"
)

func newMergeCmd() *cobra.Command {
	var (
		configPath       string
		client           string
		server           string
		output           string
		resourceConflict string
		compression      string
		exclude          []string
		annotateClasses  bool
	)

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge a client jar and a server jar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg merge.Config
			if configPath == "" {
				if _, err := os.Stat(config.DefaultName); err == nil {
					configPath = config.DefaultName
				}
			}
			if configPath != "" {
				f, err := config.Load(configPath)
				if err != nil {
					return err
				}
				if err := f.Validate(); err != nil {
					return err
				}
				if cfg, err = f.MergeConfig(); err != nil {
					return err
				}
			}

			flags := cmd.Flags()
			if flags.Changed("client") {
				cfg.ClientPath = client
			}
			if flags.Changed("server") {
				cfg.ServerPath = server
			}
			if flags.Changed("out") {
				cfg.OutputPath = output
			}
			if flags.Changed("resource-conflict") || cfg.ResourcePolicy == "" {
				policy, err := merge.ParseResourcePolicy(resourceConflict)
				if err != nil {
					return err
				}
				cfg.ResourcePolicy = policy
			}
			if flags.Changed("compression") || cfg.Compression == "" {
				method, err := archive.ParseMethod(compression)
				if err != nil {
					return err
				}
				cfg.Compression = method
			}
			if flags.Changed("exclude") {
				cfg.Exclude = exclude
			}
			if flags.Changed("annotate-classes") {
				cfg.AnnotateOneSidedClasses = annotateClasses
			}
			cfg.Logger = logger

			report, err := merge.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "TOML config file (default ./"+config.DefaultName+" if present)")
	cmd.Flags().StringVar(&client, "client", "", "client jar")
	cmd.Flags().StringVar(&server, "server", "", "server jar")
	cmd.Flags().StringVarP(&output, "out", "o", "", "merged jar to write")
	cmd.Flags().StringVar(&resourceConflict, "resource-conflict", string(merge.PolicyClient), "divergent resource policy: client, server or error")
	cmd.Flags().StringVar(&compression, "compression", string(archive.MethodDeflate), "entry compression: deflate, store or zstd")
	cmd.Flags().StringArrayVar(&exclude, "exclude", nil, "drop entries matching a glob (repeatable; dir/** matches a subtree)")
	cmd.Flags().BoolVar(&annotateClasses, "annotate-classes", false, "tag one-sided classes with a class-level @SideOnly")

	return cmd
}

func printReport(w io.Writer, r *merge.Report) {
	fmt.Fprintf(w, "merged %s + %s -> %s\n", r.Client, r.Server, r.Output)
	fmt.Fprintf(w, "  entries:   %d (%s)\n", r.Entries, humanize.Bytes(uint64(r.BytesWritten)))
	fmt.Fprintf(w, "  origins:   %d client-only, %d server-only, %d identical, %d divergent\n",
		r.ClientOnly, r.ServerOnly, r.Identical, r.Divergent)
	fmt.Fprintf(w, "  classes:   %d merged, %d members client-only, %d server-only, %d shared\n",
		r.MergedClasses, r.Members.ClientOnly, r.Members.ServerOnly, r.Members.Shared)
	if r.AnnotatedClasses > 0 {
		fmt.Fprintf(w, "  annotated: %d one-sided classes\n", r.AnnotatedClasses)
	}
	for _, p := range r.DivergentResources {
		fmt.Fprintf(w, "  divergent resource: %s\n", p)
	}
	for _, p := range r.Overridden {
		fmt.Fprintf(w, "  replaced by marker: %s\n", p)
	}
}
