// Package merge combines the client and server variants of an archive into
// one archive. Entries are reconciled by path, divergent classes are merged
// member by member with side markers on one-sided members, and the bundled
// marker classes are always added to the output.
package merge

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/odvcencio/jarmerge/pkg/archive"
	"github.com/odvcencio/jarmerge/pkg/sideonly"
)

// Options controls how two archives are merged.
type Options struct {
	ResourcePolicy ResourcePolicy
	Exclude        []string
	// AnnotateOneSidedClasses tags classes present on one side only with a
	// class-level @SideOnly. Off, those classes are copied unchanged.
	AnnotateOneSidedClasses bool
	Logger                  *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Config describes one merge run over files on disk.
type Config struct {
	ClientPath  string
	ServerPath  string
	OutputPath  string
	Compression archive.Method
	Options
}

// Validate checks that the config can be run.
func (c Config) Validate() error {
	var missing []string
	if c.ClientPath == "" {
		missing = append(missing, "client")
	}
	if c.ServerPath == "" {
		missing = append(missing, "server")
	}
	if c.OutputPath == "" {
		missing = append(missing, "output")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing path: %s", strings.Join(missing, ", "))
	}
	if _, err := archive.ParseMethod(string(c.Compression)); err != nil {
		return err
	}
	if _, err := ParseResourcePolicy(string(c.ResourcePolicy)); err != nil {
		return err
	}
	_, err := newExcludeSet(c.Exclude)
	return err
}

// MemberStats counts member outcomes across all merged classes.
type MemberStats struct {
	ClientOnly    int
	ServerOnly    int
	Shared        int
	BodyDivergent int
}

// Report summarizes a merge.
type Report struct {
	Client string
	Server string
	Output string

	ClientOnly int
	ServerOnly int
	Identical  int
	Divergent  int

	MergedClasses      int
	AnnotatedClasses   int
	Members            MemberStats
	DivergentResources []string
	Excluded           []string
	// Overridden lists input paths replaced by the bundled marker classes.
	Overridden []string
	// Verbatim lists "path: attribute" pairs copied without remapping.
	Verbatim []string

	Entries      int
	BytesWritten int64
}

// Merge merges two archives in memory and returns the output entries in
// write order.
func Merge(ctx context.Context, client, server *archive.Archive, opts Options) ([]archive.Entry, *Report, error) {
	log := opts.logger()
	report := &Report{Client: client.Source, Server: server.Source}

	plan, err := Reconcile(client, server, ReconcileOptions{Policy: opts.ResourcePolicy, Exclude: opts.Exclude})
	if err != nil {
		return nil, nil, err
	}
	report.ClientOnly = plan.Count(ClientOnly)
	report.ServerOnly = plan.Count(ServerOnly)
	report.Identical = plan.Count(Identical)
	report.Divergent = plan.Count(Divergent)
	report.Excluded = plan.Excluded
	report.Overridden = plan.Overridden
	for _, p := range plan.Overridden {
		log.Debug("input entry replaced by bundled marker", zap.String("path", p))
	}
	log.Debug("reconciled entries",
		zap.Int("client_only", report.ClientOnly),
		zap.Int("server_only", report.ServerOnly),
		zap.Int("identical", report.Identical),
		zap.Int("divergent", report.Divergent),
		zap.Int("excluded", len(plan.Excluded)))

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := resolvePlan(ctx, plan, opts, client.Source, server.Source, report, log); err != nil {
		return nil, nil, err
	}

	entries := make([]archive.Entry, 0, len(plan.Entries)+len(sideonly.Paths()))
	for _, pe := range plan.Entries {
		entries = append(entries, archive.Entry{Path: pe.Path, Data: pe.Data, CRC32: pe.CRC32})
	}
	entries = injectAuxiliary(entries)
	report.Entries = len(entries)
	return entries, report, nil
}

// resolvePlan fills in the output bytes of every entry that Reconcile left
// open or that needs a class-level marker.
func resolvePlan(ctx context.Context, plan *Plan, opts Options, clientSource, serverSource string, report *Report, log *zap.Logger) error {
	for i := range plan.Entries {
		pe := &plan.Entries[i]
		switch {
		case pe.Resolution == ClassMerge:
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := mergeClasses(pe.Path, pe.Client.Data, pe.Server.Data, clientSource, serverSource)
			if err != nil {
				return err
			}
			pe.Data = res.Data
			pe.CRC32 = archive.NewEntry(pe.Path, res.Data).CRC32
			report.MergedClasses++
			report.Members.ClientOnly += len(res.ClientOnly)
			report.Members.ServerOnly += len(res.ServerOnly)
			report.Members.Shared += len(res.Shared)
			report.Members.BodyDivergent += len(res.BodyDivergent)
			for _, a := range res.Verbatim {
				report.Verbatim = append(report.Verbatim, pe.Path+": "+a)
			}
			log.Debug("merged class",
				zap.String("path", pe.Path),
				zap.Int("client_only", len(res.ClientOnly)),
				zap.Int("server_only", len(res.ServerOnly)),
				zap.Int("shared", len(res.Shared)))
			if len(res.BodyDivergent) > 0 {
				log.Debug("shared methods differ, client bodies kept",
					zap.String("path", pe.Path),
					zap.Stringers("methods", res.BodyDivergent))
			}
			if len(res.Verbatim) > 0 {
				log.Warn("attributes copied without remapping",
					zap.String("path", pe.Path),
					zap.Strings("attributes", res.Verbatim))
			}

		case pe.Resolution == ClientWins || pe.Resolution == ServerWins:
			report.DivergentResources = append(report.DivergentResources, pe.Path)
			log.Warn("divergent resource",
				zap.String("path", pe.Path),
				zap.Stringer("resolution", pe.Resolution))

		case opts.AnnotateOneSidedClasses && pe.IsClass() && (pe.Origin == ClientOnly || pe.Origin == ServerOnly):
			side, src := sideonly.Client, clientSource
			if pe.Origin == ServerOnly {
				side, src = sideonly.Server, serverSource
			}
			data, changed, err := AnnotateClass(pe.Data, side)
			if err != nil {
				return &archive.CorruptArchiveError{Source: src, Path: pe.Path, Err: err}
			}
			if changed {
				pe.Data = data
				pe.CRC32 = archive.NewEntry(pe.Path, data).CRC32
				pe.Resolution = Annotated
				report.AnnotatedClasses++
			}
		}
	}
	return nil
}

// injectAuxiliary adds the bundled marker classes and keeps the result
// sorted by path. Reconcile has already dropped input entries at the marker
// paths.
func injectAuxiliary(entries []archive.Entry) []archive.Entry {
	out := append(entries, sideonly.Entries()...)
	slices.SortStableFunc(out, func(a, b archive.Entry) int { return strings.Compare(a.Path, b.Path) })
	return out
}

// Run merges the archives named by cfg and writes the result to
// cfg.OutputPath. Nothing is left at the output path when it fails.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log := cfg.logger().With(zap.String("output", cfg.OutputPath))

	client, err := archive.Open(cfg.ClientPath)
	if err != nil {
		return nil, fmt.Errorf("read client: %w", err)
	}
	server, err := archive.Open(cfg.ServerPath)
	if err != nil {
		return nil, fmt.Errorf("read server: %w", err)
	}
	log.Debug("read inputs",
		zap.String("client", cfg.ClientPath), zap.Int("client_entries", client.Len()),
		zap.String("server", cfg.ServerPath), zap.Int("server_entries", server.Len()))

	opts := cfg.Options
	opts.Logger = log
	entries, report, err := Merge(ctx, client, server, opts)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	method, _ := archive.ParseMethod(string(cfg.Compression))
	if err := archive.WriteFile(cfg.OutputPath, entries, archive.WriteOptions{Method: method}); err != nil {
		return nil, err
	}
	report.Output = cfg.OutputPath
	if info, err := os.Stat(cfg.OutputPath); err == nil {
		report.BytesWritten = info.Size()
	}

	log.Info("merge complete",
		zap.Int("entries", report.Entries),
		zap.Int("merged_classes", report.MergedClasses),
		zap.Int("divergent_resources", len(report.DivergentResources)),
		zap.Int64("bytes", report.BytesWritten))
	return report, nil
}
