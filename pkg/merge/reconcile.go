package merge

import (
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/odvcencio/jarmerge/pkg/archive"
	"github.com/odvcencio/jarmerge/pkg/sideonly"
)

// PlannedEntry is one output path with its classification. Data and CRC32
// hold the output bytes once they are known; class merges fill them in when
// the plan is resolved.
type PlannedEntry struct {
	Path       string
	Origin     Origin
	Resolution Resolution
	Client     *archive.Entry // nil when absent from the client
	Server     *archive.Entry // nil when absent from the server
	Data       []byte
	CRC32      uint32
}

// IsClass reports whether the entry is a compiled class.
func (e *PlannedEntry) IsClass() bool {
	return strings.HasSuffix(e.Path, ".class")
}

// Plan is the reconciled entry list of a merge, sorted by path.
type Plan struct {
	Entries  []PlannedEntry
	Excluded []string
	// Overridden lists input paths of the bundled marker classes. They are
	// left out of Entries and never merged.
	Overridden []string
}

// Count returns how many planned entries have origin o.
func (p *Plan) Count(o Origin) int {
	return lo.CountBy(p.Entries, func(e PlannedEntry) bool { return e.Origin == o })
}

// ReconcileOptions controls entry classification.
type ReconcileOptions struct {
	Policy  ResourcePolicy
	Exclude []string
}

// Reconcile pairs the entries of both archives by path and classifies each
// one. One-sided and identical entries carry their input bytes. Divergent
// classes are left for the class merger. Divergent resources are resolved
// by the policy; under PolicyError the first one aborts with a
// ResourceConflictError. Paths of the bundled marker classes are dropped
// from either side.
func Reconcile(client, server *archive.Archive, opts ReconcileOptions) (*Plan, error) {
	policy, err := ParseResourcePolicy(string(opts.Policy))
	if err != nil {
		return nil, err
	}
	excludes, err := newExcludeSet(opts.Exclude)
	if err != nil {
		return nil, err
	}

	paths := lo.Union(client.Paths(), server.Paths())
	slices.Sort(paths)

	plan := &Plan{Entries: make([]PlannedEntry, 0, len(paths))}
	for _, p := range paths {
		if sideonly.IsMarker(p) {
			plan.Overridden = append(plan.Overridden, p)
			continue
		}
		if excludes.match(p) {
			plan.Excluded = append(plan.Excluded, p)
			continue
		}
		pe := PlannedEntry{Path: p}
		if e, ok := client.Get(p); ok {
			pe.Client = &e
		}
		if e, ok := server.Get(p); ok {
			pe.Server = &e
		}

		switch {
		case pe.Server == nil:
			pe.Origin = ClientOnly
			pe.take(pe.Client)
		case pe.Client == nil:
			pe.Origin = ServerOnly
			pe.take(pe.Server)
		case sameContent(pe.Client, pe.Server):
			pe.Origin = Identical
			pe.take(pe.Client)
		default:
			pe.Origin = Divergent
			switch {
			case pe.IsClass():
				pe.Resolution = ClassMerge
			case policy == PolicyServer:
				pe.Resolution = ServerWins
				pe.take(pe.Server)
			case policy == PolicyError:
				return nil, &ResourceConflictError{Path: p, ClientCRC: pe.Client.CRC32, ServerCRC: pe.Server.CRC32}
			default:
				pe.Resolution = ClientWins
				pe.take(pe.Client)
			}
		}
		plan.Entries = append(plan.Entries, pe)
	}
	return plan, nil
}

func (e *PlannedEntry) take(src *archive.Entry) {
	e.Data = src.Data
	e.CRC32 = src.CRC32
}

// sameContent treats equal CRC and equal size as identical content.
func sameContent(a, b *archive.Entry) bool {
	return a.CRC32 == b.CRC32 && len(a.Data) == len(b.Data)
}
