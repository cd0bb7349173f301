package merge

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/odvcencio/jarmerge/pkg/archive"
	"github.com/odvcencio/jarmerge/pkg/sideonly"
)

// VerifyReport lists every way a merged archive departs from a reference.
type VerifyReport struct {
	Missing     []string // expected paths absent from the output
	Unexpected  []string // output paths not expected
	Mismatched  []string // paths whose CRC differs from the reference
	Directories []string // directory entries present in the output
}

// OK reports whether the output matched.
func (r *VerifyReport) OK() bool {
	return len(r.Missing) == 0 && len(r.Unexpected) == 0 && len(r.Mismatched) == 0 && len(r.Directories) == 0
}

func (r *VerifyReport) String() string {
	if r.OK() {
		return "ok"
	}
	var b strings.Builder
	section := func(label string, paths []string) {
		for _, p := range paths {
			fmt.Fprintf(&b, "%s %s\n", label, p)
		}
	}
	section("missing", r.Missing)
	section("unexpected", r.Unexpected)
	section("mismatch", r.Mismatched)
	section("directory", r.Directories)
	return b.String()
}

// Verify checks out against a reference archive: the path set must equal
// the reference's plus the marker classes, every CRC must match the
// reference (the bundled CRC for markers), and out must have had no
// directory entries.
func Verify(out, expected *archive.Archive) *VerifyReport {
	want := map[string]uint32{}
	for _, e := range expected.Entries() {
		want[e.Path] = e.CRC32
	}
	for _, e := range sideonly.Entries() {
		want[e.Path] = e.CRC32
	}

	missing, unexpected := lo.Difference(lo.Keys(want), out.Paths())
	slices.Sort(missing)
	slices.Sort(unexpected)

	r := &VerifyReport{
		Missing:     missing,
		Unexpected:  unexpected,
		Directories: slices.Clone(out.Directories),
	}
	for _, e := range out.Entries() {
		if crc, ok := want[e.Path]; ok && crc != e.CRC32 {
			r.Mismatched = append(r.Mismatched, e.Path)
		}
	}
	return r
}
