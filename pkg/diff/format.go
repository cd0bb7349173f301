package diff

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// FormatArchiveDiff produces a human-readable entry-level summary of changes.
//
// Output format:
//
//	+ path     (added, 1.2 kB)
//	~ path     (modified, 1.2 kB -> 1.3 kB)
//	- path     (removed)
func FormatArchiveDiff(d *ArchiveDiff) string {
	if len(d.Changes) == 0 {
		return ""
	}

	var b strings.Builder
	for _, c := range d.Changes {
		switch c.Type {
		case Added:
			fmt.Fprintf(&b, "+ %s     (added, %s)\n", c.Path, humanize.Bytes(uint64(c.After.Size())))
		case Removed:
			fmt.Fprintf(&b, "- %s     (removed)\n", c.Path)
		case Modified:
			fmt.Fprintf(&b, "~ %s     (modified, %s -> %s)\n", c.Path,
				humanize.Bytes(uint64(c.Before.Size())), humanize.Bytes(uint64(c.After.Size())))
		}
	}
	return b.String()
}

// FormatClassDiff produces a member-level summary of a class diff.
//
// Output format:
//
//	path:
//	  + method name(desc)     (added)
//	  ~ field name:desc     (modified: detail)
//	  - method name(desc)     (removed)
func FormatClassDiff(d *ClassDiff) string {
	if len(d.Changes) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", d.Path)

	for _, c := range d.Changes {
		var marker string
		switch c.Type {
		case Added:
			marker = "+"
		case Removed:
			marker = "-"
		case Modified:
			marker = "~"
		}
		label := c.Type.String()
		if c.Detail != "" {
			label += ": " + c.Detail
		}
		fmt.Fprintf(&b, "  %s %s     (%s)\n", marker, memberDisplayName(c), label)
	}
	return b.String()
}

func memberDisplayName(c MemberChange) string {
	if c.Method {
		return "method " + c.Name + c.Descriptor
	}
	return "field " + c.Name + ":" + c.Descriptor
}
