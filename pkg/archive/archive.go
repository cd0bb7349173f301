// Package archive reads and writes jar/zip archives as flat, ordered sets of
// file entries. Directory markers are dropped on read and rejected on write.
package archive

import (
	"hash/crc32"
	"sort"
	"strings"
)

// Entry is one file inside an archive. Data is treated as immutable once the
// entry is built.
type Entry struct {
	Path  string
	Data  []byte
	CRC32 uint32
}

// NewEntry builds an entry and computes its CRC-32.
func NewEntry(path string, data []byte) Entry {
	return Entry{Path: path, Data: data, CRC32: crc32.ChecksumIEEE(data)}
}

// Size returns the uncompressed size of the entry.
func (e Entry) Size() int {
	return len(e.Data)
}

// IsDirectoryPath reports whether a zip entry name denotes a directory marker.
func IsDirectoryPath(name string) bool {
	return strings.HasSuffix(name, "/")
}

// Archive is the set of file entries of one archive, sorted by path.
type Archive struct {
	Source string
	// Directories lists the directory markers dropped while reading.
	Directories []string

	entries []Entry
	index   map[string]int
}

// New builds an archive from entries. Entries are sorted by path; a repeated
// path or a directory path is an error.
func New(source string, entries []Entry) (*Archive, error) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	a := &Archive{Source: source, entries: sorted, index: make(map[string]int, len(sorted))}
	for i, e := range sorted {
		if IsDirectoryPath(e.Path) {
			return nil, &CorruptArchiveError{Source: source, Err: errDirectoryEntry(e.Path)}
		}
		if _, dup := a.index[e.Path]; dup {
			return nil, &DuplicateEntryError{Source: source, Path: e.Path}
		}
		a.index[e.Path] = i
	}
	return a, nil
}

// Len returns the number of entries.
func (a *Archive) Len() int {
	return len(a.entries)
}

// Entries returns the entries in path order. The slice must not be modified.
func (a *Archive) Entries() []Entry {
	return a.entries
}

// Get returns the entry at path.
func (a *Archive) Get(path string) (Entry, bool) {
	i, ok := a.index[path]
	if !ok {
		return Entry{}, false
	}
	return a.entries[i], true
}

// Has reports whether the archive contains path.
func (a *Archive) Has(path string) bool {
	_, ok := a.index[path]
	return ok
}

// Paths returns all entry paths in order.
func (a *Archive) Paths() []string {
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Path
	}
	return out
}

// TotalSize returns the sum of uncompressed entry sizes.
func (a *Archive) TotalSize() int64 {
	var n int64
	for _, e := range a.entries {
		n += int64(len(e.Data))
	}
	return n
}
