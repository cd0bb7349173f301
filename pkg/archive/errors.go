package archive

import (
	"errors"
	"fmt"
)

var (
	// ErrCorrupt matches every CorruptArchiveError.
	ErrCorrupt = errors.New("corrupt archive")
	// ErrDuplicateEntry matches every DuplicateEntryError.
	ErrDuplicateEntry = errors.New("duplicate archive entry")
	// ErrWrite matches every WriteError.
	ErrWrite = errors.New("archive write failed")
)

// CorruptArchiveError reports an input that cannot be parsed as an archive,
// or an entry inside it that cannot be read.
type CorruptArchiveError struct {
	Source string
	Path   string // offending entry, empty when the container itself is bad
	Err    error
}

func (e *CorruptArchiveError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("corrupt archive %s: entry %s: %v", e.Source, e.Path, e.Err)
	}
	return fmt.Sprintf("corrupt archive %s: %v", e.Source, e.Err)
}

func (e *CorruptArchiveError) Unwrap() error { return e.Err }

func (e *CorruptArchiveError) Is(target error) bool { return target == ErrCorrupt }

// DuplicateEntryError reports two file entries with the same path.
type DuplicateEntryError struct {
	Source string
	Path   string
}

func (e *DuplicateEntryError) Error() string {
	return fmt.Sprintf("archive %s: duplicate entry %s", e.Source, e.Path)
}

func (e *DuplicateEntryError) Is(target error) bool { return target == ErrDuplicateEntry }

// WriteError reports a destination that could not be created or written.
// Whatever was written before the failure has been removed.
type WriteError struct {
	Path string
	Op   string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) Is(target error) bool { return target == ErrWrite }

func errDirectoryEntry(path string) error {
	return fmt.Errorf("directory entry %s", path)
}
