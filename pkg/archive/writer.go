package archive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// DefaultTimestamp is stamped on every written entry so repeated runs over
// the same inputs produce identical bytes. It is the earliest time the zip
// DOS date field can hold.
var DefaultTimestamp = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// WriteOptions controls entry encoding.
type WriteOptions struct {
	Method    Method
	Level     int       // deflate level; zero selects flate.DefaultCompression
	Timestamp time.Time // zero selects DefaultTimestamp
}

func (o WriteOptions) normalized() WriteOptions {
	if o.Method == "" {
		o.Method = MethodDeflate
	}
	if o.Level == 0 {
		o.Level = flate.DefaultCompression
	}
	if o.Timestamp.IsZero() {
		o.Timestamp = DefaultTimestamp
	}
	return o
}

// Write encodes entries, in the given order, as a zip stream.
func Write(w io.Writer, entries []Entry, opts WriteOptions) error {
	opts = opts.normalized()
	zw := zip.NewWriter(w)
	registerCompressors(zw, opts.Level)

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if IsDirectoryPath(e.Path) {
			return errDirectoryEntry(e.Path)
		}
		if seen[e.Path] {
			return fmt.Errorf("duplicate entry %s", e.Path)
		}
		seen[e.Path] = true

		hdr := &zip.FileHeader{
			Name:     e.Path,
			Method:   opts.Method.zipMethod(),
			Modified: opts.Timestamp,
		}
		ew, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("entry %s: %w", e.Path, err)
		}
		if _, err := ew.Write(e.Data); err != nil {
			return fmt.Errorf("entry %s: %w", e.Path, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return nil
}

// WriteFile writes entries to path through a temporary file in the same
// directory and renames it into place. On failure nothing is left at path
// and the temporary file is removed.
func WriteFile(path string, entries []Entry, opts WriteOptions) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".jarmerge-*.tmp")
	if err != nil {
		return &WriteError{Path: path, Op: "create", Err: err}
	}
	tmpName := tmp.Name()
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &WriteError{Path: path, Op: "create", Err: err}
	}

	bw := bufio.NewWriterSize(tmp, 256<<10)
	if err := Write(bw, entries, opts); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &WriteError{Path: path, Op: "encode", Err: err}
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &WriteError{Path: path, Op: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &WriteError{Path: path, Op: "close", Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &WriteError{Path: path, Op: "rename", Err: err}
	}
	return nil
}
