package archive

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zip"
)

// Open reads the archive at path.
func Open(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	return readZip(path, f, info.Size())
}

// ReadFrom reads an archive from a random-access source of the given size.
func ReadFrom(source string, r io.ReaderAt, size int64) (*Archive, error) {
	return readZip(source, r, size)
}

// Read buffers a stream and reads it as an archive.
func Read(source string, r io.Reader) (*Archive, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read archive stream: %w", err)
	}
	return readZip(source, bytes.NewReader(data), int64(len(data)))
}

func readZip(source string, r io.ReaderAt, size int64) (*Archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, &CorruptArchiveError{Source: source, Err: err}
	}
	registerDecompressors(zr)

	entries := make([]Entry, 0, len(zr.File))
	seen := make(map[string]bool, len(zr.File))
	var dirs []string
	for _, f := range zr.File {
		if IsDirectoryPath(f.Name) {
			dirs = append(dirs, f.Name)
			continue
		}
		if seen[f.Name] {
			return nil, &DuplicateEntryError{Source: source, Path: f.Name}
		}
		seen[f.Name] = true

		data, err := readEntry(f)
		if err != nil {
			return nil, &CorruptArchiveError{Source: source, Path: f.Name, Err: err}
		}
		entries = append(entries, NewEntry(f.Name, data))
	}
	a, err := New(source, entries)
	if err != nil {
		return nil, err
	}
	a.Directories = dirs
	return a, nil
}

// readEntry decompresses one entry; the zip reader verifies the stored CRC
// when the stream reaches EOF.
func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	buf := bytes.NewBuffer(make([]byte, 0, int(min(f.UncompressedSize64, 64<<20))))
	if _, err := io.Copy(buf, rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
