package archive

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// Method selects how entries are compressed on write.
type Method string

const (
	MethodDeflate Method = "deflate"
	MethodStore   Method = "store"
	MethodZstd    Method = "zstd"
)

// ParseMethod validates a method name. The empty string selects deflate.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "", MethodDeflate:
		return MethodDeflate, nil
	case MethodStore, MethodZstd:
		return Method(s), nil
	}
	return "", fmt.Errorf("unknown compression method %q (want deflate, store or zstd)", s)
}

// zipMethod maps a Method to its zip header method id.
func (m Method) zipMethod() uint16 {
	switch m {
	case MethodStore:
		return zip.Store
	case MethodZstd:
		return zstd.ZipMethodWinZip
	}
	return zip.Deflate
}

// registerDecompressors lets a reader open zstd entries alongside the
// built-in store and deflate methods.
func registerDecompressors(zr *zip.Reader) {
	zr.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())
	zr.RegisterDecompressor(zstd.ZipMethodPKWare, zstd.ZipDecompressor())
}

// registerCompressors installs the deflate level and the zstd encoder on a
// writer.
func registerCompressors(zw *zip.Writer, level int) {
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, level)
	})
	zw.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())
}
