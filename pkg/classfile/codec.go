package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformed is wrapped by every decode failure in this package.
var ErrMalformed = errors.New("malformed class file")

// decoder reads big-endian class-file primitives. The first failure sticks;
// callers check err once after a batch of reads.
type decoder struct {
	data []byte
	off  int
	err  error
}

func newDecoder(data []byte) *decoder {
	return &decoder{data: data}
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
	}
}

func (d *decoder) need(n int) bool {
	if d.err != nil {
		return false
	}
	if n < 0 || d.off+n > len(d.data) {
		d.fail("truncated at offset %d (need %d bytes, have %d)", d.off, n, len(d.data)-d.off)
		return false
	}
	return true
}

func (d *decoder) u1() uint8 {
	if !d.need(1) {
		return 0
	}
	v := d.data[d.off]
	d.off++
	return v
}

func (d *decoder) u2() uint16 {
	if !d.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(d.data[d.off:])
	d.off += 2
	return v
}

func (d *decoder) u4() uint32 {
	if !d.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(d.data[d.off:])
	d.off += 4
	return v
}

// bytes returns a copy of the next n bytes.
func (d *decoder) bytes(n int) []byte {
	if !d.need(n) {
		return nil
	}
	out := make([]byte, n)
	copy(out, d.data[d.off:d.off+n])
	d.off += n
	return out
}

// finish reports trailing bytes as malformed input.
func (d *decoder) finish(what string) error {
	if d.err != nil {
		return d.err
	}
	if d.off != len(d.data) {
		return fmt.Errorf("%w: %s has %d trailing bytes", ErrMalformed, what, len(d.data)-d.off)
	}
	return nil
}

// encoder appends big-endian class-file primitives.
type encoder struct {
	buf []byte
}

func (e *encoder) u1(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *encoder) u2(v uint16) {
	e.buf = binary.BigEndian.AppendUint16(e.buf, v)
}

func (e *encoder) u4(v uint32) {
	e.buf = binary.BigEndian.AppendUint32(e.buf, v)
}

func (e *encoder) raw(b []byte) {
	e.buf = append(e.buf, b...)
}

func (e *encoder) bytes() []byte {
	return e.buf
}
