package classfile

// Verification type tags.
const (
	VTTop               = 0
	VTInteger           = 1
	VTFloat             = 2
	VTDouble            = 3
	VTLong              = 4
	VTNull              = 5
	VTUninitializedThis = 6
	VTObject            = 7
	VTUninitialized     = 8
)

// VerificationType is one verification_type_info. Index is the Class
// constant for VTObject; Offset is the allocating new instruction for
// VTUninitialized.
type VerificationType struct {
	Tag    uint8
	Index  uint16
	Offset uint16
}

// FrameKind is the shape of a stack map frame.
type FrameKind uint8

const (
	FrameSame FrameKind = iota
	FrameSameLocals1
	FrameChop
	FrameAppend
	FrameFull
)

// Frame is one stack map frame with its absolute bytecode offset. Extended
// records that the frame used the explicit u2 offset_delta form.
type Frame struct {
	Kind     FrameKind
	Offset   int
	Extended bool
	Chop     int
	Locals   []VerificationType
	Stack    []VerificationType
}

func decodeVerificationType(d *decoder) VerificationType {
	v := VerificationType{Tag: d.u1()}
	switch v.Tag {
	case VTObject:
		v.Index = d.u2()
	case VTUninitialized:
		v.Offset = d.u2()
	default:
		if v.Tag > VTUninitialized && d.err == nil {
			d.fail("unknown verification type %d", v.Tag)
		}
	}
	return v
}

func encodeVerificationType(e *encoder, v VerificationType) {
	e.u1(v.Tag)
	switch v.Tag {
	case VTObject:
		e.u2(v.Index)
	case VTUninitialized:
		e.u2(v.Offset)
	}
}

func decodeVerificationTypes(d *decoder, n int) []VerificationType {
	out := make([]VerificationType, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		out = append(out, decodeVerificationType(d))
	}
	return out
}

// ParseStackMapTable decodes a StackMapTable payload into frames with
// absolute offsets.
func ParseStackMapTable(info []byte) ([]Frame, error) {
	d := newDecoder(info)
	n := int(d.u2())
	frames := make([]Frame, 0, n)
	offset := -1
	for i := 0; i < n && d.err == nil; i++ {
		t := d.u1()
		var f Frame
		var delta int
		switch {
		case t <= 63:
			f.Kind = FrameSame
			delta = int(t)
		case t <= 127:
			f.Kind = FrameSameLocals1
			delta = int(t - 64)
			f.Stack = decodeVerificationTypes(d, 1)
		case t < 247:
			d.fail("reserved stack map frame type %d", t)
		case t == 247:
			f.Kind = FrameSameLocals1
			f.Extended = true
			delta = int(d.u2())
			f.Stack = decodeVerificationTypes(d, 1)
		case t <= 250:
			f.Kind = FrameChop
			f.Chop = int(251 - t)
			delta = int(d.u2())
		case t == 251:
			f.Kind = FrameSame
			f.Extended = true
			delta = int(d.u2())
		case t <= 254:
			f.Kind = FrameAppend
			delta = int(d.u2())
			f.Locals = decodeVerificationTypes(d, int(t-251))
		default:
			f.Kind = FrameFull
			delta = int(d.u2())
			f.Locals = decodeVerificationTypes(d, int(d.u2()))
			f.Stack = decodeVerificationTypes(d, int(d.u2()))
		}
		offset += delta + 1
		f.Offset = offset
		frames = append(frames, f)
	}
	if err := d.finish("stack map table"); err != nil {
		return nil, err
	}
	return frames, nil
}

// EncodeStackMapTable encodes frames, recomputing offset deltas. Compact
// frame forms are widened when their delta no longer fits.
func EncodeStackMapTable(frames []Frame) []byte {
	e := &encoder{}
	e.u2(uint16(len(frames)))
	prev := -1
	for _, f := range frames {
		delta := f.Offset - prev - 1
		prev = f.Offset
		switch f.Kind {
		case FrameSame:
			if !f.Extended && delta <= 63 {
				e.u1(uint8(delta))
			} else {
				e.u1(251)
				e.u2(uint16(delta))
			}
		case FrameSameLocals1:
			if !f.Extended && delta <= 63 {
				e.u1(uint8(64 + delta))
			} else {
				e.u1(247)
				e.u2(uint16(delta))
			}
			encodeVerificationType(e, f.Stack[0])
		case FrameChop:
			e.u1(uint8(251 - f.Chop))
			e.u2(uint16(delta))
		case FrameAppend:
			e.u1(uint8(251 + len(f.Locals)))
			e.u2(uint16(delta))
			for _, v := range f.Locals {
				encodeVerificationType(e, v)
			}
		case FrameFull:
			e.u1(255)
			e.u2(uint16(delta))
			e.u2(uint16(len(f.Locals)))
			for _, v := range f.Locals {
				encodeVerificationType(e, v)
			}
			e.u2(uint16(len(f.Stack)))
			for _, v := range f.Stack {
				encodeVerificationType(e, v)
			}
		}
	}
	return e.bytes()
}
