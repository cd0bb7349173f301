package classfile

// BootstrapMethod is one entry of the BootstrapMethods attribute.
type BootstrapMethod struct {
	Ref  uint16
	Args []uint16
}

func (b BootstrapMethod) equal(o BootstrapMethod) bool {
	if b.Ref != o.Ref || len(b.Args) != len(o.Args) {
		return false
	}
	for i := range b.Args {
		if b.Args[i] != o.Args[i] {
			return false
		}
	}
	return true
}

// ParseBootstrapMethods decodes a BootstrapMethods payload.
func ParseBootstrapMethods(info []byte) ([]BootstrapMethod, error) {
	d := newDecoder(info)
	n := int(d.u2())
	out := make([]BootstrapMethod, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		bm := BootstrapMethod{Ref: d.u2()}
		argc := int(d.u2())
		for j := 0; j < argc && d.err == nil; j++ {
			bm.Args = append(bm.Args, d.u2())
		}
		out = append(out, bm)
	}
	if err := d.finish("bootstrap methods"); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeBootstrapMethods encodes a BootstrapMethods payload.
func EncodeBootstrapMethods(bms []BootstrapMethod) []byte {
	e := &encoder{}
	e.u2(uint16(len(bms)))
	for _, bm := range bms {
		e.u2(bm.Ref)
		e.u2(uint16(len(bm.Args)))
		for _, a := range bm.Args {
			e.u2(a)
		}
	}
	return e.bytes()
}

// InnerClass is one entry of the InnerClasses attribute. Outer and Name are
// zero for anonymous and local classes.
type InnerClass struct {
	Inner       uint16
	Outer       uint16
	Name        uint16
	AccessFlags uint16
}

// ParseInnerClasses decodes an InnerClasses payload.
func ParseInnerClasses(info []byte) ([]InnerClass, error) {
	d := newDecoder(info)
	n := int(d.u2())
	out := make([]InnerClass, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		out = append(out, InnerClass{
			Inner:       d.u2(),
			Outer:       d.u2(),
			Name:        d.u2(),
			AccessFlags: d.u2(),
		})
	}
	if err := d.finish("inner classes"); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeInnerClasses encodes an InnerClasses payload.
func EncodeInnerClasses(entries []InnerClass) []byte {
	e := &encoder{}
	e.u2(uint16(len(entries)))
	for _, ic := range entries {
		e.u2(ic.Inner)
		e.u2(ic.Outer)
		e.u2(ic.Name)
		e.u2(ic.AccessFlags)
	}
	return e.bytes()
}
