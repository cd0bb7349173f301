package classfile

import (
	"encoding/binary"
	"fmt"
)

// Importer copies members and attributes from a source class into a
// destination class. Every constant-pool reference is re-interned into the
// destination pool, invokedynamic bootstrap methods are appended to the
// destination's BootstrapMethods table, and method bodies are relocated
// when an ldc operand has to be widened. Call Finish once all imports are
// done.
type Importer struct {
	src *ClassFile
	dst *ClassFile

	memo    map[uint16]uint16
	bsmMemo map[uint16]uint16

	srcBootstrap     []BootstrapMethod
	dstBootstrap     []BootstrapMethod
	bootstrapChanged bool

	// Unknown lists attribute names that were copied verbatim because their
	// layout is not known; their payloads may still hold source pool indices.
	Unknown []string
}

// NewImporter prepares an import from src into dst.
func NewImporter(dst, src *ClassFile) (*Importer, error) {
	im := &Importer{
		src:     src,
		dst:     dst,
		memo:    make(map[uint16]uint16),
		bsmMemo: make(map[uint16]uint16),
	}
	var err error
	if i := src.FindAttribute(src.Attributes, AttrBootstrapMethods); i >= 0 {
		if im.srcBootstrap, err = ParseBootstrapMethods(src.Attributes[i].Info); err != nil {
			return nil, fmt.Errorf("source bootstrap methods: %w", err)
		}
	}
	if i := dst.FindAttribute(dst.Attributes, AttrBootstrapMethods); i >= 0 {
		if im.dstBootstrap, err = ParseBootstrapMethods(dst.Attributes[i].Info); err != nil {
			return nil, fmt.Errorf("destination bootstrap methods: %w", err)
		}
	}
	return im, nil
}

// Constant imports source constant i and returns its destination index.
func (im *Importer) Constant(i uint16) (uint16, error) {
	if n, ok := im.memo[i]; ok {
		return n, nil
	}
	c, err := im.src.Pool.Get(i)
	if err != nil {
		return 0, err
	}
	refA, refB := c.poolRefs()
	if refA {
		if c.A, err = im.Constant(c.A); err != nil {
			return 0, err
		}
	}
	if refB {
		if c.B, err = im.Constant(c.B); err != nil {
			return 0, err
		}
	}
	if c.Tag == TagDynamic || c.Tag == TagInvokeDynamic {
		if c.A, err = im.bootstrap(c.A); err != nil {
			return 0, err
		}
	}
	n, err := im.dst.Pool.Add(c)
	if err != nil {
		return 0, err
	}
	im.memo[i] = n
	return n, nil
}

// optional imports an index where zero means "absent".
func (im *Importer) optional(i uint16) (uint16, error) {
	if i == 0 {
		return 0, nil
	}
	return im.Constant(i)
}

func (im *Importer) bootstrap(i uint16) (uint16, error) {
	if n, ok := im.bsmMemo[i]; ok {
		return n, nil
	}
	if int(i) >= len(im.srcBootstrap) {
		return 0, fmt.Errorf("%w: bootstrap method %d out of range", ErrMalformed, i)
	}
	src := im.srcBootstrap[i]
	bm := BootstrapMethod{Args: make([]uint16, len(src.Args))}
	var err error
	if bm.Ref, err = im.Constant(src.Ref); err != nil {
		return 0, err
	}
	for j, a := range src.Args {
		if bm.Args[j], err = im.Constant(a); err != nil {
			return 0, err
		}
	}
	for j, existing := range im.dstBootstrap {
		if existing.equal(bm) {
			im.bsmMemo[i] = uint16(j)
			return uint16(j), nil
		}
	}
	n := uint16(len(im.dstBootstrap))
	im.dstBootstrap = append(im.dstBootstrap, bm)
	im.bootstrapChanged = true
	im.bsmMemo[i] = n
	return n, nil
}

// Finish writes back the destination BootstrapMethods table if imports
// added to it.
func (im *Importer) Finish() error {
	if !im.bootstrapChanged {
		return nil
	}
	attrs, err := im.dst.SetAttribute(im.dst.Attributes, AttrBootstrapMethods, EncodeBootstrapMethods(im.dstBootstrap))
	if err != nil {
		return err
	}
	im.dst.Attributes = attrs
	im.bootstrapChanged = false
	return nil
}

// Member returns a copy of a source field or method expressed against the
// destination pool.
func (im *Importer) Member(m *Member) (*Member, error) {
	name, err := im.Constant(m.Name)
	if err != nil {
		return nil, err
	}
	desc, err := im.Constant(m.Descriptor)
	if err != nil {
		return nil, err
	}
	attrs, err := im.Attributes(m.Attributes)
	if err != nil {
		return nil, err
	}
	return &Member{AccessFlags: m.AccessFlags, Name: name, Descriptor: desc, Attributes: attrs}, nil
}

// Attributes imports a list of member or class attributes.
func (im *Importer) Attributes(attrs []Attribute) ([]Attribute, error) {
	return im.attributes(attrs, nil)
}

func (im *Importer) attributes(attrs []Attribute, rw *codeRewrite) ([]Attribute, error) {
	out := make([]Attribute, 0, len(attrs))
	for _, a := range attrs {
		name, err := im.src.Pool.Utf8(a.Name)
		if err != nil {
			return nil, err
		}
		info, err := im.attribute(name, a.Info, rw)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		idx, err := im.Constant(a.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, Attribute{Name: idx, Info: info})
	}
	return out, nil
}

func (im *Importer) attribute(name string, info []byte, rw *codeRewrite) ([]byte, error) {
	switch name {
	case AttrConstantValue, AttrSignature, AttrSourceFile, "NestHost":
		return im.u2List(info, false)
	case AttrExceptions, "NestMembers", "PermittedSubclasses":
		return im.u2List(info, true)
	case AttrSynthetic, AttrDeprecated, "SourceDebugExtension":
		return append([]byte(nil), info...), nil
	case AttrRuntimeVisibleAnnotations, AttrRuntimeInvisibleAnnotations:
		anns, err := ParseAnnotations(info)
		if err != nil {
			return nil, err
		}
		for i := range anns {
			if err := im.annotation(&anns[i]); err != nil {
				return nil, err
			}
		}
		return EncodeAnnotations(anns), nil
	case AttrRuntimeVisibleParameterAnnotations, AttrRuntimeInvisibleParameterAnnotations:
		params, err := ParseParameterAnnotations(info)
		if err != nil {
			return nil, err
		}
		for _, anns := range params {
			for i := range anns {
				if err := im.annotation(&anns[i]); err != nil {
					return nil, err
				}
			}
		}
		return EncodeParameterAnnotations(params), nil
	case AttrRuntimeVisibleTypeAnnotations, AttrRuntimeInvisibleTypeAnnotations:
		return im.typeAnnotations(info, rw)
	case AttrAnnotationDefault:
		v, err := ParseElementValue(info)
		if err != nil {
			return nil, err
		}
		if err := im.elementValue(&v); err != nil {
			return nil, err
		}
		return EncodeElementValue(v), nil
	case AttrMethodParameters:
		return im.methodParameters(info)
	case AttrInnerClasses:
		return im.innerClasses(info)
	case AttrCode:
		if rw != nil {
			break
		}
		return im.code(info)
	case AttrLineNumberTable:
		if rw == nil {
			break
		}
		return lineNumbers(info, rw)
	case AttrLocalVariableTable, AttrLocalVariableTypeTable:
		if rw == nil {
			break
		}
		return im.localVariables(info, rw)
	case AttrStackMapTable:
		if rw == nil {
			break
		}
		return im.stackMap(info, rw)
	}
	im.Unknown = append(im.Unknown, name)
	return append([]byte(nil), info...), nil
}

// u2List remaps a payload made of pool indices, optionally prefixed by a u2
// count.
func (im *Importer) u2List(info []byte, counted bool) ([]byte, error) {
	d := newDecoder(info)
	n := 1
	e := &encoder{}
	if counted {
		n = int(d.u2())
		e.u2(uint16(n))
	}
	for i := 0; i < n && d.err == nil; i++ {
		idx, err := im.Constant(d.u2())
		if d.err != nil {
			break
		}
		if err != nil {
			return nil, err
		}
		e.u2(idx)
	}
	if err := d.finish("index list"); err != nil {
		return nil, err
	}
	return e.bytes(), nil
}

func (im *Importer) annotation(a *Annotation) error {
	var err error
	if a.Type, err = im.Constant(a.Type); err != nil {
		return err
	}
	for i := range a.Elements {
		if a.Elements[i].Name, err = im.Constant(a.Elements[i].Name); err != nil {
			return err
		}
		if err := im.elementValue(&a.Elements[i].Value); err != nil {
			return err
		}
	}
	return nil
}

func (im *Importer) elementValue(v *ElementValue) error {
	var err error
	switch v.Tag {
	case 'e':
		if v.EnumType, err = im.Constant(v.EnumType); err != nil {
			return err
		}
		v.EnumConst, err = im.Constant(v.EnumConst)
	case 'c':
		v.Class, err = im.Constant(v.Class)
	case '@':
		err = im.annotation(v.Annotation)
	case '[':
		for i := range v.Values {
			if err = im.elementValue(&v.Values[i]); err != nil {
				return err
			}
		}
	default:
		v.Const, err = im.Constant(v.Const)
	}
	return err
}

func (im *Importer) typeAnnotations(info []byte, rw *codeRewrite) ([]byte, error) {
	tas, err := ParseTypeAnnotations(info)
	if err != nil {
		return nil, err
	}
	for i := range tas {
		if err := im.annotation(&tas[i].Annotation); err != nil {
			return nil, err
		}
		if rw != nil {
			if err := relocateTypeTarget(&tas[i], rw); err != nil {
				return nil, err
			}
		}
	}
	return EncodeTypeAnnotations(tas), nil
}

func relocateTypeTarget(ta *TypeAnnotation, rw *codeRewrite) error {
	info := ta.TargetInfo
	switch {
	case ta.TargetType == targetLocalVariable || ta.TargetType == targetResourceVariable:
		for at := 2; at+6 <= len(info); at += 6 {
			start, length, err := rw.pcRange(int(binary.BigEndian.Uint16(info[at:])), int(binary.BigEndian.Uint16(info[at+2:])))
			if err != nil {
				return err
			}
			binary.BigEndian.PutUint16(info[at:], uint16(start))
			binary.BigEndian.PutUint16(info[at+2:], uint16(length))
		}
	case ta.TargetType >= targetInstanceofOffset && ta.TargetType <= targetTypeArgumentMaxOffset:
		pc, err := rw.pc(int(binary.BigEndian.Uint16(info)))
		if err != nil {
			return err
		}
		binary.BigEndian.PutUint16(info, uint16(pc))
	}
	return nil
}

func (im *Importer) methodParameters(info []byte) ([]byte, error) {
	d := newDecoder(info)
	e := &encoder{}
	n := int(d.u1())
	e.u1(uint8(n))
	for i := 0; i < n && d.err == nil; i++ {
		name, err := im.optional(d.u2())
		if err != nil {
			return nil, err
		}
		e.u2(name)
		e.u2(d.u2())
	}
	if err := d.finish("method parameters"); err != nil {
		return nil, err
	}
	return e.bytes(), nil
}

func (im *Importer) innerClasses(info []byte) ([]byte, error) {
	entries, err := ParseInnerClasses(info)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i], err = im.InnerClass(entries[i]); err != nil {
			return nil, err
		}
	}
	return EncodeInnerClasses(entries), nil
}

// InnerClass imports one InnerClasses entry.
func (im *Importer) InnerClass(ic InnerClass) (InnerClass, error) {
	var err error
	if ic.Inner, err = im.Constant(ic.Inner); err != nil {
		return ic, err
	}
	if ic.Outer, err = im.optional(ic.Outer); err != nil {
		return ic, err
	}
	if ic.Name, err = im.optional(ic.Name); err != nil {
		return ic, err
	}
	return ic, nil
}

func (im *Importer) code(info []byte) ([]byte, error) {
	c, err := ParseCode(info)
	if err != nil {
		return nil, err
	}
	rw, err := rewriteCode(c.Code, im.Constant)
	if err != nil {
		return nil, err
	}
	c.Code = rw.code
	for i := range c.Exceptions {
		h := &c.Exceptions[i]
		start, err := rw.pc(int(h.StartPC))
		if err != nil {
			return nil, err
		}
		end, err := rw.pc(int(h.EndPC))
		if err != nil {
			return nil, err
		}
		handler, err := rw.pc(int(h.HandlerPC))
		if err != nil {
			return nil, err
		}
		h.StartPC, h.EndPC, h.HandlerPC = uint16(start), uint16(end), uint16(handler)
		if h.CatchType, err = im.optional(h.CatchType); err != nil {
			return nil, err
		}
	}
	if c.Attributes, err = im.attributes(c.Attributes, rw); err != nil {
		return nil, err
	}
	return c.Encode(), nil
}

func lineNumbers(info []byte, rw *codeRewrite) ([]byte, error) {
	d := newDecoder(info)
	e := &encoder{}
	n := int(d.u2())
	e.u2(uint16(n))
	for i := 0; i < n && d.err == nil; i++ {
		pc, err := rw.pc(int(d.u2()))
		if d.err != nil {
			break
		}
		if err != nil {
			return nil, err
		}
		e.u2(uint16(pc))
		e.u2(d.u2())
	}
	if err := d.finish("line number table"); err != nil {
		return nil, err
	}
	return e.bytes(), nil
}

func (im *Importer) localVariables(info []byte, rw *codeRewrite) ([]byte, error) {
	d := newDecoder(info)
	e := &encoder{}
	n := int(d.u2())
	e.u2(uint16(n))
	for i := 0; i < n && d.err == nil; i++ {
		startPC, length := int(d.u2()), int(d.u2())
		name, desc, slot := d.u2(), d.u2(), d.u2()
		if d.err != nil {
			break
		}
		start, size, err := rw.pcRange(startPC, length)
		if err != nil {
			return nil, err
		}
		if name, err = im.Constant(name); err != nil {
			return nil, err
		}
		if desc, err = im.Constant(desc); err != nil {
			return nil, err
		}
		e.u2(uint16(start))
		e.u2(uint16(size))
		e.u2(name)
		e.u2(desc)
		e.u2(slot)
	}
	if err := d.finish("local variable table"); err != nil {
		return nil, err
	}
	return e.bytes(), nil
}

func (im *Importer) stackMap(info []byte, rw *codeRewrite) ([]byte, error) {
	frames, err := ParseStackMapTable(info)
	if err != nil {
		return nil, err
	}
	remap := func(vts []VerificationType) error {
		for i := range vts {
			switch vts[i].Tag {
			case VTObject:
				if vts[i].Index, err = im.Constant(vts[i].Index); err != nil {
					return err
				}
			case VTUninitialized:
				pc, err := rw.pc(int(vts[i].Offset))
				if err != nil {
					return err
				}
				vts[i].Offset = uint16(pc)
			}
		}
		return nil
	}
	for i := range frames {
		if frames[i].Offset, err = rw.pc(frames[i].Offset); err != nil {
			return nil, err
		}
		if err := remap(frames[i].Locals); err != nil {
			return nil, err
		}
		if err := remap(frames[i].Stack); err != nil {
			return nil, err
		}
	}
	return EncodeStackMapTable(frames), nil
}
