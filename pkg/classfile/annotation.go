package classfile

import "fmt"

// Annotation is one annotation structure. Type is the Utf8 index of the
// annotation's field descriptor.
type Annotation struct {
	Type     uint16
	Elements []ElementPair
}

// ElementPair is one element_value_pair of an annotation.
type ElementPair struct {
	Name  uint16
	Value ElementValue
}

// ElementValue is a tagged annotation element value:
//
//	B C D F I J S Z s   Const
//	e                   EnumType, EnumConst
//	c                   Class (return descriptor Utf8)
//	@                   Annotation
//	[                   Values
type ElementValue struct {
	Tag        byte
	Const      uint16
	EnumType   uint16
	EnumConst  uint16
	Class      uint16
	Annotation *Annotation
	Values     []ElementValue
}

// ParseAnnotations decodes a Runtime(In)VisibleAnnotations payload.
func ParseAnnotations(info []byte) ([]Annotation, error) {
	d := newDecoder(info)
	anns := decodeAnnotationList(d)
	if err := d.finish("annotations"); err != nil {
		return nil, err
	}
	return anns, nil
}

// EncodeAnnotations encodes a Runtime(In)VisibleAnnotations payload.
func EncodeAnnotations(anns []Annotation) []byte {
	e := &encoder{}
	encodeAnnotationList(e, anns)
	return e.bytes()
}

func decodeAnnotationList(d *decoder) []Annotation {
	n := int(d.u2())
	anns := make([]Annotation, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		anns = append(anns, decodeAnnotation(d))
	}
	return anns
}

func encodeAnnotationList(e *encoder, anns []Annotation) {
	e.u2(uint16(len(anns)))
	for i := range anns {
		encodeAnnotation(e, &anns[i])
	}
}

func decodeAnnotation(d *decoder) Annotation {
	a := Annotation{Type: d.u2()}
	n := int(d.u2())
	for i := 0; i < n && d.err == nil; i++ {
		name := d.u2()
		a.Elements = append(a.Elements, ElementPair{Name: name, Value: decodeElementValue(d)})
	}
	return a
}

func encodeAnnotation(e *encoder, a *Annotation) {
	e.u2(a.Type)
	e.u2(uint16(len(a.Elements)))
	for i := range a.Elements {
		e.u2(a.Elements[i].Name)
		encodeElementValue(e, &a.Elements[i].Value)
	}
}

func decodeElementValue(d *decoder) ElementValue {
	v := ElementValue{Tag: d.u1()}
	switch v.Tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's':
		v.Const = d.u2()
	case 'e':
		v.EnumType = d.u2()
		v.EnumConst = d.u2()
	case 'c':
		v.Class = d.u2()
	case '@':
		a := decodeAnnotation(d)
		v.Annotation = &a
	case '[':
		n := int(d.u2())
		for i := 0; i < n && d.err == nil; i++ {
			v.Values = append(v.Values, decodeElementValue(d))
		}
	default:
		if d.err == nil {
			d.fail("unknown element value tag %q", v.Tag)
		}
	}
	return v
}

func encodeElementValue(e *encoder, v *ElementValue) {
	e.u1(v.Tag)
	switch v.Tag {
	case 'e':
		e.u2(v.EnumType)
		e.u2(v.EnumConst)
	case 'c':
		e.u2(v.Class)
	case '@':
		encodeAnnotation(e, v.Annotation)
	case '[':
		e.u2(uint16(len(v.Values)))
		for i := range v.Values {
			encodeElementValue(e, &v.Values[i])
		}
	default:
		e.u2(v.Const)
	}
}

// ParseParameterAnnotations decodes a Runtime(In)VisibleParameterAnnotations
// payload.
func ParseParameterAnnotations(info []byte) ([][]Annotation, error) {
	d := newDecoder(info)
	n := int(d.u1())
	params := make([][]Annotation, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		params = append(params, decodeAnnotationList(d))
	}
	if err := d.finish("parameter annotations"); err != nil {
		return nil, err
	}
	return params, nil
}

// EncodeParameterAnnotations encodes a parameter annotations payload.
func EncodeParameterAnnotations(params [][]Annotation) []byte {
	e := &encoder{}
	e.u1(uint8(len(params)))
	for _, anns := range params {
		encodeAnnotationList(e, anns)
	}
	return e.bytes()
}

// TypeAnnotation is one type_annotation structure. TargetInfo holds the raw
// target_info bytes; Path holds the raw type_path entries.
type TypeAnnotation struct {
	TargetType uint8
	TargetInfo []byte
	Path       []byte
	Annotation Annotation
}

// Type annotation target types whose target_info carries bytecode offsets.
const (
	targetLocalVariable         = 0x40
	targetResourceVariable      = 0x41
	targetInstanceofOffset      = 0x43
	targetTypeArgumentMaxOffset = 0x4B
)

func targetInfoSize(d *decoder, targetType uint8) int {
	switch {
	case targetType == 0x00 || targetType == 0x01:
		return 1
	case targetType == 0x10:
		return 2
	case targetType == 0x11 || targetType == 0x12:
		return 2
	case targetType >= 0x13 && targetType <= 0x15:
		return 0
	case targetType == 0x16:
		return 1
	case targetType == 0x17:
		return 2
	case targetType == targetLocalVariable || targetType == targetResourceVariable:
		if !d.need(2) {
			return 0
		}
		n := int(d.data[d.off])<<8 | int(d.data[d.off+1])
		return 2 + 6*n
	case targetType == 0x42:
		return 2
	case targetType >= targetInstanceofOffset && targetType <= 0x46:
		return 2
	case targetType >= 0x47 && targetType <= targetTypeArgumentMaxOffset:
		return 3
	}
	d.fail("unknown type annotation target type %#x", targetType)
	return 0
}

// ParseTypeAnnotations decodes a Runtime(In)VisibleTypeAnnotations payload.
func ParseTypeAnnotations(info []byte) ([]TypeAnnotation, error) {
	d := newDecoder(info)
	n := int(d.u2())
	out := make([]TypeAnnotation, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		ta := TypeAnnotation{TargetType: d.u1()}
		ta.TargetInfo = d.bytes(targetInfoSize(d, ta.TargetType))
		pathLen := int(d.u1())
		ta.Path = d.bytes(2 * pathLen)
		ta.Annotation = decodeAnnotation(d)
		out = append(out, ta)
	}
	if err := d.finish("type annotations"); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeTypeAnnotations encodes a type annotations payload.
func EncodeTypeAnnotations(tas []TypeAnnotation) []byte {
	e := &encoder{}
	e.u2(uint16(len(tas)))
	for i := range tas {
		e.u1(tas[i].TargetType)
		e.raw(tas[i].TargetInfo)
		e.u1(uint8(len(tas[i].Path) / 2))
		e.raw(tas[i].Path)
		encodeAnnotation(e, &tas[i].Annotation)
	}
	return e.bytes()
}

// ParseElementValue decodes an AnnotationDefault payload.
func ParseElementValue(info []byte) (ElementValue, error) {
	d := newDecoder(info)
	v := decodeElementValue(d)
	if err := d.finish("element value"); err != nil {
		return ElementValue{}, err
	}
	return v, nil
}

// EncodeElementValue encodes an AnnotationDefault payload.
func EncodeElementValue(v ElementValue) []byte {
	e := &encoder{}
	encodeElementValue(e, &v)
	return e.bytes()
}

// HasAnnotation reports whether the named annotations attribute in attrs
// carries an annotation of the given descriptor.
func (cf *ClassFile) HasAnnotation(attrs []Attribute, attrName, descriptor string) (bool, error) {
	i := cf.FindAttribute(attrs, attrName)
	if i < 0 {
		return false, nil
	}
	anns, err := ParseAnnotations(attrs[i].Info)
	if err != nil {
		return false, err
	}
	for _, a := range anns {
		t, err := cf.Pool.Utf8(a.Type)
		if err != nil {
			return false, err
		}
		if t == descriptor {
			return true, nil
		}
	}
	return false, nil
}

// AddEnumAnnotation adds a runtime-visible annotation of type descriptor
// with a single "value" element set to enumDescriptor.constant. Nothing is
// added when an annotation of that type is already present; the returned
// bool reports whether attrs changed.
func (cf *ClassFile) AddEnumAnnotation(attrs []Attribute, descriptor, enumDescriptor, constant string) ([]Attribute, bool, error) {
	present, err := cf.HasAnnotation(attrs, AttrRuntimeVisibleAnnotations, descriptor)
	if err != nil {
		return attrs, false, err
	}
	if present {
		return attrs, false, nil
	}

	var anns []Annotation
	if i := cf.FindAttribute(attrs, AttrRuntimeVisibleAnnotations); i >= 0 {
		if anns, err = ParseAnnotations(attrs[i].Info); err != nil {
			return attrs, false, err
		}
	}

	typeIdx, err := cf.Pool.AddUtf8(descriptor)
	if err != nil {
		return attrs, false, err
	}
	valueIdx, err := cf.Pool.AddUtf8("value")
	if err != nil {
		return attrs, false, err
	}
	enumIdx, err := cf.Pool.AddUtf8(enumDescriptor)
	if err != nil {
		return attrs, false, err
	}
	constIdx, err := cf.Pool.AddUtf8(constant)
	if err != nil {
		return attrs, false, err
	}
	anns = append(anns, Annotation{
		Type: typeIdx,
		Elements: []ElementPair{{
			Name:  valueIdx,
			Value: ElementValue{Tag: 'e', EnumType: enumIdx, EnumConst: constIdx},
		}},
	})

	out := append([]Attribute(nil), attrs...)
	out, err = cf.SetAttribute(out, AttrRuntimeVisibleAnnotations, EncodeAnnotations(anns))
	if err != nil {
		return attrs, false, err
	}
	return out, true, nil
}

// EnumAnnotationValue returns the enum constant of the "value" element of the
// first annotation of type descriptor in the runtime-visible annotations of
// attrs. ok is false when no such annotation exists.
func (cf *ClassFile) EnumAnnotationValue(attrs []Attribute, descriptor string) (constant string, ok bool, err error) {
	i := cf.FindAttribute(attrs, AttrRuntimeVisibleAnnotations)
	if i < 0 {
		return "", false, nil
	}
	anns, err := ParseAnnotations(attrs[i].Info)
	if err != nil {
		return "", false, err
	}
	for _, a := range anns {
		t, err := cf.Pool.Utf8(a.Type)
		if err != nil {
			return "", false, err
		}
		if t != descriptor {
			continue
		}
		for _, el := range a.Elements {
			name, err := cf.Pool.Utf8(el.Name)
			if err != nil {
				return "", false, err
			}
			if name != "value" || el.Value.Tag != 'e' {
				continue
			}
			c, err := cf.Pool.Utf8(el.Value.EnumConst)
			if err != nil {
				return "", false, err
			}
			return c, true, nil
		}
		return "", false, fmt.Errorf("%w: annotation %s has no enum value element", ErrMalformed, descriptor)
	}
	return "", false, nil
}
