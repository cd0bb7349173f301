// Package classfile models JVM class files as structured data: a typed
// constant pool, fields and methods with their attributes, annotations,
// bytecode and stack map frames. Parse and Bytes round-trip a class without
// loss; the rest of the package edits the model in place.
package classfile

import (
	"fmt"
)

const magic = 0xCAFEBABE

// Access flags shared by classes, fields and methods.
const (
	AccPublic     uint16 = 0x0001
	AccPrivate    uint16 = 0x0002
	AccProtected  uint16 = 0x0004
	AccStatic     uint16 = 0x0008
	AccFinal      uint16 = 0x0010
	AccSuper      uint16 = 0x0020
	AccVolatile   uint16 = 0x0040
	AccBridge     uint16 = 0x0040
	AccTransient  uint16 = 0x0080
	AccVarargs    uint16 = 0x0080
	AccNative     uint16 = 0x0100
	AccInterface  uint16 = 0x0200
	AccAbstract   uint16 = 0x0400
	AccStrict     uint16 = 0x0800
	AccSynthetic  uint16 = 0x1000
	AccAnnotation uint16 = 0x2000
	AccEnum       uint16 = 0x4000
)

// Well-known attribute names.
const (
	AttrCode                                 = "Code"
	AttrConstantValue                        = "ConstantValue"
	AttrExceptions                           = "Exceptions"
	AttrSignature                            = "Signature"
	AttrSourceFile                           = "SourceFile"
	AttrInnerClasses                         = "InnerClasses"
	AttrBootstrapMethods                     = "BootstrapMethods"
	AttrLineNumberTable                      = "LineNumberTable"
	AttrLocalVariableTable                   = "LocalVariableTable"
	AttrLocalVariableTypeTable               = "LocalVariableTypeTable"
	AttrStackMapTable                        = "StackMapTable"
	AttrSynthetic                            = "Synthetic"
	AttrDeprecated                           = "Deprecated"
	AttrMethodParameters                     = "MethodParameters"
	AttrAnnotationDefault                    = "AnnotationDefault"
	AttrRuntimeVisibleAnnotations            = "RuntimeVisibleAnnotations"
	AttrRuntimeInvisibleAnnotations          = "RuntimeInvisibleAnnotations"
	AttrRuntimeVisibleParameterAnnotations   = "RuntimeVisibleParameterAnnotations"
	AttrRuntimeInvisibleParameterAnnotations = "RuntimeInvisibleParameterAnnotations"
	AttrRuntimeVisibleTypeAnnotations        = "RuntimeVisibleTypeAnnotations"
	AttrRuntimeInvisibleTypeAnnotations      = "RuntimeInvisibleTypeAnnotations"
)

// Attribute is a named attribute with its undecoded payload.
type Attribute struct {
	Name uint16
	Info []byte
}

// Member is a field or method.
type Member struct {
	AccessFlags uint16
	Name        uint16
	Descriptor  uint16
	Attributes  []Attribute
}

// ClassFile is the decoded form of a .class file.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	Pool         *ConstantPool
	AccessFlags  uint16
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []*Member
	Methods      []*Member
	Attributes   []Attribute
}

// Parse decodes a class file.
func Parse(data []byte) (*ClassFile, error) {
	d := newDecoder(data)
	if m := d.u4(); d.err == nil && m != magic {
		return nil, fmt.Errorf("%w: bad magic %#x", ErrMalformed, m)
	}
	cf := &ClassFile{}
	cf.MinorVersion = d.u2()
	cf.MajorVersion = d.u2()
	cf.Pool = decodeConstantPool(d)
	cf.AccessFlags = d.u2()
	cf.ThisClass = d.u2()
	cf.SuperClass = d.u2()
	n := int(d.u2())
	for i := 0; i < n && d.err == nil; i++ {
		cf.Interfaces = append(cf.Interfaces, d.u2())
	}
	cf.Fields = decodeMembers(d)
	cf.Methods = decodeMembers(d)
	cf.Attributes = decodeAttributes(d)
	if err := d.finish("class file"); err != nil {
		return nil, err
	}
	if _, err := cf.Pool.ClassName(cf.ThisClass); err != nil {
		return nil, fmt.Errorf("this_class: %w", err)
	}
	return cf, nil
}

func decodeMembers(d *decoder) []*Member {
	n := int(d.u2())
	members := make([]*Member, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		m := &Member{
			AccessFlags: d.u2(),
			Name:        d.u2(),
			Descriptor:  d.u2(),
		}
		m.Attributes = decodeAttributes(d)
		members = append(members, m)
	}
	return members
}

func decodeAttributes(d *decoder) []Attribute {
	n := int(d.u2())
	attrs := make([]Attribute, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		name := d.u2()
		size := int(d.u4())
		attrs = append(attrs, Attribute{Name: name, Info: d.bytes(size)})
	}
	return attrs
}

// Bytes encodes the class file.
func (cf *ClassFile) Bytes() []byte {
	e := &encoder{}
	e.u4(magic)
	e.u2(cf.MinorVersion)
	e.u2(cf.MajorVersion)
	cf.Pool.encode(e)
	e.u2(cf.AccessFlags)
	e.u2(cf.ThisClass)
	e.u2(cf.SuperClass)
	e.u2(uint16(len(cf.Interfaces)))
	for _, i := range cf.Interfaces {
		e.u2(i)
	}
	encodeMembers(e, cf.Fields)
	encodeMembers(e, cf.Methods)
	encodeAttributes(e, cf.Attributes)
	return e.bytes()
}

func encodeMembers(e *encoder, members []*Member) {
	e.u2(uint16(len(members)))
	for _, m := range members {
		e.u2(m.AccessFlags)
		e.u2(m.Name)
		e.u2(m.Descriptor)
		encodeAttributes(e, m.Attributes)
	}
}

func encodeAttributes(e *encoder, attrs []Attribute) {
	e.u2(uint16(len(attrs)))
	for _, a := range attrs {
		e.u2(a.Name)
		e.u4(uint32(len(a.Info)))
		e.raw(a.Info)
	}
}

// Name returns the internal name of the class.
func (cf *ClassFile) Name() (string, error) {
	return cf.Pool.ClassName(cf.ThisClass)
}

// SuperName returns the internal name of the super class, or "" for
// java/lang/Object and module-info.
func (cf *ClassFile) SuperName() (string, error) {
	if cf.SuperClass == 0 {
		return "", nil
	}
	return cf.Pool.ClassName(cf.SuperClass)
}

// InterfaceNames returns the internal names of the direct super interfaces.
func (cf *ClassFile) InterfaceNames() ([]string, error) {
	names := make([]string, 0, len(cf.Interfaces))
	for _, i := range cf.Interfaces {
		n, err := cf.Pool.ClassName(i)
		if err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, nil
}

// MemberKey returns the name and descriptor of a field or method.
func (cf *ClassFile) MemberKey(m *Member) (name, descriptor string, err error) {
	if name, err = cf.Pool.Utf8(m.Name); err != nil {
		return "", "", err
	}
	if descriptor, err = cf.Pool.Utf8(m.Descriptor); err != nil {
		return "", "", err
	}
	return name, descriptor, nil
}

// AttributeName resolves the name of an attribute.
func (cf *ClassFile) AttributeName(a Attribute) (string, error) {
	return cf.Pool.Utf8(a.Name)
}

// FindAttribute returns the index of the first attribute called name, or -1.
func (cf *ClassFile) FindAttribute(attrs []Attribute, name string) int {
	for i, a := range attrs {
		if n, err := cf.Pool.Utf8(a.Name); err == nil && n == name {
			return i
		}
	}
	return -1
}

// SetAttribute replaces the first attribute called name or appends a new one.
func (cf *ClassFile) SetAttribute(attrs []Attribute, name string, info []byte) ([]Attribute, error) {
	if i := cf.FindAttribute(attrs, name); i >= 0 {
		attrs[i].Info = info
		return attrs, nil
	}
	idx, err := cf.Pool.AddUtf8(name)
	if err != nil {
		return nil, err
	}
	return append(attrs, Attribute{Name: idx, Info: info}), nil
}
