package classfile

import (
	"fmt"
	"math"
)

// ConstantTag identifies the kind of a constant-pool entry.
type ConstantTag uint8

const (
	TagUtf8               ConstantTag = 1
	TagInteger            ConstantTag = 3
	TagFloat              ConstantTag = 4
	TagLong               ConstantTag = 5
	TagDouble             ConstantTag = 6
	TagClass              ConstantTag = 7
	TagString             ConstantTag = 8
	TagFieldref           ConstantTag = 9
	TagMethodref          ConstantTag = 10
	TagInterfaceMethodref ConstantTag = 11
	TagNameAndType        ConstantTag = 12
	TagMethodHandle       ConstantTag = 15
	TagMethodType         ConstantTag = 16
	TagDynamic            ConstantTag = 17
	TagInvokeDynamic      ConstantTag = 18
	TagModule             ConstantTag = 19
	TagPackage            ConstantTag = 20
)

func (t ConstantTag) String() string {
	switch t {
	case TagUtf8:
		return "Utf8"
	case TagInteger:
		return "Integer"
	case TagFloat:
		return "Float"
	case TagLong:
		return "Long"
	case TagDouble:
		return "Double"
	case TagClass:
		return "Class"
	case TagString:
		return "String"
	case TagFieldref:
		return "Fieldref"
	case TagMethodref:
		return "Methodref"
	case TagInterfaceMethodref:
		return "InterfaceMethodref"
	case TagNameAndType:
		return "NameAndType"
	case TagMethodHandle:
		return "MethodHandle"
	case TagMethodType:
		return "MethodType"
	case TagDynamic:
		return "Dynamic"
	case TagInvokeDynamic:
		return "InvokeDynamic"
	case TagModule:
		return "Module"
	case TagPackage:
		return "Package"
	}
	return fmt.Sprintf("ConstantTag(%d)", uint8(t))
}

// wide reports whether the constant occupies two pool slots.
func (t ConstantTag) wide() bool {
	return t == TagLong || t == TagDouble
}

// Constant is one constant-pool entry. Which fields are meaningful depends on
// Tag:
//
//	Utf8                       Text (raw modified UTF-8 bytes)
//	Integer, Float             Bits (low 32 bits)
//	Long, Double               Bits
//	Class, String, MethodType,
//	Module, Package            A = Utf8 index
//	Field/Method/IfaceMethodref A = Class index, B = NameAndType index
//	NameAndType                A = name Utf8, B = descriptor Utf8
//	MethodHandle               Kind = reference kind, A = member ref index
//	Dynamic, InvokeDynamic     A = bootstrap method index, B = NameAndType index
type Constant struct {
	Tag  ConstantTag
	Text string
	Bits uint64
	Kind uint8
	A    uint16
	B    uint16
}

// poolRefs returns which of A and B are constant-pool indices.
func (c Constant) poolRefs() (a, b bool) {
	switch c.Tag {
	case TagClass, TagString, TagMethodType, TagModule, TagPackage, TagMethodHandle:
		return true, false
	case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType:
		return true, true
	case TagDynamic, TagInvokeDynamic:
		return false, true
	}
	return false, false
}

// ConstantPool is the 1-based constant table of a class. Slot 0 and the slot
// following every Long or Double hold a zero Constant.
type ConstantPool struct {
	entries []Constant
	lookup  map[Constant]uint16
}

// NewConstantPool returns an empty pool.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{entries: []Constant{{}}}
}

// Count is the constant_pool_count value written to the class file.
func (p *ConstantPool) Count() int {
	return len(p.entries)
}

// Get returns the constant at index i.
func (p *ConstantPool) Get(i uint16) (Constant, error) {
	if i == 0 || int(i) >= len(p.entries) || p.entries[i].Tag == 0 {
		return Constant{}, fmt.Errorf("%w: invalid constant pool index %d", ErrMalformed, i)
	}
	return p.entries[i], nil
}

func (p *ConstantPool) expect(i uint16, tag ConstantTag) (Constant, error) {
	c, err := p.Get(i)
	if err != nil {
		return c, err
	}
	if c.Tag != tag {
		return c, fmt.Errorf("%w: constant %d is %s, want %s", ErrMalformed, i, c.Tag, tag)
	}
	return c, nil
}

// Utf8 returns the text of a Utf8 constant.
func (p *ConstantPool) Utf8(i uint16) (string, error) {
	c, err := p.expect(i, TagUtf8)
	if err != nil {
		return "", err
	}
	return c.Text, nil
}

// ClassName returns the internal name referenced by a Class constant.
func (p *ConstantPool) ClassName(i uint16) (string, error) {
	c, err := p.expect(i, TagClass)
	if err != nil {
		return "", err
	}
	return p.Utf8(c.A)
}

// NameAndType returns the name and descriptor of a NameAndType constant.
func (p *ConstantPool) NameAndType(i uint16) (name, descriptor string, err error) {
	c, err := p.expect(i, TagNameAndType)
	if err != nil {
		return "", "", err
	}
	if name, err = p.Utf8(c.A); err != nil {
		return "", "", err
	}
	if descriptor, err = p.Utf8(c.B); err != nil {
		return "", "", err
	}
	return name, descriptor, nil
}

// Add interns c and returns its index. An existing equal constant is reused.
func (p *ConstantPool) Add(c Constant) (uint16, error) {
	if p.lookup == nil {
		p.buildLookup()
	}
	if i, ok := p.lookup[c]; ok {
		return i, nil
	}
	slots := 1
	if c.Tag.wide() {
		slots = 2
	}
	if len(p.entries)+slots > math.MaxUint16 {
		return 0, fmt.Errorf("constant pool overflow: %d entries", len(p.entries))
	}
	i := uint16(len(p.entries))
	p.entries = append(p.entries, c)
	if slots == 2 {
		p.entries = append(p.entries, Constant{})
	}
	p.lookup[c] = i
	return i, nil
}

func (p *ConstantPool) buildLookup() {
	p.lookup = make(map[Constant]uint16, len(p.entries))
	for i := 1; i < len(p.entries); i++ {
		c := p.entries[i]
		if c.Tag == 0 {
			continue
		}
		if _, dup := p.lookup[c]; !dup {
			p.lookup[c] = uint16(i)
		}
	}
}

// AddUtf8 interns a Utf8 constant.
func (p *ConstantPool) AddUtf8(s string) (uint16, error) {
	if len(s) > math.MaxUint16 {
		return 0, fmt.Errorf("utf8 constant too long: %d bytes", len(s))
	}
	return p.Add(Constant{Tag: TagUtf8, Text: s})
}

// AddClass interns a Class constant for an internal name.
func (p *ConstantPool) AddClass(name string) (uint16, error) {
	return p.addIndirect(TagClass, name)
}

// AddString interns a String constant.
func (p *ConstantPool) AddString(s string) (uint16, error) {
	return p.addIndirect(TagString, s)
}

// AddInteger interns an Integer constant.
func (p *ConstantPool) AddInteger(v int32) (uint16, error) {
	return p.Add(Constant{Tag: TagInteger, Bits: uint64(uint32(v))})
}

// AddNameAndType interns a NameAndType constant.
func (p *ConstantPool) AddNameAndType(name, descriptor string) (uint16, error) {
	n, err := p.AddUtf8(name)
	if err != nil {
		return 0, err
	}
	d, err := p.AddUtf8(descriptor)
	if err != nil {
		return 0, err
	}
	return p.Add(Constant{Tag: TagNameAndType, A: n, B: d})
}

// AddFieldref interns a Fieldref constant.
func (p *ConstantPool) AddFieldref(owner, name, descriptor string) (uint16, error) {
	return p.addRef(TagFieldref, owner, name, descriptor)
}

// AddMethodref interns a Methodref constant.
func (p *ConstantPool) AddMethodref(owner, name, descriptor string) (uint16, error) {
	return p.addRef(TagMethodref, owner, name, descriptor)
}

func (p *ConstantPool) addIndirect(tag ConstantTag, s string) (uint16, error) {
	u, err := p.AddUtf8(s)
	if err != nil {
		return 0, err
	}
	return p.Add(Constant{Tag: tag, A: u})
}

func (p *ConstantPool) addRef(tag ConstantTag, owner, name, descriptor string) (uint16, error) {
	c, err := p.AddClass(owner)
	if err != nil {
		return 0, err
	}
	nt, err := p.AddNameAndType(name, descriptor)
	if err != nil {
		return 0, err
	}
	return p.Add(Constant{Tag: tag, A: c, B: nt})
}

func decodeConstantPool(d *decoder) *ConstantPool {
	count := int(d.u2())
	if count == 0 {
		d.fail("constant_pool_count is zero")
		return NewConstantPool()
	}
	p := &ConstantPool{entries: make([]Constant, 1, count)}
	for len(p.entries) < count && d.err == nil {
		tag := ConstantTag(d.u1())
		c := Constant{Tag: tag}
		switch tag {
		case TagUtf8:
			n := int(d.u2())
			c.Text = string(d.bytes(n))
		case TagInteger, TagFloat:
			c.Bits = uint64(d.u4())
		case TagLong, TagDouble:
			hi := uint64(d.u4())
			c.Bits = hi<<32 | uint64(d.u4())
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			c.A = d.u2()
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType, TagDynamic, TagInvokeDynamic:
			c.A = d.u2()
			c.B = d.u2()
		case TagMethodHandle:
			c.Kind = d.u1()
			c.A = d.u2()
		default:
			d.fail("unknown constant tag %d at index %d", tag, len(p.entries))
		}
		p.entries = append(p.entries, c)
		if tag.wide() {
			if len(p.entries) >= count {
				d.fail("wide constant in last pool slot")
			}
			p.entries = append(p.entries, Constant{})
		}
	}
	return p
}

func (p *ConstantPool) encode(e *encoder) {
	e.u2(uint16(len(p.entries)))
	for i := 1; i < len(p.entries); i++ {
		c := p.entries[i]
		if c.Tag == 0 {
			continue
		}
		e.u1(uint8(c.Tag))
		switch c.Tag {
		case TagUtf8:
			e.u2(uint16(len(c.Text)))
			e.raw([]byte(c.Text))
		case TagInteger, TagFloat:
			e.u4(uint32(c.Bits))
		case TagLong, TagDouble:
			e.u4(uint32(c.Bits >> 32))
			e.u4(uint32(c.Bits))
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			e.u2(c.A)
		case TagMethodHandle:
			e.u1(c.Kind)
			e.u2(c.A)
		default:
			e.u2(c.A)
			e.u2(c.B)
		}
	}
}
