package classfile

// Java 8 class-file version; the lowest major version that requires stack
// map frames for every branch target.
const Java8 = 52

// New returns an empty class with the given header.
func New(major, access uint16, name, super string, interfaces ...string) (*ClassFile, error) {
	cf := &ClassFile{MajorVersion: major, Pool: NewConstantPool(), AccessFlags: access}
	var err error
	if cf.ThisClass, err = cf.Pool.AddClass(name); err != nil {
		return nil, err
	}
	if super != "" {
		if cf.SuperClass, err = cf.Pool.AddClass(super); err != nil {
			return nil, err
		}
	}
	for _, iface := range interfaces {
		idx, err := cf.Pool.AddClass(iface)
		if err != nil {
			return nil, err
		}
		cf.Interfaces = append(cf.Interfaces, idx)
	}
	return cf, nil
}

func (cf *ClassFile) newMember(access uint16, name, descriptor string) (*Member, error) {
	n, err := cf.Pool.AddUtf8(name)
	if err != nil {
		return nil, err
	}
	d, err := cf.Pool.AddUtf8(descriptor)
	if err != nil {
		return nil, err
	}
	return &Member{AccessFlags: access, Name: n, Descriptor: d}, nil
}

// AddField appends a field.
func (cf *ClassFile) AddField(access uint16, name, descriptor string) (*Member, error) {
	m, err := cf.newMember(access, name, descriptor)
	if err != nil {
		return nil, err
	}
	cf.Fields = append(cf.Fields, m)
	return m, nil
}

// AddMethod appends a method. A nil code leaves the method without a body.
func (cf *ClassFile) AddMethod(access uint16, name, descriptor string, code *Code) (*Member, error) {
	m, err := cf.newMember(access, name, descriptor)
	if err != nil {
		return nil, err
	}
	if code != nil {
		if m.Attributes, err = cf.SetAttribute(nil, AttrCode, code.Encode()); err != nil {
			return nil, err
		}
	}
	cf.Methods = append(cf.Methods, m)
	return m, nil
}
