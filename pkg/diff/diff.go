package diff

import (
	"bytes"
	"fmt"

	"github.com/odvcencio/jarmerge/pkg/archive"
	"github.com/odvcencio/jarmerge/pkg/classfile"
)

// ChangeType classifies what happened to an entry or member between two
// archives.
type ChangeType int

const (
	Added    ChangeType = iota // Exists only in the after archive.
	Removed                    // Exists only in the before archive.
	Modified                   // Exists in both but its contents changed.
)

func (c ChangeType) String() string {
	switch c {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	}
	return fmt.Sprintf("ChangeType(%d)", int(c))
}

// EntryChange records a single entry-level change.
type EntryChange struct {
	Type   ChangeType
	Path   string
	Before *archive.Entry // nil for Added.
	After  *archive.Entry // nil for Removed.
}

// ArchiveDiff holds the entry-level diff of two archives, sorted by path.
type ArchiveDiff struct {
	Before  string
	After   string
	Changes []EntryChange
}

// DiffArchives compares two archives path by path. Entries with equal CRC
// and size are unchanged.
func DiffArchives(before, after *archive.Archive) *ArchiveDiff {
	d := &ArchiveDiff{Before: before.Source, After: after.Source}

	b, a := before.Entries(), after.Entries()
	i, j := 0, 0
	for i < len(b) || j < len(a) {
		switch {
		case j >= len(a) || (i < len(b) && b[i].Path < a[j].Path):
			d.Changes = append(d.Changes, EntryChange{Type: Removed, Path: b[i].Path, Before: &b[i]})
			i++
		case i >= len(b) || a[j].Path < b[i].Path:
			d.Changes = append(d.Changes, EntryChange{Type: Added, Path: a[j].Path, After: &a[j]})
			j++
		default:
			if b[i].CRC32 != a[j].CRC32 || len(b[i].Data) != len(a[j].Data) {
				d.Changes = append(d.Changes, EntryChange{Type: Modified, Path: b[i].Path, Before: &b[i], After: &a[j]})
			}
			i++
			j++
		}
	}
	return d
}

// MemberChange records a field or method change inside a class.
type MemberChange struct {
	Type       ChangeType
	Method     bool
	Name       string
	Descriptor string
	Detail     string // what changed, for Modified
}

// ClassDiff holds the member-level diff of one class.
type ClassDiff struct {
	Path    string
	Changes []MemberChange
}

type memberInfo struct {
	access  uint16
	opcodes []byte
	hasCode bool
}

type memberKey struct {
	method     bool
	name, desc string
}

// DiffClasses compares the fields and methods of two versions of a class.
// Members are matched by name and descriptor; a shared member is Modified
// when its access flags or its instruction stream differ.
func DiffClasses(path string, before, after []byte) (*ClassDiff, error) {
	bcf, err := classfile.Parse(before)
	if err != nil {
		return nil, fmt.Errorf("parse %s (before): %w", path, err)
	}
	acf, err := classfile.Parse(after)
	if err != nil {
		return nil, fmt.Errorf("parse %s (after): %w", path, err)
	}

	bkeys, bmap, err := indexClass(bcf)
	if err != nil {
		return nil, fmt.Errorf("%s (before): %w", path, err)
	}
	akeys, amap, err := indexClass(acf)
	if err != nil {
		return nil, fmt.Errorf("%s (after): %w", path, err)
	}

	cd := &ClassDiff{Path: path}

	// Walk before members in order: detect Removed and Modified.
	for _, k := range bkeys {
		bi := bmap[k]
		ai, ok := amap[k]
		if !ok {
			cd.Changes = append(cd.Changes, MemberChange{Type: Removed, Method: k.method, Name: k.name, Descriptor: k.desc})
			continue
		}
		var detail string
		switch {
		case bi.access != ai.access:
			detail = fmt.Sprintf("access 0x%04x -> 0x%04x", bi.access, ai.access)
		case bi.hasCode != ai.hasCode:
			detail = "body added or removed"
		case !bytes.Equal(bi.opcodes, ai.opcodes):
			detail = fmt.Sprintf("body %d -> %d instructions", len(bi.opcodes), len(ai.opcodes))
		}
		if detail != "" {
			cd.Changes = append(cd.Changes, MemberChange{Type: Modified, Method: k.method, Name: k.name, Descriptor: k.desc, Detail: detail})
		}
	}

	// Walk after members in order: detect Added.
	for _, k := range akeys {
		if _, ok := bmap[k]; !ok {
			cd.Changes = append(cd.Changes, MemberChange{Type: Added, Method: k.method, Name: k.name, Descriptor: k.desc})
		}
	}
	return cd, nil
}

func indexClass(cf *classfile.ClassFile) ([]memberKey, map[memberKey]memberInfo, error) {
	var keys []memberKey
	m := make(map[memberKey]memberInfo, len(cf.Fields)+len(cf.Methods))
	add := func(method bool, members []*classfile.Member) error {
		for _, mem := range members {
			name, desc, err := cf.MemberKey(mem)
			if err != nil {
				return err
			}
			k := memberKey{method: method, name: name, desc: desc}
			info := memberInfo{access: mem.AccessFlags}
			if method {
				if info.opcodes, info.hasCode, err = opcodes(cf, mem); err != nil {
					return err
				}
			}
			if _, dup := m[k]; !dup {
				keys = append(keys, k)
			}
			m[k] = info
		}
		return nil
	}
	if err := add(false, cf.Fields); err != nil {
		return nil, nil, err
	}
	if err := add(true, cf.Methods); err != nil {
		return nil, nil, err
	}
	return keys, m, nil
}

// opcodes returns the opcode stream of a method body with ldc_w folded
// into ldc, since operands index different constant pools.
func opcodes(cf *classfile.ClassFile, m *classfile.Member) ([]byte, bool, error) {
	i := cf.FindAttribute(m.Attributes, classfile.AttrCode)
	if i < 0 {
		return nil, false, nil
	}
	code, err := classfile.ParseCode(m.Attributes[i].Info)
	if err != nil {
		return nil, false, err
	}
	insns, err := classfile.Instructions(code.Code)
	if err != nil {
		return nil, false, err
	}
	out := make([]byte, len(insns))
	for j, in := range insns {
		out[j] = in.Opcode
		if in.Opcode == classfile.OpLdcW {
			out[j] = classfile.OpLdc
		}
	}
	return out, true, nil
}
