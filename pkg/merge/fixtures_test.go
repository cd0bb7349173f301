package merge

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/jarmerge/pkg/archive"
	"github.com/odvcencio/jarmerge/pkg/classfile"
	"github.com/odvcencio/jarmerge/pkg/sideonly"
)

// classDef describes a test class. Fields are "name:descriptor", methods
// are "name(args)ret"; a leading "static " sets ACC_STATIC.
type classDef struct {
	name    string
	super   string
	access  uint16
	fields  []string
	methods []string
	// strings maps a method name to a string constant it returns via ldc.
	strings map[string]string
}

func (d classDef) build(t *testing.T) *classfile.ClassFile {
	t.Helper()
	super := d.super
	if super == "" {
		super = "java/lang/Object"
	}
	access := d.access
	if access == 0 {
		access = classfile.AccPublic | classfile.AccSuper
	}
	cf, err := classfile.New(classfile.Java8, access, d.name, super)
	require.NoError(t, err)

	for _, f := range d.fields {
		flags, decl := memberFlags(f)
		name, desc, ok := strings.Cut(decl, ":")
		require.True(t, ok, "field %q", f)
		_, err := cf.AddField(flags, name, desc)
		require.NoError(t, err)
	}
	for _, m := range d.methods {
		flags, decl := memberFlags(m)
		i := strings.IndexByte(decl, '(')
		require.Positive(t, i, "method %q", m)
		name, desc := decl[:i], decl[i:]
		_, err := cf.AddMethod(flags, name, desc, body(t, cf, desc, d.strings[name]))
		require.NoError(t, err)
	}
	return cf
}

func (d classDef) bytes(t *testing.T) []byte {
	t.Helper()
	return d.build(t).Bytes()
}

func memberFlags(s string) (uint16, string) {
	flags := classfile.AccPublic
	if rest, ok := strings.CutPrefix(s, "static "); ok {
		return flags | classfile.AccStatic, rest
	}
	return flags, s
}

// body returns a minimal valid body for a method descriptor.
func body(t *testing.T, cf *classfile.ClassFile, desc, str string) *classfile.Code {
	t.Helper()
	ret := desc[strings.IndexByte(desc, ')')+1:]
	switch {
	case str != "":
		idx, err := cf.Pool.AddString(str)
		require.NoError(t, err)
		require.Less(t, idx, uint16(256))
		return &classfile.Code{MaxStack: 1, MaxLocals: 1, Code: []byte{classfile.OpLdc, byte(idx), classfile.OpAreturn}}
	case ret == "V":
		return &classfile.Code{MaxStack: 0, MaxLocals: 1, Code: []byte{classfile.OpReturn}}
	case ret == "I" || ret == "Z":
		return &classfile.Code{MaxStack: 1, MaxLocals: 1, Code: []byte{classfile.OpIconst0, classfile.OpIreturn}}
	default:
		return &classfile.Code{MaxStack: 1, MaxLocals: 1, Code: []byte{0x01, classfile.OpAreturn}} // aconst_null
	}
}

// memberSide returns the SideOnly constant on the named member, or "".
func memberSide(t *testing.T, data []byte, kind MemberKind, name string) string {
	t.Helper()
	cf, err := classfile.Parse(data)
	require.NoError(t, err)
	members := cf.Fields
	if kind == MethodMember {
		members = cf.Methods
	}
	for _, m := range members {
		n, _, err := cf.MemberKey(m)
		require.NoError(t, err)
		if n != name {
			continue
		}
		side, ok, err := cf.EnumAnnotationValue(m.Attributes, sideonly.AnnotationDescriptor)
		require.NoError(t, err)
		if !ok {
			return ""
		}
		return side
	}
	t.Fatalf("member %s not found", name)
	return ""
}

// memberNames lists fields or methods in class order.
func memberNames(t *testing.T, data []byte, kind MemberKind) []string {
	t.Helper()
	cf, err := classfile.Parse(data)
	require.NoError(t, err)
	members := cf.Fields
	if kind == MethodMember {
		members = cf.Methods
	}
	var out []string
	for _, m := range members {
		n, _, err := cf.MemberKey(m)
		require.NoError(t, err)
		out = append(out, n)
	}
	return out
}

type files map[string][]byte

func (f files) archive(t *testing.T, source string) *archive.Archive {
	t.Helper()
	entries := make([]archive.Entry, 0, len(f))
	for p, data := range f {
		entries = append(entries, archive.NewEntry(p, data))
	}
	a, err := archive.New(source, entries)
	require.NoError(t, err)
	return a
}

// writeJar writes f as a jar under dir and returns its path.
func (f files) writeJar(t *testing.T, dir, name string) string {
	t.Helper()
	var buf bytes.Buffer
	entries := make([]archive.Entry, 0, len(f))
	for p, data := range f {
		entries = append(entries, archive.NewEntry(p, data))
	}
	a, err := archive.New(name, entries)
	require.NoError(t, err)
	require.NoError(t, archive.Write(&buf, a.Entries(), archive.WriteOptions{}))
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, buf.Bytes(), 0o644))
	return p
}

func entryMap(entries []archive.Entry) map[string]archive.Entry {
	m := make(map[string]archive.Entry, len(entries))
	for _, e := range entries {
		m[e.Path] = e
	}
	return m
}
