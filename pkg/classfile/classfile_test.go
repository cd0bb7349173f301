package classfile

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func buildGreeter(t *testing.T) *ClassFile {
	t.Helper()
	cf, err := New(Java8, AccPublic|AccSuper, "demo/Greeter", "java/lang/Object", "java/lang/Runnable")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := cf.AddField(AccPrivate, "name", "Ljava/lang/String;"); err != nil {
		t.Fatalf("AddField: %v", err)
	}
	str, err := cf.Pool.AddString("hello")
	if err != nil {
		t.Fatalf("AddString: %v", err)
	}
	code := &Code{MaxStack: 1, MaxLocals: 1, Code: []byte{OpLdc, byte(str), OpAreturn}}
	if _, err := cf.AddMethod(AccPublic, "greet", "()Ljava/lang/String;", code); err != nil {
		t.Fatalf("AddMethod: %v", err)
	}
	return cf
}

func TestParseRoundTrip(t *testing.T) {
	cf := buildGreeter(t)
	data := cf.Bytes()

	parsed, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !bytes.Equal(parsed.Bytes(), data) {
		t.Fatal("re-encoded class differs from input")
	}

	name, err := parsed.Name()
	if err != nil || name != "demo/Greeter" {
		t.Fatalf("Name = %q, %v", name, err)
	}
	super, err := parsed.SuperName()
	if err != nil || super != "java/lang/Object" {
		t.Fatalf("SuperName = %q, %v", super, err)
	}
	ifaces, err := parsed.InterfaceNames()
	if err != nil {
		t.Fatalf("InterfaceNames: %v", err)
	}
	if diff := cmp.Diff([]string{"java/lang/Runnable"}, ifaces); diff != "" {
		t.Fatalf("interfaces (-want +got):\n%s", diff)
	}
	if len(parsed.Fields) != 1 || len(parsed.Methods) != 1 {
		t.Fatalf("fields=%d methods=%d, want 1/1", len(parsed.Fields), len(parsed.Methods))
	}
	n, d, err := parsed.MemberKey(parsed.Methods[0])
	if err != nil || n != "greet" || d != "()Ljava/lang/String;" {
		t.Fatalf("MemberKey = %q %q %v", n, d, err)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	data := buildGreeter(t).Bytes()
	cases := map[string][]byte{
		"empty":     nil,
		"bad magic": append([]byte{0xde, 0xad, 0xbe, 0xef}, data[4:]...),
		"truncated": data[:len(data)-3],
		"trailing":  append(append([]byte(nil), data...), 0),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(in); !errors.Is(err, ErrMalformed) {
				t.Fatalf("Parse err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestConstantPoolWideSlots(t *testing.T) {
	p := NewConstantPool()
	l, err := p.Add(Constant{Tag: TagLong, Bits: 42})
	if err != nil {
		t.Fatalf("Add long: %v", err)
	}
	u, err := p.AddUtf8("after")
	if err != nil {
		t.Fatalf("AddUtf8: %v", err)
	}
	if l != 1 || u != 3 {
		t.Fatalf("indices = %d, %d; want 1, 3", l, u)
	}
	if _, err := p.Get(2); err == nil {
		t.Fatal("expected error reading the shadow slot of a long")
	}
	again, err := p.AddUtf8("after")
	if err != nil || again != u {
		t.Fatalf("AddUtf8 did not reuse index: %d, %v", again, err)
	}
}

func TestAddEnumAnnotationIsIdempotent(t *testing.T) {
	cf := buildGreeter(t)
	m := cf.Methods[0]

	attrs, changed, err := cf.AddEnumAnnotation(m.Attributes, "Lx/Only;", "Lx/Side;", "CLIENT")
	if err != nil || !changed {
		t.Fatalf("first AddEnumAnnotation changed=%v err=%v", changed, err)
	}
	m.Attributes = attrs

	attrs, changed, err = cf.AddEnumAnnotation(m.Attributes, "Lx/Only;", "Lx/Side;", "SERVER")
	if err != nil || changed {
		t.Fatalf("second AddEnumAnnotation changed=%v err=%v", changed, err)
	}

	got, ok, err := cf.EnumAnnotationValue(attrs, "Lx/Only;")
	if err != nil || !ok || got != "CLIENT" {
		t.Fatalf("EnumAnnotationValue = %q %v %v", got, ok, err)
	}

	parsed, err := Parse(cf.Bytes())
	if err != nil {
		t.Fatalf("Parse annotated: %v", err)
	}
	got, ok, err = parsed.EnumAnnotationValue(parsed.Methods[0].Attributes, "Lx/Only;")
	if err != nil || !ok || got != "CLIENT" {
		t.Fatalf("after round trip EnumAnnotationValue = %q %v %v", got, ok, err)
	}
}

func TestInstructionsDecodesSwitches(t *testing.T) {
	// iload_0; tableswitch (pad 2) default=+26 low=0 high=1 [+26,+26]; return
	code := []byte{0x1a, OpTableswitch, 0, 0,
		0, 0, 0, 26,
		0, 0, 0, 0,
		0, 0, 0, 1,
		0, 0, 0, 26,
		0, 0, 0, 26,
		OpNop, OpNop, OpNop, OpReturn}
	insns, err := Instructions(code)
	if err != nil {
		t.Fatalf("Instructions: %v", err)
	}
	var pcs []int
	for _, in := range insns {
		pcs = append(pcs, in.PC)
	}
	if diff := cmp.Diff([]int{0, 1, 24, 25, 26, 27}, pcs); diff != "" {
		t.Fatalf("pcs (-want +got):\n%s", diff)
	}
}

func TestStackMapTableRoundTrip(t *testing.T) {
	frames := []Frame{
		{Kind: FrameSame, Offset: 5},
		{Kind: FrameSameLocals1, Offset: 9, Stack: []VerificationType{{Tag: VTObject, Index: 7}}},
		{Kind: FrameAppend, Offset: 200, Locals: []VerificationType{{Tag: VTInteger}, {Tag: VTUninitialized, Offset: 3}}},
		{Kind: FrameChop, Offset: 201, Chop: 2},
		{Kind: FrameFull, Offset: 300, Locals: []VerificationType{{Tag: VTTop}}, Stack: []VerificationType{{Tag: VTNull}}},
	}
	parsed, err := ParseStackMapTable(EncodeStackMapTable(frames))
	if err != nil {
		t.Fatalf("ParseStackMapTable: %v", err)
	}
	if diff := cmp.Diff(frames, parsed); diff != "" {
		t.Fatalf("frames (-want +got):\n%s", diff)
	}
}
