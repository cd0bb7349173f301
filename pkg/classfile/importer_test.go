package classfile

import (
	"encoding/binary"
	"fmt"
	"testing"
)

// padPool fills p until its next free index is at least n.
func padPool(t *testing.T, p *ConstantPool, n int) {
	t.Helper()
	for i := 0; p.Count() < n; i++ {
		if _, err := p.AddUtf8(fmt.Sprintf("pad%d", i)); err != nil {
			t.Fatalf("AddUtf8: %v", err)
		}
	}
}

func importedCode(t *testing.T, dst *ClassFile, m *Member) *Code {
	t.Helper()
	i := dst.FindAttribute(m.Attributes, AttrCode)
	if i < 0 {
		t.Fatal("imported method has no Code attribute")
	}
	code, err := ParseCode(m.Attributes[i].Info)
	if err != nil {
		t.Fatalf("ParseCode: %v", err)
	}
	return code
}

func TestImporterRemapsConstants(t *testing.T) {
	src := buildGreeter(t)
	dst, err := New(Java8, AccPublic|AccSuper, "demo/Greeter", "java/lang/Object")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	padPool(t, dst.Pool, 40)

	im, err := NewImporter(dst, src)
	if err != nil {
		t.Fatalf("NewImporter: %v", err)
	}
	m, err := im.Member(src.Methods[0])
	if err != nil {
		t.Fatalf("Member: %v", err)
	}
	if err := im.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	name, desc, err := dst.MemberKey(m)
	if err != nil || name != "greet" || desc != "()Ljava/lang/String;" {
		t.Fatalf("MemberKey = %q %q %v", name, desc, err)
	}
	code := importedCode(t, dst, m)
	if code.Code[0] != OpLdc {
		t.Fatalf("opcode = %#x, want ldc", code.Code[0])
	}
	c, err := dst.Pool.Get(uint16(code.Code[1]))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	text, err := dst.Pool.Utf8(c.A)
	if c.Tag != TagString || err != nil || text != "hello" {
		t.Fatalf("ldc operand = %v %q %v, want String hello", c.Tag, text, err)
	}
	if len(im.Unknown) != 0 {
		t.Fatalf("unexpected unknown attributes %v", im.Unknown)
	}
}

func TestImporterReusesFieldrefAndInteger(t *testing.T) {
	src, err := New(Java8, AccPublic|AccSuper, "demo/Counter", "java/lang/Object")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	field, err := src.Pool.AddFieldref("demo/Counter", "base", "I")
	if err != nil {
		t.Fatalf("AddFieldref: %v", err)
	}
	seven, err := src.Pool.AddInteger(7)
	if err != nil {
		t.Fatalf("AddInteger: %v", err)
	}
	// getstatic base; ldc 7; iadd; ireturn
	body := []byte{OpGetstatic, byte(field >> 8), byte(field), OpLdc, byte(seven), 0x60, OpIreturn}
	if _, err := src.AddMethod(AccPublic|AccStatic, "total", "()I", &Code{MaxStack: 2, Code: body}); err != nil {
		t.Fatalf("AddMethod: %v", err)
	}

	dst, err := New(Java8, AccPublic|AccSuper, "demo/Counter", "java/lang/Object")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	padPool(t, dst.Pool, 20)
	existing, err := dst.Pool.AddFieldref("demo/Counter", "base", "I")
	if err != nil {
		t.Fatalf("AddFieldref: %v", err)
	}
	count := dst.Pool.Count()

	im, err := NewImporter(dst, src)
	if err != nil {
		t.Fatalf("NewImporter: %v", err)
	}
	m, err := im.Member(src.Methods[0])
	if err != nil {
		t.Fatalf("Member: %v", err)
	}
	if err := im.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	code := importedCode(t, dst, m)

	if got := binary.BigEndian.Uint16(code.Code[1:]); got != existing {
		t.Fatalf("getstatic operand = %d, want existing Fieldref %d", got, existing)
	}
	c, err := dst.Pool.Get(uint16(code.Code[4]))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c.Tag != TagInteger || int32(uint32(c.Bits)) != 7 {
		t.Fatalf("ldc operand = %v %d, want Integer 7", c.Tag, c.Bits)
	}
	// Only the Integer and the method's own name, descriptor and Code
	// attribute name are new.
	if grew := dst.Pool.Count() - count; grew > 4 {
		t.Fatalf("pool grew by %d entries", grew)
	}
}

func TestImporterWidensLdcAndRelocatesBranches(t *testing.T) {
	src, err := New(Java8, AccPublic|AccSuper, "demo/Flag", "java/lang/Object")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	yes, _ := src.Pool.AddString("yes")
	no, _ := src.Pool.AddString("no")
	objClass, _ := src.Pool.AddClass("java/lang/String")
	// 0: iload_1; 1: ifeq +6 -> 7; 4: ldc yes; 6: areturn; 7: ldc no; 9: areturn
	body := []byte{0x1b, OpIfeq, 0, 6, OpLdc, byte(yes), OpAreturn, OpLdc, byte(no), OpAreturn}
	stackMap := EncodeStackMapTable([]Frame{{Kind: FrameSame, Offset: 7}})
	smIdx, _ := src.Pool.AddUtf8(AttrStackMapTable)
	lnIdx, _ := src.Pool.AddUtf8(AttrLineNumberTable)
	lines := []byte{0, 2, 0, 4, 0, 10, 0, 7, 0, 11}
	code := &Code{
		MaxStack:   1,
		MaxLocals:  2,
		Code:       body,
		Exceptions: []ExceptionHandler{{StartPC: 4, EndPC: 7, HandlerPC: 7, CatchType: objClass}},
		Attributes: []Attribute{{Name: smIdx, Info: stackMap}, {Name: lnIdx, Info: lines}},
	}
	if _, err := src.AddMethod(AccPublic, "pick", "(Z)Ljava/lang/String;", code); err != nil {
		t.Fatalf("AddMethod: %v", err)
	}

	dst, err := New(Java8, AccPublic|AccSuper, "demo/Flag", "java/lang/Object")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	padPool(t, dst.Pool, 300)

	im, err := NewImporter(dst, src)
	if err != nil {
		t.Fatalf("NewImporter: %v", err)
	}
	m, err := im.Member(src.Methods[0])
	if err != nil {
		t.Fatalf("Member: %v", err)
	}
	got := importedCode(t, dst, m)

	// 0: iload_1; 1: ifeq +7 -> 8; 4: ldc_w yes; 7: areturn; 8: ldc_w no; 11: areturn
	if len(got.Code) != 12 {
		t.Fatalf("code length = %d, want 12", len(got.Code))
	}
	if rel := int16(binary.BigEndian.Uint16(got.Code[2:])); got.Code[1] != OpIfeq || rel != 7 {
		t.Fatalf("branch = %#x %+d, want ifeq +7", got.Code[1], rel)
	}
	for _, pc := range []int{4, 8} {
		if got.Code[pc] != OpLdcW {
			t.Fatalf("opcode at %d = %#x, want ldc_w", pc, got.Code[pc])
		}
		idx := binary.BigEndian.Uint16(got.Code[pc+1:])
		if idx <= 255 {
			t.Fatalf("ldc_w operand %d should exceed one byte", idx)
		}
	}
	if h := got.Exceptions[0]; h.StartPC != 4 || h.EndPC != 8 || h.HandlerPC != 8 {
		t.Fatalf("exception range = %+v, want 4..8 -> 8", h)
	}
	if name, err := dst.Pool.ClassName(got.Exceptions[0].CatchType); err != nil || name != "java/lang/String" {
		t.Fatalf("catch type = %q %v", name, err)
	}

	frames, err := ParseStackMapTable(got.Attributes[dst.FindAttribute(got.Attributes, AttrStackMapTable)].Info)
	if err != nil {
		t.Fatalf("ParseStackMapTable: %v", err)
	}
	if len(frames) != 1 || frames[0].Offset != 8 {
		t.Fatalf("frames = %+v, want one frame at 8", frames)
	}
	lnInfo := got.Attributes[dst.FindAttribute(got.Attributes, AttrLineNumberTable)].Info
	if pc := binary.BigEndian.Uint16(lnInfo[6:]); pc != 8 {
		t.Fatalf("second line entry pc = %d, want 8", pc)
	}
}

func TestImporterAppendsBootstrapMethods(t *testing.T) {
	src, err := New(Java8, AccPublic|AccSuper, "demo/Lambda", "java/lang/Object")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	factory, _ := src.Pool.AddMethodref("java/lang/invoke/LambdaMetafactory", "metafactory", "()V")
	handle, _ := src.Pool.Add(Constant{Tag: TagMethodHandle, Kind: 6, A: factory})
	nt, _ := src.Pool.AddNameAndType("run", "()Ljava/lang/Runnable;")
	indy, _ := src.Pool.Add(Constant{Tag: TagInvokeDynamic, A: 0, B: nt})
	src.Attributes, err = src.SetAttribute(nil, AttrBootstrapMethods, EncodeBootstrapMethods([]BootstrapMethod{{Ref: handle}}))
	if err != nil {
		t.Fatalf("SetAttribute: %v", err)
	}
	body := []byte{OpInvokedynamic, byte(indy >> 8), byte(indy), 0, 0, OpAreturn}
	if _, err := src.AddMethod(AccPublic|AccStatic, "task", "()Ljava/lang/Runnable;", &Code{MaxStack: 1, Code: body}); err != nil {
		t.Fatalf("AddMethod: %v", err)
	}

	dst, err := New(Java8, AccPublic|AccSuper, "demo/Lambda", "java/lang/Object")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	dstFactory, _ := dst.Pool.AddMethodref("demo/Other", "bootstrap", "()V")
	dstHandle, _ := dst.Pool.Add(Constant{Tag: TagMethodHandle, Kind: 6, A: dstFactory})
	dst.Attributes, err = dst.SetAttribute(nil, AttrBootstrapMethods, EncodeBootstrapMethods([]BootstrapMethod{{Ref: dstHandle}}))
	if err != nil {
		t.Fatalf("SetAttribute: %v", err)
	}

	im, err := NewImporter(dst, src)
	if err != nil {
		t.Fatalf("NewImporter: %v", err)
	}
	m, err := im.Member(src.Methods[0])
	if err != nil {
		t.Fatalf("Member: %v", err)
	}
	if err := im.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	bms, err := ParseBootstrapMethods(dst.Attributes[dst.FindAttribute(dst.Attributes, AttrBootstrapMethods)].Info)
	if err != nil {
		t.Fatalf("ParseBootstrapMethods: %v", err)
	}
	if len(bms) != 2 {
		t.Fatalf("bootstrap methods = %d, want 2", len(bms))
	}
	code := importedCode(t, dst, m)
	c, err := dst.Pool.Get(binary.BigEndian.Uint16(code.Code[1:]))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c.Tag != TagInvokeDynamic || c.A != 1 {
		t.Fatalf("invokedynamic constant = %+v, want bootstrap index 1", c)
	}
	if _, err := Parse(dst.Bytes()); err != nil {
		t.Fatalf("Parse merged: %v", err)
	}
}
