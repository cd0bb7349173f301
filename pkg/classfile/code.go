package classfile

import (
	"encoding/binary"
	"fmt"
)

// ExceptionHandler is one exception_table entry of a Code attribute.
type ExceptionHandler struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16
}

// Code is the decoded form of a Code attribute.
type Code struct {
	MaxStack   uint16
	MaxLocals  uint16
	Code       []byte
	Exceptions []ExceptionHandler
	Attributes []Attribute
}

// ParseCode decodes a Code attribute payload.
func ParseCode(info []byte) (*Code, error) {
	d := newDecoder(info)
	c := &Code{
		MaxStack:  d.u2(),
		MaxLocals: d.u2(),
	}
	n := int(d.u4())
	c.Code = d.bytes(n)
	count := int(d.u2())
	for i := 0; i < count && d.err == nil; i++ {
		c.Exceptions = append(c.Exceptions, ExceptionHandler{
			StartPC:   d.u2(),
			EndPC:     d.u2(),
			HandlerPC: d.u2(),
			CatchType: d.u2(),
		})
	}
	c.Attributes = decodeAttributes(d)
	if err := d.finish("code attribute"); err != nil {
		return nil, err
	}
	return c, nil
}

// Encode returns the Code attribute payload.
func (c *Code) Encode() []byte {
	e := &encoder{}
	e.u2(c.MaxStack)
	e.u2(c.MaxLocals)
	e.u4(uint32(len(c.Code)))
	e.raw(c.Code)
	e.u2(uint16(len(c.Exceptions)))
	for _, h := range c.Exceptions {
		e.u2(h.StartPC)
		e.u2(h.EndPC)
		e.u2(h.HandlerPC)
		e.u2(h.CatchType)
	}
	encodeAttributes(e, c.Attributes)
	return e.bytes()
}

// Opcodes the merger needs to recognise by name.
const (
	OpNop             = 0x00
	OpIconst0         = 0x03
	OpBipush          = 0x10
	OpSipush          = 0x11
	OpLdc             = 0x12
	OpLdcW            = 0x13
	OpLdc2W           = 0x14
	OpAload0          = 0x2a
	OpIinc            = 0x84
	OpIfeq            = 0x99
	OpGoto            = 0xa7
	OpJsr             = 0xa8
	OpRet             = 0xa9
	OpTableswitch     = 0xaa
	OpLookupswitch    = 0xab
	OpIreturn         = 0xac
	OpAreturn         = 0xb0
	OpReturn          = 0xb1
	OpGetstatic       = 0xb2
	OpPutstatic       = 0xb3
	OpGetfield        = 0xb4
	OpPutfield        = 0xb5
	OpInvokevirtual   = 0xb6
	OpInvokespecial   = 0xb7
	OpInvokestatic    = 0xb8
	OpInvokeinterface = 0xb9
	OpInvokedynamic   = 0xba
	OpNew             = 0xbb
	OpNewarray        = 0xbc
	OpAnewarray       = 0xbd
	OpCheckcast       = 0xc0
	OpInstanceof      = 0xc1
	OpWide            = 0xc4
	OpMultianewarray  = 0xc5
	OpIfnull          = 0xc6
	OpIfnonnull       = 0xc7
	OpGotoW           = 0xc8
	OpJsrW            = 0xc9
)

// operandKind describes what an instruction's fixed operands contain.
type operandKind uint8

const (
	operandNone     operandKind = iota
	operandImm                  // immediates and local indices, no pool refs
	operandPool1                // u1 pool index (ldc)
	operandPool2                // u2 pool index, possibly followed by immediates
	operandBranch2              // s2 branch offset
	operandBranch4              // s4 branch offset
	operandSwitch               // tableswitch / lookupswitch
	operandWide                 // wide prefix
	operandInvalid
)

type opInfo struct {
	kind operandKind
	size int // total instruction size for fixed-size instructions
}

var opTable = func() [256]opInfo {
	var t [256]opInfo
	for i := range t {
		t[i] = opInfo{kind: operandInvalid}
	}
	set := func(lo, hi int, kind operandKind, size int) {
		for op := lo; op <= hi; op++ {
			t[op] = opInfo{kind: kind, size: size}
		}
	}
	set(0x00, 0x0f, operandNone, 1)
	set(0x10, 0x10, operandImm, 2)
	set(0x11, 0x11, operandImm, 3)
	set(OpLdc, OpLdc, operandPool1, 2)
	set(OpLdcW, OpLdc2W, operandPool2, 3)
	set(0x15, 0x19, operandImm, 2)
	set(0x1a, 0x35, operandNone, 1)
	set(0x36, 0x3a, operandImm, 2)
	set(0x3b, 0x83, operandNone, 1)
	set(OpIinc, OpIinc, operandImm, 3)
	set(0x85, 0x98, operandNone, 1)
	set(OpIfeq, OpJsr, operandBranch2, 3)
	set(OpRet, OpRet, operandImm, 2)
	set(OpTableswitch, OpLookupswitch, operandSwitch, 0)
	set(OpIreturn, OpReturn, operandNone, 1)
	set(OpGetstatic, OpInvokestatic, operandPool2, 3)
	set(OpInvokeinterface, OpInvokedynamic, operandPool2, 5)
	set(OpNew, OpNew, operandPool2, 3)
	set(OpNewarray, OpNewarray, operandImm, 2)
	set(OpAnewarray, OpAnewarray, operandPool2, 3)
	set(0xbe, 0xbf, operandNone, 1)
	set(OpCheckcast, OpInstanceof, operandPool2, 3)
	set(0xc2, 0xc3, operandNone, 1)
	set(OpWide, OpWide, operandWide, 0)
	set(OpMultianewarray, OpMultianewarray, operandPool2, 4)
	set(OpIfnull, OpIfnonnull, operandBranch2, 3)
	set(OpGotoW, OpJsrW, operandBranch4, 5)
	return t
}()

// Instruction is one decoded bytecode instruction.
type Instruction struct {
	PC     int
	Opcode byte
	Wide   bool
	Size   int
}

func switchPadding(pc int) int {
	return (4 - (pc+1)%4) % 4
}

// instructionSize returns the encoded size of the instruction at pc.
func instructionSize(code []byte, pc int) (int, error) {
	op := code[pc]
	info := opTable[op]
	switch info.kind {
	case operandInvalid:
		return 0, fmt.Errorf("%w: invalid opcode %#x at pc %d", ErrMalformed, op, pc)
	case operandWide:
		if pc+1 >= len(code) {
			return 0, fmt.Errorf("%w: truncated wide at pc %d", ErrMalformed, pc)
		}
		switch inner := code[pc+1]; {
		case inner == OpIinc:
			return 6, nil
		case (inner >= 0x15 && inner <= 0x19) || (inner >= 0x36 && inner <= 0x3a) || inner == OpRet:
			return 4, nil
		default:
			return 0, fmt.Errorf("%w: invalid wide opcode %#x at pc %d", ErrMalformed, inner, pc)
		}
	case operandSwitch:
		base := pc + 1 + switchPadding(pc)
		if base+12 > len(code) {
			return 0, fmt.Errorf("%w: truncated switch at pc %d", ErrMalformed, pc)
		}
		if op == OpTableswitch {
			low := int32(binary.BigEndian.Uint32(code[base+4:]))
			high := int32(binary.BigEndian.Uint32(code[base+8:]))
			if high < low {
				return 0, fmt.Errorf("%w: tableswitch high < low at pc %d", ErrMalformed, pc)
			}
			return base + 12 + 4*int(int64(high)-int64(low)+1) - pc, nil
		}
		npairs := int32(binary.BigEndian.Uint32(code[base+4:]))
		if npairs < 0 {
			return 0, fmt.Errorf("%w: lookupswitch npairs < 0 at pc %d", ErrMalformed, pc)
		}
		return base + 8 + 8*int(npairs) - pc, nil
	}
	return info.size, nil
}

// Instructions decodes the instruction boundaries of a method body.
func Instructions(code []byte) ([]Instruction, error) {
	var out []Instruction
	for pc := 0; pc < len(code); {
		size, err := instructionSize(code, pc)
		if err != nil {
			return nil, err
		}
		if pc+size > len(code) {
			return nil, fmt.Errorf("%w: instruction at pc %d overruns code", ErrMalformed, pc)
		}
		out = append(out, Instruction{PC: pc, Opcode: code[pc], Wide: code[pc] == OpWide, Size: size})
		pc += size
	}
	return out, nil
}
