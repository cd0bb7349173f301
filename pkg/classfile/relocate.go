package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrCodeTooLarge is returned when relocating a method body would push it,
// or one of its short branches, past a class-file limit.
var ErrCodeTooLarge = errors.New("method code too large after relocation")

// codeRewrite is a method body with its constant-pool operands remapped.
// When an ldc operand no longer fits in one byte the instruction becomes
// ldc_w and every later instruction moves; offsets maps each old
// instruction boundary (and the end of the code) to its new position.
type codeRewrite struct {
	code    []byte
	offsets map[int]int
	moved   bool
}

// pc relocates an old bytecode offset.
func (r *codeRewrite) pc(old int) (int, error) {
	if !r.moved {
		return old, nil
	}
	n, ok := r.offsets[old]
	if !ok {
		return 0, fmt.Errorf("%w: offset %d is not an instruction boundary", ErrMalformed, old)
	}
	return n, nil
}

// pcRange relocates a [start, start+length) range.
func (r *codeRewrite) pcRange(start, length int) (int, int, error) {
	s, err := r.pc(start)
	if err != nil {
		return 0, 0, err
	}
	end, err := r.pc(start + length)
	if err != nil {
		return 0, 0, err
	}
	return s, end - s, nil
}

func rewriteCode(code []byte, remap func(uint16) (uint16, error)) (*codeRewrite, error) {
	insns, err := Instructions(code)
	if err != nil {
		return nil, err
	}

	newIndex := make([]uint16, len(insns))
	newPC := make([]int, len(insns))
	r := &codeRewrite{offsets: make(map[int]int, len(insns)+1)}

	cur := 0
	for i, in := range insns {
		info := opTable[in.Opcode]
		size := in.Size
		switch info.kind {
		case operandPool1:
			idx, err := remap(uint16(code[in.PC+1]))
			if err != nil {
				return nil, fmt.Errorf("pc %d: %w", in.PC, err)
			}
			newIndex[i] = idx
			if idx > math.MaxUint8 {
				size = 3
				r.moved = true
			}
		case operandPool2:
			idx, err := remap(binary.BigEndian.Uint16(code[in.PC+1:]))
			if err != nil {
				return nil, fmt.Errorf("pc %d: %w", in.PC, err)
			}
			newIndex[i] = idx
		case operandSwitch:
			size = in.Size - switchPadding(in.PC) + switchPadding(cur)
		}
		newPC[i] = cur
		r.offsets[in.PC] = cur
		cur += size
	}
	r.offsets[len(code)] = cur
	if cur > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCodeTooLarge, cur)
	}

	out := make([]byte, 0, cur)
	target := func(from, rel int) (int, error) {
		to, ok := r.offsets[from+rel]
		if !ok || from+rel == len(code) {
			return 0, fmt.Errorf("%w: branch at pc %d targets %d", ErrMalformed, from, from+rel)
		}
		return to, nil
	}
	for i, in := range insns {
		raw := code[in.PC : in.PC+in.Size]
		info := opTable[in.Opcode]
		switch info.kind {
		case operandPool1:
			if newIndex[i] > math.MaxUint8 {
				out = append(out, OpLdcW)
				out = binary.BigEndian.AppendUint16(out, newIndex[i])
			} else {
				out = append(out, OpLdc, uint8(newIndex[i]))
			}
		case operandPool2:
			out = append(out, in.Opcode)
			out = binary.BigEndian.AppendUint16(out, newIndex[i])
			out = append(out, raw[3:]...)
		case operandBranch2:
			to, err := target(in.PC, int(int16(binary.BigEndian.Uint16(raw[1:]))))
			if err != nil {
				return nil, err
			}
			rel := to - newPC[i]
			if rel < math.MinInt16 || rel > math.MaxInt16 {
				return nil, fmt.Errorf("%w: branch at pc %d out of range", ErrCodeTooLarge, in.PC)
			}
			out = append(out, in.Opcode)
			out = binary.BigEndian.AppendUint16(out, uint16(int16(rel)))
		case operandBranch4:
			to, err := target(in.PC, int(int32(binary.BigEndian.Uint32(raw[1:]))))
			if err != nil {
				return nil, err
			}
			out = append(out, in.Opcode)
			out = binary.BigEndian.AppendUint32(out, uint32(int32(to-newPC[i])))
		case operandSwitch:
			out, err = appendSwitch(out, code, in, newPC[i], target)
			if err != nil {
				return nil, err
			}
		default:
			out = append(out, raw...)
		}
	}
	r.code = out
	return r, nil
}

func appendSwitch(out, code []byte, in Instruction, pc int, target func(from, rel int) (int, error)) ([]byte, error) {
	out = append(out, in.Opcode)
	for i := 0; i < switchPadding(pc); i++ {
		out = append(out, 0)
	}
	base := in.PC + 1 + switchPadding(in.PC)
	end := in.PC + in.Size
	reloc := func(at int) error {
		to, err := target(in.PC, int(int32(binary.BigEndian.Uint32(code[at:]))))
		if err != nil {
			return err
		}
		out = binary.BigEndian.AppendUint32(out, uint32(int32(to-pc)))
		return nil
	}

	if err := reloc(base); err != nil {
		return nil, err
	}
	if in.Opcode == OpTableswitch {
		out = append(out, code[base+4:base+12]...)
		for at := base + 12; at < end; at += 4 {
			if err := reloc(at); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	out = append(out, code[base+4:base+8]...)
	for at := base + 8; at < end; at += 8 {
		out = append(out, code[at:at+4]...)
		if err := reloc(at + 4); err != nil {
			return nil, err
		}
	}
	return out, nil
}
