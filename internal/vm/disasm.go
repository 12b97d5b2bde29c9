package vm

import (
	"fmt"
	"strings"
)

// Disassemble renders a chunk as one instruction per line, a debug aid for
// tests and the CLI. Nested functions are appended after their parent.
func Disassemble(fn *Function) string {
	var sb strings.Builder
	disassembleFunc(&sb, fn, map[*Chunk]bool{})
	return sb.String()
}

func disassembleFunc(sb *strings.Builder, fn *Function, seen map[*Chunk]bool) {
	if seen[fn.Chunk] {
		return
	}
	seen[fn.Chunk] = true
	fmt.Fprintf(sb, "== %s ==\n", fn.Name)
	c := fn.Chunk
	for pc := 0; pc < len(c.Code); {
		pc = disassembleInstruction(sb, c, pc)
	}
	for _, k := range c.Constants {
		if fc, ok := k.(FuncConstant); ok {
			disassembleFunc(sb, fc.Fn, seen)
		}
	}
}

func disassembleInstruction(sb *strings.Builder, c *Chunk, pc int) int {
	op := Opcode(c.Code[pc])
	fmt.Fprintf(sb, "%04d %s", pc, op)
	pc++

	readU8 := func() int {
		v := int(c.Code[pc])
		pc++
		return v
	}
	readU16 := func() int {
		v := int(c.Code[pc])<<8 | int(c.Code[pc+1])
		pc += 2
		return v
	}

	switch op {
	case OpLoadConst, OpLoadModule, OpGetMethod:
		fmt.Fprintf(sb, " %d", readU16())
	case OpLoadLocal, OpStoreLocal, OpModuleGet, OpGetUpvalue, OpSetUpvalue,
		OpCloseUpvalues, OpCall, OpGetField, OpSetField, OpResume:
		fmt.Fprintf(sb, " %d", readU8())
	case OpAdd, OpMul:
		fmt.Fprintf(sb, " cache:%d", readU16())
	case OpJump, OpJumpIfFalse, OpIterNext:
		off := int(int16(readU16()))
		fmt.Fprintf(sb, " -> %d", pc+off)
	case OpJumpBack:
		off := int(int16(readU16()))
		fmt.Fprintf(sb, " -> %d", pc-off)
	case OpBuildList, OpBuildJson:
		fmt.Fprintf(sb, " %d", readU16())
	case OpBuildModule, OpBuildStruct:
		shape := readU16()
		count := readU8()
		fmt.Fprintf(sb, " shape:%d n:%d", shape, count)
	case OpSetShapeMethod:
		shape := readU16()
		name := readU16()
		fmt.Fprintf(sb, " shape:%d name:%d", shape, name)
	case OpSetShapeOperator:
		shape := readU16()
		kind := readU8()
		fmt.Fprintf(sb, " shape:%d op:%d", shape, kind)
	case OpLambda:
		idx := readU16()
		count := readU8()
		fmt.Fprintf(sb, " fn:%d upvalues:%d", idx, count)
		for i := 0; i < count; i++ {
			isLocal := readU8()
			index := readU8()
			if isLocal == 1 {
				fmt.Fprintf(sb, " (local %d)", index)
			} else {
				fmt.Fprintf(sb, " (upvalue %d)", index)
			}
		}
	}
	sb.WriteByte('\n')
	return pc
}
