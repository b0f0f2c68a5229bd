// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package shader reflects SPIR-V modules to recover the descriptor
bindings, uniform/push-constant block layouts, and stage I/O a pipeline
needs, and applies the small set of module-transform passes the GSG
relies on (uniform location stripping, struct-resource hoisting, folding
loose uniforms into one synthesized UBO, and descriptor set/binding
rewriting). No pass synthesizes a push-constant block or rewrites the
fragment origin or builtins.

No third-party SPIR-V reflection library is used here: none of the
retrieved example repositories import one, so the word-stream walk below
is written directly against encoding/binary, the way the original
implementation's shader context walks the module in-process.
*/
package shader

import (
	"encoding/binary"
	"fmt"
)

const magicNumber = 0x07230203

// Op is a SPIR-V opcode.
type Op uint16

const (
	OpTypeVoid       Op = 19
	OpTypeBool       Op = 20
	OpTypeInt        Op = 21
	OpTypeFloat      Op = 22
	OpTypeVector     Op = 23
	OpTypeMatrix     Op = 24
	OpTypeImage      Op = 25
	OpTypeSampler    Op = 26
	OpTypeSampledImage Op = 27
	OpTypeArray      Op = 28
	OpTypeRuntimeArray Op = 29
	OpTypeStruct     Op = 30
	OpTypePointer    Op = 32
	OpTypeFunction   Op = 33
	OpConstantFalse  Op = 42
	OpConstantTrue   Op = 41
	OpConstant       Op = 43
	OpFunction       Op = 54
	OpFunctionEnd    Op = 56
	OpVariable       Op = 59
	OpLoad           Op = 61
	OpAccessChain    Op = 65
	OpDecorate       Op = 71
	OpMemberDecorate Op = 72
	OpLabel          Op = 248
	OpINotEqual      Op = 171
	OpEntryPoint     Op = 15
	OpExecutionMode  Op = 16
	OpName           Op = 5
	OpMemberName     Op = 6
)

// Decoration identifiers relevant to reflection.
const (
	DecorationBlock          = 2
	DecorationBufferBlock    = 3
	DecorationBinding        = 33
	DecorationDescriptorSet  = 34
	DecorationLocation       = 30
	DecorationOffset         = 35
	DecorationBuiltIn        = 11
)

// StorageClass identifies where an OpVariable lives.
type StorageClass uint32

const (
	StorageUniformConstant StorageClass = 0
	StorageInput           StorageClass = 1
	StorageUniform         StorageClass = 2
	StorageOutput          StorageClass = 3
	StoragePushConstant    StorageClass = 9
	StorageStorageBuffer   StorageClass = 12
)

// ExecutionModel identifies the shader stage of an OpEntryPoint.
type ExecutionModel uint32

const (
	ExecutionVertex   ExecutionModel = 0
	ExecutionFragment ExecutionModel = 4
	ExecutionGLCompute ExecutionModel = 5
)

// instruction is one decoded SPIR-V instruction: its opcode and the
// operand words following the opcode/length word. Operands is an owned
// copy (not an alias into the decoded word stream), so a transform pass is free to
// grow, shrink, reorder, insert, or delete instructions; Module.Bytes
// always re-encodes the word stream fresh from the instruction list.
type instruction struct {
	Op       Op
	Operands []uint32
}

// Module is a parsed SPIR-V module: its header fields and every
// instruction in declaration order. Transform passes mutate instructions
// (and bump IDBound when they mint new result ids) and Bytes
// re-serializes from that list, so inserting new types, constants,
// globals, or decorations is a first-class operation rather than an
// in-place word edit.
type Module struct {
	Version     uint32
	Generator   uint32
	IDBound     uint32
	Schema      uint32
	instructions []instruction
}

// Parse decodes a SPIR-V binary (little-endian word stream) into a
// Module ready for reflection and transformation.
func Parse(code []byte) (*Module, error) {
	if len(code)%4 != 0 {
		return nil, fmt.Errorf("shader: SPIR-V binary length %d is not a multiple of 4", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if len(words) < 5 || words[0] != magicNumber {
		return nil, fmt.Errorf("shader: missing SPIR-V magic number")
	}
	m := &Module{
		Version:   words[1],
		Generator: words[2],
		IDBound:   words[3],
		Schema:    words[4],
	}
	i := 5
	for i < len(words) {
		wordCount := int(words[i] >> 16)
		op := Op(words[i] & 0xFFFF)
		if wordCount == 0 || i+wordCount > len(words) {
			return nil, fmt.Errorf("shader: malformed instruction at word %d", i)
		}
		operands := append([]uint32(nil), words[i+1:i+wordCount]...)
		m.instructions = append(m.instructions, instruction{Op: op, Operands: operands})
		i += wordCount
	}
	return m, nil
}

// Bytes re-encodes the module's current instruction list (including any
// instructions inserted, removed, or rewritten by transform passes) into
// a fresh SPIR-V word stream.
func (m *Module) Bytes() []byte {
	words := make([]uint32, 5, 5+len(m.instructions)*4)
	words[0] = magicNumber
	words[1] = m.Version
	words[2] = m.Generator
	words[3] = m.IDBound
	words[4] = m.Schema
	for _, ins := range m.instructions {
		wordCount := len(ins.Operands) + 1
		words = append(words, (uint32(wordCount)<<16)|uint32(ins.Op))
		words = append(words, ins.Operands...)
	}
	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

// newID allocates a fresh SPIR-V result id, bumping IDBound so the
// module's header stays consistent with the ids actually in use.
func (m *Module) newID() uint32 {
	id := m.IDBound
	m.IDBound++
	return id
}

// indexOf returns the index of the first instruction with the given
// opcode, or -1 if none exists.
func (m *Module) indexOf(op Op) int {
	for i, ins := range m.instructions {
		if ins.Op == op {
			return i
		}
	}
	return -1
}

// isTypeOrConstantOrGlobal reports whether op belongs to SPIR-V's
// types/constants/global-variables section, which must follow every
// annotation (decoration) instruction and precede every function.
func isTypeOrConstantOrGlobal(op Op) bool {
	switch op {
	case OpTypeVoid, OpTypeBool, OpTypeInt, OpTypeFloat, OpTypeVector, OpTypeMatrix,
		OpTypeImage, OpTypeSampler, OpTypeSampledImage, OpTypeArray, OpTypeRuntimeArray,
		OpTypeStruct, OpTypePointer, OpTypeFunction, OpConstantFalse, OpConstantTrue,
		OpConstant, OpVariable:
		return true
	}
	return false
}

// globalSectionEnd returns the index one past the last
// type/constant/global-variable instruction (equivalently, the index of
// the module's first OpFunction, or len(m.instructions) if the module
// declares no functions). New types, constants, and global OpVariables
// are inserted here.
func (m *Module) globalSectionEnd() int {
	if i := m.indexOf(OpFunction); i >= 0 {
		return i
	}
	return len(m.instructions)
}

// annotationSectionEnd returns the index one past the last decoration
// instruction (equivalently, the index of the first type/constant/global
// instruction). New OpDecorate/OpMemberDecorate instructions are
// inserted here, ahead of anything they decorate.
func (m *Module) annotationSectionEnd() int {
	end := m.globalSectionEnd()
	for i := 0; i < end; i++ {
		if isTypeOrConstantOrGlobal(m.instructions[i].Op) {
			return i
		}
	}
	return end
}

// insertAt splices ins into the instruction list at idx, shifting
// everything from idx onward down.
func (m *Module) insertAt(idx int, ins ...instruction) {
	grown := make([]instruction, 0, len(m.instructions)+len(ins))
	grown = append(grown, m.instructions[:idx]...)
	grown = append(grown, ins...)
	grown = append(grown, m.instructions[idx:]...)
	m.instructions = grown
}

// removeWhere deletes every instruction for which keep returns false.
func (m *Module) removeWhere(keep func(instruction) bool) {
	out := m.instructions[:0]
	for _, ins := range m.instructions {
		if keep(ins) {
			out = append(out, ins)
		}
	}
	m.instructions = out
}

// replaceResultUses rewrites every operand word equal to from to to,
// across every instruction except the indices named in skip (typically
// the instruction(s) about to be deleted in the same pass, whose own
// operands referencing from are moot). Used after folding a loose
// uniform load into a new access-chain load so every consumer of the
// original load's result id picks up the replacement value.
func (m *Module) replaceResultUses(from, to uint32, skip map[int]bool) {
	for i := range m.instructions {
		if skip[i] {
			continue
		}
		ops := m.instructions[i].Operands
		for j, w := range ops {
			if w == from {
				ops[j] = to
			}
		}
	}
}

// encodeWordString packs s into SPIR-V's NUL-terminated, word-padded
// literal string operand encoding, the inverse of decodeString.
func encodeWordString(s string) []uint32 {
	b := append([]byte(s), 0)
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
	}
	return out
}

// decodeString reads a NUL-terminated, word-padded SPIR-V literal string
// starting at operand index from in ops.
func decodeString(ops []uint32, from int) string {
	var b []byte
	for i := from; i < len(ops); i++ {
		w := ops[i]
		for s := 0; s < 4; s++ {
			c := byte(w >> (8 * s))
			if c == 0 {
				return string(b)
			}
			b = append(b, c)
		}
	}
	return string(b)
}
