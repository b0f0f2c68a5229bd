// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shader

import "sort"

// Classification sorts a module's resource variables by what the make-
// block pass needs to do with each before the shader can be reflected
// into real Vulkan descriptor bindings.
type Classification struct {
	// Opaque holds UniformConstant-storage variable ids (combined image
	// samplers, separate images/samplers): never blocked, each gets its
	// own descriptor binding.
	Opaque []uint32
	// Blocks holds Uniform-storage variable ids that already point to a
	// Block-decorated struct: a proper UBO the shader declared directly,
	// needing only a descriptor-set/binding rewrite.
	Blocks []uint32
	// Loose holds Uniform-storage variable ids that are not
	// Block-decorated structs: scalars, vectors, matrices, or plain
	// structs declared directly as uniforms, the case MakeBlock exists
	// to fold into one synthesized UBO.
	Loose []uint32
}

// Classify inspects every OpVariable in m and sorts it into Opaque,
// Blocks, or Loose. Run after StripUniformLocations and
// HoistStructResources so every surviving Uniform-storage variable is
// either already a proper block or a genuinely loose scalar/vector/
// matrix MakeBlock can fold.
func Classify(m *Module) Classification {
	idx := buildIndex(m)
	var c Classification
	for varID, storage := range idx.varStorage {
		typeID, ok := idx.varType[varID]
		if !ok {
			continue
		}
		switch storage {
		case StorageUniformConstant:
			c.Opaque = append(c.Opaque, varID)
		case StorageUniform:
			if idx.opcodeOf[typeID] == OpTypeStruct && idx.decoratedBlock[typeID] {
				c.Blocks = append(c.Blocks, varID)
			} else {
				c.Loose = append(c.Loose, varID)
			}
		}
	}
	sort.Slice(c.Opaque, func(i, j int) bool { return c.Opaque[i] < c.Opaque[j] })
	sort.Slice(c.Blocks, func(i, j int) bool { return c.Blocks[i] < c.Blocks[j] })
	sort.Slice(c.Loose, func(i, j int) bool { return c.Loose[i] < c.Loose[j] })
	return c
}

// moduleIndex is a lightweight index of a module's type/variable graph,
// rebuilt once per transform pass rather than threaded through every
// instruction walk by hand.
type moduleIndex struct {
	pointeeOf      map[uint32]uint32 // OpTypePointer id -> pointee type id
	pointerStorage map[uint32]StorageClass
	structMembers  map[uint32][]uint32 // OpTypeStruct id -> member type ids
	varStorage     map[uint32]StorageClass
	varResultType  map[uint32]uint32 // OpVariable id -> its pointer-type id
	varType        map[uint32]uint32 // OpVariable id -> pointee type id
	opcodeOf       map[uint32]Op
	decoratedBlock map[uint32]bool // struct type id -> carries Block/BufferBlock
	nameOf         map[uint32]string
}

func buildIndex(m *Module) *moduleIndex {
	idx := &moduleIndex{
		pointeeOf:      map[uint32]uint32{},
		pointerStorage: map[uint32]StorageClass{},
		structMembers:  map[uint32][]uint32{},
		varStorage:     map[uint32]StorageClass{},
		varResultType:  map[uint32]uint32{},
		varType:        map[uint32]uint32{},
		opcodeOf:       map[uint32]Op{},
		decoratedBlock: map[uint32]bool{},
		nameOf:         map[uint32]string{},
	}
	for _, ins := range m.instructions {
		switch ins.Op {
		case OpTypeStruct:
			id := ins.Operands[0]
			idx.opcodeOf[id] = OpTypeStruct
			idx.structMembers[id] = append([]uint32(nil), ins.Operands[1:]...)
		case OpTypePointer:
			id, storage, pointee := ins.Operands[0], StorageClass(ins.Operands[1]), ins.Operands[2]
			idx.opcodeOf[id] = OpTypePointer
			idx.pointeeOf[id] = pointee
			idx.pointerStorage[id] = storage
		case OpTypeImage, OpTypeSampler, OpTypeSampledImage, OpTypeArray, OpTypeBool,
			OpTypeFloat, OpTypeInt, OpTypeVector, OpTypeMatrix, OpTypeVoid:
			idx.opcodeOf[ins.Operands[0]] = ins.Op
		case OpVariable:
			resultType, id, storage := ins.Operands[0], ins.Operands[1], StorageClass(ins.Operands[2])
			idx.varResultType[id] = resultType
			idx.varStorage[id] = storage
			if pointee, ok := idx.pointeeOf[resultType]; ok {
				idx.varType[id] = pointee
			}
		case OpDecorate:
			if len(ins.Operands) >= 2 {
				id, dec := ins.Operands[0], ins.Operands[1]
				if dec == DecorationBlock || dec == DecorationBufferBlock {
					idx.decoratedBlock[id] = true
				}
			}
		case OpName:
			if len(ins.Operands) >= 1 {
				idx.nameOf[ins.Operands[0]] = decodeString(ins.Operands, 1)
			}
		}
	}
	return idx
}

// isOpaque reports whether typeID names an image, sampler, or combined
// sampled-image type - the resource kinds Vulkan forbids inside a UBO.
func (idx *moduleIndex) isOpaque(typeID uint32) bool {
	switch idx.opcodeOf[typeID] {
	case OpTypeImage, OpTypeSampler, OpTypeSampledImage:
		return true
	}
	return false
}

// constantValue returns the literal value of the OpConstant with result
// id, if m declares one.
func constantValue(m *Module, id uint32) (uint32, bool) {
	for _, ins := range m.instructions {
		if ins.Op == OpConstant && len(ins.Operands) >= 3 && ins.Operands[1] == id {
			return ins.Operands[2], true
		}
	}
	return 0, false
}

// typePointer finds an existing OpTypePointer to (storage, pointee) in
// m, or inserts a new one at the end of the global-declarations section
// and returns its id. Scans m directly (rather than a cached index) so
// it stays correct across a sequence of insertions within one pass.
func typePointer(m *Module, storage StorageClass, pointee uint32) uint32 {
	for _, ins := range m.instructions {
		if ins.Op == OpTypePointer && ins.Operands[1] == uint32(storage) && ins.Operands[2] == pointee {
			return ins.Operands[0]
		}
	}
	id := m.newID()
	m.insertAt(m.globalSectionEnd(), instruction{Op: OpTypePointer, Operands: []uint32{id, uint32(storage), pointee}})
	return id
}

// constUint finds an existing OpConstant of the given result type and
// literal value, or inserts a new one.
func constUint(m *Module, typeID, value uint32) uint32 {
	for _, ins := range m.instructions {
		if ins.Op == OpConstant && len(ins.Operands) >= 3 && ins.Operands[0] == typeID && ins.Operands[2] == value {
			return ins.Operands[1]
		}
	}
	id := m.newID()
	m.insertAt(m.globalSectionEnd(), instruction{Op: OpConstant, Operands: []uint32{typeID, id, value}})
	return id
}

// findOrCreateIntType returns the id of a 32-bit signed OpTypeInt,
// creating one if the module declares none.
func findOrCreateIntType(m *Module) uint32 {
	for _, ins := range m.instructions {
		if ins.Op == OpTypeInt && len(ins.Operands) >= 3 && ins.Operands[1] == 32 && ins.Operands[2] == 1 {
			return ins.Operands[0]
		}
	}
	id := m.newID()
	m.insertAt(m.globalSectionEnd(), instruction{Op: OpTypeInt, Operands: []uint32{id, 32, 1}})
	return id
}

// fieldKindOf classifies typeID as a std140 Field shape. isBool reports
// whether the source type was OpTypeBool (std140 has no bool
// representation, so MakeBlock stores it as an int and recovers it with
// OpINotEqual against zero on load).
func fieldKindOf(m *Module, typeID uint32) (kind FieldKind, isBool bool, ok bool) {
	for _, ins := range m.instructions {
		if len(ins.Operands) == 0 || ins.Operands[0] != typeID {
			continue
		}
		switch ins.Op {
		case OpTypeFloat:
			return FieldFloat, false, true
		case OpTypeInt:
			return FieldInt, false, true
		case OpTypeBool:
			return FieldInt, true, true
		case OpTypeVector:
			if len(ins.Operands) < 3 {
				continue
			}
			switch ins.Operands[2] {
			case 2:
				return FieldVec2, false, true
			case 3:
				return FieldVec3, false, true
			case 4:
				return FieldVec4, false, true
			}
		case OpTypeMatrix:
			if len(ins.Operands) < 3 {
				continue
			}
			switch ins.Operands[2] {
			case 3:
				return FieldMat3, false, true
			case 4:
				return FieldMat4, false, true
			}
		}
	}
	return 0, false, false
}
