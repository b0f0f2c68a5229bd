// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shader

import "fmt"

// MakeBlock folds every variable in varIDs - loose uniforms of the given
// storage class, declared outside any block - into one synthesized
// Block-decorated struct variable at (set, binding), laid out per
// std140 (shader/layout.go). Every existing OpLoad of a folded variable
// is rewritten to load the corresponding member through a new
// OpAccessChain instead; a bool-typed member is stored as a 32-bit int
// (std140 has no bool representation) and recovered on load via
// OpINotEqual against zero, so every other instruction that consumed the
// original load's result id keeps working unmodified.
//
// This is the SPIR-V side of the original implementation's
// SpirVMakeBlockPass: a shader compiled against a convenient, loose
// uniform-per-variable convention arrives needing its state folded into
// the one UBO Vulkan expects per descriptor binding.
func MakeBlock(varIDs []uint32, storage StorageClass, set, binding uint32) Transform {
	return func(m *Module) error {
		if len(varIDs) == 0 {
			return nil
		}
		idx := buildIndex(m)

		type member struct {
			varID  uint32
			typeID uint32
			kind   FieldKind
			isBool bool
			name   string
		}
		members := make([]member, 0, len(varIDs))
		for _, v := range varIDs {
			typeID, ok := idx.varType[v]
			if !ok {
				return fmt.Errorf("shader: MakeBlock: variable %%%d is not declared", v)
			}
			kind, isBool, ok := fieldKindOf(m, typeID)
			if !ok {
				return fmt.Errorf("shader: MakeBlock: variable %%%d has an unsupported loose-uniform type", v)
			}
			members = append(members, member{v, typeID, kind, isBool, idx.nameOf[v]})
		}

		fields := make([]Field, len(members))
		for i, mb := range members {
			fields[i] = Field{Name: mb.name, Kind: mb.kind}
		}
		laid := Std140Layout(fields)

		intType := findOrCreateIntType(m)
		memberTypeIDs := make([]uint32, len(members))
		for i, mb := range members {
			if mb.isBool {
				memberTypeIDs[i] = intType
			} else {
				memberTypeIDs[i] = mb.typeID
			}
		}

		structID := m.newID()
		m.insertAt(m.globalSectionEnd(), instruction{Op: OpTypeStruct, Operands: append([]uint32{structID}, memberTypeIDs...)})

		var decorations []instruction
		decorations = append(decorations, instruction{Op: OpDecorate, Operands: []uint32{structID, DecorationBlock}})
		for i, f := range laid.Fields {
			decorations = append(decorations, instruction{Op: OpMemberDecorate, Operands: []uint32{structID, uint32(i), DecorationOffset, f.Offset}})
		}
		m.insertAt(m.annotationSectionEnd(), decorations...)

		ptrType := typePointer(m, storage, structID)
		blockVar := m.newID()
		m.insertAt(m.globalSectionEnd(), instruction{Op: OpVariable, Operands: []uint32{ptrType, blockVar, uint32(storage)}})

		m.insertAt(m.annotationSectionEnd(),
			instruction{Op: OpDecorate, Operands: []uint32{blockVar, DecorationDescriptorSet, set}},
			instruction{Op: OpDecorate, Operands: []uint32{blockVar, DecorationBinding, binding}},
		)

		for i, mb := range members {
			memberPtrType := typePointer(m, storage, memberTypeIDs[i])
			idxConst := constUint(m, intType, uint32(i))
			rewriteLoads(m, mb.varID, mb.isBool, blockVar, idxConst, memberPtrType, intType)
		}

		looseVars := make(map[uint32]bool, len(members))
		for _, mb := range members {
			looseVars[mb.varID] = true
		}
		m.removeWhere(func(ins instruction) bool {
			if ins.Op == OpVariable && len(ins.Operands) >= 2 && looseVars[ins.Operands[1]] {
				return false
			}
			if ins.Op == OpDecorate && len(ins.Operands) >= 1 && looseVars[ins.Operands[0]] {
				return false
			}
			return true
		})
		return nil
	}
}

// rewriteLoads replaces every OpLoad of varID with a load through a new
// OpAccessChain into blockVar at idxConst, recovering a bool value via
// OpINotEqual when isBool is set.
//
// Any global-section id this needs (the zero constant for the bool
// case) is resolved once up front: constUint/typePointer insert into the
// global-declarations section, which precedes every function body, so
// doing that after finding an OpLoad's index inside a loop would shift
// that already-captured index out from under it.
func rewriteLoads(m *Module, varID uint32, isBool bool, blockVar, idxConst, memberPtrType, intType uint32) {
	var zero uint32
	if isBool {
		zero = constUint(m, intType, 0)
	}
	for {
		li := -1
		for i, ins := range m.instructions {
			if ins.Op == OpLoad && len(ins.Operands) == 3 && ins.Operands[2] == varID {
				li = i
				break
			}
		}
		if li < 0 {
			return
		}

		chainID := m.newID()
		chain := instruction{Op: OpAccessChain, Operands: []uint32{memberPtrType, chainID, blockVar, idxConst}}

		if !isBool {
			m.insertAt(li, chain)
			m.instructions[li+1].Operands[2] = chainID
			continue
		}

		origResultType := m.instructions[li].Operands[0]
		origResultID := m.instructions[li].Operands[1]
		intLoadID := m.newID()
		intLoad := instruction{Op: OpLoad, Operands: []uint32{intType, intLoadID, chainID}}
		notEqual := instruction{Op: OpINotEqual, Operands: []uint32{origResultType, origResultID, intLoadID, zero}}
		m.insertAt(li, chain, intLoad)
		// the old OpLoad, now at li+2, is replaced in place so every
		// other instruction referencing origResultID is unaffected.
		m.instructions[li+2] = notEqual
	}
}
