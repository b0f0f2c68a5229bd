// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shader

import "fmt"

// HoistStructResources moves every opaque (sampler, image, or combined
// sampled-image) member out of a Uniform-storage struct variable and
// into its own top-level UniformConstant variable, rewriting the single-
// level access chains that reached it to load the new variable directly.
// Vulkan does not allow opaque resource types inside a block; some
// shader front-ends still declare them nested in a plain struct for
// convenience, the way a GLSL "material" struct groups its textures next
// to its scalar uniforms.
//
// If every member of a struct turns out to be opaque, the now-empty
// struct variable is dropped entirely (nothing can still reference it
// once every access chain into it has been rewired). A struct mixing
// opaque and scalar members keeps its declaration - including the
// hoisted member's now-unused slot - since renumbering the remaining
// members' offsets and every other access chain into the struct is out
// of scope here; MakeBlock's own type check (fieldKindOf) rejects such a
// struct explicitly rather than silently mis-laying it out.
//
// Only one level of indexing is understood: an OpAccessChain taken
// directly off the struct variable with a single constant index. A
// resource nested inside a struct nested inside another struct is left
// untouched rather than guessed at.
func HoistStructResources() Transform {
	return func(m *Module) error {
		idx := buildIndex(m)

		type hoistMember struct {
			structVar  uint32
			structType uint32
			memberIdx  uint32
			memberType uint32
		}
		var targets []hoistMember
		opaqueCount := map[uint32]int{}    // struct type id -> opaque members found
		memberCount := map[uint32]int{}    // struct type id -> total members

		for varID, storage := range idx.varStorage {
			if storage != StorageUniform {
				continue
			}
			typeID, ok := idx.varType[varID]
			if !ok || idx.opcodeOf[typeID] != OpTypeStruct {
				continue
			}
			members := idx.structMembers[typeID]
			memberCount[typeID] = len(members)
			for i, memberType := range members {
				if idx.isOpaque(memberType) {
					targets = append(targets, hoistMember{varID, typeID, uint32(i), memberType})
					opaqueCount[typeID]++
				}
			}
		}
		if len(targets) == 0 {
			return nil
		}

		fullyHoisted := map[uint32]bool{}
		for structType, total := range memberCount {
			if opaqueCount[structType] == total {
				fullyHoisted[structType] = true
			}
		}

		for _, t := range targets {
			newVar := m.newID()
			ptrType := typePointer(m, StorageUniformConstant, t.memberType)
			m.insertAt(m.globalSectionEnd(), instruction{Op: OpVariable, Operands: []uint32{ptrType, newVar, uint32(StorageUniformConstant)}})
			if name, ok := idx.nameOf[t.structVar]; ok {
				m.insertAt(m.globalSectionEnd(), instruction{Op: OpName,
					Operands: append([]uint32{newVar}, encodeWordString(fmt.Sprintf("%s_hoisted", name))...)})
			}

			var chainResult uint32
			var found bool
			var removeIdx []int
			for i, ins := range m.instructions {
				if ins.Op != OpAccessChain || len(ins.Operands) != 4 {
					continue
				}
				if ins.Operands[2] != t.structVar {
					continue
				}
				val, ok := constantValue(m, ins.Operands[3])
				if !ok || val != t.memberIdx {
					continue
				}
				chainResult = ins.Operands[1]
				found = true
				removeIdx = append(removeIdx, i)
			}
			if !found {
				continue
			}
			skip := make(map[int]bool, len(removeIdx))
			for _, i := range removeIdx {
				skip[i] = true
			}
			m.replaceResultUses(chainResult, newVar, skip)
			n := 0
			for i, ins := range m.instructions {
				if skip[i] {
					continue
				}
				m.instructions[n] = ins
				n++
			}
			m.instructions = m.instructions[:n]
		}

		if len(fullyHoisted) > 0 {
			structVarOf := map[uint32]uint32{} // struct var id -> struct type id
			for varID, storage := range idx.varStorage {
				if storage != StorageUniform {
					continue
				}
				if typeID, ok := idx.varType[varID]; ok && fullyHoisted[typeID] {
					structVarOf[varID] = typeID
				}
			}
			m.removeWhere(func(ins instruction) bool {
				if ins.Op == OpVariable && len(ins.Operands) >= 2 {
					if _, ok := structVarOf[ins.Operands[1]]; ok {
						return false
					}
				}
				if ins.Op == OpDecorate && len(ins.Operands) >= 1 {
					if _, ok := structVarOf[ins.Operands[0]]; ok {
						return false
					}
				}
				return true
			})
		}
		return nil
	}
}
