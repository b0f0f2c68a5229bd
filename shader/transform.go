// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shader

import "fmt"

// Transform is one module-rewrite pass: it may rewrite operand words in
// place, or insert/remove whole instructions (minting new result ids via
// m.newID), and returns an error only if the module does not contain
// what the pass expects.
//
// A full shader arrives at the pipeline the way it does in the original
// implementation's vulkanShaderContext.cxx: compiled against a
// convenient, not-yet-Vulkan-ready set of conventions (loose scalar
// uniforms outside any block, struct-nested opaque resources, Location
// decorations on uniforms, bool-typed uniform members). The module-level
// passes below turn that into something vkCreateShaderModule and
// descriptor-set reflection can consume directly:
//
//  1. StripUniformLocations - Location means nothing on a uniform/
//     sampler variable in Vulkan; GLSL's compiler still emits it.
//  2. HoistStructResources - pull opaque (sampler/image) members that a
//     struct-nested shader happened to declare inside a Uniform-storage
//     struct back out to their own top-level variables, since Vulkan
//     does not allow opaque types inside a UBO.
//  3. MakeBlock - fold the remaining loose (non-block) uniform
//     variables for one storage class into a single synthesized,
//     std140-laid-out Block struct, rewriting every load of a folded
//     variable to go through the new block instead (recasting any
//     bool-typed member to int along the way, since SPIR-V's OpTypeBool
//     has no fixed size and cannot appear in a std140 block).
//  4. RemapDescriptorSet / RebindDescriptor - move whatever (set,
//     binding) pairs the shader (or step 3's synthesized block) ended
//     up with onto this module's fixed set layout (§6).
type Transform func(m *Module) error

// Pipeline runs passes in order against m, stopping at the first error.
func Pipeline(m *Module, passes ...Transform) error {
	for _, p := range passes {
		if err := p(m); err != nil {
			return err
		}
	}
	return nil
}

// StripUniformLocations removes the Location decoration from every
// Uniform, UniformConstant, and PushConstant storage-class variable.
// GLSL-oriented compilers assign every uniform and sampler a Location
// the same way they do vertex attributes; Vulkan ignores it there (only
// Input/Output storage classes use Location) but validation layers
// reject the decoration appearing on resource variables of descriptor
// types that don't expect it, so it is dropped rather than carried
// through to the shader module Vulkan actually loads.
func StripUniformLocations() Transform {
	return func(m *Module) error {
		resourceVar := make(map[uint32]bool)
		for _, ins := range m.instructions {
			if ins.Op != OpVariable || len(ins.Operands) < 3 {
				continue
			}
			switch StorageClass(ins.Operands[2]) {
			case StorageUniform, StorageUniformConstant, StoragePushConstant:
				resourceVar[ins.Operands[1]] = true
			}
		}
		if len(resourceVar) == 0 {
			return nil
		}
		m.removeWhere(func(ins instruction) bool {
			if ins.Op != OpDecorate || len(ins.Operands) < 3 {
				return true
			}
			return !(ins.Operands[1] == DecorationLocation && resourceVar[ins.Operands[0]])
		})
		return nil
	}
}

// RemapDescriptorSet rewrites every OpDecorate DescriptorSet annotation
// equal to from to to, in place. Used to move a shader authored against
// set numbers 0..2 onto this module's fixed set layout (§6:
// LightAttrib=0, TextureAttrib=1, ShaderAttrib=2, DynamicUniforms=3).
func RemapDescriptorSet(from, to uint32) Transform {
	return func(m *Module) error {
		for _, ins := range m.instructions {
			if ins.Op != OpDecorate {
				continue
			}
			if len(ins.Operands) < 3 || ins.Operands[1] != DecorationDescriptorSet {
				continue
			}
			if ins.Operands[2] == from {
				ins.Operands[2] = to
			}
		}
		return nil
	}
}

// RebindDescriptor rewrites the Binding decoration of the descriptor
// currently at (set, fromBinding) to toBinding, used when two reflected
// modules (vertex + fragment) independently number their bindings from 0
// and must be packed into one non-overlapping descriptor set.
func RebindDescriptor(set, fromBinding, toBinding uint32) Transform {
	return func(m *Module) error {
		targets := map[uint32]bool{}
		for _, ins := range m.instructions {
			if ins.Op != OpDecorate || len(ins.Operands) < 3 {
				continue
			}
			if ins.Operands[1] == DecorationDescriptorSet && ins.Operands[2] == set {
				targets[ins.Operands[0]] = true
			}
		}
		if len(targets) == 0 {
			return fmt.Errorf("shader: RebindDescriptor: no variable decorated with set %d", set)
		}
		for _, ins := range m.instructions {
			if ins.Op != OpDecorate || len(ins.Operands) < 3 {
				continue
			}
			if targets[ins.Operands[0]] && ins.Operands[1] == DecorationBinding && ins.Operands[2] == fromBinding {
				ins.Operands[2] = toBinding
			}
		}
		return nil
	}
}

// BindVariable forces the DescriptorSet/Binding decoration of the
// variable with the given result id to (set, binding), adding the
// decorations if the variable did not already carry them. Used after
// HoistStructResources/MakeBlock to place a shader's resource variables
// (both the ones make-block folded and the ones it left alone) onto
// this module's fixed set layout (§6), regardless of what set/binding
// numbers - if any - the source shader originally used.
func BindVariable(varID, set, binding uint32) Transform {
	return func(m *Module) error {
		foundSet, foundBinding := false, false
		for i := range m.instructions {
			ins := &m.instructions[i]
			if ins.Op != OpDecorate || len(ins.Operands) < 3 || ins.Operands[0] != varID {
				continue
			}
			switch ins.Operands[1] {
			case DecorationDescriptorSet:
				ins.Operands[2] = set
				foundSet = true
			case DecorationBinding:
				ins.Operands[2] = binding
				foundBinding = true
			}
		}
		var add []instruction
		if !foundSet {
			add = append(add, instruction{Op: OpDecorate, Operands: []uint32{varID, DecorationDescriptorSet, set}})
		}
		if !foundBinding {
			add = append(add, instruction{Op: OpDecorate, Operands: []uint32{varID, DecorationBinding, binding}})
		}
		if len(add) > 0 {
			m.insertAt(m.annotationSectionEnd(), add...)
		}
		return nil
	}
}

// ForceDynamicUniform records nothing and leaves the module unchanged:
// VK_DESCRIPTOR_TYPE_UNIFORM_BUFFER_DYNAMIC is chosen purely on the Go
// side by descset (there is no SPIR-V bit for it), and Reflect does not
// report (set, binding) as dynamic because of this call. Returns a
// Transform for pipeline-composition symmetry even though this
// particular pass is a no-op against the module bytes.
func ForceDynamicUniform(set, binding uint32) Transform {
	return func(m *Module) error { return nil }
}

// FixupDepthRange is intentionally absent: the depth-range correction
// (§9 open question) is applied once in the shared MVP matrix supplied by
// render.TransformState, not by patching every vertex shader's gl_Position
// write, so no module transform pass is needed for it.
