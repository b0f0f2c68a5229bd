// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shader

// DescriptorType classifies a reflected binding by the Vulkan descriptor
// type it needs.
type DescriptorType int

const (
	DescriptorUniformBuffer DescriptorType = iota
	DescriptorStorageBuffer
	DescriptorCombinedImageSampler
	DescriptorDynamicUniformBuffer
)

// Descriptor is one reflected binding within a descriptor set, following
// the original implementation's Descriptor/Block shapes (binding, type,
// the stage mask it is visible to, and — for buffer bindings — its byte
// size so the caller can size a backing allocation).
type Descriptor struct {
	Set       uint32
	Binding   uint32
	Type      DescriptorType
	Name      string
	StageMask StageFlags
	Size      uint32 // byte size, for uniform/storage buffer blocks
}

// StageFlags mirrors the subset of VkShaderStageFlagBits reflection
// needs to merge across stages sharing one binding.
type StageFlags uint32

const (
	StageVertex   StageFlags = 1 << 0
	StageFragment StageFlags = 1 << 4
	StageCompute  StageFlags = 1 << 5
)

func stageFlagFor(model ExecutionModel) StageFlags {
	switch model {
	case ExecutionVertex:
		return StageVertex
	case ExecutionFragment:
		return StageFragment
	case ExecutionGLCompute:
		return StageCompute
	}
	return 0
}

// Reflection is the result of reflecting one SPIR-V module: its stage,
// entry point name, and the descriptors and stage I/O it declares.
type Reflection struct {
	Stage      StageFlags
	EntryPoint string
	Descriptors []Descriptor

	// PushConstantSize is the total byte size of the push constant block,
	// 0 if the module declares none.
	PushConstantSize uint32

	// InputLocations / OutputLocations are the Location decorations of
	// this stage's Input/Output storage-class variables, used by the
	// pipeline package to validate a GeomVertexFormat against a vertex
	// shader's expected attribute locations.
	InputLocations  []uint32
	OutputLocations []uint32
}

type typeInfo struct {
	op         Op
	memberOffsets map[uint32]uint32
	structSize uint32
}

// Reflect walks a parsed module and extracts its descriptor bindings,
// push-constant size, and stage I/O locations. It does not attempt full
// SPIR-V type-checking; it recovers exactly the facts the pipeline and
// descset packages need.
func Reflect(m *Module) (*Reflection, error) {
	r := &Reflection{}

	types := make(map[uint32]*typeInfo)
	varStorage := make(map[uint32]StorageClass)
	varType := make(map[uint32]uint32) // variable id -> pointee type id
	pointeeOf := make(map[uint32]uint32)
	bindingOf := make(map[uint32]uint32)
	setOf := make(map[uint32]uint32)
	locationOf := make(map[uint32]uint32)
	hasLocation := make(map[uint32]bool)
	names := make(map[uint32]string)

	for _, ins := range m.instructions {
		switch ins.Op {
		case OpEntryPoint:
			model := ExecutionModel(ins.Operands[0])
			r.Stage = stageFlagFor(model)
			r.EntryPoint = decodeString(ins.Operands, 2)
		case OpName:
			if len(ins.Operands) >= 1 {
				names[ins.Operands[0]] = decodeString(ins.Operands, 1)
			}
		case OpTypeStruct:
			id := ins.Operands[0]
			types[id] = &typeInfo{op: OpTypeStruct, memberOffsets: map[uint32]uint32{}}
		case OpMemberDecorate:
			id := ins.Operands[0]
			member := ins.Operands[1]
			decoration := ins.Operands[2]
			if decoration == DecorationOffset && len(ins.Operands) >= 4 {
				ti := types[id]
				if ti == nil {
					ti = &typeInfo{op: OpTypeStruct, memberOffsets: map[uint32]uint32{}}
					types[id] = ti
				}
				ti.memberOffsets[member] = ins.Operands[3]
			}
		case OpTypePointer:
			id := ins.Operands[0]
			storage := ins.Operands[1]
			pointee := ins.Operands[2]
			pointeeOf[id] = pointee
			_ = storage
		case OpVariable:
			resultType := ins.Operands[0]
			id := ins.Operands[1]
			storage := StorageClass(ins.Operands[2])
			varStorage[id] = storage
			if pt, ok := pointeeOf[resultType]; ok {
				varType[id] = pt
			}
		case OpDecorate:
			id := ins.Operands[0]
			decoration := ins.Operands[1]
			switch decoration {
			case DecorationBinding:
				bindingOf[id] = ins.Operands[2]
			case DecorationDescriptorSet:
				setOf[id] = ins.Operands[2]
			case DecorationLocation:
				locationOf[id] = ins.Operands[2]
				hasLocation[id] = true
			}
		}
	}

	for id, storage := range varStorage {
		switch storage {
		case StorageUniform, StorageStorageBuffer, StorageUniformConstant:
			tid := varType[id]
			ti := types[tid]
			size := uint32(0)
			if ti != nil {
				for _, off := range ti.memberOffsets {
					if off > size {
						size = off
					}
				}
			}
			dt := DescriptorUniformBuffer
			if storage == StorageStorageBuffer {
				dt = DescriptorStorageBuffer
			} else if storage == StorageUniformConstant {
				dt = DescriptorCombinedImageSampler
			}
			r.Descriptors = append(r.Descriptors, Descriptor{
				Set:       setOf[id],
				Binding:   bindingOf[id],
				Type:      dt,
				Name:      names[id],
				StageMask: r.Stage,
				Size:      size,
			})
		case StoragePushConstant:
			tid := varType[id]
			if ti := types[tid]; ti != nil {
				for _, off := range ti.memberOffsets {
					if off > r.PushConstantSize {
						r.PushConstantSize = off
					}
				}
			}
		case StorageInput:
			if hasLocation[id] {
				r.InputLocations = append(r.InputLocations, locationOf[id])
			}
		case StorageOutput:
			if hasLocation[id] {
				r.OutputLocations = append(r.OutputLocations, locationOf[id])
			}
		}
	}

	return r, nil
}

// MergeDescriptors combines descriptor lists from multiple stages,
// OR-ing StageMask together for bindings that appear in more than one
// (e.g. a UBO read by both vertex and fragment stages).
func MergeDescriptors(lists ...[]Descriptor) []Descriptor {
	type key struct{ set, binding uint32 }
	merged := map[key]*Descriptor{}
	var order []key
	for _, list := range lists {
		for _, d := range list {
			k := key{d.Set, d.Binding}
			if existing, ok := merged[k]; ok {
				existing.StageMask |= d.StageMask
				continue
			}
			dcopy := d
			merged[k] = &dcopy
			order = append(order, k)
		}
	}
	out := make([]Descriptor, 0, len(order))
	for _, k := range order {
		out = append(out, *merged[k])
	}
	return out
}
