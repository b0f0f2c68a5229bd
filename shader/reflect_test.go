// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func instr(op Op, operands ...uint32) instruction {
	return instruction{Op: op, Operands: operands}
}

// fragmentFixture builds a synthetic, minimal fragment-stage module
// declaring one uniform buffer (set=2, binding=3), one combined image
// sampler (set=1, binding=0), and a two-member push constant block.
func fragmentFixture() *Module {
	var ops []uint32
	ops = append(ops, uint32(ExecutionFragment), 100)
	ops = append(ops, encodeWordString("main")...)

	m := &Module{instructions: []instruction{
		instr(OpEntryPoint, ops...),

		// uniform buffer at set=2, binding=3
		instr(OpTypeStruct, 10),
		instr(OpMemberDecorate, 10, 0, DecorationOffset, 0),
		instr(OpTypePointer, 11, uint32(StorageUniform), 10),
		instr(OpVariable, 11, 20, uint32(StorageUniform)),
		instr(OpDecorate, 20, DecorationBinding, 3),
		instr(OpDecorate, 20, DecorationDescriptorSet, 2),
		instr(OpName, append([]uint32{20}, encodeWordString("UBO")...)...),

		// combined image sampler at set=1, binding=0
		instr(OpTypePointer, 12, uint32(StorageUniformConstant), 13),
		instr(OpVariable, 12, 21, uint32(StorageUniformConstant)),
		instr(OpDecorate, 21, DecorationBinding, 0),
		instr(OpDecorate, 21, DecorationDescriptorSet, 1),

		// push constant block, two members
		instr(OpTypeStruct, 30),
		instr(OpMemberDecorate, 30, 0, DecorationOffset, 0),
		instr(OpMemberDecorate, 30, 1, DecorationOffset, 64),
		instr(OpTypePointer, 31, uint32(StoragePushConstant), 30),
		instr(OpVariable, 31, 40, uint32(StoragePushConstant)),

		// one input location
		instr(OpTypePointer, 50, uint32(StorageInput), 51),
		instr(OpVariable, 50, 60, uint32(StorageInput)),
		instr(OpDecorate, 60, DecorationLocation, 0),
	}}
	return m
}

func TestReflectStageAndEntryPoint(t *testing.T) {
	m := fragmentFixture()
	r, err := Reflect(m)
	require.NoError(t, err)
	assert.Equal(t, StageFragment, r.Stage)
	assert.Equal(t, "main", r.EntryPoint)
}

func TestReflectUniformBufferDescriptor(t *testing.T) {
	m := fragmentFixture()
	r, err := Reflect(m)
	require.NoError(t, err)

	var ubo *Descriptor
	for i := range r.Descriptors {
		if r.Descriptors[i].Type == DescriptorUniformBuffer {
			ubo = &r.Descriptors[i]
		}
	}
	require.NotNil(t, ubo)
	assert.Equal(t, uint32(2), ubo.Set)
	assert.Equal(t, uint32(3), ubo.Binding)
	assert.Equal(t, StageFragment, ubo.StageMask)
}

func TestReflectCombinedImageSamplerDescriptor(t *testing.T) {
	m := fragmentFixture()
	r, err := Reflect(m)
	require.NoError(t, err)

	var sampler *Descriptor
	for i := range r.Descriptors {
		if r.Descriptors[i].Type == DescriptorCombinedImageSampler {
			sampler = &r.Descriptors[i]
		}
	}
	require.NotNil(t, sampler)
	assert.Equal(t, uint32(1), sampler.Set)
	assert.Equal(t, uint32(0), sampler.Binding)
}

func TestReflectPushConstantSize(t *testing.T) {
	m := fragmentFixture()
	r, err := Reflect(m)
	require.NoError(t, err)
	assert.Equal(t, uint32(64), r.PushConstantSize)
}

func TestReflectInputLocations(t *testing.T) {
	m := fragmentFixture()
	r, err := Reflect(m)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, r.InputLocations)
}

// invariant 6: every Uniform/UniformConstant variable reflects the exact
// (set, binding) pair decorated on it in the module.
func TestReflectEveryDescriptorHasItsDecoratedSetBinding(t *testing.T) {
	m := fragmentFixture()
	r, err := Reflect(m)
	require.NoError(t, err)

	type pair struct{ set, binding uint32 }
	var got []pair
	for _, d := range r.Descriptors {
		got = append(got, pair{d.Set, d.Binding})
	}
	assert.ElementsMatch(t, []pair{{2, 3}, {1, 0}}, got)
}

func TestMergeDescriptorsOrsStageMasksOnSharedBinding(t *testing.T) {
	vertex := []Descriptor{{Set: 0, Binding: 0, Type: DescriptorUniformBuffer, StageMask: StageVertex}}
	fragment := []Descriptor{{Set: 0, Binding: 0, Type: DescriptorUniformBuffer, StageMask: StageFragment}}

	merged := MergeDescriptors(vertex, fragment)
	require.Len(t, merged, 1)
	assert.Equal(t, StageVertex|StageFragment, merged[0].StageMask)
}

func TestMergeDescriptorsPreservesDistinctBindings(t *testing.T) {
	vertex := []Descriptor{{Set: 0, Binding: 0, StageMask: StageVertex}}
	fragment := []Descriptor{{Set: 1, Binding: 0, StageMask: StageFragment}}

	merged := MergeDescriptors(vertex, fragment)
	assert.Len(t, merged, 2)
}
