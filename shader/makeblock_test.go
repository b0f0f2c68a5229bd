// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// looseUniformFixture builds a module declaring two loose (non-block)
// uniform variables - a float and a bool - each loaded once inside the
// entry-point function, the input shape MakeBlock exists to fold: no
// caller-supplied Vulkan descriptor metadata, just variables a GLSL-
// oriented front-end emitted directly.
func looseUniformFixture() *Module {
	const (
		floatType  = 1
		boolType   = 2
		floatPtr   = 10
		boolPtr    = 11
		scaleVar   = 50
		enabledVar = 51
		scaleLoad  = 60
		enabledLoad = 61
	)
	return &Module{IDBound: 100, instructions: []instruction{
		instr(OpTypeFloat, floatType, 32),
		instr(OpTypeBool, boolType),
		instr(OpTypePointer, floatPtr, uint32(StorageUniform), floatType),
		instr(OpTypePointer, boolPtr, uint32(StorageUniform), boolType),
		instr(OpVariable, floatPtr, scaleVar, uint32(StorageUniform)),
		instr(OpVariable, boolPtr, enabledVar, uint32(StorageUniform)),
		instr(OpName, append([]uint32{scaleVar}, encodeWordString("scale")...)...),
		instr(OpName, append([]uint32{enabledVar}, encodeWordString("enabled")...)...),
		instr(OpFunction, 0, 900, 0, 0),
		instr(OpLabel, 901),
		instr(OpLoad, floatType, scaleLoad, scaleVar),
		instr(OpLoad, boolType, enabledLoad, enabledVar),
		instr(OpFunctionEnd),
	}}
}

func TestClassifySortsLooseUniformsByID(t *testing.T) {
	m := looseUniformFixture()
	cls := Classify(m)
	assert.Equal(t, []uint32{50, 51}, cls.Loose)
	assert.Empty(t, cls.Blocks)
	assert.Empty(t, cls.Opaque)
}

func TestMakeBlockFoldsLooseUniformsIntoOneStdBlock(t *testing.T) {
	m := looseUniformFixture()
	require.NoError(t, MakeBlock([]uint32{50, 51}, StorageUniform, 2, 0)(m))

	// the original variables are gone.
	for _, ins := range m.instructions {
		if ins.Op == OpVariable {
			require.NotEqual(t, uint32(50), ins.Operands[1])
			require.NotEqual(t, uint32(51), ins.Operands[1])
		}
	}

	var structID uint32
	var blockDecorated bool
	offsets := map[uint32]uint32{}
	for _, ins := range m.instructions {
		switch ins.Op {
		case OpTypeStruct:
			if len(ins.Operands) == 3 {
				structID = ins.Operands[0]
			}
		case OpDecorate:
			if len(ins.Operands) >= 2 && ins.Operands[0] == structID && ins.Operands[1] == DecorationBlock {
				blockDecorated = true
			}
		case OpMemberDecorate:
			if ins.Operands[0] == structID && ins.Operands[2] == DecorationOffset {
				offsets[ins.Operands[1]] = ins.Operands[3]
			}
		}
	}
	require.NotZero(t, structID)
	assert.True(t, blockDecorated)
	assert.Equal(t, uint32(0), offsets[0])
	assert.Equal(t, uint32(4), offsets[1]) // float then int, both align-4

	// the block variable carries the requested set/binding.
	var sawSet, sawBinding bool
	for _, ins := range m.instructions {
		if ins.Op != OpDecorate || len(ins.Operands) < 3 {
			continue
		}
		if ins.Operands[1] == DecorationDescriptorSet && ins.Operands[2] == 2 {
			sawSet = true
		}
		if ins.Operands[1] == DecorationBinding && ins.Operands[2] == 0 {
			sawBinding = true
		}
	}
	assert.True(t, sawSet)
	assert.True(t, sawBinding)

	// the float load keeps its original result id/type, now fed by an
	// access chain into the block.
	var sawFloatLoad, sawAccessChain bool
	for i, ins := range m.instructions {
		if ins.Op == OpLoad && ins.Operands[1] == 60 {
			sawFloatLoad = true
			require.Equal(t, OpAccessChain, m.instructions[i-1].Op)
			sawAccessChain = true
		}
	}
	assert.True(t, sawFloatLoad)
	assert.True(t, sawAccessChain)

	// the bool load's result id is preserved via OpINotEqual against a
	// zero int constant, so any instruction downstream that consumed
	// result id 61 as a bool keeps working unmodified.
	var sawBoolFixup bool
	for _, ins := range m.instructions {
		if ins.Op == OpINotEqual && ins.Operands[1] == 61 {
			sawBoolFixup = true
		}
	}
	assert.True(t, sawBoolFixup)
}

func TestMakeBlockErrorsOnUnsupportedType(t *testing.T) {
	m := &Module{IDBound: 100, instructions: []instruction{
		instr(OpTypeStruct, 1), // struct with no scalar/vector/matrix shape
		instr(OpTypePointer, 10, uint32(StorageUniform), 1),
		instr(OpVariable, 10, 50, uint32(StorageUniform)),
	}}
	err := MakeBlock([]uint32{50}, StorageUniform, 2, 0)(m)
	assert.Error(t, err)
}

// structResourceFixture declares a Uniform-storage struct whose single
// member is a combined image sampler, accessed through one constant-
// indexed OpAccessChain followed by an OpLoad - the struct-nested
// resource shape HoistStructResources exists to pull apart.
func structResourceFixture() *Module {
	const (
		sampledImageType = 1
		structType        = 2
		structPtr         = 10
		memberPtr         = 11
		structVar         = 50
		zeroConst         = 70
		intType           = 71
		chainResult       = 80
		loadResult        = 81
	)
	return &Module{IDBound: 200, instructions: []instruction{
		instr(OpTypeSampledImage, sampledImageType),
		instr(OpTypeStruct, structType, sampledImageType),
		instr(OpTypePointer, structPtr, uint32(StorageUniform), structType),
		instr(OpTypePointer, memberPtr, uint32(StorageUniformConstant), sampledImageType),
		instr(OpVariable, structPtr, structVar, uint32(StorageUniform)),
		instr(OpTypeInt, intType, 32, 1),
		instr(OpConstant, intType, zeroConst, 0),
		instr(OpFunction, 0, 900, 0, 0),
		instr(OpLabel, 901),
		instr(OpAccessChain, memberPtr, chainResult, structVar, zeroConst),
		instr(OpLoad, sampledImageType, loadResult, chainResult),
		instr(OpFunctionEnd),
	}}
}

func TestHoistStructResourcesMovesOpaqueMemberToTopLevelVariable(t *testing.T) {
	m := structResourceFixture()
	require.NoError(t, HoistStructResources()(m))

	cls := Classify(m)
	require.Len(t, cls.Opaque, 1)

	// the access chain is gone; the load now reads the hoisted variable
	// directly.
	for _, ins := range m.instructions {
		assert.NotEqual(t, OpAccessChain, ins.Op)
		if ins.Op == OpLoad {
			assert.Equal(t, cls.Opaque[0], ins.Operands[2])
		}
	}
}

func TestStripUniformLocationsRemovesLocationFromResourceVariablesOnly(t *testing.T) {
	m := &Module{instructions: []instruction{
		instr(OpVariable, 1, 50, uint32(StorageUniformConstant)),
		instr(OpVariable, 2, 51, uint32(StorageInput)),
		instr(OpDecorate, 50, DecorationLocation, 0),
		instr(OpDecorate, 51, DecorationLocation, 1),
	}}
	require.NoError(t, StripUniformLocations()(m))

	var remaining []instruction
	for _, ins := range m.instructions {
		if ins.Op == OpDecorate {
			remaining = append(remaining, ins)
		}
	}
	require.Len(t, remaining, 1)
	assert.Equal(t, uint32(51), remaining[0].Operands[0])
}

func TestModuleBytesRoundTripsAfterInsertingInstructions(t *testing.T) {
	m := looseUniformFixture()
	before := len(m.instructions)
	require.NoError(t, MakeBlock([]uint32{50, 51}, StorageUniform, 2, 0)(m))
	require.Greater(t, len(m.instructions), before)

	parsed, err := Parse(m.Bytes())
	require.NoError(t, err)
	assert.Equal(t, len(m.instructions), len(parsed.instructions))
	assert.Equal(t, m.IDBound, parsed.IDBound)
}
