// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemapDescriptorSetRewritesMatchingSet(t *testing.T) {
	m := &Module{instructions: []instruction{
		instr(OpDecorate, 20, DecorationDescriptorSet, 0),
		instr(OpDecorate, 21, DecorationDescriptorSet, 1),
	}}
	require.NoError(t, RemapDescriptorSet(0, 2)(m))
	assert.Equal(t, uint32(2), m.instructions[0].Operands[2])
	// a set this pass doesn't target is left untouched.
	assert.Equal(t, uint32(1), m.instructions[1].Operands[2])
}

func TestRebindDescriptorMovesBindingWithinTargetSet(t *testing.T) {
	m := &Module{instructions: []instruction{
		instr(OpDecorate, 20, DecorationDescriptorSet, 1),
		instr(OpDecorate, 20, DecorationBinding, 0),
		instr(OpDecorate, 21, DecorationBinding, 0), // a different variable, same binding, different set
	}}
	require.NoError(t, RebindDescriptor(1, 0, 5)(m))
	assert.Equal(t, uint32(5), m.instructions[1].Operands[2])
	// the other variable's binding 0, which is not decorated set=1, is untouched.
	assert.Equal(t, uint32(0), m.instructions[2].Operands[2])
}

func TestRebindDescriptorErrorsOnMissingSet(t *testing.T) {
	m := &Module{instructions: []instruction{
		instr(OpDecorate, 20, DecorationDescriptorSet, 3),
	}}
	err := RebindDescriptor(7, 0, 1)(m)
	assert.Error(t, err)
}

func TestPipelineStopsAtFirstError(t *testing.T) {
	m := &Module{}
	ran := false
	err := Pipeline(m,
		func(*Module) error { return assert.AnError },
		func(*Module) error { ran = true; return nil },
	)
	assert.Error(t, err)
	assert.False(t, ran)
}
