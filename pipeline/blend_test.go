// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vkscene/vkscene/render"

	vk "github.com/goki/vulkan"
)

// ColorBlendAttrib mode=None composed with transparency=Alpha must produce
// a pipeline state with blending enabled and SRC_ALPHA/ONE_MINUS_SRC_ALPHA
// factors, per the round-trip law in §8.
func TestColorBlendAttachmentAlphaTransparencyOverridesNoBlend(t *testing.T) {
	st := &render.State{
		ColorBlend:   render.BlendNone,
		Transparency: render.TransparencyAlpha,
	}
	att := colorBlendAttachment(st)
	assert.Equal(t, vk.True, att.BlendEnable)
	assert.Equal(t, vk.BlendFactorSrcAlpha, att.SrcColorBlendFactor)
	assert.Equal(t, vk.BlendFactorOneMinusSrcAlpha, att.DstColorBlendFactor)
}

func TestColorBlendAttachmentTransparencyTakesPriorityOverCustomBlend(t *testing.T) {
	st := &render.State{
		ColorBlend:   render.BlendAdd,
		Transparency: render.TransparencyAlpha,
	}
	att := colorBlendAttachment(st)
	assert.Equal(t, vk.BlendFactorSrcAlpha, att.SrcColorBlendFactor)
	assert.Equal(t, vk.BlendOpAdd, att.ColorBlendOp)
}

func TestColorBlendAttachmentOpaqueDisablesBlend(t *testing.T) {
	st := &render.State{
		ColorBlend:   render.BlendNone,
		Transparency: render.TransparencyNone,
	}
	att := colorBlendAttachment(st)
	assert.Equal(t, vk.False, att.BlendEnable)
}

func TestColorBlendAttachmentBinaryTransparencyIsUnblended(t *testing.T) {
	st := &render.State{Transparency: render.TransparencyBinary}
	att := colorBlendAttachment(st)
	assert.Equal(t, vk.False, att.BlendEnable)
}

func TestColorWriteMaskBitsRoundTrip(t *testing.T) {
	bits := colorWriteMaskBits(render.ColorWriteR | render.ColorWriteA)
	assert.Equal(t, int(vk.ColorComponentRBit|vk.ColorComponentABit), bits)
}

func TestColorBlendAttachmentForKeyMatchesDirectState(t *testing.T) {
	key := Key{
		ColorWriteMask: render.ColorWriteAll,
		ColorBlend:     render.BlendNone,
		Transparency:   render.TransparencyAlpha,
	}
	viaKey := colorBlendAttachmentForKey(key)

	st := &render.State{
		ColorWriteMask: render.ColorWriteAll,
		ColorBlend:     render.BlendNone,
		Transparency:   render.TransparencyAlpha,
	}
	direct := colorBlendAttachment(st)

	assert.Equal(t, direct, viaKey)
}
