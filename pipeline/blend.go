// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"github.com/vkscene/vkscene/render"

	vk "github.com/goki/vulkan"
)

// colorBlendAttachment derives a VkPipelineColorBlendAttachmentState from
// the draw's transparency and custom-blend attributes. Transparency takes
// priority over ColorBlend when both are set to something other than
// their "off" value, matching the original TransparencyAttrib/
// ColorBlendAttrib precedence (a surface marked transparent blends as
// such regardless of any custom blend equation left configured from a
// previous, opaque pass).
func colorBlendAttachment(st *render.State) vk.PipelineColorBlendAttachmentState {
	att := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(colorWriteMaskBits(st.ColorWriteMask)),
	}

	switch {
	case st.Transparency == render.TransparencyAlpha:
		att.BlendEnable = vk.True
		att.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		att.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		att.ColorBlendOp = vk.BlendOpAdd
		att.SrcAlphaBlendFactor = vk.BlendFactorOne
		att.DstAlphaBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		att.AlphaBlendOp = vk.BlendOpAdd
	case st.Transparency == render.TransparencyPremultipliedAlpha:
		att.BlendEnable = vk.True
		att.SrcColorBlendFactor = vk.BlendFactorOne
		att.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		att.ColorBlendOp = vk.BlendOpAdd
		att.SrcAlphaBlendFactor = vk.BlendFactorOne
		att.DstAlphaBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		att.AlphaBlendOp = vk.BlendOpAdd
	case st.Transparency == render.TransparencyBinary:
		// Alpha-tested, not blended: discard happens in the fragment
		// shader, the attachment blends as opaque.
		att.BlendEnable = vk.False
	case st.ColorBlend != render.BlendNone:
		att.BlendEnable = vk.True
		att.SrcColorBlendFactor = vk.BlendFactorOne
		att.DstColorBlendFactor = vk.BlendFactorOne
		att.SrcAlphaBlendFactor = vk.BlendFactorOne
		att.DstAlphaBlendFactor = vk.BlendFactorOne
		switch st.ColorBlend {
		case render.BlendAdd:
			att.ColorBlendOp = vk.BlendOpAdd
			att.AlphaBlendOp = vk.BlendOpAdd
		case render.BlendSubtract:
			att.ColorBlendOp = vk.BlendOpSubtract
			att.AlphaBlendOp = vk.BlendOpSubtract
		case render.BlendInvSubtract:
			att.ColorBlendOp = vk.BlendOpReverseSubtract
			att.AlphaBlendOp = vk.BlendOpReverseSubtract
		}
	default:
		att.BlendEnable = vk.False
	}
	return att
}

func colorWriteMaskBits(m render.ColorWriteMask) int {
	var bits int
	if m&render.ColorWriteR != 0 {
		bits |= int(vk.ColorComponentRBit)
	}
	if m&render.ColorWriteG != 0 {
		bits |= int(vk.ColorComponentGBit)
	}
	if m&render.ColorWriteB != 0 {
		bits |= int(vk.ColorComponentBBit)
	}
	if m&render.ColorWriteA != 0 {
		bits |= int(vk.ColorComponentABit)
	}
	return bits
}

var vkLogicOps = map[render.LogicOp]vk.LogicOp{
	render.LogicOpCopy:   vk.LogicOpCopy,
	render.LogicOpClear:  vk.LogicOpClear,
	render.LogicOpInvert: vk.LogicOpInvert,
	render.LogicOpAnd:    vk.LogicOpAnd,
	render.LogicOpOr:     vk.LogicOpOr,
	render.LogicOpXor:    vk.LogicOpXor,
}
