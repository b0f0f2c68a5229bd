// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package pipeline builds and caches VkPipelines from the render attribute
state, vertex format, and shader a draw call requires, following the
original implementation's VulkanShaderContext pipeline cache keyed by a
small comparable struct (§3).
*/
package pipeline

import (
	"github.com/vkscene/vkscene/render"
	"github.com/vkscene/vkscene/vgpu"
)

// Key is the comparable cache key identifying one VkPipeline: everything
// about a draw call that changes which fixed-function/shader-stage
// configuration it needs, with the parts that don't affect pipeline
// identity (uniform values, texture contents) left out. Pointer fields
// rely on Shader/GeomVertexFormat instances being stable and reused
// across draws, the same assumption the original PipelineKey makes about
// its RenderAttrib pointers.
type Key struct {
	Shader       *render.Shader
	VertexFormat *render.GeomVertexFormat
	Topology     render.PrimitiveTopology

	CullFace       render.CullFaceMode
	DepthWrite     render.DepthWriteMode
	DepthTest      render.DepthTestMode
	ColorWriteMask render.ColorWriteMask
	LogicOp        render.LogicOp
	LogicOpEnable  bool
	ColorBlend     render.ColorBlendAttrib
	Transparency   render.TransparencyMode
	RenderMode     render.RenderModeAttrib
	Multisamples   int32

	FbConfig vgpu.FbConfig
}

// FromState builds a Key from the draw call's current render state,
// geometry, and shader. LineWidth is intentionally excluded: it is set
// dynamically via vkCmdSetLineWidth rather than baked into the pipeline,
// since VK_DYNAMIC_STATE_LINE_WIDTH is part of the baseline dynamic
// state set every pipeline in this module enables.
func FromState(st *render.State, vf *render.GeomVertexFormat, topo render.PrimitiveTopology, sh *render.Shader, fb vgpu.FbConfig) Key {
	return Key{
		Shader:         sh,
		VertexFormat:   vf,
		Topology:       topo,
		CullFace:       st.CullFace,
		DepthWrite:     st.DepthWrite,
		DepthTest:      st.DepthTest,
		ColorWriteMask: st.ColorWriteMask,
		LogicOp:        st.LogicOp,
		LogicOpEnable:  st.LogicOpEnable,
		ColorBlend:     st.ColorBlend,
		Transparency:   st.Transparency,
		RenderMode:     st.RenderMode,
		Multisamples:   st.Multisamples,
		FbConfig:       fb,
	}
}
