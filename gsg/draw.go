// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gsg

import (
	"github.com/vkscene/vkscene/descset"
	"github.com/vkscene/vkscene/pipeline"
	"github.com/vkscene/vkscene/render"
	"github.com/vkscene/vkscene/vgpu"

	vk "github.com/goki/vulkan"
)

// DrawTriangles records one indexed draw call using the GSG's current
// state/transform (set via SetStateAndTransform), uploading vd's bytes
// and prim's indices into this frame's vertex/staging arena, resolving
// (or building) the VkPipeline the (shader, vertex format, topology,
// render state, framebuffer shape) combination needs, and writing this
// draw's uniform data into the dynamic-uniform arena.
//
// Texture-sampling shader inputs are resolved through the attribute sets
// (LightAttrib/TextureAttrib/ShaderAttrib); only the dynamic uniform
// block (set 3) is written here per draw.
func (g *GSG) DrawTriangles(vd *render.GeomVertexArrayData, prim *render.GeomPrimitive, sh *render.Shader) error {
	if g.closing {
		return newError(DeviceLost, "draw call issued after device loss")
	}
	if g.curState == nil || g.curXform == nil {
		return newError(ValidationFailed, "draw call issued before set_state_and_transform")
	}
	if prim.Count == 0 {
		return nil
	}

	fd, arena, varena, _ := g.current()

	info, err := g.shaderInfoFor(sh)
	if err != nil {
		return err
	}

	fbcfg := g.fbConfigFor()
	key := pipeline.FromState(g.curState, vd.Format, prim.Topology, sh, fbcfg)
	setLayouts := g.orderedSetLayouts(info, arena)

	entry, err := g.Pipelines.Get(key, pipeline.BuildParams{
		VertexCode:       info.VertexCode,
		FragmentCode:     info.FragmentCode,
		LocationsByName:  vertexLocationsByName(vd.Format, info.VertexRefl),
		SetLayouts:       setLayouts,
		PushConstantSize: info.PushConstantSize,
	})
	if err != nil {
		return wrapError(PipelineCreateFailed, "resolving pipeline for draw call", err)
	}

	vertOffset, vertDst, ok := varena.alloc(len(vd.Data), vk.DeviceSize(vd.Format.Stride))
	if !ok {
		return newError(AllocationFailed, "vertex/staging arena exhausted this frame")
	}
	copy(vertDst, vd.Data)

	indexAlign := vk.DeviceSize(2)
	if prim.IndexType == render.IndexUint32 {
		indexAlign = 4
	}
	idxOffset, idxDst, ok := varena.alloc(len(prim.Indices), indexAlign)
	if !ok {
		return newError(AllocationFailed, "vertex/staging arena exhausted this frame")
	}
	copy(idxDst, prim.Indices)

	uniformSize := uniformBlockSize(sh)
	var dynOffset vk.DeviceSize
	if uniformSize > 0 {
		off, dst, ok := arena.Alloc(uniformSize)
		if !ok {
			return newError(AllocationFailed, "dynamic uniform arena exhausted this frame")
		}
		dynOffset = off
		pos := 0
		for _, in := range sh.Inputs {
			n := in.FetchData(dst[pos:], g.curState, g.curXform)
			pos += (n + 15) &^ 15
		}
	}

	cmd := fd.Cmd.Cmd
	vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, entry.Pipeline)
	vk.CmdBindVertexBuffers(cmd, 0, 1, []vk.Buffer{varena.Buffer.Buffer}, []vk.DeviceSize{vertOffset})
	vk.CmdBindIndexBuffer(cmd, varena.Buffer.Buffer, idxOffset, prim.IndexType.VkIndexType())

	textureSet, err := g.resolveTextureSet(info, g.curState)
	if err != nil {
		return err
	}
	// Flush any barriers pooled by resolveTextureSet's add_barrier calls
	// before this draw executes (§4.3: pending barriers are flushed
	// "mid-stream before the next draw").
	fd.Cmd.FlushBarriers()

	sets := []vk.DescriptorSet{g.emptySet(), textureSet, g.emptySet(), arena.Set}
	offsets := []uint32{uint32(dynOffset)}
	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointGraphics, entry.Layout,
		LightAttrib, uint32(len(sets)), sets, uint32(len(offsets)), offsets)

	w, h := g.Surface.Extent()
	vk.CmdSetViewport(cmd, 0, 1, []vk.Viewport{{Width: float32(w), Height: float32(h), MaxDepth: 1}})
	vk.CmdSetScissor(cmd, 0, 1, []vk.Rect2D{{Extent: vk.Extent2D{Width: uint32(w), Height: uint32(h)}}})
	vk.CmdSetLineWidth(cmd, g.curState.LineWidth)

	vk.CmdDrawIndexed(cmd, uint32(prim.Count), 1, 0, 0, 0)
	fd.Cmd.NextSeq()
	return nil
}

// fbConfigFor derives the swapchain-shaped FbConfig this frame's draw
// calls are recorded against, matching the config the active render
// pass/framebuffer set was built from.
func (g *GSG) fbConfigFor() vgpu.FbConfig {
	return g.targets.Pass.Config
}

// orderedSetLayouts assembles the pipeline layout's descriptor set array
// in LightAttrib..DynamicUniforms order, filling any set this shader
// doesn't use with an empty placeholder layout so the array stays
// contiguous (Vulkan pipeline layouts index sets positionally).
func (g *GSG) orderedSetLayouts(info *shaderInfo, arena *descset.DynamicArena) []vk.DescriptorSetLayout {
	out := make([]vk.DescriptorSetLayout, DynamicUniforms+1)
	empty := g.emptySetLayout()
	for i := range out {
		out[i] = empty
	}
	for set, layout := range info.SetLayouts {
		if int(set) < len(out) {
			out[set] = layout
		}
	}
	out[DynamicUniforms] = arena.Layout
	return out
}

func (g *GSG) emptySetLayout() vk.DescriptorSetLayout {
	if g.emptyLayout != vk.NullDescriptorSetLayout {
		return g.emptyLayout
	}
	var layout vk.DescriptorSetLayout
	vk.CreateDescriptorSetLayout(g.Device.Device, &vk.DescriptorSetLayoutCreateInfo{
		SType: vk.StructureTypeDescriptorSetLayoutCreateInfo,
	}, nil, &layout)
	g.emptyLayout = layout
	return layout
}

// uniformBlockSize sums the worst-case size this shader's inputs need in
// the dynamic uniform block: 16 bytes per vec4-equivalent binding (a
// 4x4 matrix is 4 such entries). ShaderInputBinding implementations that
// supply no uniform bytes (TextureInputBinding) contribute nothing.
func uniformBlockSize(sh *render.Shader) int {
	size := 0
	for _, in := range sh.Inputs {
		switch in.(type) {
		case *render.MatrixBinding:
			size += 64
		case *render.NumericInputBinding:
			size += 16
		}
	}
	return size
}
