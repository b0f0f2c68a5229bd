// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"github.com/vkscene/vkscene/render"
	"github.com/vkscene/vkscene/vgpu"

	vk "github.com/goki/vulkan"
)

// Entry is one cached pipeline plus the layout it was built against.
type Entry struct {
	Pipeline vk.Pipeline
	Layout   vk.PipelineLayout
}

// BuildParams carries everything Cache.Get needs to construct a fresh
// Entry on a cache miss, beyond the Key itself.
type BuildParams struct {
	VertexCode []byte
	FragmentCode []byte

	// LocationsByName maps each vertex shader input name to the location
	// the reflected SPIR-V assigned it (shader.Reflect's InputLocations,
	// resolved to names by the caller).
	LocationsByName map[string]uint32

	SetLayouts       []vk.DescriptorSetLayout
	PushConstantSize uint32
}

// Cache builds and caches VkPipelines keyed by Key, creating the
// VkRenderPass each pipeline is compiled against on demand via passes.
type Cache struct {
	Device vk.Device
	Passes *vgpu.RenderPassCache

	entries map[Key]*Entry
}

func (c *Cache) Init(dev vk.Device, passes *vgpu.RenderPassCache) {
	c.Device = dev
	c.Passes = passes
	c.entries = make(map[Key]*Entry)
}

// Get returns the cached pipeline for key, building it from params on a
// cache miss.
func (c *Cache) Get(key Key, params BuildParams) (*Entry, error) {
	if e, ok := c.entries[key]; ok {
		return e, nil
	}
	e, err := c.build(key, params)
	if err != nil {
		return nil, err
	}
	c.entries[key] = e
	return e, nil
}

func (c *Cache) build(key Key, params BuildParams) (*Entry, error) {
	pass, err := c.Passes.Get(key.FbConfig)
	if err != nil {
		return nil, err
	}

	vertMod, err := createShaderModule(c.Device, params.VertexCode)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyShaderModule(c.Device, vertMod, nil)
	fragMod, err := createShaderModule(c.Device, params.FragmentCode)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyShaderModule(c.Device, fragMod, nil)

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vertMod,
			PName:  "main\x00",
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: fragMod,
			PName:  "main\x00",
		},
	}

	vertexInput, _, _, err := vertexInputState(key.VertexFormat, params.LocationsByName)
	if err != nil {
		return nil, err
	}

	assembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: key.Topology.VkTopology(),
	}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	raster := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: renderModePolygon(key.RenderMode),
		CullMode:    vk.CullModeFlags(cullModeBits(key.CullFace)),
		FrontFace:   vk.FrontFaceCounterClockwise,
		LineWidth:   1,
	}

	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: sampleCountFor(key.Multisamples),
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  boolVk(key.DepthTest != render.DepthTestOff),
		DepthWriteEnable: boolVk(key.DepthWrite == render.DepthWriteOn),
		DepthCompareOp:   depthCompareOp(key.DepthTest),
	}

	blendAttachment := colorBlendAttachmentForKey(key)
	blend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   boolVk(key.LogicOpEnable),
		LogicOp:         vkLogicOps[key.LogicOp],
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{blendAttachment},
	}

	dynStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
		vk.DynamicStateLineWidth,
	}
	dynamic := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynStates)),
		PDynamicStates:    dynStates,
	}

	var layout vk.PipelineLayout
	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(params.SetLayouts)),
		PSetLayouts:    params.SetLayouts,
	}
	var pushRanges []vk.PushConstantRange
	if params.PushConstantSize > 0 {
		pushRanges = []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
			Offset:     0,
			Size:       params.PushConstantSize,
		}}
		layoutInfo.PushConstantRangeCount = uint32(len(pushRanges))
		layoutInfo.PPushConstantRanges = pushRanges
	}
	if err := checkResult(vk.CreatePipelineLayout(c.Device, &layoutInfo, nil, &layout)); err != nil {
		return nil, err
	}

	createInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &assembly,
		PViewportState:      &viewportState,
		PRasterizationState: &raster,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &blend,
		PDynamicState:       &dynamic,
		Layout:              layout,
		RenderPass:          pass.Pass,
		Subpass:             0,
	}

	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateGraphicsPipelines(c.Device, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{createInfo}, nil, pipelines)
	if err := checkResult(ret); err != nil {
		vk.DestroyPipelineLayout(c.Device, layout, nil)
		return nil, err
	}

	return &Entry{Pipeline: pipelines[0], Layout: layout}, nil
}

// Destroy destroys every cached pipeline and layout.
func (c *Cache) Destroy() {
	for _, e := range c.entries {
		vk.DestroyPipeline(c.Device, e.Pipeline, nil)
		vk.DestroyPipelineLayout(c.Device, e.Layout, nil)
	}
	c.entries = nil
}

func createShaderModule(dev vk.Device, code []byte) (vk.ShaderModule, error) {
	var mod vk.ShaderModule
	ret := vk.CreateShaderModule(dev, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceUint32(code),
	}, nil, &mod)
	if err := checkResult(ret); err != nil {
		return vk.NullShaderModule, err
	}
	return mod, nil
}

func sliceUint32(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
	}
	return out
}

func boolVk(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

func renderModePolygon(m render.RenderModeAttrib) vk.PolygonMode {
	switch m {
	case render.RenderModeWireframe:
		return vk.PolygonModeLine
	case render.RenderModePoint:
		return vk.PolygonModePoint
	default:
		return vk.PolygonModeFill
	}
}

func cullModeBits(m render.CullFaceMode) int {
	switch m {
	case render.CullClockwise:
		return int(vk.CullModeFrontBit)
	case render.CullCounterClockwise:
		return int(vk.CullModeBackBit)
	default:
		return int(vk.CullModeNone)
	}
}

func sampleCountFor(n int32) vk.SampleCountFlagBits {
	switch n {
	case 2:
		return vk.SampleCount2Bit
	case 4:
		return vk.SampleCount4Bit
	case 8:
		return vk.SampleCount8Bit
	default:
		return vk.SampleCount1Bit
	}
}

func depthCompareOp(m render.DepthTestMode) vk.CompareOp {
	switch m {
	case render.DepthTestLessEqual:
		return vk.CompareOpLessOrEqual
	case render.DepthTestAlways, render.DepthTestOff:
		return vk.CompareOpAlways
	default:
		return vk.CompareOpLess
	}
}

// colorBlendAttachmentForKey reconstructs the subset of render.State that
// colorBlendAttachment needs from a Key, since Key deliberately drops the
// rest of State's fields.
func colorBlendAttachmentForKey(key Key) vk.PipelineColorBlendAttachmentState {
	st := &render.State{
		ColorWriteMask: key.ColorWriteMask,
		ColorBlend:     key.ColorBlend,
		Transparency:   key.Transparency,
	}
	return colorBlendAttachment(st)
}

func checkResult(ret vk.Result) error {
	if ret == vk.Success {
		return nil
	}
	return vgpu.NewErrorKind(vgpu.PipelineCreateFailed, "vkCreateGraphicsPipelines failed")
}
