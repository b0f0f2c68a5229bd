// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gsg

import (
	"sort"

	"github.com/vkscene/vkscene/descset"
	"github.com/vkscene/vkscene/render"
	"github.com/vkscene/vkscene/shader"

	vk "github.com/goki/vulkan"
)

// shaderInfo caches everything reflected and derived from one
// render.Shader's SPIR-V: its merged descriptor layout, descriptor set
// layout handles, and push constant size. Built once per shader pointer
// and kept for the life of the GSG, matching the original
// VulkanShaderContext's per-Shader caching.
type shaderInfo struct {
	VertexRefl   *shader.Reflection
	FragmentRefl *shader.Reflection
	Descriptors  []shader.Descriptor

	// VertexCode / FragmentCode are sh.VertexCode/sh.FragmentCode after
	// running the SPIR-V transform pipeline (location stripping,
	// struct-resource hoisting, uniform make-block, descriptor-set
	// binding): the bytes actually handed to vkCreateShaderModule.
	VertexCode   []byte
	FragmentCode []byte

	SetLayouts       map[uint32]vk.DescriptorSetLayout
	PushConstantSize uint32

	Pool       vk.DescriptorPool
	DescCaches map[uint32]*descset.Cache
}

func (g *GSG) shaderInfoFor(sh *render.Shader) (*shaderInfo, error) {
	if info, ok := g.shaders[sh]; ok {
		return info, nil
	}
	info, err := g.buildShaderInfo(sh)
	if err != nil {
		return nil, err
	}
	g.shaders[sh] = info
	return info, nil
}

func (g *GSG) buildShaderInfo(sh *render.Shader) (*shaderInfo, error) {
	vmod, err := shader.Parse(sh.VertexCode)
	if err != nil {
		return nil, wrapError(ShaderCompileFailed, "parsing vertex SPIR-V", err)
	}
	if err := transformShaderModule(vmod); err != nil {
		return nil, wrapError(ShaderCompileFailed, "transforming vertex SPIR-V", err)
	}
	vrefl, err := shader.Reflect(vmod)
	if err != nil {
		return nil, wrapError(ShaderCompileFailed, "reflecting vertex SPIR-V", err)
	}

	fmod, err := shader.Parse(sh.FragmentCode)
	if err != nil {
		return nil, wrapError(ShaderCompileFailed, "parsing fragment SPIR-V", err)
	}
	if err := transformShaderModule(fmod); err != nil {
		return nil, wrapError(ShaderCompileFailed, "transforming fragment SPIR-V", err)
	}
	frefl, err := shader.Reflect(fmod)
	if err != nil {
		return nil, wrapError(ShaderCompileFailed, "reflecting fragment SPIR-V", err)
	}

	merged := shader.MergeDescriptors(vrefl.Descriptors, frefl.Descriptors)

	bySet := map[uint32][]shader.Descriptor{}
	for _, d := range merged {
		bySet[d.Set] = append(bySet[d.Set], d)
	}

	layouts := make(map[uint32]vk.DescriptorSetLayout, len(bySet))
	for set, descs := range bySet {
		layout, err := g.createSetLayout(descs)
		if err != nil {
			return nil, err
		}
		layouts[set] = layout
	}

	pushSize := vrefl.PushConstantSize
	if frefl.PushConstantSize > pushSize {
		pushSize = frefl.PushConstantSize
	}

	pool, err := g.createDescriptorPool(merged)
	if err != nil {
		return nil, err
	}

	caches := make(map[uint32]*descset.Cache, len(layouts))
	for set, layout := range layouts {
		c := &descset.Cache{}
		c.Init(g.Device.Device, pool, layout)
		caches[set] = c
	}

	return &shaderInfo{
		VertexRefl:       vrefl,
		FragmentRefl:     frefl,
		Descriptors:      merged,
		VertexCode:       vmod.Bytes(),
		FragmentCode:     fmod.Bytes(),
		SetLayouts:       layouts,
		PushConstantSize: pushSize,
		Pool:             pool,
		DescCaches:       caches,
	}, nil
}

// transformShaderModule runs the SPIR-V transform pipeline (§4.6) a
// shader compiled against a loose, not-yet-Vulkan-ready uniform
// convention needs before it can be reflected and loaded as a real
// VkShaderModule: strip the Location decorations GLSL-oriented
// compilers still attach to uniforms, hoist any opaque resource
// declared as a struct member back out to its own variable, fold
// whatever loose (non-block) uniforms remain into one synthesized UBO,
// and finally pin every resource variable - blocked or not - onto this
// module's fixed descriptor-set convention (§6: TextureAttrib=1,
// ShaderAttrib=2).
func transformShaderModule(m *shader.Module) error {
	if err := shader.StripUniformLocations()(m); err != nil {
		return err
	}
	if err := shader.HoistStructResources()(m); err != nil {
		return err
	}

	cls := shader.Classify(m)

	binding := uint32(0)
	for _, v := range cls.Blocks {
		if err := shader.BindVariable(v, ShaderAttrib, binding)(m); err != nil {
			return err
		}
		binding++
	}
	if len(cls.Loose) > 0 {
		if err := shader.MakeBlock(cls.Loose, shader.StorageUniform, ShaderAttrib, binding)(m); err != nil {
			return err
		}
	}
	for i, v := range cls.Opaque {
		if err := shader.BindVariable(v, TextureAttrib, uint32(i))(m); err != nil {
			return err
		}
	}
	return nil
}

// maxDescriptorSetsPerShader bounds how many distinct attribute-pointer
// combinations one shader's descriptor pool can serve simultaneously
// before the oldest cached sets would need evicting; generous enough for
// every scenario this module's example and tests exercise.
const maxDescriptorSetsPerShader = 256

func (g *GSG) createDescriptorPool(descs []shader.Descriptor) (vk.DescriptorPool, error) {
	counts := map[vk.DescriptorType]uint32{}
	for _, d := range descs {
		counts[vkDescriptorType(d.Type)] += maxDescriptorSetsPerShader
	}
	var sizes []vk.DescriptorPoolSize
	for t, n := range counts {
		sizes = append(sizes, vk.DescriptorPoolSize{Type: t, DescriptorCount: n})
	}
	var pool vk.DescriptorPool
	ret := vk.CreateDescriptorPool(g.Device.Device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       maxDescriptorSetsPerShader * uint32(len(sizes)+1),
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}, nil, &pool)
	if ret != vk.Success {
		return vk.NullDescriptorPool, newError(PipelineCreateFailed, "vkCreateDescriptorPool failed")
	}
	return pool, nil
}

func (g *GSG) createSetLayout(descs []shader.Descriptor) (vk.DescriptorSetLayout, error) {
	bindings := make([]vk.DescriptorSetLayoutBinding, len(descs))
	for i, d := range descs {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         d.Binding,
			DescriptorType:  vkDescriptorType(d.Type),
			DescriptorCount: 1,
			StageFlags:      vkStageFlags(d.StageMask),
		}
	}
	var layout vk.DescriptorSetLayout
	ret := vk.CreateDescriptorSetLayout(g.Device.Device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}, nil, &layout)
	if ret != vk.Success {
		return vk.NullDescriptorSetLayout, newError(PipelineCreateFailed, "vkCreateDescriptorSetLayout failed")
	}
	return layout, nil
}

func vkDescriptorType(t shader.DescriptorType) vk.DescriptorType {
	switch t {
	case shader.DescriptorStorageBuffer:
		return vk.DescriptorTypeStorageBuffer
	case shader.DescriptorCombinedImageSampler:
		return vk.DescriptorTypeCombinedImageSampler
	case shader.DescriptorDynamicUniformBuffer:
		return vk.DescriptorTypeUniformBufferDynamic
	default:
		return vk.DescriptorTypeUniformBuffer
	}
}

func vkStageFlags(s shader.StageFlags) vk.ShaderStageFlags {
	var flags vk.ShaderStageFlagBits
	if s&shader.StageVertex != 0 {
		flags |= vk.ShaderStageVertexBit
	}
	if s&shader.StageFragment != 0 {
		flags |= vk.ShaderStageFragmentBit
	}
	if s&shader.StageCompute != 0 {
		flags |= vk.ShaderStageComputeBit
	}
	return vk.ShaderStageFlags(flags)
}

// vertexLocationsByName zips vf's columns, in declaration order, with the
// vertex shader's reflected input locations sorted ascending. This
// assumes a GeomVertexFormat's column order matches its vertex shader's
// declared attribute order, a convention this module's shaders and
// example geometry both follow rather than reflecting per-variable names
// out of SPIR-V (shader.Reflect does not retain OpName for Input
// variables, only their Location decorations).
func vertexLocationsByName(vf *render.GeomVertexFormat, refl *shader.Reflection) map[string]uint32 {
	locs := append([]uint32(nil), refl.InputLocations...)
	sort.Slice(locs, func(i, j int) bool { return locs[i] < locs[j] })
	out := make(map[string]uint32, len(vf.Columns))
	for i, col := range vf.Columns {
		if i >= len(locs) {
			break
		}
		out[col.Name] = locs[i]
	}
	return out
}
