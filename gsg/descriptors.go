// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gsg

import (
	"sort"

	"github.com/vkscene/vkscene/render"
	"github.com/vkscene/vkscene/shader"

	vk "github.com/goki/vulkan"
)

// resolveTextureSet returns the VkDescriptorSet this draw should bind at
// TextureAttrib (set=1), fetching it from info's cache keyed by st's
// pointer identity and populating it from st.Textures on a cache miss or
// once-per-frame staleness (§4.7, §8 invariant 4 / S4).
func (g *GSG) resolveTextureSet(info *shaderInfo, st *render.State) (vk.DescriptorSet, error) {
	cache, ok := info.DescCaches[TextureAttrib]
	if !ok {
		return g.emptySet(), nil
	}
	set, needsUpdate, err := cache.Get(st, g.frameNumber)
	if err != nil {
		return vk.NullDescriptorSet, wrapError(AllocationFailed, "allocating texture descriptor set", err)
	}
	if !needsUpdate {
		return set, nil
	}
	descs := descriptorsForSet(info.Descriptors, TextureAttrib)
	if err := g.populateTextureSet(set, descs, st); err != nil {
		return vk.NullDescriptorSet, err
	}
	return set, nil
}

// descriptorsForSet returns descs' entries belonging to set, sorted
// ascending by binding so they line up positionally with a shader's
// texture-stage-ordered sampler declarations.
func descriptorsForSet(descs []shader.Descriptor, set uint32) []shader.Descriptor {
	var out []shader.Descriptor
	for _, d := range descs {
		if d.Set == set {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Binding < out[j].Binding })
	return out
}

// populateTextureSet resolves each of descs against st.Textures (by
// declaration order — the convention this module's shaders and geometry
// both follow, per vertexLocationsByName's equivalent note) and issues
// one vkUpdateDescriptorSets call for the whole set. Each referenced
// Texture is prepared (uploaded) on demand.
func (g *GSG) populateTextureSet(set vk.DescriptorSet, descs []shader.Descriptor, st *render.State) error {
	if len(descs) == 0 {
		return nil
	}
	writes := make([]vk.WriteDescriptorSet, 0, len(descs))
	imageInfos := make([]vk.DescriptorImageInfo, len(descs))
	for i, d := range descs {
		stage := textureStageFor(st, i)
		if stage == nil || stage.Texture == nil {
			continue
		}
		tc, err := g.prepareTexture(stage.Texture)
		if err != nil {
			return err
		}
		view := tc.View
		if stage.AlphaOnly {
			v, err := tc.SwizzleAlphaOnly()
			if err != nil {
				return wrapError(AllocationFailed, "building alpha-only texture view", err)
			}
			view = v
		}

		fd, _, _, _ := g.current()
		if fd.Cmd.Cmd != vk.NullCommandBuffer {
			fd.Cmd.AddBarrier(tc, vk.ImageLayoutShaderReadOnlyOptimal,
				vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit), vk.AccessFlags(vk.AccessShaderReadBit))
		}

		imageInfos[i] = vk.DescriptorImageInfo{
			Sampler:     tc.Sampler,
			ImageView:   view,
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      d.Binding,
			DescriptorCount: 1,
			DescriptorType:  vkDescriptorType(d.Type),
			PImageInfo:      imageInfos[i : i+1],
		})
	}
	if len(writes) == 0 {
		return nil
	}
	vk.UpdateDescriptorSets(g.Device.Device, uint32(len(writes)), writes, 0, nil)
	return nil
}

// textureStageFor returns st's i'th texture stage in Unit order, or nil
// if st does not bind that many stages.
func textureStageFor(st *render.State, i int) *render.TextureStage {
	for _, ts := range st.Textures {
		if ts.Unit == i {
			return ts
		}
	}
	if i < len(st.Textures) {
		return st.Textures[i]
	}
	return nil
}

// emptySet lazily allocates a single descriptor set against the GSG's
// shared empty (zero-binding) layout, used to fill any descriptor-set
// slot a particular shader leaves unused so the pipeline layout's set
// array stays contiguous and every bind call has a real handle.
func (g *GSG) emptySet() vk.DescriptorSet {
	if g.emptyDescSet != vk.NullDescriptorSet {
		return g.emptyDescSet
	}
	layout := g.emptySetLayout()
	if g.emptyPool == vk.NullDescriptorPool {
		vk.CreateDescriptorPool(g.Device.Device, &vk.DescriptorPoolCreateInfo{
			SType:   vk.StructureTypeDescriptorPoolCreateInfo,
			MaxSets: 1,
		}, nil, &g.emptyPool)
	}
	var set vk.DescriptorSet
	vk.AllocateDescriptorSets(g.Device.Device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     g.emptyPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}, &set)
	g.emptyDescSet = set
	return set
}
