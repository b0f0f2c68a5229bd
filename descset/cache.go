// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package descset caches VkDescriptorSets per RenderState/Shader attribute
pointer, updating each set at most once per frame, and manages the
per-frame dynamic-uniform ring arena bound at set=3 (§4.7).
*/
package descset

import (
	"github.com/vkscene/vkscene/vgpu"

	vk "github.com/goki/vulkan"
)

// Key identifies one cached descriptor set by the pointer identity of the
// attribute(s) that determine its contents — a *render.State, a
// *render.Texture, or a *render.Shader, boxed as any since the cache does
// not need to know which. Grounded on the original implementation's
// AttribDescriptorSetMap, keyed by RenderAttrib pointer.
type Key any

// entry is one cached descriptor set plus the frame it was last updated
// on, so Get reports needsUpdate (and the caller runs
// vkUpdateDescriptorSets) only once per frame even if the same attribute
// is bound by many draw calls.
type entry struct {
	set            vk.DescriptorSet
	lastUpdateFrame uint64
}

// Cache maps attribute pointers to descriptor sets allocated from a
// shared pool, re-updating each at most once per frame.
type Cache struct {
	Device vk.Device
	Pool   vk.DescriptorPool
	Layout vk.DescriptorSetLayout

	entries map[Key]*entry
}

// Init prepares the cache to allocate sets from pool against layout.
func (c *Cache) Init(dev vk.Device, pool vk.DescriptorPool, layout vk.DescriptorSetLayout) {
	c.Device = dev
	c.Pool = pool
	c.Layout = layout
	c.entries = make(map[Key]*entry)
}

// Get returns the cached VkDescriptorSet for key, allocating a fresh one
// on first use. needsUpdate reports whether the caller still needs to
// write the set's descriptors (vkUpdateDescriptorSets) this frame.
func (c *Cache) Get(key Key, frame uint64) (set vk.DescriptorSet, needsUpdate bool, err error) {
	e, ok := c.entries[key]
	if !ok {
		var handle vk.DescriptorSet
		ret := vk.AllocateDescriptorSets(c.Device, &vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     c.Pool,
			DescriptorSetCount: 1,
			PSetLayouts:        []vk.DescriptorSetLayout{c.Layout},
		}, &handle)
		if err := checkResult(ret); err != nil {
			return vk.NullDescriptorSet, false, err
		}
		e = &entry{set: handle, lastUpdateFrame: ^uint64(0)}
		c.entries[key] = e
	}
	needsUpdate = e.lastUpdateFrame != frame
	if needsUpdate {
		e.lastUpdateFrame = frame
	}
	return e.set, needsUpdate, nil
}

// Evict removes key's cached descriptor set, freeing it back to the pool
// immediately. Callers that must not free a set still referenced by an
// in-flight frame should instead call EvictDeferred, which defers the
// free via vgpu.FrameData.DeferFreeDescriptorSet.
func (c *Cache) Evict(key Key) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	vk.FreeDescriptorSets(c.Device, c.Pool, 1, []vk.DescriptorSet{e.set})
	delete(c.entries, key)
}

// EvictDeferred removes key from the cache bookkeeping and queues its
// descriptor set for deferred freeing on fd, without touching the pool
// synchronously.
func (c *Cache) EvictDeferred(key Key, fd *vgpu.FrameData) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	fd.DeferFreeDescriptorSet(c.Pool, e.set)
	delete(c.entries, key)
}

func checkResult(ret vk.Result) error {
	if ret == vk.Success {
		return nil
	}
	return vgpu.NewErrorKind(vgpu.PipelineCreateFailed, "vkAllocateDescriptorSets failed")
}
