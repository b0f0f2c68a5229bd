// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package descset

import (
	"github.com/vkscene/vkscene/vgpu"

	vk "github.com/goki/vulkan"
)

// DynamicUBOSet=3 is the descriptor set index reserved for the per-draw
// dynamic uniform buffer, bound once per frame with a per-draw dynamic
// offset rather than reallocated per draw call (§4.7).
const DynamicUBOSet = 3

// DynamicArena is a ring-buffer-backed dynamic uniform buffer: every draw
// call's uniform bytes are appended at an aligned offset into one large
// host-visible VkBuffer, and the draw binds the arena's single descriptor
// set with that offset via vkCmdBindDescriptorSets' pDynamicOffsets. The
// arena is reset to offset 0 once per frame by the GSG after that frame's
// fence has been waited on, so it never wraps mid-frame.
type DynamicArena struct {
	GPU    *vgpu.GPU
	Device vk.Device

	Buffer *vgpu.BufferContext
	mapped *vgpu.MemoryMapping

	Align  vk.DeviceSize
	Size   vk.DeviceSize
	cursor vk.DeviceSize

	Layout vk.DescriptorSetLayout
	Pool   vk.DescriptorPool
	Set    vk.DescriptorSet
}

// Init allocates a host-visible, persistently-mapped uniform buffer of
// size bytes and a single descriptor set bound against it as a dynamic
// uniform buffer. The GSG passes its configured per-frame uniform arena
// size (Config.UniformArenaSize, 4 MiB by default, §6).
func (a *DynamicArena) Init(gp *vgpu.GPU, dev *vgpu.Device, alloc *vgpu.MemoryAllocator, size vk.DeviceSize) error {
	a.GPU = gp
	a.Device = dev.Device
	a.Size = size

	limits := gp.GPUProperties.Limits
	a.Align = vk.DeviceSize(limits.MinUniformBufferOffsetAlignment)
	if a.Align == 0 {
		a.Align = 256
	}

	bc, err := vgpu.NewBufferContext(gp, dev.Device, alloc, size,
		vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return err
	}
	a.Buffer = bc

	mapping, err := bc.Block.Map()
	if err != nil {
		return err
	}
	a.mapped = mapping

	if err := a.initDescriptorSet(); err != nil {
		return err
	}
	return nil
}

func (a *DynamicArena) initDescriptorSet() error {
	poolSizes := []vk.DescriptorPoolSize{{
		Type:            vk.DescriptorTypeUniformBufferDynamic,
		DescriptorCount: 1,
	}}
	ret := vk.CreateDescriptorPool(a.Device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       1,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}, nil, &a.Pool)
	if err := checkResult(ret); err != nil {
		return err
	}

	binding := vk.DescriptorSetLayoutBinding{
		Binding:         0,
		DescriptorType:  vk.DescriptorTypeUniformBufferDynamic,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
	}
	ret = vk.CreateDescriptorSetLayout(a.Device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: 1,
		PBindings:    []vk.DescriptorSetLayoutBinding{binding},
	}, nil, &a.Layout)
	if err := checkResult(ret); err != nil {
		return err
	}

	var set vk.DescriptorSet
	ret = vk.AllocateDescriptorSets(a.Device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     a.Pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{a.Layout},
	}, &set)
	if err := checkResult(ret); err != nil {
		return err
	}
	a.Set = set

	bufferInfo := vk.DescriptorBufferInfo{
		Buffer: a.Buffer.Buffer,
		Offset: 0,
		Range:  vk.DeviceSize(maxDynamicRange),
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          a.Set,
		DstBinding:      0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeUniformBufferDynamic,
		PBufferInfo:     []vk.DescriptorBufferInfo{bufferInfo},
	}
	vk.UpdateDescriptorSets(a.Device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	return nil
}

// maxDynamicRange bounds the VkDescriptorBufferInfo.Range advertised to
// the driver for the dynamic binding; individual uniform blocks are far
// smaller, and the GSG always writes well within this before the next
// bound range. 64 KiB covers every uniform block this module's shaders
// define with room to spare.
const maxDynamicRange = 64 * 1024

// Alloc reserves size bytes at the current cursor, rounds the cursor
// forward to the next aligned offset, and returns the offset to pass as
// this draw's dynamic offset along with a byte slice to write the
// uniform data into. ok is false if the arena is full; the caller should
// flush the frame early rather than overwrite in-flight data.
func (a *DynamicArena) Alloc(size int) (offset vk.DeviceSize, dst []byte, ok bool) {
	start := a.cursor
	if start+vk.DeviceSize(size) > a.Size {
		return 0, nil, false
	}
	buf := a.mapped.Bytes()
	dst = buf[start : start+vk.DeviceSize(size)]

	next := start + vk.DeviceSize(size)
	next = alignUp(next, a.Align)
	a.cursor = next
	return start, dst, true
}

// Reset rewinds the cursor to 0. Called once per frame after that
// frame's fence has signaled, so no in-flight draw can still reference
// bytes about to be overwritten.
func (a *DynamicArena) Reset() {
	a.cursor = 0
}

// Used reports how many bytes of this frame's region are currently
// claimed, useful for sizing the arena during tuning.
func (a *DynamicArena) Used() vk.DeviceSize { return a.cursor }

func alignUp(v, align vk.DeviceSize) vk.DeviceSize {
	if align == 0 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

// Destroy frees the descriptor pool/layout and the underlying buffer.
func (a *DynamicArena) Destroy(alloc *vgpu.MemoryAllocator) {
	if a.mapped != nil {
		a.mapped.Unmap()
		a.mapped = nil
	}
	if a.Buffer != nil {
		a.Buffer.Destroy(alloc)
		a.Buffer = nil
	}
	if a.Pool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(a.Device, a.Pool, nil)
	}
	if a.Layout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(a.Device, a.Layout, nil)
	}
}
