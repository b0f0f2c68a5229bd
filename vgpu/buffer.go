// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	vk "github.com/goki/vulkan"
)

// BufferContext owns a VkBuffer and its backing MemoryBlock, plus the
// read/write bookkeeping CommandBuffer.AddBarrier needs to correctly order
// accesses across command buffers. Grounded on the original
// VulkanBufferContext (a thin VkBuffer + VulkanMemoryBlock pair) with the
// barrier state folded in directly rather than in a separate base class.
type BufferContext struct {
	resourceState

	GPU    *GPU
	Device vk.Device

	Buffer vk.Buffer
	Block  *MemoryBlock
	Size   vk.DeviceSize
	Usage  vk.BufferUsageFlagBits
}

// NewBufferContext creates a VkBuffer of size and usage and binds it to a
// fresh MemoryBlock satisfying properties.
func NewBufferContext(gp *GPU, dev vk.Device, alloc *MemoryAllocator, size vk.DeviceSize, usage vk.BufferUsageFlagBits, properties vk.MemoryPropertyFlagBits) (*BufferContext, error) {
	var buffer vk.Buffer
	ret := vk.CreateBuffer(dev, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Usage:       vk.BufferUsageFlags(usage),
		Size:        size,
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buffer)
	if err := checkResult("vkCreateBuffer", ret); err != nil {
		return nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(dev, buffer, &reqs)
	reqs.Deref()

	block, err := alloc.Allocate(reqs, properties, true)
	if err != nil {
		vk.DestroyBuffer(dev, buffer, nil)
		return nil, err
	}
	if err := block.BindBuffer(buffer); err != nil {
		alloc.Free(block)
		vk.DestroyBuffer(dev, buffer, nil)
		return nil, err
	}

	return &BufferContext{
		GPU:    gp,
		Device: dev,
		Buffer: buffer,
		Block:  block,
		Size:   size,
		Usage:  usage,
	}, nil
}

// Destroy destroys the VkBuffer and releases its memory block. alloc must
// be the same MemoryAllocator used in NewBufferContext.
func (bc *BufferContext) Destroy(alloc *MemoryAllocator) {
	if bc.Buffer != vk.NullBuffer {
		vk.DestroyBuffer(bc.Device, bc.Buffer, nil)
		bc.Buffer = vk.NullBuffer
	}
	if bc.Block != nil {
		alloc.Free(bc.Block)
		bc.Block = nil
	}
}
