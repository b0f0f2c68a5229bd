// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import vk "github.com/goki/vulkan"

// CmdPool manages a VkCommandPool and the one-time submission helper used
// for memory transfers and other immediate, non-frame commands.
type CmdPool struct {
	Pool vk.CommandPool
}

// ConfigTransient configures the pool for short-lived, individually-reset
// command buffers (memory transfers, one-time setup commands).
func (cp *CmdPool) ConfigTransient(dev *Device) error {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(dev.Device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit | vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: dev.QueueIndex,
	}, nil, &pool)
	if err := checkResult("vkCreateCommandPool", ret); err != nil {
		return err
	}
	cp.Pool = pool
	return nil
}

// NewBuffer allocates one primary command buffer from this pool.
func (cp *CmdPool) NewBuffer(dev *Device) vk.CommandBuffer {
	var cmd vk.CommandBuffer
	vk.AllocateCommandBuffers(dev.Device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        cp.Pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, &cmd)
	return cmd
}

// EndSubmitWaitFree ends, submits, waits for completion, and frees cmd —
// the teacher's one-time-transfer idiom, used for memory copies recorded
// outside the per-frame command buffer.
func (cp *CmdPool) EndSubmitWaitFree(dev *Device, cmd vk.CommandBuffer) error {
	if err := CmdEnd(cmd); err != nil {
		return err
	}
	ret := vk.QueueSubmit(dev.Queue, 1, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cmd},
	}}, nil)
	if err := checkResult("vkQueueSubmit", ret); err != nil {
		return err
	}
	if err := checkResult("vkQueueWaitIdle", vk.QueueWaitIdle(dev.Queue)); err != nil {
		return err
	}
	vk.FreeCommandBuffers(dev.Device, cp.Pool, 1, []vk.CommandBuffer{cmd})
	return nil
}

// Destroy destroys the command pool.
func (cp *CmdPool) Destroy(dev vk.Device) {
	if cp.Pool != vk.NullCommandPool {
		vk.DestroyCommandPool(dev, cp.Pool, nil)
		cp.Pool = vk.NullCommandPool
	}
}

// NewSemaphore creates a new binary semaphore.
func NewSemaphore(dev vk.Device) vk.Semaphore {
	var sem vk.Semaphore
	vk.CreateSemaphore(dev, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &sem)
	return sem
}

// NewFence creates a new fence, signaled if signaled is true.
func NewFence(dev vk.Device, signaled bool) vk.Fence {
	flags := vk.FenceCreateFlags(0)
	if signaled {
		flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	vk.CreateFence(dev, &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: flags,
	}, nil, &fence)
	return fence
}
