// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	vk "github.com/goki/vulkan"
)

// QueuedDownload is a pending GPU-to-CPU readback, resolved once the frame
// whose fence guards it has signaled. Grounded on the original
// implementation's per-frame download queue (screenshot and texture
// ram-image requests share this mechanism).
type QueuedDownload struct {
	Buffer     *BufferContext
	Texture    *TextureContext
	OnComplete func(data []byte)
}

// FrameData holds everything associated with one frame-in-flight: its own
// command pool/buffer, synchronization primitives, ring-buffer cursors
// into the shared uniform and staging arenas, and the deferred-destroy
// queues for every Vulkan handle type that must outlive the command
// buffer that last referenced it until this frame's fence signals.
//
// Modeled on the original VulkanFrameData: rather than destroying a
// resource the instant its owner is done with it, destruction is queued
// here and flushed in WaitAndReset (or WaitFence), once this frame's prior submission is known
// to have completed.
type FrameData struct {
	Index int

	Fence          vk.Fence
	ImageAcquired  vk.Semaphore
	RenderFinished vk.Semaphore

	Pool vk.CommandPool
	Cmd  CommandBuffer

	// UniformOffset/StagingOffset are ring-buffer write cursors into the
	// shared per-GSG dynamic uniform and staging arenas (§6), reset to 0
	// each time this frame comes back around in WaitAndReset.
	UniformOffset vk.DeviceSize
	StagingOffset vk.DeviceSize

	pendingBuffers      []vk.Buffer
	pendingBufferViews  []vk.BufferView
	pendingImages       []vk.Image
	pendingImageViews   []vk.ImageView
	pendingFramebuffers []vk.Framebuffer
	pendingRenderPasses []vk.RenderPass
	pendingSamplers     []vk.Sampler
	pendingSemaphores   []vk.Semaphore
	pendingFree         []*MemoryBlock
	pendingDescSets     []vk.DescriptorSet
	descPool            vk.DescriptorPool

	DownloadQueue []QueuedDownload
}

// Init allocates this frame's command pool/buffer and sync primitives.
func (fd *FrameData) Init(dev *Device, index int) error {
	fd.Index = index
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(dev.Device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: dev.QueueIndex,
	}, nil, &pool)
	if err := checkResult("vkCreateCommandPool", ret); err != nil {
		return err
	}
	fd.Pool = pool

	var cmd vk.CommandBuffer
	ret = vk.AllocateCommandBuffers(dev.Device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, &cmd)
	if err := checkResult("vkAllocateCommandBuffers", ret); err != nil {
		return err
	}
	fd.Cmd = CommandBuffer{Cmd: cmd}

	fd.Fence = NewFence(dev.Device, true)
	fd.ImageAcquired = NewSemaphore(dev.Device)
	fd.RenderFinished = NewSemaphore(dev.Device)
	return nil
}

// Destroy destroys this frame's own Vulkan objects. Any still-pending
// deferred-destroy queue should be flushed via WaitAndReset or WaitFence beforehand.
func (fd *FrameData) Destroy(dev vk.Device) {
	if fd.Pool != vk.NullCommandPool {
		vk.DestroyCommandPool(dev, fd.Pool, nil)
		fd.Pool = vk.NullCommandPool
	}
	vk.DestroyFence(dev, fd.Fence, nil)
	vk.DestroySemaphore(dev, fd.ImageAcquired, nil)
	vk.DestroySemaphore(dev, fd.RenderFinished, nil)
}

// WaitAndReset blocks until this frame's prior submission (if any) has
// completed, then flushes every deferred-destroy queue accumulated during
// that submission and resets the command pool for reuse. Call at the
// start of begin_frame for this frame slot.
func (fd *FrameData) WaitAndReset(dev vk.Device, alloc *MemoryAllocator) {
	vk.WaitForFences(dev, 1, []vk.Fence{fd.Fence}, vk.True, vk.MaxUint64)
	fd.flushDeferred(dev, alloc)
	vk.ResetCommandPool(dev, fd.Pool, vk.CommandPoolResetFlags(0))
	fd.Cmd.seq = 0
	fd.Cmd.pendingImage = nil
	fd.Cmd.pendingBuffer = nil
	fd.UniformOffset = 0
	fd.StagingOffset = 0
}

// WaitFence blocks until this frame's prior submission (if any) has
// completed and flushes its deferred-destroy queue, without resetting its
// command pool or ring cursors - unlike WaitAndReset, this is safe to call
// against a frame slot that is not the one currently being recorded.
// MemoryAllocator.Allocate's last-resort reclaim path (§4.1) uses this to
// drain every frame in flight before retrying a failed allocation.
func (fd *FrameData) WaitFence(dev vk.Device, alloc *MemoryAllocator) {
	vk.WaitForFences(dev, 1, []vk.Fence{fd.Fence}, vk.True, vk.MaxUint64)
	fd.flushDeferred(dev, alloc)
}

func (fd *FrameData) flushDeferred(dev vk.Device, alloc *MemoryAllocator) {
	for _, b := range fd.pendingBuffers {
		vk.DestroyBuffer(dev, b, nil)
	}
	fd.pendingBuffers = fd.pendingBuffers[:0]
	for _, v := range fd.pendingBufferViews {
		vk.DestroyBufferView(dev, v, nil)
	}
	fd.pendingBufferViews = fd.pendingBufferViews[:0]
	for _, im := range fd.pendingImages {
		vk.DestroyImage(dev, im, nil)
	}
	fd.pendingImages = fd.pendingImages[:0]
	for _, v := range fd.pendingImageViews {
		vk.DestroyImageView(dev, v, nil)
	}
	fd.pendingImageViews = fd.pendingImageViews[:0]
	for _, fb := range fd.pendingFramebuffers {
		vk.DestroyFramebuffer(dev, fb, nil)
	}
	fd.pendingFramebuffers = fd.pendingFramebuffers[:0]
	for _, rp := range fd.pendingRenderPasses {
		vk.DestroyRenderPass(dev, rp, nil)
	}
	fd.pendingRenderPasses = fd.pendingRenderPasses[:0]
	for _, s := range fd.pendingSamplers {
		vk.DestroySampler(dev, s, nil)
	}
	fd.pendingSamplers = fd.pendingSamplers[:0]
	for _, s := range fd.pendingSemaphores {
		vk.DestroySemaphore(dev, s, nil)
	}
	fd.pendingSemaphores = fd.pendingSemaphores[:0]
	if len(fd.pendingDescSets) > 0 && fd.descPool != vk.NullDescriptorPool {
		vk.FreeDescriptorSets(dev, fd.descPool, uint32(len(fd.pendingDescSets)), fd.pendingDescSets)
		fd.pendingDescSets = fd.pendingDescSets[:0]
	}
	for _, blk := range fd.pendingFree {
		alloc.Free(blk)
	}
	fd.pendingFree = fd.pendingFree[:0]
}

// DeferDestroyBuffer queues buf for destruction once this frame's fence
// next signals, rather than destroying it immediately while it may still
// be referenced by an in-flight command buffer.
func (fd *FrameData) DeferDestroyBuffer(buf vk.Buffer) { fd.pendingBuffers = append(fd.pendingBuffers, buf) }

func (fd *FrameData) DeferDestroyImage(img vk.Image) { fd.pendingImages = append(fd.pendingImages, img) }

func (fd *FrameData) DeferDestroyImageView(v vk.ImageView) {
	fd.pendingImageViews = append(fd.pendingImageViews, v)
}

func (fd *FrameData) DeferDestroyFramebuffer(fb vk.Framebuffer) {
	fd.pendingFramebuffers = append(fd.pendingFramebuffers, fb)
}

func (fd *FrameData) DeferDestroySampler(s vk.Sampler) {
	fd.pendingSamplers = append(fd.pendingSamplers, s)
}

func (fd *FrameData) DeferFreeBlock(blk *MemoryBlock) { fd.pendingFree = append(fd.pendingFree, blk) }

func (fd *FrameData) DeferFreeDescriptorSet(pool vk.DescriptorPool, ds vk.DescriptorSet) {
	fd.descPool = pool
	fd.pendingDescSets = append(fd.pendingDescSets, ds)
}

// QueueDownload enqueues a readback to be resolved once this frame's
// fence signals (§4.9/S6 screenshot scenario).
func (fd *FrameData) QueueDownload(dl QueuedDownload) {
	fd.DownloadQueue = append(fd.DownloadQueue, dl)
}

// ResolveDownloads invokes OnComplete for every queued download, mapping
// its staging buffer, and clears the queue. Called after WaitAndReset has
// confirmed the guarding fence has signaled.
func (fd *FrameData) ResolveDownloads() error {
	for _, dl := range fd.DownloadQueue {
		if dl.Buffer == nil || dl.OnComplete == nil {
			continue
		}
		mapping, err := dl.Buffer.Block.Map()
		if err != nil {
			return err
		}
		data := append([]byte(nil), mapping.Bytes()...)
		mapping.Unmap()
		dl.OnComplete(data)
	}
	fd.DownloadQueue = fd.DownloadQueue[:0]
	return nil
}
