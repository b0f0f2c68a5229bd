// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	vk "github.com/goki/vulkan"
)

// CommandBuffer wraps a VkCommandBuffer plus the sequence counter and
// pending-barrier batch that implement deferred pipeline barrier pooling.
//
// Rather than emitting a vkCmdPipelineBarrier call for every resource
// transition as it is requested, AddBarrier defers transitions that are
// safe to coalesce into a batch flushed once per command-buffer boundary
// (FlushBarriers), and only emits immediately when pooling would be
// unsound (the resource was already written or read-after-written earlier
// in the same sequence). The decision logic is ported, call for call,
// from the original command buffer's add_barrier.
type CommandBuffer struct {
	Cmd vk.CommandBuffer

	// seq is advanced by NextSeq once per logical synchronization point
	// (typically once per draw/dispatch group). Resource accesses within
	// the same seq can pool; crossing a seq boundary cannot.
	seq uint64

	pendingSrcStageMask vk.PipelineStageFlags
	pendingDstStageMask vk.PipelineStageFlags
	pendingImage        []vk.ImageMemoryBarrier
	pendingBuffer       []vk.BufferMemoryBarrier
}

// NextSeq advances the command buffer's synchronization sequence number.
// Call once per draw call, dispatch, or other point after which a new
// access to a previously-touched resource must not be pooled with an
// earlier one recorded in the same sequence.
func (cb *CommandBuffer) NextSeq() {
	cb.seq++
}

// Seq returns the command buffer's current sequence number.
func (cb *CommandBuffer) Seq() uint64 { return cb.seq }

// AddBarrier requests that tc be made available in layout, accessible with
// dstAccessMask at dstStageMask, before further commands in this buffer
// execute. It records (pools) or immediately emits a VkImageMemoryBarrier
// as needed, and updates tc's bookkeeping so later calls in the same
// sequence see the correct last-write/last-read state.
func (cb *CommandBuffer) AddBarrier(tc *TextureContext, layout vk.ImageLayout, dstStageMask vk.PipelineStageFlags, dstAccessMask vk.AccessFlags) {
	writeMask := dstAccessMask & writeAccessMask
	isWrite := tc.Layout != layout || writeMask != 0

	srcStageMask := tc.writeStageMask
	srcAccessMask := tc.writeAccessMask

	if isWrite {
		srcStageMask |= tc.readStageMask
		if srcStageMask == 0 {
			srcStageMask = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		}
	} else {
		if srcStageMask == 0 {
			tc.markRead(cb.seq)
			tc.readStageMask |= dstStageMask
			return
		}
		dstStageMask &^= tc.readStageMask
		if dstStageMask == 0 {
			tc.markRead(cb.seq)
			return
		}
	}

	poolPossible := tc.writeSeq < cb.seq && (tc.readSeq < cb.seq || !isWrite)

	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       srcAccessMask,
		DstAccessMask:       dstAccessMask,
		OldLayout:           tc.Layout,
		NewLayout:           layout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               tc.Image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     tc.Aspect,
			BaseMipLevel:   0,
			LevelCount:     tc.MipLevels,
			BaseArrayLayer: 0,
			LayerCount:     tc.Layers,
		},
	}

	if poolPossible {
		if tc.readSeq == cb.seq && tc.pooledBarrierExists && tc.barrierIndex < len(cb.pendingImage) {
			existing := &cb.pendingImage[tc.barrierIndex]
			existing.SrcAccessMask |= srcAccessMask
			existing.DstAccessMask |= dstAccessMask
			existing.NewLayout = layout
		} else {
			cb.pendingImage = append(cb.pendingImage, barrier)
			tc.barrierIndex = len(cb.pendingImage) - 1
			tc.pooledBarrierExists = true
		}
		cb.pendingSrcStageMask |= srcStageMask
		cb.pendingDstStageMask |= dstStageMask
	} else {
		cb.emitImmediate(srcStageMask, dstStageMask, []vk.ImageMemoryBarrier{barrier}, nil)
		tc.pooledBarrierExists = false
	}

	tc.Layout = layout
	tc.readSeq = cb.seq
	if writeMask != 0 {
		tc.writeStageMask = dstStageMask
		tc.writeAccessMask = writeMask
		tc.readStageMask = 0
		tc.writeSeq = cb.seq
	} else {
		tc.readStageMask |= dstStageMask &^ vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
		if dstStageMask&(vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)|vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)) != 0 {
			tc.writeStageMask = 0
			tc.writeAccessMask = 0
		}
	}
}

// AddBufferBarrier is the BufferContext counterpart to AddBarrier: no
// image layout is involved, so a write is detected purely from
// dstAccessMask. Otherwise the pooling decision is identical.
func (cb *CommandBuffer) AddBufferBarrier(bc *BufferContext, dstStageMask vk.PipelineStageFlags, dstAccessMask vk.AccessFlags) {
	writeMask := dstAccessMask & writeAccessMask
	isWrite := writeMask != 0

	srcStageMask := bc.writeStageMask
	srcAccessMask := bc.writeAccessMask

	if isWrite {
		srcStageMask |= bc.readStageMask
		if srcStageMask == 0 {
			srcStageMask = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		}
	} else {
		if srcStageMask == 0 {
			bc.markRead(cb.seq)
			bc.readStageMask |= dstStageMask
			return
		}
		dstStageMask &^= bc.readStageMask
		if dstStageMask == 0 {
			bc.markRead(cb.seq)
			return
		}
	}

	poolPossible := bc.writeSeq < cb.seq && (bc.readSeq < cb.seq || !isWrite)

	barrier := vk.BufferMemoryBarrier{
		SType:               vk.StructureTypeBufferMemoryBarrier,
		SrcAccessMask:       srcAccessMask,
		DstAccessMask:       dstAccessMask,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Buffer:              bc.Buffer,
		Offset:              0,
		Size:                vk.DeviceSize(vk.WholeSize),
	}

	if poolPossible {
		if bc.readSeq == cb.seq && bc.pooledBarrierExists && bc.barrierIndex < len(cb.pendingBuffer) {
			existing := &cb.pendingBuffer[bc.barrierIndex]
			existing.SrcAccessMask |= srcAccessMask
			existing.DstAccessMask |= dstAccessMask
		} else {
			cb.pendingBuffer = append(cb.pendingBuffer, barrier)
			bc.barrierIndex = len(cb.pendingBuffer) - 1
			bc.pooledBarrierExists = true
		}
		cb.pendingSrcStageMask |= srcStageMask
		cb.pendingDstStageMask |= dstStageMask
	} else {
		cb.emitImmediate(srcStageMask, dstStageMask, nil, []vk.BufferMemoryBarrier{barrier})
		bc.pooledBarrierExists = false
	}

	bc.readSeq = cb.seq
	if writeMask != 0 {
		bc.writeStageMask = dstStageMask
		bc.writeAccessMask = writeMask
		bc.readStageMask = 0
		bc.writeSeq = cb.seq
	} else {
		bc.readStageMask |= dstStageMask &^ vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
		if dstStageMask&(vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)|vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)) != 0 {
			bc.writeStageMask = 0
			bc.writeAccessMask = 0
		}
	}
}

// AddInitialBarrier transitions a freshly-created image out of
// VK_IMAGE_LAYOUT_UNDEFINED the first time it is used, always emitted
// immediately since there is nothing to pool against yet.
func (cb *CommandBuffer) AddInitialBarrier(tc *TextureContext, layout vk.ImageLayout, dstStageMask vk.PipelineStageFlags, dstAccessMask vk.AccessFlags) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       0,
		DstAccessMask:       dstAccessMask,
		OldLayout:           vk.ImageLayoutUndefined,
		NewLayout:           layout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               tc.Image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     tc.Aspect,
			BaseMipLevel:   0,
			LevelCount:     tc.MipLevels,
			BaseArrayLayer: 0,
			LayerCount:     tc.Layers,
		},
	}
	cb.emitImmediate(vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), dstStageMask, []vk.ImageMemoryBarrier{barrier}, nil)
	tc.Layout = layout
	tc.readSeq = cb.seq
	tc.writeStageMask = dstStageMask
	tc.writeAccessMask = dstAccessMask & writeAccessMask
	tc.readStageMask = 0
	tc.writeSeq = cb.seq
}

// FlushBarriers emits a single vkCmdPipelineBarrier covering every barrier
// pooled since the last flush, if any, and clears the pending batch. Call
// at command buffer recording boundaries (e.g. before beginning a render
// pass, and before ending the command buffer).
func (cb *CommandBuffer) FlushBarriers() {
	if len(cb.pendingImage) == 0 && len(cb.pendingBuffer) == 0 {
		return
	}
	cb.emitImmediate(cb.pendingSrcStageMask, cb.pendingDstStageMask, cb.pendingImage, cb.pendingBuffer)
	cb.pendingImage = nil
	cb.pendingBuffer = nil
	cb.pendingSrcStageMask = 0
	cb.pendingDstStageMask = 0
}

func (cb *CommandBuffer) emitImmediate(srcStageMask, dstStageMask vk.PipelineStageFlags, imageBarriers []vk.ImageMemoryBarrier, bufferBarriers []vk.BufferMemoryBarrier) {
	if srcStageMask == 0 {
		srcStageMask = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	}
	if dstStageMask == 0 {
		dstStageMask = vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	}
	vk.CmdPipelineBarrier(cb.Cmd, srcStageMask, dstStageMask, 0,
		0, nil,
		uint32(len(bufferBarriers)), bufferBarriers,
		uint32(len(imageBarriers)), imageBarriers)
}

// CmdBeginOneTime begins cmd for a single immediate submission.
func CmdBeginOneTime(cmd vk.CommandBuffer) error {
	ret := vk.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	return checkResult("vkBeginCommandBuffer", ret)
}

// CmdEnd ends recording on cmd.
func CmdEnd(cmd vk.CommandBuffer) error {
	return checkResult("vkEndCommandBuffer", vk.EndCommandBuffer(cmd))
}
