// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import vk "github.com/goki/vulkan"

// writeAccessMask is the set of VkAccessFlags bits that indicate a write
// to a resource, as opposed to a read. Used by CommandBuffer.AddBarrier
// to classify a requested access as a write or a read (§4.2).
const writeAccessMask = vk.AccessFlags(
	vk.AccessShaderWriteBit) |
	vk.AccessFlags(vk.AccessColorAttachmentWriteBit) |
	vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit) |
	vk.AccessFlags(vk.AccessTransferWriteBit) |
	vk.AccessFlags(vk.AccessHostWriteBit) |
	vk.AccessFlags(vk.AccessMemoryWriteBit)

// resourceState is the barrier-pooling bookkeeping shared by TextureContext
// and BufferContext. It tracks, as of the last recorded access, what stage
// and access last wrote the resource and what stages have since read it,
// plus the sequence numbers and pooled-barrier slot used to decide whether
// a new access can be folded into an already-pending barrier instead of
// emitting a fresh one. Ported from the original implementation's
// per-resource bookkeeping in VulkanTextureContext/VulkanBufferContext.
type resourceState struct {
	// writeStageMask is the pipeline stage mask of the last write.
	writeStageMask vk.PipelineStageFlags

	// writeAccessMask is the access mask of the last write.
	writeAccessMask vk.AccessFlags

	// readStageMask accumulates the stages that have read since the last
	// write.
	readStageMask vk.PipelineStageFlags

	// readSeq is the command buffer sequence number of the last access
	// recorded against this resource (read or write).
	readSeq uint64

	// writeSeq is the command buffer sequence number of the last write
	// recorded against this resource.
	writeSeq uint64

	// pooledBarrierExists is true if barrierIndex refers to a pending,
	// not-yet-flushed barrier for this resource in the owning command
	// buffer's current batch.
	pooledBarrierExists bool

	// barrierIndex is the index into the command buffer's pending image or
	// buffer barrier slice of this resource's pooled barrier, valid only
	// when pooledBarrierExists is true.
	barrierIndex int
}

// markRead records a pure read at seq without altering write bookkeeping;
// used when a pending write's stage mask already covers dst_stage_mask.
func (rs *resourceState) markRead(seq uint64) {
	rs.readSeq = seq
}
