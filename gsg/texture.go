// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gsg

import (
	"github.com/vkscene/vkscene/render"
	"github.com/vkscene/vkscene/vgpu"

	vk "github.com/goki/vulkan"
)

// prepareTexture returns tx's resident vgpu.TextureContext, creating and
// uploading it on first use and re-uploading it whenever tx.IsDirty (§4.9:
// "GSG ... schedules ... texture uploads"). Textures are looked up by the
// pointer identity of the render.Texture, matching how descset.Cache keys
// descriptor sets off the same pointer.
func (g *GSG) prepareTexture(tx *render.Texture) (*vgpu.TextureContext, error) {
	if g.textures == nil {
		g.textures = make(map[*render.Texture]*vgpu.TextureContext)
	}
	tc, ok := g.textures[tx]
	if ok && !tx.IsDirty() {
		return tc, nil
	}

	w, h := 1, 1
	if tx.Image != nil {
		b := tx.Image.Bounds()
		w, h = b.Dx(), b.Dy()
	}
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	mipLevels := uint32(1)

	if !ok {
		var err error
		tc, err = vgpu.NewTextureContext(g.GPU, g.Device.Device, g.Alloc,
			vk.FormatR8g8b8a8Unorm, w, h, mipLevels, 1,
			vk.ImageUsageFlagBits(vk.ImageUsageSampledBit|vk.ImageUsageTransferDstBit))
		if err != nil {
			return nil, wrapError(AllocationFailed, "preparing texture image", err)
		}
		sampler := tx.Sampler
		if sampler == (render.SamplerState{}) {
			sampler = render.DefaultSampler()
		}
		if err := tc.ConfigSampler(vgpu.SamplerModes(sampler.WrapU), vgpu.SamplerModes(sampler.WrapV), vgpu.SamplerModes(sampler.WrapW), vgpu.BorderTrans); err != nil {
			tc.Destroy(g.Alloc)
			return nil, wrapError(AllocationFailed, "configuring texture sampler", err)
		}
		g.textures[tx] = tc
	}

	if err := g.uploadTexture(tc, tx, w, h); err != nil {
		return nil, err
	}
	tx.ClearDirty()
	return tc, nil
}

// uploadTexture copies tx's CPU-side pixels into tc's device image via a
// one-time staging buffer submitted on the transfer pool, then transitions
// the image to SHADER_READ_ONLY_OPTIMAL. Grounded on the original transfer
// command buffer's role (§4.9): this module performs uploads immediately
// rather than batching them into the current frame's transfer CB, trading
// the pipelining the two-command-buffer split would give for simplicity —
// recorded in DESIGN.md.
func (g *GSG) uploadTexture(tc *vgpu.TextureContext, tx *render.Texture, w, h int) error {
	pixels := texturePixels(tx, w, h)

	staging, err := vgpu.NewBufferContext(g.GPU, g.Device.Device, g.Alloc, vk.DeviceSize(len(pixels)),
		vk.BufferUsageFlagBits(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlagBits(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return wrapError(AllocationFailed, "allocating texture staging buffer", err)
	}
	defer staging.Destroy(g.Alloc)

	mapping, err := staging.Block.Map()
	if err != nil {
		return wrapError(AllocationFailed, "mapping texture staging buffer", err)
	}
	copy(mapping.Bytes(), pixels)
	mapping.Unmap()

	cmd := g.Transfer.NewBuffer(g.Device)
	if err := vgpu.CmdBeginOneTime(cmd); err != nil {
		return wrapError(DeviceLost, "beginning texture upload command buffer", err)
	}
	wrapper := vgpu.CommandBuffer{Cmd: cmd}
	wrapper.AddInitialBarrier(tc, vk.ImageLayoutTransferDstOptimal,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.AccessFlags(vk.AccessTransferWriteBit))

	region := vk.BufferImageCopy{
		BufferOffset: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     tc.Aspect,
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageExtent: tc.Extent,
	}
	vk.CmdCopyBufferToImage(cmd, staging.Buffer, tc.Image, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})

	wrapper.AddInitialBarrier(tc, vk.ImageLayoutShaderReadOnlyOptimal,
		vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit), vk.AccessFlags(vk.AccessShaderReadBit))

	if err := g.Transfer.EndSubmitWaitFree(g.Device, cmd); err != nil {
		return wrapError(DeviceLost, "submitting texture upload", err)
	}
	return nil
}

// texturePixels returns tx's mip-0 pixels as tightly packed RGBA8, padding
// with opaque white if tx has no CPU image (a placeholder texture).
func texturePixels(tx *render.Texture, w, h int) []byte {
	if tx.Image == nil {
		out := make([]byte, w*h*4)
		for i := range out {
			out[i] = 0xff
		}
		return out
	}
	b := tx.Image.Bounds()
	out := make([]byte, w*h*4)
	stride := tx.Image.Stride
	for y := 0; y < h; y++ {
		srcOff := (y+b.Min.Y)*stride + b.Min.X*4
		dstOff := y * w * 4
		n := w * 4
		if srcOff+n > len(tx.Image.Pix) {
			n = len(tx.Image.Pix) - srcOff
		}
		if n > 0 {
			copy(out[dstOff:dstOff+n], tx.Image.Pix[srcOff:srcOff+n])
		}
	}
	return out
}

// releaseTexture drops tx's cached TextureContext, deferring its GPU
// resources' destruction onto fd so an in-flight frame that still
// references the image is not corrupted.
func (g *GSG) releaseTexture(tx *render.Texture, fd *vgpu.FrameData) {
	tc, ok := g.textures[tx]
	if !ok {
		return
	}
	delete(g.textures, tx)
	fd.DeferDestroyImageView(tc.View)
	if tc.AlphaOnlyView != vk.NullImageView {
		fd.DeferDestroyImageView(tc.AlphaOnlyView)
	}
	fd.DeferDestroyImage(tc.Image)
	fd.DeferDestroySampler(tc.Sampler)
	if tc.Block != nil {
		fd.DeferFreeBlock(tc.Block)
	}
}
