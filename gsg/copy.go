// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gsg

import (
	"image"

	"github.com/vkscene/vkscene/render"
	"github.com/vkscene/vkscene/vgpu"

	vk "github.com/goki/vulkan"
)

// CopyFramebufferToTexture requests that the color attachment this frame
// is rendering into be copied into dst's device image once the render
// pass for this frame ends. Several requests may be queued in the same
// frame; each is serviced in EndFrame after the swapchain image is
// transitioned to TRANSFER_SRC_OPTIMAL (§4.9 framebuffer_copy_to_texture).
func (g *GSG) CopyFramebufferToTexture(dst *render.Texture) error {
	if g.closing {
		return newError(DeviceLost, "framebuffer copy requested after device loss")
	}
	g.copyTargets = append(g.copyTargets, dst)
	return nil
}

// RequestScreenshot arms req to resolve once the frame currently being
// recorded finishes rendering: EndFrame copies the color attachment into
// a staging buffer, and the result is decoded and delivered to req once
// this frame's fence signals in a later BeginFrame (§4.9
// framebuffer_copy_to_ram, §8/S6).
func (g *GSG) RequestScreenshot(req *render.ScreenshotRequest) error {
	if g.closing {
		return newError(DeviceLost, "screenshot requested after device loss")
	}
	req.FrameNumber = g.frameNumber
	g.screenshot = req
	return nil
}

// prepareCopyDestTexture returns dst's device image sized w x h, creating
// it as a plain transfer-destination/sampled image (no CPU upload) on
// first use. Subsequent prepareTexture calls against the same pointer see
// it as already resident, since IsDirty is false until SetImage is
// called.
func (g *GSG) prepareCopyDestTexture(dst *render.Texture, w, h int) (*vgpu.TextureContext, error) {
	if tc, ok := g.textures[dst]; ok {
		return tc, nil
	}
	tc, err := vgpu.NewTextureContext(g.GPU, g.Device.Device, g.Alloc, g.Swapchain.Format, w, h, 1, 1,
		vk.ImageUsageFlagBits(vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit))
	if err != nil {
		return nil, wrapError(AllocationFailed, "allocating framebuffer copy destination", err)
	}
	g.textures[dst] = tc
	return tc, nil
}

// flushFramebufferCopies services every CopyFramebufferToTexture and
// RequestScreenshot call queued against the frame that just finished
// rendering. colorTC is the swapchain image's TextureContext, already
// marked as freshly written by the render pass; on return colorTC is left
// in TRANSFER_SRC_OPTIMAL (untouched when nothing is queued), ready for
// EndFrame's final present-layout transition.
func (g *GSG) flushFramebufferCopies(fd *vgpu.FrameData, colorTC *vgpu.TextureContext, w, h int) error {
	if len(g.copyTargets) == 0 && g.screenshot == nil {
		return nil
	}

	fd.Cmd.AddBarrier(colorTC, vk.ImageLayoutTransferSrcOptimal,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.AccessFlags(vk.AccessTransferReadBit))
	fd.Cmd.FlushBarriers()

	cmd := fd.Cmd.Cmd
	for _, dst := range g.copyTargets {
		tc, err := g.prepareCopyDestTexture(dst, w, h)
		if err != nil {
			return err
		}
		fd.Cmd.AddBarrier(tc, vk.ImageLayoutTransferDstOptimal,
			vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.AccessFlags(vk.AccessTransferWriteBit))
		fd.Cmd.FlushBarriers()

		vk.CmdCopyImage(cmd,
			colorTC.Image, vk.ImageLayoutTransferSrcOptimal,
			tc.Image, vk.ImageLayoutTransferDstOptimal,
			1, []vk.ImageCopy{{
				SrcSubresource: vk.ImageSubresourceLayers{AspectMask: colorTC.Aspect, LayerCount: 1},
				DstSubresource: vk.ImageSubresourceLayers{AspectMask: tc.Aspect, LayerCount: 1},
				Extent:         vk.Extent3D{Width: uint32(w), Height: uint32(h), Depth: 1},
			}})

		fd.Cmd.AddBarrier(tc, vk.ImageLayoutShaderReadOnlyOptimal,
			vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit), vk.AccessFlags(vk.AccessShaderReadBit))
	}
	g.copyTargets = nil

	if g.screenshot != nil {
		if err := g.queueScreenshotDownload(fd, colorTC, w, h); err != nil {
			return err
		}
	}
	return nil
}

// queueScreenshotDownload allocates a host-visible staging buffer sized
// for one w x h RGBA8 frame, copies the color attachment into it, and
// enqueues its decode+resolve onto fd's download queue.
func (g *GSG) queueScreenshotDownload(fd *vgpu.FrameData, colorTC *vgpu.TextureContext, w, h int) error {
	req := g.screenshot
	g.screenshot = nil

	size := vk.DeviceSize(w * h * 4)
	staging, err := vgpu.NewBufferContext(g.GPU, g.Device.Device, g.Alloc, size,
		vk.BufferUsageFlagBits(vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlagBits(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return wrapError(AllocationFailed, "allocating screenshot staging buffer", err)
	}

	vk.CmdCopyImageToBuffer(fd.Cmd.Cmd, colorTC.Image, vk.ImageLayoutTransferSrcOptimal, staging.Buffer,
		1, []vk.BufferImageCopy{{
			ImageSubresource: vk.ImageSubresourceLayers{AspectMask: colorTC.Aspect, LayerCount: 1},
			ImageExtent:      vk.Extent3D{Width: uint32(w), Height: uint32(h), Depth: 1},
		}})

	format := colorTC.Format
	alloc := g.Alloc
	fd.QueueDownload(vgpu.QueuedDownload{
		Buffer: staging,
		OnComplete: func(data []byte) {
			img := decodeFramebufferPixels(data, w, h, format)
			req.Resolve(img)
			staging.Destroy(alloc)
		},
	})
	return nil
}

// decodeFramebufferPixels converts raw copied attachment bytes into a
// *image.RGBA, swapping B/R channels for a BGRA-ordered swapchain format
// and flipping rows: the GPU image is top-down, while a resolved
// screenshot follows the same bottom-up row order Panda's RAM images use
// (§4.9 framebuffer_copy_to_ram).
func decodeFramebufferPixels(data []byte, w, h int, format vk.Format) *image.RGBA {
	swapRB := isBGRAFormat(format)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	stride := w * 4
	for y := 0; y < h; y++ {
		srcRow := data[y*stride : (y+1)*stride]
		dstRow := img.Pix[(h-1-y)*img.Stride : (h-1-y)*img.Stride+stride]
		copy(dstRow, srcRow)
		if swapRB {
			for x := 0; x < w; x++ {
				o := x * 4
				dstRow[o], dstRow[o+2] = dstRow[o+2], dstRow[o]
			}
		}
	}
	return img
}

func isBGRAFormat(format vk.Format) bool {
	switch format {
	case vk.FormatB8g8r8a8Unorm, vk.FormatB8g8r8a8Srgb:
		return true
	}
	return false
}
