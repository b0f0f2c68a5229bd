// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	vk "github.com/goki/vulkan"
)

// FbConfig canonicalizes the handful of render-pass-shaping choices that
// affect VkRenderPass/VkFramebuffer compatibility: color format, depth
// format (vk.FormatUndefined for none), and sample count. Two FbConfig
// values that compare equal can share one cached RenderPass.
type FbConfig struct {
	ColorFormat vk.Format
	DepthFormat vk.Format
	Samples     vk.SampleCountFlagBits
}

// RenderPass wraps a VkRenderPass built from an FbConfig, cached so that
// framebuffers and pipelines created against the same FbConfig can share
// it (§4.4; §9 commits to the classic VkRenderPass/VkFramebuffer path).
type RenderPass struct {
	Config FbConfig
	Pass   vk.RenderPass
}

// NewRenderPass creates a single-subpass VkRenderPass for cfg: one color
// attachment cleared and stored, and an optional depth/stencil attachment
// cleared and discarded after the subpass.
func NewRenderPass(dev vk.Device, cfg FbConfig) (*RenderPass, error) {
	var attachments []vk.AttachmentDescription
	var colorRef vk.AttachmentReference
	attachments = append(attachments, vk.AttachmentDescription{
		Format:         cfg.ColorFormat,
		Samples:        cfg.Samples,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		// FinalLayout leaves the attachment in COLOR_ATTACHMENT_OPTIMAL;
		// the caller (GSG.EndFrame) issues the further transition to
		// PRESENT_SRC_KHR or TRANSFER_SRC_OPTIMAL itself via
		// CommandBuffer.AddBarrier against the attachment's own
		// TextureContext, keeping this render pass reusable for both
		// swapchain and render-to-texture targets.
		FinalLayout: vk.ImageLayoutColorAttachmentOptimal,
	})
	colorRef = vk.AttachmentReference{Attachment: 0, Layout: vk.ImageLayoutColorAttachmentOptimal}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments:    []vk.AttachmentReference{colorRef},
	}

	if cfg.DepthFormat != vk.FormatUndefined {
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         cfg.DepthFormat,
			Samples:        cfg.Samples,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		})
		depthRef := vk.AttachmentReference{Attachment: 1, Layout: vk.ImageLayoutDepthStencilAttachmentOptimal}
		subpass.PDepthStencilAttachment = &depthRef
	}

	// Dependency from whatever wrote the attachment in a previous use
	// (or the implicit acquire) into this subpass's color/depth writes,
	// per §4.4: external ALL_COMMANDS into color-attachment-output and
	// early-fragment-tests.
	dstStage := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	dstAccess := vk.AccessFlags(vk.AccessColorAttachmentWriteBit)
	if cfg.DepthFormat != vk.FormatUndefined {
		dstStage |= vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)
		dstAccess |= vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit)
	}
	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		DstStageMask:  dstStage,
		DstAccessMask: dstAccess,
	}

	var pass vk.RenderPass
	ret := vk.CreateRenderPass(dev, &vk.RenderPassCreateInfo{
		SType:            vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount:  uint32(len(attachments)),
		PAttachments:     attachments,
		SubpassCount:     1,
		DependencyCount:  1,
		PDependencies:    []vk.SubpassDependency{dependency},
		PSubpasses:      []vk.SubpassDescription{subpass},
	}, nil, &pass)
	if err := checkResult("vkCreateRenderPass", ret); err != nil {
		return nil, err
	}
	return &RenderPass{Config: cfg, Pass: pass}, nil
}

func (rp *RenderPass) Destroy(dev vk.Device) {
	if rp.Pass != vk.NullRenderPass {
		vk.DestroyRenderPass(dev, rp.Pass, nil)
		rp.Pass = vk.NullRenderPass
	}
}

// Framebuffer wraps a VkFramebuffer built over a RenderPass and a set of
// attachment image views (color, and optionally depth).
type Framebuffer struct {
	Pass   *RenderPass
	FB     vk.Framebuffer
	Width  uint32
	Height uint32
}

// NewFramebuffer creates a framebuffer over pass with the given
// attachment views, sized w x h.
func NewFramebuffer(dev vk.Device, pass *RenderPass, views []vk.ImageView, w, h uint32) (*Framebuffer, error) {
	var fb vk.Framebuffer
	ret := vk.CreateFramebuffer(dev, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass.Pass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           w,
		Height:          h,
		Layers:          1,
	}, nil, &fb)
	if err := checkResult("vkCreateFramebuffer", ret); err != nil {
		return nil, err
	}
	return &Framebuffer{Pass: pass, FB: fb, Width: w, Height: h}, nil
}

func (fb *Framebuffer) Destroy(dev vk.Device) {
	if fb.FB != vk.NullFramebuffer {
		vk.DestroyFramebuffer(dev, fb.FB, nil)
		fb.FB = vk.NullFramebuffer
	}
}

// RenderPassCache caches RenderPass objects by FbConfig, so that distinct
// swapchain images or render-to-texture targets sharing the same shape
// reuse one VkRenderPass.
type RenderPassCache struct {
	Device  vk.Device
	entries map[FbConfig]*RenderPass
}

func (c *RenderPassCache) Init(dev vk.Device) {
	c.Device = dev
	c.entries = make(map[FbConfig]*RenderPass)
}

// Get returns the cached RenderPass for cfg, creating it on first use.
func (c *RenderPassCache) Get(cfg FbConfig) (*RenderPass, error) {
	if rp, ok := c.entries[cfg]; ok {
		return rp, nil
	}
	rp, err := NewRenderPass(c.Device, cfg)
	if err != nil {
		return nil, err
	}
	c.entries[cfg] = rp
	return rp, nil
}

func (c *RenderPassCache) Destroy() {
	for _, rp := range c.entries {
		rp.Destroy(c.Device)
	}
	c.entries = nil
}
