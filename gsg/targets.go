// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gsg

import (
	"github.com/vkscene/vkscene/vgpu"

	vk "github.com/goki/vulkan"
)

// renderTargets holds the render pass and per-swapchain-image
// framebuffers a GSG draws into, plus the shared depth/stencil
// attachment every swapchain image's framebuffer reuses. Rebuilt
// whenever the swapchain is (re)created (§4.4, §4.5).
type renderTargets struct {
	Pass         *vgpu.RenderPass
	Framebuffers []*vgpu.Framebuffer
	ColorTCs     []*vgpu.TextureContext
	Depth        *vgpu.TextureContext
}

func (g *GSG) fbConfigForTargets() vgpu.FbConfig {
	depthFormat := g.Config.DepthFormat
	return vgpu.FbConfig{
		ColorFormat: g.Swapchain.Format,
		DepthFormat: depthFormat,
		Samples:     g.fbConfig(),
	}
}

// rebuildTargets (re)builds the render pass, depth buffer, and one
// framebuffer per swapchain image against the swapchain's current
// extent and views. Call once after Init's swapchain creation and again
// every time the swapchain is recreated (resize, out-of-date, or
// suboptimal present), per §4.5: "framebuffers are keyed on
// (render-pass, image views, extent)".
func (g *GSG) rebuildTargets() error {
	g.destroyTargets()

	cfg := g.fbConfigForTargets()
	pass, err := g.Passes.Get(cfg)
	if err != nil {
		return wrapError(PipelineCreateFailed, "building swapchain render pass", err)
	}

	var depth *vgpu.TextureContext
	if cfg.DepthFormat != vk.FormatUndefined {
		depth, err = vgpu.NewTextureContext(g.GPU, g.Device.Device, g.Alloc, cfg.DepthFormat,
			int(g.Swapchain.Extent.Width), int(g.Swapchain.Extent.Height), 1, 1,
			vk.ImageUsageFlagBits(vk.ImageUsageDepthStencilAttachmentBit))
		if err != nil {
			return wrapError(AllocationFailed, "allocating depth buffer", err)
		}
	}

	colorTCs := make([]*vgpu.TextureContext, len(g.Swapchain.Views))
	framebuffers := make([]*vgpu.Framebuffer, len(g.Swapchain.Views))
	for i, view := range g.Swapchain.Views {
		colorTCs[i] = vgpu.WrapExternalImage(g.Swapchain.Images[i], view, g.Swapchain.Format,
			int(g.Swapchain.Extent.Width), int(g.Swapchain.Extent.Height),
			vk.ImageAspectFlags(vk.ImageAspectColorBit))

		views := []vk.ImageView{view}
		if depth != nil {
			views = append(views, depth.View)
		}
		fb, err := vgpu.NewFramebuffer(g.Device.Device, pass, views, g.Swapchain.Extent.Width, g.Swapchain.Extent.Height)
		if err != nil {
			return wrapError(AllocationFailed, "building swapchain framebuffer", err)
		}
		framebuffers[i] = fb
	}

	g.targets = renderTargets{Pass: pass, Framebuffers: framebuffers, ColorTCs: colorTCs, Depth: depth}
	return nil
}

// destroyTargets releases the current framebuffers and depth buffer
// (not the cached render pass, which RenderPassCache owns and may still
// be shared by a pipeline built against the same FbConfig).
func (g *GSG) destroyTargets() {
	for _, fb := range g.targets.Framebuffers {
		fb.Destroy(g.Device.Device)
	}
	if g.targets.Depth != nil {
		g.targets.Depth.Destroy(g.Alloc)
	}
	g.targets = renderTargets{}
}
