// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gsg

import (
	"log/slog"

	"github.com/vkscene/vkscene/descset"
	"github.com/vkscene/vkscene/pipeline"
	"github.com/vkscene/vkscene/render"
	"github.com/vkscene/vkscene/vgpu"

	vk "github.com/goki/vulkan"
)

// GSG is the graphics-state-guardian control plane: one GSG owns a
// device, swapchain, and the full set of per-frame resources, and
// exposes the begin_frame/set_state_and_transform/draw/end_frame entry
// point contract the original vulkanGraphicsStateGuardian.h defines.
type GSG struct {
	GPU     *vgpu.GPU
	Device  *vgpu.Device
	Surface Surface
	Config  Config

	Swapchain *vgpu.Swapchain
	Alloc     *vgpu.MemoryAllocator
	Passes    *vgpu.RenderPassCache
	Pipelines *pipeline.Cache
	Transfer  vgpu.CmdPool

	// targets is the render pass, depth buffer, and per-swapchain-image
	// framebuffer set BeginFrame/EndFrame draw into, rebuilt whenever the
	// swapchain is recreated.
	targets renderTargets

	// screenshot, if non-nil, is resolved against the image this frame
	// renders before it is presented (§4.9 framebuffer_copy_to_ram, S6).
	screenshot *render.ScreenshotRequest

	// copyTargets are pending framebuffer_copy_to_texture destinations
	// for the frame currently recording, serviced in EndFrame.
	copyTargets []*render.Texture

	frames      []vgpu.FrameData
	uniforms    []descset.DynamicArena
	vertexData  []byteArena
	palettes    []pipeline.ColorPalette
	frameIndex  int
	frameNumber uint64

	shaders  map[*render.Shader]*shaderInfo
	textures map[*render.Texture]*vgpu.TextureContext

	curState  *render.State
	prevState *render.State
	curXform  *render.TransformState
	altered   render.AttribMask
	curImage  uint32

	// emptyLayout is a zero-binding descriptor set layout used to fill any
	// attribute set a given shader leaves unused, so a pipeline layout's
	// set array stays contiguous.
	emptyLayout vk.DescriptorSetLayout

	// emptyPool/emptyDescSet back a single allocated descriptor set bound
	// to emptyLayout, for shaders that never populate LightAttrib or
	// ShaderAttrib (no model for those asset kinds yet, §9).
	emptyPool    vk.DescriptorPool
	emptyDescSet vk.DescriptorSet

	// closing is set once a DeviceLost error is observed anywhere in this
	// GSG; every further call fails fast instead of touching a device
	// that may already be gone, following the original guardian's
	// _closing/invalid-device pattern (§7).
	closing bool
}

// New returns an unconfigured GSG; call Init before use.
func New() *GSG {
	return &GSG{
		shaders:  make(map[*render.Shader]*shaderInfo),
		textures: make(map[*render.Texture]*vgpu.TextureContext),
	}
}

// Init brings up every resource a GSG needs: the logical device's
// allocator, swapchain, render-pass/pipeline caches, and per-frame-in-
// flight command buffers and arenas.
func (g *GSG) Init(gp *vgpu.GPU, dev *vgpu.Device, surf Surface, cfg Config) error {
	g.GPU = gp
	g.Device = dev
	g.Surface = surf
	g.Config = cfg

	g.Alloc = &vgpu.MemoryAllocator{}
	g.Alloc.Init(gp, dev.Device)

	g.Swapchain = &vgpu.Swapchain{}
	if err := g.Swapchain.Init(gp, dev, surf); err != nil {
		return g.invalidate(wrapError(SurfaceOutOfDate, "creating swapchain", err))
	}

	g.Passes = &vgpu.RenderPassCache{}
	g.Passes.Init(dev.Device)

	g.Pipelines = &pipeline.Cache{}
	g.Pipelines.Init(dev.Device, g.Passes)

	if err := g.rebuildTargets(); err != nil {
		return g.invalidate(wrapError(AllocationFailed, "building swapchain render targets", err))
	}

	if err := g.Transfer.ConfigTransient(dev); err != nil {
		return g.invalidate(wrapError(DeviceLost, "configuring transfer command pool", err))
	}

	n := cfg.FramesInFlight
	if n <= 0 {
		n = 1
	}
	g.frames = make([]vgpu.FrameData, n)
	g.uniforms = make([]descset.DynamicArena, n)
	g.vertexData = make([]byteArena, n)
	g.palettes = make([]pipeline.ColorPalette, n)
	for i := 0; i < n; i++ {
		if err := g.frames[i].Init(dev, i); err != nil {
			return g.invalidate(wrapError(DeviceLost, "initializing frame data", err))
		}
		if err := g.uniforms[i].Init(gp, dev, g.Alloc, cfg.UniformArenaSize); err != nil {
			return g.invalidate(wrapError(AllocationFailed, "initializing uniform arena", err))
		}
		if err := g.vertexData[i].init(gp, dev, g.Alloc, cfg.StagingArenaSize,
			vk.BufferUsageFlagBits(vk.BufferUsageVertexBufferBit|vk.BufferUsageIndexBufferBit)); err != nil {
			return g.invalidate(wrapError(AllocationFailed, "initializing vertex/staging arena", err))
		}
		if err := g.palettes[i].Init(gp, dev, g.Alloc, cfg.ColorPaletteSize); err != nil {
			return g.invalidate(wrapError(AllocationFailed, "initializing color palette", err))
		}
	}
	g.Alloc.Drain = func() {
		for i := range g.frames {
			g.frames[i].WaitFence(g.Device.Device, g.Alloc)
		}
	}

	surf.NotifyResize(func(w, h int) {
		if err := g.Swapchain.Recreate(); err != nil {
			slog.Error("gsg.GSG: swapchain recreate on resize failed", "error", err)
			return
		}
		if err := g.rebuildTargets(); err != nil {
			slog.Error("gsg.GSG: rebuilding render targets after resize failed", "error", err)
		}
	})

	return nil
}

func (g *GSG) fbConfig() vk.SampleCountFlagBits {
	if g.Config.Samples == 0 {
		return vk.SampleCount1Bit
	}
	return g.Config.Samples
}

// current returns this frame-in-flight's FrameData, uniform arena,
// vertex arena, and color palette.
func (g *GSG) current() (*vgpu.FrameData, *descset.DynamicArena, *byteArena, *pipeline.ColorPalette) {
	i := g.frameIndex
	return &g.frames[i], &g.uniforms[i], &g.vertexData[i], &g.palettes[i]
}

// BeginFrame waits for this frame-in-flight slot's prior submission to
// complete, flushes its deferred destructions, resolves any downloads
// queued against it, resets its ring arenas, and acquires the next
// swapchain image.
func (g *GSG) BeginFrame() error {
	if g.closing {
		return newError(DeviceLost, "begin_frame called after device loss")
	}

	fd, arena, varena, palette := g.current()
	fd.WaitAndReset(g.Device.Device, g.Alloc)
	if err := fd.ResolveDownloads(); err != nil {
		return g.invalidate(wrapError(DeviceLost, "resolving frame downloads", err))
	}
	arena.Reset()
	varena.reset()
	palette.Reset()

	idx, ok, err := g.Swapchain.AcquireNext(fd.ImageAcquired)
	if err != nil {
		if kind, isVgpuErr := vgpuKind(err); isVgpuErr && kind == vgpu.SurfaceOutOfDate {
			if rerr := g.recreateSwapchain(); rerr != nil {
				return g.invalidate(wrapError(SurfaceOutOfDate, "recreating swapchain", rerr))
			}
			idx, ok, err = g.Swapchain.AcquireNext(fd.ImageAcquired)
		}
		if err != nil {
			return g.invalidate(wrapError(SurfaceOutOfDate, "acquiring swapchain image", err))
		}
	}
	if !ok {
		return newError(SurfaceOutOfDate, "swapchain image not ready")
	}
	g.curImage = idx

	if err := vgpu.CmdBeginOneTime(fd.Cmd.Cmd); err != nil {
		return g.invalidate(wrapError(DeviceLost, "beginning frame command buffer", err))
	}

	clears := []vk.ClearValue{clearColorValue(g.Config.ClearColor)}
	if g.targets.Depth != nil {
		clears = append(clears, clearDepthValue(1))
	}
	fb := g.targets.Framebuffers[idx]
	vk.CmdBeginRenderPass(fd.Cmd.Cmd, &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  g.targets.Pass.Pass,
		Framebuffer: fb.FB,
		RenderArea:  vk.Rect2D{Extent: vk.Extent2D{Width: fb.Width, Height: fb.Height}},
		ClearValueCount: uint32(len(clears)),
		PClearValues:    clears,
	}, vk.SubpassContentsInline)
	return nil
}

// recreateSwapchain rebuilds the swapchain and every render target that
// depends on its images/extent (§4.5).
func (g *GSG) recreateSwapchain() error {
	if err := g.Swapchain.Recreate(); err != nil {
		return err
	}
	return g.rebuildTargets()
}

func clearColorValue(c [4]float32) vk.ClearValue {
	return vk.NewClearValue(c[:])
}

func clearDepthValue(depth float32) vk.ClearValue {
	return vk.NewClearDepthStencil(depth, 0)
}

// SetStateAndTransform records the render state and transform stack that
// subsequent draw calls in this frame should use, and computes the
// altered mask of attribute slots that changed since the previous call
// (§4.9, §8 invariant 5). Mirrors the original guardian's
// set_state_and_transform, which resolves pipeline/descriptor changes
// lazily at the next draw rather than eagerly here.
func (g *GSG) SetStateAndTransform(st *render.State, xf *render.TransformState) {
	g.altered = st.AlteredFrom(g.curState)
	g.prevState = g.curState
	g.curState = st
	g.curXform = xf
}

// Altered returns the attribute-slot change mask computed by the most
// recent SetStateAndTransform call.
func (g *GSG) Altered() render.AttribMask { return g.altered }

// EndFrame flushes any pooled barriers, ends and submits the frame's
// command buffer, and presents the acquired image, recreating the
// swapchain if presentation reports it as out of date or suboptimal.
func (g *GSG) EndFrame() error {
	if g.closing {
		return newError(DeviceLost, "end_frame called after device loss")
	}
	fd, _, _, _ := g.current()

	vk.CmdEndRenderPass(fd.Cmd.Cmd)

	colorTC := g.targets.ColorTCs[g.curImage]
	colorTC.MarkRenderPassWrite(vk.ImageLayoutColorAttachmentOptimal,
		vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		vk.AccessFlags(vk.AccessColorAttachmentWriteBit), fd.Cmd.Seq())

	w, h := int(g.Swapchain.Extent.Width), int(g.Swapchain.Extent.Height)
	if err := g.flushFramebufferCopies(fd, colorTC, w, h); err != nil {
		return err
	}

	fd.Cmd.AddBarrier(colorTC, vk.ImageLayoutPresentSrc,
		vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit), 0)
	fd.Cmd.FlushBarriers()
	if err := vgpu.CmdEnd(fd.Cmd.Cmd); err != nil {
		return g.invalidate(wrapError(DeviceLost, "ending frame command buffer", err))
	}

	waitStages := []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
	ret := vk.QueueSubmit(g.Device.Queue, 1, []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{fd.ImageAcquired},
		PWaitDstStageMask:    waitStages,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{fd.Cmd.Cmd},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{fd.RenderFinished},
	}}, fd.Fence)
	if ret != vk.Success {
		return g.invalidate(wrapError(DeviceLost, "submitting frame command buffer", nil))
	}

	needsRecreate, err := g.Swapchain.Present(g.Device.Queue, g.curImage, fd.RenderFinished)
	if err != nil {
		return g.invalidate(wrapError(SurfaceOutOfDate, "presenting frame", err))
	}
	if needsRecreate {
		if err := g.recreateSwapchain(); err != nil {
			return g.invalidate(wrapError(SurfaceOutOfDate, "recreating swapchain after present", err))
		}
	}

	g.frameNumber++
	g.frameIndex = (g.frameIndex + 1) % len(g.frames)
	return nil
}

// invalidate records err as having caused device loss when it (or
// something it wraps) is a DeviceLost-class failure, so every later
// entry point call fails fast rather than touching a possibly-destroyed
// device. The original err is always returned unchanged.
func (g *GSG) invalidate(err *Error) error {
	if err != nil {
		if k, ok := vgpuKind(err); err.Kind == DeviceLost || (ok && k == vgpu.DeviceLost) {
			g.closing = true
		}
	}
	return err
}

func vgpuKind(err error) (vgpu.ErrorKind, bool) {
	var ve *vgpu.Error
	for e := err; e != nil; {
		if v, ok := e.(*vgpu.Error); ok {
			ve = v
			break
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	if ve == nil {
		return 0, false
	}
	return ve.Kind, true
}

// Destroy waits for the device to go idle and releases every resource
// this GSG owns.
func (g *GSG) Destroy() {
	if g.Device != nil {
		g.Device.WaitIdle()
	}
	for i := range g.frames {
		g.frames[i].Destroy(g.Device.Device)
		g.uniforms[i].Destroy(g.Alloc)
		g.vertexData[i].destroy(g.Alloc)
		g.palettes[i].Destroy(g.Alloc)
	}
	for _, info := range g.shaders {
		for _, layout := range info.SetLayouts {
			vk.DestroyDescriptorSetLayout(g.Device.Device, layout, nil)
		}
		if info.Pool != vk.NullDescriptorPool {
			vk.DestroyDescriptorPool(g.Device.Device, info.Pool, nil)
		}
	}
	g.shaders = nil
	for _, tc := range g.textures {
		tc.Destroy(g.Alloc)
	}
	g.textures = nil
	if g.emptyPool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(g.Device.Device, g.emptyPool, nil)
	}
	if g.emptyLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(g.Device.Device, g.emptyLayout, nil)
	}
	g.destroyTargets()
	if g.Pipelines != nil {
		g.Pipelines.Destroy()
	}
	if g.Passes != nil {
		g.Passes.Destroy()
	}
	g.Transfer.Destroy(g.Device.Device)
	if g.Swapchain != nil {
		g.Swapchain.Destroy()
	}
	if g.Alloc != nil {
		g.Alloc.Destroy()
	}
}
