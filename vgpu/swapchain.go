// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	vk "github.com/goki/vulkan"
)

// Surface is the platform window collaborator a Swapchain presents to. A
// concrete implementation (e.g. a GLFW-backed one) creates the
// VkSurfaceKHR and reports its current drawable extent; this package
// never imports a windowing library itself.
type Surface interface {
	// VkSurface returns the VkSurfaceKHR for this window, valid for the
	// lifetime of the Surface.
	VkSurface() vk.Surface

	// Extent returns the current drawable size in pixels.
	Extent() (w, h int)
}

// Swapchain owns a VkSwapchainKHR and the per-image views used to build
// framebuffers against it. Recreated whenever the surface resizes or a
// present call reports VK_ERROR_OUT_OF_DATE_KHR/VK_SUBOPTIMAL_KHR (§4.5,
// §8/S5).
type Swapchain struct {
	GPU     *GPU
	Device  *Device
	Surface Surface

	Handle      vk.Swapchain
	Format      vk.Format
	ColorSpace  vk.ColorSpace
	PresentMode vk.PresentMode
	Extent      vk.Extent2D

	Images []vk.Image
	Views  []vk.ImageView
}

// preferredPresentModes orders present modes from most to least preferred:
// mailbox (low-latency triple buffering) falls back to immediate (tearing,
// lowest latency) and finally FIFO, which every conformant implementation
// supports.
var preferredPresentModes = []vk.PresentMode{
	vk.PresentModeMailbox,
	vk.PresentModeImmediate,
	vk.PresentModeFifo,
}

// Init creates the swapchain for the given surface, selecting a present
// mode from preferredPresentModes and an SRGB format when available.
func (sc *Swapchain) Init(gp *GPU, dev *Device, surf Surface) error {
	sc.GPU = gp
	sc.Device = dev
	sc.Surface = surf
	return sc.create(vk.NullSwapchain)
}

// Recreate rebuilds the swapchain (e.g. after a resize or a present call
// reporting out-of-date/suboptimal), passing the old swapchain handle to
// vkCreateSwapchainKHR for a more efficient transition, then destroys the
// old one.
func (sc *Swapchain) Recreate() error {
	sc.Device.WaitIdle()
	old := sc.Handle
	sc.destroyViews()
	if err := sc.create(old); err != nil {
		return err
	}
	if old != vk.NullSwapchain {
		vk.DestroySwapchain(sc.Device.Device, old, nil)
	}
	return nil
}

func (sc *Swapchain) create(old vk.Swapchain) error {
	vkSurf := sc.Surface.VkSurface()

	var caps vk.SurfaceCapabilities
	vk.GetPhysicalDeviceSurfaceCapabilities(sc.GPU.GPU, vkSurf, &caps)
	caps.Deref()

	w, h := sc.Surface.Extent()
	extent := vk.Extent2D{Width: uint32(w), Height: uint32(h)}
	if caps.CurrentExtent.Width != 0xFFFFFFFF {
		caps.CurrentExtent.Deref()
		extent = caps.CurrentExtent
	}

	format, colorSpace := sc.chooseFormat(vkSurf)
	presentMode := sc.choosePresentMode(vkSurf)

	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	var handle vk.Swapchain
	ret := vk.CreateSwapchain(sc.Device.Device, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          vkSurf,
		MinImageCount:    imageCount,
		ImageFormat:      format,
		ImageColorSpace:  colorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     old,
	}, nil, &handle)
	if err := checkResult("vkCreateSwapchainKHR", ret); err != nil {
		return WrapError(SurfaceOutOfDate, "failed to create swapchain", err)
	}

	sc.Handle = handle
	sc.Format = format
	sc.ColorSpace = colorSpace
	sc.PresentMode = presentMode
	sc.Extent = extent

	var n uint32
	vk.GetSwapchainImages(sc.Device.Device, handle, &n, nil)
	images := make([]vk.Image, n)
	vk.GetSwapchainImages(sc.Device.Device, handle, &n, images)
	sc.Images = images

	views := make([]vk.ImageView, n)
	for i, img := range images {
		ret := vk.CreateImageView(sc.Device.Device, &vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    img,
			ViewType: vk.ImageViewType2d,
			Format:   format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}, nil, &views[i])
		if err := checkResult("vkCreateImageView", ret); err != nil {
			return err
		}
	}
	sc.Views = views
	return nil
}

func (sc *Swapchain) chooseFormat(surf vk.Surface) (vk.Format, vk.ColorSpace) {
	var n uint32
	vk.GetPhysicalDeviceSurfaceFormats(sc.GPU.GPU, surf, &n, nil)
	formats := make([]vk.SurfaceFormat, n)
	vk.GetPhysicalDeviceSurfaceFormats(sc.GPU.GPU, surf, &n, formats)
	for _, f := range formats {
		f.Deref()
		if f.Format == vk.FormatB8g8r8a8Srgb {
			return f.Format, f.ColorSpace
		}
	}
	if n > 0 {
		formats[0].Deref()
		return formats[0].Format, formats[0].ColorSpace
	}
	return vk.FormatB8g8r8a8Unorm, vk.ColorSpaceSrgbNonlinear
}

func (sc *Swapchain) choosePresentMode(surf vk.Surface) vk.PresentMode {
	var n uint32
	vk.GetPhysicalDeviceSurfacePresentModes(sc.GPU.GPU, surf, &n, nil)
	avail := make([]vk.PresentMode, n)
	vk.GetPhysicalDeviceSurfacePresentModes(sc.GPU.GPU, surf, &n, avail)
	availSet := make(map[vk.PresentMode]bool, n)
	for _, m := range avail {
		availSet[m] = true
	}
	for _, pref := range preferredPresentModes {
		if availSet[pref] {
			return pref
		}
	}
	return vk.PresentModeFifo
}

// AcquireNext acquires the next presentable image index, signaling
// signal when it is ready. ok is false (with a SurfaceOutOfDate error) if
// the swapchain is out of date and must be recreated before this frame
// can proceed; a suboptimal swapchain still yields the acquired index
// with ok true.
func (sc *Swapchain) AcquireNext(signal vk.Semaphore) (index uint32, ok bool, err error) {
	ret := vk.AcquireNextImage(sc.Device.Device, sc.Handle, vk.MaxUint64, signal, vk.NullFence, &index)
	switch ret {
	case vk.Success:
		return index, true, nil
	case vk.Suboptimal:
		return index, true, nil
	case vk.ErrorOutOfDate:
		return 0, false, NewErrorKind(SurfaceOutOfDate, "swapchain out of date on acquire")
	default:
		return 0, false, checkResult("vkAcquireNextImageKHR", ret)
	}
}

// Present presents index, waiting on wait, reporting whether the
// swapchain must be recreated.
func (sc *Swapchain) Present(queue vk.Queue, index uint32, wait vk.Semaphore) (needsRecreate bool, err error) {
	waits := []vk.Semaphore{}
	if wait != vk.NullSemaphore {
		waits = []vk.Semaphore{wait}
	}
	ret := vk.QueuePresent(queue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(waits)),
		PWaitSemaphores:    waits,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.Handle},
		PImageIndices:      []uint32{index},
	})
	switch ret {
	case vk.Success:
		return false, nil
	case vk.Suboptimal, vk.ErrorOutOfDate:
		return true, nil
	default:
		return false, checkResult("vkQueuePresentKHR", ret)
	}
}

func (sc *Swapchain) destroyViews() {
	for _, v := range sc.Views {
		vk.DestroyImageView(sc.Device.Device, v, nil)
	}
	sc.Views = nil
	sc.Images = nil
}

// Destroy destroys the swapchain and its image views.
func (sc *Swapchain) Destroy() {
	sc.destroyViews()
	if sc.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(sc.Device.Device, sc.Handle, nil)
		sc.Handle = vk.NullSwapchain
	}
}
