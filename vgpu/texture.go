// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	vk "github.com/goki/vulkan"
)

// TextureContext is the GSG-side mirror of a render.Texture: the prepared
// VkImage, its views, and the layout/access bookkeeping CommandBuffer.
// AddBarrier needs. Grounded on the original VulkanTextureContext.
type TextureContext struct {
	resourceState

	GPU    *GPU
	Device vk.Device

	Image     vk.Image
	Block     *MemoryBlock
	Format    vk.Format
	Extent    vk.Extent3D
	MipLevels uint32
	Layers    uint32
	Aspect    vk.ImageAspectFlags

	// Layout is the VkImageLayout this image was last transitioned to.
	Layout vk.ImageLayout

	// View is the image view used for shader sampling, covering the
	// whole image with its natural component mapping.
	View vk.ImageView

	// AlphaOnlyView, if non-null, is an image view that swizzles every
	// channel to the image's alpha channel. Used for a T_alpha texture
	// stage without a dedicated shader uniform (§9 open question).
	AlphaOnlyView vk.ImageView

	// GenerateMipmaps is true if mip levels beyond 0 must be produced by
	// blit-based downsampling rather than being supplied by the caller.
	GenerateMipmaps bool

	Sampler vk.Sampler

	// external is true for a TextureContext built with WrapExternalImage,
	// whose image/view this package does not own and must not destroy.
	external bool
}

// NewTextureContext creates a 2D VkImage with the given format/extent/
// mip levels and allocates+binds device-local memory for it. The image
// starts in VK_IMAGE_LAYOUT_UNDEFINED; the caller is responsible for
// recording an initial layout transition (CommandBuffer.AddInitialBarrier)
// before first use.
func NewTextureContext(gp *GPU, dev vk.Device, alloc *MemoryAllocator, format vk.Format, w, h int, mipLevels, layers uint32, usage vk.ImageUsageFlagBits) (*TextureContext, error) {
	extent := vk.Extent3D{Width: uint32(w), Height: uint32(h), Depth: 1}
	var image vk.Image
	ret := vk.CreateImage(dev, &vk.ImageCreateInfo{
		SType:       vk.StructureTypeImageCreateInfo,
		ImageType:   vk.ImageType2d,
		Format:      format,
		Extent:      extent,
		MipLevels:   mipLevels,
		ArrayLayers: layers,
		Samples:     vk.SampleCount1Bit,
		Tiling:      vk.ImageTilingOptimal,
		Usage:       vk.ImageUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &image)
	if err := checkResult("vkCreateImage", ret); err != nil {
		return nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(dev, image, &reqs)
	reqs.Deref()

	block, err := alloc.Allocate(reqs, vk.MemoryPropertyFlagBits(vk.MemoryPropertyDeviceLocalBit), false)
	if err != nil {
		vk.DestroyImage(dev, image, nil)
		return nil, err
	}
	if err := block.BindImage(image); err != nil {
		alloc.Free(block)
		vk.DestroyImage(dev, image, nil)
		return nil, err
	}

	aspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	if isDepthFormat(format) {
		aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}

	tc := &TextureContext{
		GPU:       gp,
		Device:    dev,
		Image:     image,
		Block:     block,
		Format:    format,
		Extent:    extent,
		MipLevels: mipLevels,
		Layers:    layers,
		Aspect:    aspect,
		Layout:    vk.ImageLayoutUndefined,
	}
	view, err := tc.newView(vk.ComponentMapping{})
	if err != nil {
		tc.destroyImage(alloc)
		return nil, err
	}
	tc.View = view
	return tc, nil
}

// WrapExternalImage returns a TextureContext over an image and view this
// package did not allocate (a swapchain color image, or a render-to-
// texture target owned by a framebuffer), for barrier bookkeeping only.
// Destroy is a no-op for a wrapped context; the owner is responsible for
// the underlying image/view lifetime.
func WrapExternalImage(image vk.Image, view vk.ImageView, format vk.Format, w, h int, aspect vk.ImageAspectFlags) *TextureContext {
	return &TextureContext{
		Image:     image,
		View:      view,
		Format:    format,
		Extent:    vk.Extent3D{Width: uint32(w), Height: uint32(h), Depth: 1},
		MipLevels: 1,
		Layers:    1,
		Aspect:    aspect,
		Layout:    vk.ImageLayoutUndefined,
		external:  true,
	}
}

// MarkRenderPassWrite updates tc's barrier bookkeeping for an attachment
// image whose layout and access were transitioned implicitly by a render
// pass (via its attachment description's FinalLayout) rather than through
// AddBarrier, so that a later AddBarrier call against the same resource
// computes the correct src stage/access mask instead of treating the
// write as never having happened.
func (tc *TextureContext) MarkRenderPassWrite(layout vk.ImageLayout, stage vk.PipelineStageFlags, access vk.AccessFlags, seq uint64) {
	tc.Layout = layout
	tc.writeStageMask = stage
	tc.writeAccessMask = access & writeAccessMask
	tc.readStageMask = 0
	tc.writeSeq = seq
	tc.readSeq = seq
	tc.pooledBarrierExists = false
}

// SwizzleAlphaOnly lazily creates and returns an image view that maps every
// RGBA channel to this texture's alpha channel, for T_alpha texture stages
// (§9 open question).
func (tc *TextureContext) SwizzleAlphaOnly() (vk.ImageView, error) {
	if tc.AlphaOnlyView != vk.NullImageView {
		return tc.AlphaOnlyView, nil
	}
	view, err := tc.newView(vk.ComponentMapping{
		R: vk.ComponentSwizzleA,
		G: vk.ComponentSwizzleA,
		B: vk.ComponentSwizzleA,
		A: vk.ComponentSwizzleA,
	})
	if err != nil {
		return vk.NullImageView, err
	}
	tc.AlphaOnlyView = view
	return view, nil
}

func (tc *TextureContext) newView(swizzle vk.ComponentMapping) (vk.ImageView, error) {
	var view vk.ImageView
	ret := vk.CreateImageView(tc.Device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    tc.Image,
		ViewType: vk.ImageViewType2d,
		Format:   tc.Format,
		Components: swizzle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     tc.Aspect,
			BaseMipLevel:   0,
			LevelCount:     tc.MipLevels,
			BaseArrayLayer: 0,
			LayerCount:     tc.Layers,
		},
	}, nil, &view)
	if err := checkResult("vkCreateImageView", ret); err != nil {
		return vk.NullImageView, err
	}
	return view, nil
}

func (tc *TextureContext) destroyImage(alloc *MemoryAllocator) {
	if tc.View != vk.NullImageView {
		vk.DestroyImageView(tc.Device, tc.View, nil)
		tc.View = vk.NullImageView
	}
	if tc.AlphaOnlyView != vk.NullImageView {
		vk.DestroyImageView(tc.Device, tc.AlphaOnlyView, nil)
		tc.AlphaOnlyView = vk.NullImageView
	}
	if tc.Image != vk.NullImage {
		vk.DestroyImage(tc.Device, tc.Image, nil)
		tc.Image = vk.NullImage
	}
	if tc.Block != nil && alloc != nil {
		alloc.Free(tc.Block)
		tc.Block = nil
	}
}

// Destroy destroys the image, its views, sampler, and releases its memory
// block. alloc must be the same MemoryAllocator used to create this
// texture.
func (tc *TextureContext) Destroy(alloc *MemoryAllocator) {
	if tc.external {
		return
	}
	if tc.Sampler != vk.NullSampler {
		vk.DestroySampler(tc.Device, tc.Sampler, nil)
		tc.Sampler = vk.NullSampler
	}
	tc.destroyImage(alloc)
}

func isDepthFormat(format vk.Format) bool {
	switch format {
	case vk.FormatD16Unorm, vk.FormatD32Sfloat, vk.FormatD16UnormS8Uint,
		vk.FormatD24UnormS8Uint, vk.FormatD32SfloatS8Uint:
		return true
	}
	return false
}

////////////////////////////////////////////////////////////////////
// SamplerModes: mode-to-Vk enum lookup tables, in the manner of the
// teacher's own VkXxx mapping tables.

// SamplerModes controls behavior when sampling beyond [0,1] texture
// coordinates.
type SamplerModes int32 //enums:enum

const (
	Repeat SamplerModes = iota
	MirroredRepeat
	ClampToEdge
	ClampToBorder
	MirrorClampToEdge
)

func (sm SamplerModes) VkMode() vk.SamplerAddressMode {
	return VulkanSamplerModes[sm]
}

var VulkanSamplerModes = map[SamplerModes]vk.SamplerAddressMode{
	Repeat:            vk.SamplerAddressModeRepeat,
	MirroredRepeat:    vk.SamplerAddressModeMirroredRepeat,
	ClampToEdge:       vk.SamplerAddressModeClampToEdge,
	ClampToBorder:     vk.SamplerAddressModeClampToBorder,
	MirrorClampToEdge: vk.SamplerAddressModeMirrorClampToEdge,
}

// BorderColors enumerates the border colors available for ClampToBorder.
type BorderColors int32 //enums:enum -trim-prefix Border

const (
	BorderTrans BorderColors = iota
	BorderBlack
	BorderWhite
)

func (bc BorderColors) VkColor() vk.BorderColor {
	return VulkanBorderColors[bc]
}

var VulkanBorderColors = map[BorderColors]vk.BorderColor{
	BorderTrans: vk.BorderColorIntTransparentBlack,
	BorderBlack: vk.BorderColorIntOpaqueBlack,
	BorderWhite: vk.BorderColorIntOpaqueWhite,
}

// ConfigSampler creates (or replaces) tc.Sampler per the given modes.
func (tc *TextureContext) ConfigSampler(uMode, vMode, wMode SamplerModes, border BorderColors) error {
	if tc.Sampler != vk.NullSampler {
		vk.DestroySampler(tc.Device, tc.Sampler, nil)
	}
	var samp vk.Sampler
	ret := vk.CreateSampler(tc.Device, &vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            uMode.VkMode(),
		AddressModeV:            vMode.VkMode(),
		AddressModeW:            wMode.VkMode(),
		AnisotropyEnable:        vk.True,
		MaxAnisotropy:           tc.GPU.GPUProperties.Limits.MaxSamplerAnisotropy,
		BorderColor:             border.VkColor(),
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		MipmapMode:              vk.SamplerMipmapModeLinear,
	}, nil, &samp)
	if err := checkResult("vkCreateSampler", ret); err != nil {
		return err
	}
	tc.Sampler = samp
	return nil
}
