// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import "image"

// WrapMode mirrors vgpu.SamplerModes at the asset level, so render
// callers needn't import vgpu just to describe a sampler.
type WrapMode int32 //enums:enum

const (
	WrapRepeat WrapMode = iota
	WrapMirroredRepeat
	WrapClampToEdge
	WrapClampToBorder
	WrapMirrorClampToEdge
)

// SamplerState is the user-facing sampler configuration for a Texture,
// translated to a vgpu.TextureContext sampler by the GSG when the
// texture is prepared.
type SamplerState struct {
	WrapU, WrapV, WrapW WrapMode
	Anisotropic         bool
}

// DefaultSampler returns the baseline repeat-wrap, anisotropic sampler.
func DefaultSampler() SamplerState {
	return SamplerState{
		WrapU: WrapRepeat, WrapV: WrapRepeat, WrapW: WrapRepeat,
		Anisotropic: true,
	}
}

// Texture is a user-facing image asset: CPU-side pixel data plus the
// format/mipmap choices the GSG's descset/pipeline packages need when
// preparing a vgpu.TextureContext for it. A Texture is prepared once per
// GSG and thereafter looked up by the pointer identity of this struct.
type Texture struct {
	Name string

	// Image is the CPU-side RGBA8 pixel data for mip level 0. The GSG
	// prepares and uploads mip level 0 only; it does not read
	// GenerateMipmaps, and no further levels are produced.
	Image *image.RGBA

	GenerateMipmaps bool
	Sampler         SamplerState

	// dirty is set by SetImage and cleared once the GSG has re-uploaded
	// this texture's device image.
	dirty bool

	// preparedGeneration is not read or written anywhere in this module;
	// residency is tracked only by each GSG's pointer-keyed texture map
	// together with the dirty flag.
	preparedGeneration uint64
}

// SetImage replaces this texture's pixel data and marks it for
// re-upload.
func (tx *Texture) SetImage(img *image.RGBA) {
	tx.Image = img
	tx.dirty = true
}

// IsDirty reports whether this texture's device copy needs refreshing.
func (tx *Texture) IsDirty() bool { return tx.dirty }

// ClearDirty marks this texture's device copy as up to date.
func (tx *Texture) ClearDirty() { tx.dirty = false }
