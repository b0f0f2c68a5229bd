// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gsg

import vk "github.com/goki/vulkan"

// Descriptor set indices fixed by this module's pipeline layout (§6):
// the GSG resolves the texture set through descset, binds one shared
// empty set at the light and shader attribute indices, and set 3 is
// always the dynamic-uniform arena.
const (
	LightAttrib     = 0
	TextureAttrib   = 1
	ShaderAttrib    = 2
	DynamicUniforms = 3
)

// Config holds the GSG's tunable resource sizes and frame pipelining
// depth, following the teacher's own Defaults()-method convention
// (vgpu/texture.go's sampler defaults, vgpu's fence-guarded frame cycle)
// rather than an external config-file library.
type Config struct {
	// UniformArenaSize is the size in bytes of each frame-in-flight's
	// dynamic-uniform ring arena.
	UniformArenaSize vk.DeviceSize

	// StagingArenaSize is the size in bytes of each frame-in-flight's
	// upload staging arena.
	StagingArenaSize vk.DeviceSize

	// ColorPaletteSize is the number of render.Color entries the flat-color
	// batching palette can hold per frame.
	ColorPaletteSize int

	// FramesInFlight is the number of frames pipelined concurrently.
	FramesInFlight int

	// DepthFormat/Samples seed the default FbConfig used for the
	// swapchain's render pass. ColorFormat is not read: that FbConfig
	// takes its color format from the swapchain (Swapchain.Format).
	ColorFormat vk.Format
	DepthFormat vk.Format
	Samples     vk.SampleCountFlagBits

	// ClearColor is the color attachment's load-op clear value
	// (begin_frame always clears; §4.4's LOAD/DONT_CARE paths apply only
	// to render-to-texture targets outside the swapchain's own pass).
	ClearColor [4]float32
}

// Defaults returns the module's baseline configuration: a 4 MiB uniform
// arena, a 16 MiB staging arena, a 4096-entry color palette, and
// double-buffered (2 frames in flight) pipelining.
func Defaults() Config {
	return Config{
		UniformArenaSize: 4 << 20,
		StagingArenaSize: 16 << 20,
		ColorPaletteSize: 4096,
		FramesInFlight:   2,
		ColorFormat:      vk.FormatB8g8r8a8Srgb,
		DepthFormat:      vk.FormatD32Sfloat,
		Samples:          vk.SampleCount1Bit,
		ClearColor:       [4]float32{0, 0, 0, 1},
	}
}
