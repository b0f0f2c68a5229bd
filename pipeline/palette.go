// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"math"

	"github.com/vkscene/vkscene/render"
	"github.com/vkscene/vkscene/vgpu"

	vk "github.com/goki/vulkan"
)

// ColorPalette batches draws that differ only by a flat per-instance
// color into a single pipeline/descriptor binding: instead of rebinding
// a uniform per draw, each draw's color is appended to a storage buffer
// and the fragment shader indexes it by gl_InstanceIndex (or an explicit
// push-constant index, for APIs that draw one instance at a time). This
// is an ADD supplement the distilled spec does not mention but a
// complete backend needs, since per-draw state changes are the most
// common cause of CPU-bound frames in scenes with many flat-colored
// primitives (§4.8).
type ColorPalette struct {
	GPU    *vgpu.GPU
	Device vk.Device

	Buffer *vgpu.BufferContext
	mapped *vgpu.MemoryMapping

	Capacity int
	cursor   int
}

// ColorEntrySize is the std140 size of one render.Color entry (vec4).
const ColorEntrySize = 16

// Init allocates a host-visible storage buffer holding up to capacity
// render.Color entries.
func (cp *ColorPalette) Init(gp *vgpu.GPU, dev *vgpu.Device, alloc *vgpu.MemoryAllocator, capacity int) error {
	cp.GPU = gp
	cp.Device = dev.Device
	cp.Capacity = capacity

	bc, err := vgpu.NewBufferContext(gp, dev.Device, alloc, vk.DeviceSize(capacity*ColorEntrySize),
		vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return err
	}
	cp.Buffer = bc

	mapping, err := bc.Block.Map()
	if err != nil {
		return err
	}
	cp.mapped = mapping
	return nil
}

// Append writes c as the next palette entry and returns its index, or
// ok=false if the palette is full for this frame.
func (cp *ColorPalette) Append(c render.Color) (index int, ok bool) {
	if cp.cursor >= cp.Capacity {
		return 0, false
	}
	index = cp.cursor
	cp.cursor++

	buf := cp.mapped.Bytes()
	off := index * ColorEntrySize
	putFloat32(buf[off:], c.R)
	putFloat32(buf[off+4:], c.G)
	putFloat32(buf[off+8:], c.B)
	putFloat32(buf[off+12:], c.A)
	return index, true
}

// Reset rewinds the palette cursor to 0. Called once per frame alongside
// the dynamic uniform arena's reset.
func (cp *ColorPalette) Reset() {
	cp.cursor = 0
}

func putFloat32(dst []byte, v float32) {
	bits := math.Float32bits(v)
	dst[0] = byte(bits)
	dst[1] = byte(bits >> 8)
	dst[2] = byte(bits >> 16)
	dst[3] = byte(bits >> 24)
}

// Destroy frees the palette's backing buffer.
func (cp *ColorPalette) Destroy(alloc *vgpu.MemoryAllocator) {
	if cp.mapped != nil {
		cp.mapped.Unmap()
		cp.mapped = nil
	}
	if cp.Buffer != nil {
		cp.Buffer.Destroy(alloc)
		cp.Buffer = nil
	}
}
