// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gsg

import (
	"github.com/vkscene/vkscene/vgpu"

	vk "github.com/goki/vulkan"
)

// byteArena is a per-frame host-visible ring buffer used for vertex,
// index, and staging uploads. Geometry is written directly into this
// mapped, host-visible buffer and bound as a vertex/index buffer without
// a separate device-local copy — a deliberate simplification versus the
// original's staged device-local geometry path, reasonable for the
// modest per-frame geometry volumes this module targets (§6's staging
// arena is sized accordingly).
type byteArena struct {
	Buffer *vgpu.BufferContext
	mapped *vgpu.MemoryMapping
	Size   vk.DeviceSize
	cursor vk.DeviceSize
}

func (a *byteArena) init(gp *vgpu.GPU, dev *vgpu.Device, alloc *vgpu.MemoryAllocator, size vk.DeviceSize, usage vk.BufferUsageFlagBits) error {
	bc, err := vgpu.NewBufferContext(gp, dev.Device, alloc, size, usage,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return err
	}
	a.Buffer = bc
	a.Size = size

	mapping, err := bc.Block.Map()
	if err != nil {
		return err
	}
	a.mapped = mapping
	return nil
}

func (a *byteArena) alloc(size int, align vk.DeviceSize) (offset vk.DeviceSize, dst []byte, ok bool) {
	start := alignUp(a.cursor, align)
	if start+vk.DeviceSize(size) > a.Size {
		return 0, nil, false
	}
	buf := a.mapped.Bytes()
	dst = buf[start : start+vk.DeviceSize(size)]
	a.cursor = start + vk.DeviceSize(size)
	return start, dst, true
}

func (a *byteArena) reset() { a.cursor = 0 }

func (a *byteArena) destroy(alloc *vgpu.MemoryAllocator) {
	if a.mapped != nil {
		a.mapped.Unmap()
		a.mapped = nil
	}
	if a.Buffer != nil {
		a.Buffer.Destroy(alloc)
		a.Buffer = nil
	}
}

func alignUp(v, align vk.DeviceSize) vk.DeviceSize {
	if align <= 1 {
		return v
	}
	rem := v % align
	if rem == 0 {
		return v
	}
	return v + (align - rem)
}
