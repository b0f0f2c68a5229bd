// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// DefaultPageSize is the size of a fresh MemoryPage allocated when no
// existing page has enough free space for a request.
const DefaultPageSize vk.DeviceSize = 64 << 20 // 64 MiB

// freeRange is one contiguous free span within a MemoryPage, kept in an
// address-ordered, coalesced list.
type freeRange struct {
	Offset vk.DeviceSize
	Size   vk.DeviceSize
}

// MemoryPage is a single VkDeviceMemory allocation, sub-allocated by an
// address-ordered first-fit free list.
type MemoryPage struct {
	Device       vk.Device
	Memory       vk.DeviceMemory
	TypeIndex    uint32
	Size         vk.DeviceSize
	LinearTiling bool

	mu      sync.Mutex
	free    []freeRange
	mapped  unsafe.Pointer
	mapRefs int
}

// fits reports whether this page can satisfy an allocation with the given
// size and alignment without further splitting analysis; used only for a
// coarse first-pass page selection before the caller attempts the precise
// free-list search.
func (mp *MemoryPage) fits(size, align vk.DeviceSize) bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	for _, fr := range mp.free {
		aligned := alignUp(fr.Offset, align)
		if aligned+size <= fr.Offset+fr.Size {
			return true
		}
	}
	return false
}

// alloc searches the free list for the first range that fits size aligned
// to align, splits it, and returns the block offset. ok is false if no
// range in this page satisfies the request.
func (mp *MemoryPage) alloc(size, align vk.DeviceSize) (offset vk.DeviceSize, ok bool) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	for i, fr := range mp.free {
		aligned := alignUp(fr.Offset, align)
		pad := aligned - fr.Offset
		if aligned+size > fr.Offset+fr.Size {
			continue
		}
		remaining := fr.Size - pad - size
		tailOffset := aligned + size
		switch {
		case pad == 0 && remaining == 0:
			mp.free = append(mp.free[:i], mp.free[i+1:]...)
		case pad == 0:
			mp.free[i] = freeRange{Offset: tailOffset, Size: remaining}
		case remaining == 0:
			mp.free[i] = freeRange{Offset: fr.Offset, Size: pad}
		default:
			mp.free[i] = freeRange{Offset: fr.Offset, Size: pad}
			mp.free = append(mp.free, freeRange{})
			copy(mp.free[i+2:], mp.free[i+1:])
			mp.free[i+1] = freeRange{Offset: tailOffset, Size: remaining}
		}
		return aligned, true
	}
	return 0, false
}

// release returns [offset, offset+size) to the free list, coalescing with
// any adjacent free range.
func (mp *MemoryPage) release(offset, size vk.DeviceSize) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	fr := freeRange{Offset: offset, Size: size}
	i := 0
	for i < len(mp.free) && mp.free[i].Offset < fr.Offset {
		i++
	}
	mp.free = append(mp.free, freeRange{})
	copy(mp.free[i+1:], mp.free[i:])
	mp.free[i] = fr

	// coalesce with following neighbor
	if i+1 < len(mp.free) && mp.free[i].Offset+mp.free[i].Size == mp.free[i+1].Offset {
		mp.free[i].Size += mp.free[i+1].Size
		mp.free = append(mp.free[:i+1], mp.free[i+2:]...)
	}
	// coalesce with preceding neighbor
	if i > 0 && mp.free[i-1].Offset+mp.free[i-1].Size == mp.free[i].Offset {
		mp.free[i-1].Size += mp.free[i].Size
		mp.free = append(mp.free[:i], mp.free[i+1:]...)
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

// MemoryBlock is a live sub-allocation returned by MemoryAllocator.Allocate.
// Free must be called exactly once to return it to its page's free list.
type MemoryBlock struct {
	Page   *MemoryPage
	Offset vk.DeviceSize
	Size   vk.DeviceSize
}

// BindImage/BindBuffer attach a VkImage/VkBuffer to the page's
// VkDeviceMemory at this block's offset.

func (mb *MemoryBlock) BindImage(image vk.Image) error {
	ret := vk.BindImageMemory(mb.Page.Device, image, mb.Page.Memory, mb.Offset)
	return checkResult("vkBindImageMemory", ret)
}

func (mb *MemoryBlock) BindBuffer(buffer vk.Buffer) error {
	ret := vk.BindBufferMemory(mb.Page.Device, buffer, mb.Page.Memory, mb.Offset)
	return checkResult("vkBindBufferMemory", ret)
}

// Map returns a scoped MemoryMapping over this block's range. The mapping
// must be closed (Unmap) to release the page's map reference count.
func (mb *MemoryBlock) Map() (*MemoryMapping, error) {
	mp := mb.Page
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if mp.mapped == nil {
		var ptr unsafe.Pointer
		ret := vk.MapMemory(mp.Device, mp.Memory, 0, vk.DeviceSize(vk.WholeSize), 0, &ptr)
		if err := checkResult("vkMapMemory", ret); err != nil {
			return nil, WrapError(AllocationFailed, "failed to map device memory", err)
		}
		mp.mapped = ptr
	}
	mp.mapRefs++
	base := uintptr(mp.mapped) + uintptr(mb.Offset)
	return &MemoryMapping{page: mp, Ptr: unsafe.Pointer(base), Size: mb.Size}, nil
}

// MemoryMapping is a scoped view over a mapped memory range. The owning
// page's mutex is held only inside Map and Unmap, not for the lifetime of
// the mapping, and Unmap only drops the page's map reference count: the
// page memory stays mapped until the page is freed. Modeled on the
// original implementation's RAII mapping guard.
type MemoryMapping struct {
	page *MemoryPage
	Ptr  unsafe.Pointer
	Size vk.DeviceSize
}

// Bytes views the mapping as a byte slice for CPU-side writes/reads.
func (mm *MemoryMapping) Bytes() []byte {
	return unsafe.Slice((*byte)(mm.Ptr), int(mm.Size))
}

// Unmap releases this mapping's reference; the underlying VkDeviceMemory
// stays mapped (persistently-mapped staging) until the page itself is
// freed, since re-mapping on every transfer is needless overhead for the
// host-visible heaps this module maps.
func (mm *MemoryMapping) Unmap() {
	mm.page.mu.Lock()
	defer mm.page.mu.Unlock()
	if mm.page.mapRefs > 0 {
		mm.page.mapRefs--
	}
}

// MemoryAllocator sub-allocates device memory for buffers and images out
// of a small number of large VkDeviceMemory pages, grouped by memory type
// index. Exhaustion is reported as AllocationFailed after a page-shrink
// retry and a caller-driven frame-queue reclamation pass.
type MemoryAllocator struct {
	GPU    *GPU
	Device vk.Device

	// Drain, when set, blocks until every frame-in-flight has finished its
	// prior submission and flushed its deferred-destroy queue (returning
	// any MemoryBlocks it was holding onto a page's free list). Allocate
	// calls this - and then ReclaimIdlePages - as the last resort §4.1
	// calls for once a fresh page cannot be allocated at any size.
	Drain func()

	mu    sync.Mutex
	pages map[uint32][]*MemoryPage
}

// Init prepares the allocator for use.
func (ma *MemoryAllocator) Init(gp *GPU, dev vk.Device) {
	ma.GPU = gp
	ma.Device = dev
	ma.pages = make(map[uint32][]*MemoryPage)
}

// Allocate satisfies reqs with the given required memory properties,
// returning a MemoryBlock bound to a page of the chosen memory type.
// linearTiling distinguishes buffer/linear-image pages from optimal-tiling
// image pages, since Vulkan forbids mixing them within one VkDeviceMemory
// on some implementations (bufferImageGranularity).
func (ma *MemoryAllocator) Allocate(reqs vk.MemoryRequirements, properties vk.MemoryPropertyFlagBits, linearTiling bool) (*MemoryBlock, error) {
	typeIndex, ok := FindRequiredMemoryType(ma.GPU.MemoryProperties, vk.MemoryPropertyFlagBits(reqs.MemoryTypeBits), properties)
	if !ok {
		return nil, NewErrorKind(AllocationFailed, "no memory type satisfies the requested properties")
	}

	size := vk.DeviceSize(reqs.Size)
	align := vk.DeviceSize(reqs.Alignment)

	block, err := ma.tryExistingPages(typeIndex, linearTiling, size, align)
	if err == nil {
		return block, nil
	}

	pageSize := size
	if pageSize < DefaultPageSize {
		pageSize = DefaultPageSize
	}
	if max := ma.GPU.MaxMemoryAllocationSize(); pageSize > max {
		pageSize = max
	}
	if pageSize < size {
		// the request itself exceeds the device's max single allocation;
		// nothing further can help.
		return nil, NewErrorKind(AllocationFailed, "requested allocation exceeds maxMemoryAllocationSize")
	}

	page, err := ma.newPage(typeIndex, pageSize, linearTiling)
	if err != nil {
		// retry once with a page sized to exactly the request, in case the
		// failure was a host memory/fragmentation issue rather than a hard
		// device limit.
		page, err = ma.newPage(typeIndex, size, linearTiling)
	}
	if err != nil && ma.Drain != nil {
		// last resort (§4.1): block until the frame queue is empty so every
		// deferred free lands back on its page's free list, reclaim pages
		// that are now entirely idle, and retry once more before giving up.
		ma.Drain()
		ma.ReclaimIdlePages()
		if block, rerr := ma.tryExistingPages(typeIndex, linearTiling, size, align); rerr == nil {
			return block, nil
		}
		page, err = ma.newPage(typeIndex, pageSize, linearTiling)
		if err != nil {
			page, err = ma.newPage(typeIndex, size, linearTiling)
		}
	}
	if err != nil {
		return nil, WrapError(AllocationFailed, "failed to allocate a fresh memory page", err)
	}

	ma.mu.Lock()
	ma.pages[typeIndex] = append(ma.pages[typeIndex], page)
	ma.mu.Unlock()

	offset, ok := page.alloc(size, align)
	if !ok {
		return nil, NewErrorKind(AllocationFailed, "fresh page too small for its own allocation request")
	}
	return &MemoryBlock{Page: page, Offset: offset, Size: size}, nil
}

func (ma *MemoryAllocator) tryExistingPages(typeIndex uint32, linearTiling bool, size, align vk.DeviceSize) (*MemoryBlock, error) {
	ma.mu.Lock()
	pages := ma.pages[typeIndex]
	ma.mu.Unlock()
	for _, p := range pages {
		if p.LinearTiling != linearTiling {
			continue
		}
		if offset, ok := p.alloc(size, align); ok {
			return &MemoryBlock{Page: p, Offset: offset, Size: size}, nil
		}
	}
	return nil, NewErrorKind(AllocationFailed, "no existing page satisfies the request")
}

func (ma *MemoryAllocator) newPage(typeIndex uint32, size vk.DeviceSize, linearTiling bool) (*MemoryPage, error) {
	var mem vk.DeviceMemory
	ret := vk.AllocateMemory(ma.Device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: typeIndex,
	}, nil, &mem)
	if err := checkResult("vkAllocateMemory", ret); err != nil {
		return nil, err
	}
	return &MemoryPage{
		Device:       ma.Device,
		Memory:       mem,
		TypeIndex:    typeIndex,
		Size:         size,
		LinearTiling: linearTiling,
		free:         []freeRange{{Offset: 0, Size: size}},
	}, nil
}

// Free returns block's range to its page's free list.
func (ma *MemoryAllocator) Free(block *MemoryBlock) {
	if block == nil || block.Page == nil {
		return
	}
	block.Page.release(block.Offset, block.Size)
}

// ReclaimIdlePages walks every page of every memory type and destroys
// pages that are entirely free, releasing them back to the device. Called
// after a frame queue drains (§4.3's deferred-destroy flush), as a last
// resort before an allocation reports AllocationFailed.
func (ma *MemoryAllocator) ReclaimIdlePages() {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	for typeIndex, pages := range ma.pages {
		kept := pages[:0]
		for _, p := range pages {
			p.mu.Lock()
			idle := len(p.free) == 1 && p.free[0].Size == p.Size && p.mapRefs == 0
			p.mu.Unlock()
			if idle {
				if p.mapped != nil {
					vk.UnmapMemory(ma.Device, p.Memory)
				}
				vk.FreeMemory(ma.Device, p.Memory, nil)
				continue
			}
			kept = append(kept, p)
		}
		ma.pages[typeIndex] = kept
	}
}

// Destroy frees every page this allocator owns, regardless of occupancy.
// Callers must have already destroyed every VkBuffer/VkImage bound to
// blocks from this allocator.
func (ma *MemoryAllocator) Destroy() {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	for _, pages := range ma.pages {
		for _, p := range pages {
			if p.mapped != nil {
				vk.UnmapMemory(ma.Device, p.Memory)
			}
			vk.FreeMemory(ma.Device, p.Memory, nil)
		}
	}
	ma.pages = nil
}

// FindRequiredMemoryType finds a memory type index among typeBits whose
// property flags are a superset of required.
func FindRequiredMemoryType(properties vk.PhysicalDeviceMemoryProperties, typeBits vk.MemoryPropertyFlagBits, required vk.MemoryPropertyFlagBits) (uint32, bool) {
	for i := uint32(0); i < vk.MaxMemoryTypes; i++ {
		if typeBits&(vk.MemoryPropertyFlagBits(1)<<i) == 0 {
			continue
		}
		properties.MemoryTypes[i].Deref()
		flags := properties.MemoryTypes[i].PropertyFlags
		if flags&vk.MemoryPropertyFlags(required) == vk.MemoryPropertyFlags(required) {
			return i, true
		}
	}
	return 0, false
}
