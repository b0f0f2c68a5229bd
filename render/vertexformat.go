// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import vk "github.com/goki/vulkan"

// NumericType is the per-component storage type of a vertex attribute
// column, independent of its semantic meaning.
type NumericType int32 //enums:enum

const (
	NumericFloat32 NumericType = iota
	NumericUint8Norm
	NumericUint16Norm
	NumericInt16Norm
)

// VulkanFormats maps a (NumericType, component count) pair to the
// VkFormat used for that vertex attribute, in the manner of vgpu's own
// mode-to-Vk enum tables (texture.go's VulkanSamplerModes).
var VulkanFormats = map[NumericType]map[int]vk.Format{
	NumericFloat32: {
		1: vk.FormatR32Sfloat,
		2: vk.FormatR32g32Sfloat,
		3: vk.FormatR32g32b32Sfloat,
		4: vk.FormatR32g32b32a32Sfloat,
	},
	NumericUint8Norm: {
		4: vk.FormatR8g8b8a8Unorm,
	},
	NumericUint16Norm: {
		2: vk.FormatR16g16Unorm,
		4: vk.FormatR16g16b16a16Unorm,
	},
	NumericInt16Norm: {
		2: vk.FormatR16g16Snorm,
		4: vk.FormatR16g16b16a16Snorm,
	},
}

// VkFormat returns the VkFormat for nt with the given component count,
// and false if no such combination is supported.
func (nt NumericType) VkFormat(components int) (vk.Format, bool) {
	byCount, ok := VulkanFormats[nt]
	if !ok {
		return 0, false
	}
	f, ok := byCount[components]
	return f, ok
}

func (nt NumericType) byteSize() uint32 {
	switch nt {
	case NumericFloat32:
		return 4
	case NumericUint16Norm, NumericInt16Norm:
		return 2
	case NumericUint8Norm:
		return 1
	}
	return 4
}

// VertexColumn describes one interleaved attribute within a
// GeomVertexArrayData: its shader input name, storage type, component
// count, and computed byte offset/stride contribution.
type VertexColumn struct {
	Name       string
	Type       NumericType
	Components int
	Offset     uint32
}

// GeomVertexFormat is an ordered set of interleaved vertex columns
// forming one vertex buffer binding, analogous to the original
// GeomVertexFormat/GeomVertexArrayFormat pair collapsed to their
// single-array case (this module does not support multi-array
// interleaving, since no spec scenario needs it).
type GeomVertexFormat struct {
	Columns []VertexColumn
	Stride  uint32
}

// NewGeomVertexFormat lays out columns in order, computing each column's
// byte offset and the format's total stride.
func NewGeomVertexFormat(columns ...VertexColumn) *GeomVertexFormat {
	var offset uint32
	laid := make([]VertexColumn, len(columns))
	for i, c := range columns {
		c.Offset = offset
		laid[i] = c
		offset += c.Type.byteSize() * uint32(c.Components)
	}
	return &GeomVertexFormat{Columns: laid, Stride: offset}
}

// GeomVertexArrayData is the CPU-side backing store for one
// GeomVertexFormat: a flat byte buffer the caller fills according to the
// format's column layout.
type GeomVertexArrayData struct {
	Format *GeomVertexFormat
	Data   []byte
	Count  int
}

// NewGeomVertexArrayData allocates a zeroed backing buffer for count
// vertices of format.
func NewGeomVertexArrayData(format *GeomVertexFormat, count int) *GeomVertexArrayData {
	return &GeomVertexArrayData{
		Format: format,
		Data:   make([]byte, int(format.Stride)*count),
		Count:  count,
	}
}

// PrimitiveTopology selects how index/vertex data groups into primitives.
type PrimitiveTopology int32 //enums:enum

const (
	TopologyTriangles PrimitiveTopology = iota
	TopologyTriangleStrip
	TopologyTriangleFan
	TopologyLines
	TopologyLineStrip
	TopologyPoints
)

// VulkanTopologies maps PrimitiveTopology to VkPrimitiveTopology.
var VulkanTopologies = map[PrimitiveTopology]vk.PrimitiveTopology{
	TopologyTriangles:     vk.PrimitiveTopologyTriangleList,
	TopologyTriangleStrip: vk.PrimitiveTopologyTriangleStrip,
	TopologyTriangleFan:   vk.PrimitiveTopologyTriangleFan,
	TopologyLines:         vk.PrimitiveTopologyLineList,
	TopologyLineStrip:     vk.PrimitiveTopologyLineStrip,
	TopologyPoints:        vk.PrimitiveTopologyPointList,
}

func (t PrimitiveTopology) VkTopology() vk.PrimitiveTopology {
	return VulkanTopologies[t]
}

// IndexType selects the width of GeomPrimitive's index buffer.
type IndexType int32 //enums:enum

const (
	IndexUint16 IndexType = iota
	IndexUint32
)

func (it IndexType) VkIndexType() vk.IndexType {
	if it == IndexUint32 {
		return vk.IndexTypeUint32
	}
	return vk.IndexTypeUint16
}

// GeomPrimitive is an indexed draw over a GeomVertexArrayData: a
// topology plus the raw index bytes.
type GeomPrimitive struct {
	Topology  PrimitiveTopology
	IndexType IndexType
	Indices   []byte
	Count     int
}
