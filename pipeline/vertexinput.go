// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"fmt"

	"github.com/vkscene/vkscene/render"

	vk "github.com/goki/vulkan"
)

// vertexInputState builds a single-binding VkPipelineVertexInputStateCreateInfo
// from vf, matching each column to a shader input location by name. The
// original implementation resolves vertex columns to shader attributes by
// semantic name at GSG prepare time; this module does the equivalent
// lookup against locations assigned in locByName.
func vertexInputState(vf *render.GeomVertexFormat, locByName map[string]uint32) (vk.PipelineVertexInputStateCreateInfo, []vk.VertexInputBindingDescription, []vk.VertexInputAttributeDescription, error) {
	bindings := []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    vf.Stride,
		InputRate: vk.VertexInputRateVertex,
	}}

	attrs := make([]vk.VertexInputAttributeDescription, 0, len(vf.Columns))
	for _, col := range vf.Columns {
		loc, ok := locByName[col.Name]
		if !ok {
			return vk.PipelineVertexInputStateCreateInfo{}, nil, nil, fmt.Errorf("pipeline: shader has no input named %q", col.Name)
		}
		format, ok := col.Type.VkFormat(col.Components)
		if !ok {
			return vk.PipelineVertexInputStateCreateInfo{}, nil, nil, fmt.Errorf("pipeline: unsupported vertex column %q: %d components", col.Name, col.Components)
		}
		attrs = append(attrs, vk.VertexInputAttributeDescription{
			Location: loc,
			Binding:  0,
			Format:   format,
			Offset:   col.Offset,
		})
	}

	info := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attrs)),
		PVertexAttributeDescriptions:    attrs,
	}
	return info, bindings, attrs, nil
}
