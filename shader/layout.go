// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shader

// FieldKind enumerates the scalar/vector/matrix shapes std140Layout can
// place, enough to cover the uniform blocks this module's pipelines use
// (MVP and related transform matrices, color scale, numeric shader
// inputs).
type FieldKind int

const (
	FieldFloat FieldKind = iota
	FieldVec2
	FieldVec3
	FieldVec4
	FieldMat3
	FieldMat4
	FieldInt
)

func (k FieldKind) baseAlign() uint32 {
	switch k {
	case FieldFloat, FieldInt:
		return 4
	case FieldVec2:
		return 8
	case FieldVec3, FieldVec4:
		return 16
	case FieldMat3, FieldMat4:
		// each column is padded to a vec4 in std140
		return 16
	}
	return 4
}

func (k FieldKind) size() uint32 {
	switch k {
	case FieldFloat, FieldInt:
		return 4
	case FieldVec2:
		return 8
	case FieldVec3:
		return 12
	case FieldVec4:
		return 16
	case FieldMat3:
		return 16 * 3
	case FieldMat4:
		return 16 * 4
	}
	return 4
}

// Field is one member of a std140-laid-out uniform block.
type Field struct {
	Name   string
	Kind   FieldKind
	Offset uint32
}

// Layout is the result of placing a sequence of fields per the std140
// layout rules Vulkan's GLSL uniform blocks use.
type Layout struct {
	Fields []Field
	Size   uint32
}

// Std140Layout places fields in order following std140 alignment rules:
// each field is aligned to its own base alignment (vec3/vec4/matrix
// columns round up to 16 bytes), and the block's total size rounds up to
// a multiple of 16.
func Std140Layout(fields []Field) Layout {
	var offset uint32
	laid := make([]Field, len(fields))
	for i, f := range fields {
		align := f.Kind.baseAlign()
		if rem := offset % align; rem != 0 {
			offset += align - rem
		}
		f.Offset = offset
		laid[i] = f
		offset += f.Kind.size()
	}
	if rem := offset % 16; rem != 0 {
		offset += 16 - rem
	}
	return Layout{Fields: laid, Size: offset}
}
