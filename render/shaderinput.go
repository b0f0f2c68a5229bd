// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import "math"

// ShaderInputBinding is a capability interface supplying one named shader
// uniform's value at draw time, ahead of the dynamic-uniform upload. Each
// kind of input (a matrix, a texture, a scalar) implements this
// separately rather than the GSG special-casing every shader input by
// name, following the original implementation's many small per-kind
// ShaderInputBinding subclasses (shaderInputBinding_impls.cxx).
type ShaderInputBinding interface {
	// Name is the shader uniform block member or sampler name this
	// binding supplies.
	Name() string

	// FetchData writes this binding's current value into dst, returning
	// the number of bytes written. Used for uniform-block members; dst
	// is at least as large as the member's std140 size.
	FetchData(dst []byte, state *State, xform *TransformState) int
}

// MatrixBinding supplies a 4x4 matrix uniform, most commonly the MVP or a
// node-to-view transform.
type MatrixBinding struct {
	BindingName string
	Compute     func(state *State, xform *TransformState) Mat4
}

func (b *MatrixBinding) Name() string { return b.BindingName }

func (b *MatrixBinding) FetchData(dst []byte, state *State, xform *TransformState) int {
	m := b.Compute(state, xform)
	return writeFloats(dst, m[:])
}

// NumericInputBinding supplies a small fixed-size float vector uniform,
// such as a color scale or a material parameter.
type NumericInputBinding struct {
	BindingName string
	Compute     func(state *State, xform *TransformState) []float32
}

func (b *NumericInputBinding) Name() string { return b.BindingName }

func (b *NumericInputBinding) FetchData(dst []byte, state *State, xform *TransformState) int {
	return writeFloats(dst, b.Compute(state, xform))
}

// TextureInputBinding identifies which TextureStage unit a combined
// image/sampler shader input reads from; unlike the other bindings it
// supplies no uniform bytes; the GSG resolves it through descset instead.
type TextureInputBinding struct {
	BindingName string
	Unit        int
}

func (b *TextureInputBinding) Name() string { return b.BindingName }

func (b *TextureInputBinding) FetchData(dst []byte, state *State, xform *TransformState) int {
	return 0
}

func writeFloats(dst []byte, vals []float32) int {
	n := 0
	for _, v := range vals {
		if n+4 > len(dst) {
			break
		}
		bits := math.Float32bits(v)
		dst[n] = byte(bits)
		dst[n+1] = byte(bits >> 8)
		dst[n+2] = byte(bits >> 16)
		dst[n+3] = byte(bits >> 24)
		n += 4
	}
	return n
}
