// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

// Shader is a user-facing shader asset: the SPIR-V bytecode for each
// stage this shader defines. Reflected and transformed once per GSG by
// the shader package, then cached by the pointer identity of this
// struct, matching the original implementation's per-RenderAttrib
// shader-context caching.
type Shader struct {
	Name string

	VertexCode   []byte
	FragmentCode []byte
	ComputeCode  []byte

	// Inputs lists the ShaderInputBindings this shader's uniform blocks
	// expect to be fed from, in declaration order (§6).
	Inputs []ShaderInputBinding
}

// IsCompute reports whether this Shader is a compute shader (only
// ComputeCode set) rather than a graphics vertex+fragment pair.
func (s *Shader) IsCompute() bool {
	return len(s.ComputeCode) > 0
}
