// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import "github.com/chewxy/math32"

// Mat4 is a column-major 4x4 matrix, matching the layout std140 uniform
// blocks and Vulkan's column-major convention expect.
type Mat4 [16]float32

// Identity4 returns the 4x4 identity matrix.
func Identity4() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Mul multiplies a*b (a applied after b, i.e. result = a * b in
// column-major composition order).
func (a Mat4) Mul(b Mat4) Mat4 {
	var r Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += a[k*4+row] * b[col*4+k]
			}
			r[col*4+row] = sum
		}
	}
	return r
}

// VulkanDepthCorrection is the fixed matrix that remaps OpenGL-style clip
// space z in [-1,1] to Vulkan's [0,1] depth range: z' = (z+w)/2. Folded
// into the projection supplied by TransformState instead of touching
// every vertex shader's depth write (§9 open question resolution).
var VulkanDepthCorrection = Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// TransformState is the node-to-view and projection matrix pair a draw
// call needs to build its MVP uniform, mirroring the original
// implementation's CLerpNodePathInterval-adjacent transform composition
// but reduced to the two matrices the shader actually consumes.
type TransformState struct {
	ModelView  Mat4
	Projection Mat4
}

// Identity returns a TransformState with both matrices set to identity.
func Identity() TransformState {
	return TransformState{ModelView: Identity4(), Projection: Identity4()}
}

// MVP returns the combined, depth-range-corrected model-view-projection
// matrix this state implies.
func (ts TransformState) MVP() Mat4 {
	return VulkanDepthCorrection.Mul(ts.Projection).Mul(ts.ModelView)
}

// Perspective builds a right-handed perspective projection matrix with
// vertical field of view fovYRadians, aspect ratio aspect, and near/far
// clip planes.
func Perspective(fovYRadians, aspect, near, far float32) Mat4 {
	f := 1 / math32.Tan(fovYRadians/2)
	nf := 1 / (near - far)
	return Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, (far + near) * nf, -1,
		0, 0, 2 * far * near * nf, 0,
	}
}
