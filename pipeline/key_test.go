// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vkscene/vkscene/render"
	"github.com/vkscene/vkscene/vgpu"
)

func TestKeyEqualityIsByValueAndPointerIdentity(t *testing.T) {
	sh := &render.Shader{}
	vf := &render.GeomVertexFormat{}
	fb := vgpu.FbConfig{}
	var st render.State
	st.Defaults()

	a := FromState(&st, vf, render.TopologyTriangles, sh, fb)
	b := FromState(&st, vf, render.TopologyTriangles, sh, fb)
	assert.Equal(t, a, b)
	assert.True(t, a == b)

	otherSh := &render.Shader{}
	c := FromState(&st, vf, render.TopologyTriangles, otherSh, fb)
	assert.False(t, a == c)
}

func TestKeyExcludesLineWidth(t *testing.T) {
	sh := &render.Shader{}
	vf := &render.GeomVertexFormat{}
	fb := vgpu.FbConfig{}
	var st render.State
	st.Defaults()
	st.LineWidth = 1

	a := FromState(&st, vf, render.TopologyTriangles, sh, fb)
	st.LineWidth = 5
	b := FromState(&st, vf, render.TopologyTriangles, sh, fb)

	// LineWidth is dynamic state, not pipeline identity: two states that
	// differ only in LineWidth must key the same pipeline.
	assert.Equal(t, a, b)
}
