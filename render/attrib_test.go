// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlteredFromNilPrevIsEverything(t *testing.T) {
	var st State
	st.Defaults()
	assert.Equal(t, AttribAll, st.AlteredFrom(nil))
}

func TestAlteredFromNoChange(t *testing.T) {
	var a, b State
	a.Defaults()
	b.Defaults()
	assert.Zero(t, b.AlteredFrom(&a))
}

func TestAlteredFromSingleSlot(t *testing.T) {
	var a, b State
	a.Defaults()
	b.Defaults()
	b.DepthTest = DepthTestOff

	m := b.AlteredFrom(&a)
	assert.Equal(t, AttribDepthTest, m)
}

func TestAlteredFromMultipleSlots(t *testing.T) {
	var a, b State
	a.Defaults()
	b.Defaults()
	b.CullFace = CullNone
	b.LineWidth = 2

	m := b.AlteredFrom(&a)
	assert.Equal(t, AttribCullFace|AttribLineWidth, m)
	assert.Zero(t, m&AttribDepthTest)
}

func TestAlteredFromTexturesComparesByPointerIdentity(t *testing.T) {
	tex1 := &TextureStage{Unit: 0}
	tex2 := &TextureStage{Unit: 0}

	var a, b State
	a.Defaults()
	b.Defaults()
	a.Textures = []*TextureStage{tex1}
	b.Textures = []*TextureStage{tex2}
	assert.NotZero(t, b.AlteredFrom(&a)&AttribTextures)

	b.Textures = []*TextureStage{tex1}
	assert.Zero(t, b.AlteredFrom(&a)&AttribTextures)
}

func TestAlteredFromTexturesLengthChange(t *testing.T) {
	tex1 := &TextureStage{Unit: 0}

	var a, b State
	a.Defaults()
	b.Defaults()
	a.Textures = []*TextureStage{tex1}
	b.Textures = nil
	assert.NotZero(t, b.AlteredFrom(&a)&AttribTextures)
}
