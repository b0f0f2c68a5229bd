// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package descset

import (
	"testing"

	"github.com/stretchr/testify/assert"

	vk "github.com/goki/vulkan"
)

func TestAlignUpRoundsToNextMultiple(t *testing.T) {
	assert.Equal(t, vk.DeviceSize(256), alignUp(1, 256))
	assert.Equal(t, vk.DeviceSize(256), alignUp(256, 256))
	assert.Equal(t, vk.DeviceSize(512), alignUp(257, 256))
}

func TestAlignUpZeroAlignIsNoOp(t *testing.T) {
	assert.Equal(t, vk.DeviceSize(123), alignUp(123, 0))
}

func TestArenaResetRewindsCursor(t *testing.T) {
	a := &DynamicArena{Size: 4096, Align: 256}
	a.cursor = 2048
	a.Reset()
	assert.Zero(t, a.Used())
}

func TestArenaUsedTracksCursor(t *testing.T) {
	a := &DynamicArena{Size: 4096, Align: 256}
	a.cursor = alignUp(300, a.Align)
	assert.Equal(t, vk.DeviceSize(512), a.Used())
}
