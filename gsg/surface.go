// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gsg

import (
	"github.com/vkscene/vkscene/vgpu"
)

// Surface extends vgpu.Surface with resize notification, so the GSG can
// recreate its swapchain and dependent framebuffers in response to a
// platform resize event rather than only discovering the change from a
// stale AcquireNext/Present result. No implementation ships in this
// repository; the caller supplies one, and the core packages never
// implement it themselves (§6).
type Surface interface {
	vgpu.Surface

	// NotifyResize registers fn to be called whenever the surface's
	// drawable extent changes. Implementations call fn from the same
	// goroutine that polls platform events.
	NotifyResize(fn func(w, h int))
}
