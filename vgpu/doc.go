// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package vgpu implements the frame lifecycle, GPU-CPU synchronization, and
resource state tracking for a Vulkan rendering backend, in Go, using the
https://github.com/goki/vulkan bindings.

It owns command-buffer recording, resource lifetimes, swapchain
presentation, and the pipeline barriers that keep reads and writes to a
given texture or buffer correctly ordered across command buffers.
*/
package vgpu

// Debug enables additional diagnostic logging and Vulkan validation layers.
var Debug = false
