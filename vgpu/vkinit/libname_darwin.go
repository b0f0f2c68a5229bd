// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build darwin && cgo

package vkinit

// DlName is the dynamic library name used to dlopen the Vulkan loader,
// typically installed by the MoltenVK / Vulkan SDK runtime.
const DlName = "libvulkan.1.dylib"
