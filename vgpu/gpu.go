// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	"log/slog"

	vk "github.com/goki/vulkan"
)

// GPU represents the Vulkan instance and a selected physical device.
// One GPU is shared by every Device (window or offscreen) created on top
// of it.
type GPU struct {
	// AppName is used when creating the Vulkan instance.
	AppName string

	// Instance is the VkInstance.
	Instance vk.Instance

	// GPU is the selected physical device.
	GPU vk.PhysicalDevice

	// GPUProperties holds the properties (including Limits) of GPU.
	GPUProperties vk.PhysicalDeviceProperties

	// MemoryProperties holds the memory heap and type info of GPU, used
	// by the MemoryAllocator to find a memory type index for a request.
	MemoryProperties vk.PhysicalDeviceMemoryProperties

	// DeviceExts are the device extension names to enable.
	DeviceExts []string

	// ValidationLayers are the validation layer names to enable; non-empty
	// only in debug builds.
	ValidationLayers []string

	// EnabledOpts records which optional physical device features were
	// requested and found supported.
	EnabledOpts map[string]bool

	// DeviceFeaturesNeeded holds extension-specific feature structs; device
	// creation does not read it and chains nothing into pNext of
	// VkDeviceCreateInfo.
	DeviceFeaturesNeeded any
}

// SetGPUOpts is the hook Device init calls with its baseline features and
// EnabledOpts. It leaves feats unchanged, so only the baseline features
// Device requests are enabled.
func (gp *GPU) SetGPUOpts(feats *vk.PhysicalDeviceFeatures, opts map[string]bool) {
	// No optional-feature wiring beyond the baseline features Device
	// already requests; kept as an extension point for callers that need
	// additional VkPhysicalDeviceFeatures bits turned on.
	_ = feats
	_ = opts
}

// Init creates the VkInstance and selects a physical device, querying its
// properties and memory properties. appName is used in VkApplicationInfo.
func (gp *GPU) Init(appName string, debug bool) error {
	gp.AppName = appName
	if debug {
		gp.ValidationLayers = []string{"VK_LAYER_KHRONOS_validation"}
	}

	appInfo := vk.ApplicationInfo{
		SType:         vk.StructureTypeApplicationInfo,
		PApplicationName: appName + "\x00",
		ApiVersion:    vk.MakeVersion(1, 1, 0),
	}
	instInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledLayerCount:       uint32(len(gp.ValidationLayers)),
		PpEnabledLayerNames:     gp.ValidationLayers,
	}
	var inst vk.Instance
	if err := checkResult("vkCreateInstance", vk.CreateInstance(&instInfo, nil, &inst)); err != nil {
		return WrapError(DeviceLost, "failed to create Vulkan instance", err)
	}
	gp.Instance = inst
	vk.InitInstance(inst)

	var gpuCount uint32
	vk.EnumeratePhysicalDevices(inst, &gpuCount, nil)
	if gpuCount == 0 {
		return NewErrorKind(DeviceLost, "no Vulkan-capable physical devices found")
	}
	devices := make([]vk.PhysicalDevice, gpuCount)
	vk.EnumeratePhysicalDevices(inst, &gpuCount, devices)
	gp.GPU = devices[0] // TODO: score and pick the best discrete GPU.

	vk.GetPhysicalDeviceProperties(gp.GPU, &gp.GPUProperties)
	gp.GPUProperties.Deref()
	gp.GPUProperties.Limits.Deref()

	vk.GetPhysicalDeviceMemoryProperties(gp.GPU, &gp.MemoryProperties)
	gp.MemoryProperties.Deref()

	if debug {
		slog.Debug("vgpu.GPU.Init: selected device",
			"name", vk.ToString(gp.GPUProperties.DeviceName[:]))
	}
	return nil
}

// Destroy destroys the VkInstance.
func (gp *GPU) Destroy() {
	if gp.Instance != nil {
		vk.DestroyInstance(gp.Instance, nil)
		gp.Instance = nil
	}
}

// MaxMemoryAllocationSize returns a fixed 1 GiB cap, used by the
// MemoryAllocator to cap fresh page sizes (§4.1); the device's own
// maxMemoryAllocationSize limit is not queried.
func (gp *GPU) MaxMemoryAllocationSize() uint64 {
	// Not all versions of VkPhysicalDeviceLimits expose this directly
	// without VK_KHR_maintenance3; fall back to a generous default.
	const fallback = 1 << 30 // 1 GiB
	return fallback
}
