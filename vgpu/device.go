// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	"errors"

	vk "github.com/goki/vulkan"
)

// Device holds a logical device and its associated queue.
type Device struct {

	// logical device
	Device vk.Device

	// queue family index for device
	QueueIndex uint32

	// queue for device
	Queue vk.Queue
}

// Init initializes a device based on QueueFlagBits.
func (dv *Device) Init(gp *GPU, flags vk.QueueFlagBits) error {
	if err := dv.FindQueue(gp, flags); err != nil {
		return err
	}
	return dv.MakeDevice(gp)
}

// FindQueue finds a queue family satisfying flags, storing it in QueueIndex.
func (dv *Device) FindQueue(gp *GPU, flags vk.QueueFlagBits) error {
	var queueCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gp.GPU, &queueCount, nil)
	if queueCount == 0 {
		return errors.New("vgpu: no queue families found on physical device")
	}
	queueProperties := make([]vk.QueueFamilyProperties, queueCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(gp.GPU, &queueCount, queueProperties)

	required := vk.QueueFlags(flags)
	for i := uint32(0); i < queueCount; i++ {
		queueProperties[i].Deref()
		if queueProperties[i].QueueFlags&required != 0 {
			dv.QueueIndex = i
			return nil
		}
	}
	return errors.New("vgpu: could not find a queue family with the requested capabilities")
}

// MakeDevice creates the logical device and its queue, using QueueIndex.
func (dv *Device) MakeDevice(gp *GPU) error {
	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: dv.QueueIndex,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}

	feats := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy:                       vk.True, // used in TextureContext.ConfigSampler
		ShaderSampledImageArrayDynamicIndexing:  vk.True,
		ShaderUniformBufferArrayDynamicIndexing: vk.True,
		ShaderStorageBufferArrayDynamicIndexing: vk.True,
	}
	gp.SetGPUOpts(&feats, gp.EnabledOpts)

	var device vk.Device
	ret := vk.CreateDevice(gp.GPU, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(gp.DeviceExts)),
		PpEnabledExtensionNames: gp.DeviceExts,
		EnabledLayerCount:       uint32(len(gp.ValidationLayers)),
		PpEnabledLayerNames:     gp.ValidationLayers,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{feats},
	}, nil, &device)
	if err := checkResult("vkCreateDevice", ret); err != nil {
		return WrapError(DeviceLost, "failed to create logical device", err)
	}
	dv.Device = device

	var queue vk.Queue
	vk.GetDeviceQueue(dv.Device, dv.QueueIndex, 0, &queue)
	dv.Queue = queue
	return nil
}

func (dv *Device) Destroy() {
	if dv.Device == nil {
		return
	}
	vk.DeviceWaitIdle(dv.Device)
	vk.DestroyDevice(dv.Device, nil)
	dv.Device = nil
}

// WaitIdle waits until the device has finished all outstanding work.
// Used before swapchain recreation (§4.5) and by GSG.Destroy; memory
// reclamation under allocation pressure (§4.1) waits on frame fences
// through MemoryAllocator.Drain instead.
func (dv *Device) WaitIdle() {
	vk.DeviceWaitIdle(dv.Device)
}

// NewGraphicsDevice returns a new Graphics Device, on given GPU.
// This is suitable for no display offscreen rendering.
// Typically use the Surface Device for rendering to a display window.
func NewGraphicsDevice(gp *GPU) (*Device, error) {
	dev := &Device{}
	if err := dev.Init(gp, vk.QueueGraphicsBit); err != nil {
		return nil, err
	}
	return dev, nil
}
