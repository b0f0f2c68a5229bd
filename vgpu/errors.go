// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// ErrorKind classifies a failure so callers can decide whether to retry,
// skip a frame, or tear down the GSG entirely.
type ErrorKind int

const (
	// DeviceLost is fatal: the VkDevice must be recreated from scratch.
	DeviceLost ErrorKind = iota

	// OutOfMemory is a host or device allocation failure; the allocator
	// retries with smaller pages and then blocks for frame reclamation
	// before this is returned to the caller.
	OutOfMemory

	// SurfaceOutOfDate means the swapchain must be recreated; the frame
	// in progress is aborted but this is not a user-visible error.
	SurfaceOutOfDate

	// Suboptimal means the swapchain still works but should be recreated
	// at the next convenient opportunity.
	Suboptimal

	// ValidationFailed is reported by the Vulkan validation layer callback.
	ValidationFailed

	// AllocationFailed means every heap capable of satisfying a memory
	// request has been exhausted.
	AllocationFailed

	// ShaderCompileFailed means SPIR-V reflection or module transformation
	// could not produce a valid module.
	ShaderCompileFailed

	// PipelineCreateFailed means vkCreateGraphicsPipelines failed for a
	// fully-specified PipelineKey.
	PipelineCreateFailed
)

func (k ErrorKind) String() string {
	switch k {
	case DeviceLost:
		return "DeviceLost"
	case OutOfMemory:
		return "OutOfMemory"
	case SurfaceOutOfDate:
		return "SurfaceOutOfDate"
	case Suboptimal:
		return "Suboptimal"
	case ValidationFailed:
		return "ValidationFailed"
	case AllocationFailed:
		return "AllocationFailed"
	case ShaderCompileFailed:
		return "ShaderCompileFailed"
	case PipelineCreateFailed:
		return "PipelineCreateFailed"
	default:
		return "Unknown"
	}
}

// Error is the error type returned across package boundaries in this
// module. It carries an ErrorKind so callers can branch on it with
// errors.As, plus an optional wrapped cause (typically a resultError).
type Error struct {
	Kind  ErrorKind
	Msg   string
	Cause error
}

func NewErrorKind(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func WrapError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// resultError wraps a non-success VkResult as a plain Go error.
// It replaces the teacher's IfPanic(NewError(ret)) idiom: construction-time
// Vulkan failures are threaded back through explicit returns instead of
// panicking, per this module's no-panic error propagation policy.
type resultError struct {
	Result vk.Result
	Call   string
}

func (e *resultError) Error() string {
	return fmt.Sprintf("vulkan: %s failed: %d", e.Call, e.Result)
}

// checkResult returns a non-nil error if ret is not vk.Success.
func checkResult(call string, ret vk.Result) error {
	if ret == vk.Success {
		return nil
	}
	return &resultError{Result: ret, Call: call}
}

// isDeviceLost reports whether ret indicates the device was lost, the
// one terminal signal that invalidates a GSG (§5, §7).
func isDeviceLost(ret vk.Result) bool {
	return ret == vk.ErrorDeviceLost
}
