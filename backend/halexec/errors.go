// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halexec

import "errors"

var (
	// ErrUnsignaled is returned when waiting on a semaphore no submission
	// has signalled since its last wait.
	ErrUnsignaled = errors.New("halexec: wait on unsignaled semaphore")

	// ErrTimeout is returned when a fence does not reach its value within
	// the configured timeout.
	ErrTimeout = errors.New("halexec: fence wait timed out")

	// ErrForeignSemaphore is returned for a semaphore not created by this
	// device.
	ErrForeignSemaphore = errors.New("halexec: semaphore not created by this device")

	// ErrForeignCommandBuffer is returned for a command buffer not produced
	// by FinishCommands on this device.
	ErrForeignCommandBuffer = errors.New("halexec: command buffer not recorded by this device")

	// ErrOutstandingCommands is returned by ResetCommandPool when encoders
	// or recorded buffers were never returned to the device.
	ErrOutstandingCommands = errors.New("halexec: command buffers outstanding at pool reset")

	// ErrNoHAL is returned by FromProvider when the provider does not
	// expose HAL objects.
	ErrNoHAL = errors.New("halexec: provider does not expose HAL types")

	// ErrDestroyed is returned after Destroy.
	ErrDestroyed = errors.New("halexec: device destroyed")
)
