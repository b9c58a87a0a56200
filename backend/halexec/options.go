// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halexec

import (
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// DefaultFenceTimeout bounds every host-side fence wait.
const DefaultFenceTimeout = 5 * time.Second

// Option configures a Device.
type Option func(*options)

type options struct {
	label         string
	fenceTimeout  time.Duration
	presentQueue  hal.Queue
	surfaceFormat gputypes.TextureFormat
}

func defaultOptions() options {
	return options{
		label:         "halexec",
		fenceTimeout:  DefaultFenceTimeout,
		surfaceFormat: gputypes.TextureFormatBGRA8Unorm,
	}
}

// WithLabel sets the prefix of GPU debug labels created by the device.
func WithLabel(label string) Option {
	return func(o *options) {
		if label != "" {
			o.label = label
		}
	}
}

// WithFenceTimeout bounds host-side fence waits. Non-positive values keep
// DefaultFenceTimeout.
func WithFenceTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.fenceTimeout = d
		}
	}
}

// WithPresentQueue sets a dedicated presentation queue. Without it the
// graphics queue serves both roles.
func WithPresentQueue(q hal.Queue) Option {
	return func(o *options) {
		o.presentQueue = q
	}
}

// WithSurfaceFormat sets the color format reported by SurfaceFormat.
func WithSurfaceFormat(f gputypes.TextureFormat) Option {
	return func(o *options) {
		if f != gputypes.TextureFormatUndefined {
			o.surfaceFormat = f
		}
	}
}
