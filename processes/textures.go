// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package processes

import (
	"fmt"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ImageView is the value carried by image resources: a texture view plus
// the metadata consumers need to build attachments for it.
type ImageView struct {
	View   hal.TextureView
	Format gputypes.TextureFormat
	Width  uint32
	Height uint32

	// Index is the position of the view among its owner's possible values.
	// Consumers key per-view state by it.
	Index int
}

// PassableImageView publishes image views between processes.
type PassableImageView = framegraph.PassableResource[ImageView]

// imageSet holds a set of same-sized textures with one view each. It is
// shared by Swapchain and Image.
type imageSet struct {
	textures []hal.Texture
	views    []hal.TextureView
	format   gputypes.TextureFormat
	width    uint32
	height   uint32
}

// imageSpec describes the textures of an imageSet.
type imageSpec struct {
	label  string
	count  int
	width  uint32
	height uint32
	format gputypes.TextureFormat
	usage  gputypes.TextureUsage
}

// ensure creates or recreates the textures if the spec differs from the
// current set. If it matches and textures exist, this is a no-op.
func (s *imageSet) ensure(device hal.Device, spec imageSpec) error {
	if len(s.textures) == spec.count && s.width == spec.width && s.height == spec.height && s.format == spec.format {
		return nil
	}
	s.destroy(device)
	if spec.width == 0 || spec.height == 0 {
		return fmt.Errorf("processes: %s: empty size %dx%d", spec.label, spec.width, spec.height)
	}

	size := hal.Extent3D{Width: spec.width, Height: spec.height, DepthOrArrayLayers: 1}
	for i := range spec.count {
		tex, err := device.CreateTexture(&hal.TextureDescriptor{
			Label:         fmt.Sprintf("%s_%d", spec.label, i),
			Size:          size,
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        spec.format,
			Usage:         spec.usage,
		})
		if err != nil {
			s.destroy(device)
			return fmt.Errorf("processes: create %s texture %d: %w", spec.label, i, err)
		}
		s.textures = append(s.textures, tex)

		view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
			Label: fmt.Sprintf("%s_%d_view", spec.label, i),
		})
		if err != nil {
			s.destroy(device)
			return fmt.Errorf("processes: create %s view %d: %w", spec.label, i, err)
		}
		s.views = append(s.views, view)
	}

	s.format = spec.format
	s.width = spec.width
	s.height = spec.height
	return nil
}

// imageViews describes the views of the set in creation order.
func (s *imageSet) imageViews() []ImageView {
	out := make([]ImageView, len(s.views))
	for i, v := range s.views {
		out[i] = ImageView{View: v, Format: s.format, Width: s.width, Height: s.height, Index: i}
	}
	return out
}

// destroy releases all textures and views. Safe to call on an empty set.
func (s *imageSet) destroy(device hal.Device) {
	for _, v := range s.views {
		device.DestroyTextureView(v)
	}
	for _, t := range s.textures {
		device.DestroyTexture(t)
	}
	s.views = nil
	s.textures = nil
	s.width = 0
	s.height = 0
}
