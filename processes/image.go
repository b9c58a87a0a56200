// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package processes

import (
	"fmt"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/backend/halexec"
	"github.com/gogpu/gputypes"
)

// ImageDescriptor describes an Image.
//
// An image is either fixed-size (Width and Height set) or follows the
// surface size multiplied by Scale.
type ImageDescriptor struct {
	Label  string
	Format gputypes.TextureFormat
	Usage  gputypes.TextureUsage
	Width  uint32
	Height uint32
	Scale  float64
}

// surfaceScaled reports whether the image follows the surface size.
func (d ImageDescriptor) surfaceScaled() bool {
	return d.Width == 0 || d.Height == 0
}

// Image owns one texture and publishes its view. It performs no operation,
// so consumers never wait on it.
//
// Fixed-size images are created once as longterm resources; surface-scaled
// images are frame resources recreated on every surface change.
type Image struct {
	dev     *halexec.Device
	surface Surface
	desc    ImageDescriptor

	set    imageSet
	output *PassableImageView
}

// NewImage returns an image process. surface may be nil for fixed-size
// images.
func NewImage(dev *halexec.Device, surface Surface, desc ImageDescriptor) *Image {
	if desc.Scale <= 0 {
		desc.Scale = 1
	}
	if desc.Usage == 0 {
		desc.Usage = gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding
	}
	img := &Image{dev: dev, surface: surface, desc: desc}
	img.output = framegraph.NewPassableResource[ImageView](img)
	return img
}

// Name returns the image label.
func (img *Image) Name() string { return img.desc.Label }

// Output returns the published view.
func (img *Image) Output() *PassableImageView { return img.output }

// Dependencies returns nil: images consume nothing.
func (img *Image) Dependencies() []framegraph.Dependency { return nil }

// AcquireLongtermResources creates fixed-size images.
func (img *Image) AcquireLongtermResources() error {
	if img.desc.surfaceScaled() {
		return nil
	}
	return img.create(img.desc.Width, img.desc.Height)
}

// AcquireFrameResources creates surface-scaled images.
func (img *Image) AcquireFrameResources() error {
	if !img.desc.surfaceScaled() {
		return nil
	}
	if img.surface == nil {
		return fmt.Errorf("processes: image %s: surface-scaled image without surface", img.desc.Label)
	}
	w, h := img.surface.Size()
	return img.create(scaleDim(w, img.desc.Scale), scaleDim(h, img.desc.Scale))
}

// CleanupFrameResources destroys surface-scaled images.
func (img *Image) CleanupFrameResources() {
	if img.desc.surfaceScaled() {
		img.set.destroy(img.dev.HAL())
		img.output.SetPossibleValues(nil)
	}
}

// Release destroys the texture.
func (img *Image) Release() {
	img.set.destroy(img.dev.HAL())
	img.output.SetPossibleValues(nil)
}

func (img *Image) create(w, h uint32) error {
	err := img.set.ensure(img.dev.HAL(), imageSpec{
		label:  img.dev.Label() + "_" + img.desc.Label,
		count:  1,
		width:  w,
		height: h,
		format: img.desc.Format,
		usage:  img.desc.Usage,
	})
	if err != nil {
		return err
	}
	views := img.set.imageViews()
	img.output.SetPossibleValues(views)
	img.output.Publish(views[0])

	slogger().Debug("processes: image created",
		"image", img.desc.Label,
		"width", w,
		"height", h)
	return nil
}

// scaleDim scales a surface dimension, never below one pixel.
func scaleDim(v uint32, scale float64) uint32 {
	return max(uint32(float64(v)*scale), 1)
}
