// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package processes

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/backend/halexec"
	"github.com/gogpu/gputypes"
)

// slogger returns the shared framegraph logger.
func slogger() *slog.Logger { return framegraph.Logger() }

// Swapchain owns the surface images. Its operation acquires the next image
// and publishes its view; its frame resources are the images themselves,
// recreated at the surface size after every invalidation.
type Swapchain struct {
	dev     *halexec.Device
	surface Surface
	count   int

	set     imageSet
	views   []ImageView
	output  *PassableImageView
	current int

	// unpresented is the image acquired and not yet presented, or -1. It
	// stays set when the frame is abandoned before Present.
	unpresented int

	rebuild atomic.Bool
}

// NewSwapchain returns a swapchain of imageCount images on surface.
func NewSwapchain(dev *halexec.Device, surface Surface, imageCount int) *Swapchain {
	sc := &Swapchain{
		dev:     dev,
		surface: surface,
		count:       max(imageCount, 1),
		current:     -1,
		unpresented: -1,
	}
	sc.output = framegraph.NewPassableResource[ImageView](sc)
	return sc
}

// Name returns "swapchain".
func (sc *Swapchain) Name() string { return "swapchain" }

// Output returns the acquired image view.
func (sc *Swapchain) Output() *PassableImageView { return sc.output }

// Surface returns the presentation surface.
func (sc *Swapchain) Surface() Surface { return sc.surface }

// ImageCount returns the number of swapchain images.
func (sc *Swapchain) ImageCount() int { return sc.count }

// Current returns the index of the image acquired this frame, or -1.
func (sc *Swapchain) Current() int { return sc.current }

// ShouldRebuild reports whether the surface changed and the frame resources
// must be invalidated and reacquired.
func (sc *Swapchain) ShouldRebuild() bool { return sc.rebuild.Load() }

// presented records that the image at index left the swapchain.
func (sc *Swapchain) presented(index int) {
	if sc.unpresented == index {
		sc.unpresented = -1
	}
}

// reclaim hands back the image of an abandoned frame.
func (sc *Swapchain) reclaim() {
	if sc.unpresented < 0 {
		return
	}
	idx := sc.unpresented
	sc.unpresented = -1
	if err := sc.surface.Release(idx); err != nil {
		slogger().Warn("processes: release unpresented image", "image", idx, "err", err)
		return
	}
	slogger().Debug("processes: unpresented image released", "image", idx)
}

// markRebuild flags the swapchain for recreation.
func (sc *Swapchain) markRebuild(reason error) {
	if !sc.rebuild.Swap(true) {
		slogger().Info("processes: swapchain needs rebuild", "reason", reason)
	}
}

// Dependencies returns nil: the swapchain consumes nothing.
func (sc *Swapchain) Dependencies() []framegraph.Dependency { return nil }

// AcquireFrameResources configures the surface at its current size and
// creates one image per surface image.
func (sc *Swapchain) AcquireFrameResources() error {
	w, h := sc.surface.Size()
	if err := sc.surface.Configure(w, h, sc.count); err != nil {
		return fmt.Errorf("processes: swapchain: %w", err)
	}

	format := sc.surface.Format()
	if format == gputypes.TextureFormatUndefined {
		format = sc.dev.SurfaceFormat()
	}
	err := sc.set.ensure(sc.dev.HAL(), imageSpec{
		label:  sc.dev.Label() + "_swapchain",
		count:  sc.count,
		width:  w,
		height: h,
		format: format,
		usage:  gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return err
	}

	sc.views = sc.set.imageViews()
	sc.output.SetPossibleValues(sc.views)
	sc.current = -1
	sc.unpresented = -1
	sc.rebuild.Store(false)

	slogger().Info("processes: swapchain created", "width", w, "height", h, "images", sc.count)
	return nil
}

// CleanupFrameResources destroys the images.
func (sc *Swapchain) CleanupFrameResources() {
	sc.set.destroy(sc.dev.HAL())
	sc.views = nil
	sc.output.SetPossibleValues(nil)
	sc.current = -1
	sc.unpresented = -1
}

// Release destroys the images if they are still alive.
func (sc *Swapchain) Release() {
	sc.CleanupFrameResources()
}

// PerformDirect acquires the next surface image, publishes its view and
// signals the consumers. An out-of-date surface aborts the frame and flags
// the swapchain for rebuild. The image of a previous frame that was aborted
// before presenting is released first.
func (sc *Swapchain) PerformDirect(waits, signals []framegraph.Semaphore) error {
	if err := sc.dev.Wait(waits); err != nil {
		return err
	}
	sc.reclaim()

	idx, err := sc.surface.AcquireNextImage()
	switch {
	case errors.Is(err, ErrSurfaceOutOfDate):
		sc.markRebuild(err)
		return fmt.Errorf("processes: acquire image: %w", err)
	case errors.Is(err, ErrSurfaceSuboptimal):
		sc.markRebuild(err)
	case err != nil:
		return fmt.Errorf("processes: acquire image: %w", err)
	}
	if idx < 0 || idx >= len(sc.views) {
		return fmt.Errorf("processes: surface returned image %d of %d", idx, len(sc.views))
	}

	sc.current = idx
	sc.unpresented = idx
	sc.output.Publish(sc.views[idx])
	return sc.dev.Signal(signals)
}
