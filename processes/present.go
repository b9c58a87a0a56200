// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package processes

import (
	"errors"
	"fmt"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/backend/halexec"
)

// Present hands the final image of the frame to the surface.
//
// Its input must carry the swapchain's views (the swapchain output itself,
// or a pass that renders into it and re-publishes it), so the published
// Index is the surface image index.
type Present struct {
	dev       *halexec.Device
	swapchain *Swapchain
	input     *PassableImageView
	presented int
}

// NewPresent returns a present process for the image published by input.
func NewPresent(dev *halexec.Device, swapchain *Swapchain, input *PassableImageView) *Present {
	return &Present{dev: dev, swapchain: swapchain, input: input}
}

// Name returns "present".
func (p *Present) Name() string { return "present" }

// Presented returns the number of images presented.
func (p *Present) Presented() int { return p.presented }

// Dependencies returns the final image, needed once all rendering is done.
func (p *Present) Dependencies() []framegraph.Dependency {
	return []framegraph.Dependency{framegraph.DependOn(p.input, framegraph.StageBottomOfPipe)}
}

// PerformDirect waits for the image and presents it. An out-of-date or
// suboptimal surface flags the swapchain for rebuild without failing the
// frame.
func (p *Present) PerformDirect(waits, signals []framegraph.Semaphore) error {
	if err := p.dev.Wait(waits); err != nil {
		return err
	}
	if !p.input.Published() {
		return fmt.Errorf("processes: present: no image published")
	}

	idx := p.input.Current().Index
	err := p.swapchain.Surface().Present(idx)
	switch {
	case errors.Is(err, ErrSurfaceOutOfDate), errors.Is(err, ErrSurfaceSuboptimal):
		p.swapchain.markRebuild(err)
	case err != nil:
		return fmt.Errorf("processes: present: %w", err)
	}
	p.swapchain.presented(idx)
	p.presented++
	return p.dev.SignalPresent(signals)
}
