// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package processes

import (
	"context"
	"errors"

	"github.com/gogpu/framegraph"
)

// FrameLoop drives a graph frame by frame and recreates surface-dependent
// resources when the swapchain reports a surface change.
type FrameLoop struct {
	graph     *framegraph.Graph
	swapchain *Swapchain

	frames   int
	dropped  int
	rebuilds int
}

// LoopStats reports frame loop counters.
type LoopStats struct {
	Frames   int // frames attempted
	Dropped  int // frames abandoned because the surface was out of date
	Rebuilds int // invalidate and reacquire cycles
}

// NewFrameLoop returns a loop over g. The graph must be built.
func NewFrameLoop(g *framegraph.Graph, swapchain *Swapchain) *FrameLoop {
	return &FrameLoop{graph: g, swapchain: swapchain}
}

// RunFrame executes one frame. If the swapchain needs rebuilding afterwards,
// frame resources are invalidated and reacquired. A frame abandoned only
// because the surface went out of date is counted as dropped, not returned
// as an error.
func (l *FrameLoop) RunFrame() error {
	err := l.graph.ExecuteSequence()
	l.frames++

	if l.swapchain.ShouldRebuild() {
		if rerr := l.Rebuild(); rerr != nil {
			return errors.Join(err, rerr)
		}
		if errors.Is(err, ErrSurfaceOutOfDate) {
			l.dropped++
			slogger().Debug("processes: frame dropped", "frame", l.frames)
			err = nil
		}
	}
	return err
}

// Rebuild invalidates every frame resource and acquires them again.
func (l *FrameLoop) Rebuild() error {
	if err := l.graph.InvalidateFrameResources(); err != nil {
		return err
	}
	if err := l.graph.AcquireFrameResources(); err != nil {
		return err
	}
	l.rebuilds++
	w, h := l.swapchain.Surface().Size()
	slogger().Info("processes: frame resources rebuilt", "width", w, "height", h, "rebuilds", l.rebuilds)
	return nil
}

// Run executes frames until n frames ran, a frame fails or ctx is done.
// before, if non-nil, runs ahead of every frame with its index.
func (l *FrameLoop) Run(ctx context.Context, n int, before func(frame int)) error {
	for i := range n {
		if err := ctx.Err(); err != nil {
			return err
		}
		if before != nil {
			before(i)
		}
		if err := l.RunFrame(); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns loop counters.
func (l *FrameLoop) Stats() LoopStats {
	return LoopStats{Frames: l.frames, Dropped: l.dropped, Rebuilds: l.rebuilds}
}
