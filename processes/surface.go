// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package processes

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
)

var (
	// ErrSurfaceOutOfDate reports that the surface changed and the
	// swapchain must be rebuilt before the next image can be acquired.
	ErrSurfaceOutOfDate = errors.New("processes: surface out of date")

	// ErrSurfaceSuboptimal reports that the operation succeeded but the
	// swapchain no longer matches the surface exactly.
	ErrSurfaceSuboptimal = errors.New("processes: surface suboptimal")
)

// Surface is a presentation target.
type Surface interface {
	// Size returns the current surface size in pixels.
	Size() (width, height uint32)

	// Format returns the surface color format.
	Format() gputypes.TextureFormat

	// Configure (re)creates the presentation chain for imageCount images
	// of the given size.
	Configure(width, height uint32, imageCount int) error

	// AcquireNextImage returns the index of the next image to render to.
	// It returns ErrSurfaceOutOfDate when Configure must be called first.
	AcquireNextImage() (int, error)

	// Present queues the image at index for presentation.
	Present(index int) error

	// Release returns an acquired image that will not be presented.
	Release(index int) error
}

// HeadlessSurface is an in-memory Surface for headless runs and tests.
// Resize makes the configured chain out of date, the way a window resize
// does.
type HeadlessSurface struct {
	mu sync.Mutex

	width, height uint32
	format        gputypes.TextureFormat

	configured bool
	cfgWidth   uint32
	cfgHeight  uint32
	imageCount int

	next      int
	acquired  []bool
	presented []int
}

// NewHeadlessSurface returns an unconfigured surface.
func NewHeadlessSurface(width, height uint32, format gputypes.TextureFormat) *HeadlessSurface {
	return &HeadlessSurface{width: width, height: height, format: format}
}

// Size returns the current surface size.
func (s *HeadlessSurface) Size() (uint32, uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Format returns the surface color format.
func (s *HeadlessSurface) Format() gputypes.TextureFormat {
	return s.format
}

// Resize changes the surface size. The current configuration becomes out of
// date if the size differs.
func (s *HeadlessSurface) Resize(width, height uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
}

// Configure sets up imageCount images of the given size.
func (s *HeadlessSurface) Configure(width, height uint32, imageCount int) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("processes: configure surface: empty size %dx%d", width, height)
	}
	if imageCount < 1 {
		return fmt.Errorf("processes: configure surface: %d images", imageCount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.configured = true
	s.cfgWidth, s.cfgHeight = width, height
	s.imageCount = imageCount
	s.next = 0
	s.acquired = make([]bool, imageCount)
	return nil
}

func (s *HeadlessSurface) outOfDate() bool {
	return !s.configured || s.width != s.cfgWidth || s.height != s.cfgHeight
}

// AcquireNextImage hands out images round robin, skipping images that are
// still acquired.
func (s *HeadlessSurface) AcquireNextImage() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outOfDate() {
		return 0, ErrSurfaceOutOfDate
	}
	for range s.imageCount {
		idx := s.next
		s.next = (s.next + 1) % s.imageCount
		if !s.acquired[idx] {
			s.acquired[idx] = true
			return idx, nil
		}
	}
	return 0, fmt.Errorf("processes: all %d images acquired", s.imageCount)
}

// Present records the presentation of image index. An image presented
// after a resize is still recorded and reported as suboptimal.
func (s *HeadlessSurface) Present(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.acquired) || !s.acquired[index] {
		return fmt.Errorf("processes: present image %d that was not acquired", index)
	}
	s.acquired[index] = false
	s.presented = append(s.presented, index)
	if s.outOfDate() {
		return ErrSurfaceSuboptimal
	}
	return nil
}

// Release returns an acquired image without presenting it.
func (s *HeadlessSurface) Release(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.acquired) || !s.acquired[index] {
		return fmt.Errorf("processes: release image %d that was not acquired", index)
	}
	s.acquired[index] = false
	return nil
}

// Acquired returns the number of images acquired and not yet presented or
// released.
func (s *HeadlessSurface) Acquired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.acquired {
		if a {
			n++
		}
	}
	return n
}

// Presented returns the image indices presented so far, in order.
func (s *HeadlessSurface) Presented() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.presented...)
}
