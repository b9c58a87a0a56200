// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halexec

import (
	"fmt"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/wgpu/hal"
)

// semaphore is a binary semaphore emulated on a fence timeline.
//
// Every signal advances target and submits a fence write of that value
// behind the queue's pending work. A wait blocks until the fence reaches
// target and consumes the signal.
type semaphore struct {
	label   string
	fence   hal.Fence
	target  uint64
	pending bool
}

// Label returns the debug label the semaphore was created with.
func (s *semaphore) Label() string {
	return s.label
}

func (s *semaphore) String() string {
	return fmt.Sprintf("semaphore(%s@%d)", s.label, s.target)
}

// lookup resolves a framegraph semaphore handle to one of d's semaphores.
// The caller holds d.mu.
func (d *Device) lookup(h framegraph.Semaphore) (*semaphore, error) {
	s, ok := h.(*semaphore)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrForeignSemaphore, h)
	}
	if _, live := d.semaphores[s]; !live {
		return nil, fmt.Errorf("%w: %s", ErrForeignSemaphore, s.label)
	}
	return s, nil
}
