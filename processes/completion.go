// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package processes

import (
	"sync"
	"sync/atomic"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/backend/halexec"
	"github.com/gogpu/wgpu/hal"
)

// CompletionAlert reports when the GPU has finished the work its input
// depends on. It submits a fence marker behind that work and waits for it on
// a separate goroutine, so notifications arrive asynchronously and in no
// particular order relative to later frames.
type CompletionAlert struct {
	dev    *halexec.Device
	label  string
	input  framegraph.Resource
	notify func(label string, serial uint64)

	fence  hal.Fence
	serial uint64

	wg        sync.WaitGroup
	completed atomic.Uint64
}

// NewCompletionAlert returns an alert firing notify after input's producer
// has completed. notify runs on its own goroutine and may be nil.
func NewCompletionAlert(dev *halexec.Device, label string, input framegraph.Resource, notify func(label string, serial uint64)) *CompletionAlert {
	return &CompletionAlert{dev: dev, label: label, input: input, notify: notify}
}

// Name returns the alert label.
func (a *CompletionAlert) Name() string { return a.label }

// Dependencies returns the watched resource.
func (a *CompletionAlert) Dependencies() []framegraph.Dependency {
	return []framegraph.Dependency{framegraph.DependOn(a.input, framegraph.StageAllCommands)}
}

// AcquireLongtermResources creates the marker fence.
func (a *CompletionAlert) AcquireLongtermResources() error {
	fence, err := a.dev.CreateFence()
	if err != nil {
		return err
	}
	a.fence = fence
	return nil
}

// Release waits for pending notifications and destroys the fence.
func (a *CompletionAlert) Release() {
	a.wg.Wait()
	if a.fence != nil {
		a.dev.DestroyFence(a.fence)
		a.fence = nil
	}
}

// Completed returns the serial of the last completed frame, or 0.
func (a *CompletionAlert) Completed() uint64 { return a.completed.Load() }

// Sync blocks until every notification started so far has been delivered.
func (a *CompletionAlert) Sync() { a.wg.Wait() }

// PerformDirect submits the marker and starts the watcher.
func (a *CompletionAlert) PerformDirect(waits, signals []framegraph.Semaphore) error {
	if err := a.dev.Wait(waits); err != nil {
		return err
	}
	a.serial++
	fence, serial := a.fence, a.serial
	if err := a.dev.SubmitFence(fence, serial); err != nil {
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.dev.WaitFence(fence, serial); err != nil {
			slogger().Warn("processes: completion alert", "alert", a.label, "serial", serial, "err", err)
			return
		}
		for {
			prev := a.completed.Load()
			if serial <= prev || a.completed.CompareAndSwap(prev, serial) {
				break
			}
		}
		slogger().Debug("processes: work completed", "alert", a.label, "serial", serial)
		if a.notify != nil {
			a.notify(a.label, serial)
		}
	}()

	return a.dev.Signal(signals)
}
