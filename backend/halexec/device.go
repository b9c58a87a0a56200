// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package halexec executes frame graphs on a gogpu/wgpu HAL device.
//
// The HAL exposes fences but no binary semaphores, so each graph semaphore
// owns a fence and a target value: signalling submits a fence write behind
// the queue's pending work, waiting blocks the host until the fence reaches
// the target. Queues execute in submission order, so the host wait is only
// the ordering point between queues and between direct operations.
//
// Processes allocate their command buffers with BeginCommands and
// FinishCommands; the graph returns them through FreeCommandBuffers at the
// end of every frame.
package halexec

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// slogger returns the shared framegraph logger.
func slogger() *slog.Logger { return framegraph.Logger() }

// CommandBuffer is a recorded HAL command buffer owned by a Device.
type CommandBuffer struct {
	raw   hal.CommandBuffer
	label string
}

// Raw returns the underlying HAL command buffer.
func (c *CommandBuffer) Raw() hal.CommandBuffer { return c.raw }

// Label returns the label the buffer was recorded with.
func (c *CommandBuffer) Label() string { return c.label }

// Stats reports device counters.
type Stats struct {
	Semaphores     int    // live semaphores
	Submissions    uint64 // queue submissions, fence-only ones included
	CommandBuffers uint64 // command buffers recorded
	Signals        uint64
	Waits          uint64
	IdleWaits      uint64
}

// Device implements framegraph.Device on a HAL device and queue.
//
// Thread Safety: Device is safe for concurrent use, but fence waits hold
// the device lock, so a blocked wait stalls other callers.
type Device struct {
	mu      sync.Mutex
	device  hal.Device
	queue   hal.Queue
	present hal.Queue
	opts    options

	semaphores map[*semaphore]struct{}
	idleFence  hal.Fence
	idleValue  uint64

	// Command buffers begun and not finished, and finished and not freed.
	openEncoders int
	recorded     int

	destroyed bool

	submissions    atomic.Uint64
	commandBuffers atomic.Uint64
	signals        atomic.Uint64
	waits          atomic.Uint64
	idleWaits      atomic.Uint64
}

var _ framegraph.Device = (*Device)(nil)

// NewDevice wraps a HAL device and its graphics queue. The device does not
// take ownership: Destroy releases only what the Device created.
func NewDevice(device hal.Device, queue hal.Queue, opts ...Option) *Device {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	present := o.presentQueue
	if present == nil {
		present = queue
	}
	return &Device{
		device:     device,
		queue:      queue,
		present:    present,
		opts:       o,
		semaphores: make(map[*semaphore]struct{}),
	}
}

// FromProvider creates a Device sharing the GPU device of an external
// provider (e.g. gogpu). The provider must implement HalDevice() any and
// HalQueue() any returning hal.Device and hal.Queue. The provider's surface
// format seeds SurfaceFormat unless an option overrides it.
func FromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHAL)
	}

	all := append([]Option{WithSurfaceFormat(provider.SurfaceFormat())}, opts...)
	return NewDevice(device, queue, all...), nil
}

// HAL returns the wrapped HAL device.
func (d *Device) HAL() hal.Device { return d.device }

// Queue returns the graphics queue.
func (d *Device) Queue() hal.Queue { return d.queue }

// SurfaceFormat returns the color format surfaces should use.
func (d *Device) SurfaceFormat() gputypes.TextureFormat { return d.opts.surfaceFormat }

// Label returns the debug label prefix.
func (d *Device) Label() string { return d.opts.label }

// CreateSemaphore creates a fence-backed binary semaphore.
func (d *Device) CreateSemaphore(label string) (framegraph.Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return nil, ErrDestroyed
	}

	fence, err := d.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("halexec: create fence for %q: %w", label, err)
	}
	s := &semaphore{label: label, fence: fence}
	d.semaphores[s] = struct{}{}
	return s, nil
}

// DestroySemaphore destroys a semaphore created by CreateSemaphore.
// Unknown handles are ignored.
func (d *Device) DestroySemaphore(h framegraph.Semaphore) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, err := d.lookup(h)
	if err != nil {
		slogger().Warn("halexec: destroy semaphore", "err", err)
		return
	}
	delete(d.semaphores, s)
	d.device.DestroyFence(s.fence)
}

// Submit sends every command buffer of the batch in a single queue
// submission. Wait semaphores are consumed on the host first; signal
// semaphores are signalled after the whole batch.
func (d *Device) Submit(batch []framegraph.Submission) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return ErrDestroyed
	}

	cmds := make([]hal.CommandBuffer, 0, len(batch))
	var signals []framegraph.Semaphore
	for _, sub := range batch {
		if err := d.waitLocked(sub.WaitSemaphores); err != nil {
			return err
		}
		if sub.CommandBuffer != nil {
			cb, ok := sub.CommandBuffer.(*CommandBuffer)
			if !ok {
				return fmt.Errorf("%w: %T", ErrForeignCommandBuffer, sub.CommandBuffer)
			}
			cmds = append(cmds, cb.raw)
		}
		signals = append(signals, sub.SignalSemaphores...)
	}

	if len(signals) == 0 {
		if len(cmds) == 0 {
			return nil
		}
		if err := d.queue.Submit(cmds, nil, 0); err != nil {
			return fmt.Errorf("halexec: submit: %w", err)
		}
		d.submissions.Add(1)
		return nil
	}

	// The first signal rides on the batch; the rest follow as fence-only
	// submissions, which the in-order queue places after the batch.
	first, err := d.lookup(signals[0])
	if err != nil {
		return err
	}
	if err := d.signalOne(d.queue, first, cmds); err != nil {
		return err
	}
	return d.signalLocked(d.queue, signals[1:])
}

// Signal signals sems on the graphics queue behind all submitted work.
// Direct operations call it with their signal list.
func (d *Device) Signal(sems []framegraph.Semaphore) error {
	return d.signalOn(d.queue, sems)
}

// SignalPresent signals sems on the present queue.
func (d *Device) SignalPresent(sems []framegraph.Semaphore) error {
	return d.signalOn(d.present, sems)
}

func (d *Device) signalOn(q hal.Queue, sems []framegraph.Semaphore) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return ErrDestroyed
	}
	return d.signalLocked(q, sems)
}

func (d *Device) signalLocked(q hal.Queue, sems []framegraph.Semaphore) error {
	for _, h := range sems {
		s, err := d.lookup(h)
		if err != nil {
			return err
		}
		if err := d.signalOne(q, s, nil); err != nil {
			return err
		}
	}
	return nil
}

// signalOne submits cmds with a fence write advancing s.
func (d *Device) signalOne(q hal.Queue, s *semaphore, cmds []hal.CommandBuffer) error {
	if s.pending {
		slogger().Debug("halexec: semaphore signalled twice without a wait", "semaphore", s.label)
	}
	next := s.target + 1
	if err := q.Submit(cmds, s.fence, next); err != nil {
		return fmt.Errorf("halexec: signal %s: %w", s.label, err)
	}
	s.target = next
	s.pending = true
	d.submissions.Add(1)
	d.signals.Add(1)
	return nil
}

// Wait blocks until every semaphore in sems is signalled and consumes the
// signals. Direct operations call it with their wait list.
func (d *Device) Wait(sems []framegraph.Semaphore) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return ErrDestroyed
	}
	return d.waitLocked(sems)
}

func (d *Device) waitLocked(sems []framegraph.Semaphore) error {
	for _, h := range sems {
		s, err := d.lookup(h)
		if err != nil {
			return err
		}
		if !s.pending {
			return fmt.Errorf("%w: %s", ErrUnsignaled, s.label)
		}
		if err := d.waitFence(s.fence, s.target, s.label); err != nil {
			return err
		}
		s.pending = false
		d.waits.Add(1)
	}
	return nil
}

// waitFence blocks until fence reaches value or the timeout expires.
func (d *Device) waitFence(fence hal.Fence, value uint64, what string) error {
	ok, err := d.device.Wait(fence, value, d.opts.fenceTimeout)
	if err != nil {
		return fmt.Errorf("halexec: wait %s: %w", what, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s after %v", ErrTimeout, what, d.opts.fenceTimeout)
	}
	return nil
}

// WaitIdle blocks until all work submitted to q has completed.
func (d *Device) WaitIdle(q framegraph.Queue) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return ErrDestroyed
	}

	queue := d.queue
	if q == framegraph.QueuePresent {
		queue = d.present
	}

	if d.idleFence == nil {
		fence, err := d.device.CreateFence()
		if err != nil {
			return fmt.Errorf("halexec: create idle fence: %w", err)
		}
		d.idleFence = fence
	}
	d.idleValue++
	if err := queue.Submit(nil, d.idleFence, d.idleValue); err != nil {
		return fmt.Errorf("halexec: wait idle on %s queue: %w", q, err)
	}
	d.submissions.Add(1)
	d.idleWaits.Add(1)
	return d.waitFence(d.idleFence, d.idleValue, q.String()+" queue idle")
}

// BeginCommands starts recording a command buffer.
// Finish it with FinishCommands or abandon it with DiscardCommands.
func (d *Device) BeginCommands(label string) (hal.CommandEncoder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return nil, ErrDestroyed
	}

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: d.opts.label + "_" + label,
	})
	if err != nil {
		return nil, fmt.Errorf("halexec: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("halexec: begin encoding: %w", err)
	}
	d.openEncoders++
	return encoder, nil
}

// FinishCommands ends recording and returns a buffer to hand to the graph.
func (d *Device) FinishCommands(encoder hal.CommandEncoder, label string) (*CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.releaseEncoder()
	raw, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("halexec: end encoding: %w", err)
	}
	d.recorded++
	d.commandBuffers.Add(1)
	return &CommandBuffer{raw: raw, label: label}, nil
}

// DiscardCommands abandons a recording started with BeginCommands.
func (d *Device) DiscardCommands(encoder hal.CommandEncoder) {
	d.mu.Lock()
	defer d.mu.Unlock()

	encoder.DiscardEncoding()
	d.releaseEncoder()
}

// releaseEncoder accounts for an encoder leaving the open state. Encoders
// begun before a pool reset are no longer counted.
func (d *Device) releaseEncoder() {
	if d.openEncoders > 0 {
		d.openEncoders--
	}
}

// FreeCommandBuffers frees buffers returned by FinishCommands.
func (d *Device) FreeCommandBuffers(bufs []framegraph.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, b := range bufs {
		cb, ok := b.(*CommandBuffer)
		if !ok || cb.raw == nil {
			slogger().Warn("halexec: free command buffer", "err", fmt.Errorf("%w: %T", ErrForeignCommandBuffer, b))
			continue
		}
		d.device.FreeCommandBuffer(cb.raw)
		cb.raw = nil
		if d.recorded > 0 {
			d.recorded--
		}
	}
}

// ResetCommandPool checks that every command buffer of the frame came back
// and resets the accounting for the next frame.
func (d *Device) ResetCommandPool() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	open, recorded := d.openEncoders, d.recorded
	d.openEncoders, d.recorded = 0, 0
	if open != 0 || recorded != 0 {
		return fmt.Errorf("%w: %d encoders open, %d buffers not freed", ErrOutstandingCommands, open, recorded)
	}
	return nil
}

// CreateFence creates a fence for callers that track completion themselves.
func (d *Device) CreateFence() (hal.Fence, error) {
	fence, err := d.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("halexec: create fence: %w", err)
	}
	return fence, nil
}

// DestroyFence destroys a fence created by CreateFence.
func (d *Device) DestroyFence(fence hal.Fence) {
	d.device.DestroyFence(fence)
}

// SubmitFence writes value to fence behind all work submitted to the
// graphics queue.
func (d *Device) SubmitFence(fence hal.Fence, value uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return ErrDestroyed
	}
	if err := d.queue.Submit(nil, fence, value); err != nil {
		return fmt.Errorf("halexec: submit fence: %w", err)
	}
	d.submissions.Add(1)
	return nil
}

// WaitFence blocks until fence reaches value. It does not take the device
// lock and may be called from any goroutine.
func (d *Device) WaitFence(fence hal.Fence, value uint64) error {
	return d.waitFence(fence, value, "fence")
}

// Stats returns device counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	live := len(d.semaphores)
	d.mu.Unlock()
	return Stats{
		Semaphores:     live,
		Submissions:    d.submissions.Load(),
		CommandBuffers: d.commandBuffers.Load(),
		Signals:        d.signals.Load(),
		Waits:          d.waits.Load(),
		IdleWaits:      d.idleWaits.Load(),
	}
}

// Destroy destroys the fences owned by the device. The HAL device and
// queues are not destroyed. Destroy is idempotent.
func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return
	}
	d.destroyed = true

	if n := len(d.semaphores); n > 0 {
		slogger().Warn("halexec: semaphores alive at destroy", "count", n)
	}
	for s := range d.semaphores {
		d.device.DestroyFence(s.fence)
	}
	d.semaphores = nil
	if d.idleFence != nil {
		d.device.DestroyFence(d.idleFence)
		d.idleFence = nil
	}
}
