package framegraph

import (
	"errors"
	"fmt"
)

// ExecuteSequence runs one frame.
//
// Submit groups run in level order. Within a group, direct processes run
// immediately with their wait and signal lists and command processes record
// their buffers; the recorded buffers are then sent to the queue in a single
// batched Submit. A failing direct operation, a failing recording or a
// failing batch submission abandons the rest of the frame, including the
// batch of the group in progress. The returned *FrameError matches
// ErrFrameAborted.
//
// Whether or not the frame completed, the graph then waits for the idle
// queues to drain and recycles every command buffer recorded during the
// frame. The graph itself is left intact, so the next call behaves the same
// on an unchanged graph.
func (g *Graph) ExecuteSequence() error {
	if g.busy {
		return ErrReentrant
	}
	if !g.Built() {
		return ErrNotBuilt
	}
	if !g.frameReady() {
		return ErrFrameResources
	}

	g.busy = true
	defer func() { g.busy = false }()

	var recorded []CommandBuffer
	frameErr := g.runGroups(&recorded)
	drainErr := g.drain(recorded)

	g.frames++
	if frameErr != nil {
		g.abortedFrames++
		g.logger().Warn("framegraph: frame aborted",
			"graph", g.opts.name,
			"group", frameErr.Group,
			"process", frameErr.Process,
			"err", frameErr.Err)
		if drainErr != nil {
			return errors.Join(frameErr, drainErr)
		}
		return frameErr
	}
	return drainErr
}

// runGroups executes the submit groups until completion or the first
// failure. Every command buffer recorded is appended to recorded, submitted
// or not.
func (g *Graph) runGroups(recorded *[]CommandBuffer) *FrameError {
	s := g.sched
	for gi, grp := range s.groups {
		batch := make([]Submission, 0, len(grp))

		for _, id := range grp {
			sl := g.slots[id]
			n := &s.nodes[id]

			switch sl.kind {
			case KindCommand:
				cb, err := sl.process.(CommandProcess).RecordCommands()
				if err != nil {
					return &FrameError{Group: gi, Node: id, Process: sl.name, Kind: ErrOperationFailed, Err: err}
				}
				if cb != nil {
					*recorded = append(*recorded, cb)
				}
				batch = append(batch, Submission{
					CommandBuffer:    cb,
					WaitSemaphores:   n.waits,
					WaitStages:       n.waitStages,
					SignalSemaphores: n.signals,
				})

			case KindOther:
				if err := sl.process.(DirectProcess).PerformDirect(n.waits, n.signals); err != nil {
					return &FrameError{Group: gi, Node: id, Process: sl.name, Kind: ErrOperationFailed, Err: err}
				}
			}
		}

		if len(batch) == 0 {
			continue
		}
		if err := g.dev.Submit(batch); err != nil {
			return &FrameError{Group: gi, Node: InvalidNode, Kind: ErrSubmitFailed, Err: err}
		}
		g.logger().Debug("framegraph: group submitted",
			"graph", g.opts.name,
			"level", gi,
			"submissions", len(batch))
	}
	return nil
}

// drain waits for the idle queues and recycles the frame's command buffers.
func (g *Graph) drain(recorded []CommandBuffer) error {
	var errs []error
	for _, q := range g.opts.idleQueues {
		if err := g.dev.WaitIdle(q); err != nil {
			errs = append(errs, fmt.Errorf("framegraph: wait idle on %s queue: %w", q, err))
		}
	}
	if len(recorded) > 0 {
		g.dev.FreeCommandBuffers(recorded)
	}
	if err := g.dev.ResetCommandPool(); err != nil {
		errs = append(errs, fmt.Errorf("framegraph: reset command pool: %w", err))
	}
	return errors.Join(errs...)
}
