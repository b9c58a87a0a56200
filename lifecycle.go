package framegraph

import (
	"fmt"
	"slices"
)

// acquire walks the submit groups in level order. Processes that never
// acquired longterm resources do so first; every process not holding frame
// resources then acquires them. A process whose longterm acquisition fails
// never reaches its frame acquisition.
func (g *Graph) acquire() error {
	g.busy = true
	defer func() { g.busy = false }()

	for _, grp := range g.sched.groups {
		for _, id := range grp {
			s := g.slots[id]
			if !s.longterm {
				if a, ok := s.process.(LongtermAcquirer); ok {
					if err := a.AcquireLongtermResources(); err != nil {
						return fmt.Errorf("%w: %s: longterm: %w", ErrAcquire, s.name, err)
					}
				}
				s.longterm = true
			}
			if !s.frame {
				if a, ok := s.process.(FrameAcquirer); ok {
					if err := a.AcquireFrameResources(); err != nil {
						return fmt.Errorf("%w: %s: frame: %w", ErrAcquire, s.name, err)
					}
				}
				s.frame = true
			}
		}
	}
	return nil
}

// InvalidateFrameResources frees every surface-dependent resource, walking
// the submit groups in reverse level order so consumers unwind before their
// producers. The graph cannot execute until AcquireFrameResources succeeds.
func (g *Graph) InvalidateFrameResources() error {
	if g.busy {
		return ErrReentrant
	}
	if g.sched == nil {
		return ErrNotBuilt
	}

	g.busy = true
	defer func() { g.busy = false }()

	cleaned := 0
	for _, id := range g.reverseOrder() {
		s := g.slots[id]
		if s == nil || !s.frame {
			continue
		}
		if c, ok := s.process.(FrameCleaner); ok {
			c.CleanupFrameResources()
		}
		s.frame = false
		cleaned++
	}

	g.logger().Info("framegraph: frame resources invalidated",
		"graph", g.opts.name,
		"processes", cleaned)
	return nil
}

// AcquireFrameResources reacquires surface-dependent resources in level
// order after InvalidateFrameResources. Longterm acquisition left pending by
// a failed Build is completed first.
func (g *Graph) AcquireFrameResources() error {
	if g.busy {
		return ErrReentrant
	}
	if !g.Built() {
		return ErrNotBuilt
	}
	if err := g.acquire(); err != nil {
		g.logger().Warn("framegraph: frame resource acquisition failed", "graph", g.opts.name, "err", err)
		return err
	}
	g.logger().Info("framegraph: frame resources acquired", "graph", g.opts.name)
	return nil
}

// frameReady reports whether every built process holds its longterm and
// frame resources.
func (g *Graph) frameReady() bool {
	for _, id := range g.sched.order {
		if s := g.slots[id]; !s.longterm || !s.frame {
			return false
		}
	}
	return true
}

// reverseOrder returns scheduled nodes in reverse level order (reverse
// registration order inside a group), followed by registered nodes the
// schedule does not know yet.
func (g *Graph) reverseOrder() []NodeID {
	var ids []NodeID
	seen := make([]bool, len(g.slots))
	if g.sched != nil {
		for i := len(g.sched.groups) - 1; i >= 0; i-- {
			grp := g.sched.groups[i]
			for j := len(grp) - 1; j >= 0; j-- {
				ids = append(ids, grp[j])
				seen[grp[j]] = true
			}
		}
	}
	var rest []NodeID
	for i, s := range g.slots {
		if s != nil && !seen[i] {
			rest = append(rest, NodeID(i))
		}
	}
	slices.Reverse(rest)
	return append(ids, rest...)
}
