package framegraph

import (
	"fmt"
	"log/slog"
	"slices"
)

// NodeID is the stable handle of a process registered in a Graph.
type NodeID int

// InvalidNode is the zero handle for "no node".
const InvalidNode NodeID = -1

// slot is the graph-local bookkeeping for one registered process.
type slot struct {
	process Process
	kind    OperationKind
	name    string

	// Lifecycle state.
	longterm bool
	frame    bool
}

// Stats reports graph counters.
type Stats struct {
	Nodes         int
	Edges         int
	Semaphores    int
	SubmitGroups  int
	Builds        int
	Frames        int
	AbortedFrames int
}

// Graph owns a set of processes and the schedule derived from their
// dependencies.
//
// Processes live in an arena addressed by NodeID. Edges, levels and submit
// groups form an immutable schedule that Build recomputes from scratch and
// swaps in only when construction succeeds.
type Graph struct {
	dev  Device
	opts options

	slots []*slot
	index map[Process]NodeID
	sched *schedule
	dirty bool
	busy  bool

	builds        int
	frames        int
	abortedFrames int
}

// New creates an empty graph driving dev.
func New(dev Device, opts ...Option) *Graph {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Graph{
		dev:   dev,
		opts:  o,
		index: make(map[Process]NodeID),
		dirty: true,
	}
}

// logger returns the graph logger.
func (g *Graph) logger() *slog.Logger {
	if g.opts.logger != nil {
		return g.opts.logger
	}
	return Logger()
}

// AddProcess registers p and returns its handle. Registration order does
// not affect the schedule except as the tie-break inside a submit group.
// No validation is performed until Build. Adding a registered process
// returns its existing handle.
//
// AddProcess panics if p implements both CommandProcess and DirectProcess,
// or if it is called from a process hook.
func (g *Graph) AddProcess(p Process) NodeID {
	if g.busy {
		panic(ErrReentrant)
	}
	if ambiguous(p) {
		panic(fmt.Sprintf("framegraph: %T implements both CommandProcess and DirectProcess", p))
	}
	if id, ok := g.index[p]; ok {
		return id
	}

	id := NodeID(len(g.slots))
	s := &slot{process: p, kind: KindOf(p)}
	if n, ok := p.(Named); ok {
		s.name = n.Name()
	} else {
		s.name = fmt.Sprintf("%T#%d", p, id)
	}
	g.slots = append(g.slots, s)
	g.index[p] = id
	g.dirty = true

	g.logger().Debug("framegraph: process added",
		"graph", g.opts.name,
		"node", int(id),
		"process", s.name,
		"kind", s.kind.String())
	return id
}

// RemoveProcess unregisters the process with handle id. Frame resources it
// holds are cleaned up and, if it implements Releaser, its longterm
// resources are released. Build must be called before the next frame.
func (g *Graph) RemoveProcess(id NodeID) error {
	if g.busy {
		return ErrReentrant
	}
	s, err := g.slot(id)
	if err != nil {
		return err
	}

	g.busy = true
	g.unwind(s)
	g.busy = false

	delete(g.index, s.process)
	g.slots[id] = nil
	g.dirty = true

	g.logger().Debug("framegraph: process removed",
		"graph", g.opts.name,
		"node", int(id),
		"process", s.name)
	return nil
}

// unwind releases everything a slot has acquired.
func (g *Graph) unwind(s *slot) {
	if s.frame {
		if c, ok := s.process.(FrameCleaner); ok {
			c.CleanupFrameResources()
		}
		s.frame = false
	}
	if s.longterm {
		if r, ok := s.process.(Releaser); ok {
			r.Release()
		}
		s.longterm = false
	}
}

// slot returns the live slot for id.
func (g *Graph) slot(id NodeID) (*slot, error) {
	if id < 0 || int(id) >= len(g.slots) || g.slots[id] == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	return g.slots[id], nil
}

// Len returns the number of registered processes.
func (g *Graph) Len() int {
	return len(g.index)
}

// Process returns the process registered under id.
func (g *Graph) Process(id NodeID) (Process, bool) {
	s, err := g.slot(id)
	if err != nil {
		return nil, false
	}
	return s.process, true
}

// NodeOf returns the handle of a registered process.
func (g *Graph) NodeOf(p Process) (NodeID, bool) {
	id, ok := g.index[p]
	return id, ok
}

// Built reports whether the current schedule reflects every registered
// process.
func (g *Graph) Built() bool {
	return g.sched != nil && !g.dirty
}

// Build (re)computes the schedule: edges with their synchronization
// primitives, wait and signal lists, levels and submit groups. The new
// schedule replaces the previous one only if construction succeeds.
//
// After the swap, processes acquire their resources walking the submit
// groups in level order, so producers publish possible values before
// consumers acquire. Longterm resources are acquired once per process;
// frame resources only when not currently held. Acquisition stops at the
// first failure, which is returned wrapped in ErrAcquire; resources already
// acquired are kept.
func (g *Graph) Build() error {
	if g.busy {
		return ErrReentrant
	}

	next, err := g.buildSchedule()
	if err != nil {
		g.logger().Warn("framegraph: build failed", "graph", g.opts.name, "err", err)
		return err
	}

	if g.sched != nil {
		g.sched.destroy(g.dev)
	}
	g.sched = next
	g.dirty = false
	g.builds++

	g.logger().Info("framegraph: graph built",
		"graph", g.opts.name,
		"nodes", len(next.order),
		"edges", len(next.edges),
		"semaphores", next.semaphores,
		"groups", len(next.groups))

	return g.acquire()
}

// Level returns the level assigned to id by the last Build.
func (g *Graph) Level(id NodeID) (int, bool) {
	if g.sched == nil || !g.sched.contains(id) {
		return 0, false
	}
	return g.sched.nodes[id].level, true
}

// SubmitGroups returns the node handles of every submit group in level
// order.
func (g *Graph) SubmitGroups() [][]NodeID {
	if g.sched == nil {
		return nil
	}
	groups := make([][]NodeID, len(g.sched.groups))
	for i, grp := range g.sched.groups {
		groups[i] = slices.Clone(grp)
	}
	return groups
}

// EdgeInfo describes one edge of the schedule.
type EdgeInfo struct {
	Producer  NodeID
	Consumer  NodeID
	Stage     PipelineStage
	Semaphore Semaphore // nil when the producer is a no-op
}

// Edges returns the edges of the schedule in construction order.
func (g *Graph) Edges() []EdgeInfo {
	if g.sched == nil {
		return nil
	}
	out := make([]EdgeInfo, len(g.sched.edges))
	for i, e := range g.sched.edges {
		out[i] = EdgeInfo{Producer: e.producer, Consumer: e.consumer, Stage: e.stage, Semaphore: e.sem}
	}
	return out
}

// NodeSync describes the synchronization computed for one node.
type NodeSync struct {
	Level      int
	Waits      []Semaphore
	WaitStages []PipelineStage
	Signals    []Semaphore
}

// Sync returns the synchronization lists computed for id.
func (g *Graph) Sync(id NodeID) (NodeSync, bool) {
	if g.sched == nil || !g.sched.contains(id) {
		return NodeSync{}, false
	}
	n := &g.sched.nodes[id]
	return NodeSync{
		Level:      n.level,
		Waits:      slices.Clone(n.waits),
		WaitStages: slices.Clone(n.waitStages),
		Signals:    slices.Clone(n.signals),
	}, true
}

// Stats returns graph counters.
func (g *Graph) Stats() Stats {
	st := Stats{
		Nodes:         len(g.index),
		Builds:        g.builds,
		Frames:        g.frames,
		AbortedFrames: g.abortedFrames,
	}
	if g.sched != nil {
		st.Edges = len(g.sched.edges)
		st.Semaphores = g.sched.semaphores
		st.SubmitGroups = len(g.sched.groups)
	}
	return st
}

// Destroy cleans up frame resources in reverse level order, releases
// longterm resources, and destroys every synchronization primitive owned by
// the graph. The graph is empty afterwards.
func (g *Graph) Destroy() {
	if g.busy {
		panic(ErrReentrant)
	}
	g.busy = true
	for _, id := range g.reverseOrder() {
		if s := g.slots[id]; s != nil {
			g.unwind(s)
		}
	}
	g.busy = false

	if g.sched != nil {
		g.sched.destroy(g.dev)
		g.sched = nil
	}
	g.slots = nil
	g.index = make(map[Process]NodeID)
	g.dirty = true
}
