package framegraph

import (
	"fmt"
	"strings"
)

// edge is a derived synchronization link from a producer to a consumer.
type edge struct {
	producer NodeID
	consumer NodeID
	stage    PipelineStage
	sem      Semaphore // nil when the producer is a no-op
}

// node holds the per-node schedule data.
type node struct {
	level int
	in    []int // incoming edge indices
	out   []int // outgoing edge indices

	waits      []Semaphore
	waitStages []PipelineStage
	signals    []Semaphore
}

// schedule is the immutable result of one Build.
type schedule struct {
	nodes      []node     // indexed by NodeID; only entries in order are live
	live       []bool     // live[id] reports whether id was built
	order      []NodeID   // built nodes in registration order
	edges      []edge     // construction order
	groups     [][]NodeID // submit groups in level order
	semaphores int
}

func (s *schedule) contains(id NodeID) bool {
	return id >= 0 && int(id) < len(s.live) && s.live[id]
}

// destroy destroys every semaphore owned by the schedule's edges.
func (s *schedule) destroy(dev Device) {
	for i := range s.edges {
		if s.edges[i].sem != nil {
			dev.DestroySemaphore(s.edges[i].sem)
			s.edges[i].sem = nil
		}
	}
	s.semaphores = 0
}

// buildSchedule computes a fresh schedule from the registered processes.
// On error every semaphore created so far is destroyed.
func (g *Graph) buildSchedule() (*schedule, error) {
	s := &schedule{
		nodes: make([]node, len(g.slots)),
		live:  make([]bool, len(g.slots)),
	}
	for i, sl := range g.slots {
		if sl != nil {
			s.order = append(s.order, NodeID(i))
			s.live[i] = true
		}
	}

	if err := g.connect(s); err != nil {
		s.destroy(g.dev)
		return nil, err
	}
	s.fillSync()
	if err := g.assignLevels(s); err != nil {
		s.destroy(g.dev)
		return nil, err
	}
	return s, nil
}

// connect creates one edge per declared dependency.
func (g *Graph) connect(s *schedule) error {
	for _, id := range s.order {
		consumer := g.slots[id]
		for _, dep := range consumer.process.Dependencies() {
			if dep.Resource == nil {
				return fmt.Errorf("%w: %s", ErrNilResource, consumer.name)
			}
			owner := dep.Resource.Owner()
			if owner == nil {
				return fmt.Errorf("%w: %s consumes a resource without owner", ErrNilResource, consumer.name)
			}
			pid, ok := g.index[owner]
			if !ok {
				return fmt.Errorf("%w: %s consumes a resource owned by %T", ErrUnregisteredProducer, consumer.name, owner)
			}
			if pid == id {
				return fmt.Errorf("%w: %s", ErrSelfDependency, consumer.name)
			}

			producer := g.slots[pid]
			var sem Semaphore
			if producer.kind != KindNoOp {
				label := fmt.Sprintf("%s: %s -> %s", g.opts.name, producer.name, consumer.name)
				var err error
				sem, err = g.dev.CreateSemaphore(label)
				if err != nil {
					return fmt.Errorf("framegraph: create semaphore %q: %w", label, err)
				}
				s.semaphores++
			}

			e := len(s.edges)
			s.edges = append(s.edges, edge{
				producer: pid,
				consumer: id,
				stage:    dep.Stage,
				sem:      sem,
			})
			s.nodes[id].in = append(s.nodes[id].in, e)
			s.nodes[pid].out = append(s.nodes[pid].out, e)

			g.logger().Debug("framegraph: edge",
				"graph", g.opts.name,
				"producer", producer.name,
				"consumer", consumer.name,
				"stage", dep.Stage.String(),
				"synchronized", sem != nil)
		}
	}
	return nil
}

// fillSync derives each node's wait and signal lists from its edges.
func (s *schedule) fillSync() {
	for _, id := range s.order {
		n := &s.nodes[id]
		for _, e := range n.in {
			if sem := s.edges[e].sem; sem != nil {
				n.waits = append(n.waits, sem)
				n.waitStages = append(n.waitStages, s.edges[e].stage)
			}
		}
		for _, e := range n.out {
			if sem := s.edges[e].sem; sem != nil {
				n.signals = append(n.signals, sem)
			}
		}
	}
}

// assignLevels computes the longest path from a root for every node in
// topological order (Kahn) and buckets nodes into submit groups. Nodes of a
// group keep registration order, which makes the schedule stable across
// rebuilds.
func (g *Graph) assignLevels(s *schedule) error {
	indegree := make([]int, len(s.nodes))
	queue := make([]NodeID, 0, len(s.order))
	for _, id := range s.order {
		indegree[id] = len(s.nodes[id].in)
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	for head := 0; head < len(queue); head++ {
		id := queue[head]
		level := s.nodes[id].level + 1
		for _, e := range s.nodes[id].out {
			c := s.edges[e].consumer
			if level > s.nodes[c].level {
				s.nodes[c].level = level
			}
			indegree[c]--
			if indegree[c] == 0 {
				queue = append(queue, c)
			}
		}
	}

	if len(queue) != len(s.order) {
		var stuck []string
		for _, id := range s.order {
			if indegree[id] > 0 {
				stuck = append(stuck, g.slots[id].name)
			}
		}
		return fmt.Errorf("%w among %s", ErrCycle, strings.Join(stuck, ", "))
	}

	maxLevel := -1
	for _, id := range s.order {
		maxLevel = max(maxLevel, s.nodes[id].level)
	}
	s.groups = make([][]NodeID, maxLevel+1)
	for _, id := range s.order {
		l := s.nodes[id].level
		s.groups[l] = append(s.groups[l], id)
	}

	for i, grp := range s.groups {
		g.logger().Debug("framegraph: submit group",
			"graph", g.opts.name,
			"level", i,
			"nodes", len(grp))
	}
	return nil
}
