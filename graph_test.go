package framegraph

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// levelsOf returns the level of every named process.
func levelsOf(t *testing.T, g *Graph, procs ...testProc) map[string]int {
	t.Helper()
	out := make(map[string]int, len(procs))
	for _, p := range procs {
		id, ok := g.NodeOf(p)
		if !ok {
			t.Fatalf("%s not registered", p.base().name)
		}
		l, ok := g.Level(id)
		if !ok {
			t.Fatalf("Level(%s) not available", p.base().name)
		}
		out[p.base().name] = l
	}
	return out
}

func TestBuildChainLevels(t *testing.T) {
	rec := &recorder{}
	dev := newFakeDevice(rec)
	g := New(dev)

	a, b, c := newCmd(rec, "A"), newCmd(rec, "B"), newCmd(rec, "C")
	link(b, StageColorAttachmentOutput, a)
	link(c, StageColorAttachmentOutput, b)

	// Registration order must not matter.
	g.AddProcess(c)
	g.AddProcess(a)
	g.AddProcess(b)

	if err := g.Build(); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := map[string]int{"A": 0, "B": 1, "C": 2}
	if diff := cmp.Diff(want, levelsOf(t, g, a, b, c)); diff != "" {
		t.Errorf("levels mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]string{{"A"}, {"B"}, {"C"}}, groupNames(g)); diff != "" {
		t.Errorf("groups mismatch (-want +got):\n%s", diff)
	}

	st := g.Stats()
	if st.Nodes != 3 || st.Edges != 2 || st.Semaphores != 2 || st.SubmitGroups != 3 {
		t.Errorf("Stats() = %+v, want 3 nodes, 2 edges, 2 semaphores, 3 groups", st)
	}
	if len(dev.created) != 2 {
		t.Errorf("created %d semaphores, want 2", len(dev.created))
	}

	bid, _ := g.NodeOf(b)
	sync, ok := g.Sync(bid)
	if !ok {
		t.Fatal("Sync(B) not available")
	}
	if len(sync.Waits) != 1 || len(sync.Signals) != 1 {
		t.Fatalf("B waits %d signals %d, want 1 and 1", len(sync.Waits), len(sync.Signals))
	}
	if sync.WaitStages[0] != StageColorAttachmentOutput {
		t.Errorf("B wait stage = %v, want %v", sync.WaitStages[0], StageColorAttachmentOutput)
	}
	if sync.Waits[0] == sync.Signals[0] {
		t.Error("B waits on the semaphore it signals")
	}
}

func TestBuildNoOpProducerHasNoSemaphore(t *testing.T) {
	rec := &recorder{}
	dev := newFakeDevice(rec)
	g := New(dev)

	img := newNoop(rec, "image")
	pass := newCmd(rec, "pass")
	link(pass, StageFragmentShader, img)
	g.AddProcess(pass)
	g.AddProcess(img)

	if err := g.Build(); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	edges := g.Edges()
	if len(edges) != 1 {
		t.Fatalf("len(Edges()) = %d, want 1", len(edges))
	}
	if edges[0].Semaphore != nil {
		t.Errorf("edge from NoOp producer has semaphore %v, want nil", edges[0].Semaphore)
	}
	if len(dev.created) != 0 {
		t.Errorf("created %d semaphores, want 0", len(dev.created))
	}

	pid, _ := g.NodeOf(pass)
	sync, _ := g.Sync(pid)
	if len(sync.Waits) != 0 || len(sync.WaitStages) != 0 {
		t.Errorf("pass waits on %d semaphores, want 0", len(sync.Waits))
	}
	if diff := cmp.Diff(map[string]int{"image": 0, "pass": 1}, levelsOf(t, g, img, pass)); diff != "" {
		t.Errorf("levels mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildIndependentChainsShareGroups(t *testing.T) {
	rec := &recorder{}
	g := New(newFakeDevice(rec))

	x1, x2 := newCmd(rec, "X1"), newCmd(rec, "X2")
	y1, y2 := newDirect(rec, "Y1"), newCmd(rec, "Y2")
	link(x2, StageTransfer, x1)
	link(y2, StageTransfer, y1)

	for _, p := range []Process{x2, y2, x1, y1} {
		g.AddProcess(p)
	}
	if err := g.Build(); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := [][]string{{"X1", "Y1"}, {"X2", "Y2"}}
	if diff := cmp.Diff(want, groupNames(g)); diff != "" {
		t.Errorf("groups mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildLongestPath(t *testing.T) {
	rec := &recorder{}
	g := New(newFakeDevice(rec))

	// A -> B -> C -> D and a shortcut A -> D.
	a, b, c, d := newCmd(rec, "A"), newCmd(rec, "B"), newCmd(rec, "C"), newCmd(rec, "D")
	link(b, StageAllCommands, a)
	link(c, StageAllCommands, b)
	link(d, StageAllCommands, a, c)
	for _, p := range []Process{d, c, b, a} {
		g.AddProcess(p)
	}
	if err := g.Build(); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := map[string]int{"A": 0, "B": 1, "C": 2, "D": 3}
	if diff := cmp.Diff(want, levelsOf(t, g, a, b, c, d)); diff != "" {
		t.Errorf("levels mismatch (-want +got):\n%s", diff)
	}

	did, _ := g.NodeOf(d)
	sync, _ := g.Sync(did)
	if len(sync.Waits) != 2 {
		t.Errorf("D waits on %d semaphores, want 2", len(sync.Waits))
	}
	aid, _ := g.NodeOf(a)
	sync, _ = g.Sync(aid)
	if len(sync.Signals) != 2 {
		t.Errorf("A signals %d semaphores, want 2", len(sync.Signals))
	}
}

// layeredGraph registers a deterministic layered DAG mixing all kinds.
func layeredGraph(rec *recorder, g *Graph) []testProc {
	var procs []testProc
	for i := range 12 {
		name := fmt.Sprintf("p%02d", i)
		var p testProc
		switch i % 3 {
		case 0:
			p = newNoop(rec, name)
		case 1:
			p = newCmd(rec, name)
		default:
			p = newDirect(rec, name)
		}
		for j := range i {
			if (i*7+j*3)%5 == 0 {
				link(p, StageAllGraphics, procs[j])
			}
		}
		procs = append(procs, p)
	}
	// Register in reverse to decouple registration from dependency order.
	for i := len(procs) - 1; i >= 0; i-- {
		g.AddProcess(procs[i])
	}
	return procs
}

func TestBuildProperties(t *testing.T) {
	rec := &recorder{}
	dev := newFakeDevice(rec)
	g := New(dev)
	procs := layeredGraph(rec, g)

	if err := g.Build(); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	// Submit groups partition the nodes and match levels.
	seen := make(map[NodeID]int)
	for gi, grp := range g.SubmitGroups() {
		if len(grp) == 0 {
			t.Errorf("group %d is empty", gi)
		}
		for _, id := range grp {
			seen[id]++
			if l, _ := g.Level(id); l != gi {
				t.Errorf("node %d in group %d has level %d", id, gi, l)
			}
		}
	}
	if len(seen) != len(procs) {
		t.Errorf("groups cover %d nodes, want %d", len(seen), len(procs))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("node %d appears in %d groups", id, n)
		}
	}

	// Level is 1 + the maximum producer level; roots are level 0.
	incoming := make(map[NodeID][]NodeID)
	for _, e := range g.Edges() {
		incoming[e.Consumer] = append(incoming[e.Consumer], e.Producer)
	}
	for _, p := range procs {
		id, _ := g.NodeOf(p)
		want := 0
		for _, pid := range incoming[id] {
			pl, _ := g.Level(pid)
			want = max(want, pl+1)
		}
		if got, _ := g.Level(id); got != want {
			t.Errorf("level(%s) = %d, want %d", p.base().name, got, want)
		}
	}

	// Exactly the edges leaving non-NoOp producers carry semaphores.
	sems := 0
	for _, e := range g.Edges() {
		p, _ := g.Process(e.Producer)
		if noop := KindOf(p) == KindNoOp; noop != (e.Semaphore == nil) {
			t.Errorf("edge %d->%d: producer NoOp = %v, semaphore = %v", e.Producer, e.Consumer, noop, e.Semaphore)
		}
		if e.Semaphore != nil {
			sems++
		}
	}
	if sems != len(dev.created) || sems != g.Stats().Semaphores {
		t.Errorf("semaphores: edges %d, created %d, stats %d", sems, len(dev.created), g.Stats().Semaphores)
	}

	// Wait and signal lists reflect incoming and outgoing synchronized edges.
	for _, p := range procs {
		id, _ := g.NodeOf(p)
		sync, _ := g.Sync(id)
		var waits, signals int
		for _, e := range g.Edges() {
			if e.Semaphore == nil {
				continue
			}
			if e.Consumer == id {
				waits++
			}
			if e.Producer == id {
				signals++
			}
		}
		if len(sync.Waits) != waits || len(sync.WaitStages) != waits || len(sync.Signals) != signals {
			t.Errorf("%s: waits %d/%d signals %d, want %d and %d",
				p.base().name, len(sync.Waits), len(sync.WaitStages), len(sync.Signals), waits, signals)
		}
	}
}

func TestBuildDeterministic(t *testing.T) {
	rec := &recorder{}
	dev := newFakeDevice(rec)
	g := New(dev)
	layeredGraph(rec, g)

	if err := g.Build(); err != nil {
		t.Fatalf("first Build() error = %v", err)
	}
	firstGroups := g.SubmitGroups()
	firstSems := len(dev.created)

	if err := g.Build(); err != nil {
		t.Fatalf("second Build() error = %v", err)
	}
	if diff := cmp.Diff(firstGroups, g.SubmitGroups()); diff != "" {
		t.Errorf("groups changed across rebuilds (-first +second):\n%s", diff)
	}
	if len(dev.destroyed) != firstSems {
		t.Errorf("rebuild destroyed %d semaphores, want %d", len(dev.destroyed), firstSems)
	}
	if dev.live() != firstSems {
		t.Errorf("live semaphores = %d, want %d", dev.live(), firstSems)
	}
	if g.Stats().Builds != 2 {
		t.Errorf("Stats().Builds = %d, want 2", g.Stats().Builds)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(rec *recorder, g *Graph)
		wantErr error
	}{
		{
			name: "unregistered producer",
			setup: func(rec *recorder, g *Graph) {
				a, b := newCmd(rec, "A"), newCmd(rec, "B")
				link(b, StageAllCommands, a)
				g.AddProcess(b)
			},
			wantErr: ErrUnregisteredProducer,
		},
		{
			name: "self dependency",
			setup: func(rec *recorder, g *Graph) {
				a := newCmd(rec, "A")
				link(a, StageAllCommands, a)
				g.AddProcess(a)
			},
			wantErr: ErrSelfDependency,
		},
		{
			name: "nil resource",
			setup: func(rec *recorder, g *Graph) {
				a := newCmd(rec, "A")
				a.deps = append(a.deps, Dependency{Stage: StageTransfer})
				g.AddProcess(a)
			},
			wantErr: ErrNilResource,
		},
		{
			name: "typed nil resource",
			setup: func(rec *recorder, g *Graph) {
				a := newCmd(rec, "A")
				a.deps = append(a.deps, DependOn((*PassableResource[int])(nil), StageTransfer))
				g.AddProcess(a)
			},
			wantErr: ErrNilResource,
		},
		{
			name: "ownerless resource",
			setup: func(rec *recorder, g *Graph) {
				a := newCmd(rec, "A")
				a.deps = append(a.deps, DependOn(NewPassableResource[int](nil), StageTransfer))
				g.AddProcess(a)
			},
			wantErr: ErrNilResource,
		},
		{
			name: "cycle",
			setup: func(rec *recorder, g *Graph) {
				a, b, c := newCmd(rec, "A"), newCmd(rec, "B"), newDirect(rec, "C")
				link(b, StageAllCommands, a)
				link(c, StageAllCommands, b)
				link(a, StageAllCommands, c)
				root := newCmd(rec, "root")
				g.AddProcess(root)
				g.AddProcess(a)
				g.AddProcess(b)
				g.AddProcess(c)
			},
			wantErr: ErrCycle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			dev := newFakeDevice(rec)
			g := New(dev)
			tt.setup(rec, g)

			err := g.Build()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Build() error = %v, want %v", err, tt.wantErr)
			}
			if g.Built() {
				t.Error("Built() = true after failed Build")
			}
			if dev.live() != 0 {
				t.Errorf("%d semaphores leaked by failed Build", dev.live())
			}
			if got := g.ExecuteSequence(); !errors.Is(got, ErrNotBuilt) {
				t.Errorf("ExecuteSequence() error = %v, want %v", got, ErrNotBuilt)
			}
		})
	}
}

func TestBuildCycleNamesProcesses(t *testing.T) {
	rec := &recorder{}
	g := New(newFakeDevice(rec))
	a, b := newCmd(rec, "alpha"), newCmd(rec, "beta")
	link(a, StageAllCommands, b)
	link(b, StageAllCommands, a)
	g.AddProcess(a)
	g.AddProcess(b)

	err := g.Build()
	if err == nil {
		t.Fatal("Build() succeeded on a cycle")
	}
	for _, name := range []string{"alpha", "beta"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not name %s", err, name)
		}
	}
}

func TestBuildFailureKeepsPreviousSchedule(t *testing.T) {
	rec := &recorder{}
	dev := newFakeDevice(rec)
	g := New(dev)

	a, b := newCmd(rec, "A"), newCmd(rec, "B")
	link(b, StageAllCommands, a)
	g.AddProcess(a)
	g.AddProcess(b)
	if err := g.Build(); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	before := g.SubmitGroups()

	// A second consumer makes the rebuild need a second semaphore.
	c := newCmd(rec, "C")
	link(c, StageAllCommands, a)
	g.AddProcess(c)
	dev.createFailAt = len(dev.created) + 2

	if err := g.Build(); err == nil {
		t.Fatal("Build() succeeded despite semaphore creation failure")
	}
	if diff := cmp.Diff(before, g.SubmitGroups()); diff != "" {
		t.Errorf("failed Build replaced the schedule (-before +after):\n%s", diff)
	}
	if dev.live() != 1 {
		t.Errorf("live semaphores = %d, want 1 (previous schedule only)", dev.live())
	}
	if g.Built() {
		t.Error("Built() = true with an unscheduled process")
	}
}

func TestSemaphoreLabels(t *testing.T) {
	rec := &recorder{}
	dev := newFakeDevice(rec)
	g := New(dev, WithName("main"))
	a, b := newDirect(rec, "acquire"), newCmd(rec, "draw")
	link(b, StageColorAttachmentOutput, a)
	g.AddProcess(a)
	g.AddProcess(b)
	if err := g.Build(); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got, want := dev.created[0].label, "main: acquire -> draw"; got != want {
		t.Errorf("semaphore label = %q, want %q", got, want)
	}
}

func TestAddProcess(t *testing.T) {
	rec := &recorder{}
	g := New(newFakeDevice(rec))
	a := newCmd(rec, "A")

	id := g.AddProcess(a)
	if again := g.AddProcess(a); again != id {
		t.Errorf("AddProcess(duplicate) = %d, want %d", again, id)
	}
	if g.Len() != 1 {
		t.Errorf("Len() = %d, want 1", g.Len())
	}
	if p, ok := g.Process(id); !ok || p != Process(a) {
		t.Errorf("Process(%d) = %v, %v", id, p, ok)
	}
	if _, ok := g.Process(42); ok {
		t.Error("Process(42) found a process")
	}
}

func TestAddProcessAmbiguousPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("AddProcess did not panic on an ambiguous process")
		}
	}()
	p := &bothProc{}
	p.out = NewPassableResource[int](p)
	New(newFakeDevice(nil)).AddProcess(p)
}

func TestKindOf(t *testing.T) {
	rec := &recorder{}
	tests := []struct {
		p    Process
		want OperationKind
	}{
		{newNoop(rec, "n"), KindNoOp},
		{newCmd(rec, "c"), KindCommand},
		{newDirect(rec, "d"), KindOther},
	}
	for _, tt := range tests {
		if got := KindOf(tt.p); got != tt.want {
			t.Errorf("KindOf(%T) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestRemoveProcess(t *testing.T) {
	rec := &recorder{}
	dev := newFakeDevice(rec)
	g := New(dev)

	a, b := newCmd(rec, "A"), newCmd(rec, "B")
	link(b, StageAllCommands, a)
	aid := g.AddProcess(a)
	bid := g.AddProcess(b)
	if err := g.Build(); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if err := g.RemoveProcess(bid); err != nil {
		t.Fatalf("RemoveProcess() error = %v", err)
	}
	if b.cleanupCalls != 1 || b.releaseCalls != 1 {
		t.Errorf("B cleanup %d release %d, want 1 and 1", b.cleanupCalls, b.releaseCalls)
	}
	if g.Built() {
		t.Error("Built() = true after RemoveProcess")
	}
	if g.Len() != 1 {
		t.Errorf("Len() = %d, want 1", g.Len())
	}
	if err := g.RemoveProcess(bid); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("second RemoveProcess() error = %v, want %v", err, ErrUnknownNode)
	}

	if err := g.Build(); err != nil {
		t.Fatalf("Build() after removal error = %v", err)
	}
	if g.Stats().Edges != 0 || dev.live() != 0 {
		t.Errorf("edges %d live semaphores %d after removal, want 0 and 0", g.Stats().Edges, dev.live())
	}
	if a.longtermCalls != 1 {
		t.Errorf("A longterm acquisitions = %d, want 1", a.longtermCalls)
	}
	if _, ok := g.Level(aid); !ok {
		t.Error("Level(A) unavailable after rebuild")
	}
}

func TestRemoveProducerBreaksBuild(t *testing.T) {
	rec := &recorder{}
	g := New(newFakeDevice(rec))
	a, b := newCmd(rec, "A"), newCmd(rec, "B")
	link(b, StageAllCommands, a)
	aid := g.AddProcess(a)
	g.AddProcess(b)
	if err := g.Build(); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if err := g.RemoveProcess(aid); err != nil {
		t.Fatalf("RemoveProcess() error = %v", err)
	}
	if err := g.Build(); !errors.Is(err, ErrUnregisteredProducer) {
		t.Errorf("Build() error = %v, want %v", err, ErrUnregisteredProducer)
	}
}

func TestDestroy(t *testing.T) {
	rec := &recorder{}
	dev := newFakeDevice(rec)
	g := New(dev)

	a, b, c := newDirect(rec, "A"), newCmd(rec, "B"), newDirect(rec, "C")
	link(b, StageAllCommands, a)
	link(c, StageAllCommands, b)
	g.AddProcess(a)
	g.AddProcess(b)
	g.AddProcess(c)
	if err := g.Build(); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	rec.take()

	g.Destroy()

	want := []string{
		"cleanup C", "release C",
		"cleanup B", "release B",
		"cleanup A", "release A",
	}
	if diff := cmp.Diff(want, rec.take()); diff != "" {
		t.Errorf("destroy order mismatch (-want +got):\n%s", diff)
	}
	if dev.live() != 0 {
		t.Errorf("%d semaphores alive after Destroy", dev.live())
	}
	if g.Len() != 0 || g.Built() {
		t.Errorf("Len() = %d Built() = %v after Destroy", g.Len(), g.Built())
	}
}

func TestEmptyGraph(t *testing.T) {
	rec := &recorder{}
	dev := newFakeDevice(rec)
	g := New(dev)

	if err := g.Build(); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(g.SubmitGroups()) != 0 {
		t.Errorf("SubmitGroups() = %v, want none", g.SubmitGroups())
	}
	if err := g.ExecuteSequence(); err != nil {
		t.Fatalf("ExecuteSequence() error = %v", err)
	}
	if len(dev.batches) != 0 {
		t.Errorf("submitted %d batches, want 0", len(dev.batches))
	}
	if dev.resets != 1 {
		t.Errorf("ResetCommandPool called %d times, want 1", dev.resets)
	}
}

func TestSyncUnknownNode(t *testing.T) {
	g := New(newFakeDevice(nil))
	if _, ok := g.Sync(0); ok {
		t.Error("Sync(0) on unbuilt graph reported ok")
	}
	if _, ok := g.Level(0); ok {
		t.Error("Level(0) on unbuilt graph reported ok")
	}
	if g.Edges() != nil || g.SubmitGroups() != nil {
		t.Error("unbuilt graph reports edges or groups")
	}
}
