package framegraph

import (
	"errors"
	"fmt"
	"slices"
)

// fakeSemaphore is the Semaphore handed out by fakeDevice.
type fakeSemaphore struct {
	id    int
	label string
}

// fakeDevice records every call the graph makes.
type fakeDevice struct {
	created   []*fakeSemaphore
	destroyed []*fakeSemaphore
	batches   [][]Submission
	idle      []Queue
	freed     []CommandBuffer
	resets    int

	// Failure injection.
	createFailAt int // fail the n-th CreateSemaphore call (1-based); 0 disables
	submitErr    error
	idleErr      error
	resetErr     error

	rec *recorder
}

func newFakeDevice(rec *recorder) *fakeDevice {
	return &fakeDevice{rec: rec}
}

func (d *fakeDevice) CreateSemaphore(label string) (Semaphore, error) {
	if d.createFailAt > 0 && len(d.created)+1 == d.createFailAt {
		return nil, errors.New("out of semaphores")
	}
	s := &fakeSemaphore{id: len(d.created), label: label}
	d.created = append(d.created, s)
	return s, nil
}

func (d *fakeDevice) DestroySemaphore(s Semaphore) {
	d.destroyed = append(d.destroyed, s.(*fakeSemaphore))
}

func (d *fakeDevice) Submit(batch []Submission) error {
	d.rec.add(fmt.Sprintf("submit %d", len(batch)))
	if d.submitErr != nil {
		return d.submitErr
	}
	d.batches = append(d.batches, slices.Clone(batch))
	return nil
}

func (d *fakeDevice) WaitIdle(q Queue) error {
	d.rec.add("idle " + q.String())
	d.idle = append(d.idle, q)
	return d.idleErr
}

func (d *fakeDevice) FreeCommandBuffers(bufs []CommandBuffer) {
	d.freed = append(d.freed, bufs...)
}

func (d *fakeDevice) ResetCommandPool() error {
	d.rec.add("reset")
	d.resets++
	return d.resetErr
}

// live returns the semaphores created and not yet destroyed.
func (d *fakeDevice) live() int {
	return len(d.created) - len(d.destroyed)
}

// recorder is a shared ordered event log.
type recorder struct {
	events []string
}

func (r *recorder) add(e string) {
	if r != nil {
		r.events = append(r.events, e)
	}
}

func (r *recorder) take() []string {
	ev := r.events
	r.events = nil
	return ev
}

// baseProc implements the optional lifecycle hooks and exposes one output
// resource owned by the embedding process.
type baseProc struct {
	name string
	deps []Dependency
	out  *PassableResource[int]
	rec  *recorder

	longtermErr error
	frameErr    error

	longtermCalls int
	frameCalls    int
	cleanupCalls  int
	releaseCalls  int

	// hook runs inside the operation of command and direct processes.
	hook func()
}

func (b *baseProc) base() *baseProc { return b }

func (b *baseProc) Name() string { return b.name }

func (b *baseProc) Dependencies() []Dependency { return b.deps }

func (b *baseProc) AcquireLongtermResources() error {
	b.longtermCalls++
	b.rec.add("longterm " + b.name)
	return b.longtermErr
}

func (b *baseProc) AcquireFrameResources() error {
	b.frameCalls++
	b.rec.add("frame " + b.name)
	if b.frameErr != nil {
		return b.frameErr
	}
	b.out.SetPossibleValues([]int{1, 2})
	return nil
}

func (b *baseProc) CleanupFrameResources() {
	b.cleanupCalls++
	b.rec.add("cleanup " + b.name)
}

func (b *baseProc) Release() {
	b.releaseCalls++
	b.rec.add("release " + b.name)
}

type testProc interface {
	Process
	base() *baseProc
}

// noopProc only owns a resource.
type noopProc struct{ baseProc }

// cmdProc records a command buffer each frame.
type cmdProc struct {
	baseProc
	buf  CommandBuffer
	err  error
	runs int
}

func (p *cmdProc) RecordCommands() (CommandBuffer, error) {
	p.runs++
	p.rec.add("record " + p.name)
	if p.hook != nil {
		p.hook()
	}
	if p.err != nil {
		return nil, p.err
	}
	p.out.Publish(p.runs)
	return p.buf, nil
}

// directProc performs a direct operation each frame.
type directProc struct {
	baseProc
	err     error
	runs    int
	waits   [][]Semaphore
	signals [][]Semaphore
}

func (p *directProc) PerformDirect(waits, signals []Semaphore) error {
	p.runs++
	p.rec.add("direct " + p.name)
	p.waits = append(p.waits, slices.Clone(waits))
	p.signals = append(p.signals, slices.Clone(signals))
	if p.hook != nil {
		p.hook()
	}
	if p.err != nil {
		return p.err
	}
	p.out.Publish(p.runs)
	return nil
}

// bothProc is ambiguous: it implements both operation variants.
type bothProc struct{ baseProc }

func (p *bothProc) RecordCommands() (CommandBuffer, error) { return nil, nil }

func (p *bothProc) PerformDirect(_, _ []Semaphore) error { return nil }

func newNoop(rec *recorder, name string) *noopProc {
	p := &noopProc{baseProc: baseProc{name: name, rec: rec}}
	p.out = NewPassableResource[int](p)
	return p
}

func newCmd(rec *recorder, name string) *cmdProc {
	p := &cmdProc{baseProc: baseProc{name: name, rec: rec}}
	p.out = NewPassableResource[int](p)
	p.buf = "cb:" + name
	return p
}

func newDirect(rec *recorder, name string) *directProc {
	p := &directProc{baseProc: baseProc{name: name, rec: rec}}
	p.out = NewPassableResource[int](p)
	return p
}

// link makes consumer depend on the output of every producer.
func link(consumer testProc, stage PipelineStage, producers ...testProc) {
	b := consumer.base()
	for _, p := range producers {
		b.deps = append(b.deps, DependOn(p.base().out, stage))
	}
}

// namesOf maps node handles to process names.
func namesOf(g *Graph, ids []NodeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		p, _ := g.Process(id)
		out[i] = p.(Named).Name()
	}
	return out
}

// groupNames returns the submit groups by process name.
func groupNames(g *Graph) [][]string {
	var out [][]string
	for _, grp := range g.SubmitGroups() {
		out = append(out, namesOf(g, grp))
	}
	return out
}
