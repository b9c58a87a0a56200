package framegraph

// OperationKind classifies what a process does when the graph executes it.
type OperationKind uint8

const (
	// KindNoOp processes produce no GPU-visible event. They only own
	// resources, so edges leaving them carry no synchronization primitive.
	KindNoOp OperationKind = iota

	// KindCommand processes record a queue-submittable command buffer.
	KindCommand

	// KindOther processes perform a direct operation outside command
	// buffer recording, such as acquiring or presenting a surface image.
	KindOther
)

// String returns the kind name.
func (k OperationKind) String() string {
	switch k {
	case KindNoOp:
		return "NoOp"
	case KindCommand:
		return "Command"
	case KindOther:
		return "Other"
	default:
		return "Unknown"
	}
}

// Process is a schedulable unit of GPU work.
//
// Dependencies returns every passable resource the process consumes but
// does not own. Self-owned resources are implicit and must not be listed.
// The graph queries Dependencies on every Build.
//
// Processes are registered by identity, so implementations must be
// pointer types (or otherwise comparable).
type Process interface {
	Dependencies() []Dependency
}

// CommandProcess is a process that records a command buffer each frame.
//
// The returned buffer is owned by the graph from then on: it is submitted
// with the process's wait and signal primitives and freed at the end of the
// frame. A non-nil error abandons the rest of the frame.
type CommandProcess interface {
	Process
	RecordCommands() (CommandBuffer, error)
}

// DirectProcess is a process ("Other" kind) that performs its operation
// directly. It must wait on waits before touching consumed resources and
// signal every primitive in signals once its work is visible.
//
// Returning a non-nil error abandons the rest of the frame. Both slices are
// owned by the graph and must not be retained or modified.
type DirectProcess interface {
	Process
	PerformDirect(waits, signals []Semaphore) error
}

// LongtermAcquirer is implemented by processes owning resources that live
// for as long as the process is part of the graph. The hook runs once, after
// the first Build that includes the process.
type LongtermAcquirer interface {
	AcquireLongtermResources() error
}

// FrameAcquirer is implemented by processes owning resources tied to the
// presentation surface. Owners publish their possible values here.
type FrameAcquirer interface {
	AcquireFrameResources() error
}

// FrameCleaner releases the resources acquired by FrameAcquirer.
type FrameCleaner interface {
	CleanupFrameResources()
}

// Releaser releases longterm resources when the process is removed from the
// graph or the graph is destroyed.
type Releaser interface {
	Release()
}

// Named processes are identified by name in logs and errors.
type Named interface {
	Name() string
}

// KindOf reports the operation kind of p.
func KindOf(p Process) OperationKind {
	switch p.(type) {
	case CommandProcess:
		return KindCommand
	case DirectProcess:
		return KindOther
	default:
		return KindNoOp
	}
}

// ambiguous reports whether p implements both operation variants.
func ambiguous(p Process) bool {
	_, cmd := p.(CommandProcess)
	_, direct := p.(DirectProcess)
	return cmd && direct
}
