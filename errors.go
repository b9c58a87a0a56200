package framegraph

import (
	"errors"
	"fmt"
)

// Construction errors returned by [Graph.Build].
var (
	// ErrUnregisteredProducer is returned when a dependency refers to a
	// resource whose owner was never added to the graph.
	ErrUnregisteredProducer = errors.New("framegraph: dependency on unregistered process")

	// ErrSelfDependency is returned when a process lists one of its own
	// resources as a dependency.
	ErrSelfDependency = errors.New("framegraph: process depends on its own resource")

	// ErrNilResource is returned when a dependency has no resource, or a
	// resource without an owner.
	ErrNilResource = errors.New("framegraph: dependency without resource")

	// ErrCycle is returned when the declared dependencies are cyclic.
	ErrCycle = errors.New("framegraph: dependency cycle")

	// ErrAcquire wraps failures of resource acquisition hooks.
	ErrAcquire = errors.New("framegraph: resource acquisition failed")
)

// Usage errors.
var (
	// ErrNotBuilt is returned when the graph is executed or its frame
	// resources are acquired before Build, or after processes were added
	// or removed since the last Build.
	ErrNotBuilt = errors.New("framegraph: graph not built")

	// ErrUnknownNode is returned for a NodeID that does not refer to a
	// registered process.
	ErrUnknownNode = errors.New("framegraph: unknown node")

	// ErrFrameResources is returned when a frame is executed while frame
	// resources are invalidated, or while any longterm or frame acquisition
	// has not succeeded.
	ErrFrameResources = errors.New("framegraph: frame resources not acquired")

	// ErrReentrant is returned when the graph is used from inside one of
	// the process hooks it is currently running.
	ErrReentrant = errors.New("framegraph: graph used from a process hook")
)

// Frame errors. Every error returned by [Graph.ExecuteSequence] for an
// abandoned frame matches ErrFrameAborted and exactly one of
// ErrOperationFailed or ErrSubmitFailed.
var (
	ErrFrameAborted    = errors.New("framegraph: frame aborted")
	ErrOperationFailed = errors.New("framegraph: operation failed")
	ErrSubmitFailed    = errors.New("framegraph: submission failed")
)

// FrameError describes why the remaining schedule of a frame was abandoned.
type FrameError struct {
	// Group is the index of the submit group being executed.
	Group int

	// Node is the failing process, or InvalidNode for a batch submission
	// failure.
	Node NodeID

	// Process is a human readable description of the failing process.
	Process string

	// Kind is ErrOperationFailed or ErrSubmitFailed.
	Kind error

	// Err is the underlying error.
	Err error
}

func (e *FrameError) Error() string {
	if e.Node == InvalidNode {
		return fmt.Sprintf("framegraph: frame aborted in group %d: batch submission: %v", e.Group, e.Err)
	}
	return fmt.Sprintf("framegraph: frame aborted in group %d: %s: %v", e.Group, e.Process, e.Err)
}

// Unwrap lets errors.Is match ErrFrameAborted, the failure kind and the
// underlying error.
func (e *FrameError) Unwrap() []error {
	return []error{ErrFrameAborted, e.Kind, e.Err}
}
