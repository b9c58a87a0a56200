package framegraph

// CommandBuffer is an opaque queue-submittable command buffer. Its concrete
// type belongs to the Device backend that produced it.
type CommandBuffer any

// Semaphore is an opaque binary synchronization primitive created by a
// Device. One submission signals it and exactly one later submission or
// direct operation waits on it.
type Semaphore any

// Queue identifies an execution queue of a Device.
type Queue uint8

const (
	// QueueGraphics is the graphics-capable queue all batches go to.
	QueueGraphics Queue = iota

	// QueuePresent is the presentation-capable queue. Backends with a
	// single queue treat it as QueueGraphics.
	QueuePresent
)

// String returns the queue name.
func (q Queue) String() string {
	switch q {
	case QueueGraphics:
		return "graphics"
	case QueuePresent:
		return "present"
	default:
		return "unknown"
	}
}

// Submission is one command buffer with its synchronization.
// WaitStages pairs 1:1 with WaitSemaphores.
type Submission struct {
	CommandBuffer    CommandBuffer
	WaitSemaphores   []Semaphore
	WaitStages       []PipelineStage
	SignalSemaphores []Semaphore
}

// Device is the execution context the graph drives.
//
// Command buffers are allocated by the processes themselves through their
// backend; the graph only submits and recycles them.
type Device interface {
	// CreateSemaphore creates a binary synchronization primitive.
	CreateSemaphore(label string) (Semaphore, error)

	// DestroySemaphore destroys a primitive created by CreateSemaphore.
	DestroySemaphore(s Semaphore)

	// Submit transmits a batch of submissions to the graphics queue in a
	// single call. A nil CommandBuffer is an empty submission that still
	// waits and signals.
	Submit(batch []Submission) error

	// WaitIdle blocks until all work submitted to q has completed.
	WaitIdle(q Queue) error

	// FreeCommandBuffers frees buffers recorded during a frame.
	FreeCommandBuffers(bufs []CommandBuffer)

	// ResetCommandPool recycles command allocation state at the end of a
	// frame.
	ResetCommandPool() error
}
