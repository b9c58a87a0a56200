package framegraph

import (
	"slices"
	"strings"
)

// PipelineStage is a mask of pipeline stages at which a consumer uses a
// resource. A consumer's submission only waits at these stages, so earlier
// stages may overlap with the producer.
type PipelineStage uint32

// Pipeline stages.
const (
	StageTopOfPipe PipelineStage = 1 << iota
	StageDrawIndirect
	StageVertexInput
	StageVertexShader
	StageFragmentShader
	StageColorAttachmentOutput
	StageComputeShader
	StageTransfer
	StageBottomOfPipe

	StageAllGraphics = StageDrawIndirect | StageVertexInput | StageVertexShader |
		StageFragmentShader | StageColorAttachmentOutput
	StageAllCommands = StageAllGraphics | StageTopOfPipe | StageComputeShader |
		StageTransfer | StageBottomOfPipe
)

var stageNames = []struct {
	stage PipelineStage
	name  string
}{
	{StageTopOfPipe, "TopOfPipe"},
	{StageDrawIndirect, "DrawIndirect"},
	{StageVertexInput, "VertexInput"},
	{StageVertexShader, "VertexShader"},
	{StageFragmentShader, "FragmentShader"},
	{StageColorAttachmentOutput, "ColorAttachmentOutput"},
	{StageComputeShader, "ComputeShader"},
	{StageTransfer, "Transfer"},
	{StageBottomOfPipe, "BottomOfPipe"},
}

// String returns the stage names joined by '|'.
func (s PipelineStage) String() string {
	switch s {
	case 0:
		return "None"
	case StageAllCommands:
		return "AllCommands"
	case StageAllGraphics:
		return "AllGraphics"
	}
	var parts []string
	for _, sn := range stageNames {
		if s&sn.stage != 0 {
			parts = append(parts, sn.name)
		}
	}
	return strings.Join(parts, "|")
}

// Resource is the untyped view of a passable resource: the part the graph
// needs to resolve a dependency to its producer.
type Resource interface {
	Owner() Process
}

// Dependency declares that a process consumes a resource at a stage.
type Dependency struct {
	Resource Resource
	Stage    PipelineStage
}

// DependOn is shorthand for Dependency{Resource: r, Stage: stage}.
func DependOn(r Resource, stage PipelineStage) Dependency {
	return Dependency{Resource: r, Stage: stage}
}

// PassableResource publishes a resource owned by one process to the
// processes that consume it.
//
// The owner calls SetPossibleValues whenever it (re)acquires the backing
// resources and Publish each frame it runs. Consumers read Current during
// their own operation, which the graph schedules after the owner's, and
// iterate PossibleValues during acquisition to pre-build per-value state
// (one attachment per swap image, for example).
//
// No locking is performed; the graph's ordering serializes access.
type PassableResource[T any] struct {
	owner     Process
	current   T
	published bool
	possible  []T
}

// NewPassableResource returns a resource slot owned by owner.
func NewPassableResource[T any](owner Process) *PassableResource[T] {
	return &PassableResource[T]{owner: owner}
}

// Owner returns the owning process, or nil for a nil resource.
func (r *PassableResource[T]) Owner() Process {
	if r == nil {
		return nil
	}
	return r.owner
}

// Current returns the most recently published value. It is only
// meaningful during or after the owner's operation in the current frame.
func (r *PassableResource[T]) Current() T {
	return r.current
}

// Published reports whether Publish was called since the possible values
// were last replaced.
func (r *PassableResource[T]) Published() bool {
	return r.published
}

// Publish sets the current value. Only the owner calls Publish.
func (r *PassableResource[T]) Publish(v T) {
	r.current = v
	r.published = true
}

// PossibleValues returns a copy of every value the resource may hold until
// its owner next reacquires its resources.
func (r *PassableResource[T]) PossibleValues() []T {
	return slices.Clone(r.possible)
}

// SetPossibleValues replaces the possible value set. Only the owner calls
// SetPossibleValues, from its acquisition hooks. The current value is reset.
func (r *PassableResource[T]) SetPossibleValues(values []T) {
	r.possible = slices.Clone(values)
	var zero T
	r.current = zero
	r.published = false
}
