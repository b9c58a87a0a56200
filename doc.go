// Package framegraph schedules GPU frame work expressed as a graph of
// processes.
//
// # Overview
//
// A process is an independent unit of GPU work. It owns its GPU resources
// and publishes some of them through [PassableResource] slots; other
// processes consume those slots by declaring a [Dependency] on them.
// A [Graph] turns the declared dependencies into a directed acyclic
// execution graph, synthesizes one synchronization primitive per edge,
// levels the nodes into submit groups and drives them frame after frame.
//
// # Quick Start
//
//	g := framegraph.New(device)
//	g.AddProcess(swapchain)
//	g.AddProcess(pass)
//	g.AddProcess(present)
//	if err := g.Build(); err != nil {
//	    return err
//	}
//	for running {
//	    if err := g.ExecuteSequence(); err != nil {
//	        log.Print(err) // the frame was abandoned, the graph is intact
//	    }
//	}
//
// # Process variants
//
// The operation kind of a process is determined by the interface it
// implements:
//   - [CommandProcess]: records a command buffer; all command processes of
//     one level are submitted to the queue in a single batch.
//   - [DirectProcess]: performs a direct operation (acquiring or presenting
//     a surface image) using the wait and signal primitives handed to it.
//   - anything else is a no-op process: it only owns resources, so edges
//     leaving it carry no synchronization primitive.
//
// Lifecycle hooks are optional interfaces: [LongtermAcquirer],
// [FrameAcquirer], [FrameCleaner] and [Releaser].
//
// # Frame resources
//
// Resources tied to a resizable surface are frame resources. When the
// surface must be rebuilt, call [Graph.InvalidateFrameResources] followed by
// [Graph.AcquireFrameResources]; the first unwinds consumers before
// producers, the second re-acquires producers before consumers.
//
// # Concurrency
//
// A Graph is not safe for concurrent use and is not reentrant: process
// hooks must not call back into the graph that invokes them.
package framegraph
