// Package engine runs the discovery service.
//
// A Service owns the adapter registry, the status log and a worker pool.
// Its orchestrator loop runs on its own goroutine and, once per tick,
// submits a capture task for every Ethernet adapter that has none and a
// probe task for every adapter with queued candidates. An enumeration task
// keeps merging newly seen adapters into the registry for the life of the
// run.
//
// Three flags (running, listening, scanning) are polled by every loop.
// Clearing them is the only way a run ends; no task is ever interrupted
// except through the context its loop also watches.
//
// All progress is reported through the status log and the Result set of the
// published status document. When a status channel is configured the
// orchestrator publishes once per tick and reads one controller command
// back.
package engine
