// Package registry holds the shared list of host network adapters and their
// discovery state.
//
// The registry is the one piece of mutable state shared by the enumeration,
// capture and probe tasks. Each adapter carries two ownership flags:
//
//   - listening: set by ClaimCapture, cleared by ReleaseCapture. At most one
//     capture runs per adapter.
//   - probing: set by ClaimProbe, cleared by NextCandidate (nothing left) or
//     FinishProbe. At most one probe runs per adapter, so candidates are
//     drained sequentially in discovery order.
//
// An address is either a candidate or searched, never both, and a searched
// address is never queued again.
//
// Adapters are only ever added. An interface that disappears from the host
// keeps its entry until the process exits.
package registry
