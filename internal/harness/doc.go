// Package harness runs scripted collaboration scenarios against a real
// session and records what the renderer would have seen.
//
// # Scenario Format
//
// Scenarios are YAML (or CUE) files:
//
//	name: changed_pulse
//	description: "A change pulse clears itself after two seconds"
//	local: me
//	graph: [op-1]
//	steps:
//	  - presence: { peer: p1, state: { user: { color: red }, changed: op-1 } }
//	  - advance: 2s
//	  - snapshot: { operators: [ { id: op-1 } ] }
//	assertions:
//	  - type: effect_order
//	    effects: ["RaiseChanged(p1, op-1, red)", "ClearChanged(p1, op-1)"]
//
// Each step does exactly one thing:
//
//   - presence: a remote peer broadcasts a new state (its clock advances)
//   - leave: a remote peer broadcasts its own removal
//   - remove: the transport reports peers as gone
//   - advance: virtual time moves forward, firing due timers
//   - shadow / stop_shadowing: the local user follows a peer or stops
//   - snapshot: the local document state changes and is mirrored
//
// # Assertion Types
//
//   - effect_contains: an effect appears in the trace
//   - effect_order: effects appear in the given order
//   - effect_count: an effect appears exactly N times
//   - op_count: the mirror recorded exactly N ops
//   - shadow: the final shadow target (empty for none)
//   - tracked: the final set of tracked peers
//   - mirror: the final mirrored state equals expect
//
// # Deterministic Testing
//
// Scenarios run on a manual scheduler over a deterministic clock, with an
// in-memory store and sequential row ids, so traces are byte-identical
// across runs and can be compared against golden files.
package harness
