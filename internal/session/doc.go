// Package session wires a mirror document, the awareness map and the
// presence protocol behind one single-writer event loop.
//
// None of mirror.Doc, awareness.Awareness or presence.Protocol is safe for
// concurrent use. Session owns all three and mutates them only from the
// goroutine running Run. Other goroutines submit work through the Enqueue
// methods; timer callbacks scheduled by the presence protocol are delivered
// as events on the same queue, so they never race with snapshot patching or
// awareness updates. Mirror ops from other replicas arrive the same way
// (EnqueueRemoteOps) and are merged by element id.
//
// Event processing failures are logged and the loop continues. A failed
// patch leaves the mirror as it was and the next snapshot retries from
// there. A failed merge keeps the ops merged before the failure.
package session
