// Package awareness implements the keyed last-writer-wins state map that
// peers use to broadcast ephemeral presence.
//
// Each peer owns one entry, keyed by its peer id, and stamps every write with
// a per-peer clock. An incoming entry replaces the stored one only if its
// clock is newer; there is no ordering or acknowledgement beyond that.
// Subscribers receive batched Change events listing which peer ids were
// added, updated or removed by a single call.
//
// Moving encoded updates between processes is the transport's concern; this
// package only produces and consumes the wire form.
package awareness
