// Package value provides the plain value model for coedit.
//
// A plain value (a "snapshot") is what the application wants the mirror to
// look like. Go values are classified exactly once, at the boundary, by
// FromGo or FromJSON. Everything downstream switches over the closed set of
// variants defined here and never inspects Go runtime kinds again.
//
// Key design constraints:
//   - Value is sealed; only the types in this package implement it
//   - Undefined and Null are distinct (Undefined means "absent")
//   - Object key iteration is always via SortedKeys for determinism
//   - This package imports nothing internal
package value
