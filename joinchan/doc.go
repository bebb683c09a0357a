// Package joinchan provides Go-channel sugar over the offer-based target
// and source protocols: Feed pushes values from a channel into a target's
// Post method, Drain pulls emitted groups out of a source into a channel.
//
// Neither the core coordination engine nor any of its types import this
// package; it is an optional adapter for callers who would rather work
// with channels than call Post/TryReceive directly.
package joinchan
