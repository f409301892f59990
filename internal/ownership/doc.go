// Package ownership provides the two lifetime primitives the bindings are built on.
//
// Guard is the single owner of a native handle. Its release action runs at most
// once, no matter how many goroutines race to release it.
//
// Shared is one holder of a reference-counted cell wrapping exactly one Guard.
// Holders are created by NewShared and Clone, and each is released once. The
// holder that drops the count to zero releases the guard.
//
// The two are kept separate: Shared decides when, Guard guarantees once.
package ownership
