package ownership

import "sync/atomic"

const (
	guardArmed int32 = iota
	guardReleased
	guardTaken
)

// Guard owns a native handle and releases it exactly once.
type Guard[H comparable] struct {
	release func(H)
	handle  H
	state   atomic.Int32
}

// NewGuard takes ownership of handle. release is called with handle
// the first time Release wins.
func NewGuard[H comparable](handle H, release func(H)) *Guard[H] {
	return &Guard[H]{handle: handle, release: release}
}

// Handle returns the guarded handle. It remains readable after release;
// using it then is the caller's bug.
func (g *Guard[H]) Handle() H {
	return g.handle
}

// Release runs the release function if the guard still owns the handle.
// It reports whether this call performed the release.
func (g *Guard[H]) Release() bool {
	if !g.state.CompareAndSwap(guardArmed, guardReleased) {
		return false
	}
	if g.release != nil {
		g.release(g.handle)
	}
	return true
}

// Take transfers ownership out of the guard without releasing.
// The caller becomes responsible for the handle.
func (g *Guard[H]) Take() (H, bool) {
	if !g.state.CompareAndSwap(guardArmed, guardTaken) {
		var zero H
		return zero, false
	}
	return g.handle, true
}

// Armed reports whether the guard still owns its handle.
func (g *Guard[H]) Armed() bool {
	return g.state.Load() == guardArmed
}
