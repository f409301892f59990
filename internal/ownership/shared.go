package ownership

import (
	"errors"
	"sync/atomic"
)

// ErrReleased is returned when a released holder is used.
var ErrReleased = errors.New("ownership: handle released")

type cell[H comparable] struct {
	guard *Guard[H]
	refs  atomic.Int64
}

// Shared is one holder of a reference-counted guard.
type Shared[H comparable] struct {
	c        *cell[H]
	released atomic.Bool
}

// NewShared wraps g in a new cell and returns its first holder.
func NewShared[H comparable](g *Guard[H]) *Shared[H] {
	c := &cell[H]{guard: g}
	c.refs.Store(1)
	return &Shared[H]{c: c}
}

// Clone returns a new holder of the same cell.
// It fails once this holder is released or the cell's count reached zero.
func (s *Shared[H]) Clone() (*Shared[H], error) {
	if s.released.Load() {
		return nil, ErrReleased
	}
	for {
		n := s.c.refs.Load()
		if n <= 0 {
			return nil, ErrReleased
		}
		if s.c.refs.CompareAndSwap(n, n+1) {
			return &Shared[H]{c: s.c}, nil
		}
	}
}

// Release drops this holder's reference. It reports whether the call
// dropped the last reference and released the guard.
// Releasing a holder twice is a no-op.
func (s *Shared[H]) Release() bool {
	if !s.released.CompareAndSwap(false, true) {
		return false
	}
	n := s.c.refs.Add(-1)
	if n < 0 {
		panic("ownership: negative reference count")
	}
	if n == 0 {
		return s.c.guard.Release()
	}
	return false
}

// Handle returns the shared handle while this holder is live.
func (s *Shared[H]) Handle() (H, error) {
	if s.released.Load() {
		var zero H
		return zero, ErrReleased
	}
	return s.c.guard.Handle(), nil
}

// Released reports whether this holder has been released.
func (s *Shared[H]) Released() bool {
	return s.released.Load()
}

// Same reports whether s and other hold the same cell.
func (s *Shared[H]) Same(other *Shared[H]) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.c == other.c
}

// Refs returns the number of live holders of the cell.
func (s *Shared[H]) Refs() int64 {
	return s.c.refs.Load()
}
