package ownership

import "runtime"

// Track releases s if owner becomes unreachable while s is still held,
// then calls onLeak. Stop the returned cleanup once owner releases s itself.
// s must not reference owner.
func Track[T any, H comparable](owner *T, s *Shared[H], onLeak func(H)) runtime.Cleanup {
	return runtime.AddCleanup(owner, func(s *Shared[H]) {
		if s.Released() {
			return
		}
		h := s.c.guard.Handle()
		s.Release()
		if onLeak != nil {
			onLeak(h)
		}
	}, s)
}

// TrackGuard is Track for a single-owner guard.
func TrackGuard[T any, H comparable](owner *T, g *Guard[H], onLeak func(H)) runtime.Cleanup {
	return runtime.AddCleanup(owner, func(g *Guard[H]) {
		if g.Release() && onLeak != nil {
			onLeak(g.Handle())
		}
	}, g)
}
