package engine

import "sync"

var (
	defaultLib  *WazeroLibrary
	defaultOnce sync.Once
)

// Default returns the process-wide library used when no library is given.
// It is created with DefaultConfig on first use and never closed.
func Default() Library {
	defaultOnce.Do(func() {
		defaultLib = NewWazeroLibrary(nil)
	})
	return defaultLib
}
