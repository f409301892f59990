package runtime

import (
	"context"
	goruntime "runtime"
	"sync"

	"github.com/wippyai/wasm3-go/engine"
	"github.com/wippyai/wasm3-go/errors"
	"github.com/wippyai/wasm3-go/internal/ownership"
)

// Module is a parsed module that has not been loaded yet.
//
// A module has a single owner. It holds its own environment holder until it
// is either closed or consumed by Store.Load.
type Module struct {
	env     *Environment
	guard   *ownership.Guard[engine.ModuleHandle]
	cleanup goruntime.Cleanup
	name    string
	mu      sync.Mutex
	loaded  bool
}

// ParseModule parses wasm on env. Parse and validation errors of the native
// library are returned as parse errors.
func ParseModule(ctx context.Context, env *Environment, wasm []byte) (*Module, error) {
	if env == nil {
		return nil, errors.InvalidInput(errors.PhaseModule, "nil environment")
	}

	envRef, err := env.Clone()
	if err != nil {
		return nil, err
	}
	envHandle, err := envRef.handle()
	if err != nil {
		envRef.Close()
		return nil, err
	}

	lib := env.lib
	h, err := lib.ParseModule(ctx, envHandle, wasm)
	if err != nil {
		envRef.Close()
		return nil, errors.ParseFailed("module", err)
	}
	if h == 0 {
		envRef.Close()
		return nil, errors.AllocationFailed(errors.PhaseModule, "module")
	}

	m := &Module{
		env:  envRef,
		name: lib.ModuleName(h),
		guard: ownership.NewGuard(h, func(h engine.ModuleHandle) {
			lib.FreeModule(h)
			envRef.Close()
		}),
	}
	m.cleanup = ownership.TrackGuard(m, m.guard, leakLogger[engine.ModuleHandle]("module"))
	return m, nil
}

// Name returns the module name from its name section, or "".
func (m *Module) Name() string {
	return m.name
}

// Loaded reports whether the module has been consumed by Store.Load.
func (m *Module) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// Close frees the module unless it was loaded. Closing twice is a no-op.
func (m *Module) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanup.Stop()
	m.guard.Release()
	return nil
}

// loadInto loads m into the runtime held by rtRef. On success the returned
// instance owns rtRef and the module's native handle belongs to the runtime.
func (m *Module) loadInto(ctx context.Context, storeEnv *Environment, lib engine.Library, rtRef *ownership.Shared[engine.RuntimeHandle]) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return nil, errors.New(errors.PhaseModule, errors.KindReleased).
			Resource("module").
			Detail("module already loaded").
			Build()
	}
	if !m.guard.Armed() {
		return nil, errors.Released(errors.PhaseModule, "module", ownership.ErrReleased)
	}
	if !m.env.Equal(storeEnv) {
		return nil, errors.EnvironmentMismatch(errors.PhaseModule, "module")
	}

	rt, err := rtRef.Handle()
	if err != nil {
		return nil, errors.Released(errors.PhaseStore, "store", err)
	}

	inst, err := lib.LoadModule(ctx, rt, m.guard.Handle())
	if err != nil {
		return nil, errors.Instantiation(err)
	}

	// The runtime owns the native module now; the store's environment
	// holder covers the dependency the module's holder used to carry.
	m.guard.Take()
	m.cleanup.Stop()
	m.loaded = true
	m.env.Close()

	return newInstance(lib, rtRef, inst, m.name), nil
}
