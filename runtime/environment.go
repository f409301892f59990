package runtime

import (
	"context"
	goruntime "runtime"

	"go.uber.org/zap"

	"github.com/wippyai/wasm3-go/engine"
	"github.com/wippyai/wasm3-go/errors"
	"github.com/wippyai/wasm3-go/internal/ownership"
)

// Environment is a shared handle to a native environment, the root resource
// every Store and Module is created from.
//
// Each *Environment is one holder. Clone adds a holder, Close drops one. The
// native environment is freed once, after the last holder is gone, including
// the holders kept by stores and modules.
type Environment struct {
	lib     engine.Library
	ref     *ownership.Shared[engine.EnvironmentHandle]
	cleanup goruntime.Cleanup
}

// NewEnvironment creates an environment on the default library.
func NewEnvironment(ctx context.Context) (*Environment, error) {
	return NewEnvironmentWithLibrary(ctx, engine.Default())
}

// NewEnvironmentWithLibrary creates an environment on lib.
// It fails with an allocation error if lib returns a null handle.
func NewEnvironmentWithLibrary(ctx context.Context, lib engine.Library) (*Environment, error) {
	if lib == nil {
		return nil, errors.InvalidInput(errors.PhaseEnvironment, "nil library")
	}

	h := lib.NewEnvironment(ctx)
	if h == 0 {
		return nil, errors.AllocationFailed(errors.PhaseEnvironment, "environment")
	}

	guard := ownership.NewGuard(h, lib.FreeEnvironment)
	return newEnvironment(lib, ownership.NewShared(guard)), nil
}

func newEnvironment(lib engine.Library, ref *ownership.Shared[engine.EnvironmentHandle]) *Environment {
	e := &Environment{lib: lib, ref: ref}
	e.cleanup = ownership.Track(e, ref, leakLogger[engine.EnvironmentHandle]("environment"))
	return e
}

// Clone returns a new holder of the same native environment.
// The clone is Equal to e and must be closed separately.
func (e *Environment) Clone() (*Environment, error) {
	ref, err := e.ref.Clone()
	if err != nil {
		return nil, errors.Released(errors.PhaseEnvironment, "environment", err)
	}
	return newEnvironment(e.lib, ref), nil
}

// Close drops this holder. Closing a holder twice is a no-op.
func (e *Environment) Close() error {
	e.cleanup.Stop()
	e.ref.Release()
	return nil
}

// Equal reports whether e and other hold the same native environment.
// Independently created environments are never equal.
func (e *Environment) Equal(other *Environment) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.ref.Same(other.ref)
}

// Refs returns the number of live holders of the native environment.
func (e *Environment) Refs() int64 {
	return e.ref.Refs()
}

// CreateStore creates a store with the given stack size in slots.
// Use NewStore for a typed data payload.
func (e *Environment) CreateStore(ctx context.Context, stackSlots uint32, data any) (*Store[any], error) {
	return NewStore(ctx, e, stackSlots, data)
}

// ParseModule parses a wasm module from raw bytes. The module keeps wasm;
// callers that reuse the buffer must pass a copy.
func (e *Environment) ParseModule(ctx context.Context, wasm []byte) (*Module, error) {
	return ParseModule(ctx, e, wasm)
}

// handle returns the native handle. It is only valid while e is open and
// must never be freed by the caller.
func (e *Environment) handle() (engine.EnvironmentHandle, error) {
	h, err := e.ref.Handle()
	if err != nil {
		return 0, errors.Released(errors.PhaseEnvironment, "environment", err)
	}
	return h, nil
}

func leakLogger[H ~uint32](what string) func(H) {
	return func(h H) {
		engine.Logger().Warn("native handle holder collected without Close",
			zap.String("resource", what), zap.Uint32("handle", uint32(h)))
	}
}
