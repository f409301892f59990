package runtime

import (
	"context"
	goruntime "runtime"
	"sync"

	"github.com/wippyai/wasm3-go/engine"
	"github.com/wippyai/wasm3-go/errors"
	"github.com/wippyai/wasm3-go/internal/ownership"
)

// Store owns a native runtime with a fixed stack budget and a host payload.
//
// The store keeps its own holder of the environment. That holder is dropped
// only after the native runtime is freed, which happens once the store and
// every Instance loaded into it are closed.
type Store[T any] struct {
	env        *Environment
	lib        engine.Library
	ref        *ownership.Shared[engine.RuntimeHandle]
	cleanup    goruntime.Cleanup
	data       *T
	stackSlots uint32
	loadMu     sync.Mutex
}

// NewStore creates a store on env with a stack of stackSlots slots.
// data is owned by the store from here on.
func NewStore[T any](ctx context.Context, env *Environment, stackSlots uint32, data T) (*Store[T], error) {
	if env == nil {
		return nil, errors.InvalidInput(errors.PhaseStore, "nil environment")
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

	s := &Store[T]{
		env:        envRef,
		lib:        env.lib,
		data:       &data,
		stackSlots: stackSlots,
	}

	rt := env.lib.NewRuntime(ctx, envHandle, stackSlots, s.data)
	if rt == 0 {
		envRef.Close()
		return nil, errors.New(errors.PhaseStore, errors.KindAllocation).
			Resource("runtime").
			Detail("native library rejected a stack of %d slots", stackSlots).
			Build()
	}

	lib := env.lib
	guard := ownership.NewGuard(rt, func(h engine.RuntimeHandle) {
		lib.FreeRuntime(h)
		envRef.Close()
	})
	s.ref = ownership.NewShared(guard)
	s.cleanup = ownership.Track(s, s.ref, leakLogger[engine.RuntimeHandle]("store"))
	return s, nil
}

// Data returns the store's payload.
func (s *Store[T]) Data() *T {
	return s.data
}

// StackSlots returns the stack size the store was created with.
func (s *Store[T]) StackSlots() uint32 {
	return s.stackSlots
}

// Environment returns a new holder of the store's environment.
// The caller must close it.
func (s *Store[T]) Environment() (*Environment, error) {
	if s.ref.Released() {
		return nil, errors.Released(errors.PhaseStore, "store", ownership.ErrReleased)
	}
	return s.env.Clone()
}

// Load loads m into the store and returns the resulting instance.
// m must come from an environment Equal to the store's. On success m is
// consumed and closing it afterwards is a no-op.
func (s *Store[T]) Load(ctx context.Context, m *Module) (*Instance, error) {
	if m == nil {
		return nil, errors.InvalidInput(errors.PhaseModule, "nil module")
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	rtRef, err := s.ref.Clone()
	if err != nil {
		return nil, errors.Released(errors.PhaseStore, "store", err)
	}

	inst, err := m.loadInto(ctx, s.env, s.lib, rtRef)
	if err != nil {
		rtRef.Release()
		return nil, err
	}
	return inst, nil
}

// Close drops the store's holder of its native runtime. The runtime is
// freed once every Instance loaded into it is closed too.
func (s *Store[T]) Close() error {
	s.cleanup.Stop()
	s.ref.Release()
	return nil
}
