package runtime

import (
	"context"
	goruntime "runtime"

	"github.com/wippyai/wasm3-go/engine"
	"github.com/wippyai/wasm3-go/errors"
	"github.com/wippyai/wasm3-go/internal/ownership"
)

// Instance is a module loaded into a Store. It keeps the store's native
// runtime alive until it is closed.
type Instance struct {
	lib     engine.Library
	rt      *ownership.Shared[engine.RuntimeHandle]
	cleanup goruntime.Cleanup
	name    string
	handle  engine.InstanceHandle
}

func newInstance(lib engine.Library, rt *ownership.Shared[engine.RuntimeHandle], h engine.InstanceHandle, name string) *Instance {
	i := &Instance{lib: lib, rt: rt, handle: h, name: name}
	i.cleanup = ownership.Track(i, rt, leakLogger[engine.RuntimeHandle]("instance"))
	return i
}

// Name returns the name of the loaded module, or "".
func (i *Instance) Name() string {
	return i.name
}

// Call invokes an exported function with raw core-wasm values. The store's
// runtime stays alive for the duration of the call even if the instance is
// closed concurrently.
func (i *Instance) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	rt, err := i.rt.Clone()
	if err != nil {
		return nil, errors.Released(errors.PhaseRuntime, "instance", err)
	}
	defer rt.Release()

	results, err := i.lib.Call(ctx, i.handle, name, params...)
	if err != nil {
		if errors.IsKind(err, errors.KindNotFound) {
			return nil, err
		}
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindTrap, err, "call "+name)
	}
	return results, nil
}

// Exports returns the sorted names of exported functions.
func (i *Instance) Exports() []string {
	rt, err := i.rt.Clone()
	if err != nil {
		return nil
	}
	defer rt.Release()
	return i.lib.Exports(i.handle)
}

// Close drops the instance's holder of the store runtime.
func (i *Instance) Close() error {
	i.cleanup.Stop()
	i.rt.Release()
	return nil
}
