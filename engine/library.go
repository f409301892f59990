package engine

import (
	"context"

	"github.com/wippyai/wasm3-go/resource"
)

// Native handles. The zero value of each is the null handle.
type (
	EnvironmentHandle resource.Handle
	RuntimeHandle     resource.Handle
	ModuleHandle      resource.Handle
	InstanceHandle    resource.Handle
)

// Library is the boundary to a native interpreter.
//
// Creation calls return the null handle on allocation failure. Each non-null
// handle must be freed exactly once by its owner; the library does not count
// references. Freeing an environment while runtimes or modules created from it
// are live is undefined behaviour on a real native library.
type Library interface {
	// NewEnvironment allocates the global interpreter configuration.
	NewEnvironment(ctx context.Context) EnvironmentHandle
	FreeEnvironment(env EnvironmentHandle)

	// NewRuntime allocates an execution runtime with a stack of stackSlots
	// slots. Out-of-range stack sizes yield the null handle.
	NewRuntime(ctx context.Context, env EnvironmentHandle, stackSlots uint32, userdata any) RuntimeHandle
	FreeRuntime(rt RuntimeHandle)

	// ParseModule decodes and validates a wasm binary. The library may
	// retain wasm until the module is freed or loaded.
	ParseModule(ctx context.Context, env EnvironmentHandle, wasm []byte) (ModuleHandle, error)
	FreeModule(mod ModuleHandle)
	ModuleName(mod ModuleHandle) string

	// LoadModule instantiates mod in rt. On success the runtime takes
	// ownership of mod and the module handle must not be freed. Instances
	// are freed together with their runtime.
	LoadModule(ctx context.Context, rt RuntimeHandle, mod ModuleHandle) (InstanceHandle, error)

	// Call invokes an exported function with raw core-wasm values.
	Call(ctx context.Context, inst InstanceHandle, function string, params ...uint64) ([]uint64, error)
	Exports(inst InstanceHandle) []string
}
