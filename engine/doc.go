// Package engine is the boundary to the native WebAssembly interpreter.
//
// Everything above this package treats the interpreter as a library of raw
// handles: creation calls return a handle or the null handle, and every handle
// must be freed exactly once, after its dependents. The Library interface is
// that contract. Nothing here counts references; the runtime package does.
//
// # Handles
//
//	EnvironmentHandle  global configuration (compilation cache, type registries)
//	RuntimeHandle      execution runtime with a fixed stack budget
//	ModuleHandle       parsed and validated module, not yet loaded
//	InstanceHandle     module loaded into a runtime
//
// The zero value of each handle type is null.
//
// # Ownership Transfer
//
//  1. ParseModule returns a module owned by the caller
//  2. LoadModule consumes the module on success; the runtime owns it from then on
//  3. FreeRuntime frees the runtime together with its instances
//  4. FreeEnvironment must come last
//
// # Wazero Backend
//
// WazeroLibrary implements Library with wazero. An environment holds a
// compilation cache and a parsing runtime; each runtime handle is a wazero
// runtime configured with the environment's cache. Native objects are kept in
// a resource table so that handles stay plain integers.
//
// Default returns a shared WazeroLibrary with DefaultConfig.
package engine
