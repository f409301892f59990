// Package runtime provides the safe ownership layer over the native interpreter.
//
// # Quick Start
//
//	ctx := context.Background()
//	env, err := runtime.NewEnvironment(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer env.Close()
//
//	store, err := runtime.NewStore(ctx, env, 64*1024, &State{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	mod, err := env.ParseModule(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	inst, err := store.Load(ctx, mod)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close()
//
//	results, err := inst.Call(ctx, "add", 1, 2)
//
// # Ownership
//
// Every value in this package is a holder of a native handle:
//
//	Environment  shared; Clone adds a holder, Close drops one
//	Store        shared between the store and its instances
//	Module       single owner until Store.Load consumes it
//	Instance     holds the store's runtime
//
// Dependents hold their parents. A Store or Module keeps its environment alive
// and an Instance keeps its store's runtime alive, so Close may be called in any
// order. Native frees happen exactly once, children before parents.
//
// # Equality
//
// Environments compare by identity. Two holders are Equal when they share one
// native environment, whatever the handle values. Store.Load uses this to
// reject modules parsed in a different environment.
//
// # Leaks
//
// A holder that becomes unreachable without Close is released by the garbage
// collector and a warning is logged through engine.Logger. Do not rely on this;
// collection timing is not defined.
//
// # Errors
//
// Construction fails with an allocation error when the native library returns
// a null handle; nothing partially constructed is returned. Use after Close
// fails with a released error. See the errors package.
package runtime
