// Package wasm3 provides a memory-safe ownership layer over a native WebAssembly
// interpreter library.
//
// The native library hands out raw handles with no reference counting of its own.
// This module synthesizes the lifetime rules the library expects: an environment is
// freed exactly once, and only after every store, module and instance created from
// it has been released.
//
// # Architecture Overview
//
//	wasm3/
//	├── runtime/             Environment, Store, Module and Instance
//	├── engine/              Native library boundary and the wazero-backed implementation
//	│   └── enginetest/      Instrumented library for lifetime tests
//	├── resource/            Native handle table
//	├── errors/              Structured error types
//	└── internal/ownership/  Single-owner guards and shared reference cells
//
// # Dependency Order
//
//	Environment ─┬─> Store ──> Instance
//	             └─> Module ──(Store.Load)──┘
//
// Each arrow is a held reference. A dependent keeps its parent alive, so callers can
// close handles in any order.
//
// # Quick Start
//
//	env, err := runtime.NewEnvironment(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer env.Close()
//
//	store, err := runtime.NewStore(ctx, env, 64*1024, myState)
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
// # Thread Safety
//
// Reference counts are atomic, so handles may be cloned and closed from any goroutine.
// Concurrent use of one native environment is governed by the native library; the
// wazero-backed library is safe for concurrent use.
package wasm3
