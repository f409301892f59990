// Package errors provides structured error types for the wasm3 bindings.
//
// Errors are categorized by Phase (which component reported the error) and Kind
// (error category). The Error type carries the native handle involved, a detail
// message and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseStore, errors.KindAllocation).
//		Resource("runtime").
//		Detail("stack of %d slots rejected", slots).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.AllocationFailed(errors.PhaseEnvironment, "environment")
//	err := errors.Released(errors.PhaseStore, "store", cause)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
