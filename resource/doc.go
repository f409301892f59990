// Package resource provides the handle table that backs native objects.
//
// Native objects are never exposed to callers directly. The owning library stores
// each object in a table and hands out an integer Handle instead. Handle 0 is the
// null handle and is never issued, so a creation call that fails can return 0.
//
// # Handle Table
//
// The UnifiedTable maps handles to Go values:
//
//	table := resource.NewTable()
//
//	// Insert a value, get a handle
//	handle := table.Insert(kindRuntime, rt)
//
//	// Retrieve value by handle
//	value, ok := table.Get(handle)
//
//	// Kind-checked retrieval
//	value, ok := table.GetTyped(handle, kindRuntime)
//
//	// Free the object
//	value, ok := table.Remove(handle)
//
// Handles of removed entries are recycled through a free list. A stale handle may
// therefore name a newer object; owners must release a handle exactly once.
//
// # Observers
//
// Register observers to track handle lifecycle events:
//
//	table.Subscribe(resource.ObserverFunc(func(e resource.Event) {
//	    switch e.Type {
//	    case resource.EventCreated:
//	        log.Printf("handle %d created", e.Handle)
//	    case resource.EventFreed:
//	        log.Printf("handle %d freed", e.Handle)
//	    case resource.EventInvalidFree:
//	        log.Printf("free of unknown handle %d", e.Handle)
//	    }
//	}))
//
// # Memory Management
//
// Values implementing Dropper have Drop called once when removed. Close drops every
// remaining value and rejects further inserts.
package resource
