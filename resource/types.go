package resource

// Handle is an opaque reference to a native object in a table.
// Handle 0 is the null handle and is never issued.
type Handle uint32

// EventType identifies a handle lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventFreed
	// EventInvalidFree reports a Remove of a null, stale or unknown handle.
	EventInvalidFree
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventFreed:
		return "freed"
	case EventInvalidFree:
		return "invalid_free"
	default:
		return "unknown"
	}
}

// Event represents a handle lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	Kind   uint32
	Type   EventType
}

// Observer receives notifications about handle lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// OnResourceEvent calls f(e).
func (f ObserverFunc) OnResourceEvent(e Event) {
	f(e)
}

// Backend provides the underlying storage mechanism for handles.
type Backend interface {
	// Create stores a value and returns a handle.
	Create(kind uint32, value any) (Handle, error)

	// Get retrieves a value by handle.
	Get(handle Handle) (any, bool)

	// Drop removes an entry and returns (value, true) if it was live.
	Drop(handle Handle) (any, bool)

	// Close releases all entries held by the backend.
	Close() error
}

// Table manages native objects with kind information and observer support.
type Table interface {
	// Insert adds a value and returns its handle, or 0 if the table is closed.
	Insert(kind uint32, value any) Handle

	// Get retrieves a value by handle.
	Get(handle Handle) (any, bool)

	// GetTyped retrieves a value only if it was inserted with the expected kind.
	GetTyped(handle Handle, kind uint32) (any, bool)

	// Remove frees an entry and returns (value, true) if found.
	Remove(handle Handle) (any, bool)

	// Subscribe adds an observer for lifecycle events. Calling the
	// returned function removes it again.
	Subscribe(Observer) (cancel func())

	// Len returns the number of live entries.
	Len() int

	// Clear frees all entries.
	Clear()

	// Close frees all entries and stops accepting inserts.
	Close() error
}

// Dropper is optionally implemented by values that own native memory.
type Dropper interface {
	Drop()
}
