package core

import "encoding/json"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventSnapshot delivers the full current value of a subscribed path.
	EventSnapshot EventKind = iota
	// EventError notifies clients about a domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind  EventKind
	Path  string
	Value json.RawMessage // nil when nothing is stored at Path
	Error *CoreError
}

// Exists reports whether a snapshot event carries a value.
func (e *Event) Exists() bool {
	return len(e.Value) > 0
}
