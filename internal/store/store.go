package store

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrInvalidPath is returned for empty paths or paths with illegal keys.
	ErrInvalidPath = errors.New("invalid path")
	// ErrNotFound is returned by Snapshot.Decode when nothing is stored at the path.
	ErrNotFound = errors.New("not found")
)

// Snapshot is the value stored under a path at read time.
type Snapshot struct {
	Path  string
	Value json.RawMessage // nil when nothing is stored
}

// Exists reports whether anything is stored under the snapshot path.
func (s Snapshot) Exists() bool {
	return len(s.Value) > 0
}

// Decode unmarshals the snapshot value into v.
func (s Snapshot) Decode(v any) error {
	if !s.Exists() {
		return ErrNotFound
	}
	return json.Unmarshal(s.Value, v)
}

// TxFunc receives the current value at a path and returns the value to write.
// Returning nil removes the path; returning an error aborts without writing.
type TxFunc func(current Snapshot) (any, error)

// Reader reads values from the tree.
type Reader interface {
	// Get returns the subtree stored under path.
	Get(ctx context.Context, path string) (Snapshot, error)

	// Exists reports whether anything is stored under path.
	Exists(ctx context.Context, path string) (bool, error)
}

// Writer mutates the tree.
type Writer interface {
	// Set replaces the subtree under path. A nil value removes it.
	Set(ctx context.Context, path string, value any) error

	// Update sets each child of path in one atomic write.
	Update(ctx context.Context, path string, fields map[string]any) error

	// Remove deletes the subtree under path.
	Remove(ctx context.Context, path string) error

	// Transact runs a read-modify-write of path atomically with respect to
	// every other write on the store.
	Transact(ctx context.Context, path string, fn TxFunc) error
}

// Store is a hierarchical key-value tree of JSON values.
type Store interface {
	Reader
	Writer

	// Close releases the underlying resources.
	Close() error
}
