package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/vovakirdan/ito-server/internal/store"
)

// MemoryStore implements store.Store on an in-process tree.
type MemoryStore struct {
	mu   sync.RWMutex
	root map[string]any
}

// New creates an empty in-memory store.
func New() *MemoryStore {
	return &MemoryStore{root: make(map[string]any)}
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// Get returns the subtree stored under path.
func (s *MemoryStore) Get(_ context.Context, path string) (store.Snapshot, error) {
	parts, err := store.Split(path)
	if err != nil {
		return store.Snapshot{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot(path, parts)
}

// Exists reports whether anything is stored under path.
func (s *MemoryStore) Exists(ctx context.Context, path string) (bool, error) {
	snap, err := s.Get(ctx, path)
	if err != nil {
		return false, err
	}
	return snap.Exists(), nil
}

// Set replaces the subtree under path.
func (s *MemoryStore) Set(_ context.Context, path string, value any) error {
	parts, err := store.Split(path)
	if err != nil {
		return err
	}
	tree, err := store.Normalize(value)
	if err != nil {
		return err
	}
	if err := validateTree(tree); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(parts, tree)
	return nil
}

// Update sets each child of path in one atomic write.
func (s *MemoryStore) Update(_ context.Context, path string, fields map[string]any) error {
	parts, err := store.Split(path)
	if err != nil {
		return err
	}

	trees := make(map[string]any, len(fields))
	for k, v := range fields {
		if err := store.ValidateKey(k); err != nil {
			return err
		}
		tree, err := store.Normalize(v)
		if err != nil {
			return err
		}
		if err := validateTree(tree); err != nil {
			return err
		}
		trees[k] = tree
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, tree := range trees {
		s.put(append(append([]string{}, parts...), k), tree)
	}
	return nil
}

// Remove deletes the subtree under path.
func (s *MemoryStore) Remove(_ context.Context, path string) error {
	parts, err := store.Split(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(parts, nil)
	return nil
}

// Transact runs fn against the current value and writes its result under the write lock.
func (s *MemoryStore) Transact(ctx context.Context, path string, fn store.TxFunc) error {
	parts, err := store.Split(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	current, err := s.snapshot(path, parts)
	if err != nil {
		return err
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	tree, err := store.Normalize(next)
	if err != nil {
		return err
	}
	if err := validateTree(tree); err != nil {
		return err
	}

	s.put(parts, tree)
	return nil
}

func (s *MemoryStore) snapshot(path string, parts []string) (store.Snapshot, error) {
	node := lookup(s.root, parts)
	raw, err := store.Encode(node)
	if err != nil {
		return store.Snapshot{}, err
	}
	return store.Snapshot{Path: path, Value: raw}, nil
}

// put writes tree at parts, creating intermediate objects and pruning
// objects left empty. Caller holds the write lock.
func (s *MemoryStore) put(parts []string, tree any) {
	putNode(s.root, parts, tree)
}

func putNode(node map[string]any, parts []string, tree any) {
	key := parts[0]
	if len(parts) == 1 {
		if tree == nil {
			delete(node, key)
		} else {
			node[key] = tree
		}
		return
	}

	child, ok := node[key].(map[string]any)
	if !ok {
		if tree == nil {
			return
		}
		child = make(map[string]any)
		node[key] = child
	}
	putNode(child, parts[1:], tree)
	if len(child) == 0 {
		delete(node, key)
	}
}

func lookup(node map[string]any, parts []string) any {
	var cur any = node
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[p]
		if !ok {
			return nil
		}
	}
	return cur
}

func validateTree(tree any) error {
	if _, err := store.Flatten("v", tree); err != nil {
		return fmt.Errorf("validate value: %w", err)
	}
	return nil
}

var _ store.Store = (*MemoryStore)(nil)
