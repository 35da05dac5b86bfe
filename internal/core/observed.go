package core

import (
	"context"

	"github.com/vovakirdan/ito-server/internal/store"
)

// Publisher is notified after a path has been written.
type Publisher interface {
	Publish(path string)
}

// ObservedStore decorates a store so that every successful write is
// published to subscribers.
type ObservedStore struct {
	store.Store
	pub Publisher
}

// Observe wraps st, publishing writes to pub.
func Observe(st store.Store, pub Publisher) *ObservedStore {
	return &ObservedStore{Store: st, pub: pub}
}

// Set writes through and publishes path.
func (s *ObservedStore) Set(ctx context.Context, path string, value any) error {
	if err := s.Store.Set(ctx, path, value); err != nil {
		return err
	}
	s.pub.Publish(path)
	return nil
}

// Update writes through and publishes path.
func (s *ObservedStore) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := s.Store.Update(ctx, path, fields); err != nil {
		return err
	}
	s.pub.Publish(path)
	return nil
}

// Remove writes through and publishes path.
func (s *ObservedStore) Remove(ctx context.Context, path string) error {
	if err := s.Store.Remove(ctx, path); err != nil {
		return err
	}
	s.pub.Publish(path)
	return nil
}

// Transact writes through and publishes path when the transaction committed.
func (s *ObservedStore) Transact(ctx context.Context, path string, fn store.TxFunc) error {
	if err := s.Store.Transact(ctx, path, fn); err != nil {
		return err
	}
	s.pub.Publish(path)
	return nil
}

var _ store.Store = (*ObservedStore)(nil)
