// Package storetest holds behaviour shared by every store.Store implementation.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/ito-server/internal/store"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("SetGetRemove", func(t *testing.T) { testSetGetRemove(t, newStore(t)) })
	t.Run("SetReplacesSubtree", func(t *testing.T) { testSetReplacesSubtree(t, newStore(t)) })
	t.Run("UpdateChildren", func(t *testing.T) { testUpdateChildren(t, newStore(t)) })
	t.Run("RemovePrunesEmptyParents", func(t *testing.T) { testRemovePrunes(t, newStore(t)) })
	t.Run("SiblingPrefixIsolation", func(t *testing.T) { testSiblingPrefix(t, newStore(t)) })
	t.Run("TransactAbortLeavesValue", func(t *testing.T) { testTransactAbort(t, newStore(t)) })
	t.Run("TransactNilRemoves", func(t *testing.T) { testTransactNil(t, newStore(t)) })
	t.Run("TransactSerializesCounters", func(t *testing.T) { testTransactCounter(t, newStore(t)) })
	t.Run("InvalidPath", func(t *testing.T) { testInvalidPath(t, newStore(t)) })
}

func testGetMissing(t *testing.T, st store.Store) {
	ctx := context.Background()

	snap, err := st.Get(ctx, "rooms/123456")
	require.NoError(t, err)
	assert.False(t, snap.Exists())
	assert.Equal(t, "rooms/123456", snap.Path)

	ok, err := st.Exists(ctx, "rooms/123456")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testSetGetRemove(t *testing.T, st store.Store) {
	ctx := context.Background()

	room := map[string]any{
		"owner": "Alice",
		"step":  0,
		"players": map[string]any{
			"Alice": map[string]any{"num": 42, "step": 0},
		},
	}
	require.NoError(t, st.Set(ctx, "rooms/482913", room))

	snap, err := st.Get(ctx, "rooms/482913")
	require.NoError(t, err)
	assert.JSONEq(t, `{"owner":"Alice","step":0,"players":{"Alice":{"num":42,"step":0}}}`, string(snap.Value))

	num, err := st.Get(ctx, "rooms/482913/players/Alice/num")
	require.NoError(t, err)
	assert.JSONEq(t, `42`, string(num.Value))

	ok, err := st.Exists(ctx, "rooms/482913/players")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, st.Remove(ctx, "rooms/482913"))
	snap, err = st.Get(ctx, "rooms/482913")
	require.NoError(t, err)
	assert.False(t, snap.Exists())
}

func testSetReplacesSubtree(t *testing.T, st store.Store) {
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "rooms/1/players/Bob", map[string]any{"num": 7, "step": 2, "word": "いぬ"}))
	require.NoError(t, st.Set(ctx, "rooms/1/players/Bob", map[string]any{"num": 7, "step": 0}))

	snap, err := st.Get(ctx, "rooms/1/players/Bob")
	require.NoError(t, err)
	assert.JSONEq(t, `{"num":7,"step":0}`, string(snap.Value))

	// A scalar replaced by an object and back.
	require.NoError(t, st.Set(ctx, "rooms/1/step", 3))
	require.NoError(t, st.Set(ctx, "rooms/1/step/inner", "x"))
	snap, err = st.Get(ctx, "rooms/1/step")
	require.NoError(t, err)
	assert.JSONEq(t, `{"inner":"x"}`, string(snap.Value))

	require.NoError(t, st.Set(ctx, "rooms/1/step", 4))
	snap, err = st.Get(ctx, "rooms/1/step")
	require.NoError(t, err)
	assert.JSONEq(t, `4`, string(snap.Value))
}

func testUpdateChildren(t *testing.T, st store.Store) {
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "rooms/1/players/Bob", map[string]any{"num": 7, "step": 1}))
	require.NoError(t, st.Update(ctx, "rooms/1/players/Bob", map[string]any{
		"word": "りんご",
		"step": 2,
	}))

	snap, err := st.Get(ctx, "rooms/1/players/Bob")
	require.NoError(t, err)
	assert.JSONEq(t, `{"num":7,"step":2,"word":"りんご"}`, string(snap.Value))

	err = st.Update(ctx, "rooms/1/players/Bob", map[string]any{"bad.key": 1})
	assert.ErrorIs(t, err, store.ErrInvalidPath)
}

func testRemovePrunes(t *testing.T, st store.Store) {
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "rooms/1/players/Bob/num", 7))
	require.NoError(t, st.Remove(ctx, "rooms/1/players/Bob"))

	ok, err := st.Exists(ctx, "rooms/1")
	require.NoError(t, err)
	assert.False(t, ok, "room with no remaining leaves must not exist")

	// Writing an empty object is a removal too.
	require.NoError(t, st.Set(ctx, "rooms/2/owner", "Alice"))
	require.NoError(t, st.Set(ctx, "rooms/2", map[string]any{}))
	ok, err = st.Exists(ctx, "rooms/2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testSiblingPrefix(t *testing.T, st store.Store) {
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "rooms/1/owner", "Alice"))
	require.NoError(t, st.Set(ctx, "rooms/10/owner", "Bob"))
	require.NoError(t, st.Set(ctx, "rooms/1-x/owner", "Carol"))

	snap, err := st.Get(ctx, "rooms/1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"owner":"Alice"}`, string(snap.Value))

	require.NoError(t, st.Remove(ctx, "rooms/1"))
	ok, err := st.Exists(ctx, "rooms/10")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = st.Exists(ctx, "rooms/1-x")
	require.NoError(t, err)
	assert.True(t, ok)
}

func testTransactAbort(t *testing.T, st store.Store) {
	ctx := context.Background()
	errBoom := errors.New("boom")

	require.NoError(t, st.Set(ctx, "rooms/1/step", 1))
	err := st.Transact(ctx, "rooms/1", func(current store.Snapshot) (any, error) {
		return nil, errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	snap, err := st.Get(ctx, "rooms/1/step")
	require.NoError(t, err)
	assert.JSONEq(t, `1`, string(snap.Value))
}

func testTransactNil(t *testing.T, st store.Store) {
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "rooms/1/step", 1))
	require.NoError(t, st.Transact(ctx, "rooms/1", func(current store.Snapshot) (any, error) {
		require.True(t, current.Exists())
		return nil, nil
	}))

	ok, err := st.Exists(ctx, "rooms/1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testTransactCounter(t *testing.T, st store.Store) {
	ctx := context.Background()
	const workers = 20

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- st.Transact(ctx, "counters/hits", func(current store.Snapshot) (any, error) {
				var n int
				if current.Exists() {
					if err := json.Unmarshal(current.Value, &n); err != nil {
						return nil, err
					}
				}
				return n + 1, nil
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	snap, err := st.Get(ctx, "counters/hits")
	require.NoError(t, err)
	assert.JSONEq(t, `20`, string(snap.Value))
}

func testInvalidPath(t *testing.T, st store.Store) {
	ctx := context.Background()

	_, err := st.Get(ctx, "")
	assert.ErrorIs(t, err, store.ErrInvalidPath)
	assert.ErrorIs(t, st.Set(ctx, "rooms/a.b", 1), store.ErrInvalidPath)
	assert.ErrorIs(t, st.Remove(ctx, "rooms//x"), store.ErrInvalidPath)
	assert.ErrorIs(t, st.Set(ctx, "rooms/1", map[string]any{"players": map[string]any{"x/y": 1}}), store.ErrInvalidPath)
}
