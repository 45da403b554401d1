package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestBucket() *bucket[string, int] {
	b := &bucket[string, int]{}
	b.init()
	return b
}

func eqString(a, b string) bool { return a == b }

// add inserts k through the tryAdd/markReadyToAdd pair.
func add(t *testing.T, b *bucket[string, int], k string, h uint64, v int) *entry[string, int] {
	t.Helper()
	e := b.tryAdd(k, h, storeWord, v)
	require.NotNil(t, e)
	b.markReadyToAdd()
	return e
}

func TestBucket_TryAddPending(t *testing.T) {
	t.Parallel()

	b := newTestBucket()
	e := b.tryAdd("a", 1, storeWord, 1)
	require.NotNil(t, e)
	require.Nil(t, b.tryAdd("b", 2, storeWord, 2), "insertion still pending")

	b.markReadyToAdd()
	require.NotNil(t, b.tryAdd("b", 2, storeWord, 2))
	b.markReadyToAdd()

	require.Equal(t, "b", b.first.Load().key, "newest first")
}

// Keys sharing a hash are told apart by equality.
func TestBucket_TryGetCollisions(t *testing.T) {
	t.Parallel()

	b := newTestBucket()
	a := add(t, b, "a", 7, 1)
	add(t, b, "b", 7, 2)

	got, sawDead := b.tryGet(eqString, "a", 7)
	require.Same(t, a, got)
	require.False(t, sawDead)
	require.EqualValues(t, 2, a.refs.Load())
	require.True(t, a.visited.Load())

	got, _ = b.tryGet(eqString, "a", 8)
	require.Nil(t, got, "hash must match too")
	got, _ = b.tryGet(eqString, "c", 7)
	require.Nil(t, got)
}

func TestBucket_TryRemoveAndCleanUp(t *testing.T) {
	t.Parallel()

	b := newTestBucket()
	add(t, b, "a", 1, 1)
	bb := add(t, b, "b", 2, 2)
	add(t, b, "c", 3, 3)

	got, sawDead := b.tryRemove(eqString, "b", 2)
	require.Same(t, bb, got)
	require.True(t, sawDead)
	require.EqualValues(t, 1, bb.refs.Load(), "the remover inherits the ledger's unit")

	again, _ := b.tryRemove(eqString, "b", 2)
	require.Nil(t, again)

	miss, sawDead := b.tryGet(eqString, "b", 2)
	require.Nil(t, miss)
	require.True(t, sawDead)

	alive, dead := b.len()
	require.Equal(t, 2, alive)
	require.Equal(t, 1, dead)

	b.cleanUp()
	alive, dead = b.len()
	require.Equal(t, 2, alive)
	require.Zero(t, dead)

	// a node unlinked from the middle keeps its successor for readers
	require.Equal(t, "a", bb.next.Load().key)
}

func TestBucket_CleanUpHeadAndTail(t *testing.T) {
	t.Parallel()

	b := newTestBucket()
	tail := add(t, b, "a", 1, 1)
	add(t, b, "b", 2, 2)
	head := add(t, b, "c", 3, 3)
	tail.markEvicted()
	head.markEvicted()

	b.cleanUp()
	alive, dead := b.len()
	require.Equal(t, 1, alive)
	require.Zero(t, dead)
	require.Equal(t, "b", b.first.Load().key)
	require.Nil(t, b.first.Load().next.Load())
}

func TestBucket_Invalidate(t *testing.T) {
	t.Parallel()

	b := newTestBucket()
	free := add(t, b, "a", 1, 1)
	pinned := add(t, b, "b", 2, 2)
	removed := add(t, b, "c", 3, 3)

	require.True(t, pinned.tryAcquire()) // an open session
	removed.markEvicted()                // a remover owns it

	var evicted, finalized []string
	b.invalidate(
		func(e *entry[string, int]) { evicted = append(evicted, e.key) },
		func(e *entry[string, int]) { finalized = append(finalized, e.key) },
	)

	require.ElementsMatch(t, []string{"a", "b"}, evicted)
	require.Equal(t, []string{"a"}, finalized)
	require.Nil(t, b.first.Load())
	require.EqualValues(t, 0, free.refs.Load())
	require.EqualValues(t, 1, pinned.refs.Load())
	require.EqualValues(t, 1, removed.refs.Load())
}

func TestBucket_Lock(t *testing.T) {
	t.Parallel()

	b := newTestBucket()
	require.NoError(t, b.acquire(context.Background()))
	require.False(t, b.tryLock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, b.acquire(ctx), context.Canceled)

	b.unlock()
	require.True(t, b.tryLock())
	b.unlock()
}
