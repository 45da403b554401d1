package cache

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// bucket is one hash slot: a singly linked chain of entries (most recent
// first) plus an exclusive lock.
//
// Traversal is lock-free. The lock serializes every write to first/next,
// the pending flag, and the lifetime of a ChangeSession on any key that
// maps here. It is a weight-1 semaphore so that acquisition can honor a
// context.
type bucket[K comparable, V any] struct {
	lock  *semaphore.Weighted
	first atomic.Pointer[entry[K, V]]

	// pending is set by tryAdd and cleared once the new entry has been
	// registered with the ledger. Guarded by lock.
	pending bool
}

func (b *bucket[K, V]) init() { b.lock = semaphore.NewWeighted(1) }

func (b *bucket[K, V]) acquire(ctx context.Context) error { return b.lock.Acquire(ctx, 1) }
func (b *bucket[K, V]) tryLock() bool                      { return b.lock.TryAcquire(1) }
func (b *bucket[K, V]) unlock()                            { b.lock.Release(1) }

// tryAdd links a new entry at the head. It returns nil while a previous
// insertion into this slot has not been registered with the ledger yet;
// the caller then retries as modify. Lock held.
func (b *bucket[K, V]) tryAdd(k K, hash uint64, s storage, v V) *entry[K, V] {
	if b.pending {
		return nil
	}
	e := newEntry(k, hash, s, v)
	e.next.Store(b.first.Load())
	b.first.Store(e)
	b.pending = true
	return e
}

// markReadyToAdd clears the pending flag. Lock held.
func (b *bucket[K, V]) markReadyToAdd() { b.pending = false }

// tryGet finds a live entry for k, marks it visited and takes a lifetime
// unit on it. sawDead reports that the chain holds nodes worth unlinking.
func (b *bucket[K, V]) tryGet(eq func(a, b K) bool, k K, hash uint64) (found *entry[K, V], sawDead bool) {
	for cur := b.first.Load(); cur != nil; cur = cur.next.Load() {
		if cur.isDead() {
			sawDead = true
			continue
		}
		if found == nil && cur.hash == hash && eq(k, cur.key) {
			cur.visit()
			if cur.tryAcquire() {
				found = cur
			}
		}
	}
	return found, sawDead
}

// modify is tryGet for the change path, where the caller holds the lock
// and wants the current entry to update instead of inserting a duplicate.
func (b *bucket[K, V]) modify(eq func(a, b K) bool, k K, hash uint64) (*entry[K, V], bool) {
	return b.tryGet(eq, k, hash)
}

// tryRemove finds a live entry for k and wins its evicted transition.
// The winner inherits the ledger's lifetime unit.
func (b *bucket[K, V]) tryRemove(eq func(a, b K) bool, k K, hash uint64) (found *entry[K, V], sawDead bool) {
	for cur := b.first.Load(); cur != nil; cur = cur.next.Load() {
		if found == nil && cur.hash == hash && !cur.isDead() && eq(k, cur.key) && cur.markEvicted() {
			found = cur
		}
		if cur.isDead() {
			sawDead = true
		}
	}
	return found, sawDead
}

// cleanUp unlinks every dead node. Lock held.
func (b *bucket[K, V]) cleanUp() {
	var prev *entry[K, V]
	for cur := b.first.Load(); cur != nil; cur = cur.next.Load() {
		if cur.isDead() {
			b.unlink(prev, cur)
			continue
		}
		prev = cur
	}
}

// unlink bypasses cur. cur.next is left intact so that a reader standing
// on cur can keep walking.
func (b *bucket[K, V]) unlink(prev, cur *entry[K, V]) {
	if prev == nil {
		b.first.Store(cur.next.Load())
	} else {
		prev.next.Store(cur.next.Load())
	}
}

// invalidate detaches the whole chain. For every node whose evicted flag
// this call wins, evicted(node) runs and the ledger's unit is released;
// nodes whose counter reaches zero are handed to cleanup. Lock held.
func (b *bucket[K, V]) invalidate(evicted, cleanup func(*entry[K, V])) {
	for cur := b.first.Swap(nil); cur != nil; cur = cur.next.Load() {
		if !cur.markEvicted() {
			continue
		}
		evicted(cur)
		if !cur.release() {
			cleanup(cur)
		}
	}
}

// len counts live and dead nodes; used by tests.
func (b *bucket[K, V]) len() (alive, dead int) {
	for cur := b.first.Load(); cur != nil; cur = cur.next.Load() {
		if cur.isDead() {
			dead++
		} else {
			alive++
		}
	}
	return alive, dead
}
