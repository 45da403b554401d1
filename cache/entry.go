package cache

import "sync/atomic"

// entry is a key/value node linked into one bucket chain and, while live,
// into the eviction ledger ring.
//
// Lifetime: refs starts at 1, the unit owned by the ledger. Sessions add
// units while they hold the entry. evicted flips false->true exactly once;
// only the goroutine that flips it may give back the ledger's unit. The
// goroutine whose release drops refs to 0 finalizes the value.
type entry[K comparable, V any] struct {
	key  K
	hash uint64

	// next is written only under the bucket lock, read without it.
	next atomic.Pointer[entry[K, V]]

	refs    atomic.Int32
	evicted atomic.Bool
	visited atomic.Bool

	// Ledger ring links, guarded by ledger.mu.
	prev, succ *entry[K, V]
	linked     bool

	value cell[V]
}

func newEntry[K comparable, V any](k K, hash uint64, s storage, v V) *entry[K, V] {
	e := &entry[K, V]{key: k, hash: hash}
	e.refs.Store(1)
	e.value.store(s, v)
	return e
}

// tryAcquire takes one lifetime unit unless the counter already hit zero.
// A dead entry is never resurrected.
func (e *entry[K, V]) tryAcquire() bool {
	for {
		n := e.refs.Load()
		if n <= 0 {
			return false
		}
		if e.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// release gives back one unit and reports whether any remain.
// false means the caller dropped the last unit and must finalize.
func (e *entry[K, V]) release() bool {
	n := e.refs.Add(-1)
	if n < 0 {
		panic("racache: entry lifetime counter released below zero")
	}
	return n > 0
}

// markEvicted wins the single evicted transition.
func (e *entry[K, V]) markEvicted() bool { return e.evicted.CompareAndSwap(false, true) }

func (e *entry[K, V]) isDead() bool { return e.evicted.Load() }

// visit sets the second-chance bit, skipping the store when already set
// to keep hot entries' cache lines clean.
func (e *entry[K, V]) visit() {
	if !e.visited.Load() {
		e.visited.Store(true)
	}
}
