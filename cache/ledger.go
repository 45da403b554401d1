package cache

import (
	"sync"

	"github.com/IvanBrykalov/racache/internal/util"
)

// ledger tracks every live entry in a CLOCK ring and picks eviction victims
// with the second-chance rule. New entries are placed just behind the hand,
// so they are examined last.
//
// The ledger owns one lifetime unit of each entry it tracks. Whoever wins an
// entry's evicted flag (a sweep, TryRemove, or Close) takes that unit over.
type ledger[K comparable, V any] struct {
	mu       sync.Mutex
	hand     *entry[K, V]
	len      int
	capacity int

	live util.PaddedAtomicInt64 // mirrors len for lock-free readers
}

// admit registers e and, while the ring is at capacity, sweeps out victims
// to make room first. e itself is never a candidate of its own admission.
// Returned victims are already marked evicted and unlinked; the caller owns
// their ledger unit. ok is false when e was removed before it could be
// registered.
func (l *ledger[K, V]) admit(e *entry[K, V], victims []*entry[K, V]) (_ []*entry[K, V], ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.isDead() {
		return victims, false
	}
	for l.len >= l.capacity {
		v := l.sweep()
		if v == nil {
			break
		}
		victims = append(victims, v)
	}
	l.pushBack(e)
	return victims, true
}

// remove unlinks an entry whose evicted flag the caller won. It is a no-op
// if a sweep already unlinked it or it was never admitted.
func (l *ledger[K, V]) remove(e *entry[K, V]) {
	l.mu.Lock()
	if e.linked {
		l.unlink(e)
	}
	l.mu.Unlock()
}

// Len returns the number of live entries.
func (l *ledger[K, V]) Len() int { return int(l.live.Load()) }

// sweep advances the hand until it finds a victim. Visited entries get their
// bit cleared and are skipped once. Dead entries (removed concurrently, not
// yet unlinked) are dropped on the way. If readers keep re-marking entries
// faster than the hand clears them, the hand gives up on second chances
// after two full revolutions. Returns nil once dropping dead entries alone
// made room. mu held.
func (l *ledger[K, V]) sweep() *entry[K, V] {
	budget := 2*l.len + 1
	for steps := 0; l.hand != nil; steps++ {
		cur := l.hand
		if cur.isDead() {
			l.unlink(cur)
			if l.len < l.capacity {
				return nil
			}
			continue
		}
		if steps < budget && cur.visited.Load() {
			cur.visited.Store(false)
			l.hand = cur.succ
			continue
		}
		l.unlink(cur)
		if cur.markEvicted() {
			return cur
		}
		// lost to a concurrent remover; it finds cur unlinked already
	}
	return nil
}

// pushBack inserts e just behind the hand. mu held.
func (l *ledger[K, V]) pushBack(e *entry[K, V]) {
	if l.hand == nil {
		e.prev, e.succ = e, e
		l.hand = e
	} else {
		tail := l.hand.prev
		tail.succ = e
		e.prev = tail
		e.succ = l.hand
		l.hand.prev = e
	}
	e.linked = true
	l.len++
	l.live.Store(int64(l.len))
}

// unlink removes e from the ring. mu held.
func (l *ledger[K, V]) unlink(e *entry[K, V]) {
	if e.succ == e {
		l.hand = nil
	} else {
		e.prev.succ = e.succ
		e.succ.prev = e.prev
		if l.hand == e {
			l.hand = e.succ
		}
	}
	e.prev, e.succ = nil, nil
	e.linked = false
	l.len--
	l.live.Store(int64(l.len))
}
