package cache

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/IvanBrykalov/racache/internal/util"
)

// cache is the Cache implementation: a fixed prime-sized bucket table,
// a CLOCK ledger enforcing capacity, and per-value-type storage.
type cache[K comparable, V any] struct {
	buckets []bucket[K, V]
	fastMod uint64 // util.FastModMultiplier(len(buckets))

	ledger  ledger[K, V]
	storage storage
	eq      func(a, b K) bool
	closed  atomic.Bool

	opt    Options[K, V]
	logger log.Logger

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      util.CacheLinePad
	hits   util.PaddedAtomicUint64
	misses util.PaddedAtomicUint64
}

// New constructs a cache with the provided Options.
// Defaults:
//   - nil Metrics -> NoopMetrics
//   - nil Logger  -> no-op logger
//   - nil Hash    -> util.Hash
//
// The bucket table has the smallest tabled prime >= Capacity slots.
func New[K comparable, V any](opt Options[K, V]) (Cache[K, V], error) {
	if err := opt.validate(); err != nil {
		return nil, err
	}

	n := util.NextPrime(uint32(min(opt.Capacity, math.MaxInt32)))
	c := &cache[K, V]{
		buckets: make([]bucket[K, V], n),
		fastMod: util.FastModMultiplier(n),
		storage: storageFor[V](),
		eq:      opt.Equal,
		opt:     opt,
		logger:  opt.Logger,
	}
	c.ledger.capacity = opt.Capacity
	for i := range c.buckets {
		c.buckets[i].init()
	}
	if c.eq == nil {
		c.eq = func(a, b K) bool { return a == b }
	}

	level.Debug(c.logger).Log("msg", "cache created", "capacity", opt.Capacity, "buckets", n, "storage", c.storage)
	return c, nil
}

// MustNew is like New but panics on invalid Options.
func MustNew[K comparable, V any](opt Options[K, V]) Cache[K, V] {
	c, err := New(opt)
	if err != nil {
		panic(err)
	}
	return c
}

// ---- Cache[K,V] implementation ----

func (c *cache[K, V]) TryRead(k K) (ReadSession[K, V], bool) {
	if c.closed.Load() {
		return ReadSession[K, V]{}, false
	}
	h := c.opt.Hash(k)
	b := c.bucketFor(h)
	e, sawDead := b.tryGet(c.eq, k, h)
	if sawDead {
		c.cleanUp(b)
	}
	if e != nil && e.isDead() {
		// evicted between the lookup and the acquire
		c.release(e)
		e = nil
	}
	if e == nil {
		c.misses.Add(1)
		c.opt.Metrics.Miss()
		return ReadSession[K, V]{}, false
	}
	c.hits.Add(1)
	c.opt.Metrics.Hit()
	return ReadSession[K, V]{c: c, e: e}, true
}

func (c *cache[K, V]) BeginChange(ctx context.Context, k K) (*ChangeSession[K, V], error) {
	if c.closed.Load() {
		return nil, NewErrClosed("begin_change")
	}
	h := c.opt.Hash(k)
	b := c.bucketFor(h)
	if err := b.acquire(ctx); err != nil {
		return nil, NewErrCanceled(err)
	}
	// Close may have invalidated this bucket while we waited.
	if c.closed.Load() {
		b.unlock()
		return nil, NewErrClosed("begin_change")
	}
	return &ChangeSession[K, V]{c: c, b: b, key: k, hash: h}, nil
}

func (c *cache[K, V]) TryRemove(k K) (ReadSession[K, V], bool) {
	if c.closed.Load() {
		return ReadSession[K, V]{}, false
	}
	h := c.opt.Hash(k)
	b := c.bucketFor(h)
	e, sawDead := b.tryRemove(c.eq, k, h)
	if sawDead {
		c.cleanUp(b)
	}
	if e == nil {
		return ReadSession[K, V]{}, false
	}
	c.ledger.remove(e)
	c.opt.Metrics.Evict(EvictRemoved)
	c.opt.Metrics.Size(c.ledger.Len())
	// The ledger's unit moves to the session.
	return ReadSession[K, V]{c: c, e: e}, true
}

func (c *cache[K, V]) Remove(k K) bool {
	s, ok := c.TryRemove(k)
	if ok {
		s.Close()
	}
	return ok
}

func (c *cache[K, V]) ReadOrLoad(ctx context.Context, k K, loader func(context.Context, K) (V, error)) (V, error) {
	var zero V

	// fast path
	if s, ok := c.TryRead(k); ok {
		defer s.Close()
		return s.Value(), nil
	}

	s, err := c.BeginChange(ctx, k)
	if err != nil {
		return zero, err
	}
	defer s.Close()

	// double-check under the key lock: a concurrent loader may have won
	if v, ok := s.Value(); ok {
		return v, nil
	}
	v, err := loader(ctx, k)
	if err != nil {
		return zero, NewErrLoaderFailed(err)
	}
	if err := s.SetValue(v); err != nil {
		return zero, err
	}
	return v, nil
}

func (c *cache[K, V]) Len() int { return c.ledger.Len() }

func (c *cache[K, V]) Capacity() int { return c.opt.Capacity }

func (c *cache[K, V]) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	var (
		dead    []*entry[K, V]
		evicted int
	)
	onEvicted := func(e *entry[K, V]) {
		c.ledger.remove(e)
		c.opt.Metrics.Evict(EvictInvalidated)
		evicted++
	}
	onDead := func(e *entry[K, V]) { dead = append(dead, e) }

	for i := range c.buckets {
		b := &c.buckets[i]
		// Background never cancels: waits out in-flight change sessions.
		_ = b.acquire(context.Background())
		b.invalidate(onEvicted, onDead)
		b.unlock()
	}
	c.opt.Metrics.Size(c.ledger.Len())

	level.Info(c.logger).Log("msg", "cache closed", "evicted", evicted, "finalized", len(dead),
		"hits", c.hits.Load(), "misses", c.misses.Load())
	c.finalizeAll(dead)
	return nil
}

// ---- helpers ----

// bucketFor maps a hash to its bucket with a division-free modulo.
func (c *cache[K, V]) bucketFor(h uint64) *bucket[K, V] {
	idx := util.FastMod(uint32(h^(h>>32)), uint32(len(c.buckets)), c.fastMod)
	return &c.buckets[idx]
}

// insert adds a new entry for k to b and registers it with the ledger,
// evicting as needed. Bucket lock held. The returned entry may already be
// dead if it was removed or evicted concurrently.
func (c *cache[K, V]) insert(b *bucket[K, V], k K, h uint64, v V) *entry[K, V] {
	for {
		if e := b.tryAdd(k, h, c.storage, v); e != nil {
			victims, _ := c.ledger.admit(e, nil)
			b.markReadyToAdd()
			c.opt.Metrics.Size(c.ledger.Len())
			c.evict(b, victims)
			return e
		}

		// An earlier insertion into this slot is still being registered:
		// update the key in place if it is there, otherwise try again.
		if e, _ := b.modify(c.eq, k, h); e != nil {
			e.value.store(c.storage, v)
			c.release(e)
			return e
		}
		level.Debug(c.logger).Log("msg", "insertion pending on bucket, retrying")
	}
}

// evict settles capacity victims: they already won their evicted flag in
// the ledger, so this gives back the ledger's unit, finalizes those that
// reached zero, and unlinks them from their buckets when that is cheap.
// Lock of held is owned by the caller.
func (c *cache[K, V]) evict(held *bucket[K, V], victims []*entry[K, V]) {
	if len(victims) == 0 {
		return
	}
	var dead []*entry[K, V]
	for _, v := range victims {
		c.opt.Metrics.Evict(EvictCapacity)
		if b := c.bucketFor(v.hash); b == held {
			b.cleanUp()
		} else {
			c.cleanUp(b)
		}
		if !v.release() {
			dead = append(dead, v)
		}
	}
	c.finalizeAll(dead)
}

// cleanUp unlinks dead nodes from b if its lock is free right now.
func (c *cache[K, V]) cleanUp(b *bucket[K, V]) {
	if b.tryLock() {
		b.cleanUp()
		b.unlock()
	}
}

// release drops one unit and finalizes e if it was the last.
func (c *cache[K, V]) release(e *entry[K, V]) {
	if !e.release() {
		c.finalize(e)
	}
}

// finalize hands the last value of a dead entry to OnEvict.
// The counter is already zero, so a panicking callback cannot resurrect or
// double-finalize the entry.
func (c *cache[K, V]) finalize(e *entry[K, V]) {
	defer e.value.clear(c.storage)
	if cb := c.opt.OnEvict; cb != nil {
		cb(e.key, e.value.load(c.storage))
	}
}

// finalizeAll finalizes every entry even if some callbacks panic; the first
// panic is re-raised afterwards.
func (c *cache[K, V]) finalizeAll(dead []*entry[K, V]) {
	var first any
	for _, e := range dead {
		func() {
			defer func() {
				if r := recover(); r != nil && first == nil {
					first = r
				}
			}()
			c.finalize(e)
		}()
	}
	if first != nil {
		panic(first)
	}
}
