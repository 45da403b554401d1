// Package cache provides a bounded, generic, concurrent cache for random
// access workloads, where values are handed out through reference-counted
// sessions and released to a user callback exactly once.
//
// Design
//
//   - Table: a fixed array of buckets sized to the smallest tabled prime
//     >= Capacity; a hash is reduced to a bucket index with a
//     multiply-shift modulo (no division).
//
//   - Buckets: each bucket is a singly linked chain of entries, most recent
//     first. Readers walk it without locking. All chain mutation, and every
//     ChangeSession on a key of the bucket, is serialized by the bucket's
//     lock, a weight-1 semaphore so that waiting honors a context.
//
//   - Lifetime: every entry carries a counter that starts at 1 (the unit
//     owned by the eviction ledger) and an evicted flag that flips once.
//     Sessions take a unit and give it back on Close. The goroutine that
//     drops the counter to zero calls Options.OnEvict with the key and the
//     last value. Acquiring never revives a counter at zero.
//
//   - Eviction: a CLOCK ring over all live entries. Reads set a visited bit;
//     when an insertion finds the ring at capacity, the hand clears visited
//     bits and evicts the first entry without one, on the inserting
//     goroutine. There is no background worker.
//
//   - Values: pointer-free values of at most 8 bytes are kept in an atomic
//     word and updated in place; anything else is copy-on-write behind an
//     atomic pointer. The choice is fixed per cache from the value type, so
//     a reader never sees a half-written value.
//
// Basic usage
//
//	c := cache.MustNew(cache.Options[string, []byte]{
//	    Capacity: 10_000,
//	    OnEvict:  func(k string, v []byte) { pool.Put(v) },
//	})
//	defer c.Close()
//
//	if s, ok := c.TryRead("a"); ok {
//	    use(s.Value())
//	    s.Close()
//	}
//
//	s, err := c.BeginChange(ctx, "a")
//	if err != nil {
//	    return err // IsCanceled or IsClosed
//	}
//	if _, ok := s.Value(); !ok {
//	    _ = s.SetValue(load("a"))
//	}
//	s.Close()
//
// With ReadOrLoad
//
//	v, err := c.ReadOrLoad(ctx, "key", func(ctx context.Context, k string) ([]byte, error) {
//	    return fetch(ctx, k)
//	})
//
// Exporting metrics
//
//	m := prom.New(nil, "racache", "demo", nil) // implements Metrics
//	c := cache.MustNew(cache.Options[string, []byte]{Capacity: 10_000, Metrics: m})
//
// Thread-safety & complexity
//
// All methods are safe for concurrent use. TryRead and TryRemove never
// block. Insertion is O(1) plus the entries skipped by the eviction hand.
// OnEvict runs synchronously and must not call back into the cache.
package cache
