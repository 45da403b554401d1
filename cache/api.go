package cache

import "context"

// Cache is a bounded, key-addressed cache whose values are reached through
// short-lived sessions. All methods are safe for concurrent use by multiple
// goroutines.
//
// Reads are lock-free. Changes to a key are serialized by the lock of the
// bucket the key hashes to; a ChangeSession holds that lock until Close.
type Cache[K comparable, V any] interface {
	// TryRead returns a session pinning the value of k, or false on a miss
	// (absent, evicted, or the cache is closed). It never blocks.
	// On hit, the entry is marked visited for the second-chance pass.
	TryRead(k K) (ReadSession[K, V], bool)

	// BeginChange waits for exclusive access to k and returns a session that
	// can inspect and set its value. The wait honors ctx; on cancellation no
	// state is changed and an IsCanceled error is returned. On a closed cache
	// it returns an IsClosed error.
	//
	// A goroutine must Close its session before beginning another change
	// (or calling Close on the cache); keys may share a bucket.
	BeginChange(ctx context.Context, k K) (*ChangeSession[K, V], error)

	// TryRemove evicts k and returns a session on the removed value.
	// OnEvict runs once the session (and every other reader) is closed.
	TryRemove(k K) (ReadSession[K, V], bool)

	// Remove evicts k and reports whether it was present.
	Remove(k K) bool

	// ReadOrLoad returns the value for k, calling loader on a miss and
	// storing its result. Concurrent loads for the same key are serialized:
	// the loser of the race finds the winner's value.
	ReadOrLoad(ctx context.Context, k K, loader func(context.Context, K) (V, error)) (V, error)

	// Len returns the number of live entries.
	Len() int

	// Capacity returns the configured maximum number of live entries.
	Capacity() int

	// Close evicts every entry, invoking OnEvict for each once no session
	// holds it, and makes all further operations fail or miss. It waits for
	// in-flight ChangeSessions to finish. Idempotent; always returns nil.
	Close() error
}
