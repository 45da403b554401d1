package cache

import (
	"github.com/go-kit/log"

	"github.com/IvanBrykalov/racache/internal/util"
)

// EvictReason explains why an entry left the cache.
type EvictReason int

const (
	// EvictCapacity - chosen by the second-chance pass after an insertion
	// pushed the live count over Capacity.
	EvictCapacity EvictReason = iota
	// EvictRemoved - explicitly removed via TryRemove/Remove.
	EvictRemoved
	// EvictInvalidated - forcibly evicted by Close.
	EvictInvalidated
)

// String returns a stable lowercase name, suitable as a metrics label.
func (r EvictReason) String() string {
	switch r {
	case EvictRemoved:
		return "removed"
	case EvictInvalidated:
		return "invalidated"
	default:
		return "capacity"
	}
}

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(entries int)
}

// Options configures the cache. Zero values are safe except Capacity;
// defaults are applied in New():
//   - nil Metrics => NoopMetrics
//   - nil Logger  => log.NewNopLogger()
//   - nil Hash    => xxHash-based hasher (maphash for composite keys)
type Options[K comparable, V any] struct {
	// Capacity is the maximum number of live entries. Must be > 0.
	Capacity int

	// OnEvict is invoked exactly once per entry, with the key and the last
	// stored value, by whichever goroutine drops the final reference
	// (a session Close, a remover, an insertion's eviction pass, or Close).
	// It must not call back into the cache. A panic propagates to that
	// goroutine; the entry is already dead at that point.
	OnEvict func(k K, v V)

	// Equal overrides key equality (e.g. case-insensitive strings).
	// When set, Hash must be set as well and be consistent with it.
	Equal func(a, b K) bool
	// Hash overrides key hashing.
	Hash func(k K) uint64

	Metrics Metrics
	Logger  log.Logger
}

// validate checks Options and fills in defaults.
func (o *Options[K, V]) validate() error {
	if o.Capacity <= 0 {
		return NewErrInvalidCapacity(o.Capacity)
	}
	if o.Equal != nil && o.Hash == nil {
		return NewErrInvalidOptions("Equal requires a consistent Hash")
	}
	if o.Hash == nil {
		o.Hash = util.Hash[K]
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	if o.Logger == nil {
		o.Logger = log.NewNopLogger()
	}
	return nil
}
