package cache

// ReadSession pins one cached value. OnEvict does not run for the entry
// while the session is open, so the value stays valid even if the entry is
// evicted or removed meanwhile. Obtaining one never allocates.
//
// Close must be called exactly once per successful TryRead/TryRemove.
// A ReadSession must not be copied after first use.
type ReadSession[K comparable, V any] struct {
	c *cache[K, V]
	e *entry[K, V]
}

// Key returns the key the session was opened for.
func (s *ReadSession[K, V]) Key() K {
	if s.e == nil {
		var zero K
		return zero
	}
	return s.e.key
}

// Value returns the pinned value. It reflects later in-place updates made
// through a ChangeSession; it is never a torn mix of two writes.
func (s *ReadSession[K, V]) Value() V {
	if s.e == nil {
		var zero V
		return zero
	}
	return s.e.value.load(s.c.storage)
}

// Close releases the session's reference. If it was the last one for an
// evicted entry, OnEvict runs on the calling goroutine.
func (s *ReadSession[K, V]) Close() {
	e := s.e
	if e == nil {
		return
	}
	s.e = nil
	s.c.release(e)
}

// ChangeSession grants exclusive access to one key. It is the only way to
// create entries. Closing a session that never called SetValue leaves the
// key as it was; nothing is stored on its behalf.
type ChangeSession[K comparable, V any] struct {
	c    *cache[K, V]
	b    *bucket[K, V]
	key  K
	hash uint64

	e      *entry[K, V] // holds one lifetime unit while non-nil
	closed bool
}

// Key returns the key being changed.
func (s *ChangeSession[K, V]) Key() K { return s.key }

// Value returns the current value of the key, if present.
func (s *ChangeSession[K, V]) Value() (V, bool) {
	if !s.closed {
		if e := s.current(); e != nil {
			return e.value.load(s.c.storage), true
		}
	}
	var zero V
	return zero, false
}

// SetValue stores v: in place when the key is present, otherwise by
// inserting a new entry, which may evict another one to stay within
// capacity. Readers holding the previous value keep a consistent copy.
func (s *ChangeSession[K, V]) SetValue(v V) error {
	if s.closed {
		return NewErrSessionClosed()
	}
	if s.c.closed.Load() {
		return NewErrClosed("set_value")
	}
	if e := s.current(); e != nil {
		e.value.store(s.c.storage, v)
		return nil
	}
	if e := s.c.insert(s.b, s.key, s.hash, v); e != nil && e.tryAcquire() {
		s.e = e
	}
	return nil
}

// Close releases the key. Safe to call more than once.
func (s *ChangeSession[K, V]) Close() {
	if s.closed {
		return
	}
	s.closed = true
	defer s.b.unlock()
	if e := s.e; e != nil {
		s.e = nil
		s.c.release(e)
	}
}

// current returns the live entry for the key, dropping a held one that was
// evicted behind the session's back. Bucket lock held.
func (s *ChangeSession[K, V]) current() *entry[K, V] {
	if e := s.e; e != nil {
		if !e.isDead() {
			return e
		}
		s.e = nil
		s.c.release(e)
	}
	e, sawDead := s.b.modify(s.c.eq, s.key, s.hash)
	if sawDead {
		s.b.cleanUp()
	}
	s.e = e
	return e
}
