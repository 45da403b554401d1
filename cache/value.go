package cache

import (
	"reflect"
	"sync/atomic"
	"unsafe"
)

// storage selects how an entry keeps its value so that readers never
// observe a torn write. It is resolved once per cache from the shape of V.
type storage uint8

const (
	// storeWord keeps pointer-free values of at most 8 bytes in a single
	// atomic word, updated in place without allocation.
	storeWord storage = iota
	// storeCopyOnWrite keeps the value in an immutable holder; an update
	// allocates a new holder and swaps the pointer.
	storeCopyOnWrite
)

func (s storage) String() string {
	if s == storeWord {
		return "word"
	}
	return "copy-on-write"
}

// storageFor picks the strategy for V.
func storageFor[V any]() storage {
	t := reflect.TypeFor[V]()
	if t.Size() <= 8 && pointerFree(t) {
		return storeWord
	}
	return storeCopyOnWrite
}

// pointerFree reports whether values of t hold no references, so their bits
// can live in a plain integer without hiding anything from the GC.
func pointerFree(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return t.Len() == 0 || pointerFree(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !pointerFree(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// cell holds an entry's value. Only one of the two fields is used,
// according to the cache's storage.
type cell[V any] struct {
	word  atomic.Uint64
	boxed atomic.Pointer[V]
}

func (c *cell[V]) load(s storage) V {
	if s == storeWord {
		bits := c.word.Load()
		return *(*V)(unsafe.Pointer(&bits))
	}
	if p := c.boxed.Load(); p != nil {
		return *p
	}
	var zero V
	return zero
}

func (c *cell[V]) store(s storage, v V) {
	if s == storeWord {
		var bits uint64
		*(*V)(unsafe.Pointer(&bits)) = v
		c.word.Store(bits)
		return
	}
	p := new(V)
	*p = v
	c.boxed.Store(p)
}

// clear drops the reference to a copy-on-write holder so a dead entry that
// is still reachable from a reader's traversal does not pin the value.
func (c *cell[V]) clear(s storage) {
	if s == storeCopyOnWrite {
		c.boxed.Store(nil)
	}
}
