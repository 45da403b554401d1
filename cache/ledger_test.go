package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestLedger(capacity int) *ledger[string, int] {
	return &ledger[string, int]{capacity: capacity}
}

func admitted(t *testing.T, l *ledger[string, int], k string) (*entry[string, int], []*entry[string, int]) {
	t.Helper()
	e := newEntry(k, 0, storeWord, 0)
	victims, ok := l.admit(e, nil)
	require.True(t, ok)
	return e, victims
}

func keysOf(es []*entry[string, int]) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.key)
	}
	return out
}

// ring lists keys starting from the hand.
func ring(l *ledger[string, int]) []string {
	var out []string
	if l.hand == nil {
		return out
	}
	for cur := l.hand; ; cur = cur.succ {
		out = append(out, cur.key)
		if cur.succ == l.hand {
			return out
		}
	}
}

func TestLedger_AdmitOrder(t *testing.T) {
	t.Parallel()

	l := newTestLedger(4)
	for _, k := range []string{"a", "b", "c"} {
		_, victims := admitted(t, l, k)
		require.Empty(t, victims)
	}
	require.Equal(t, []string{"a", "b", "c"}, ring(l))
	require.Equal(t, 3, l.Len())
}

func TestLedger_EvictsOldestUnvisited(t *testing.T) {
	t.Parallel()

	l := newTestLedger(2)
	a, _ := admitted(t, l, "a")
	admitted(t, l, "b")

	_, victims := admitted(t, l, "c")
	require.Equal(t, []string{"a"}, keysOf(victims))
	require.True(t, a.isDead())
	require.False(t, a.linked)
	require.Equal(t, 2, l.Len())
	require.Equal(t, []string{"b", "c"}, ring(l))
}

func TestLedger_SecondChance(t *testing.T) {
	t.Parallel()

	l := newTestLedger(2)
	a, _ := admitted(t, l, "a")
	admitted(t, l, "b")
	a.visit()

	_, victims := admitted(t, l, "c")
	require.Equal(t, []string{"b"}, keysOf(victims))
	require.False(t, a.visited.Load(), "the pass clears the bit")
	require.Equal(t, []string{"a", "c"}, ring(l))

	_, victims = admitted(t, l, "d")
	require.Equal(t, []string{"a"}, keysOf(victims))
}

// With every entry visited the hand clears them all and comes back to the
// first one.
func TestLedger_AllVisited(t *testing.T) {
	t.Parallel()

	l := newTestLedger(3)
	var es []*entry[string, int]
	for _, k := range []string{"a", "b", "c"} {
		e, _ := admitted(t, l, k)
		e.visit()
		es = append(es, e)
	}

	_, victims := admitted(t, l, "d")
	require.Equal(t, []string{"a"}, keysOf(victims))
	for _, e := range es[1:] {
		require.False(t, e.visited.Load())
	}
}

// A concurrently removed entry still in the ring is dropped by the pass and
// frees its slot without costing anyone else theirs.
func TestLedger_SkipsDeadEntries(t *testing.T) {
	t.Parallel()

	l := newTestLedger(2)
	a, _ := admitted(t, l, "a")
	admitted(t, l, "b")
	require.True(t, a.markEvicted())

	_, victims := admitted(t, l, "c")
	require.Empty(t, victims)
	require.Equal(t, []string{"b", "c"}, ring(l))

	l.remove(a) // the remover's own unlink is a no-op now
	require.Equal(t, 2, l.Len())
}

func TestLedger_AdmitDead(t *testing.T) {
	t.Parallel()

	l := newTestLedger(2)
	e := newEntry("a", 0, storeWord, 0)
	e.markEvicted()
	_, ok := l.admit(e, nil)
	require.False(t, ok)
	require.False(t, e.linked)
	require.Zero(t, l.Len())
}

func TestLedger_Remove(t *testing.T) {
	t.Parallel()

	l := newTestLedger(4)
	a, _ := admitted(t, l, "a")
	b, _ := admitted(t, l, "b")
	admitted(t, l, "c")

	a.markEvicted()
	l.remove(a)
	require.Equal(t, []string{"b", "c"}, ring(l), "removing the hand advances it")

	b.markEvicted()
	l.remove(b)
	l.remove(b)
	require.Equal(t, []string{"c"}, ring(l))
	require.Equal(t, 1, l.Len())
}
