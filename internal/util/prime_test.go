package util

import (
	"math/rand"
	"testing"
)

func TestNextPrime(t *testing.T) {
	t.Parallel()

	cases := map[uint32]uint32{
		0:       3,
		1:       3,
		3:       3,
		4:       7,
		100:     107,
		1000:    1103,
		7199369: 7199369,
	}
	for in, want := range cases {
		if got := NextPrime(in); got != want {
			t.Fatalf("NextPrime(%d) = %d, want %d", in, got, want)
		}
	}

	// Past the table: must still be a prime >= x.
	x := uint32(7199370)
	p := NextPrime(x)
	if p < x || !IsPrime(p) {
		t.Fatalf("NextPrime(%d) = %d is not a prime >= input", x, p)
	}
}

func TestPrimeTableIsPrime(t *testing.T) {
	t.Parallel()

	for i, p := range primes {
		if !IsPrime(p) {
			t.Fatalf("primes[%d] = %d is not prime", i, p)
		}
		if i > 0 && primes[i-1] >= p {
			t.Fatalf("primes table not strictly increasing at %d", i)
		}
	}
}

// FastMod must agree with the % operator for arbitrary inputs.
func TestFastModMatchesModulo(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(42))
	for _, d := range []uint32{3, 7, 107, 1103, 7199369, 4294967291} {
		m := FastModMultiplier(d)
		for i := 0; i < 10_000; i++ {
			v := r.Uint32()
			if got, want := FastMod(v, d, m), v%d; got != want {
				t.Fatalf("FastMod(%d, %d) = %d, want %d", v, d, got, want)
			}
		}
		if got := FastMod(^uint32(0), d, m); got != ^uint32(0)%d {
			t.Fatalf("FastMod(max, %d) = %d", d, got)
		}
	}
}
