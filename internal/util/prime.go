package util

import (
	"math"
	"math/bits"
)

// primes is a table of primes roughly 1.2x apart, suitable as bucket counts.
// Sizes past the table are found by trial division.
var primes = [...]uint32{
	3, 7, 11, 17, 23, 29, 37, 47, 59, 71, 89, 107, 131, 163, 197, 239, 293, 353,
	431, 521, 631, 761, 919, 1103, 1327, 1597, 1931, 2333, 2801, 3371, 4049,
	4861, 5839, 7013, 8419, 10103, 12143, 14591, 17519, 21023, 25229, 30293,
	36353, 43627, 52361, 62851, 75431, 90523, 108631, 130363, 156437, 187751,
	225307, 270371, 324449, 389357, 467237, 560689, 672827, 807403, 968897,
	1162687, 1395263, 1674319, 2009191, 2411033, 2893249, 3471899, 4166287,
	4999559, 5999471, 7199369,
}

// IsPrime reports whether x is prime.
func IsPrime(x uint32) bool {
	if x < 2 {
		return false
	}
	if x%2 == 0 {
		return x == 2
	}
	limit := uint32(math.Sqrt(float64(x)))
	for d := uint32(3); d <= limit; d += 2 {
		if x%d == 0 {
			return false
		}
	}
	return true
}

// NextPrime returns the smallest tabled or computed prime >= x.
// Special cases:
//   - x <= 3 -> 3
//   - x beyond the largest 32-bit prime -> math.MaxUint32 - 4 (4294967291)
func NextPrime(x uint32) uint32 {
	for _, p := range primes {
		if p >= x {
			return p
		}
	}
	for c := x | 1; c < math.MaxUint32; c += 2 {
		if IsPrime(c) {
			return c
		}
	}
	return math.MaxUint32 - 4
}

// FastModMultiplier precomputes the multiplier used by FastMod for divisor d.
// d must be non-zero.
func FastModMultiplier(d uint32) uint64 {
	return math.MaxUint64/uint64(d) + 1
}

// FastMod computes value % divisor without a division instruction,
// given multiplier = FastModMultiplier(divisor) (Lemire's reduction).
// Valid for any 32-bit value and non-zero divisor.
func FastMod(value, divisor uint32, multiplier uint64) uint32 {
	lowbits := multiplier * uint64(value)
	hi, _ := bits.Mul64(lowbits, uint64(divisor))
	return uint32(hi)
}
