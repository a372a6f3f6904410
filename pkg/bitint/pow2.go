/*
Package bitint holds the integer helpers used to size transform windows and
flash sectors. Both must be powers of two, and flash regions are rounded up to
whole sectors.

Usage:

	ok := bitint.IsPowerOfTwo(16)          // transform window size check
	region := bitint.AlignUp(260000, 4096) // 262144, whole sectors
	shift := bitint.Log2(4096)             // 12, sector index shift
*/
package bitint

import "math/bits"

// IsPowerOfTwo reports whether n is a positive power of two. A power of two
// has a single bit set, so clearing the lowest set bit leaves zero.
//
//	Input  Output  Binary
//	16     true    10000 & 01111 = 00000
//	12     false   01100 & 01011 = 01000
//	0      false   not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns floor(log2(n)) for n > 0 and -1 otherwise.
func Log2(n int) int {
	if n <= 0 {
		return -1
	}
	return bits.Len(uint(n)) - 1
}

// AlignUp rounds n up to the next multiple of align, which must be a power of
// two. Non-positive n rounds to zero.
func AlignUp(n, align int) int {
	if n <= 0 {
		return 0
	}
	if !IsPowerOfTwo(align) {
		panic("bitint: alignment must be a power of two")
	}
	return (n + align - 1) &^ (align - 1)
}
