// SPDX-License-Identifier: MIT
//
// Package bitint provides power-of-two helpers used when sizing FFT
// windows and analysis ring buffers. All operations are O(1),
// allocation-free and safe to call from the audio callback.
package bitint

import "math/bits"

// IsPowerOfTwo reports whether n is a positive power of 2.
// Powers of 2 have exactly one bit set, so n & (n-1) clears it.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// NextPowerOfTwo returns the smallest power of 2 >= size.
// The size-1 subtraction keeps exact powers of 2 unchanged instead
// of doubling them. Non-positive sizes map to 1.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len64(uint64(size-1))
}
