// SPDX-License-Identifier: MIT
//
// Package analysis implements the THD measurement core: a Hann
// window, a real-valued spectrum transform, the harmonic-distortion
// analyzer and the ring buffer that feeds it. All buffers are
// allocated at construction time so the per-block path stays
// allocation-free.
package analysis

import "math"

// HannWindow returns symmetric Hann coefficients of the given length:
//
//	w[i] = 0.5 * (1 - cos(2*pi*i / (size-1)))
//
// The coefficients depend only on size and are computed once at
// analyzer construction.
func HannWindow(size int) []float64 {
	window := make([]float64, size)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return window
}
