// SPDX-License-Identifier: MIT
package analysis

// Ring is a fixed-capacity circular buffer that accumulates incoming
// audio into analysis-window-sized chunks. It decouples the host block
// size from the transform size: the host pushes blocks of any length
// and the analyzer reads full windows once the ring has wrapped.
//
// Not safe for concurrent use; the engine pushes and reads only from
// the audio callback.
type Ring struct {
	buf    []float64
	pos    int // next write index
	filled bool
}

// NewRing creates a ring holding exactly size samples.
func NewRing(size int) *Ring {
	return &Ring{buf: make([]float64, size)}
}

// Size returns the ring capacity.
func (r *Ring) Size() int {
	return len(r.buf)
}

// Push appends all samples, overwriting the oldest once the ring
// wraps. Allocation-free.
func (r *Ring) Push(samples []float64) {
	for len(samples) > 0 {
		n := copy(r.buf[r.pos:], samples)
		r.pos += n
		if r.pos == len(r.buf) {
			r.pos = 0
			r.filled = true
		}
		samples = samples[n:]
	}
}

// Full reports whether the write cursor has wrapped at least once
// since the last reset. Callers must not analyze until Full returns
// true.
func (r *Ring) Full() bool {
	return r.filled
}

// CopyOrdered writes the last Size() pushed samples into dst in
// chronological order (oldest first), independent of wrap position.
// It does not mutate the ring. dst must hold at least Size() samples.
func (r *Ring) CopyOrdered(dst []float64) {
	n := copy(dst, r.buf[r.pos:])
	copy(dst[n:], r.buf[:r.pos])
}

// Reset zero-fills the buffer and clears the cursor and full flag.
func (r *Ring) Reset() {
	for i := range r.buf {
		r.buf[i] = 0
	}
	r.pos = 0
	r.filled = false
}
