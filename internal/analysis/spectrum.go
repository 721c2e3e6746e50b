// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"thdscope/pkg/bitint"
)

// Spectrum wraps a forward real-valued FFT of fixed power-of-two size
// with pre-allocated scratch buffers. It is not safe for concurrent
// use; each analyzer instance owns its own Spectrum.
type Spectrum struct {
	size      int
	fft       *fourier.FFT
	fftOutput []complex128 // size/2 + 1 complex bins
	magnitude []float64    // size/2 + 1 linear magnitudes
}

// NewSpectrum creates a transform of the given size. The size must be
// a power of 2 so the FFT stays on its fast path.
func NewSpectrum(size int) (*Spectrum, error) {
	if !bitint.IsPowerOfTwo(size) {
		return nil, fmt.Errorf("spectrum size must be a power of 2, got %d", size)
	}

	// FFT output size for real input is N/2 + 1 complex values.
	binCount := size/2 + 1

	return &Spectrum{
		size:      size,
		fft:       fourier.NewFFT(size),
		fftOutput: make([]complex128, binCount),
		magnitude: make([]float64, binCount),
	}, nil
}

// Size returns the transform length N.
func (s *Spectrum) Size() int {
	return s.size
}

// Magnitudes runs the forward transform on input (which must hold
// exactly N samples, already windowed by the caller) and returns the
// linear magnitude spectrum. The returned slice aliases internal
// scratch and is valid until the next call.
func (s *Spectrum) Magnitudes(input []float64) []float64 {
	s.fft.Coefficients(s.fftOutput, input)
	for i, c := range s.fftOutput {
		s.magnitude[i] = cmplx.Abs(c)
	}
	return s.magnitude
}

// BinFrequency returns the center frequency in Hz of bin k at the
// given sample rate.
func (s *Spectrum) BinFrequency(k int, sampleRate float64) float64 {
	if k < 0 || k >= len(s.magnitude) {
		return 0
	}
	return float64(k) * sampleRate / float64(s.size)
}
