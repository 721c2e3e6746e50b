// SPDX-License-Identifier: MIT
//
// Package siggen generates deterministic test signals for driving the
// analyzer. It lives outside the measurement core on purpose: the
// analyzer itself never synthesizes audio, simulated input is always
// produced by an external collaborator such as this one.
package siggen

import "math"

// Sine returns size samples of a single sine at frequency Hz with the
// given linear amplitude.
func Sine(size int, sampleRate, frequency, amplitude float64) []float64 {
	buf := make([]float64, size)
	for i := range buf {
		t := float64(i) / sampleRate
		buf[i] = amplitude * math.Sin(2*math.Pi*frequency*t)
	}
	return buf
}

// Harmonic describes one overtone of a fundamental as a multiple of
// the fundamental frequency and a linear amplitude.
type Harmonic struct {
	Order     int
	Amplitude float64
}

// Distorted returns a fundamental plus the given harmonics, summed.
// It is the canonical input for exercising THD measurement: the exact
// distortion ratio is sqrt(sum(a_h^2)) / fundamentalAmplitude.
func Distorted(size int, sampleRate, fundamental, fundamentalAmplitude float64, harmonics []Harmonic) []float64 {
	buf := Sine(size, sampleRate, fundamental, fundamentalAmplitude)
	for _, h := range harmonics {
		for i := range buf {
			t := float64(i) / sampleRate
			buf[i] += h.Amplitude * math.Sin(2*math.Pi*fundamental*float64(h.Order)*t)
		}
	}
	return buf
}

// Silence returns size zero samples.
func Silence(size int) []float64 {
	return make([]float64, size)
}

// Interleave expands a mono signal into an interleaved float32 block
// with the given channel count, duplicating each sample across
// channels. Useful for feeding the engine's host-facing block path.
func Interleave(mono []float64, channels int) []float32 {
	out := make([]float32, len(mono)*channels)
	for i, s := range mono {
		for c := 0; c < channels; c++ {
			out[i*channels+c] = float32(s)
		}
	}
	return out
}
