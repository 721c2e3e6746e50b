// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
)

const (
	// HarmonicCount is the number of measured overtones, H2 through H8.
	HarmonicCount = 7

	// Fundamental search range.
	minFundamentalHz = 20.0
	maxFundamentalHz = 2000.0

	// Below this RMS the block is treated as silence and only the
	// fundamental estimate and level are reported.
	silenceRMS = 1e-4

	// Bins closer than this to the fundamental or a harmonic are
	// excluded from the noise-floor estimate.
	guardBins = 10
)

// Result holds one analysis pass over a full window. A fresh value is
// produced per call; degenerate inputs yield zeroed fields, never an
// error.
type Result struct {
	FundamentalHz float64                // Estimated fundamental, 0 if undetected
	THDPercent    float64                // Total harmonic distortion, clamped to [0, 100]
	THDNPercent   float64                // THD plus noise, clamped to [0, 100]
	LevelRMS      float64                // RMS of the unwindowed window
	Harmonics     [HarmonicCount]float64 // Linear magnitudes of H2..H8, in order
	NoiseFloor    float64                // RMS magnitude of non-harmonic bins
}

// Analyzer converts a full window of time-domain samples plus the
// sample rate into a Result. It owns its Hann window and transform
// scratch; one instance per engine, audio-callback use only.
type Analyzer struct {
	size     int
	window   []float64 // Hann coefficients, length size
	spectrum *Spectrum
	windowed []float64 // scratch for the windowed input
}

// NewAnalyzer creates an analyzer with a fixed window length. The
// size must be a power of 2 (8192 and 32768 are the supported
// configurations).
func NewAnalyzer(size int) (*Analyzer, error) {
	spectrum, err := NewSpectrum(size)
	if err != nil {
		return nil, fmt.Errorf("analyzer: %w", err)
	}

	return &Analyzer{
		size:     size,
		window:   HannWindow(size),
		spectrum: spectrum,
		windowed: make([]float64, size),
	}, nil
}

// Size returns the analysis window length N.
func (a *Analyzer) Size() int {
	return a.size
}

// Analyze measures one window of exactly Size() samples. Windows
// shorter than Size() and non-positive sample rates yield a zero
// Result. Silence and sub-threshold levels report fundamental and
// level only, with distortion fields left at zero.
//
// Allocation-free: safe to call from the audio callback.
func (a *Analyzer) Analyze(samples []float64, sampleRate float64) Result {
	var result Result

	if len(samples) < a.size || sampleRate <= 0 {
		return result
	}

	for i := range a.windowed {
		a.windowed[i] = samples[i] * a.window[i]
	}
	mag := a.spectrum.Magnitudes(a.windowed)

	// Restrict the fundamental search to 20 Hz .. 2 kHz, clamped into
	// the valid bin range. Ascending scan with a strictly-greater
	// comparison, so the first of equal maxima wins.
	halfSize := a.size / 2
	minBin := clampBin(int(minFundamentalHz*float64(a.size)/sampleRate), 1, halfSize-1)
	maxBin := clampBin(int(maxFundamentalHz*float64(a.size)/sampleRate), minBin, halfSize-1)

	maxMag := 0.0
	fundamentalBin := 0
	for i := minBin; i <= maxBin; i++ {
		if mag[i] > maxMag {
			maxMag = mag[i]
			fundamentalBin = i
		}
	}
	result.FundamentalHz = float64(fundamentalBin) * sampleRate / float64(a.size)

	// Level is the RMS of the unwindowed input.
	sumSquares := 0.0
	for _, s := range samples[:a.size] {
		sumSquares += s * s
	}
	result.LevelRMS = math.Sqrt(sumSquares / float64(a.size))

	// Insufficient signal: report what is known so far.
	if result.FundamentalHz <= 0 || result.LevelRMS <= silenceRMS || maxMag <= 0 {
		return result
	}

	// Harmonics H2..H8. Out-of-range bins stay zero and contribute
	// nothing to the distortion sum.
	harmonicSum := 0.0
	for h := 2; h <= HarmonicCount+1; h++ {
		bin := a.harmonicBin(h, result.FundamentalHz, sampleRate)
		if bin >= 1 && bin < halfSize {
			m := mag[bin]
			result.Harmonics[h-2] = m
			harmonicSum += m * m
		}
	}

	harmonicLevel := math.Sqrt(harmonicSum)
	result.THDPercent = clampPercent(harmonicLevel / maxMag * 100)

	// Noise floor: quadratic mean over bins outside the guard band of
	// the fundamental and every harmonic up to H8.
	noiseSum := 0.0
	noiseBins := 0
	for i := minBin; i < halfSize; i++ {
		if a.nearHarmonic(i, fundamentalBin, result.FundamentalHz, sampleRate) {
			continue
		}
		noiseSum += mag[i] * mag[i]
		noiseBins++
	}

	noiseLevel := 0.0
	if noiseBins > 0 {
		noiseLevel = math.Sqrt(noiseSum / float64(noiseBins))
	}

	result.THDNPercent = clampPercent((harmonicLevel + noiseLevel) / maxMag * 100)
	result.NoiseFloor = noiseLevel

	return result
}

// harmonicBin maps harmonic order h to its nearest spectrum bin.
func (a *Analyzer) harmonicBin(h int, fundamentalHz, sampleRate float64) int {
	return int(math.Round(float64(h) * fundamentalHz * float64(a.size) / sampleRate))
}

// nearHarmonic reports whether bin lies within guardBins of the
// fundamental or any harmonic H2..H8.
func (a *Analyzer) nearHarmonic(bin, fundamentalBin int, fundamentalHz, sampleRate float64) bool {
	if abs(bin-fundamentalBin) < guardBins {
		return true
	}
	for h := 2; h <= HarmonicCount+1; h++ {
		if abs(bin-a.harmonicBin(h, fundamentalHz, sampleRate)) < guardBins {
			return true
		}
	}
	return false
}

func clampBin(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clampPercent bounds distortion percentages to [0, 100]. Raw ratios
// can exceed 100% when the "fundamental" bin is not actually the
// strongest component; the registry and wire format carry the clamped
// value.
func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
