package audio

import (
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

// Reactive analyser constants.
const (
	FFTSize = 1024

	// Bins are mapped from [MinDecibels, MaxDecibels] onto [0, 1].
	MinDecibels = -100.0
	MaxDecibels = -30.0

	// SmoothingTimeConstant blends each bin with its previous magnitude.
	SmoothingTimeConstant = 0.85

	energyGain  = 1.4
	attackRate  = 0.08
	releaseRate = 0.05
)

// ReactiveAnalyzer turns PCM blocks into a smoothed 0..1 loudness level
// for visuals. Feed delivers audio, Tick advances the level once per frame.
type ReactiveAnalyzer struct {
	mu      sync.Mutex
	fft     *fourier.FFT
	buf     []float64
	coeffs  []complex128
	mags    []float64
	energy  float64
	pending bool
	level   float64
}

// NewReactiveAnalyzer creates an analyser over FFTSize-sample blocks.
func NewReactiveAnalyzer() *ReactiveAnalyzer {
	return &ReactiveAnalyzer{
		fft:  fourier.NewFFT(FFTSize),
		buf:  make([]float64, FFTSize),
		mags: make([]float64, FFTSize/2),
	}
}

// Feed analyses one block of samples in [-1, 1]. Short blocks are zero
// padded; long blocks use their last FFTSize samples.
func (a *ReactiveAnalyzer) Feed(samples []float64) {
	if len(samples) > FFTSize {
		samples = samples[len(samples)-FFTSize:]
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	n := copy(a.buf, samples)
	for i := n; i < len(a.buf); i++ {
		a.buf[i] = 0
	}
	window.Blackman(a.buf)
	a.coeffs = a.fft.Coefficients(a.coeffs, a.buf)

	for i := range a.mags {
		mag := cmplx.Abs(a.coeffs[i]) / FFTSize
		a.mags[i] = SmoothingTimeConstant*a.mags[i] + (1-SmoothingTimeConstant)*mag
	}
	a.energy = byteEnergy(a.mags)
	a.pending = true
}

// byteEnergy is the mean of the bin magnitudes scaled to 0..1 on a
// decibel range, the way browser analysers report byte frequency data.
func byteEnergy(mags []float64) float64 {
	if len(mags) == 0 {
		return 0
	}

	scaled := make([]float64, len(mags))
	for i, mag := range mags {
		db := MinDecibels
		if mag > 0 {
			db = 20 * math.Log10(mag)
		}
		scaled[i] = clamp01((db - MinDecibels) / (MaxDecibels - MinDecibels))
	}
	return floats.Sum(scaled) / float64(len(scaled))
}

// Tick advances the level by one frame and returns it. With audio fed
// since the last tick the level moves toward 1.4x the energy; without
// audio it decays toward zero.
func (a *ReactiveAnalyzer) Tick() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pending {
		a.level = lerp(a.level, a.energy*energyGain, attackRate)
		a.pending = false
	} else {
		a.level = lerp(a.level, 0, releaseRate)
	}
	return a.level
}

// Level returns the current level without advancing it.
func (a *ReactiveAnalyzer) Level() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.level
}

// Energy returns the energy of the last fed block.
func (a *ReactiveAnalyzer) Energy() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.energy
}

func lerp(from, to, t float64) float64 {
	return from + (to-from)*t
}
