package gesture

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ErrNotSeparable is returned when the gesture samples overlap the rest samples.
var ErrNotSeparable = errors.New("gesture samples overlap rest samples")

// Calibrator turns recorded metrics into threshold suggestions.
//
// Rest samples are recorded with a neutral face, held samples while the
// user performs one gesture. Activation lands 60% of the way from the
// rest ceiling to the gesture floor, deactivation 20% of the way, which
// keeps a dead zone between them.
type Calibrator struct {
	// RestQuantile is the rest ceiling quantile (default 0.95).
	RestQuantile float64
	// HeldQuantile is the gesture floor quantile (default 0.05).
	HeldQuantile float64
}

// NewCalibrator creates a Calibrator with default quantiles.
func NewCalibrator() *Calibrator {
	return &Calibrator{RestQuantile: 0.95, HeldQuantile: 0.05}
}

// Calibrate updates the band of pattern id inside base from the samples.
// Smile calibration tunes the width thresholds and keeps the mouth-open limits.
func (c *Calibrator) Calibrate(id string, base Thresholds, rest, held []Metrics) (Thresholds, error) {
	if len(rest) == 0 || len(held) == 0 {
		return base, fmt.Errorf("calibrate %s: need rest and held samples, got %d and %d", id, len(rest), len(held))
	}

	var pick func(Metrics) float64
	switch id {
	case PatternNod:
		pick = func(m Metrics) float64 { return m.Pitch }
	case PatternTurn:
		pick = func(m Metrics) float64 { return math.Abs(m.Yaw) }
	case PatternSmile:
		pick = func(m Metrics) float64 { return m.MouthWidth }
	default:
		return base, fmt.Errorf("calibrate %s: unknown pattern", id)
	}

	band, err := c.band(project(rest, pick), project(held, pick))
	if err != nil {
		return base, fmt.Errorf("calibrate %s: %w", id, err)
	}

	out := base
	switch id {
	case PatternNod:
		out.Nod = band
	case PatternTurn:
		out.Turn = band
	case PatternSmile:
		out.Smile.WidthActivate = band.Activate
		out.Smile.WidthDeactivate = band.Deactivate
	}
	return out, nil
}

func (c *Calibrator) band(rest, held []float64) (Band, error) {
	sort.Float64s(rest)
	sort.Float64s(held)

	ceiling := stat.Quantile(c.RestQuantile, stat.Empirical, rest, nil)
	floor := stat.Quantile(c.HeldQuantile, stat.Empirical, held, nil)
	if floor <= ceiling {
		return Band{}, fmt.Errorf("%w: rest ceiling %.3f, gesture floor %.3f", ErrNotSeparable, ceiling, floor)
	}

	gap := floor - ceiling
	return Band{
		Activate:   ceiling + 0.6*gap,
		Deactivate: ceiling + 0.2*gap,
	}, nil
}

// Summary is the mean and spread of each metric over a recording.
type Summary struct {
	Mean   Metrics `json:"mean"`
	StdDev Metrics `json:"std_dev"`
	Count  int     `json:"count"`
}

// Summarize computes per-metric mean and standard deviation.
func Summarize(samples []Metrics) Summary {
	s := Summary{Count: len(samples)}
	if len(samples) == 0 {
		return s
	}
	meanStd := func(pick func(Metrics) float64) (float64, float64) {
		xs := project(samples, pick)
		if len(xs) == 1 {
			return xs[0], 0
		}
		return stat.MeanStdDev(xs, nil)
	}
	s.Mean.Yaw, s.StdDev.Yaw = meanStd(func(m Metrics) float64 { return m.Yaw })
	s.Mean.Pitch, s.StdDev.Pitch = meanStd(func(m Metrics) float64 { return m.Pitch })
	s.Mean.Roll, s.StdDev.Roll = meanStd(func(m Metrics) float64 { return m.Roll })
	s.Mean.MouthWidth, s.StdDev.MouthWidth = meanStd(func(m Metrics) float64 { return m.MouthWidth })
	s.Mean.MouthOpen, s.StdDev.MouthOpen = meanStd(func(m Metrics) float64 { return m.MouthOpen })
	return s
}

func project(samples []Metrics, pick func(Metrics) float64) []float64 {
	out := make([]float64, len(samples))
	for i, m := range samples {
		out[i] = pick(m)
	}
	return out
}
