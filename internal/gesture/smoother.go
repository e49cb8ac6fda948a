package gesture

// DefaultAlpha weights each new sample at 18%, roughly a 5-6 frame window.
const DefaultAlpha = 0.18

// Smoother is an exponential moving average over Metrics.
// It holds the last smoothed sample; the zero value is not usable, use NewSmoother.
type Smoother struct {
	alpha  float64
	prev   Metrics
	primed bool
}

// NewSmoother returns a Smoother with the given weight for new samples.
// Values outside (0, 1] fall back to DefaultAlpha.
func NewSmoother(alpha float64) *Smoother {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	return &Smoother{alpha: alpha}
}

// Alpha returns the smoothing weight.
func (s *Smoother) Alpha() float64 {
	return s.alpha
}

// Smooth folds next into the running average and returns the new average.
// The first sample after construction or Reset is returned unchanged.
func (s *Smoother) Smooth(next Metrics) Metrics {
	if !s.primed {
		s.prev = next
		s.primed = true
		return next
	}

	s.prev = Metrics{
		Yaw:        lerp(s.prev.Yaw, next.Yaw, s.alpha),
		Pitch:      lerp(s.prev.Pitch, next.Pitch, s.alpha),
		Roll:       lerp(s.prev.Roll, next.Roll, s.alpha),
		MouthWidth: lerp(s.prev.MouthWidth, next.MouthWidth, s.alpha),
		MouthOpen:  lerp(s.prev.MouthOpen, next.MouthOpen, s.alpha),
	}
	return s.prev
}

// Reset drops the stored baseline.
func (s *Smoother) Reset() {
	s.prev = Metrics{}
	s.primed = false
}

// Primed reports whether a baseline is held.
func (s *Smoother) Primed() bool {
	return s.primed
}

func lerp(prev, next, alpha float64) float64 {
	return prev + (next-prev)*alpha
}
