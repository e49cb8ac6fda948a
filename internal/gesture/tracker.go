package gesture

import "github.com/ayusman/hypnosonore/internal/detector"

// Frame is the result of processing one detection callback.
type Frame struct {
	Face       bool           `json:"face"`
	Raw        Metrics        `json:"raw"`
	Metrics    Metrics        `json:"metrics"`
	Active     ActiveState    `json:"active"`
	Transition Transition     `json:"transition"`
	States     []PatternState `json:"patterns"`
}

// TrackerOptions configures a Tracker.
type TrackerOptions struct {
	// Smoothing enables the moving average before classification.
	Smoothing bool
	// Alpha is the smoothing weight; zero means DefaultAlpha.
	Alpha float64
}

// Tracker is one face-tracking session: metrics, smoothing and the engine,
// run synchronously per frame.
type Tracker struct {
	smoother *Smoother
	engine   *Engine
}

// NewTracker creates a session over patterns.
func NewTracker(patterns []Pattern, opts TrackerOptions) *Tracker {
	t := &Tracker{engine: NewEngine(patterns)}
	if opts.Smoothing {
		t.smoother = NewSmoother(opts.Alpha)
	}
	return t
}

// Process handles one detection result. Only the first face is used.
// An empty result forces every pattern inactive and drops the smoothing baseline.
func (t *Tracker) Process(faces []detector.FaceLandmarks) Frame {
	face, ok := detector.FirstFace(faces)
	if !ok {
		tr := t.reset()
		return t.frame(false, Metrics{}, Metrics{}, tr)
	}

	raw := ComputeMetrics(face)
	smoothed := raw
	if t.smoother != nil {
		smoothed = t.smoother.Smooth(raw)
	}

	tr := t.engine.Update(smoothed)
	return t.frame(true, raw, smoothed, tr)
}

// Teardown ends the session: every pattern goes inactive and the
// smoothing baseline is dropped. The returned transition names the
// patterns that were active.
func (t *Tracker) Teardown() Transition {
	return t.reset()
}

// SetPatterns swaps the pattern set. Every state restarts inactive;
// the returned transition names the patterns that were active.
func (t *Tracker) SetPatterns(patterns []Pattern) Transition {
	tr := t.engine.FaceLost()
	t.engine.SetPatterns(patterns)
	return tr
}

// Engine exposes the session's pattern engine.
func (t *Tracker) Engine() *Engine {
	return t.engine
}

// Smoothing reports whether the session smooths metrics.
func (t *Tracker) Smoothing() bool {
	return t.smoother != nil
}

func (t *Tracker) reset() Transition {
	if t.smoother != nil {
		t.smoother.Reset()
	}
	return t.engine.FaceLost()
}

func (t *Tracker) frame(face bool, raw, smoothed Metrics, tr Transition) Frame {
	return Frame{
		Face:       face,
		Raw:        raw,
		Metrics:    smoothed,
		Active:     t.engine.Active(),
		Transition: tr,
		States:     t.engine.States(),
	}
}
