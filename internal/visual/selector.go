// Package visual derives the visual FX mix from pattern states and audio level.
package visual

import (
	"math"
	"sync"

	"github.com/ayusman/hypnosonore/internal/gesture"
)

// Layer is one visual FX layer driven by a pattern.
type Layer struct {
	ID        string `json:"id"`
	PatternID string `json:"pattern_id"`
	Color     string `json:"color"`
}

// LayerState is a layer with its current mix.
type LayerState struct {
	Layer
	Active  bool    `json:"active"`
	Opacity float64 `json:"opacity"`
}

// Scene is everything a renderer needs for one frame.
type Scene struct {
	Layers []LayerState `json:"layers"`
	Level  float64      `json:"level"`
	// Hue is the particle field hue in 0..1.
	Hue float64 `json:"hue"`
	// Spread widens the field as the room gets louder.
	Spread float64 `json:"spread"`
	// Lift raises the camera with the level.
	Lift float64 `json:"lift"`
}

// Fade rates per frame.
const (
	DefaultFadeIn  = 0.25
	DefaultFadeOut = 0.1

	baseHue    = 0.55
	hueRange   = 0.35
	baseLift   = 2.0
	liftRange  = 0.8
	spreadGain = 0.15
)

// LayersFor builds one layer per pattern, named after it and in its color.
func LayersFor(patterns []gesture.Pattern) []Layer {
	layers := make([]Layer, len(patterns))
	for i, p := range patterns {
		layers[i] = Layer{ID: "fx-" + p.ID, PatternID: p.ID, Color: p.Color}
	}
	return layers
}

// Selector crossfades layers in and out as their patterns activate.
type Selector struct {
	mu      sync.Mutex
	layers  []Layer
	opacity map[string]float64
	fadeIn  float64
	fadeOut float64
}

// NewSelector creates a Selector over layers with every layer hidden.
func NewSelector(layers []Layer) *Selector {
	s := &Selector{fadeIn: DefaultFadeIn, fadeOut: DefaultFadeOut}
	s.SetLayers(layers)
	return s
}

// SetLayers replaces the layer set and hides every layer.
func (s *Selector) SetLayers(layers []Layer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layers = append([]Layer(nil), layers...)
	s.opacity = make(map[string]float64, len(layers))
}

// Step advances one frame. Layers whose pattern is active fade toward 1,
// the others toward 0. The audio level drives the field parameters.
func (s *Selector) Step(active gesture.ActiveState, level float64) Scene {
	s.mu.Lock()
	defer s.mu.Unlock()

	level = clamp(level, 0, 1)
	scene := Scene{
		Layers: make([]LayerState, len(s.layers)),
		Level:  level,
		Hue:    math.Mod(baseHue+level*hueRange, 1),
		Spread: 1 + level*spreadGain,
		Lift:   baseLift + level*liftRange,
	}

	for i, l := range s.layers {
		on := active[l.PatternID]
		op := s.opacity[l.ID]
		if on {
			op += (1 - op) * s.fadeIn
		} else {
			op += (0 - op) * s.fadeOut
		}
		if op < 1e-3 {
			op = 0
		}
		s.opacity[l.ID] = op
		scene.Layers[i] = LayerState{Layer: l, Active: on, Opacity: op}
	}
	return scene
}

// Reset hides every layer at once.
func (s *Selector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.opacity)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
