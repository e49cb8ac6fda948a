package gesture

import (
	"errors"
	"fmt"
	"math"
)

// Built-in pattern ids.
const (
	PatternNod   = "nod"
	PatternTurn  = "turn"
	PatternSmile = "smile"
)

// Predicate is a total test over one Metrics sample.
type Predicate func(Metrics) bool

// Pattern is a named gesture with its activation and deactivation predicates.
//
// A nil Deactivate makes the pattern level-triggered: its state follows
// Activate every frame. With Deactivate set, an active pattern stays active
// until Deactivate holds, whatever Activate says.
type Pattern struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`

	Activate   Predicate `json:"-"`
	Deactivate Predicate `json:"-"`
}

// Hysteresis reports whether the pattern has a separate deactivation predicate.
func (p Pattern) Hysteresis() bool {
	return p.Deactivate != nil
}

// LevelTriggered builds a pattern that is active exactly when check holds.
func LevelTriggered(id string, check Predicate) Pattern {
	return Pattern{ID: id, Title: id, Activate: check}
}

// Band is an activate-above, deactivate-below threshold pair.
type Band struct {
	Activate   float64 `json:"activate"`
	Deactivate float64 `json:"deactivate"`
}

func (b Band) validate(name string) error {
	if b.Activate <= b.Deactivate {
		return fmt.Errorf("%s: activate (%g) must exceed deactivate (%g)", name, b.Activate, b.Deactivate)
	}
	return nil
}

// SmileBand holds the two-metric smile thresholds. The mouth must be wide
// and closed to activate; getting narrow or opening wide deactivates.
type SmileBand struct {
	WidthActivate   float64 `json:"width_activate"`
	OpenActivate    float64 `json:"open_activate"`
	WidthDeactivate float64 `json:"width_deactivate"`
	OpenDeactivate  float64 `json:"open_deactivate"`
}

func (b SmileBand) validate() error {
	if b.WidthActivate <= b.WidthDeactivate {
		return fmt.Errorf("smile: width_activate (%g) must exceed width_deactivate (%g)", b.WidthActivate, b.WidthDeactivate)
	}
	if b.OpenActivate >= b.OpenDeactivate {
		return fmt.Errorf("smile: open_activate (%g) must be below open_deactivate (%g)", b.OpenActivate, b.OpenDeactivate)
	}
	return nil
}

// Thresholds configures the built-in patterns.
type Thresholds struct {
	Nod   Band      `json:"nod"`
	Turn  Band      `json:"turn"`
	Smile SmileBand `json:"smile"`
}

// DefaultThresholds returns the reference tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Nod:  Band{Activate: 0.08, Deactivate: 0.05},
		Turn: Band{Activate: 0.08, Deactivate: 0.05},
		Smile: SmileBand{
			WidthActivate:   0.9,
			OpenActivate:    0.45,
			WidthDeactivate: 0.82,
			OpenDeactivate:  0.55,
		},
	}
}

// Validate checks that every band leaves a dead zone between its thresholds.
func (t Thresholds) Validate() error {
	return errors.Join(
		t.Nod.validate(PatternNod),
		t.Turn.validate(PatternTurn),
		t.Smile.validate(),
	)
}

// BuiltinPatterns returns nod, turn and smile tuned by t, in that order.
func BuiltinPatterns(t Thresholds) []Pattern {
	return []Pattern{
		{
			ID:          PatternNod,
			Title:       "Hochement",
			Description: "Head tilted down",
			Color:       "#00ffb4",
			Icon:        "↓",
			Activate:    func(m Metrics) bool { return m.Pitch > t.Nod.Activate },
			Deactivate:  func(m Metrics) bool { return m.Pitch < t.Nod.Deactivate },
		},
		{
			ID:          PatternTurn,
			Title:       "Rotation",
			Description: "Head turned to either side",
			Color:       "#64d4ff",
			Icon:        "↔",
			Activate:    func(m Metrics) bool { return math.Abs(m.Yaw) > t.Turn.Activate },
			Deactivate:  func(m Metrics) bool { return math.Abs(m.Yaw) < t.Turn.Deactivate },
		},
		{
			ID:          PatternSmile,
			Title:       "Sourire",
			Description: "Wide, closed mouth",
			Color:       "#ff7a9c",
			Icon:        "☺",
			Activate: func(m Metrics) bool {
				return m.MouthWidth > t.Smile.WidthActivate && m.MouthOpen < t.Smile.OpenActivate
			},
			Deactivate: func(m Metrics) bool {
				return m.MouthWidth < t.Smile.WidthDeactivate || m.MouthOpen > t.Smile.OpenDeactivate
			},
		},
	}
}
