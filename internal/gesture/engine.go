package gesture

import "maps"

// ActiveState maps pattern id to whether the pattern is currently active.
type ActiveState map[string]bool

// Clone returns an independent copy of s.
func (s ActiveState) Clone() ActiveState {
	return maps.Clone(s)
}

// PatternState is one pattern's display record.
type PatternState struct {
	Pattern
	Active bool `json:"active"`
}

// Transition lists the patterns whose state changed on one update,
// in declaration order.
type Transition struct {
	Started []string `json:"started,omitempty"`
	Stopped []string `json:"stopped,omitempty"`
}

// Empty reports whether nothing changed.
func (t Transition) Empty() bool {
	return len(t.Started) == 0 && len(t.Stopped) == 0
}

// Evaluate computes the next active state for every pattern.
//
// An inactive pattern becomes active when Activate holds. An active pattern
// with a Deactivate predicate stays active until Deactivate holds; the
// activation predicate is not consulted again until then. An active pattern
// without Deactivate follows Activate directly.
func Evaluate(current Metrics, previous ActiveState, patterns []Pattern) ActiveState {
	next := make(ActiveState, len(patterns))
	for _, p := range patterns {
		next[p.ID] = step(p, current, previous[p.ID])
	}
	return next
}

func step(p Pattern, m Metrics, wasActive bool) bool {
	activate := p.Activate != nil && p.Activate(m)
	if wasActive && p.Deactivate != nil {
		return !p.Deactivate(m)
	}
	return activate
}

// Engine owns the pattern set and its active-state map.
// It is not safe for concurrent use; one tracking session drives it.
type Engine struct {
	patterns []Pattern
	active   ActiveState
}

// NewEngine creates an Engine with every pattern inactive.
func NewEngine(patterns []Pattern) *Engine {
	e := &Engine{}
	e.SetPatterns(patterns)
	return e
}

// SetPatterns replaces the pattern set and resets every state to inactive.
func (e *Engine) SetPatterns(patterns []Pattern) {
	e.patterns = append([]Pattern(nil), patterns...)
	e.active = inactive(e.patterns)
}

// Patterns returns the declared patterns.
func (e *Engine) Patterns() []Pattern {
	return append([]Pattern(nil), e.patterns...)
}

// Update evaluates one frame's metrics and reports what changed.
func (e *Engine) Update(m Metrics) Transition {
	return e.apply(Evaluate(m, e.active, e.patterns))
}

// FaceLost forces every pattern inactive.
func (e *Engine) FaceLost() Transition {
	return e.apply(inactive(e.patterns))
}

// Active returns a copy of the current active-state map.
func (e *Engine) Active() ActiveState {
	return e.active.Clone()
}

// IsActive reports whether the pattern id is active.
func (e *Engine) IsActive(id string) bool {
	return e.active[id]
}

// States returns every pattern with its current state, in declaration order.
func (e *Engine) States() []PatternState {
	out := make([]PatternState, len(e.patterns))
	for i, p := range e.patterns {
		out[i] = PatternState{Pattern: p, Active: e.active[p.ID]}
	}
	return out
}

func (e *Engine) apply(next ActiveState) Transition {
	var tr Transition
	for _, p := range e.patterns {
		was, now := e.active[p.ID], next[p.ID]
		switch {
		case now && !was:
			tr.Started = append(tr.Started, p.ID)
		case was && !now:
			tr.Stopped = append(tr.Stopped, p.ID)
		}
	}
	e.active = next
	return tr
}

func inactive(patterns []Pattern) ActiveState {
	s := make(ActiveState, len(patterns))
	for _, p := range patterns {
		s[p.ID] = false
	}
	return s
}
