package app

import (
	"sync"
	"time"

	"github.com/ayusman/hypnosonore/internal/gesture"
	"github.com/ayusman/hypnosonore/internal/visual"
)

// Source states reported on the snapshot stream.
const (
	SourceIdle     = "idle"
	SourceReady    = "ready"
	SourceMock     = "mock"
	SourceError    = "error"
	SourceDisabled = "disabled"
)

// SourceStatus describes the landmark source. Detector failures show up
// here instead of reaching the gesture core.
type SourceStatus struct {
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// Snapshot is the published result of one frame.
type Snapshot struct {
	Seq        uint64                 `json:"seq"`
	Session    string                 `json:"session"`
	Time       time.Time              `json:"time"`
	Face       bool                   `json:"face"`
	Raw        gesture.Metrics        `json:"raw"`
	Metrics    gesture.Metrics        `json:"metrics"`
	Active     gesture.ActiveState    `json:"active"`
	Patterns   []gesture.PatternState `json:"patterns"`
	Transition gesture.Transition     `json:"transition"`
	Scene      visual.Scene           `json:"scene"`
	Volume     float64                `json:"volume"`
	Yawning    bool                   `json:"yawning"`
	FPS        int                    `json:"fps"`
	Source     SourceStatus           `json:"source"`
}

// DefaultHistorySize keeps about ten seconds at the active rate.
const DefaultHistorySize = 300

// Sample is one point of the metrics history.
type Sample struct {
	Time    time.Time       `json:"time"`
	Face    bool            `json:"face"`
	Metrics gesture.Metrics `json:"metrics"`
}

// History is a fixed-size ring of recent metrics.
type History struct {
	mu      sync.Mutex
	samples []Sample
	next    int
	full    bool
}

// NewHistory creates a History holding up to size samples.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{samples: make([]Sample, size)}
}

// Add appends a sample, overwriting the oldest once full.
func (h *History) Add(s Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.samples[h.next] = s
	h.next = (h.next + 1) % len(h.samples)
	if h.next == 0 {
		h.full = true
	}
}

// Samples returns the samples oldest first.
func (h *History) Samples() []Sample {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.full {
		out := make([]Sample, h.next)
		copy(out, h.samples[:h.next])
		return out
	}
	out := make([]Sample, 0, len(h.samples))
	out = append(out, h.samples[h.next:]...)
	return append(out, h.samples[:h.next]...)
}

// Len returns the number of stored samples.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.full {
		return len(h.samples)
	}
	return h.next
}

// listeners fans snapshots out to subscribers.
type listeners struct {
	mu   sync.RWMutex
	next int
	fns  map[int]func(Snapshot)
}

func (l *listeners) add(fn func(Snapshot)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func(Snapshot))
	}
	id := l.next
	l.next++
	l.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.fns, id)
			l.mu.Unlock()
		})
	}
}

func (l *listeners) notify(s Snapshot) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, fn := range l.fns {
		fn(s)
	}
}
