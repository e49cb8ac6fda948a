package trigger

import (
	"context"
	"sync"
)

// Call is one recorded actuator invocation.
type Call struct {
	Op      string // "start" or "stop"
	Binding Binding
}

// Recorder is an Actuator that remembers every call. Err, when set, is
// returned from both operations after the call is recorded.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
	Err   error
}

// Start records a start call.
func (r *Recorder) Start(_ context.Context, b Binding) error {
	return r.record("start", b)
}

// Stop records a stop call.
func (r *Recorder) Stop(_ context.Context, b Binding) error {
	return r.record("stop", b)
}

// Calls returns the recorded calls in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Count returns how many calls of op were made for patternID.
func (r *Recorder) Count(op, patternID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Op == op && c.Binding.PatternID == patternID {
			n++
		}
	}
	return n
}

func (r *Recorder) record(op string, b Binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Op: op, Binding: b})
	return r.Err
}
