// Package trigger turns pattern states into start/stop side effects.
//
// Every binding is a two-state machine, Stopped or Started. The Dispatcher
// calls an actuator only when a binding has to change state, so feeding the
// same active-state map every frame is a no-op.
package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind selects the actuator that serves a binding.
type Kind string

const (
	// KindSample loops an audio sample in a player slot while active.
	KindSample Kind = "sample"
	// KindOSC sends 1 on start and 0 on stop to an OSC address.
	KindOSC Kind = "osc"
	// KindPlugin runs a plugin action on each edge.
	KindPlugin Kind = "plugin"
)

// ErrNoActuator is returned when no actuator is registered for a binding kind.
var ErrNoActuator = errors.New("no actuator for binding kind")

// Binding ties a pattern to one side effect.
type Binding struct {
	ID        string          `json:"id"`
	PatternID string          `json:"pattern_id"`
	Kind      Kind            `json:"kind"`
	Target    string          `json:"target"`
	Action    string          `json:"action,omitempty"`
	Config    json.RawMessage `json:"config,omitempty"`
}

// Key identifies the binding inside the dispatcher.
func (b Binding) Key() string {
	if b.ID != "" {
		return b.ID
	}
	return fmt.Sprintf("%s/%s/%s", b.PatternID, b.Kind, b.Target)
}

// Actuator performs the side effect of a binding.
// Start and Stop must tolerate being called again for a binding already
// in that state.
type Actuator interface {
	Start(ctx context.Context, b Binding) error
	Stop(ctx context.Context, b Binding) error
}

// ActuatorFuncs adapts two functions to Actuator.
type ActuatorFuncs struct {
	OnStart func(ctx context.Context, b Binding) error
	OnStop  func(ctx context.Context, b Binding) error
}

// Start calls OnStart if set.
func (f ActuatorFuncs) Start(ctx context.Context, b Binding) error {
	if f.OnStart == nil {
		return nil
	}
	return f.OnStart(ctx, b)
}

// Stop calls OnStop if set.
func (f ActuatorFuncs) Stop(ctx context.Context, b Binding) error {
	if f.OnStop == nil {
		return nil
	}
	return f.OnStop(ctx, b)
}
