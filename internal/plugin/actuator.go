package plugin

import (
	"context"
	"fmt"

	"github.com/ayusman/hypnosonore/internal/trigger"
)

// Actuator runs plugin actions for trigger bindings of kind plugin.
// The binding target names the plugin and the binding action is passed on.
type Actuator struct {
	manager  *Manager
	executor *Executor
}

// NewActuator creates an Actuator over a manager and an executor.
func NewActuator(m *Manager, e *Executor) *Actuator {
	return &Actuator{manager: m, executor: e}
}

// Start runs the plugin with the start edge.
func (a *Actuator) Start(ctx context.Context, b trigger.Binding) error {
	return a.run(ctx, b, EdgeStart)
}

// Stop runs the plugin with the stop edge.
func (a *Actuator) Stop(ctx context.Context, b trigger.Binding) error {
	return a.run(ctx, b, EdgeStop)
}

func (a *Actuator) run(ctx context.Context, b trigger.Binding, edge Edge) error {
	p, err := a.manager.Get(b.Target)
	if err != nil {
		return fmt.Errorf("%s: %w", b.Target, err)
	}
	if !p.Manifest.Supports(b.Action) {
		return fmt.Errorf("plugin %s has no action %q", b.Target, b.Action)
	}

	resp, err := a.executor.Execute(ctx, p, &Request{
		Action:  b.Action,
		Pattern: b.PatternID,
		Edge:    edge,
		Config:  b.Config,
	})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("plugin %s %s failed: %s", b.Target, edge, resp.Error)
	}
	return nil
}
