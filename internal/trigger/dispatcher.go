package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ayusman/hypnosonore/internal/log"
)

// Dispatcher drives actuators from per-frame active-state maps.
type Dispatcher struct {
	mu        sync.Mutex
	actuators map[Kind]Actuator
	bindings  []Binding
	started   map[string]bool
	// failed holds the state a binding last failed to reach. It is not
	// retried until the pattern flips back or the bindings are replaced.
	failed map[string]bool
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher with no bindings.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Component("trigger")
	}
	return &Dispatcher{
		actuators: make(map[Kind]Actuator),
		started:   make(map[string]bool),
		failed:    make(map[string]bool),
		logger:    logger,
	}
}

// Register sets the actuator for a binding kind.
func (d *Dispatcher) Register(kind Kind, a Actuator) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actuators[kind] = a
}

// SetBindings replaces the binding set. Started bindings that are no longer
// present are stopped first.
func (d *Dispatcher) SetBindings(ctx context.Context, bindings []Binding) {
	d.mu.Lock()
	defer d.mu.Unlock()

	keep := make(map[string]bool, len(bindings))
	for _, b := range bindings {
		keep[b.Key()] = true
	}
	for _, b := range d.bindings {
		if d.started[b.Key()] && !keep[b.Key()] {
			d.stopLocked(ctx, b)
		}
	}
	for key := range d.started {
		if !keep[key] {
			delete(d.started, key)
		}
	}
	clear(d.failed)

	d.bindings = append([]Binding(nil), bindings...)
	sort.SliceStable(d.bindings, func(i, j int) bool {
		return d.bindings[i].PatternID < d.bindings[j].PatternID
	})
}

// Bindings returns the current binding set.
func (d *Dispatcher) Bindings() []Binding {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Binding(nil), d.bindings...)
}

// Apply brings every binding in line with active. Patterns missing from
// active count as inactive. A failed call leaves the binding in its old
// state and is attempted once per edge: it is retried after the pattern
// flips back and forth again, or after SetBindings. The first error is
// returned.
func (d *Dispatcher) Apply(ctx context.Context, active map[string]bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for _, b := range d.bindings {
		key := b.Key()
		want := active[b.PatternID]
		if want == d.started[key] {
			delete(d.failed, key)
			continue
		}
		if failedWant, ok := d.failed[key]; ok && failedWant == want {
			continue
		}

		var err error
		if want {
			err = d.startLocked(ctx, b)
		} else {
			err = d.stopLocked(ctx, b)
		}
		if err != nil {
			d.failed[key] = want
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// StopAll stops every started binding exactly once. Bindings are marked
// stopped even if their actuator fails.
func (d *Dispatcher) StopAll(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, b := range d.bindings {
		if d.started[b.Key()] {
			d.stopLocked(ctx, b)
		}
	}
	clear(d.started)
	clear(d.failed)
}

// Started reports whether any binding of patternID is started.
func (d *Dispatcher) Started(patternID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range d.bindings {
		if b.PatternID == patternID && d.started[b.Key()] {
			return true
		}
	}
	return false
}

func (d *Dispatcher) startLocked(ctx context.Context, b Binding) error {
	a, ok := d.actuators[b.Kind]
	if !ok {
		return fmt.Errorf("start %s: %w: %s", b.Key(), ErrNoActuator, b.Kind)
	}
	if err := a.Start(ctx, b); err != nil {
		d.logger.Warn("start failed", "pattern", b.PatternID, "kind", b.Kind, "target", b.Target, log.Err(err))
		return fmt.Errorf("start %s: %w", b.Key(), err)
	}
	d.started[b.Key()] = true
	d.logger.Debug("started", "pattern", b.PatternID, "kind", b.Kind, "target", b.Target)
	return nil
}

func (d *Dispatcher) stopLocked(ctx context.Context, b Binding) error {
	a, ok := d.actuators[b.Kind]
	if !ok {
		delete(d.started, b.Key())
		return fmt.Errorf("stop %s: %w: %s", b.Key(), ErrNoActuator, b.Kind)
	}
	if err := a.Stop(ctx, b); err != nil {
		d.logger.Warn("stop failed", "pattern", b.PatternID, "kind", b.Kind, "target", b.Target, log.Err(err))
		return fmt.Errorf("stop %s: %w", b.Key(), err)
	}
	delete(d.started, b.Key())
	d.logger.Debug("stopped", "pattern", b.PatternID, "kind", b.Kind, "target", b.Target)
	return nil
}
