// Package osc forwards gesture and player values to an OSC receiver such
// as a DAW listening on UDP.
package osc

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	goosc "github.com/hypebeast/go-osc/osc"

	"github.com/ayusman/hypnosonore/internal/gesture"
	"github.com/ayusman/hypnosonore/internal/log"
	"github.com/ayusman/hypnosonore/internal/trigger"
)

// Default receiver address.
const (
	DefaultHost = "192.168.43.1"
	DefaultPort = 8000
)

// Sender delivers one OSC packet. *goosc.Client satisfies it.
type Sender interface {
	Send(packet goosc.Packet) error
}

// Discard drops every packet. It stands in when OSC output is disabled.
var Discard Sender = discardSender{}

type discardSender struct{}

func (discardSender) Send(goosc.Packet) error { return nil }

// Bridge sends OSC messages. It is safe for concurrent use.
type Bridge struct {
	mu     sync.Mutex
	sender Sender
	logger *slog.Logger
}

// NewBridge creates a Bridge sending UDP packets to host:port.
func NewBridge(host string, port int) *Bridge {
	return NewBridgeWithSender(goosc.NewClient(host, port))
}

// NewBridgeWithSender creates a Bridge over an existing sender.
func NewBridgeWithSender(sender Sender) *Bridge {
	return &Bridge{sender: sender, logger: log.Component("osc")}
}

// Send sends one message with the given arguments.
func (b *Bridge) Send(address string, args ...any) error {
	if !strings.HasPrefix(address, "/") {
		return fmt.Errorf("osc address %q must start with /", address)
	}
	msg := goosc.NewMessage(address, args...)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.sender.Send(msg); err != nil {
		return fmt.Errorf("send %s: %w", address, err)
	}
	return nil
}

// SendFloat sends a single float32 value.
func (b *Bridge) SendFloat(address string, value float64) error {
	return b.Send(address, float32(value))
}

// PublishMetrics sends every metric under /face/<name>.
func (b *Bridge) PublishMetrics(m gesture.Metrics) error {
	for _, f := range m.Fields() {
		if err := b.SendFloat("/face/"+f.Name, f.Value); err != nil {
			return err
		}
	}
	return nil
}

// PublishStates sends 1 or 0 under /pattern/<id>, in id order.
func (b *Bridge) PublishStates(active gesture.ActiveState) error {
	ids := make([]string, 0, len(active))
	for id := range active {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := b.SendFloat("/pattern/"+id, boolValue(active[id])); err != nil {
			return err
		}
	}
	return nil
}

// SetScene sends the scene name to /scene/set.
func (b *Bridge) SetScene(scene string) error {
	return b.Send("/scene/set", scene)
}

// SendPlayer sends one value to /player/<id>/<key>.
func (b *Bridge) SendPlayer(id, key string, value float64) error {
	return b.SendFloat(PlayerAddress(id, key), value)
}

// Start implements trigger.Actuator: it sends 1 to the binding target address.
func (b *Bridge) Start(_ context.Context, binding trigger.Binding) error {
	return b.SendFloat(binding.Target, 1)
}

// Stop implements trigger.Actuator: it sends 0 to the binding target address.
func (b *Bridge) Stop(_ context.Context, binding trigger.Binding) error {
	return b.SendFloat(binding.Target, 0)
}

// PlayerAddress builds /player/<id>/<key>.
func PlayerAddress(id, key string) string {
	return fmt.Sprintf("/player/%s/%s", id, key)
}

func boolValue(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
