// Package orchestra relays phone players' gyroscope and tap input to OSC.
//
// Each of the six player slots has a role that decides which controller
// numbers its gyro axes drive. Players send JSON over a WebRTC data channel;
// the orchestra keeps their latest reading and forwards the mapped values.
package orchestra

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/ayusman/hypnosonore/internal/log"
	"github.com/ayusman/hypnosonore/internal/osc"
)

// NumPlayers is the number of player slots.
const NumPlayers = 6

// DefaultIntensity is the global intensity before any macro runs.
const DefaultIntensity = 0.6

// DefaultScene is the scene selected at startup.
const DefaultScene = "foret"

// ErrUnknownPlayer is returned for a player id outside 1..NumPlayers.
var ErrUnknownPlayer = errors.New("unknown player")

// Relay delivers player values. *osc.Bridge satisfies it.
type Relay interface {
	SendPlayer(id, key string, value float64) error
	SetScene(scene string) error
}

// Player is one slot's latest state.
type Player struct {
	ID        string   `json:"id"`
	Role      osc.Role `json:"role,omitempty"`
	Active    bool     `json:"active"`
	Gyro      osc.Gyro `json:"gyro"`
	Intensity float64  `json:"intensity"`
	Tap       bool     `json:"tap"`
}

// Config is the persisted part of the orchestra.
type Config struct {
	Scene string              `json:"scene"`
	Roles map[string]osc.Role `json:"roles"`
}

// Message is what a player sends over the data channel.
type Message struct {
	ID        PlayerID `json:"id"`
	GyroX     float64  `json:"gyroX"`
	GyroY     float64  `json:"gyroY"`
	GyroZ     float64  `json:"gyroZ"`
	Intensity *float64 `json:"intensity"`
	Tap       bool     `json:"tap"`
}

// PlayerID accepts both "3" and 3 in JSON.
type PlayerID string

// UnmarshalJSON implements json.Unmarshaler.
func (p *PlayerID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PlayerID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("player id: %w", err)
	}
	*p = PlayerID(n.String())
	return nil
}

// Orchestra holds the player slots and scene. It is safe for concurrent use.
type Orchestra struct {
	mu        sync.Mutex
	relay     Relay
	players   []Player
	scene     string
	intensity float64
	logger    *slog.Logger
}

// New creates an orchestra with every player active and without a role.
func New(relay Relay) *Orchestra {
	players := make([]Player, NumPlayers)
	for i := range players {
		players[i] = Player{ID: strconv.Itoa(i + 1), Active: true}
	}
	return &Orchestra{
		relay:     relay,
		players:   players,
		scene:     DefaultScene,
		intensity: DefaultIntensity,
		logger:    log.Component("orchestra"),
	}
}

// HandleMessage decodes a data-channel payload, updates the player and
// relays its mapped controls. Payloads without an id are ignored.
func (o *Orchestra) HandleMessage(data []byte) error {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decode player message: %w", err)
	}
	if msg.ID == "" {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	p, err := o.playerLocked(string(msg.ID))
	if err != nil {
		return err
	}
	p.Gyro = osc.Gyro{X: msg.GyroX, Y: msg.GyroY, Z: msg.GyroZ}
	if msg.Intensity != nil {
		p.Intensity = *msg.Intensity
	}
	p.Tap = msg.Tap

	return o.relayLocked(*p)
}

// Players returns a copy of every slot.
func (o *Orchestra) Players() []Player {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Player(nil), o.players...)
}

// SetRole assigns a role to a player. An empty role clears it.
func (o *Orchestra) SetRole(id string, role osc.Role) error {
	if role != "" && !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	p, err := o.playerLocked(id)
	if err != nil {
		return err
	}
	p.Role = role
	return nil
}

// ToggleActive flips whether a player is relayed and returns the new state.
func (o *Orchestra) ToggleActive(id string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, err := o.playerLocked(id)
	if err != nil {
		return false, err
	}
	p.Active = !p.Active
	return p.Active, nil
}

// Scene returns the current scene.
func (o *Orchestra) Scene() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.scene
}

// SetScene selects a scene and announces it on /scene/set.
func (o *Orchestra) SetScene(scene string) error {
	o.mu.Lock()
	o.scene = scene
	o.mu.Unlock()
	return o.relay.SetScene(scene)
}

// Intensity returns the global intensity.
func (o *Orchestra) Intensity() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.intensity
}

// SetIntensity sets the global intensity and sends it as every player's volume.
func (o *Orchestra) SetIntensity(v float64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.intensity = v
	return o.broadcastLocked("volume", v)
}

// Crescendo raises every player to full volume.
func (o *Orchestra) Crescendo() error {
	return o.SetIntensity(1)
}

// Silence drops every player to zero volume.
func (o *Orchestra) Silence() error {
	return o.SetIntensity(0)
}

// MuteAll zeroes controller 10 on every player.
func (o *Orchestra) MuteAll() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.broadcastLocked("cc10", 0)
}

// Config returns the scene and assigned roles.
func (o *Orchestra) Config() Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	cfg := Config{Scene: o.scene, Roles: make(map[string]osc.Role)}
	for _, p := range o.players {
		if p.Role != "" {
			cfg.Roles[p.ID] = p.Role
		}
	}
	return cfg
}

// ApplyConfig restores a saved scene and roles. Unknown players and roles are skipped.
func (o *Orchestra) ApplyConfig(cfg Config) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if cfg.Scene != "" {
		o.scene = cfg.Scene
	}
	for id, role := range cfg.Roles {
		p, err := o.playerLocked(id)
		if err != nil || !role.Valid() {
			o.logger.Warn("skipping saved role", "player", id, "role", role)
			continue
		}
		p.Role = role
	}
}

func (o *Orchestra) playerLocked(id string) (*Player, error) {
	for i := range o.players {
		if o.players[i].ID == id {
			return &o.players[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPlayer, id)
}

func (o *Orchestra) relayLocked(p Player) error {
	if !p.Active || p.Role == "" {
		return nil
	}
	var errs []error
	for _, c := range osc.MapRole(p.Role, p.Gyro, p.Intensity, p.Tap) {
		errs = append(errs, o.relay.SendPlayer(p.ID, c.Key, c.Value))
	}
	return errors.Join(errs...)
}

func (o *Orchestra) broadcastLocked(key string, v float64) error {
	var errs []error
	for _, p := range o.players {
		errs = append(errs, o.relay.SendPlayer(p.ID, key, v))
	}
	return errors.Join(errs...)
}
