// Package audio plays looping samples and measures how loud the room is.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/ayusman/hypnosonore/internal/log"
	"github.com/ayusman/hypnosonore/internal/trigger"
)

var (
	// ErrSlotEmpty is returned when starting a slot with no sample loaded.
	ErrSlotEmpty = errors.New("slot has no sample")
	// ErrBadSlot is returned for a slot index outside the player.
	ErrBadSlot = errors.New("slot out of range")
	// ErrDisposed is returned after Dispose.
	ErrDisposed = errors.New("player disposed")
)

// DefaultSlots matches the three built-in patterns.
const DefaultSlots = 3

// Process is a running playback.
type Process interface {
	Stop() error
}

// Launcher starts looping playback of path at volume (0..1).
type Launcher func(path string, volume float64) (Process, error)

// PlayerConfig configures a SamplePlayer.
type PlayerConfig struct {
	// Slots is the number of sample slots.
	Slots int
	// Command is the playback binary; it must loop the file until killed.
	Command string
	// Args are passed before the volume flag and the file path.
	Args []string
}

// DefaultPlayerConfig plays with ffplay, looping forever without a window.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		Slots:   DefaultSlots,
		Command: "ffplay",
		Args:    []string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-loop", "0"},
	}
}

type slot struct {
	path    string
	volume  float64
	playing Process
}

// SamplePlayer holds one looping sample per slot. StartSlot and StopSlot
// are idempotent. The playback binary is checked once, on first use.
type SamplePlayer struct {
	config PlayerConfig
	launch Launcher
	logger *slog.Logger

	ensureOnce sync.Once
	ensureErr  error

	mu       sync.Mutex
	slots    []slot
	disposed bool
}

// NewSamplePlayer creates a player that launches config.Command.
func NewSamplePlayer(config PlayerConfig) *SamplePlayer {
	if config.Slots <= 0 {
		config.Slots = DefaultSlots
	}
	p := &SamplePlayer{
		config: config,
		logger: log.Component("audio"),
		slots:  newSlots(config.Slots),
	}
	p.launch = p.execLauncher
	return p
}

// NewSamplePlayerWithLauncher creates a player with a custom launcher.
func NewSamplePlayerWithLauncher(slots int, launch Launcher) *SamplePlayer {
	if slots <= 0 {
		slots = DefaultSlots
	}
	p := &SamplePlayer{
		config: PlayerConfig{Slots: slots},
		launch: launch,
		logger: log.Component("audio"),
		slots:  newSlots(slots),
	}
	p.ensureOnce.Do(func() {})
	return p
}

func newSlots(n int) []slot {
	s := make([]slot, n)
	for i := range s {
		s[i].volume = 1
	}
	return s
}

// Ensure checks that the playback binary is available. Only the first call
// does any work; later calls return the same result.
func (p *SamplePlayer) Ensure() error {
	p.ensureOnce.Do(func() {
		if _, err := exec.LookPath(p.config.Command); err != nil {
			p.ensureErr = fmt.Errorf("audio player %q: %w", p.config.Command, err)
		}
	})
	return p.ensureErr
}

// Slots returns the number of slots.
func (p *SamplePlayer) Slots() int {
	return len(p.slots)
}

// Load assigns a sample file to a slot. A playing slot is restarted with the new file.
func (p *SamplePlayer) Load(index int, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("load slot %d: %w", index, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.slotLocked(index)
	if err != nil {
		return err
	}
	wasPlaying := s.playing != nil
	if wasPlaying {
		p.stopLocked(index)
	}
	s.path = path
	if wasPlaying {
		return p.startLocked(index)
	}
	return nil
}

// Sample returns the file loaded into a slot.
func (p *SamplePlayer) Sample(index int) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.slots) {
		return ""
	}
	return p.slots[index].path
}

// SetVolume sets a slot's volume (clamped to 0..1). It applies from the next start.
func (p *SamplePlayer) SetVolume(index int, volume float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := p.slotLocked(index)
	if err != nil {
		return err
	}
	s.volume = clamp01(volume)
	return nil
}

// StartSlot starts looping a slot. It does nothing if the slot is already playing.
func (p *SamplePlayer) StartSlot(index int) error {
	if err := p.Ensure(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startLocked(index)
}

// StopSlot stops a slot. It does nothing if the slot is not playing.
func (p *SamplePlayer) StopSlot(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.slotLocked(index); err != nil {
		return err
	}
	return p.stopLocked(index)
}

// Playing reports whether a slot is playing.
func (p *SamplePlayer) Playing(index int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return index >= 0 && index < len(p.slots) && p.slots[index].playing != nil
}

// Dispose stops every slot. The player cannot be used afterwards.
func (p *SamplePlayer) Dispose() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for i := range p.slots {
		errs = append(errs, p.stopLocked(i))
	}
	p.disposed = true
	return errors.Join(errs...)
}

// Start implements trigger.Actuator; the binding target is the slot index.
func (p *SamplePlayer) Start(_ context.Context, b trigger.Binding) error {
	index, err := strconv.Atoi(b.Target)
	if err != nil {
		return fmt.Errorf("sample binding target %q: %w", b.Target, err)
	}
	return p.StartSlot(index)
}

// Stop implements trigger.Actuator.
func (p *SamplePlayer) Stop(_ context.Context, b trigger.Binding) error {
	index, err := strconv.Atoi(b.Target)
	if err != nil {
		return fmt.Errorf("sample binding target %q: %w", b.Target, err)
	}
	return p.StopSlot(index)
}

func (p *SamplePlayer) slotLocked(index int) (*slot, error) {
	if p.disposed {
		return nil, ErrDisposed
	}
	if index < 0 || index >= len(p.slots) {
		return nil, fmt.Errorf("%w: %d", ErrBadSlot, index)
	}
	return &p.slots[index], nil
}

func (p *SamplePlayer) startLocked(index int) error {
	s, err := p.slotLocked(index)
	if err != nil {
		return err
	}
	if s.playing != nil {
		return nil
	}
	if s.path == "" {
		return fmt.Errorf("start slot %d: %w", index, ErrSlotEmpty)
	}

	proc, err := p.launch(s.path, s.volume)
	if err != nil {
		return fmt.Errorf("start slot %d: %w", index, err)
	}
	s.playing = proc
	p.logger.Debug("slot started", "slot", index, "sample", s.path)
	return nil
}

func (p *SamplePlayer) stopLocked(index int) error {
	s := &p.slots[index]
	if s.playing == nil {
		return nil
	}
	err := s.playing.Stop()
	s.playing = nil
	p.logger.Debug("slot stopped", "slot", index)
	if err != nil {
		return fmt.Errorf("stop slot %d: %w", index, err)
	}
	return nil
}

func (p *SamplePlayer) execLauncher(path string, volume float64) (Process, error) {
	args := append([]string(nil), p.config.Args...)
	if p.config.Command == "ffplay" {
		args = append(args, "-volume", strconv.Itoa(int(volume*100)))
	}
	args = append(args, path)

	cmd := exec.Command(p.config.Command, args...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (e *execProcess) Stop() error {
	if err := e.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	// Killed processes report an exit error; that is the expected outcome.
	_ = e.cmd.Wait()
	return nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
