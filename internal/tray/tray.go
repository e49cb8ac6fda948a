// Package tray provides the system tray menu for hypnosonore.
package tray

import (
	"sort"
	"strings"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/hypnosonore/internal/gesture"
)

// Tray is the system tray menu: a detection toggle, the live pattern and
// scene readout, a settings link and quit.
type Tray struct {
	onReady    func()
	onToggle   func(enabled bool)
	onSettings func()
	onQuit     func()
	enabled    bool
	active     string
	scene      string
	mu         sync.RWMutex

	menuToggle *systray.MenuItem
	menuActive *systray.MenuItem
	menuScene  *systray.MenuItem
}

// New creates a Tray with detection enabled.
func New() *Tray {
	return &Tray{
		enabled: true,
		active:  activeLabel(nil),
		scene:   sceneLabel(""),
	}
}

// OnReady sets the callback run once the menu exists.
func (t *Tray) OnReady(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReady = fn
}

// OnToggle sets the callback run when detection is toggled from the menu.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnSettings sets the callback run when the settings item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback run when quit is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the tray. It must be called from the main goroutine and
// blocks until Quit.
func (t *Tray) Run() {
	systray.Run(t.ready, func() {})
}

// Quit closes the tray and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) ready() {
	systray.SetTitle("Hypno")
	systray.SetTooltip("Hypnosonore face gestures")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleLabel(t.enabled), "Toggle face detection")
	systray.AddSeparator()
	t.menuActive = systray.AddMenuItem(t.active, "Active patterns")
	t.menuActive.Disable()
	t.menuScene = systray.AddMenuItem(t.scene, "Visual scene")
	t.menuScene.Disable()
	onReady := t.onReady
	t.mu.Unlock()

	systray.AddSeparator()
	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit hypnosonore")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()

	if onReady != nil {
		onReady()
	}
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	t.menuToggle.SetTitle(toggleLabel(enabled))
	callback := t.onToggle
	t.mu.Unlock()

	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
	systray.Quit()
}

// SetEnabled reflects a detection state changed elsewhere. It does not
// call the toggle callback.
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.enabled == enabled {
		return
	}
	t.enabled = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleLabel(enabled))
	}
}

// SetActive shows the active patterns. Unchanged labels are not redrawn.
func (t *Tray) SetActive(active gesture.ActiveState) {
	label := activeLabel(active)
	t.mu.Lock()
	defer t.mu.Unlock()
	if label == t.active {
		return
	}
	t.active = label
	if t.menuActive != nil {
		t.menuActive.SetTitle(label)
	}
}

// SetScene shows the current visual scene.
func (t *Tray) SetScene(name string) {
	label := sceneLabel(name)
	t.mu.Lock()
	defer t.mu.Unlock()
	if label == t.scene {
		return
	}
	t.scene = label
	if t.menuScene != nil {
		t.menuScene.SetTitle(label)
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// Labels returns the current active and scene labels.
func (t *Tray) Labels() (active, scene string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active, t.scene
}

func toggleLabel(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func activeLabel(active gesture.ActiveState) string {
	var ids []string
	for id, on := range active {
		if on {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return "Active: none"
	}
	sort.Strings(ids)
	return "Active: " + strings.Join(ids, ", ")
}

func sceneLabel(name string) string {
	if name == "" {
		return "Scene: none"
	}
	return "Scene: " + name
}
