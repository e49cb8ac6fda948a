// Package app wires the camera, the landmark source, the gesture tracker and
// the trigger actuators into one running session.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/ayusman/hypnosonore/internal/audio"
	"github.com/ayusman/hypnosonore/internal/capture"
	"github.com/ayusman/hypnosonore/internal/config"
	"github.com/ayusman/hypnosonore/internal/detector"
	"github.com/ayusman/hypnosonore/internal/gesture"
	"github.com/ayusman/hypnosonore/internal/log"
	"github.com/ayusman/hypnosonore/internal/orchestra"
	"github.com/ayusman/hypnosonore/internal/osc"
	"github.com/ayusman/hypnosonore/internal/plugin"
	"github.com/ayusman/hypnosonore/internal/store"
	"github.com/ayusman/hypnosonore/internal/trigger"
	"github.com/ayusman/hypnosonore/internal/visual"
)

// Options holds the collaborators of an App. Nil fields are built from
// Config.
type Options struct {
	Config config.Config
	// Store persists thresholds, bindings and the orchestra setup. Optional.
	Store *store.Store
	// Detector defaults to MediaPipe, falling back to a mock source.
	Detector detector.Detector
	// Camera defaults to the configured capture device.
	Camera capture.Camera
	// Player defaults to the configured sample player.
	Player *audio.SamplePlayer
	// OSC defaults to a UDP client when OSC is enabled, else osc.Discard.
	OSC osc.Sender
	// Logger defaults to the app component logger.
	Logger *slog.Logger
}

// sampleConfig is the binding config of a sample binding.
type sampleConfig struct {
	File   string   `json:"file"`
	Volume *float64 `json:"volume,omitempty"`
}

// App is the running gesture session.
type App struct {
	cfg     config.Config
	store   *store.Store
	logger  *slog.Logger
	session string

	camera   capture.Camera
	motion   *capture.MotionDetector
	pacer    *capture.Pacer
	detector detector.Detector

	// pipeMu serializes frame steps with pattern and binding changes.
	pipeMu     sync.Mutex
	tracker    *gesture.Tracker
	thresholds gesture.Thresholds
	dispatcher *trigger.Dispatcher
	selector   *visual.Selector
	follower   *audio.VolumeFollower
	seq        uint64

	// sourceErrors counts consecutive landmark source errors. Frame loop only.
	sourceErrors int

	player    *audio.SamplePlayer
	bridge    *osc.Bridge
	orchestra *orchestra.Orchestra
	host      *orchestra.Host
	plugins   *plugin.Manager
	analyzer  *audio.ReactiveAnalyzer

	history   *History
	listeners listeners
	frames    *frameBuffer

	mu      sync.RWMutex
	enabled bool
	source  SourceStatus
	latest  Snapshot
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds an App. It does not open the camera; call Start for that.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Component("app")
	}

	a := &App{
		cfg:        cfg,
		store:      opts.Store,
		logger:     logger,
		session:    uuid.NewString(),
		camera:     opts.Camera,
		motion:     capture.NewMotionDetector(cfg.Camera.MotionThreshold),
		pacer:      capture.NewPacer(cfg.Camera.IdleFPS, cfg.Camera.ActiveFPS, capture.DefaultLinger),
		detector:   opts.Detector,
		thresholds: cfg.Thresholds,
		dispatcher: trigger.NewDispatcher(logger.With("sub", "dispatcher")),
		follower:   audio.NewVolumeFollower(),
		player:     opts.Player,
		plugins:    plugin.NewManager(cfg.ResolvedPluginDir()),
		analyzer:   audio.NewReactiveAnalyzer(),
		history:    NewHistory(DefaultHistorySize),
		frames:     &frameBuffer{},
		enabled:    true,
		source:     SourceStatus{State: SourceIdle},
	}

	if a.camera == nil {
		a.camera = capture.NewCameraWithOptions(capture.Options{
			DeviceID: cfg.Camera.ID,
			Width:    cfg.Camera.Width,
			Height:   cfg.Camera.Height,
			FPS:      cfg.Camera.IdleFPS,
		})
	}

	if a.detector == nil {
		if mp, err := detector.NewMediaPipeDetector(cfg.Detector); err == nil {
			a.detector = mp
			logger.Info("using MediaPipe face mesh")
		} else {
			logger.Warn("MediaPipe not available, using mock detector", log.Err(err))
			a.detector = detector.NewMockDetector()
			a.source = SourceStatus{State: SourceMock, Error: err.Error()}
		}
	}

	if a.player == nil {
		a.player = audio.NewSamplePlayer(audio.PlayerConfig{
			Slots:   cfg.Audio.Slots,
			Command: cfg.Audio.Command,
			Args:    cfg.Audio.Args,
		})
	}

	sender := opts.OSC
	if sender == nil {
		sender = osc.Discard
		if cfg.OSC.Enabled {
			a.bridge = osc.NewBridge(cfg.OSC.Host, cfg.OSC.Port)
		}
	}
	if a.bridge == nil {
		a.bridge = osc.NewBridgeWithSender(sender)
	}

	a.orchestra = orchestra.New(a.bridge)
	a.host = orchestra.NewHost(a.orchestra, cfg.RTC.ICEServers)

	if a.store != nil {
		t, err := a.store.Thresholds().Load(cfg.Thresholds)
		if err != nil {
			logger.Warn("ignoring stored thresholds", log.Err(err))
		} else {
			a.thresholds = t
		}

		var oc orchestra.Config
		if err := a.store.Settings().GetJSON(store.KeyOrchestra, &oc); err == nil {
			a.orchestra.ApplyConfig(oc)
		} else if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("ignoring stored orchestra config", log.Err(err))
		}
	}

	patterns := gesture.BuiltinPatterns(a.thresholds)
	a.tracker = gesture.NewTracker(patterns, gesture.TrackerOptions{
		Smoothing: cfg.Smoothing.Enabled,
		Alpha:     cfg.Smoothing.Alpha,
	})
	a.selector = visual.NewSelector(visual.LayersFor(patterns))

	a.dispatcher.Register(trigger.KindSample, a.player)
	a.dispatcher.Register(trigger.KindOSC, a.bridge)
	a.dispatcher.Register(trigger.KindPlugin, plugin.NewActuator(a.plugins, plugin.NewExecutor(plugin.DefaultTimeout)))

	return a, nil
}

// Session returns the id of this run.
func (a *App) Session() string {
	return a.session
}

// Config returns the configuration the app was built with.
func (a *App) Config() config.Config {
	return a.cfg
}

// DiscoverPlugins scans the plugin directory.
func (a *App) DiscoverPlugins() error {
	return a.plugins.Discover()
}

// LoadBindings reads the enabled bindings from the store, loads the
// samples they reference and hands them to the dispatcher. Bindings that
// disappeared are stopped.
func (a *App) LoadBindings(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	rows, err := a.store.Bindings().ListEnabled()
	if err != nil {
		return err
	}

	bindings := make([]trigger.Binding, 0, len(rows))
	for _, r := range rows {
		b := trigger.Binding{
			ID:        r.ID,
			PatternID: r.PatternID,
			Kind:      trigger.Kind(r.Kind),
			Target:    r.Target,
			Action:    r.Action,
			Config:    r.Config,
		}
		if b.Kind == trigger.KindSample {
			if err := a.prepareSample(b); err != nil {
				a.logger.Warn("sample binding not ready", "binding", b.ID, log.Err(err))
			}
		}
		bindings = append(bindings, b)
	}

	a.pipeMu.Lock()
	defer a.pipeMu.Unlock()
	a.dispatcher.SetBindings(ctx, bindings)
	if err := a.dispatcher.Apply(ctx, a.tracker.Engine().Active()); err != nil {
		a.logger.Warn("applying bindings", log.Err(err))
	}
	a.logger.Info("bindings loaded", "count", len(bindings))
	return nil
}

func (a *App) prepareSample(b trigger.Binding) error {
	if len(b.Config) == 0 {
		return nil
	}
	var sc sampleConfig
	if err := json.Unmarshal(b.Config, &sc); err != nil {
		return fmt.Errorf("sample config: %w", err)
	}
	if sc.File == "" {
		return nil
	}

	var slot int
	if _, err := fmt.Sscanf(b.Target, "%d", &slot); err != nil {
		return fmt.Errorf("sample binding target %q: %w", b.Target, err)
	}
	path := sc.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(a.cfg.SamplesDir(), filepath.Base(path))
	}
	if _, err := os.Stat(path); err != nil {
		return err
	}
	if err := a.player.Load(slot, path); err != nil {
		return err
	}
	if sc.Volume != nil {
		return a.player.SetVolume(slot, *sc.Volume)
	}
	return nil
}

// Thresholds returns the tuning in use.
func (a *App) Thresholds() gesture.Thresholds {
	a.pipeMu.Lock()
	defer a.pipeMu.Unlock()
	return a.thresholds
}

// SetThresholds validates and applies a new tuning. Every pattern restarts
// inactive, so started bindings are stopped. The tuning is persisted when
// a store is configured.
func (a *App) SetThresholds(ctx context.Context, t gesture.Thresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if a.store != nil {
		if err := a.store.Thresholds().Save(t); err != nil {
			return fmt.Errorf("save thresholds: %w", err)
		}
	}

	patterns := gesture.BuiltinPatterns(t)

	a.pipeMu.Lock()
	defer a.pipeMu.Unlock()
	a.thresholds = t
	a.tracker.SetPatterns(patterns)
	a.selector.SetLayers(visual.LayersFor(patterns))
	if err := a.dispatcher.Apply(ctx, a.tracker.Engine().Active()); err != nil {
		a.logger.Warn("stopping bindings after retune", log.Err(err))
	}
	a.logger.Info("thresholds updated")
	return nil
}

// Patterns returns the patterns with their live state.
func (a *App) Patterns() []gesture.PatternState {
	a.pipeMu.Lock()
	defer a.pipeMu.Unlock()
	return a.tracker.Engine().States()
}

// Bindings returns the bindings the dispatcher runs.
func (a *App) Bindings() []trigger.Binding {
	return a.dispatcher.Bindings()
}

// SaveOrchestra persists the orchestra scene and roles.
func (a *App) SaveOrchestra() error {
	if a.store == nil {
		return nil
	}
	return a.store.Settings().SetJSON(store.KeyOrchestra, a.orchestra.Config())
}

// SetEnabled turns detection on or off. Turning it off tears the session
// down: started bindings stop and the smoothing baseline is dropped.
func (a *App) SetEnabled(ctx context.Context, enabled bool) {
	a.mu.Lock()
	was := a.enabled
	a.enabled = enabled
	if !enabled {
		a.source = SourceStatus{State: SourceDisabled}
	} else if a.source.State == SourceDisabled {
		a.source = SourceStatus{State: SourceIdle}
	}
	a.mu.Unlock()

	if was && !enabled {
		a.teardown(ctx)
	}
	a.logger.Info("detection toggled", "enabled", enabled)
}

// IsEnabled reports whether detection runs.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Subscribe registers fn for every published snapshot. fn runs on the
// pipeline goroutine and must not block. The returned function unsubscribes.
func (a *App) Subscribe(fn func(Snapshot)) func() {
	return a.listeners.add(fn)
}

// Latest returns the last published snapshot.
func (a *App) Latest() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest
}

// History returns the recent metrics.
func (a *App) History() []Sample {
	return a.history.Samples()
}

// Source returns the landmark source status.
func (a *App) Source() SourceStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.source
}

// Camera returns the capture device.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Detector returns the landmark source.
func (a *App) Detector() detector.Detector {
	return a.detector
}

// Player returns the sample player.
func (a *App) Player() *audio.SamplePlayer {
	return a.player
}

// Orchestra returns the player orchestra.
func (a *App) Orchestra() *orchestra.Orchestra {
	return a.orchestra
}

// RTC returns the WebRTC host for player phones.
func (a *App) RTC() *orchestra.Host {
	return a.host
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.plugins
}

// Analyzer returns the room loudness analyser.
func (a *App) Analyzer() *audio.ReactiveAnalyzer {
	return a.analyzer
}

// WatchFrames asks the pipeline to keep the latest JPEG frame around until
// the returned function is called.
func (a *App) WatchFrames() func() {
	return a.frames.watch()
}

// LatestJPEG returns the last encoded frame and its sequence number.
func (a *App) LatestJPEG() ([]byte, uint64) {
	return a.frames.latest()
}
