package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/hypnosonore/internal/audio"
	"github.com/ayusman/hypnosonore/internal/capture"
	"github.com/ayusman/hypnosonore/internal/detector"
	"github.com/ayusman/hypnosonore/internal/log"
)

// sourceErrorLimit is how many landmark source errors in a row end the
// session as if the face had left the frame.
const sourceErrorLimit = 10

// Start opens the camera and runs the frame loop until Stop or ctx ends.
// Starting a running app is a no-op.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return nil
	}
	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(a.cfg.Camera.IdleFPS)

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.runPipeline(ctx, a.done)

	if len(a.cfg.Audio.MonitorCommand) > 0 {
		go func() {
			if err := audio.Monitor(ctx, a.cfg.Audio.MonitorCommand, a.analyzer); err != nil {
				a.logger.Warn("audio monitor stopped", log.Err(err))
			}
		}()
	}

	a.logger.Info("pipeline started", "session", a.session)
	return nil
}

// Stop halts the frame loop, tears the session down and releases the
// camera, the landmark source and the player.
func (a *App) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	ctx, release := context.WithTimeout(context.Background(), 5*time.Second)
	defer release()
	a.teardown(ctx)

	if err := a.camera.Close(); err != nil {
		a.logger.Warn("closing camera", log.Err(err))
	}
	a.motion.Close()
	if err := a.detector.Close(); err != nil {
		a.logger.Warn("closing detector", log.Err(err))
	}
	if err := a.player.Dispose(); err != nil {
		a.logger.Warn("disposing player", log.Err(err))
	}
	if err := a.host.Close(); err != nil {
		a.logger.Warn("closing rtc host", log.Err(err))
	}
	a.logger.Info("pipeline stopped")
}

// teardown stops every started binding once and resets the tracker.
func (a *App) teardown(ctx context.Context) {
	a.pipeMu.Lock()
	defer a.pipeMu.Unlock()

	a.dispatcher.StopAll(ctx)
	a.tracker.Teardown()
	a.selector.Reset()
}

// runPipeline reads frames in arrival order on a single goroutine.
// Motion only changes the rate; every frame goes through detection.
func (a *App) runPipeline(ctx context.Context, done chan struct{}) {
	defer close(done)

	fps := a.cfg.Camera.IdleFPS
	ticker := time.NewTicker(capture.Interval(fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !a.IsEnabled() {
			continue
		}

		next, ok := a.step(ctx, fps)
		if !ok || next == fps {
			continue
		}
		fps = next
		a.camera.SetFPS(fps)
		ticker.Reset(capture.Interval(fps))
		a.logger.Debug("capture rate changed", "fps", fps)
	}
}

// step handles one camera frame and returns the rate for the next one.
func (a *App) step(ctx context.Context, fps int) (int, bool) {
	frame, err := a.camera.ReadFrame()
	if err != nil {
		if !errors.Is(err, capture.ErrCameraNotOpen) {
			a.logger.Debug("reading frame", log.Err(err))
		}
		return fps, false
	}
	defer frame.Close()

	moving, _ := a.motion.Detect(frame)
	a.frames.offer(frame)

	faces, err := a.detector.Detect(frame)
	if err != nil {
		a.sourceFailed(ctx, err, fps)
		return a.pacer.Observe(moving, false), true
	}
	a.sourceErrors = 0
	a.markSourceReady()

	snap := a.process(ctx, faces, fps)
	return a.pacer.Observe(moving, snap.Face), true
}

// ProcessFaces runs one detection result through the session and publishes
// the snapshot. It is what the frame loop does after detection, exposed
// for callers that bring their own landmark source.
func (a *App) ProcessFaces(ctx context.Context, faces []detector.FaceLandmarks) Snapshot {
	return a.process(ctx, faces, 0)
}

// sourceFailed records a landmark source error. After sourceErrorLimit
// consecutive errors the face counts as lost, once.
func (a *App) sourceFailed(ctx context.Context, err error, fps int) {
	a.setSource(SourceStatus{State: SourceError, Error: err.Error()})
	a.sourceErrors++
	if a.sourceErrors != sourceErrorLimit {
		if a.sourceErrors == 1 {
			a.logger.Warn("landmark source failed", log.Err(err))
		}
		return
	}
	a.logger.Warn("landmark source failing, treating face as lost", "consecutive", a.sourceErrors, log.Err(err))
	a.process(ctx, nil, fps)
}

func (a *App) process(ctx context.Context, faces []detector.FaceLandmarks, fps int) Snapshot {
	a.pipeMu.Lock()
	if !a.IsEnabled() {
		a.pipeMu.Unlock()
		return a.Latest()
	}
	fr := a.tracker.Process(faces)
	if err := a.dispatcher.Apply(ctx, fr.Active); err != nil {
		a.logger.Warn("trigger dispatch", log.Err(err))
	}

	level := a.analyzer.Tick()
	scene := a.selector.Step(fr.Active, level)
	var volume float64
	var yawning bool
	if fr.Face {
		volume, yawning = a.follower.Step(fr.Metrics.MouthOpen)
	} else {
		volume = a.follower.Lost()
	}

	a.seq++
	snap := Snapshot{
		Seq:        a.seq,
		Session:    a.session,
		Time:       time.Now(),
		Face:       fr.Face,
		Raw:        fr.Raw,
		Metrics:    fr.Metrics,
		Active:     fr.Active,
		Patterns:   fr.States,
		Transition: fr.Transition,
		Scene:      scene,
		Volume:     volume,
		Yawning:    yawning,
		FPS:        fps,
		Source:     a.Source(),
	}
	a.pipeMu.Unlock()

	a.publishOSC(snap)

	a.mu.Lock()
	a.latest = snap
	a.mu.Unlock()

	a.history.Add(Sample{Time: snap.Time, Face: snap.Face, Metrics: snap.Metrics})
	a.listeners.notify(snap)
	return snap
}

func (a *App) publishOSC(s Snapshot) {
	if !a.cfg.OSC.Enabled {
		return
	}
	if a.cfg.OSC.PublishMetrics && s.Face {
		if err := a.bridge.PublishMetrics(s.Metrics); err != nil {
			a.logger.Debug("publishing metrics", log.Err(err))
		}
		if err := a.bridge.SendFloat("/face/volume", s.Volume); err != nil {
			a.logger.Debug("publishing volume", log.Err(err))
		}
	}
	if !s.Transition.Empty() {
		if err := a.bridge.PublishStates(s.Active); err != nil {
			a.logger.Debug("publishing pattern states", log.Err(err))
		}
	}
}

func (a *App) setSource(s SourceStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.source = s
}

func (a *App) markSourceReady() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.source.State == SourceIdle || a.source.State == SourceError {
		a.source = SourceStatus{State: SourceReady}
	}
}

// frameBuffer keeps the latest JPEG frame while someone watches the stream.
type frameBuffer struct {
	mu       sync.Mutex
	watchers int
	jpeg     []byte
	seq      uint64
}

func (f *frameBuffer) watch() func() {
	f.mu.Lock()
	f.watchers++
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.watchers--
			if f.watchers == 0 {
				f.jpeg = nil
			}
			f.mu.Unlock()
		})
	}
}

func (f *frameBuffer) offer(frame *gocv.Mat) {
	f.mu.Lock()
	watched := f.watchers > 0
	f.mu.Unlock()
	if !watched {
		return
	}

	data, err := capture.EncodeJPEG(frame)
	if err != nil {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.jpeg = data
	f.seq++
}

func (f *frameBuffer) latest() ([]byte, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jpeg, f.seq
}
