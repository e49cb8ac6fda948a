package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/hypnosonore/internal/trigger"
)

type fakeProc struct {
	stopped bool
}

func (f *fakeProc) Stop() error {
	f.stopped = true
	return nil
}

type fakeLauncher struct {
	mu       sync.Mutex
	launched []string
	volumes  []float64
	procs    []*fakeProc
	err      error
}

func (l *fakeLauncher) launch(path string, volume float64) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	p := &fakeProc{}
	l.launched = append(l.launched, path)
	l.volumes = append(l.volumes, volume)
	l.procs = append(l.procs, p)
	return p, nil
}

func writeSample(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))
	return path
}

func TestSamplePlayer(t *testing.T) {
	t.Run("start is idempotent", func(t *testing.T) {
		l := &fakeLauncher{}
		p := NewSamplePlayerWithLauncher(3, l.launch)
		require.NoError(t, p.Load(0, writeSample(t, "nod.wav")))

		require.NoError(t, p.StartSlot(0))
		require.NoError(t, p.StartSlot(0))
		assert.Len(t, l.launched, 1)
		assert.True(t, p.Playing(0))
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		l := &fakeLauncher{}
		p := NewSamplePlayerWithLauncher(3, l.launch)
		require.NoError(t, p.Load(1, writeSample(t, "turn.wav")))

		require.NoError(t, p.StopSlot(1))
		require.NoError(t, p.StartSlot(1))
		require.NoError(t, p.StopSlot(1))
		require.NoError(t, p.StopSlot(1))
		assert.True(t, l.procs[0].stopped)
		assert.False(t, p.Playing(1))
	})

	t.Run("empty slot cannot start", func(t *testing.T) {
		p := NewSamplePlayerWithLauncher(3, (&fakeLauncher{}).launch)
		assert.ErrorIs(t, p.StartSlot(2), ErrSlotEmpty)
	})

	t.Run("out of range slot", func(t *testing.T) {
		p := NewSamplePlayerWithLauncher(3, (&fakeLauncher{}).launch)
		assert.ErrorIs(t, p.StartSlot(3), ErrBadSlot)
		assert.ErrorIs(t, p.StopSlot(-1), ErrBadSlot)
		assert.Error(t, p.Load(5, writeSample(t, "x.wav")))
	})

	t.Run("missing file is rejected", func(t *testing.T) {
		p := NewSamplePlayerWithLauncher(3, (&fakeLauncher{}).launch)
		assert.Error(t, p.Load(0, filepath.Join(t.TempDir(), "missing.wav")))
	})

	t.Run("reloading a playing slot restarts it", func(t *testing.T) {
		l := &fakeLauncher{}
		p := NewSamplePlayerWithLauncher(3, l.launch)
		first, second := writeSample(t, "a.wav"), writeSample(t, "b.wav")
		require.NoError(t, p.Load(0, first))
		require.NoError(t, p.StartSlot(0))
		require.NoError(t, p.Load(0, second))

		assert.Equal(t, []string{first, second}, l.launched)
		assert.True(t, l.procs[0].stopped)
		assert.Equal(t, second, p.Sample(0))
	})

	t.Run("volume applies on start", func(t *testing.T) {
		l := &fakeLauncher{}
		p := NewSamplePlayerWithLauncher(3, l.launch)
		require.NoError(t, p.Load(0, writeSample(t, "a.wav")))
		require.NoError(t, p.SetVolume(0, 1.7))
		require.NoError(t, p.StartSlot(0))
		assert.Equal(t, []float64{1}, l.volumes)
	})

	t.Run("launch failure leaves slot stopped", func(t *testing.T) {
		l := &fakeLauncher{err: errors.New("no audio device")}
		p := NewSamplePlayerWithLauncher(3, l.launch)
		require.NoError(t, p.Load(0, writeSample(t, "a.wav")))
		assert.Error(t, p.StartSlot(0))
		assert.False(t, p.Playing(0))
	})

	t.Run("dispose stops everything", func(t *testing.T) {
		l := &fakeLauncher{}
		p := NewSamplePlayerWithLauncher(3, l.launch)
		for i := 0; i < 3; i++ {
			require.NoError(t, p.Load(i, writeSample(t, "s.wav")))
			require.NoError(t, p.StartSlot(i))
		}
		require.NoError(t, p.Dispose())
		for _, proc := range l.procs {
			assert.True(t, proc.stopped)
		}
		assert.ErrorIs(t, p.StartSlot(0), ErrDisposed)
	})
}

func TestSamplePlayerActuator(t *testing.T) {
	l := &fakeLauncher{}
	p := NewSamplePlayerWithLauncher(3, l.launch)
	require.NoError(t, p.Load(2, writeSample(t, "smile.wav")))

	var a trigger.Actuator = p
	b := trigger.Binding{PatternID: "smile", Kind: trigger.KindSample, Target: "2"}
	require.NoError(t, a.Start(context.Background(), b))
	assert.True(t, p.Playing(2))
	require.NoError(t, a.Stop(context.Background(), b))
	assert.False(t, p.Playing(2))

	assert.Error(t, a.Start(context.Background(), trigger.Binding{Target: "two"}))
}

func TestEnsure(t *testing.T) {
	p := NewSamplePlayer(PlayerConfig{Command: "definitely-not-a-player-binary"})
	err := p.Ensure()
	assert.Error(t, err)
	assert.Equal(t, err, p.Ensure(), "result is cached")
}
