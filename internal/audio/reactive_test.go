package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freqBin int, amp float64) []float64 {
	out := make([]float64, FFTSize)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*float64(freqBin)*float64(i)/FFTSize)
	}
	return out
}

func TestReactiveAnalyzer(t *testing.T) {
	t.Run("silence has no energy", func(t *testing.T) {
		a := NewReactiveAnalyzer()
		a.Feed(make([]float64, FFTSize))
		assert.Zero(t, a.Energy())
		assert.Zero(t, a.Tick())
	})

	t.Run("tone raises energy", func(t *testing.T) {
		a := NewReactiveAnalyzer()
		a.Feed(sine(40, 0.8))
		assert.Greater(t, a.Energy(), 0.0)
		assert.LessOrEqual(t, a.Energy(), 1.0)
	})

	t.Run("louder tone has more energy", func(t *testing.T) {
		quiet, loud := NewReactiveAnalyzer(), NewReactiveAnalyzer()
		quiet.Feed(sine(40, 0.001))
		loud.Feed(sine(40, 0.9))
		assert.Greater(t, loud.Energy(), quiet.Energy())
	})

	t.Run("level eases toward scaled energy", func(t *testing.T) {
		a := NewReactiveAnalyzer()
		a.Feed(sine(40, 0.8))
		e := a.Energy()

		level := a.Tick()
		assert.InDelta(t, e*energyGain*attackRate, level, 1e-12)
	})

	t.Run("level decays without audio", func(t *testing.T) {
		a := NewReactiveAnalyzer()
		a.Feed(sine(40, 0.8))
		start := a.Tick()

		next := a.Tick()
		assert.InDelta(t, start*(1-releaseRate), next, 1e-12)
		assert.Equal(t, next, a.Level())
	})

	t.Run("short and long blocks are accepted", func(t *testing.T) {
		a := NewReactiveAnalyzer()
		a.Feed(sine(10, 0.5)[:100])
		a.Feed(append(sine(10, 0.5), sine(10, 0.5)...))
		assert.Greater(t, a.Energy(), 0.0)
	})
}

func TestReadPCM(t *testing.T) {
	var buf bytes.Buffer
	for _, s := range sine(40, 0.5) {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, int16(s*32767)))
	}
	// A trailing partial block is ignored.
	buf.Write([]byte{1, 2, 3})

	a := NewReactiveAnalyzer()
	require.NoError(t, ReadPCM(context.Background(), &buf, a))
	assert.Greater(t, a.Energy(), 0.0)
}

func TestMonitorRejectsEmptyCommand(t *testing.T) {
	assert.Error(t, Monitor(context.Background(), nil, NewReactiveAnalyzer()))
}
