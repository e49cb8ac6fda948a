package gesture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/hypnosonore/internal/detector"
)

func faces(f ...detector.FaceLandmarks) []detector.FaceLandmarks {
	return f
}

func TestTracker_Process(t *testing.T) {
	t.Run("unsmoothed nod activates immediately", func(t *testing.T) {
		tr := NewTracker(builtins(), TrackerOptions{})

		frame := tr.Process(faces(detector.NoddingFace()))
		assert.True(t, frame.Face)
		assert.True(t, frame.Active[PatternNod])
		assert.Equal(t, []string{PatternNod}, frame.Transition.Started)
		assert.Equal(t, frame.Raw, frame.Metrics)
	})

	t.Run("smoothed release takes several frames", func(t *testing.T) {
		tr := NewTracker(builtins(), TrackerOptions{Smoothing: true})

		// First sample passes through unsmoothed: pitch 0.12.
		require.True(t, tr.Process(faces(detector.NoddingFace())).Active[PatternNod])

		// 0.12 * 0.82^n stays above 0.05 for n <= 4.
		for i := 1; i <= 4; i++ {
			frame := tr.Process(faces(detector.NeutralFace()))
			require.True(t, frame.Active[PatternNod], "neutral frame %d", i)
		}
		frame := tr.Process(faces(detector.NeutralFace()))
		assert.False(t, frame.Active[PatternNod])
		assert.Equal(t, []string{PatternNod}, frame.Transition.Stopped)
	})

	t.Run("empty result resets states and smoothing", func(t *testing.T) {
		tr := NewTracker(builtins(), TrackerOptions{Smoothing: true})
		tr.Process(faces(detector.TurnedFace()))
		tr.Process(faces(detector.TurnedFace()))

		frame := tr.Process(nil)
		assert.False(t, frame.Face)
		assert.Equal(t, []string{PatternTurn}, frame.Transition.Stopped)
		for id, active := range frame.Active {
			assert.False(t, active, id)
		}

		// A new face starts from its own metrics, not the stale baseline.
		frame = tr.Process(faces(detector.NeutralFace()))
		assert.Equal(t, frame.Raw, frame.Metrics)
	})

	t.Run("only the first face is used", func(t *testing.T) {
		tr := NewTracker(builtins(), TrackerOptions{})
		frame := tr.Process(faces(detector.SmilingFace(), detector.NoddingFace()))
		assert.True(t, frame.Active[PatternSmile])
		assert.False(t, frame.Active[PatternNod])
	})

	t.Run("frame lists pattern states", func(t *testing.T) {
		tr := NewTracker(builtins(), TrackerOptions{})
		frame := tr.Process(faces(detector.SmilingFace()))
		require.Len(t, frame.States, 3)
		assert.Equal(t, PatternSmile, frame.States[2].ID)
		assert.True(t, frame.States[2].Active)
	})
}

func TestTracker_Teardown(t *testing.T) {
	tr := NewTracker(builtins(), TrackerOptions{Smoothing: true})
	tr.Process(faces(detector.SmilingFace()))

	stopped := tr.Teardown()
	assert.Equal(t, []string{PatternSmile}, stopped.Stopped)
	assert.True(t, tr.Teardown().Empty())
	assert.False(t, tr.Engine().IsActive(PatternSmile))
}

func TestTracker_SetPatterns(t *testing.T) {
	tr := NewTracker(builtins(), TrackerOptions{})
	tr.Process(faces(detector.NoddingFace()))

	th := DefaultThresholds()
	th.Nod.Activate = 0.5
	stopped := tr.SetPatterns(BuiltinPatterns(th))
	assert.Equal(t, []string{PatternNod}, stopped.Stopped)

	frame := tr.Process(faces(detector.NoddingFace()))
	assert.False(t, frame.Active[PatternNod])
}
