package gesture

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func builtins() []Pattern {
	return BuiltinPatterns(DefaultThresholds())
}

func TestEvaluate(t *testing.T) {
	t.Run("nod activates on the frame pitch crosses activation", func(t *testing.T) {
		next := Evaluate(Metrics{Pitch: 0.09}, ActiveState{}, builtins())
		assert.True(t, next[PatternNod])
		assert.False(t, next[PatternTurn])
		assert.False(t, next[PatternSmile])
	})

	t.Run("nod deactivates below deactivation", func(t *testing.T) {
		prev := ActiveState{PatternNod: true}
		next := Evaluate(Metrics{Pitch: 0.03}, prev, builtins())
		assert.False(t, next[PatternNod])
	})

	t.Run("active nod holds inside the dead zone", func(t *testing.T) {
		state := Evaluate(Metrics{Pitch: 0.09}, ActiveState{}, builtins())
		require.True(t, state[PatternNod])

		for i := 0; i < 50; i++ {
			pitch := 0.06
			if i%2 == 1 {
				pitch = 0.07
			}
			state = Evaluate(Metrics{Pitch: pitch}, state, builtins())
			require.True(t, state[PatternNod], "frame %d pitch %.2f", i, pitch)
		}
	})

	t.Run("inactive nod stays off inside the dead zone", func(t *testing.T) {
		state := ActiveState{}
		for _, pitch := range []float64{0.06, 0.07, 0.079} {
			state = Evaluate(Metrics{Pitch: pitch}, state, builtins())
			assert.False(t, state[PatternNod])
		}
	})

	t.Run("active pattern ignores activation predicate until deactivated", func(t *testing.T) {
		// Activation fails (narrow mouth) but deactivation does not hold either.
		prev := ActiveState{PatternSmile: true}
		next := Evaluate(Metrics{MouthWidth: 0.85, MouthOpen: 0.5}, prev, builtins())
		assert.True(t, next[PatternSmile])
	})

	t.Run("turn uses absolute yaw", func(t *testing.T) {
		assert.True(t, Evaluate(Metrics{Yaw: -0.1}, nil, builtins())[PatternTurn])
		assert.True(t, Evaluate(Metrics{Yaw: 0.1}, nil, builtins())[PatternTurn])

		prev := ActiveState{PatternTurn: true}
		assert.True(t, Evaluate(Metrics{Yaw: -0.06}, prev, builtins())[PatternTurn])
		assert.False(t, Evaluate(Metrics{Yaw: -0.04}, prev, builtins())[PatternTurn])
	})

	t.Run("smile deactivates on either condition", func(t *testing.T) {
		prev := ActiveState{PatternSmile: true}
		assert.False(t, Evaluate(Metrics{MouthWidth: 0.8, MouthOpen: 0.1}, prev, builtins())[PatternSmile])
		assert.False(t, Evaluate(Metrics{MouthWidth: 0.95, MouthOpen: 0.6}, prev, builtins())[PatternSmile])
	})

	t.Run("smile needs wide and closed to activate", func(t *testing.T) {
		assert.True(t, Evaluate(Metrics{MouthWidth: 0.95, MouthOpen: 0.1}, nil, builtins())[PatternSmile])
		assert.False(t, Evaluate(Metrics{MouthWidth: 0.95, MouthOpen: 0.5}, nil, builtins())[PatternSmile])
	})

	t.Run("level-triggered pattern follows its check", func(t *testing.T) {
		patterns := []Pattern{LevelTriggered("look", func(m Metrics) bool { return math.Abs(m.Yaw) > 0.08 })}

		state := ActiveState{}
		for _, tc := range []struct {
			yaw  float64
			want bool
		}{
			{0.09, true}, {0.07, false}, {0.09, true}, {0.06, false}, {-0.2, true}, {0, false},
		} {
			state = Evaluate(Metrics{Yaw: tc.yaw}, state, patterns)
			assert.Equal(t, tc.want, state["look"], "yaw %.2f", tc.yaw)
		}
	})

	t.Run("output has one entry per pattern", func(t *testing.T) {
		next := Evaluate(Metrics{}, ActiveState{"removed": true}, builtins())
		want := ActiveState{PatternNod: false, PatternTurn: false, PatternSmile: false}
		if diff := cmp.Diff(want, next); diff != "" {
			t.Errorf("state mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("does not mutate previous", func(t *testing.T) {
		prev := ActiveState{PatternNod: true}
		Evaluate(Metrics{Pitch: 0}, prev, builtins())
		assert.True(t, prev[PatternNod])
	})
}

func TestEngine(t *testing.T) {
	t.Run("starts all inactive", func(t *testing.T) {
		e := NewEngine(builtins())
		want := ActiveState{PatternNod: false, PatternTurn: false, PatternSmile: false}
		if diff := cmp.Diff(want, e.Active()); diff != "" {
			t.Errorf("state mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("reports transitions in declaration order", func(t *testing.T) {
		e := NewEngine(builtins())

		tr := e.Update(Metrics{Pitch: 0.1, Yaw: 0.1, MouthWidth: 1, MouthOpen: 0.1})
		assert.Equal(t, []string{PatternNod, PatternTurn, PatternSmile}, tr.Started)
		assert.Empty(t, tr.Stopped)

		tr = e.Update(Metrics{Pitch: 0.1, Yaw: 0.1, MouthWidth: 1, MouthOpen: 0.1})
		assert.True(t, tr.Empty())

		tr = e.Update(Metrics{Pitch: 0.0, Yaw: 0.1, MouthWidth: 0.5, MouthOpen: 0.1})
		assert.Equal(t, []string{PatternNod, PatternSmile}, tr.Stopped)
	})

	t.Run("face lost forces all inactive", func(t *testing.T) {
		e := NewEngine(builtins())
		e.Update(Metrics{Pitch: 0.1, Yaw: 0.1})

		tr := e.FaceLost()
		assert.ElementsMatch(t, []string{PatternNod, PatternTurn}, tr.Stopped)
		for id, active := range e.Active() {
			assert.False(t, active, id)
		}

		assert.True(t, e.FaceLost().Empty(), "second reset changes nothing")
	})

	t.Run("set patterns resets the map", func(t *testing.T) {
		e := NewEngine(builtins())
		e.Update(Metrics{Pitch: 0.1})
		require.True(t, e.IsActive(PatternNod))

		e.SetPatterns([]Pattern{LevelTriggered("roll", func(m Metrics) bool { return m.Roll > 0.1 })})
		if diff := cmp.Diff(ActiveState{"roll": false}, e.Active()); diff != "" {
			t.Errorf("state mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("active returns a copy", func(t *testing.T) {
		e := NewEngine(builtins())
		snapshot := e.Active()
		snapshot[PatternNod] = true
		assert.False(t, e.IsActive(PatternNod))
	})

	t.Run("states carry display metadata", func(t *testing.T) {
		e := NewEngine(builtins())
		e.Update(Metrics{Yaw: 0.2})

		states := e.States()
		require.Len(t, states, 3)
		assert.Equal(t, "Rotation", states[1].Title)
		assert.Equal(t, "#64d4ff", states[1].Color)
		assert.True(t, states[1].Active)
		assert.False(t, states[0].Active)
	})
}

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())

	bad := DefaultThresholds()
	bad.Nod = Band{Activate: 0.05, Deactivate: 0.08}
	assert.ErrorContains(t, bad.Validate(), "nod")

	bad = DefaultThresholds()
	bad.Smile.OpenActivate = 0.6
	assert.ErrorContains(t, bad.Validate(), "smile")
}

func TestBuiltinPatternsUseThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.Nod.Activate = 0.2
	th.Nod.Deactivate = 0.1

	next := Evaluate(Metrics{Pitch: 0.15}, nil, BuiltinPatterns(th))
	assert.False(t, next[PatternNod])

	next = Evaluate(Metrics{Pitch: 0.15}, ActiveState{PatternNod: true}, BuiltinPatterns(th))
	assert.True(t, next[PatternNod])
}
