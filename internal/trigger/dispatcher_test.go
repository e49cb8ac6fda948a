package trigger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/hypnosonore/internal/log"
)

func newTestDispatcher(t *testing.T, bindings ...Binding) (*Dispatcher, *Recorder) {
	t.Helper()
	rec := &Recorder{}
	d := NewDispatcher(log.Discard())
	d.Register(KindSample, rec)
	d.SetBindings(context.Background(), bindings)
	return d, rec
}

func sample(pattern, slot string) Binding {
	return Binding{ID: pattern + "-" + slot, PatternID: pattern, Kind: KindSample, Target: slot}
}

func TestDispatcher_Apply(t *testing.T) {
	ctx := context.Background()

	t.Run("repeated identical states call start once", func(t *testing.T) {
		d, rec := newTestDispatcher(t, sample("nod", "0"))

		for i := 0; i < 10; i++ {
			require.NoError(t, d.Apply(ctx, map[string]bool{"nod": true}))
		}
		assert.Equal(t, 1, rec.Count("start", "nod"))
		assert.Equal(t, 0, rec.Count("stop", "nod"))
		assert.True(t, d.Started("nod"))
	})

	t.Run("edges alternate start and stop", func(t *testing.T) {
		d, rec := newTestDispatcher(t, sample("smile", "2"))

		for _, active := range []bool{false, true, true, false, false, true, false} {
			require.NoError(t, d.Apply(ctx, map[string]bool{"smile": active}))
		}

		var ops []string
		for _, c := range rec.Calls() {
			ops = append(ops, c.Op)
		}
		if diff := cmp.Diff([]string{"start", "stop", "start", "stop"}, ops); diff != "" {
			t.Errorf("ops mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("missing pattern counts as inactive", func(t *testing.T) {
		d, rec := newTestDispatcher(t, sample("turn", "1"))
		require.NoError(t, d.Apply(ctx, map[string]bool{"turn": true}))
		require.NoError(t, d.Apply(ctx, map[string]bool{}))
		assert.Equal(t, 1, rec.Count("stop", "turn"))
	})

	t.Run("failing start is attempted once per edge", func(t *testing.T) {
		d, rec := newTestDispatcher(t, sample("nod", "0"))
		rec.Err = errors.New("slot empty")

		assert.Error(t, d.Apply(ctx, map[string]bool{"nod": true}))
		for i := 0; i < 30; i++ {
			require.NoError(t, d.Apply(ctx, map[string]bool{"nod": true}))
		}
		assert.Equal(t, 1, rec.Count("start", "nod"))
		assert.False(t, d.Started("nod"))

		require.NoError(t, d.Apply(ctx, map[string]bool{"nod": false}))
		assert.Equal(t, 0, rec.Count("stop", "nod"))

		rec.Err = nil
		require.NoError(t, d.Apply(ctx, map[string]bool{"nod": true}))
		assert.True(t, d.Started("nod"))
		assert.Equal(t, 2, rec.Count("start", "nod"))
	})

	t.Run("replacing bindings retries a failed start", func(t *testing.T) {
		b := sample("smile", "1")
		d, rec := newTestDispatcher(t, b)
		rec.Err = errors.New("slot empty")

		assert.Error(t, d.Apply(ctx, map[string]bool{"smile": true}))
		rec.Err = nil
		d.SetBindings(ctx, []Binding{b})

		require.NoError(t, d.Apply(ctx, map[string]bool{"smile": true}))
		assert.True(t, d.Started("smile"))
		assert.Equal(t, 2, rec.Count("start", "smile"))
	})

	t.Run("unregistered kind reports an error", func(t *testing.T) {
		d, _ := newTestDispatcher(t, Binding{PatternID: "nod", Kind: KindOSC, Target: "/fx/1"})
		err := d.Apply(ctx, map[string]bool{"nod": true})
		assert.ErrorIs(t, err, ErrNoActuator)
	})

	t.Run("several bindings per pattern", func(t *testing.T) {
		d, rec := newTestDispatcher(t, sample("nod", "0"), sample("nod", "1"))
		require.NoError(t, d.Apply(ctx, map[string]bool{"nod": true}))
		assert.Equal(t, 2, rec.Count("start", "nod"))
	})
}

func TestDispatcher_StopAll(t *testing.T) {
	ctx := context.Background()

	t.Run("stops each started binding once", func(t *testing.T) {
		d, rec := newTestDispatcher(t, sample("nod", "0"), sample("turn", "1"), sample("smile", "2"))
		require.NoError(t, d.Apply(ctx, map[string]bool{"nod": true, "smile": true}))

		d.StopAll(ctx)
		d.StopAll(ctx)

		assert.Equal(t, 1, rec.Count("stop", "nod"))
		assert.Equal(t, 1, rec.Count("stop", "smile"))
		assert.Equal(t, 0, rec.Count("stop", "turn"))
		assert.False(t, d.Started("nod"))
	})

	t.Run("failing stop still clears state", func(t *testing.T) {
		d, rec := newTestDispatcher(t, sample("nod", "0"))
		require.NoError(t, d.Apply(ctx, map[string]bool{"nod": true}))

		rec.Err = errors.New("gone")
		d.StopAll(ctx)
		assert.False(t, d.Started("nod"))
	})
}

func TestDispatcher_SetBindings(t *testing.T) {
	ctx := context.Background()
	d, rec := newTestDispatcher(t, sample("nod", "0"), sample("turn", "1"))
	require.NoError(t, d.Apply(ctx, map[string]bool{"nod": true, "turn": true}))

	d.SetBindings(ctx, []Binding{sample("turn", "1")})

	assert.Equal(t, 1, rec.Count("stop", "nod"))
	assert.Equal(t, 0, rec.Count("stop", "turn"), "kept binding stays started")
	assert.True(t, d.Started("turn"))
	assert.Len(t, d.Bindings(), 1)
}

func TestBindingKey(t *testing.T) {
	assert.Equal(t, "abc", Binding{ID: "abc", PatternID: "nod"}.Key())
	assert.Equal(t, "nod/osc//fx", Binding{PatternID: "nod", Kind: KindOSC, Target: "/fx"}.Key())
}

func TestActuatorFuncs(t *testing.T) {
	var started bool
	a := ActuatorFuncs{OnStart: func(context.Context, Binding) error { started = true; return nil }}
	require.NoError(t, a.Start(context.Background(), Binding{}))
	require.NoError(t, a.Stop(context.Background(), Binding{}))
	assert.True(t, started)
}
