package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpenness(t *testing.T) {
	assert.Zero(t, Openness(0))
	assert.Zero(t, Openness(OpenFloor))
	assert.InDelta(t, 0.5, Openness(OpenFloor+OpenRange/2), 1e-12)
	assert.Equal(t, 1.0, Openness(1))
}

func TestTargetVolume(t *testing.T) {
	assert.Equal(t, quietVolume, TargetVolume(0))
	assert.Equal(t, quietVolume, TargetVolume(YawnThreshold))
	assert.InDelta(t, 1.0, TargetVolume(1), 1e-12)
	assert.InDelta(t, yawnVolumeLo, TargetVolume(YawnThreshold+1e-12), 1e-9)
}

func TestVolumeFollower(t *testing.T) {
	f := NewVolumeFollower()
	assert.Equal(t, quietVolume, f.Volume())

	v, yawning := f.Step(1)
	assert.True(t, yawning)
	assert.InDelta(t, quietVolume+(1-quietVolume)*volumeRate, v, 1e-12)

	for i := 0; i < 100; i++ {
		v, _ = f.Step(1)
	}
	assert.InDelta(t, 1.0, v, 1e-3)

	_, yawning = f.Step(0.1)
	assert.False(t, yawning)
}

func TestVolumeFollower_Lost(t *testing.T) {
	f := NewVolumeFollower()

	v := f.Lost()
	assert.InDelta(t, quietVolume+(lostVolume-quietVolume)*volumeRate, v, 1e-12)

	for i := 0; i < 200; i++ {
		v = f.Lost()
	}
	assert.InDelta(t, lostVolume, v, 1e-6)

	v, _ = f.Step(0)
	assert.Greater(t, v, lostVolume, "a returning face eases back toward the quiet volume")
}
