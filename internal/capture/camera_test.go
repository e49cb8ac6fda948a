package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestNewCameraWithOptions_Defaults(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantFPS int
	}{
		{name: "zero options", opts: Options{}, wantFPS: DefaultFPS},
		{name: "explicit rate", opts: Options{DeviceID: 1, FPS: 30}, wantFPS: 30},
		{name: "negative rate", opts: Options{FPS: -2}, wantFPS: DefaultFPS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewCameraWithOptions(tt.opts)
			assert.Equal(t, tt.wantFPS, cam.FPS())
			assert.False(t, cam.IsOpen())
		})
	}
}

func TestCamera_SetFPSIgnoresNonPositive(t *testing.T) {
	cam := NewCamera(0)

	cam.SetFPS(12)
	assert.Equal(t, 12, cam.FPS())
	cam.SetFPS(0)
	cam.SetFPS(-1)
	assert.Equal(t, 12, cam.FPS())
}

func TestCamera_ReadBeforeOpen(t *testing.T) {
	cam := NewCamera(0)

	frame, err := cam.ReadFrame()
	assert.Nil(t, frame)
	assert.ErrorIs(t, err, ErrCameraNotOpen)
	assert.NoError(t, cam.Close())
}

func TestMockCamera_Playback(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	a := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3)
	defer a.Close()
	b := gocv.NewMatWithSize(8, 8, gocv.MatTypeCV8UC3)
	defer b.Close()

	cam := NewMockCamera([]*gocv.Mat{&a, &b}, false)
	_, err := cam.ReadFrame()
	assert.ErrorIs(t, err, ErrCameraNotOpen)

	require.NoError(t, cam.Open())
	for _, wantRows := range []int{4, 8} {
		f, err := cam.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, wantRows, f.Rows())
		f.Close()
	}
	_, err = cam.ReadFrame()
	assert.ErrorIs(t, err, ErrNoMoreFrames)
	assert.Equal(t, 2, cam.Reads())
}

func TestMockCamera_Loops(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	a := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3)
	defer a.Close()

	cam := NewMockCamera([]*gocv.Mat{&a}, true)
	require.NoError(t, cam.Open())
	for i := 0; i < 3; i++ {
		f, err := cam.ReadFrame()
		require.NoError(t, err)
		f.Close()
	}
	assert.Equal(t, 3, cam.Reads())
}

func TestEncodeJPEG(t *testing.T) {
	_, err := EncodeJPEG(nil)
	assert.ErrorIs(t, err, ErrEmptyFrame)

	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	data, err := EncodeJPEG(&frame)
	require.NoError(t, err)
	require.Greater(t, len(data), 2)
	assert.Equal(t, []byte{0xFF, 0xD8}, data[:2])
}
