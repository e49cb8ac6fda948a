package log

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestErr(t *testing.T) {
	t.Run("nil error yields empty attr", func(t *testing.T) {
		assert.True(t, Err(nil).Equal(slog.Attr{}))
	})

	t.Run("keeps the original message", func(t *testing.T) {
		attr := Err(errors.New("camera gone"))
		assert.Equal(t, "error", attr.Key)
		err, ok := attr.Value.Any().(error)
		if assert.True(t, ok) {
			assert.Contains(t, err.Error(), "camera gone")
		}
	})
}

func TestComponentLoggerIsUsable(t *testing.T) {
	assert.NotNil(t, Component("test"))
	assert.NotNil(t, Discard())
}
