// Package config loads hypnosonore settings from defaults, a JSON file and the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ayusman/hypnosonore/internal/detector"
	"github.com/ayusman/hypnosonore/internal/gesture"
	"github.com/ayusman/hypnosonore/internal/osc"
)

// maxFileSize caps config files at 1 MiB.
const maxFileSize = 1 << 20

// Config is the complete application configuration.
type Config struct {
	Addr      string `json:"addr"`
	DataDir   string `json:"data_dir"`
	StaticDir string `json:"static_dir,omitempty"`
	PluginDir string `json:"plugin_dir,omitempty"`
	LogLevel  string `json:"log_level"`
	Tray      bool   `json:"tray"`

	Camera     CameraConfig       `json:"camera"`
	Detector   detector.Config    `json:"detector"`
	Smoothing  SmoothingConfig    `json:"smoothing"`
	Thresholds gesture.Thresholds `json:"thresholds"`
	OSC        OSCConfig          `json:"osc"`
	Audio      AudioConfig        `json:"audio"`
	RTC        RTCConfig          `json:"rtc"`
}

// CameraConfig selects the capture device and frame pacing.
type CameraConfig struct {
	ID              int     `json:"id"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	IdleFPS         int     `json:"idle_fps"`
	ActiveFPS       int     `json:"active_fps"`
	MotionThreshold float64 `json:"motion_threshold"`
}

// SmoothingConfig controls the metrics moving average.
type SmoothingConfig struct {
	Enabled bool    `json:"enabled"`
	Alpha   float64 `json:"alpha"`
}

// OSCConfig addresses the OSC receiver.
type OSCConfig struct {
	Enabled        bool   `json:"enabled"`
	Host           string `json:"host"`
	Port           int    `json:"port"`
	PublishMetrics bool   `json:"publish_metrics"`
}

// AudioConfig configures sample playback and the loudness monitor.
type AudioConfig struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
	Slots   int      `json:"slots"`
	// MonitorCommand writes s16le mono PCM to stdout; empty disables the monitor.
	MonitorCommand []string `json:"monitor_command,omitempty"`
}

// RTCConfig configures the player WebRTC host.
type RTCConfig struct {
	ICEServers []string `json:"ice_servers"`
}

// Default returns the built-in configuration.
func Default() Config {
	dataDir := ".hypnosonore"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".hypnosonore")
	}

	return Config{
		Addr:     ":8080",
		DataDir:  dataDir,
		LogLevel: "info",
		Camera: CameraConfig{
			Width:           640,
			Height:          480,
			IdleFPS:         5,
			ActiveFPS:       30,
			MotionThreshold: 1.0,
		},
		Detector:   detector.DefaultConfig(),
		Smoothing:  SmoothingConfig{Enabled: true, Alpha: gesture.DefaultAlpha},
		Thresholds: gesture.DefaultThresholds(),
		OSC: OSCConfig{
			Host: osc.DefaultHost,
			Port: osc.DefaultPort,
		},
		Audio: AudioConfig{
			Command: "ffplay",
			Args:    []string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-loop", "0"},
			Slots:   3,
		},
		RTC: RTCConfig{ICEServers: []string{"stun:stun.l.google.com:19302"}},
	}
}

// Load reads a JSON config file over the defaults. Fields the file omits
// keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return cfg, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return cfg, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads .env files into the process environment. Missing files
// are ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays HYPNO_* environment variables.
func (c *Config) ApplyEnv() error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}

	str("HYPNO_ADDR", &c.Addr)
	str("HYPNO_DATA_DIR", &c.DataDir)
	str("HYPNO_STATIC_DIR", &c.StaticDir)
	str("HYPNO_PLUGIN_DIR", &c.PluginDir)
	str("HYPNO_LOG_LEVEL", &c.LogLevel)
	boolean("HYPNO_TRAY", &c.Tray)
	integer("HYPNO_CAMERA", &c.Camera.ID)
	boolean("HYPNO_SMOOTHING", &c.Smoothing.Enabled)
	float("HYPNO_SMOOTHING_ALPHA", &c.Smoothing.Alpha)
	boolean("HYPNO_OSC", &c.OSC.Enabled)
	str("HYPNO_OSC_HOST", &c.OSC.Host)
	integer("HYPNO_OSC_PORT", &c.OSC.Port)
	str("HYPNO_AUDIO_COMMAND", &c.Audio.Command)
	if v, ok := os.LookupEnv("HYPNO_AUDIO_MONITOR"); ok && v != "" {
		c.Audio.MonitorCommand = strings.Fields(v)
	}

	return errors.Join(errs...)
}

// Validate checks value ranges and threshold ordering.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.Smoothing.Alpha <= 0 || c.Smoothing.Alpha > 1 {
		errs = append(errs, fmt.Errorf("smoothing.alpha must be in (0, 1], got %g", c.Smoothing.Alpha))
	}
	if c.Camera.IdleFPS <= 0 || c.Camera.ActiveFPS <= 0 {
		errs = append(errs, fmt.Errorf("camera fps must be positive, got idle %d active %d", c.Camera.IdleFPS, c.Camera.ActiveFPS))
	}
	if c.Camera.IdleFPS > c.Camera.ActiveFPS {
		errs = append(errs, fmt.Errorf("camera.idle_fps (%d) must not exceed camera.active_fps (%d)", c.Camera.IdleFPS, c.Camera.ActiveFPS))
	}
	if c.OSC.Port <= 0 || c.OSC.Port > 65535 {
		errs = append(errs, fmt.Errorf("osc.port must be 1-65535, got %d", c.OSC.Port))
	}
	if c.Audio.Slots <= 0 {
		errs = append(errs, fmt.Errorf("audio.slots must be positive, got %d", c.Audio.Slots))
	}
	if err := c.Thresholds.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("thresholds: %w", err))
	}
	return errors.Join(errs...)
}

// DBPath is where the settings database lives.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "hypnosonore.db")
}

// SamplesDir is where uploaded samples are stored.
func (c Config) SamplesDir() string {
	return filepath.Join(c.DataDir, "samples")
}

// ResolvedPluginDir returns PluginDir or the default under DataDir.
func (c Config) ResolvedPluginDir() string {
	if c.PluginDir != "" {
		return c.PluginDir
	}
	return filepath.Join(c.DataDir, "plugins")
}
