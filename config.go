package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"colco/sampler"
)

// Config holds the picker settings. It is read from config.yaml in the
// colco directory and overridden by command-line flags.
type Config struct {
	Source        string        `yaml:"source"` // auto, screen, ffmpeg, pipewire, camera
	CameraDevice  string        `yaml:"camera_device"`
	CaptureWidth  int           `yaml:"capture_width"`
	CaptureHeight int           `yaml:"capture_height"`
	CaptureFormat string        `yaml:"capture_format"` // bgrx, rgbx, bgra, rgba
	Framerate     int           `yaml:"framerate"`
	GuideSize     float64       `yaml:"guide_size"` // guide square side in native pixels
	Mode          string        `yaml:"mode"`       // average, center
	Interval      time.Duration `yaml:"interval"`
	LogLevel      string        `yaml:"log_level"`
	Hue           HueConfig     `yaml:"hue"`
}

// HueConfig controls streaming the sampled color to a Hue entertainment area.
type HueConfig struct {
	Enabled bool `yaml:"enabled"`
}

var sourceNames = []string{"auto", "screen", "ffmpeg", "pipewire", "camera"}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Source:        "auto",
		CameraDevice:  "/dev/video0",
		CaptureWidth:  320,
		CaptureHeight: 180,
		CaptureFormat: "bgrx",
		Framerate:     30,
		GuideSize:     40,
		Mode:          sampler.AverageRegion.String(),
		Interval:      100 * time.Millisecond,
		LogLevel:      "info",
	}
}

// Validate resets out-of-range numbers to their defaults and rejects
// unknown source or mode names.
func (c *Config) Validate() error {
	def := DefaultConfig()
	if c.CaptureWidth <= 0 || c.CaptureHeight <= 0 {
		c.CaptureWidth, c.CaptureHeight = def.CaptureWidth, def.CaptureHeight
	}
	if c.Framerate <= 0 {
		c.Framerate = def.Framerate
	}
	if c.GuideSize < 0 {
		c.GuideSize = def.GuideSize
	}
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	if c.CameraDevice == "" {
		c.CameraDevice = def.CameraDevice
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.CaptureFormat == "" {
		c.CaptureFormat = def.CaptureFormat
	}

	if !validSource(c.Source) {
		return fmt.Errorf("unknown source %q", c.Source)
	}
	if _, err := sampler.ParseMode(c.Mode); err != nil {
		return err
	}
	f, err := sampler.ParseFormat(c.CaptureFormat)
	if err != nil {
		return err
	}
	if _, ok := rawFormats[f]; !ok {
		return fmt.Errorf("capture format %q cannot be produced by ffmpeg or gstreamer", c.CaptureFormat)
	}
	return nil
}

func validSource(name string) bool {
	for _, s := range sourceNames {
		if s == name {
			return true
		}
	}
	return false
}

// SampleMode returns the parsed Mode. Validate must have succeeded.
func (c *Config) SampleMode() sampler.Mode {
	m, _ := sampler.ParseMode(c.Mode)
	return m
}

// PixelFormat returns the parsed capture format. Validate must have
// succeeded.
func (c *Config) PixelFormat() sampler.PixelFormat {
	f, _ := sampler.ParseFormat(c.CaptureFormat)
	return f
}

// LoadConfig reads the YAML file at path. A missing file yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to path, creating its directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// appDir overrides the colco directory for testing. When empty,
// ~/.colco is used.
var appDir string

func appPath(name string) (string, error) {
	if appDir != "" {
		return filepath.Join(appDir, name), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".colco", name), nil
}
