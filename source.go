package main

import (
	"errors"
	"fmt"
	"os/exec"

	"github.com/kbinani/screenshot"
	"github.com/sirupsen/logrus"

	"colco/sampler"
)

// ErrNoFrame is returned by View before the source has produced a frame.
var ErrNoFrame = errors.New("no frame captured yet")

// FrameSource delivers captured frames to the sampler.
type FrameSource interface {
	// View calls fn with the most recent frame. The frame is only valid
	// until fn returns.
	View(fn func(sampler.Frame) error) error
	// Scale is the number of frame pixels per native pixel.
	Scale() float64
	Close() error
}

// OpenSource opens the named frame source. "auto" tries PipeWire, then
// FFmpeg, then a plain X11 screenshot, and returns the first that works
// together with its name.
func OpenSource(cfg *Config, log *logrus.Logger) (FrameSource, string, error) {
	switch cfg.Source {
	case "screen":
		return screenSource{}, "screen", nil
	case "ffmpeg":
		s, err := newFFmpegScreenSource(cfg)
		return s, "ffmpeg", err
	case "pipewire":
		s, err := newPipeWireSource(cfg)
		return s, "pipewire", err
	case "camera":
		s, err := newCameraSource(cfg)
		return s, "camera", err
	case "auto":
	default:
		return nil, "", fmt.Errorf("unknown source %q", cfg.Source)
	}

	s, err := newPipeWireSource(cfg)
	if err == nil {
		return s, "pipewire", nil
	}
	log.WithFields(logrus.Fields{
		"function": "OpenSource",
		"source":   "pipewire",
		"error":    err,
	}).Info("Frame source unavailable, trying next")

	s, err = newFFmpegScreenSource(cfg)
	if err == nil {
		return s, "ffmpeg", nil
	}
	log.WithFields(logrus.Fields{
		"function": "OpenSource",
		"source":   "ffmpeg",
		"error":    err,
	}).Info("Frame source unavailable, falling back to screen")

	return screenSource{}, "screen", nil
}

// hasExecutable reports whether the named program is on PATH.
func hasExecutable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// screenSize returns the dimensions of display 0.
func screenSize() (int, int, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return 0, 0, fmt.Errorf("no active displays")
	}
	b := screenshot.GetDisplayBounds(0)
	return b.Dx(), b.Dy(), nil
}
