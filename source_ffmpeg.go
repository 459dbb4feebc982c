package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"colco/sampler"
)

// rawFormat names a sampler format in the capture tools' vocabularies.
type rawFormat struct {
	ffmpeg string // -pix_fmt
	gst    string // video/x-raw format
}

// rawFormats lists the capture formats colco can request. ffmpeg and
// GStreamer only emit straight alpha.
var rawFormats = map[sampler.PixelFormat]rawFormat{
	sampler.BGRX8: {ffmpeg: "bgr0", gst: "BGRx"},
	sampler.RGBX8: {ffmpeg: "rgb0", gst: "RGBx"},
	sampler.BGRA8: {ffmpeg: "bgra", gst: "BGRA"},
	sampler.RGBA8: {ffmpeg: "rgba", gst: "RGBA"},
}

// newFFmpegScreenSource grabs the X11 display with ffmpeg, scaled down to
// the configured capture size.
func newFFmpegScreenSource(cfg *Config) (FrameSource, error) {
	if !hasExecutable("ffmpeg") {
		return nil, fmt.Errorf("ffmpeg not found")
	}
	display := os.Getenv("DISPLAY")
	if display == "" {
		return nil, fmt.Errorf("DISPLAY not set")
	}
	w, h, err := screenSize()
	if err != nil {
		return nil, err
	}

	args := []string{
		"-f", "x11grab",
		"-framerate", strconv.Itoa(cfg.Framerate),
		"-video_size", fmt.Sprintf("%dx%d", w, h),
		"-i", display + ".0",
	}
	return startFFmpeg("ffmpeg", args, cfg, float64(cfg.CaptureWidth)/float64(w))
}

// newCameraSource reads a V4L2 camera with ffmpeg. The guide size is
// taken in capture pixels because the camera's native resolution is not
// probed.
func newCameraSource(cfg *Config) (FrameSource, error) {
	if !hasExecutable("ffmpeg") {
		return nil, fmt.Errorf("ffmpeg not found")
	}
	if _, err := os.Stat(cfg.CameraDevice); err != nil {
		return nil, fmt.Errorf("camera device: %w", err)
	}

	args := []string{
		"-f", "v4l2",
		"-framerate", strconv.Itoa(cfg.Framerate),
		"-i", cfg.CameraDevice,
	}
	return startFFmpeg("camera", args, cfg, 1)
}

func startFFmpeg(name string, input []string, cfg *Config, scale float64) (FrameSource, error) {
	format := cfg.PixelFormat()
	args := append([]string{"-nostdin", "-loglevel", "error"},
		ffmpegArgs(input, cfg.CaptureWidth, cfg.CaptureHeight, rawFormats[format].ffmpeg)...)

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	s, err := startStream(name, cancel, cmd, cfg.CaptureWidth, cfg.CaptureHeight, format, scale)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ffmpegArgs appends the scaling and raw output options to input.
func ffmpegArgs(input []string, width, height int, pixFmt string) []string {
	return append(input,
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-f", "rawvideo",
		"-pix_fmt", pixFmt,
		"pipe:1",
	)
}
