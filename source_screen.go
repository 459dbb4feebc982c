package main

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"

	"colco/sampler"
)

// screenSource grabs display 0 with a fresh screenshot on every View.
type screenSource struct{}

// captureScreen captures display 0 and returns the image.
func captureScreen() (*image.RGBA, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return nil, fmt.Errorf("no active displays found")
	}
	img, err := screenshot.CaptureRect(screenshot.GetDisplayBounds(0))
	if err != nil {
		return nil, fmt.Errorf("capturing screen: %w", err)
	}
	return img, nil
}

func (screenSource) View(fn func(sampler.Frame) error) error {
	img, err := captureScreen()
	if err != nil {
		return err
	}
	f, err := sampler.FrameFromImage(img)
	if err != nil {
		return err
	}
	return fn(f)
}

// Screenshots are taken at native resolution.
func (screenSource) Scale() float64 { return 1 }

func (screenSource) Close() error { return nil }
