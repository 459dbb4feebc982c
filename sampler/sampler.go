// Package sampler computes a representative color for a region of a raw
// video frame.
//
// Sample is a pure function: it reads the frame buffer only for the
// duration of the call, keeps no state between calls and may be used
// concurrently on independent frames.
package sampler

import (
	"errors"
	"fmt"
	"image"
	"strings"
)

var (
	// ErrEmptyRegion is returned when the region has no area left after
	// clipping it to the frame.
	ErrEmptyRegion = errors.New("empty region")

	// ErrUnsupportedFormat is returned for pixel formats outside the
	// enumerated set.
	ErrUnsupportedFormat = errors.New("unsupported pixel format")

	// ErrOutOfBounds is returned when the frame metadata would make the
	// sampler read past the end of the pixel buffer.
	ErrOutOfBounds = errors.New("read out of bounds")
)

// Frame is a read-only view over packed 32-bit pixels. Stride is the
// number of bytes between the starts of consecutive rows.
type Frame struct {
	Pix    []byte
	Width  int
	Height int
	Stride int
	Format PixelFormat
}

// Mode selects how a region is reduced to a single color.
type Mode uint8

const (
	// AverageRegion averages every pixel of the integral region.
	AverageRegion Mode = iota
	// CenterPixel reads the one pixel at the center of the region.
	CenterPixel
)

func (m Mode) String() string {
	switch m {
	case AverageRegion:
		return "average"
	case CenterPixel:
		return "center"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ParseMode parses "average" or "center".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "average", "avg":
		return AverageRegion, nil
	case "center", "centre", "pixel":
		return CenterPixel, nil
	}
	return 0, fmt.Errorf("unknown sample mode %q", s)
}

// Sample returns the color of region within frame.
//
// The region is clipped to the frame and rounded outward to whole pixels.
// Averages are taken over premultiplied values and converted back to
// straight alpha once, so near-transparent pixels do not dominate the
// result. A fully transparent result is (0,0,0,0).
func Sample(f Frame, region Region, mode Mode) (Color, error) {
	l, err := f.Format.lanes()
	if err != nil {
		return Color{}, err
	}

	if f.Width <= 0 || f.Height <= 0 {
		return Color{}, fmt.Errorf("%w: %dx%d frame", ErrEmptyRegion, f.Width, f.Height)
	}
	if err := f.checkBounds(); err != nil {
		return Color{}, err
	}

	rect := region.Integral(f.Width, f.Height)
	if rect.Empty() {
		return Color{}, fmt.Errorf("%w: %v in %dx%d frame", ErrEmptyRegion, region, f.Width, f.Height)
	}

	switch mode {
	case AverageRegion:
	case CenterPixel:
		p := region.center(f.Width, f.Height, rect)
		rect = image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))}
	default:
		return Color{}, fmt.Errorf("unknown sample mode %d", mode)
	}

	var acc accumulator
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		off := y*f.Stride + rect.Min.X*bytesPerPixel
		for x := rect.Min.X; x < rect.Max.X; x++ {
			px := f.Pix[off : off+bytesPerPixel : off+bytesPerPixel]
			acc.add(px[l.r], px[l.g], px[l.b], px[l.a], f.Format.Alpha)
			off += bytesPerPixel
		}
	}
	return acc.color(f.Format.Alpha), nil
}

// checkBounds verifies that the whole frame, stride*(height-1) plus one
// row of pixels, lies inside f.Pix. Width and height must be positive.
// The arithmetic avoids overflow on hostile stride values.
func (f Frame) checkBounds() error {
	if f.Stride < 0 || f.Stride/bytesPerPixel < f.Width {
		return fmt.Errorf("%w: stride %d too small for width %d", ErrOutOfBounds, f.Stride, f.Width)
	}

	room := len(f.Pix) - f.Width*bytesPerPixel
	last := f.Height - 1
	if room < 0 || (last > 0 && f.Stride > room/last) {
		return fmt.Errorf("%w: %dx%d frame with stride %d needs more than %d bytes",
			ErrOutOfBounds, f.Width, f.Height, f.Stride, len(f.Pix))
	}
	return nil
}

type accumulator struct {
	r, g, b uint64
	a       uint64
	n       uint64
}

func (acc *accumulator) add(r, g, b, a byte, alpha AlphaMode) {
	switch alpha {
	case AlphaStraight:
		acc.r += uint64(r) * uint64(a)
		acc.g += uint64(g) * uint64(a)
		acc.b += uint64(b) * uint64(a)
		acc.a += uint64(a)
	case AlphaIgnored:
		acc.r += uint64(r)
		acc.g += uint64(g)
		acc.b += uint64(b)
		acc.a += 0xff
	default:
		acc.r += uint64(r)
		acc.g += uint64(g)
		acc.b += uint64(b)
		acc.a += uint64(a)
	}
	acc.n++
}

func (acc *accumulator) color(alpha AlphaMode) Color {
	if acc.n == 0 || acc.a == 0 {
		return Color{}
	}
	n := float64(acc.n)
	a := float64(acc.a) / n / 0xff

	unpremultiply := func(sum uint64) float64 {
		if alpha == AlphaStraight {
			// sum holds channel*alpha products.
			return clamp01(float64(sum) / float64(acc.a) / 0xff)
		}
		return clamp01((float64(sum) / n / 0xff) / a)
	}
	return Color{
		R: unpremultiply(acc.r),
		G: unpremultiply(acc.g),
		B: unpremultiply(acc.b),
		A: a,
	}
}
