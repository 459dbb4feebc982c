package sampler

import (
	"fmt"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is an un-premultiplied RGBA color with channels in [0, 1].
type Color struct {
	R, G, B, A float64
}

// RGBA implements color.Color. The returned values are alpha-premultiplied
// 16-bit channels as the image/color package expects.
func (c Color) RGBA() (r, g, b, a uint32) {
	a = uint32(math.Round(c.A * 0xffff))
	r = uint32(math.Round(c.R * c.A * 0xffff))
	g = uint32(math.Round(c.G * c.A * 0xffff))
	b = uint32(math.Round(c.B * c.A * 0xffff))
	return
}

// NRGBA rounds the color to 8 bits per channel.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: to8(c.R), G: to8(c.G), B: to8(c.B), A: to8(c.A)}
}

// RGB16 returns the color channels scaled to 16 bits, ignoring alpha.
func (c Color) RGB16() (r, g, b uint16) {
	return to16(c.R), to16(c.G), to16(c.B)
}

// Colorful converts the color channels to a go-colorful color for
// colorspace conversions. Alpha is dropped.
func (c Color) Colorful() colorful.Color {
	return colorful.Color{R: c.R, G: c.G, B: c.B}
}

// Hex returns the color as #rrggbb.
func (c Color) Hex() string {
	return c.Colorful().Clamped().Hex()
}

func (c Color) String() string {
	return fmt.Sprintf("%s a=%.3f", c.Hex(), c.A)
}

func to8(v float64) uint8 {
	return uint8(math.Round(clamp01(v) * 0xff))
}

func to16(v float64) uint16 {
	return uint16(math.Round(clamp01(v) * 0xffff))
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
