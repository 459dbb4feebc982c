package sampler

import (
	"fmt"
	"strings"
)

// Layout names the four channels of a 32-bit pixel word, most significant
// lane first.
type Layout uint8

const (
	LayoutRGBA Layout = iota + 1
	LayoutBGRA
	LayoutARGB
	LayoutABGR
)

// AlphaMode describes how the alpha lane relates to the color lanes.
type AlphaMode uint8

const (
	// AlphaPremultiplied means color lanes are already scaled by alpha.
	AlphaPremultiplied AlphaMode = iota + 1
	// AlphaStraight means color lanes are independent of alpha.
	AlphaStraight
	// AlphaIgnored means the alpha lane is padding and the pixel is opaque.
	AlphaIgnored
)

// ByteOrder selects how 32-bit pixel words are stored in memory.
type ByteOrder uint8

const (
	// BigEndian stores lanes in the order the Layout names them.
	BigEndian ByteOrder = iota
	// LittleEndian stores each 32-bit word byte-swapped.
	LittleEndian
)

// PixelFormat describes a packed 8-bit-per-channel, 4-byte pixel.
// The zero value is not a valid format.
type PixelFormat struct {
	Layout    Layout
	Alpha     AlphaMode
	ByteOrder ByteOrder
}

var (
	RGBA8Premultiplied = PixelFormat{Layout: LayoutRGBA, Alpha: AlphaPremultiplied}
	BGRA8Premultiplied = PixelFormat{Layout: LayoutBGRA, Alpha: AlphaPremultiplied}
	RGBA8              = PixelFormat{Layout: LayoutRGBA, Alpha: AlphaStraight}
	BGRA8              = PixelFormat{Layout: LayoutBGRA, Alpha: AlphaStraight}
	RGBX8              = PixelFormat{Layout: LayoutRGBA, Alpha: AlphaIgnored}
	BGRX8              = PixelFormat{Layout: LayoutBGRA, Alpha: AlphaIgnored}
)

const bytesPerPixel = 4

var namedFormats = map[string]PixelFormat{
	"rgba_premultiplied": RGBA8Premultiplied,
	"bgra_premultiplied": BGRA8Premultiplied,
	"rgba":               RGBA8,
	"bgra":               BGRA8,
	"rgbx":               RGBX8,
	"bgrx":               BGRX8,
}

// ParseFormat returns the named pixel format. Names are case-insensitive.
func ParseFormat(name string) (PixelFormat, error) {
	f, ok := namedFormats[strings.ToLower(name)]
	if !ok {
		return PixelFormat{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
	return f, nil
}

func (f PixelFormat) String() string {
	for name, nf := range namedFormats {
		if nf == f {
			return name
		}
	}
	return fmt.Sprintf("format(%d/%d/%d)", f.Layout, f.Alpha, f.ByteOrder)
}

// lanes holds the in-pixel byte offsets of the R, G, B and A channels.
type lanes struct {
	r, g, b, a int
}

// lanes resolves the memory offset of each channel, or fails for any
// descriptor outside the enumerated set.
func (f PixelFormat) lanes() (lanes, error) {
	var l lanes
	switch f.Layout {
	case LayoutRGBA:
		l = lanes{r: 0, g: 1, b: 2, a: 3}
	case LayoutBGRA:
		l = lanes{b: 0, g: 1, r: 2, a: 3}
	case LayoutARGB:
		l = lanes{a: 0, r: 1, g: 2, b: 3}
	case LayoutABGR:
		l = lanes{a: 0, b: 1, g: 2, r: 3}
	default:
		return lanes{}, fmt.Errorf("%w: layout %d", ErrUnsupportedFormat, f.Layout)
	}

	switch f.Alpha {
	case AlphaPremultiplied, AlphaStraight, AlphaIgnored:
	default:
		return lanes{}, fmt.Errorf("%w: alpha mode %d", ErrUnsupportedFormat, f.Alpha)
	}

	switch f.ByteOrder {
	case BigEndian:
	case LittleEndian:
		l = lanes{r: 3 - l.r, g: 3 - l.g, b: 3 - l.b, a: 3 - l.a}
	default:
		return lanes{}, fmt.Errorf("%w: byte order %d", ErrUnsupportedFormat, f.ByteOrder)
	}
	return l, nil
}
