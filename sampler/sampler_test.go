package sampler

import (
	"image"
	"image/color"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uniformFrame returns a w x h frame where every pixel holds px, with
// pad extra bytes at the end of each row.
func uniformFrame(w, h, pad int, format PixelFormat, px [4]byte) Frame {
	stride := w*4 + pad
	pix := make([]byte, stride*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			copy(pix[y*stride+x*4:], px[:])
		}
	}
	return Frame{Pix: pix, Width: w, Height: h, Stride: stride, Format: format}
}

func setPixel(f Frame, x, y int, px [4]byte) {
	copy(f.Pix[y*f.Stride+x*4:], px[:])
}

func TestSample_PremultipliedBGRAPixel(t *testing.T) {
	f := uniformFrame(1, 1, 0, BGRA8Premultiplied, [4]byte{128, 0, 0, 128})

	got, err := Sample(f, Point(0, 0), CenterPixel)
	require.NoError(t, err)

	assert.Equal(t, 0.0, got.R)
	assert.Equal(t, 0.0, got.G)
	assert.Equal(t, 1.0, got.B)
	assert.InDelta(t, 0.5, got.A, 0.01)
}

func TestSample_ChannelAboveAlphaIsClamped(t *testing.T) {
	f := uniformFrame(1, 1, 0, RGBA8Premultiplied, [4]byte{200, 50, 0, 100})

	got, err := Sample(f, Point(0, 0), CenterPixel)
	require.NoError(t, err)

	assert.Equal(t, 1.0, got.R)
	assert.InDelta(t, 0.5, got.G, 1e-9)
	assert.Equal(t, 0.0, got.B)
}

func TestSample_ZeroAlphaIsTransparentBlack(t *testing.T) {
	formats := []PixelFormat{RGBA8Premultiplied, BGRA8Premultiplied, RGBA8, BGRA8}
	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			f := uniformFrame(4, 4, 0, format, [4]byte{255, 17, 90, 0})
			for _, mode := range []Mode{CenterPixel, AverageRegion} {
				got, err := Sample(f, Region{X: 0, Y: 0, W: 4, H: 4}, mode)
				require.NoError(t, err)
				assert.Equal(t, Color{}, got)
				assert.False(t, math.IsNaN(got.R))
			}
		})
	}
}

func TestSample_UniformAverageEqualsPixel(t *testing.T) {
	cases := []struct {
		name   string
		format PixelFormat
		px     [4]byte
	}{
		{"premultiplied", RGBA8Premultiplied, [4]byte{60, 120, 30, 180}},
		{"straight", BGRA8, [4]byte{10, 200, 77, 33}},
		{"opaque", BGRX8, [4]byte{1, 2, 3, 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := uniformFrame(37, 23, 12, tc.format, tc.px)
			want, err := Sample(f, Point(5, 5), CenterPixel)
			require.NoError(t, err)

			regions := []Region{
				{X: 0, Y: 0, W: 37, H: 23},
				{X: 3.2, Y: 7.9, W: 10.1, H: 4.4},
				{X: 30, Y: 20, W: 100, H: 100},
				{X: 12, Y: 12, W: 1, H: 1},
			}
			for _, r := range regions {
				got, err := Sample(f, r, AverageRegion)
				require.NoError(t, err)
				assert.Equal(t, want, got, "region %v", r)
			}
		})
	}
}

func TestSample_AverageIsPremultiplied(t *testing.T) {
	// An opaque red pixel next to a nearly transparent blue one. Averaging
	// straight colors would give purple; the premultiplied mean stays red.
	f := uniformFrame(2, 1, 0, RGBA8Premultiplied, [4]byte{})
	setPixel(f, 0, 0, [4]byte{255, 0, 0, 255})
	setPixel(f, 1, 0, [4]byte{0, 0, 1, 1})

	got, err := Sample(f, Region{W: 2, H: 1}, AverageRegion)
	require.NoError(t, err)

	assert.InDelta(t, 255.0/256.0, got.R, 1e-9)
	assert.InDelta(t, 1.0/256.0, got.B, 1e-9)
	assert.InDelta(t, 128.0/255.0, got.A, 1e-9)
}

func TestSample_StraightAlphaAverageWeightsByAlpha(t *testing.T) {
	f := uniformFrame(2, 1, 0, RGBA8, [4]byte{})
	setPixel(f, 0, 0, [4]byte{255, 0, 0, 255})
	setPixel(f, 1, 0, [4]byte{0, 0, 255, 0})

	got, err := Sample(f, Region{W: 2, H: 1}, AverageRegion)
	require.NoError(t, err)

	assert.Equal(t, 1.0, got.R)
	assert.Equal(t, 0.0, got.B)
	assert.InDelta(t, 0.5, got.A, 1e-9)
}

func TestSample_CenterPixelPicksFlooredCenter(t *testing.T) {
	f := uniformFrame(10, 10, 0, RGBA8Premultiplied, [4]byte{0, 0, 0, 255})
	setPixel(f, 5, 4, [4]byte{255, 255, 255, 255})

	got, err := Sample(f, Region{X: 2, Y: 2, W: 6.5, H: 5}, CenterPixel)
	require.NoError(t, err)
	assert.Equal(t, Color{R: 1, G: 1, B: 1, A: 1}, got)

	got, err = Sample(f, Region{X: 2, Y: 2, W: 4, H: 4}, CenterPixel)
	require.NoError(t, err)
	assert.Equal(t, Color{A: 1}, got)
}

func TestSample_CenterOfPartiallyClippedRegion(t *testing.T) {
	f := uniformFrame(4, 4, 0, RGBA8Premultiplied, [4]byte{0, 0, 0, 255})
	setPixel(f, 3, 3, [4]byte{0, 255, 0, 255})

	got, err := Sample(f, Region{X: 3, Y: 3, W: 10, H: 10}, CenterPixel)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.G)
}

func TestSample_RegionOutsideFrame(t *testing.T) {
	f := uniformFrame(8, 6, 0, RGBA8Premultiplied, [4]byte{1, 2, 3, 4})
	regions := []Region{
		{X: -10, Y: 0, W: 5, H: 5},
		{X: 8, Y: 0, W: 3, H: 3},
		{X: 0, Y: 6, W: 1, H: 1},
		{X: -5, Y: -5, W: 5, H: 5},
		Point(8, 2),
		Point(-0.5, -0.5),
		{X: math.NaN(), Y: 0, W: 1, H: 1},
		{X: 0, Y: 0, W: math.Inf(1), H: 1},
	}
	for _, r := range regions {
		for _, mode := range []Mode{CenterPixel, AverageRegion} {
			_, err := Sample(f, r, mode)
			assert.ErrorIs(t, err, ErrEmptyRegion, "region %v mode %v", r, mode)
		}
	}
}

func TestSample_EmptyFrame(t *testing.T) {
	_, err := Sample(Frame{Format: BGRA8}, Region{W: 1, H: 1}, AverageRegion)
	assert.ErrorIs(t, err, ErrEmptyRegion)
}

func TestSample_UnsupportedFormat(t *testing.T) {
	formats := []PixelFormat{
		{},
		{Layout: 9, Alpha: AlphaStraight},
		{Layout: LayoutRGBA},
		{Layout: LayoutRGBA, Alpha: 7},
		{Layout: LayoutRGBA, Alpha: AlphaStraight, ByteOrder: 3},
	}
	for _, format := range formats {
		f := uniformFrame(2, 2, 0, format, [4]byte{9, 9, 9, 9})
		_, err := Sample(f, Region{W: 2, H: 2}, AverageRegion)
		assert.ErrorIs(t, err, ErrUnsupportedFormat, "format %v", format)
	}
}

func TestSample_ShortBuffer(t *testing.T) {
	f := uniformFrame(4, 4, 0, RGBA8Premultiplied, [4]byte{1, 1, 1, 1})
	f.Pix = f.Pix[:len(f.Pix)-1]

	_, err := Sample(f, Region{W: 4, H: 4}, AverageRegion)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	// The frame is rejected even when the region avoids the missing bytes.
	_, err = Sample(f, Region{W: 4, H: 3}, AverageRegion)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestSample_LastRowPaddingMayBeOmitted(t *testing.T) {
	f := uniformFrame(4, 4, 8, RGBA8Premultiplied, [4]byte{0, 0, 255, 255})
	f.Pix = f.Pix[:len(f.Pix)-8]

	got, err := Sample(f, Region{W: 4, H: 4}, AverageRegion)
	require.NoError(t, err)
	assert.Equal(t, Color{B: 1, A: 1}, got)
}

func TestSample_NonPositiveDimensions(t *testing.T) {
	cases := []struct {
		frame  Frame
		region Region
	}{
		{Frame{Pix: make([]byte, 64), Width: -4, Height: 4, Stride: 16}, Region{X: -3, W: 1, H: 1}},
		{Frame{Pix: make([]byte, 64), Width: 4, Height: -4, Stride: 16}, Region{Y: -3, W: 1, H: 1}},
		{Frame{Pix: make([]byte, 64), Width: -4, Height: -4, Stride: 16}, Region{X: -2, Y: -2, W: 2, H: 2}},
		{Frame{Pix: make([]byte, 64), Width: 0, Height: 4, Stride: 16}, Point(0, 0)},
	}
	for _, tc := range cases {
		tc.frame.Format = RGBA8Premultiplied
		for _, mode := range []Mode{CenterPixel, AverageRegion} {
			assert.NotPanics(t, func() {
				_, err := Sample(tc.frame, tc.region, mode)
				assert.ErrorIs(t, err, ErrEmptyRegion, "%dx%d", tc.frame.Width, tc.frame.Height)
			})
		}
	}
}

func TestSample_InconsistentStride(t *testing.T) {
	f := uniformFrame(4, 4, 0, RGBA8Premultiplied, [4]byte{1, 1, 1, 1})

	f.Stride = 64
	_, err := Sample(f, Point(3, 3), CenterPixel)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	f.Stride = 8
	_, err = Sample(f, Point(0, 0), CenterPixel)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	f.Stride = math.MaxInt
	_, err = Sample(f, Point(0, 1), CenterPixel)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestSample_ByteOrder(t *testing.T) {
	// ARGB words stored little-endian sit in memory as B, G, R, A.
	little := PixelFormat{Layout: LayoutARGB, Alpha: AlphaPremultiplied, ByteOrder: LittleEndian}
	f := uniformFrame(1, 1, 0, little, [4]byte{255, 0, 0, 255})

	got, err := Sample(f, Point(0, 0), CenterPixel)
	require.NoError(t, err)
	assert.Equal(t, Color{B: 1, A: 1}, got)

	// The same bytes read as big-endian ARGB: A=255 R=0 G=0 B=255.
	f.Format.ByteOrder = BigEndian
	got, err = Sample(f, Point(0, 0), CenterPixel)
	require.NoError(t, err)
	assert.Equal(t, Color{B: 1, A: 1}, got)

	// ABGR big-endian: A=255 B=0 G=0 R=255.
	f.Format.Layout = LayoutABGR
	got, err = Sample(f, Point(0, 0), CenterPixel)
	require.NoError(t, err)
	assert.Equal(t, Color{R: 1, A: 1}, got)
}

func TestSample_Deterministic(t *testing.T) {
	f := uniformFrame(16, 16, 4, BGRA8Premultiplied, [4]byte{})
	for i := range f.Pix {
		f.Pix[i] = byte(i * 31)
	}
	r := Region{X: 2.5, Y: 3.25, W: 9, H: 7.5}

	first, err := Sample(f, r, AverageRegion)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := Sample(f, r, AverageRegion)
			assert.NoError(t, err)
			assert.Equal(t, first, got)
		}()
	}
	wg.Wait()
}

func TestRegion_Integral(t *testing.T) {
	cases := []struct {
		r    Region
		want image.Rectangle
	}{
		{Region{X: 1.2, Y: 2.7, W: 3, H: 1.1}, image.Rect(1, 2, 5, 4)},
		{Region{X: 2, Y: 2, W: 2, H: 2}, image.Rect(2, 2, 4, 4)},
		{Point(3, 4), image.Rect(3, 4, 4, 5)},
		{Point(3.5, 4.5), image.Rect(3, 4, 4, 5)},
		{Region{X: 5, Y: 5, W: -2, H: -3}, image.Rect(3, 2, 5, 5)},
		{Region{X: -3, Y: -3, W: 100, H: 100}, image.Rect(0, 0, 10, 10)},
		{Region{X: 1e300, Y: 0, W: 1, H: 1}, image.Rectangle{}},
	}
	for _, tc := range cases {
		got := tc.r.Integral(10, 10)
		if tc.want.Empty() {
			assert.True(t, got.Empty(), "%v", tc.r)
			continue
		}
		assert.Equal(t, tc.want, got, "%v", tc.r)
	}
}

func TestFrameFromImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.SetRGBA(2, 1, color.RGBA{R: 64, G: 0, B: 0, A: 128})

	sub := img.SubImage(image.Rect(1, 1, 4, 4))
	f, err := FrameFromImage(sub)
	require.NoError(t, err)
	assert.Equal(t, 3, f.Width)
	assert.Equal(t, 3, f.Height)

	got, err := Sample(f, Point(1, 0), CenterPixel)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got.R, 1e-9)
	assert.InDelta(t, 128.0/255.0, got.A, 1e-9)

	nimg := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	nimg.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 40})
	f, err = FrameFromImage(nimg)
	require.NoError(t, err)
	assert.Equal(t, RGBA8, f.Format)

	got, err = Sample(f, Point(0, 0), CenterPixel)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 40}, got.NRGBA())

	_, err = FrameFromImage(image.NewGray(image.Rect(0, 0, 1, 1)))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseFormatAndMode(t *testing.T) {
	f, err := ParseFormat("BGRX")
	require.NoError(t, err)
	assert.Equal(t, BGRX8, f)

	_, err = ParseFormat("yuv420")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	m, err := ParseMode("center")
	require.NoError(t, err)
	assert.Equal(t, CenterPixel, m)
	assert.Equal(t, "average", AverageRegion.String())

	_, err = ParseMode("median")
	assert.Error(t, err)
}

func TestColor_Conversions(t *testing.T) {
	c := Color{R: 1, G: 0.5, B: 0, A: 0.5}

	assert.Equal(t, "#ff8000", c.Hex())
	assert.Equal(t, color.NRGBA{R: 255, G: 128, B: 0, A: 128}, c.NRGBA())

	r, g, b := c.RGB16()
	assert.Equal(t, uint16(0xffff), r)
	assert.Equal(t, uint16(0x8000), g)
	assert.Equal(t, uint16(0), b)

	pr, _, _, pa := c.RGBA()
	assert.Equal(t, uint32(0x8000), pr)
	assert.Equal(t, uint32(0x8000), pa)
}
