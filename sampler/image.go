package sampler

import (
	"fmt"
	"image"
)

// FrameFromImage wraps the pixels of img without copying. *image.RGBA is
// premultiplied RGBA and *image.NRGBA is straight RGBA; other image types
// are rejected.
func FrameFromImage(img image.Image) (Frame, error) {
	switch m := img.(type) {
	case *image.RGBA:
		return frameOver(m.Pix, m.Stride, m.Rect, m.PixOffset, RGBA8Premultiplied), nil
	case *image.NRGBA:
		return frameOver(m.Pix, m.Stride, m.Rect, m.PixOffset, RGBA8), nil
	case nil:
		return Frame{}, fmt.Errorf("%w: nil image", ErrUnsupportedFormat)
	}
	return Frame{}, fmt.Errorf("%w: %T", ErrUnsupportedFormat, img)
}

func frameOver(pix []byte, stride int, r image.Rectangle, offset func(x, y int) int, format PixelFormat) Frame {
	f := Frame{
		Width:  r.Dx(),
		Height: r.Dy(),
		Stride: stride,
		Format: format,
	}
	if !r.Empty() {
		if start := offset(r.Min.X, r.Min.Y); start >= 0 && start <= len(pix) {
			f.Pix = pix[start:]
		}
	}
	return f
}
