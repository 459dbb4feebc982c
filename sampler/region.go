package sampler

import (
	"fmt"
	"image"
	"math"
)

// Region is a rectangle in frame pixel coordinates. Edges may be
// fractional. A zero-sized region addresses the single pixel under its
// origin.
type Region struct {
	X, Y, W, H float64
}

// Point returns a degenerate region at (x, y).
func Point(x, y float64) Region {
	return Region{X: x, Y: y}
}

func (r Region) String() string {
	return fmt.Sprintf("(%g,%g %gx%g)", r.X, r.Y, r.W, r.H)
}

// standardize flips negative extents so that W and H are non-negative.
func (r Region) standardize() Region {
	if r.W < 0 {
		r.X += r.W
		r.W = -r.W
	}
	if r.H < 0 {
		r.Y += r.H
		r.H = -r.H
	}
	return r
}

func (r Region) finite() bool {
	for _, v := range [...]float64{r.X, r.Y, r.W, r.H} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Integral rounds the region outward to whole pixels and intersects it
// with a width x height frame. The result may be empty.
func (r Region) Integral(width, height int) image.Rectangle {
	if !r.finite() {
		return image.Rectangle{}
	}
	r = r.standardize()

	x0, y0 := math.Floor(r.X), math.Floor(r.Y)
	x1, y1 := math.Ceil(r.X+r.W), math.Ceil(r.Y+r.H)
	if x1 == x0 {
		x1++
	}
	if y1 == y0 {
		y1++
	}

	bounds := image.Rect(0, 0, width, height)
	rect := image.Rect(clampInt(x0), clampInt(y0), clampInt(x1), clampInt(y1))
	return rect.Intersect(bounds)
}

// center returns the floored center of the region after clipping it to
// the frame, kept inside rect.
func (r Region) center(width, height int, rect image.Rectangle) image.Point {
	r = r.standardize()
	x0 := math.Max(r.X, 0)
	y0 := math.Max(r.Y, 0)
	x1 := math.Min(r.X+r.W, float64(width))
	y1 := math.Min(r.Y+r.H, float64(height))

	p := image.Pt(clampInt(math.Floor((x0+x1)/2)), clampInt(math.Floor((y0+y1)/2)))
	p.X = min(max(p.X, rect.Min.X), rect.Max.X-1)
	p.Y = min(max(p.Y, rect.Min.Y), rect.Max.Y-1)
	return p
}

// clampInt converts v to int without overflowing for huge coordinates.
func clampInt(v float64) int {
	const limit = 1 << 30
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return int(v)
}
