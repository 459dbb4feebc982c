package main

import "colco/sampler"

// GuideRegion returns the guide square centered in a frameW x frameH
// frame. side is measured in native pixels and scale converts native
// pixels to frame pixels, so a downscaled capture still samples the same
// patch of the screen. A side of zero yields the center point.
func GuideRegion(frameW, frameH int, side, scale float64) sampler.Region {
	s := side * scale
	return sampler.Region{
		X: float64(frameW)/2 - s/2,
		Y: float64(frameH)/2 - s/2,
		W: s,
		H: s,
	}
}
