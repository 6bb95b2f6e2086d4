package facecrop

import "github.com/disintegration/imaging"

// ResizeToFit scales the frame down or up so it fits inside target while
// keeping its aspect ratio. The binding dimension is chosen by comparing
// aspect ratios: wider-than-target frames bind on width, everything else
// binds on height. The free dimension is truncated toward zero, then
// clamped to at least one pixel so extreme ratios still produce a raster.
// The frame must have a positive height.
func ResizeToFit(f *Frame, target Size) *Frame {
	aspect := float64(f.W) / float64(f.H)
	targetAspect := float64(target.W) / float64(target.H)

	var newW, newH int
	if aspect > targetAspect {
		newW = target.W
		newH = int(float64(newW) / aspect)
	} else {
		newH = target.H
		newW = int(float64(newH) * aspect)
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	if newW == f.W && newH == f.H {
		return f.Clone()
	}
	resized := imaging.Resize(f.ToImage(), newW, newH, imaging.Box)
	return FrameFromImage(resized)
}
