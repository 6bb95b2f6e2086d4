package facecrop

// CenterInFrame places the frame in the middle of a target-sized canvas
// filled with bg. Frames larger than the canvas in either dimension are
// first shrunk with ResizeToFit; frames that already fit are centered at
// their native size, never upscaled. Odd margins round the frame toward
// the top-left.
func CenterInFrame(f *Frame, target Size, bg Color) *Frame {
	fitted := f
	if f.W > target.W || f.H > target.H {
		fitted = ResizeToFit(f, target)
	}
	canvas := NewFilledFrame(target, bg)
	x := (target.W - fitted.W) / 2
	y := (target.H - fitted.H) / 2
	canvas.paste(fitted, x, y)
	return canvas
}

// CropAndCenter is the composited-crop pipeline: pad the detection box,
// cut the padded region out of the frame, and center the cut on a
// target-sized canvas. Padding that pushes the box past the frame edge
// is absorbed by the crop clamp, so faces near a border come out
// partially padded rather than failing.
func CropAndCenter(f *Frame, box BoundingBox, padding float64, target Size, bg Color) *Frame {
	padded := box.Pad(padding)
	region := f.Crop(padded)
	return CenterInFrame(region, target, bg)
}
