package facecrop

// MaskOutside returns a frame of the same size as f with every pixel
// outside box set to black and the pixels inside copied through
// unchanged. The box is clamped to the raster, so an out-of-range box
// masks only what it actually covers; a box with no overlap yields an
// all-black frame.
func MaskOutside(f *Frame, box BoundingBox) *Frame {
	out := NewFrame(f.W, f.H)
	clip := box.Intersect(f.W, f.H)
	for y := clip.Y; y < clip.Y+clip.H; y++ {
		start := (y*f.W + clip.X) * channels
		end := start + clip.W*channels
		copy(out.Pix[start:end], f.Pix[start:end])
	}
	return out
}
