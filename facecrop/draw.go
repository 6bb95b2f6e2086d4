package facecrop

// DrawBox paints a rectangle outline over the frame in place and
// returns the frame. The outline sits inside the box edges and is
// clamped to the raster. Used for detection overlays on preview
// streams.
func DrawBox(f *Frame, box BoundingBox, c Color, thickness int) *Frame {
	if thickness < 1 {
		thickness = 1
	}
	clip := box.Intersect(f.W, f.H)
	if clip.Empty() {
		return f
	}
	x1 := clip.X + clip.W
	y1 := clip.Y + clip.H
	for t := 0; t < thickness; t++ {
		top := clip.Y + t
		bottom := y1 - 1 - t
		if top <= bottom {
			drawHLine(f, clip.X, x1, top, c)
			drawHLine(f, clip.X, x1, bottom, c)
		}
		left := clip.X + t
		right := x1 - 1 - t
		if left <= right {
			drawVLine(f, left, clip.Y, y1, c)
			drawVLine(f, right, clip.Y, y1, c)
		}
	}
	return f
}

func drawHLine(f *Frame, x0, x1, y int, c Color) {
	for x := x0; x < x1; x++ {
		setPixel(f, x, y, c)
	}
}

func drawVLine(f *Frame, x, y0, y1 int, c Color) {
	for y := y0; y < y1; y++ {
		setPixel(f, x, y, c)
	}
}

func setPixel(f *Frame, x, y int, c Color) {
	off := (y*f.W + x) * channels
	f.Pix[off] = c[0]
	f.Pix[off+1] = c[1]
	f.Pix[off+2] = c[2]
}
