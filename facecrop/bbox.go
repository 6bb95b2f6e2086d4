package facecrop

import "fmt"

// BoundingBox is an axis-aligned pixel rectangle with its origin at the
// image top-left. Boxes are value types: operations return a new box and
// never mutate the receiver.
type BoundingBox struct {
	X int `json:"bb_x"`
	Y int `json:"bb_y"`
	W int `json:"bb_w"`
	H int `json:"bb_h"`
}

// Pad grows the box by percent of its own width/height on every side.
// The origin is clamped to stay non-negative; width and height grow by
// twice the truncated padding. Negative percentages are treated as zero.
func (b BoundingBox) Pad(percent float64) BoundingBox {
	if percent < 0 {
		percent = 0
	}
	padX := int(float64(b.W) * percent)
	padY := int(float64(b.H) * percent)
	x := b.X - padX
	if x < 0 {
		x = 0
	}
	y := b.Y - padY
	if y < 0 {
		y = 0
	}
	return BoundingBox{
		X: x,
		Y: y,
		W: b.W + 2*padX,
		H: b.H + 2*padY,
	}
}

// Intersect clamps the box to a w×h raster, returning the overlapping
// region. A box entirely outside the raster comes back empty.
func (b BoundingBox) Intersect(w, h int) BoundingBox {
	x0 := b.X
	if x0 < 0 {
		x0 = 0
	}
	y0 := b.Y
	if y0 < 0 {
		y0 = 0
	}
	x1 := b.X + b.W
	if x1 > w {
		x1 = w
	}
	y1 := b.Y + b.H
	if y1 > h {
		y1 = h
	}
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return BoundingBox{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Empty reports whether the box covers no pixels.
func (b BoundingBox) Empty() bool {
	return b.W <= 0 || b.H <= 0
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", b.X, b.Y, b.W, b.H)
}
