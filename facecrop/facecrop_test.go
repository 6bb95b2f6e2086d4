package facecrop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// gradFrame fills a frame so every pixel encodes its own coordinates,
// which makes copy and offset mistakes show up as value mismatches.
func gradFrame(w, h int) *Frame {
	f := NewFrame(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := (y*w + x) * channels
			f.Pix[off] = uint8(x)
			f.Pix[off+1] = uint8(y)
			f.Pix[off+2] = uint8(x + y)
		}
	}
	return f
}

func pixel(f *Frame, x, y int) Color {
	off := (y*f.W + x) * channels
	return Color{f.Pix[off], f.Pix[off+1], f.Pix[off+2]}
}

func allBlack(f *Frame) bool {
	for _, v := range f.Pix {
		if v != 0 {
			return false
		}
	}
	return true
}

func TestBoundingBox_All(t *testing.T) {
	t.Run("Pad expands on every side", func(t *testing.T) {
		b := BoundingBox{X: 40, Y: 30, W: 100, H: 50}
		assert.Equal(t, BoundingBox{X: 30, Y: 25, W: 120, H: 60}, b.Pad(0.10))
	})

	t.Run("Pad truncates fractional padding", func(t *testing.T) {
		b := BoundingBox{X: 50, Y: 50, W: 35, H: 17}
		// 3.5 -> 3 and 1.7 -> 1
		assert.Equal(t, BoundingBox{X: 47, Y: 49, W: 41, H: 19}, b.Pad(0.10))
	})

	t.Run("Pad clamps the origin at zero", func(t *testing.T) {
		b := BoundingBox{X: 5, Y: 2, W: 100, H: 50}
		assert.Equal(t, BoundingBox{X: 0, Y: 0, W: 120, H: 60}, b.Pad(0.10))
	})

	t.Run("Pad at exact edge", func(t *testing.T) {
		b := BoundingBox{X: 10, Y: 10, W: 100, H: 50}
		assert.Equal(t, BoundingBox{X: 0, Y: 5, W: 120, H: 60}, b.Pad(0.10))
	})

	t.Run("Pad treats negative percent as zero", func(t *testing.T) {
		b := BoundingBox{X: 10, Y: 10, W: 20, H: 20}
		assert.Equal(t, b, b.Pad(-0.5))
	})

	t.Run("Intersect clips overhang", func(t *testing.T) {
		b := BoundingBox{X: 90, Y: 70, W: 20, H: 20}
		assert.Equal(t, BoundingBox{X: 90, Y: 70, W: 10, H: 10}, b.Intersect(100, 80))
	})

	t.Run("Intersect clamps negative origin", func(t *testing.T) {
		b := BoundingBox{X: -5, Y: -3, W: 20, H: 20}
		assert.Equal(t, BoundingBox{X: 0, Y: 0, W: 15, H: 17}, b.Intersect(100, 80))
	})

	t.Run("Intersect of disjoint box is empty", func(t *testing.T) {
		b := BoundingBox{X: 200, Y: 200, W: 20, H: 20}
		assert.True(t, b.Intersect(100, 80).Empty())
	})
}

func TestFrame_All(t *testing.T) {
	t.Run("NewFilledFrame sets every pixel", func(t *testing.T) {
		f := NewFilledFrame(Size{W: 4, H: 3}, Green)
		for y := 0; y < 3; y++ {
			for x := 0; x < 4; x++ {
				assert.Equal(t, Green, pixel(f, x, y))
			}
		}
	})

	t.Run("Clone shares no bytes", func(t *testing.T) {
		f := gradFrame(4, 4)
		c := f.Clone()
		c.Pix[0] = 0xee
		assert.Equal(t, uint8(0), f.Pix[0])
	})

	t.Run("Crop copies the region", func(t *testing.T) {
		f := gradFrame(10, 8)
		out := f.Crop(BoundingBox{X: 3, Y: 2, W: 4, H: 3})
		assert.Equal(t, 4, out.W)
		assert.Equal(t, 3, out.H)
		assert.Equal(t, pixel(f, 3, 2), pixel(out, 0, 0))
		assert.Equal(t, pixel(f, 6, 4), pixel(out, 3, 2))
	})

	t.Run("Crop does not alias the source", func(t *testing.T) {
		f := gradFrame(10, 8)
		out := f.Crop(BoundingBox{X: 0, Y: 0, W: 2, H: 2})
		out.Pix[0] = 0xee
		assert.Equal(t, uint8(0), f.Pix[0])
	})

	t.Run("Crop clamps overhang", func(t *testing.T) {
		f := gradFrame(10, 8)
		out := f.Crop(BoundingBox{X: 8, Y: 6, W: 5, H: 5})
		assert.Equal(t, 2, out.W)
		assert.Equal(t, 2, out.H)
		assert.Equal(t, pixel(f, 8, 6), pixel(out, 0, 0))
	})

	t.Run("Crop outside the raster is empty", func(t *testing.T) {
		f := gradFrame(10, 8)
		assert.True(t, f.Crop(BoundingBox{X: 20, Y: 20, W: 5, H: 5}).Empty())
	})

	t.Run("Image round trip preserves pixels", func(t *testing.T) {
		f := gradFrame(7, 5)
		back := FrameFromImage(f.ToImage())
		assert.Equal(t, f.Pix, back.Pix)
		assert.Equal(t, f.Size(), back.Size())
	})
}

func TestResizeToFit_All(t *testing.T) {
	t.Run("wider than target binds on width", func(t *testing.T) {
		out := ResizeToFit(gradFrame(200, 100), Size{W: 100, H: 100})
		assert.Equal(t, Size{W: 100, H: 50}, out.Size())
	})

	t.Run("taller than target binds on height", func(t *testing.T) {
		out := ResizeToFit(gradFrame(100, 200), Size{W: 100, H: 100})
		assert.Equal(t, Size{W: 50, H: 100}, out.Size())
	})

	t.Run("matching aspect fills the target", func(t *testing.T) {
		out := ResizeToFit(gradFrame(200, 200), Size{W: 100, H: 100})
		assert.Equal(t, Size{W: 100, H: 100}, out.Size())
	})

	t.Run("free dimension truncates", func(t *testing.T) {
		// aspect 3 into a square: height becomes 100/3 = 33
		out := ResizeToFit(gradFrame(300, 100), Size{W: 100, H: 100})
		assert.Equal(t, Size{W: 100, H: 33}, out.Size())
	})

	t.Run("extreme aspect keeps at least one pixel", func(t *testing.T) {
		out := ResizeToFit(gradFrame(1000, 1), Size{W: 100, H: 100})
		assert.Equal(t, Size{W: 100, H: 1}, out.Size())
	})

	t.Run("never exceeds the target", func(t *testing.T) {
		for _, sz := range []Size{{640, 480}, {480, 640}, {33, 17}, {17, 33}} {
			out := ResizeToFit(gradFrame(sz.W, sz.H), Size{W: 128, H: 128})
			assert.LessOrEqual(t, out.W, 128)
			assert.LessOrEqual(t, out.H, 128)
		}
	})
}

func TestCenterInFrame_All(t *testing.T) {
	t.Run("small frame is centered without scaling", func(t *testing.T) {
		src := gradFrame(10, 6)
		out := CenterInFrame(src, Size{W: 20, H: 10}, Green)
		assert.Equal(t, Size{W: 20, H: 10}, out.Size())
		assert.Equal(t, Green, pixel(out, 0, 0))
		assert.Equal(t, Green, pixel(out, 19, 9))
		assert.Equal(t, pixel(src, 0, 0), pixel(out, 5, 2))
		assert.Equal(t, pixel(src, 9, 5), pixel(out, 14, 7))
	})

	t.Run("odd margin rounds toward top-left", func(t *testing.T) {
		src := gradFrame(5, 5)
		out := CenterInFrame(src, Size{W: 8, H: 8}, Green)
		assert.Equal(t, pixel(src, 0, 0), pixel(out, 1, 1))
		assert.Equal(t, Green, pixel(out, 0, 0))
	})

	t.Run("oversized frame is shrunk to fit", func(t *testing.T) {
		out := CenterInFrame(gradFrame(40, 20), Size{W: 20, H: 20}, Green)
		assert.Equal(t, Size{W: 20, H: 20}, out.Size())
		// fitted to 20x10, so the top band is background
		assert.Equal(t, Green, pixel(out, 10, 0))
		assert.NotEqual(t, Green, pixel(out, 10, 10))
	})

	t.Run("exact fit is copied through", func(t *testing.T) {
		src := gradFrame(16, 16)
		out := CenterInFrame(src, Size{W: 16, H: 16}, Green)
		assert.Equal(t, src.Pix, out.Pix)
	})
}

func TestMaskOutside_All(t *testing.T) {
	t.Run("keeps inside and blacks outside", func(t *testing.T) {
		f := gradFrame(10, 8)
		out := MaskOutside(f, BoundingBox{X: 2, Y: 3, W: 4, H: 2})
		assert.Equal(t, f.Size(), out.Size())
		assert.Equal(t, pixel(f, 2, 3), pixel(out, 2, 3))
		assert.Equal(t, pixel(f, 5, 4), pixel(out, 5, 4))
		assert.Equal(t, Black, pixel(out, 1, 3))
		assert.Equal(t, Black, pixel(out, 6, 3))
		assert.Equal(t, Black, pixel(out, 2, 2))
		assert.Equal(t, Black, pixel(out, 2, 5))
	})

	t.Run("clamps an out-of-range box", func(t *testing.T) {
		f := gradFrame(10, 8)
		out := MaskOutside(f, BoundingBox{X: -5, Y: -5, W: 7, H: 6})
		assert.Equal(t, pixel(f, 0, 0), pixel(out, 0, 0))
		assert.Equal(t, pixel(f, 1, 0), pixel(out, 1, 0))
		assert.Equal(t, Black, pixel(out, 2, 0))
		assert.Equal(t, Black, pixel(out, 0, 1))
	})

	t.Run("disjoint box yields an all-black frame", func(t *testing.T) {
		f := gradFrame(10, 8)
		assert.True(t, allBlack(MaskOutside(f, BoundingBox{X: 50, Y: 50, W: 5, H: 5})))
	})
}

func TestCropAndCenter(t *testing.T) {
	f := gradFrame(100, 80)
	box := BoundingBox{X: 40, Y: 30, W: 20, H: 10}
	out := CropAndCenter(f, box, 0.10, Size{W: 48, H: 24}, Black)

	// padded box is (38,29 24x12), centered at (12,6) on the canvas
	assert.Equal(t, Size{W: 48, H: 24}, out.Size())
	assert.Equal(t, pixel(f, 38, 29), pixel(out, 12, 6))
	assert.Equal(t, pixel(f, 61, 40), pixel(out, 35, 17))
	assert.Equal(t, Black, pixel(out, 0, 0))
	assert.Equal(t, Black, pixel(out, 47, 23))
}
