// Package facecrop turns raw video frames and face detections into
// fixed-size face frames: crop with padding, letterbox into a target
// canvas, or black out everything around the detection.
package facecrop

import "image"

const channels = 3

// Color is a BGR pixel value, matching the channel order video decoders
// hand us raster data in.
type Color [3]uint8

var (
	Black = Color{0, 0, 0}
	Green = Color{0, 255, 0}
)

// Size is a width/height pair in pixels.
type Size struct {
	W int `json:"w" yaml:"width"`
	H int `json:"h" yaml:"height"`
}

// Frame is a packed BGR raster. Pix holds W*H*3 bytes in row-major
// order with no per-row padding.
type Frame struct {
	Pix []byte
	W   int
	H   int
}

// NewFrame returns an all-black frame of the given dimensions.
func NewFrame(w, h int) *Frame {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Frame{Pix: make([]byte, w*h*channels), W: w, H: h}
}

// NewFilledFrame returns a frame of the given size with every pixel set
// to bg.
func NewFilledFrame(size Size, bg Color) *Frame {
	f := NewFrame(size.W, size.H)
	if bg == Black {
		return f
	}
	for i := 0; i < len(f.Pix); i += channels {
		f.Pix[i] = bg[0]
		f.Pix[i+1] = bg[1]
		f.Pix[i+2] = bg[2]
	}
	return f
}

// Size returns the frame dimensions.
func (f *Frame) Size() Size {
	return Size{W: f.W, H: f.H}
}

// Empty reports whether the frame holds no pixels.
func (f *Frame) Empty() bool {
	return f == nil || f.W <= 0 || f.H <= 0 || len(f.Pix) == 0
}

// Clone returns a deep copy that shares no bytes with the receiver.
func (f *Frame) Clone() *Frame {
	out := &Frame{Pix: make([]byte, len(f.Pix)), W: f.W, H: f.H}
	copy(out.Pix, f.Pix)
	return out
}

// Crop copies the region of the frame covered by box into a new frame.
// The box is clamped to the raster first, so a box hanging over an edge
// yields only the visible part and a box fully outside yields an empty
// frame. The returned pixels never alias the source.
func (f *Frame) Crop(box BoundingBox) *Frame {
	clip := box.Intersect(f.W, f.H)
	out := NewFrame(clip.W, clip.H)
	for y := 0; y < clip.H; y++ {
		srcOff := ((clip.Y+y)*f.W + clip.X) * channels
		dstOff := y * clip.W * channels
		copy(out.Pix[dstOff:dstOff+clip.W*channels], f.Pix[srcOff:srcOff+clip.W*channels])
	}
	return out
}

// paste copies src into the receiver with its top-left corner at (x, y).
// The caller guarantees src fits inside the receiver.
func (f *Frame) paste(src *Frame, x, y int) {
	for row := 0; row < src.H; row++ {
		dstOff := ((y+row)*f.W + x) * channels
		srcOff := row * src.W * channels
		copy(f.Pix[dstOff:dstOff+src.W*channels], src.Pix[srcOff:srcOff+src.W*channels])
	}
}

// ToImage converts the BGR raster to an NRGBA image for use with
// image-processing libraries.
func (f *Frame) ToImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, f.W, f.H))
	for y := 0; y < f.H; y++ {
		src := f.Pix[y*f.W*channels : (y+1)*f.W*channels]
		dst := img.Pix[y*img.Stride : y*img.Stride+f.W*4]
		for x := 0; x < f.W; x++ {
			dst[x*4+0] = src[x*channels+2]
			dst[x*4+1] = src[x*channels+1]
			dst[x*4+2] = src[x*channels+0]
			dst[x*4+3] = 0xff
		}
	}
	return img
}

// FrameFromImage converts any image.Image back to a packed BGR frame.
// *image.NRGBA takes a fast path that avoids per-pixel color conversion.
func FrameFromImage(img image.Image) *Frame {
	bounds := img.Bounds()
	f := NewFrame(bounds.Dx(), bounds.Dy())
	if n, ok := img.(*image.NRGBA); ok {
		for y := 0; y < f.H; y++ {
			src := n.Pix[y*n.Stride : y*n.Stride+f.W*4]
			dst := f.Pix[y*f.W*channels : (y+1)*f.W*channels]
			for x := 0; x < f.W; x++ {
				dst[x*channels+0] = src[x*4+2]
				dst[x*channels+1] = src[x*4+1]
				dst[x*channels+2] = src[x*4+0]
			}
		}
		return f
	}
	for y := 0; y < f.H; y++ {
		for x := 0; x < f.W; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			off := (y*f.W + x) * channels
			f.Pix[off+0] = uint8(b >> 8)
			f.Pix[off+1] = uint8(g >> 8)
			f.Pix[off+2] = uint8(r >> 8)
		}
	}
	return f
}
