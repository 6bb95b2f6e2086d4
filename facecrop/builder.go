package facecrop

import (
	"go.uber.org/zap"

	"MeasuresServer/logger"
)

// FrameKind tags how a face frame was produced.
type FrameKind int

const (
	// FrameOmitted: no detection and timing is not being kept, so the
	// frame contributes nothing to the output.
	FrameOmitted FrameKind = iota
	// FrameMasked keeps the source dimensions with everything outside
	// the detection box blacked out.
	FrameMasked
	// FrameComposited is a padded crop centered on the target canvas.
	FrameComposited
	// FramePlaceholder is an all-black stand-in that keeps the output
	// timeline aligned with the source.
	FramePlaceholder
)

func (k FrameKind) String() string {
	switch k {
	case FrameMasked:
		return "masked"
	case FrameComposited:
		return "composited"
	case FramePlaceholder:
		return "placeholder"
	default:
		return "omitted"
	}
}

// Options control how face frames are produced.
type Options struct {
	// Darken selects masking over crop-and-center for frames with a
	// detection, and source-sized placeholders for frames without one.
	Darken bool `json:"darken" yaml:"darken"`
	// KeepTiming emits a placeholder for every undetected frame
	// instead of dropping it, preserving the source frame count.
	KeepTiming bool `json:"keep_timing" yaml:"keep_timing"`
	// DefaultSize is the canvas for composited frames, and for
	// placeholders when Darken is off.
	DefaultSize Size `json:"default_size" yaml:"default_size"`
	// PaddingPercent widens the detection box on every side before
	// cropping, as a fraction of the box dimensions.
	PaddingPercent float64 `json:"padding_percent" yaml:"padding_percent"`
	// Background fills the canvas around a centered crop.
	Background Color `json:"-" yaml:"-"`
}

// DefaultOptions returns the standard settings: darken on, original
// timing off, a 512x512 canvas, 10% padding, black background.
func DefaultOptions() Options {
	return Options{
		Darken:         true,
		KeepTiming:     false,
		DefaultSize:    Size{W: 512, H: 512},
		PaddingPercent: 0.10,
		Background:     Black,
	}
}

// Result pairs a produced frame with how it was produced. Frame is nil
// exactly when Kind is FrameOmitted.
type Result struct {
	Kind  FrameKind
	Frame *Frame
}

// Builder turns source frames plus detection entries into face frames
// under one fixed Options set, so every frame of a video gets the same
// treatment.
type Builder struct {
	opts Options
}

// NewBuilder returns a Builder for opts. A zero DefaultSize falls back
// to the default canvas and negative padding is treated as zero.
func NewBuilder(opts Options) *Builder {
	if opts.DefaultSize.W <= 0 || opts.DefaultSize.H <= 0 {
		opts.DefaultSize = DefaultOptions().DefaultSize
	}
	if opts.PaddingPercent < 0 {
		opts.PaddingPercent = 0
	}
	return &Builder{opts: opts}
}

// Options returns the settings the builder was created with.
func (b *Builder) Options() Options {
	return b.opts
}

// Decide returns the kind of frame Build will produce for the entry,
// without touching any pixels.
func (b *Builder) Decide(e Entry) FrameKind {
	if e.HasBox() {
		if b.opts.Darken {
			return FrameMasked
		}
		return FrameComposited
	}
	if b.opts.KeepTiming {
		return FramePlaceholder
	}
	return FrameOmitted
}

// Build produces the face frame for one source frame and its detection
// entry. Detection boxes that do not fit the source frame are clamped
// and logged rather than rejected, so a single bad detection cannot
// abort a whole video.
func (b *Builder) Build(f *Frame, e Entry) Result {
	kind := b.Decide(e)
	switch kind {
	case FrameMasked:
		box := *e.Box
		warnOutOfBounds(box, f)
		return Result{Kind: kind, Frame: MaskOutside(f, box)}
	case FrameComposited:
		box := *e.Box
		warnOutOfBounds(box, f)
		frame := CropAndCenter(f, box, b.opts.PaddingPercent, b.opts.DefaultSize, b.opts.Background)
		return Result{Kind: kind, Frame: frame}
	case FramePlaceholder:
		if b.opts.Darken {
			return Result{Kind: kind, Frame: NewFrame(f.W, f.H)}
		}
		return Result{Kind: kind, Frame: NewFrame(b.opts.DefaultSize.W, b.opts.DefaultSize.H)}
	default:
		return Result{Kind: FrameOmitted}
	}
}

// warnOutOfBounds logs detection boxes that hang over the frame edge.
// Padding-induced overflow is expected near borders and stays quiet;
// this only fires when the raw detector output itself does not fit.
func warnOutOfBounds(box BoundingBox, f *Frame) {
	if clip := box.Intersect(f.W, f.H); clip != box {
		logger.Log().Warn("detection box exceeds frame bounds, clamping",
			zap.Stringer("box", box),
			zap.Int("frame_w", f.W),
			zap.Int("frame_h", f.H))
	}
}
