// Package video reads, processes and writes video streams. Decoding
// and encoding go through OpenCV; everything between works on the
// facecrop raster so the processing pipeline stays independent of the
// codec layer.
package video

import (
	"fmt"

	"gocv.io/x/gocv"

	"MeasuresServer/facecrop"
)

// Source yields decoded frames in stream order.
type Source interface {
	// Read returns the next frame, or ok=false at end of stream. The
	// returned frame is owned by the caller.
	Read() (frame *facecrop.Frame, ok bool)
	// FPS reports the stream frame rate as declared by the container.
	FPS() float64
	// FrameCount reports the declared number of frames, 0 if unknown.
	// Container metadata can lie, so treat it as a hint.
	FrameCount() int
	Close() error
}

// Opener opens a Source for a path. It exists so the processor can be
// driven by synthetic sources in tests and by other demuxers later.
type Opener interface {
	Open(path string) (Source, error)
}

// FileOpener opens video files through OpenCV.
type FileOpener struct{}

func (FileOpener) Open(path string) (Source, error) {
	return OpenCapture(path)
}

// Capture adapts an OpenCV VideoCapture to Source. The internal Mat is
// reused across reads; frames handed out are copies.
type Capture struct {
	cap *gocv.VideoCapture
	mat gocv.Mat
}

// OpenCapture opens path with OpenCV's demuxer.
func OpenCapture(path string) (*Capture, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if !cap.IsOpened() {
		_ = cap.Close()
		return nil, fmt.Errorf("open %s: no decodable video stream", path)
	}
	return &Capture{cap: cap, mat: gocv.NewMat()}, nil
}

func (c *Capture) Read() (*facecrop.Frame, bool) {
	if ok := c.cap.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, false
	}
	return MatToFrame(c.mat), true
}

func (c *Capture) FPS() float64 {
	return c.cap.Get(gocv.VideoCaptureFPS)
}

func (c *Capture) FrameCount() int {
	n := int(c.cap.Get(gocv.VideoCaptureFrameCount))
	if n < 0 {
		return 0
	}
	return n
}

func (c *Capture) Close() error {
	_ = c.mat.Close()
	return c.cap.Close()
}
