package video

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"MeasuresServer/facecrop"
	"MeasuresServer/logger"
)

// FourCC is the codec tag for written videos, the same MPEG-4 tag the
// upstream detection tooling expects.
const FourCC = "mp4v"

// fallbackFPS is used when the source container declared no frame rate.
const fallbackFPS = 30

// WriteVideo encodes frames to path at fps. The first frame fixes the
// output dimensions; frames of any other size are skipped with a
// warning rather than corrupting the container.
func WriteVideo(path string, fps float64, frames []*facecrop.Frame) error {
	if len(frames) == 0 {
		return errors.New("write video: no frames")
	}
	if fps <= 0 {
		logger.Log().Warn("no frame rate declared, writing at fallback",
			zap.String("path", path),
			zap.Float64("fallback_fps", fallbackFPS))
		fps = fallbackFPS
	}
	size := frames[0].Size()
	w, err := gocv.VideoWriterFile(path, FourCC, fps, size.W, size.H, true)
	if err != nil {
		return fmt.Errorf("write video %s: %w", path, err)
	}
	defer w.Close()
	if !w.IsOpened() {
		return fmt.Errorf("write video %s: encoder did not open", path)
	}

	for i, f := range frames {
		if f.Size() != size {
			logger.Log().Warn("skipping frame with mismatched size",
				zap.Int("frame", i),
				zap.Int("w", f.W), zap.Int("h", f.H),
				zap.Int("want_w", size.W), zap.Int("want_h", size.H))
			continue
		}
		mat, err := FrameToMat(f)
		if err != nil {
			return fmt.Errorf("write video %s: frame %d: %w", path, i, err)
		}
		werr := w.Write(mat)
		_ = mat.Close()
		if werr != nil {
			return fmt.Errorf("write video %s: frame %d: %w", path, i, werr)
		}
	}
	return nil
}
