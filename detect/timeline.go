package detect

import (
	"math"

	"MeasuresServer/facecrop"
)

// SampleInterval returns the frame step that captures roughly
// capturePerSec frames out of an fps stream, never less than one.
func SampleInterval(fps float64, capturePerSec int) int {
	if fps <= 0 || capturePerSec <= 0 {
		return 1
	}
	n := int(math.Round(fps / float64(capturePerSec)))
	if n < 1 {
		n = 1
	}
	return n
}

// FilterShortPresences splits one person's detections into presence
// runs and drops runs too short to matter. Detections must be in frame
// order. A new run starts where the time between consecutive samples
// exceeds 1.5x the expected sampling gap, which leaves room for frame
// rate rounding. A run survives when the frames it stands for
// (detections times interval) reach minFrames.
func FilterShortPresences(dets []Detection, fps float64, interval int, minFrames float64) []Detection {
	if len(dets) == 0 {
		return nil
	}
	gap := (float64(interval) / fps) * 1.5
	out := make([]Detection, 0, len(dets))
	flush := func(start, end int) {
		if float64((end-start)*interval) >= minFrames {
			out = append(out, dets[start:end]...)
		}
	}
	runStart := 0
	for i := 1; i < len(dets); i++ {
		dt := float64(dets[i].FrameIdx-dets[i-1].FrameIdx) / fps
		if dt > gap {
			flush(runStart, i)
			runStart = i
		}
	}
	flush(runStart, len(dets))
	return out
}

// UpsampleToEntries expands sampled detections into a per-frame
// timeline. Each detection stands for the frames [FrameIdx,
// FrameIdx+interval). The timeline length is capped at both the video
// frame count and maxFrameIdx, so a sparse tail cannot run past either.
// Frames no detection covers stay empty.
func UpsampleToEntries(dets []Detection, interval, videoFrames, maxFrameIdx int) []facecrop.Entry {
	maxFrame := videoFrames
	if maxFrameIdx < maxFrame {
		maxFrame = maxFrameIdx
	}
	if maxFrame < 0 {
		maxFrame = 0
	}
	entries := make([]facecrop.Entry, maxFrame)
	for _, d := range dets {
		box := d.Box
		for i := d.FrameIdx; i < d.FrameIdx+interval && i < maxFrame; i++ {
			if i < 0 {
				continue
			}
			entries[i] = facecrop.Entry{Box: &box}
		}
	}
	return entries
}
