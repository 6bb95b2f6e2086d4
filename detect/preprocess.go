package detect

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"MeasuresServer/facecrop"
	"MeasuresServer/logger"
	"MeasuresServer/video"
)

// ErrNoFaces reports that no usable face crossed the confidence
// threshold, so there is nothing to cluster.
var ErrNoFaces = errors.New("no faces detected above threshold")

// PreprocessOptions tune the sampling and grouping pass.
type PreprocessOptions struct {
	// CapturePerSec is how many frames per second are sent to the
	// detector. Low rates keep the pass cheap; clustering quality
	// rises with more samples.
	CapturePerSec int `json:"capture_per_sec" yaml:"capture_per_sec"`
	// Threshold is the minimum detector confidence for a face to take
	// part in clustering.
	Threshold float64 `json:"threshold" yaml:"threshold"`
	// MinSecPresent drops cluster presences shorter than this many
	// seconds of video.
	MinSecPresent float64 `json:"min_sec_present" yaml:"min_sec_present"`
	// NClusters is the number of people to separate; interviews have
	// two.
	NClusters int `json:"n_clusters" yaml:"n_clusters"`
	// MaxFrames caps how many sampled frames are detected, 0 means the
	// whole video.
	MaxFrames int `json:"max_frames" yaml:"max_frames"`
}

// DefaultPreprocessOptions returns the standard interview settings.
func DefaultPreprocessOptions() PreprocessOptions {
	return PreprocessOptions{
		CapturePerSec: 2,
		Threshold:     0.95,
		MinSecPresent: 3,
		NClusters:     2,
	}
}

// Preprocessor runs the full sampling + detection + clustering pass
// over a video and emits one per-frame timeline per detected person.
type Preprocessor struct {
	client *Client
	opener video.Opener
	encode func(*facecrop.Frame) ([]byte, error)
}

// NewPreprocessor wires a Preprocessor to the sidecar client; nil
// opener means OpenCV file capture.
func NewPreprocessor(client *Client, opener video.Opener) *Preprocessor {
	if opener == nil {
		opener = video.FileOpener{}
	}
	return &Preprocessor{
		client: client,
		opener: opener,
		encode: video.EncodeJPEG,
	}
}

// Run samples path at the configured rate, detects faces on the
// sampled frames, clusters the confident ones into people, drops
// fleeting presences, and upsamples what is left into per-frame
// timelines keyed by cluster.
func (p *Preprocessor) Run(ctx context.Context, path string, opts PreprocessOptions) (map[int][]facecrop.Entry, error) {
	if opts.NClusters < 1 {
		return nil, fmt.Errorf("preprocess %s: n_clusters must be at least 1", path)
	}

	src, err := p.opener.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", video.ErrSourceUnavailable, err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			logger.Log().Warn("closing video source", zap.String("path", path), zap.Error(cerr))
		}
	}()

	fps := src.FPS()
	if fps <= 0 {
		logger.Log().Warn("container reports no frame rate, assuming 30", zap.String("path", path))
		fps = 30
	}
	interval := SampleInterval(fps, opts.CapturePerSec)

	var (
		dets      []Detection
		frameIdx  int
		captured  int
		detFailed int
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, ok := src.Read()
		if !ok {
			break
		}
		if frameIdx%interval == 0 {
			found, derr := p.detectOne(ctx, frame, frameIdx)
			if derr != nil {
				detFailed++
				logger.Log().Warn("frame detection failed, skipping sample",
					zap.Int("frame", frameIdx), zap.Error(derr))
			} else {
				dets = append(dets, found...)
			}
			captured++
		}
		frameIdx++
		if opts.MaxFrames > 0 && captured >= opts.MaxFrames {
			break
		}
	}

	videoFrames := src.FrameCount()
	if videoFrames <= 0 {
		videoFrames = frameIdx
	}

	byCluster, err := p.clusterDetections(ctx, dets, opts)
	if err != nil {
		return nil, err
	}

	maxFrameIdx := 0
	for _, d := range dets {
		if d.FrameIdx > maxFrameIdx {
			maxFrameIdx = d.FrameIdx
		}
	}
	maxFrameIdx += interval

	minFrames := fps * opts.MinSecPresent
	out := make(map[int][]facecrop.Entry, opts.NClusters)
	for c := 0; c < opts.NClusters; c++ {
		kept := FilterShortPresences(byCluster[c], fps, interval, minFrames)
		out[c] = UpsampleToEntries(kept, interval, videoFrames, maxFrameIdx)
	}

	logger.Log().Info("video preprocessed",
		zap.String("path", path),
		zap.Float64("fps", fps),
		zap.Int("frames_read", frameIdx),
		zap.Int("frames_sampled", captured),
		zap.Int("samples_failed", detFailed),
		zap.Int("detections", len(dets)),
		zap.Int("clusters", opts.NClusters))
	return out, nil
}

func (p *Preprocessor) detectOne(ctx context.Context, frame *facecrop.Frame, frameIdx int) ([]Detection, error) {
	jpeg, err := p.encode(frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame %d: %w", frameIdx, err)
	}
	return p.client.DetectFrame(ctx, jpeg, frameIdx)
}

// clusterDetections sends the embeddings of confident detections to the
// cluster service and groups the detections by the returned labels.
// Detections below the threshold take no part, mirroring how unsure
// faces are left out of speaker assignment.
func (p *Preprocessor) clusterDetections(ctx context.Context, dets []Detection, opts PreprocessOptions) (map[int][]Detection, error) {
	eligible := make([]int, 0, len(dets))
	embeddings := make([][]float64, 0, len(dets))
	for i, d := range dets {
		if d.Confidence > opts.Threshold && len(d.Embedding) > 0 {
			eligible = append(eligible, i)
			embeddings = append(embeddings, d.Embedding)
		}
	}
	if len(embeddings) == 0 {
		return nil, ErrNoFaces
	}
	if len(embeddings) < opts.NClusters {
		return nil, fmt.Errorf("preprocess: %d confident faces cannot form %d clusters", len(embeddings), opts.NClusters)
	}

	labels, err := p.client.Cluster(ctx, embeddings, opts.NClusters)
	if err != nil {
		return nil, err
	}

	byCluster := make(map[int][]Detection, opts.NClusters)
	for i, label := range labels {
		byCluster[label] = append(byCluster[label], dets[eligible[i]])
	}
	return byCluster, nil
}
