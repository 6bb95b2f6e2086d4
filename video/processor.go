package video

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"MeasuresServer/facecrop"
	"MeasuresServer/logger"
)

// ErrSourceUnavailable reports that the input video could not be opened
// or exposes no readable stream. Nothing was processed when a run
// returns it.
var ErrSourceUnavailable = errors.New("video source unavailable")

// Options configure one crop run.
type Options struct {
	// Crop is the per-frame policy handed to the face frame builder.
	Crop facecrop.Options
	// Workers caps concurrent frame builds. Zero or one runs serially;
	// more spreads the pixel work over a pool while the output keeps
	// source order.
	Workers int
}

// Processor turns a video plus a detection timeline into face frames.
type Processor struct {
	opener Opener
}

// NewProcessor returns a Processor reading through opener; nil opener
// means OpenCV file capture.
func NewProcessor(opener Opener) *Processor {
	if opener == nil {
		opener = FileOpener{}
	}
	return &Processor{opener: opener}
}

// Process decodes path and builds one face frame per detection entry,
// returning the source frame rate and the produced frames in source
// order. Omitted frames (no detection, timing not kept) are dropped
// from the result.
//
// Frames and entries advance in lockstep and the run stops at the end
// of the shorter side: a timeline shorter than the video deliberately
// truncates the output, which is how callers crop a leading segment.
// Cancelling ctx abandons the run without partial results.
func (p *Processor) Process(ctx context.Context, path string, entries []facecrop.Entry, opts Options) (float64, []*facecrop.Frame, error) {
	src, err := p.opener.Open(path)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			logger.Log().Warn("closing video source", zap.String("path", path), zap.Error(cerr))
		}
	}()

	fps := src.FPS()
	if fc := src.FrameCount(); fc > 0 && len(entries) < fc {
		logger.Log().Info("detection timeline shorter than video, output truncates",
			zap.String("path", path),
			zap.Int("entries", len(entries)),
			zap.Int("video_frames", fc))
	}

	builder := facecrop.NewBuilder(opts.Crop)
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	var results []facecrop.Result
	if workers == 1 {
		results, err = buildSerial(ctx, src, entries, builder)
	} else {
		results, err = buildParallel(ctx, src, entries, builder, workers)
	}
	if err != nil {
		return fps, nil, err
	}

	out := make([]*facecrop.Frame, 0, len(results))
	var masked, composited, placeholder, omitted int
	for _, r := range results {
		switch r.Kind {
		case facecrop.FrameMasked:
			masked++
		case facecrop.FrameComposited:
			composited++
		case facecrop.FramePlaceholder:
			placeholder++
		default:
			omitted++
			continue
		}
		out = append(out, r.Frame)
	}
	logger.Log().Info("video processed",
		zap.String("path", path),
		zap.Float64("fps", fps),
		zap.Int("frames_in", len(results)),
		zap.Int("frames_out", len(out)),
		zap.Int("masked", masked),
		zap.Int("composited", composited),
		zap.Int("placeholder", placeholder),
		zap.Int("omitted", omitted))
	return fps, out, nil
}

func buildSerial(ctx context.Context, src Source, entries []facecrop.Entry, builder *facecrop.Builder) ([]facecrop.Result, error) {
	results := make([]facecrop.Result, 0, len(entries))
	for i := 0; i < len(entries); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, ok := src.Read()
		if !ok {
			break
		}
		results = append(results, builder.Build(frame, entries[i]))
	}
	return results, nil
}

type buildJob struct {
	idx   int
	frame *facecrop.Frame
	entry facecrop.Entry
}

type buildDone struct {
	idx int
	res facecrop.Result
}

// buildParallel keeps decoding serial (one producer walking the source)
// and spreads builder work over a pool. Results come back indexed and
// are drained in order through a pending map, so the output is
// identical to the serial path.
func buildParallel(ctx context.Context, src Source, entries []facecrop.Entry, builder *facecrop.Builder, workers int) ([]facecrop.Result, error) {
	jobs := make(chan buildJob, workers)
	done := make(chan buildDone, workers)

	go func() {
		defer close(jobs)
		for i := 0; i < len(entries); i++ {
			frame, ok := src.Read()
			if !ok {
				return
			}
			select {
			case jobs <- buildJob{idx: i, frame: frame, entry: entries[i]}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				done <- buildDone{idx: j.idx, res: builder.Build(j.frame, j.entry)}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	pending := make(map[int]facecrop.Result)
	ordered := make([]facecrop.Result, 0, len(entries))
	next := 0
	for d := range done {
		pending[d.idx] = d.res
		for {
			res, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			ordered = append(ordered, res)
			next++
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ordered, nil
}
