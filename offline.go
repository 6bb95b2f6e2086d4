package main

import (
	"MeasuresServer/detect"
	"MeasuresServer/facecrop"
	"MeasuresServer/logger"
	"MeasuresServer/video"
	"context"
	"flag"
	"fmt"

	"go.uber.org/zap"
)

// Offline mode crops one video from the command line without starting
// the server: -video, -detections and -out are required together.
var (
	configPath     = flag.String("config", "config.yaml", "path to the yaml config file")
	offlineVideo   = flag.String("video", "", "offline mode: source video to crop")
	offlineDets    = flag.String("detections", "", "offline mode: per-frame detection timeline json")
	offlineOut     = flag.String("out", "", "offline mode: output video path")
	offlineWorkers = flag.Int("workers", 0, "offline mode: parallel crop workers, 0 runs serial")
	offlineDarken  = flag.Bool("darken", true, "offline mode: black out everything outside the face box")
	offlineKeep    = flag.Bool("keep-timing", false, "offline mode: emit placeholder frames where no face was found")
	offlinePadding = flag.Float64("padding", 0.10, "offline mode: box padding as a fraction of box size")
)

func runOffline() error {
	if *offlineDets == "" || *offlineOut == "" {
		return fmt.Errorf("offline mode needs -video, -detections and -out")
	}
	entries, err := detect.LoadEntries(*offlineDets)
	if err != nil {
		return err
	}
	opts := facecrop.DefaultOptions()
	opts.Darken = *offlineDarken
	opts.KeepTiming = *offlineKeep
	opts.PaddingPercent = *offlinePadding

	proc := video.NewProcessor(nil)
	fps, frames, err := proc.Process(context.Background(), *offlineVideo, entries, video.Options{
		Crop:    opts,
		Workers: *offlineWorkers,
	})
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		logger.Log().Warn("no frames produced, nothing to write", zap.String("video", *offlineVideo))
		return nil
	}
	if err := video.WriteVideo(*offlineOut, fps, frames); err != nil {
		return err
	}
	logger.Log().Info("offline crop written",
		zap.String("out", *offlineOut),
		zap.Int("frames", len(frames)),
		zap.Float64("fps", fps))
	return nil
}
