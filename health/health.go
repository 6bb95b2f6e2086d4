// Package health probes the sidecar services this server depends on
// and publishes per-service up gauges.
package health

import (
	"MeasuresServer/logger"
	"MeasuresServer/monitor"
	"context"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const probeTimeout = 5 * time.Second

// Target is one sidecar to watch. URL is the full probe endpoint.
type Target struct {
	Name string
	URL  string
}

// Watch probes every target until ctx is cancelled, logging state
// transitions. Run it on its own goroutine; wg is released on exit.
func Watch(ctx context.Context, wg *sync.WaitGroup, targets []Target, interval time.Duration) {
	defer wg.Done()
	if len(targets) == 0 {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	client := resty.New().SetTimeout(probeTimeout)
	up := make(map[string]bool, len(targets))
	probeAll := func() {
		for _, t := range targets {
			ok := probe(ctx, client, t)
			if prev, seen := up[t.Name]; !seen || prev != ok {
				if ok {
					logger.Log().Info("sidecar up", zap.String("service", t.Name), zap.String("url", t.URL))
				} else {
					logger.Log().Warn("sidecar down", zap.String("service", t.Name), zap.String("url", t.URL))
				}
			}
			up[t.Name] = ok
			var v float64
			if ok {
				v = 1
			}
			monitor.SidecarUp.WithLabelValues(t.Name).Set(v)
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	probeAll()
	for {
		select {
		case <-ctx.Done():
			logger.Log().Info("sidecar watcher stopped")
			return
		case <-ticker.C:
			probeAll()
		}
	}
}

func probe(ctx context.Context, client *resty.Client, t Target) bool {
	resp, err := client.R().SetContext(ctx).Get(t.URL)
	if err != nil {
		return false
	}
	return !resp.IsError()
}
