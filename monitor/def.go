// Package monitor exposes process telemetry and request counters on a
// dedicated Prometheus port.
package monitor

import (
	"MeasuresServer/logger"
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Metrics are built at package init so handlers can increment them
// whether or not StartMon is running.
var (
	PID process.Process

	memUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "memory_usage_megabytes",
		Help: "Resident memory in megabytes",
	})
	cpuUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cpu_usage_percent",
		Help: "CPU usage in percent",
	})

	// CropTotal counts crop requests, FramesTotal the frames they
	// produce. SessionsActive tracks live websocket sessions.
	CropTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crop_requests_total",
		Help: "Total number of crop requests processed",
	})
	FramesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "frames_processed_total",
		Help: "Total number of frames built by crop requests",
	})
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_sessions_active",
		Help: "Websocket crop sessions currently allocated",
	})
	SidecarUp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sidecar_up",
		Help: "Whether a sidecar service answered its last probe",
	}, []string{"service"})
)

var srv *http.Server

func prom(port int) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(memUsage, cpuUsage, CropTotal, FramesTotal, SessionsActive, SidecarUp)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log().Error("metrics server stopped", zap.Error(err))
		}
	}()
}

// CheckProcessInfo samples the process and refreshes the gauges.
func CheckProcessInfo() {
	memInfo, _ := PID.MemoryInfo()
	var memMB uint64
	if memInfo != nil {
		memMB = memInfo.RSS / 1024 / 1024
	}
	cpuPercent, _ := PID.CPUPercent()
	memUsage.Set(float64(memMB))
	cpuUsage.Set(math.Round(cpuPercent*100) / 100)
}

// GotPID binds the sampler to the current process.
func GotPID() {
	PID.Pid = int32(os.Getpid())
}

// StartMon serves /metrics on port and samples process stats until ctx
// is cancelled. Run it on its own goroutine.
func StartMon(ctx context.Context, port int) {
	PID = process.Process{}
	GotPID()
	prom(port)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
checkPcs:
	for {
		select {
		case <-ctx.Done():
			break checkPcs
		case <-ticker.C:
			CheckProcessInfo()
		}
	}
	shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Log().Error("metrics server shutdown", zap.Error(err))
	}
}
