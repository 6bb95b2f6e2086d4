package main

import (
	"MeasuresServer/detect"
	"MeasuresServer/facecrop"
	"MeasuresServer/health"
	"MeasuresServer/logger"
	"MeasuresServer/mobility"
	"MeasuresServer/monitor"
	"MeasuresServer/speech"
	"MeasuresServer/video"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// session is one interactive crop stream. Each session owns its
// Builder, so callers with different options never share state.
type session struct {
	id          string
	builder     *facecrop.Builder
	lastActive  atomic.Int64
	conn        *websocket.Conn
	closeOnce   sync.Once
	cancelTimer chan struct{}
	cancelOnce  sync.Once
}

func (s *session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

func (s *session) idleFor() time.Duration {
	return time.Since(time.Unix(0, s.lastActive.Load()))
}

var (
	sessionMu sync.RWMutex
	sessions  = map[string]*session{}
	upgrader  = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	idleTimeout = 60 * time.Second
	maxSessions = 16
)

func allocSession(opts facecrop.Options) (string, error) {
	inst := &session{
		id:          uuid.New().String(),
		builder:     facecrop.NewBuilder(opts),
		cancelTimer: make(chan struct{}),
	}
	inst.touch()

	sessionMu.Lock()
	if len(sessions) >= maxSessions {
		sessionMu.Unlock()
		return "", errors.New("no free session slots")
	}
	sessions[inst.id] = inst
	sessionMu.Unlock()

	monitor.SessionsActive.Inc()
	return inst.id, nil
}

func releaseSession(sessionID string) bool {
	sessionMu.Lock()
	inst, ok := sessions[sessionID]
	if ok {
		delete(sessions, sessionID)
	}
	sessionMu.Unlock()
	if !ok {
		return false
	}

	inst.closeOnce.Do(func() {
		if inst.conn != nil {
			_ = inst.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session released"))
			_ = inst.conn.Close()
		}
	})
	inst.cancelOnce.Do(func() {
		close(inst.cancelTimer)
	})
	monitor.SessionsActive.Dec()
	return true
}

func startIdleMonitor(inst *session) {
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-inst.cancelTimer:
				return
			case <-ticker.C:
				if inst.idleFor() > idleTimeout {
					_ = releaseSession(inst.id)
					logger.Log().Info("session idle, released", zap.String("session", inst.id))
					return
				}
			}
		}
	}()
}

// stripDataURL drops a data:image/...;base64, prefix if present.
func stripDataURL(b64 string) string {
	if i := strings.Index(b64, ","); i != -1 && strings.HasPrefix(b64, "data:") {
		return b64[i+1:]
	}
	return b64
}

func base64ToFrame(b64 string) (*facecrop.Frame, error) {
	data, err := base64.StdEncoding.DecodeString(stripDataURL(b64))
	if err != nil {
		return nil, err
	}
	return video.DecodeImage(data)
}

func frameToBase64(f *facecrop.Frame) (string, error) {
	jpeg, err := video.EncodeJPEG(f)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(jpeg), nil
}

type wsRequest struct {
	Image string         `json:"image"`
	Entry facecrop.Entry `json:"entry"`
}

type wsReply struct {
	Kind   string `json:"kind,omitempty"`
	Image  string `json:"image,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Error  string `json:"error,omitempty"`
}

func handleSessionFrame(inst *session, msg []byte) wsReply {
	var req wsRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		return wsReply{Error: fmt.Sprintf("invalid request: %v", err)}
	}
	frame, err := base64ToFrame(req.Image)
	if err != nil {
		return wsReply{Error: fmt.Sprintf("invalid image: %v", err)}
	}
	res := inst.builder.Build(frame, req.Entry)
	monitor.FramesTotal.Inc()
	if res.Frame == nil {
		return wsReply{Kind: res.Kind.String()}
	}
	b64, err := frameToBase64(res.Frame)
	if err != nil {
		return wsReply{Error: fmt.Sprintf("encode result: %v", err)}
	}
	return wsReply{Kind: res.Kind.String(), Image: b64, Width: res.Frame.W, Height: res.Frame.H}
}

type cropRequest struct {
	VideoPath      string            `json:"video_path"`
	DetectionsPath string            `json:"detections_path"`
	Detections     []facecrop.Entry  `json:"detections"`
	OutPath        string            `json:"out_path"`
	Options        *facecrop.Options `json:"options"`
	Workers        int               `json:"workers"`
}

type preprocessRequest struct {
	VideoPath string                    `json:"video_path"`
	OutPath   string                    `json:"out_path"`
	Options   *detect.PreprocessOptions `json:"options"`
}

type transcribeRequest struct {
	MediaPath   string `json:"media_path"`
	Language    string `json:"language"`
	Diarize     bool   `json:"diarize"`
	NumSpeakers int    `json:"num_speakers"`
}

type mobilityRequest struct {
	TrajectoryPath string           `json:"trajectory_path"`
	Points         []mobility.Point `json:"points"`
	Timezone       string           `json:"timezone"`
}

type serverDeps struct {
	cfg      configStruct
	proc     *video.Processor
	prep     *detect.Preprocessor
	speech   *speech.Client
	mobility *mobility.Client
}

func buildRouter(deps serverDeps) *gin.Engine {
	r := gin.Default()
	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	r.POST("/api/crop", func(c *gin.Context) {
		var req cropRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.VideoPath == "" || req.OutPath == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "video_path and out_path are required"})
			return
		}
		entries := req.Detections
		if len(entries) == 0 && req.DetectionsPath != "" {
			var err error
			entries, err = detect.LoadEntries(req.DetectionsPath)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		opts := video.Options{Crop: facecrop.DefaultOptions(), Workers: req.Workers}
		if req.Options != nil {
			opts.Crop = *req.Options
		}
		if opts.Workers <= 0 {
			opts.Workers = deps.cfg.WorkersNum
		}

		monitor.CropTotal.Inc()
		fps, frames, err := deps.proc.Process(c.Request.Context(), req.VideoPath, entries, opts)
		if err != nil {
			if errors.Is(err, video.ErrSourceUnavailable) {
				c.JSON(404, gin.H{"error": err.Error()})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}
		monitor.FramesTotal.Add(float64(len(frames)))
		outPath := req.OutPath
		if len(frames) == 0 {
			logger.Log().Warn("no frames produced, output not written", zap.String("video", req.VideoPath))
			outPath = ""
		} else if err := video.WriteVideo(outPath, fps, frames); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": gin.H{
			"out_path": outPath,
			"frames":   len(frames),
			"fps":      fps,
		}})
	})

	r.POST("/api/preprocess", func(c *gin.Context) {
		var req preprocessRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.VideoPath == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "video_path is required"})
			return
		}
		opts := detect.DefaultPreprocessOptions()
		if req.Options != nil {
			opts = *req.Options
		}
		timelines, err := deps.prep.Run(c.Request.Context(), req.VideoPath, opts)
		if err != nil {
			switch {
			case errors.Is(err, video.ErrSourceUnavailable):
				c.JSON(404, gin.H{"error": err.Error()})
			case errors.Is(err, detect.ErrNoFaces):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}
		if req.OutPath != "" {
			if err := detect.SaveTimelines(req.OutPath, timelines); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"data": gin.H{"people": len(timelines), "out_path": req.OutPath}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"people": len(timelines), "timelines": timelines}})
	})

	r.POST("/api/transcribe", func(c *gin.Context) {
		var req transcribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.MediaPath == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "media_path is required"})
			return
		}
		transcript, err := deps.speech.Transcribe(c.Request.Context(), req.MediaPath, speech.TranscribeOptions{
			Language:    req.Language,
			Diarize:     req.Diarize,
			NumSpeakers: req.NumSpeakers,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": gin.H{
			"transcript": transcript,
			"summary":    transcript.Summarize(),
		}})
	})

	r.POST("/api/mobility", func(c *gin.Context) {
		var req mobilityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		points := req.Points
		if len(points) == 0 && req.TrajectoryPath != "" {
			var err error
			points, err = mobility.LoadPoints(req.TrajectoryPath)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		report, err := deps.mobility.Analyze(c.Request.Context(), points, req.Timezone)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": report})
	})

	r.POST("/api/sessions/alloc", func(c *gin.Context) {
		opts := facecrop.DefaultOptions()
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&opts); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		sessionID, err := allocSession(opts)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "All session slots are busy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"sessionID": sessionID,
			"wsURL":     fmt.Sprintf("ws://%s/ws/%s", c.Request.Host, sessionID),
			"timeoutMs": idleTimeout.Milliseconds(),
		})
	})

	r.POST("/api/sessions/:sessionID/release", func(c *gin.Context) {
		sessionID := c.Param("sessionID")
		if !releaseSession(sessionID) {
			c.JSON(404, gin.H{"error": "Session not found"})
			return
		}
		c.JSON(200, gin.H{"data": "Session released"})
	})

	r.GET("/ws/:sessionID", func(c *gin.Context) {
		sessionID := c.Param("sessionID")
		sessionMu.RLock()
		inst, exists := sessions[sessionID]
		sessionMu.RUnlock()
		if !exists {
			c.JSON(404, gin.H{"error": "Session not found"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		sessionMu.Lock()
		inst.conn = conn
		sessionMu.Unlock()
		conn.SetReadLimit(20 * 1024 * 1024)

		startIdleMonitor(inst)
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				releaseSession(sessionID)
				logger.Log().Info("session connection closed", zap.String("session", sessionID), zap.Error(err))
				return
			}
			inst.touch()
			switch mt {
			case websocket.TextMessage:
				reply := handleSessionFrame(inst, msg)
				payload, err := json.Marshal(reply)
				if err != nil {
					continue
				}
				_ = conn.WriteMessage(websocket.TextMessage, payload)
			default:
				payload, _ := json.Marshal(wsReply{Error: "unsupported message type"})
				_ = conn.WriteMessage(websocket.TextMessage, payload)
			}
		}
	})

	r.POST("/api/media/upload", func(c *gin.Context) {
		file, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "File upload failed: " + err.Error()})
			return
		}
		if err := os.MkdirAll("./media", 0o755); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		mediaPath := fmt.Sprintf("./media/%s", file.Filename)
		if err := c.SaveUploadedFile(file, mediaPath); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save file: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": mediaPath})
	})

	return r
}

func main() {
	flag.Parse()
	if err := logger.InitProduction(); err != nil {
		fmt.Println("Failed to init logger:", err)
		return
	}
	defer logger.Sync()

	if *offlineVideo != "" {
		if err := runOffline(); err != nil {
			logger.Log().Error("offline crop failed", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	fmt.Println(strings.Repeat("#", 64))
	CPUNum := runtime.NumCPU()
	runtime.GOMAXPROCS(CPUNum)
	fmt.Printf("CPU Cores: %d\n", CPUNum)
	config, err := loadConfig(*configPath)
	if err != nil {
		fmt.Println("Failed to load config file:", err)
		return
	}
	fmt.Println(" HTTP    Port:", config.HTTPPort)
	fmt.Println(" Metrics Port:", config.MetricsPort)
	fmt.Println("Configured Workers Num:", config.WorkersNum)
	fmt.Println(strings.Repeat("#", 64))
	fmt.Println("")
	if config.WorkersNum <= 0 {
		config.WorkersNum = CPUNum
		fmt.Println(strings.Repeat("!", 64))
		fmt.Println("workersNum not set, defaulting to CPU cores")
		fmt.Println(strings.Repeat("!", 64))
	} else if config.WorkersNum > CPUNum {
		fmt.Println(strings.Repeat("!", 64))
		fmt.Println("workersNum exceeds CPU cores, which may degrade throughput")
		fmt.Println(strings.Repeat("!", 64))
	}
	fmt.Println("")
	if config.WSIdleTimeoutMs > 0 {
		idleTimeout = config.wsIdleTimeout()
	}
	if config.MaxSessions > 0 {
		maxSessions = config.MaxSessions
	}

	detector := detect.NewClient(config.DetectorURL, config.ClusterURL, config.clientTimeout())
	deps := serverDeps{
		cfg:      config,
		proc:     video.NewProcessor(nil),
		prep:     detect.NewPreprocessor(detector, nil),
		speech:   speech.NewClient(config.SpeechURL, 0),
		mobility: mobility.NewClient(config.MobilityURL, config.clientTimeout()),
	}

	ctx, cancel := context.WithCancel(context.Background())
	go monitor.StartMon(ctx, config.MetricsPort)

	targets := []health.Target{
		{Name: "detector", URL: config.DetectorURL + "/api/ping"},
		{Name: "speech", URL: config.SpeechURL + "/api/ping"},
		{Name: "mobility", URL: config.MobilityURL + "/api/ping"},
	}
	if config.ClusterURL != config.DetectorURL {
		targets = append(targets, health.Target{Name: "cluster", URL: config.ClusterURL + "/api/ping"})
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go health.Watch(ctx, &wg, targets, 15*time.Second)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.HTTPPort),
		Handler: buildRouter(deps),
	}
	go func() {
		logger.Log().Info("http server listening", zap.Int("port", config.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log().Error("http server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	fmt.Println("Shutting down")
	cancel()
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Log().Error("http server shutdown", zap.Error(err))
	}
	wg.Wait()
	fmt.Println("Safely exited")
}
