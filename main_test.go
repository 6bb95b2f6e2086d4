package main

import (
	"MeasuresServer/detect"
	"MeasuresServer/facecrop"
	"MeasuresServer/mobility"
	"MeasuresServer/speech"
	"MeasuresServer/video"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func resetSessions() {
	sessionMu.Lock()
	sessions = map[string]*session{}
	sessionMu.Unlock()
}

func testDeps() serverDeps {
	cfg := defaultConfig()
	cfg.WorkersNum = 1
	detector := detect.NewClient(cfg.DetectorURL, cfg.ClusterURL, time.Second)
	return serverDeps{
		cfg:      cfg,
		proc:     video.NewProcessor(nil),
		prep:     detect.NewPreprocessor(detector, nil),
		speech:   speech.NewClient(cfg.SpeechURL, 0),
		mobility: mobility.NewClient(cfg.MobilityURL, time.Second),
	}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestSessions_AllocRelease(t *testing.T) {
	resetSessions()
	old := maxSessions
	maxSessions = 2
	defer func() { maxSessions = old }()

	a, err := allocSession(facecrop.DefaultOptions())
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	b, err := allocSession(facecrop.DefaultOptions())
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	_, err = allocSession(facecrop.DefaultOptions())
	assert.ErrorContains(t, err, "no free session slots")

	assert.True(t, releaseSession(a))
	assert.False(t, releaseSession(a))

	c, err := allocSession(facecrop.DefaultOptions())
	if err != nil {
		t.Fatalf("alloc after release: %v", err)
	}
	releaseSession(b)
	releaseSession(c)
}

func TestSessions_IdleRelease(t *testing.T) {
	resetSessions()
	old := idleTimeout
	idleTimeout = 10 * time.Millisecond
	defer func() { idleTimeout = old }()

	id, err := allocSession(facecrop.DefaultOptions())
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	sessionMu.RLock()
	inst := sessions[id]
	sessionMu.RUnlock()
	startIdleMonitor(inst)

	assert.Eventually(t, func() bool {
		sessionMu.RLock()
		_, ok := sessions[id]
		sessionMu.RUnlock()
		return !ok
	}, 3*time.Second, 50*time.Millisecond)
}

func TestStripDataURL(t *testing.T) {
	assert.Equal(t, "abcd", stripDataURL("data:image/jpeg;base64,abcd"))
	assert.Equal(t, "abcd", stripDataURL("abcd"))
	assert.Equal(t, "data:nocommahere", stripDataURL("data:nocommahere"))
}

func TestHandleSessionFrame_Errors(t *testing.T) {
	inst := &session{builder: facecrop.NewBuilder(facecrop.DefaultOptions())}

	reply := handleSessionFrame(inst, []byte("{not json"))
	assert.Contains(t, reply.Error, "invalid request")

	msg, err := json.Marshal(wsRequest{Image: "!!!not base64!!!"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	reply = handleSessionFrame(inst, msg)
	assert.Contains(t, reply.Error, "invalid image")
}

func TestRouter_Endpoints(t *testing.T) {
	resetSessions()
	deps := testDeps()

	speechSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(speech.Transcript{
			Language: "en",
			Segments: []speech.Segment{
				{Start: 0, End: 2, Text: "hello there", Speaker: "SPEAKER_00"},
				{Start: 2, End: 3.5, Text: "hi", Speaker: "SPEAKER_01"},
			},
		})
	}))
	defer speechSrv.Close()
	deps.speech = speech.NewClient(speechSrv.URL, 0)

	gpsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mobility.Report{
			Summary: mobility.Summary{Days: 1, TotalDistanceKm: 2.5},
		})
	}))
	defer gpsSrv.Close()
	deps.mobility = mobility.NewClient(gpsSrv.URL, time.Second)

	srv := httptest.NewServer(buildRouter(deps))
	defer srv.Close()

	t.Run("ping answers pong", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/ping")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		body := decodeBody(t, resp)
		assert.Equal(t, "pong", body["message"])
	})

	t.Run("session lifecycle over http", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/sessions/alloc", facecrop.Options{Darken: false, DefaultSize: facecrop.Size{W: 64, H: 64}})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		sessionID, _ := body["sessionID"].(string)
		assert.NotEmpty(t, sessionID)
		assert.Contains(t, body["wsURL"], "/ws/"+sessionID)

		resp = postJSON(t, srv.URL+"/api/sessions/"+sessionID+"/release", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		resp = postJSON(t, srv.URL+"/api/sessions/"+sessionID+"/release", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("crop validates required paths", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/crop", cropRequest{VideoPath: "a.mp4"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Contains(t, body["error"], "out_path")
	})

	t.Run("crop rejects unreadable detections file", func(t *testing.T) {
		dir := t.TempDir()
		resp := postJSON(t, srv.URL+"/api/crop", cropRequest{
			VideoPath:      filepath.Join(dir, "in.mp4"),
			OutPath:        filepath.Join(dir, "out.mp4"),
			DetectionsPath: filepath.Join(dir, "missing.json"),
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("transcribe proxies and summarizes", func(t *testing.T) {
		dir := t.TempDir()
		media := filepath.Join(dir, "interview.wav")
		if err := os.WriteFile(media, []byte("RIFFfake"), 0o644); err != nil {
			t.Fatalf("write media: %v", err)
		}
		resp := postJSON(t, srv.URL+"/api/transcribe", transcribeRequest{MediaPath: media, Diarize: true})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		data, _ := body["data"].(map[string]any)
		summary, _ := data["summary"].(map[string]any)
		assert.Equal(t, "en", summary["language"])
		assert.InDelta(t, 3.5, summary["speech_secs"], 1e-9)
		assert.Len(t, summary["speakers"], 2)
	})

	t.Run("transcribe requires media path", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/transcribe", transcribeRequest{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("mobility proxies inline points", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/mobility", mobilityRequest{
			Points:   []mobility.Point{{Timestamp: 1700000000, Lat: 1, Lon: 2}},
			Timezone: "UTC",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		data, _ := body["data"].(map[string]any)
		summary, _ := data["summary"].(map[string]any)
		assert.InDelta(t, 1, summary["days"], 1e-9)
	})

	t.Run("preprocess requires video path", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/preprocess", preprocessRequest{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestWsReply_JSONShape(t *testing.T) {
	payload, err := json.Marshal(wsReply{Kind: "masked", Image: "aGk=", Width: 4, Height: 2})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	assert.JSONEq(t, `{"kind":"masked","image":"aGk=","width":4,"height":2}`, string(payload))

	payload, err = json.Marshal(wsReply{Kind: "omitted"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	assert.JSONEq(t, `{"kind":"omitted"}`, string(payload))
}

func TestWsRequest_EntryOptional(t *testing.T) {
	var req wsRequest
	if err := json.Unmarshal([]byte(`{"image":"aGk="}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	assert.False(t, req.Entry.HasBox())

	raw := fmt.Sprintf(`{"image":"aGk=","entry":{"bb_x":%d,"bb_y":%d,"bb_w":%d,"bb_h":%d}}`, 3, 4, 10, 12)
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	assert.True(t, req.Entry.HasBox())
	assert.Equal(t, 10, req.Entry.Box.W)
}
