package detect

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"MeasuresServer/facecrop"
)

const defaultTimeout = 30 * time.Second

// Client talks to the face detection and embedding-cluster sidecars.
type Client struct {
	http        *resty.Client
	detectorURL string
	clusterURL  string
}

// NewClient returns a Client for the given base URLs, e.g.
// "http://127.0.0.1:9001". A non-positive timeout falls back to 30s.
func NewClient(detectorURL, clusterURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http:        resty.New().SetTimeout(timeout),
		detectorURL: detectorURL,
		clusterURL:  clusterURL,
	}
}

// DetectFrame sends one JPEG-encoded frame to the detector and returns
// the faces found on it, tagged with frameIdx.
func (c *Client) DetectFrame(ctx context.Context, jpeg []byte, frameIdx int) ([]Detection, error) {
	var out detectResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("image", fmt.Sprintf("frame_%06d.jpg", frameIdx), bytes.NewReader(jpeg)).
		SetFormData(map[string]string{"frame_idx": strconv.Itoa(frameIdx)}).
		SetResult(&out).
		Post(c.detectorURL + "/api/detect")
	if err != nil {
		return nil, fmt.Errorf("detect frame %d: %w", frameIdx, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("detect frame %d: %s: %s", frameIdx, resp.Status(), resp.String())
	}
	dets := make([]Detection, 0, len(out.Faces))
	for _, f := range out.Faces {
		dets = append(dets, Detection{
			FrameIdx:   frameIdx,
			Box:        facecrop.BoundingBox{X: f.FacialArea.X, Y: f.FacialArea.Y, W: f.FacialArea.W, H: f.FacialArea.H},
			Confidence: f.Confidence,
			Embedding:  f.Embedding,
		})
	}
	return dets, nil
}

// Cluster assigns each embedding to one of nClusters groups and
// returns the labels in input order.
func (c *Client) Cluster(ctx context.Context, embeddings [][]float64, nClusters int) ([]int, error) {
	var out clusterResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(clusterRequest{Embeddings: embeddings, NClusters: nClusters}).
		SetResult(&out).
		Post(c.clusterURL + "/api/cluster")
	if err != nil {
		return nil, fmt.Errorf("cluster embeddings: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("cluster embeddings: %s: %s", resp.Status(), resp.String())
	}
	if len(out.Labels) != len(embeddings) {
		return nil, fmt.Errorf("cluster embeddings: got %d labels for %d embeddings", len(out.Labels), len(embeddings))
	}
	return out.Labels, nil
}
