// Package mobility is the client for the GPS measures sidecar. The
// server side owns the math; this package carries trajectories up and
// measure tables back.
package mobility

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultTimeout = 2 * time.Minute

// Point is one GPS fix.
type Point struct {
	Timestamp int64   `json:"timestamp"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Accuracy  float64 `json:"accuracy,omitempty"`
}

// Hourly holds movement measures for one clock hour.
type Hourly struct {
	Hour        string  `json:"hour"`
	ObservedMin float64 `json:"observed_min"`
	MoveMin     float64 `json:"move_min"`
	PauseMin    float64 `json:"pause_min"`
	DistanceKm  float64 `json:"distance_km"`
	HomeMin     float64 `json:"home_min"`
}

// Daily holds movement measures for one calendar day.
type Daily struct {
	Date             string  `json:"date"`
	ObservedMin      float64 `json:"observed_min"`
	MoveMin          float64 `json:"move_min"`
	DistanceKm       float64 `json:"distance_km"`
	HomeMin          float64 `json:"home_min"`
	HomeMaxDistKm    float64 `json:"home_max_dist_km"`
	RadiusGyrationKm float64 `json:"radius_gyration_km"`
}

// Summary aggregates a whole trajectory.
type Summary struct {
	Days            int     `json:"days"`
	TotalDistanceKm float64 `json:"total_distance_km"`
	MeanDailyKm     float64 `json:"mean_daily_km"`
	MeanHomeMin     float64 `json:"mean_home_min"`
}

// Report is the sidecar's full response.
type Report struct {
	Hourly  []Hourly `json:"hourly"`
	Daily   []Daily  `json:"daily"`
	Summary Summary  `json:"summary"`
}

type analyzeRequest struct {
	Timezone string  `json:"timezone"`
	Points   []Point `json:"points"`
}

// Client talks to the mobility sidecar.
type Client struct {
	http    *resty.Client
	baseURL string
}

// NewClient returns a Client for the service base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http:    resty.New().SetTimeout(timeout),
		baseURL: baseURL,
	}
}

// Analyze sends a trajectory and returns hourly, daily and summary
// measures. The timezone names the participant's local zone, e.g.
// "America/New_York"; empty means UTC.
func (c *Client) Analyze(ctx context.Context, points []Point, timezone string) (*Report, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("analyze trajectory: no points")
	}
	var out Report
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(analyzeRequest{Timezone: timezone, Points: points}).
		SetResult(&out).
		Post(c.baseURL + "/api/gps")
	if err != nil {
		return nil, fmt.Errorf("analyze trajectory: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("analyze trajectory: %s: %s", resp.Status(), resp.String())
	}
	return &out, nil
}

// LoadPoints reads a trajectory from a JSON file.
func LoadPoints(path string) ([]Point, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load trajectory: %w", err)
	}
	var points []Point
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("load trajectory %s: %w", path, err)
	}
	return points, nil
}
