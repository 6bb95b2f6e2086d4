package speech

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// Transcription runs can sit behind model load and alignment, so the
// default timeout is generous.
const defaultTimeout = 10 * time.Minute

// TranscribeOptions tune one transcription request.
type TranscribeOptions struct {
	// Language hints the model; empty means auto-detect.
	Language string `json:"language" yaml:"language"`
	// Diarize asks for per-speaker labels on segments and words.
	Diarize bool `json:"diarize" yaml:"diarize"`
	// NumSpeakers pins the diarizer to a speaker count, 0 lets it pick.
	NumSpeakers int `json:"num_speakers" yaml:"num_speakers"`
}

// Client talks to the transcription sidecar.
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

// Transcribe uploads the media file at path and returns its transcript.
func (c *Client) Transcribe(ctx context.Context, path string, opts TranscribeOptions) (*Transcript, error) {
	form := map[string]string{
		"diarize": strconv.FormatBool(opts.Diarize),
	}
	if opts.Language != "" {
		form["language"] = opts.Language
	}
	if opts.NumSpeakers > 0 {
		form["num_speakers"] = strconv.Itoa(opts.NumSpeakers)
	}

	var out Transcript
	resp, err := c.http.R().
		SetContext(ctx).
		SetFile("file", path).
		SetFormData(form).
		SetResult(&out).
		Post(c.baseURL + "/transcribe")
	if err != nil {
		return nil, fmt.Errorf("transcribe %s: %w", path, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("transcribe %s: %s: %s", path, resp.Status(), resp.String())
	}
	return &out, nil
}
