// Package speech is the client for the transcription sidecar, which
// returns diarized transcripts in the segment layout the rest of the
// measures tooling consumes.
package speech

import (
	"sort"
	"strings"
)

// Word is a single aligned word within a segment.
type Word struct {
	Word    string  `json:"word"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Score   float64 `json:"score,omitempty"`
	Speaker string  `json:"speaker,omitempty"`
}

// Segment is one contiguous utterance.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
	Words   []Word  `json:"words,omitempty"`
}

// Transcript is the transcription service response.
type Transcript struct {
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
}

// Summary condenses a transcript for logging and API responses.
type Summary struct {
	Language   string   `json:"language"`
	Segments   int      `json:"segments"`
	Words      int      `json:"words"`
	Speakers   []string `json:"speakers"`
	SpeechSecs float64  `json:"speech_secs"`
}

// Summarize aggregates segment counts, word counts, distinct speakers
// in sorted order, and the summed segment durations.
func (t *Transcript) Summarize() Summary {
	s := Summary{Language: t.Language, Segments: len(t.Segments)}
	speakers := map[string]bool{}
	for _, seg := range t.Segments {
		s.Words += len(seg.Words)
		s.SpeechSecs += seg.End - seg.Start
		if seg.Speaker != "" {
			speakers[seg.Speaker] = true
		}
	}
	for sp := range speakers {
		s.Speakers = append(s.Speakers, sp)
	}
	sort.Strings(s.Speakers)
	return s
}

// BySpeaker groups segments per speaker label. Segments without a
// label group under the empty string.
func (t *Transcript) BySpeaker() map[string][]Segment {
	out := map[string][]Segment{}
	for _, seg := range t.Segments {
		out[seg.Speaker] = append(out[seg.Speaker], seg)
	}
	return out
}

// Text joins all segment texts in order, trimmed and space separated.
func (t *Transcript) Text() string {
	parts := make([]string, 0, len(t.Segments))
	for _, seg := range t.Segments {
		if txt := strings.TrimSpace(seg.Text); txt != "" {
			parts = append(parts, txt)
		}
	}
	return strings.Join(parts, " ")
}
