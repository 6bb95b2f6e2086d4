package detect

import (
	"encoding/json"
	"fmt"
	"os"

	"MeasuresServer/facecrop"
)

// LoadEntries reads a per-frame detection timeline from a JSON file:
// an array of empty objects and bb_x/bb_y/bb_w/bb_h objects.
func LoadEntries(path string) ([]facecrop.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load detections: %w", err)
	}
	var entries []facecrop.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("load detections %s: %w", path, err)
	}
	return entries, nil
}

// SaveEntries writes a timeline as indented JSON.
func SaveEntries(path string, entries []facecrop.Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("save detections %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save detections: %w", err)
	}
	return nil
}

// SaveTimelines writes the preprocess output, one timeline per person,
// keyed by cluster id.
func SaveTimelines(path string, timelines map[int][]facecrop.Entry) error {
	data, err := json.MarshalIndent(timelines, "", "  ")
	if err != nil {
		return fmt.Errorf("save timelines %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save timelines: %w", err)
	}
	return nil
}

// LoadTimelines reads a preprocess output file back.
func LoadTimelines(path string) (map[int][]facecrop.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load timelines: %w", err)
	}
	var timelines map[int][]facecrop.Entry
	if err := json.Unmarshal(data, &timelines); err != nil {
		return nil, fmt.Errorf("load timelines %s: %w", path, err)
	}
	return timelines, nil
}
