package facecrop

import "encoding/json"

// Entry is one slot in a per-frame detection timeline. A nil Box means
// no face was found for that frame. On the wire an empty entry is the
// empty JSON object and a detection is a flat bb_x/bb_y/bb_w/bb_h
// object, so timelines round-trip against the detection services.
type Entry struct {
	Box *BoundingBox
}

// HasBox reports whether the entry carries a detection.
func (e Entry) HasBox() bool {
	return e.Box != nil
}

func (e Entry) MarshalJSON() ([]byte, error) {
	if e.Box == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(e.Box)
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		e.Box = nil
		return nil
	}
	e.Box = &BoundingBox{
		X: int(raw["bb_x"]),
		Y: int(raw["bb_y"]),
		W: int(raw["bb_w"]),
		H: int(raw["bb_h"]),
	}
	return nil
}
