// Package detect builds per-frame face timelines for a video: frames
// are sampled out of the stream, sent to the face detection sidecar,
// grouped into people by clustering their embeddings, and the surviving
// detections are expanded back into one entry per video frame.
package detect

import "MeasuresServer/facecrop"

// Detection is one face found on a sampled frame.
type Detection struct {
	FrameIdx   int                  `json:"frame_idx"`
	Box        facecrop.BoundingBox `json:"box"`
	Confidence float64              `json:"confidence"`
	Embedding  []float64            `json:"embedding,omitempty"`
}

// facialArea keeps the detector sidecar's field names on the wire.
type facialArea struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type detectedFace struct {
	FacialArea facialArea `json:"facial_area"`
	Confidence float64    `json:"confidence"`
	Embedding  []float64  `json:"embedding"`
}

type detectResponse struct {
	Faces []detectedFace `json:"faces"`
}

type clusterRequest struct {
	Embeddings [][]float64 `json:"embeddings"`
	NClusters  int         `json:"n_clusters"`
}

type clusterResponse struct {
	Labels []int `json:"labels"`
}
