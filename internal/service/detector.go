package service

import "context"

type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// RawDetection is what the external model reports for one object before any
// acceptance or severity policy is applied.
type RawDetection struct {
	Class      string      `json:"class"`
	Confidence float64     `json:"confidence"`
	BBox       BoundingBox `json:"bbox"`
}

// Detector is the boundary around the external object-detection model.
// Implementations return ErrModelUnavailable (wrapped is fine) when the
// backing model cannot be invoked.
type Detector interface {
	Detect(ctx context.Context, frameJPEG []byte) ([]RawDetection, error)
}
