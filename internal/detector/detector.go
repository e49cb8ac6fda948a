package detector

import (
	"errors"

	"gocv.io/x/gocv"
)

// ErrServiceNotFound is returned when the FaceMesh helper script cannot be located.
var ErrServiceNotFound = errors.New("facemesh_service.py not found")

// Detector defines the interface for face landmark sources.
type Detector interface {
	// Detect analyzes a video frame and returns the tracked faces.
	// Returns an empty slice if no face is visible.
	Detect(frame *gocv.Mat) ([]FaceLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for face detection.
type Config struct {
	// MaxFaces is the maximum number of faces to track (default: 1).
	MaxFaces int `json:"max_faces"`

	// RefineLandmarks adds iris points to the mesh.
	RefineLandmarks bool `json:"refine_landmarks"`

	// MinDetectionConf is the minimum detection confidence threshold (0.0-1.0).
	MinDetectionConf float64 `json:"min_detection_confidence"`

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64 `json:"min_tracking_confidence"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxFaces:         1,
		RefineLandmarks:  true,
		MinDetectionConf: 0.5,
		MinTrackingConf:  0.5,
	}
}

// FirstFace reduces a multi-face result to its first face.
// ok is false when no face was detected.
func FirstFace(faces []FaceLandmarks) (face FaceLandmarks, ok bool) {
	if len(faces) == 0 {
		return FaceLandmarks{}, false
	}
	return faces[0], true
}
