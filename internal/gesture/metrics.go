// Package gesture turns face landmarks into stable gesture states.
//
// Each frame flows through ComputeMetrics, an optional Smoother and the
// Engine, which keeps one boolean per declared Pattern with separate
// activation and deactivation predicates.
package gesture

import (
	"fmt"
	"math"

	"github.com/ayusman/hypnosonore/internal/detector"
)

// Metrics is the per-frame summary of head pose and mouth shape.
type Metrics struct {
	Yaw        float64 `json:"yaw"`
	Pitch      float64 `json:"pitch"`
	Roll       float64 `json:"roll"`
	MouthWidth float64 `json:"mouth_width"`
	MouthOpen  float64 `json:"mouth_open"`
}

// String formats m for log lines.
func (m Metrics) String() string {
	return fmt.Sprintf("yaw=%.3f pitch=%.3f roll=%.3f mouthWidth=%.3f mouthOpen=%.3f",
		m.Yaw, m.Pitch, m.Roll, m.MouthWidth, m.MouthOpen)
}

// Fields returns the metrics keyed by name, in a fixed order.
func (m Metrics) Fields() []Field {
	return []Field{
		{"yaw", m.Yaw},
		{"pitch", m.Pitch},
		{"roll", m.Roll},
		{"mouthWidth", m.MouthWidth},
		{"mouthOpen", m.MouthOpen},
	}
}

// Field is one named metric value.
type Field struct {
	Name  string
	Value float64
}

// ComputeMetrics derives Metrics from one face.
// Missing landmarks count as the origin, so the result is always defined.
func ComputeMetrics(face detector.FaceLandmarks) Metrics {
	leftEye := face.At(detector.LeftEyeOuter)
	rightEye := face.At(detector.RightEyeOuter)

	faceWidth := leftEye.Distance(rightEye)
	if faceWidth == 0 || math.IsNaN(faceWidth) {
		faceWidth = 1
	}

	return Metrics{
		Yaw:        face.At(detector.RightCheek).Z - face.At(detector.LeftCheek).Z,
		Pitch:      face.At(detector.Chin).Z - face.At(detector.Forehead).Z,
		Roll:       leftEye.Y - rightEye.Y,
		MouthWidth: face.At(detector.MouthLeft).Distance(face.At(detector.MouthRight)) / faceWidth,
		MouthOpen:  face.At(detector.MouthTop).Distance(face.At(detector.MouthBottom)) / faceWidth,
	}
}
