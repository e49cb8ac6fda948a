package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	faces []FaceLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFaces sets the faces that will be returned by Detect.
func (m *MockDetector) SetFaces(faces ...FaceLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faces = faces
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls reports how many times Detect ran.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured faces or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]FaceLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.faces, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// NeutralFace returns a frontal face at rest: eyes level, cheeks and chin
// at the same depth as the forehead, mouth closed.
// The eyes are 0.3 apart, so mouth metrics are measured against 0.3.
func NeutralFace() FaceLandmarks {
	face := FaceLandmarks{Points: make([]Point3D, NumLandmarks), Score: 0.97}

	face.Set(LeftEyeOuter, Point3D{X: 0.35, Y: 0.40})
	face.Set(RightEyeOuter, Point3D{X: 0.65, Y: 0.40})
	face.Set(LeftCheek, Point3D{X: 0.30, Y: 0.55})
	face.Set(RightCheek, Point3D{X: 0.70, Y: 0.55})
	face.Set(Forehead, Point3D{X: 0.50, Y: 0.20})
	face.Set(Chin, Point3D{X: 0.50, Y: 0.85})

	// mouthWidth 0.8, mouthOpen 0.1
	face.Set(MouthLeft, Point3D{X: 0.38, Y: 0.70})
	face.Set(MouthRight, Point3D{X: 0.62, Y: 0.70})
	face.Set(MouthTop, Point3D{X: 0.50, Y: 0.685})
	face.Set(MouthBottom, Point3D{X: 0.50, Y: 0.715})

	return face
}

// NoddingFace returns a face tilted down: the chin is 0.12 deeper than the forehead.
func NoddingFace() FaceLandmarks {
	face := NeutralFace()
	chin := face.At(Chin)
	chin.Z = 0.12
	face.Set(Chin, chin)
	return face
}

// TurnedFace returns a face turned sideways: yaw of 0.12.
func TurnedFace() FaceLandmarks {
	face := NeutralFace()
	left, right := face.At(LeftCheek), face.At(RightCheek)
	left.Z = -0.02
	right.Z = 0.10
	face.Set(LeftCheek, left)
	face.Set(RightCheek, right)
	return face
}

// SmilingFace returns a face with the mouth stretched to the eye distance
// (mouthWidth 1.0) and still closed.
func SmilingFace() FaceLandmarks {
	face := NeutralFace()
	face.Set(MouthLeft, Point3D{X: 0.35, Y: 0.69})
	face.Set(MouthRight, Point3D{X: 0.65, Y: 0.69})
	return face
}
