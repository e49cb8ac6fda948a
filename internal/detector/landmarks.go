// Package detector provides face landmark detection interfaces and types.
package detector

import "math"

// Face landmark indices following the MediaPipe FaceMesh convention.
// Only the points the gesture metrics read are named here.
const (
	Forehead      = 10
	MouthTop      = 13
	MouthBottom   = 14
	LeftEyeOuter  = 33
	MouthLeft     = 61
	Chin          = 152
	LeftCheek     = 234
	RightEyeOuter = 263
	MouthRight    = 291
	RightCheek    = 454

	// NumLandmarks is the size of a plain FaceMesh result.
	NumLandmarks = 468
	// NumRefinedLandmarks includes the iris points added by refineLandmarks.
	NumRefinedLandmarks = 478
)

// Point3D represents a 3D point in normalized space: x and y relative to
// frame width and height, z a relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Distance returns the Euclidean distance between p and q.
func (p Point3D) Distance(q Point3D) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	dz := p.Z - q.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// FaceLandmarks is one tracked face. Points are indexed by the FaceMesh numbering.
type FaceLandmarks struct {
	Points []Point3D `json:"points"`
	Score  float64   `json:"score"`
}

// At returns the point at index i, or the origin if the face has no such point.
func (f *FaceLandmarks) At(i int) Point3D {
	if f == nil || i < 0 || i >= len(f.Points) {
		return Point3D{}
	}
	return f.Points[i]
}

// Set stores p at index i, growing Points as needed.
func (f *FaceLandmarks) Set(i int, p Point3D) {
	if i < 0 {
		return
	}
	if i >= len(f.Points) {
		grown := make([]Point3D, i+1)
		copy(grown, f.Points)
		f.Points = grown
	}
	f.Points[i] = p
}

// FromPixels converts pixel-space keypoints into normalized landmarks.
// x is divided by width, y by height and z by width, which is how
// pixel-based trackers line up with FaceMesh output.
func FromPixels(points []Point3D, width, height float64) FaceLandmarks {
	if width <= 0 {
		width = 1
	}
	if height <= 0 {
		height = 1
	}
	out := FaceLandmarks{Points: make([]Point3D, len(points)), Score: 1}
	for i, p := range points {
		out.Points[i] = Point3D{X: p.X / width, Y: p.Y / height, Z: p.Z / width}
	}
	return out
}
