// Package vision holds the frame and face types shared by the attendance
// pipeline, plus the dlib-backed extractor that produces them.
package vision

import (
	"image"
	"math"
	"time"
)

// DescriptorSize is the length of a dlib face descriptor.
const DescriptorSize = 128

// Descriptor is a fixed-length face encoding usable for nearest-neighbor
// identity comparison. Immutable once computed.
type Descriptor [DescriptorSize]float32

// LandmarkCount is the point count of the dlib 68-point shape predictor.
const LandmarkCount = 68

// Eye landmark sub-ranges in the 68-point layout.
const (
	RightEyeStart = 36
	RightEyeEnd   = 42
	LeftEyeStart  = 42
	LeftEyeEnd    = 48
)

// Frame is one raster image pulled from a frame source. Frames are owned by
// the current pipeline tick and must not be retained across ticks.
type Frame struct {
	Image     *image.RGBA
	Timestamp time.Time
}

// Face is one detected face: bounding box and landmarks in the coordinate
// space of the image that was searched, plus the face descriptor.
type Face struct {
	Box        image.Rectangle
	Landmarks  []image.Point // 68 points, or nil when the model exposes none
	Descriptor Descriptor
}

// LeftEye returns the left-eye landmark points, or nil if the face does not
// carry a full 68-point landmark set.
func (f *Face) LeftEye() []image.Point {
	if len(f.Landmarks) != LandmarkCount {
		return nil
	}
	return f.Landmarks[LeftEyeStart:LeftEyeEnd]
}

// RightEye returns the right-eye landmark points, or nil if the face does not
// carry a full 68-point landmark set.
func (f *Face) RightEye() []image.Point {
	if len(f.Landmarks) != LandmarkCount {
		return nil
	}
	return f.Landmarks[RightEyeStart:RightEyeEnd]
}

// EuclideanDistance computes the Euclidean distance between two descriptors.
func EuclideanDistance(a, b Descriptor) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
