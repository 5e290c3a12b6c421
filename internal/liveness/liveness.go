// Package liveness implements the blink challenge that gates attendance
// sessions: a configurable number of eye blinks, detected from the eye
// aspect ratio of the 68-point facial landmarks over successive frames.
package liveness

import (
	"image"
	"math"

	"github.com/dkadlec/presence/internal/vision"
)

// Status reports the state of the liveness challenge.
type Status int

const (
	// StatusChallenging means the blink challenge is still in progress.
	StatusChallenging Status = iota
	// StatusPassed means enough blinks were observed. Sticky for the
	// lifetime of the detector.
	StatusPassed
)

// Detector counts blinks over successive frames. One detector belongs to one
// session; it is not safe for concurrent use and is never reset, only
// replaced at session start.
type Detector struct {
	threshold float64 // EAR below this counts the frame as eyes-closed
	minRun    int     // consecutive closed frames required for a blink
	required  int     // blinks needed to pass

	closedRun int
	blinks    int
	passed    bool
}

// NewDetector creates a blink detector. Non-positive arguments fall back to
// the conventional defaults (0.22, 3 frames, 2 blinks).
func NewDetector(threshold float64, minRun, required int) *Detector {
	if threshold <= 0 {
		threshold = 0.22
	}
	if minRun <= 0 {
		minRun = 3
	}
	if required <= 0 {
		required = 2
	}
	return &Detector{threshold: threshold, minRun: minRun, required: required}
}

// Update consumes the primary detected face for the current frame, or nil
// when no face was detected. A missing face (or a face without eye
// landmarks) is treated as an eye-open frame that never completes a blink:
// the closed run is discarded without counting.
func (d *Detector) Update(face *vision.Face) Status {
	if d.passed {
		return StatusPassed
	}

	if face == nil {
		d.closedRun = 0
		return d.status()
	}

	left, right := face.LeftEye(), face.RightEye()
	if left == nil || right == nil {
		d.closedRun = 0
		return d.status()
	}

	ear := (EAR(left) + EAR(right)) / 2.0
	return d.ObserveEAR(ear)
}

// ObserveEAR advances the blink state machine with one averaged eye aspect
// ratio sample.
func (d *Detector) ObserveEAR(ear float64) Status {
	if d.passed {
		return StatusPassed
	}

	if ear < d.threshold {
		d.closedRun++
	} else {
		if d.closedRun >= d.minRun {
			d.blinks++
		}
		d.closedRun = 0
	}

	return d.status()
}

func (d *Detector) status() Status {
	if d.blinks >= d.required {
		d.passed = true
	}
	if d.passed {
		return StatusPassed
	}
	return StatusChallenging
}

// Blinks returns the number of completed blinks so far.
func (d *Detector) Blinks() int {
	return d.blinks
}

// Required returns the number of blinks the challenge demands.
func (d *Detector) Required() int {
	return d.required
}

// Passed reports whether the challenge has been satisfied.
func (d *Detector) Passed() bool {
	return d.passed
}

// EAR computes the eye aspect ratio over the six contour points of one eye,
// ordered p0..p5 around the contour:
//
//	EAR = (|p1-p5| + |p2-p4|) / (2 * |p0-p3|)
//
// Open eyes sit around 0.3, closed eyes drop toward 0.
func EAR(eye []image.Point) float64 {
	if len(eye) != 6 {
		return 0
	}

	a := pointDistance(eye[1], eye[5])
	b := pointDistance(eye[2], eye[4])
	c := pointDistance(eye[0], eye[3])
	if c == 0 {
		// Degenerate landmarks; report wide open so the sample cannot
		// extend a closed run.
		return 1
	}
	return (a + b) / (2 * c)
}

func pointDistance(p, q image.Point) float64 {
	return math.Hypot(float64(p.X-q.X), float64(p.Y-q.Y))
}
