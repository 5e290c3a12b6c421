// Package match resolves face encodings to enrolled identities.
package match

import (
	"github.com/dkadlec/presence/internal/gallery"
	"github.com/dkadlec/presence/internal/vision"
)

// Result is an accepted identity match.
type Result struct {
	Name     string
	Distance float64
}

// Matcher finds the closest gallery entry within an acceptance threshold.
// The zero tolerance falls back to the conventional 0.6 of the dlib resnet
// descriptor model.
type Matcher struct {
	tolerance float64
}

// NewMatcher creates a matcher with the given acceptance threshold.
func NewMatcher(tolerance float64) *Matcher {
	if tolerance <= 0 {
		tolerance = 0.6
	}
	return &Matcher{tolerance: tolerance}
}

// Tolerance returns the acceptance threshold.
func (m *Matcher) Tolerance() float64 {
	return m.tolerance
}

// Match returns the closest enrolled identity for the encoding, or ok=false
// when the gallery is empty or the closest entry is farther than the
// threshold. The snapshot's insertion order makes ties deterministic.
func (m *Matcher) Match(snap *gallery.Snapshot, query vision.Descriptor) (Result, bool) {
	name, dist, ok := snap.Nearest(query)
	if !ok || dist > m.tolerance {
		return Result{}, false
	}
	return Result{Name: name, Distance: dist}, true
}
