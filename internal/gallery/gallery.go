// Package gallery holds the enrolled face encodings that identity matching
// runs against. The gallery on disk is a single JSON file replaced
// atomically on every change; in memory it is an immutable snapshot swapped
// behind an atomic pointer, so concurrent sessions never observe a
// half-updated gallery.
package gallery

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dkadlec/presence/internal/vision"
)

// ErrNoFace is reported when a reference image contains no detectable face.
// The gallery is left unchanged; callers surface this as a warning.
var ErrNoFace = errors.New("no detectable face in reference image")

// Encoder computes a face encoding from a reference image.
type Encoder interface {
	// EncodeFirst returns the encoding of the first detected face, or
	// ok=false when the image contains no face.
	EncodeFirst(imageData []byte) (vision.Descriptor, bool, error)
}

// Entry is one enrolled (identity, encoding) pair. Names are not unique:
// an identity may carry several encodings over its lifetime.
type Entry struct {
	Name     string
	Encoding vision.Descriptor
}

// Reference is one (identity, reference image) input to a rebuild.
type Reference struct {
	Name  string
	Image []byte
}

// RebuildReport summarizes a gallery rebuild.
type RebuildReport struct {
	Added   int
	Skipped []string // identities whose reference image had no face
}

// Gallery is the durable encoding store. Reads go through Snapshot and are
// lock-free; Add/RemoveAll/Rebuild serialize on a writer mutex and persist
// before swapping the snapshot in.
type Gallery struct {
	path string
	enc  Encoder

	mu  sync.Mutex // serializes writers
	cur atomic.Pointer[Snapshot]
}

// Open loads the gallery file at path, or starts empty when the file does
// not exist yet.
func Open(path string, enc Encoder) (*Gallery, error) {
	entries, err := loadEntries(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load gallery %s: %w", path, err)
	}

	g := &Gallery{path: path, enc: enc}
	g.cur.Store(newSnapshot(entries))
	return g, nil
}

// Snapshot returns the current immutable gallery snapshot.
func (g *Gallery) Snapshot() *Snapshot {
	return g.cur.Load()
}

// Add computes exactly one encoding from the first detected face in the
// reference image and appends it. Returns ErrNoFace when the image has no
// detectable face; the gallery is left unchanged.
func (g *Gallery) Add(name string, imageData []byte) error {
	desc, ok, err := g.enc.EncodeFirst(imageData)
	if err != nil {
		return fmt.Errorf("failed to encode reference image for %s: %w", name, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrNoFace)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	entries := g.cur.Load().copyEntries()
	entries = append(entries, Entry{Name: name, Encoding: desc})
	return g.replace(entries)
}

// RemoveAll deletes every entry carrying the given name. Removing an absent
// identity is a no-op, not an error.
func (g *Gallery) RemoveAll(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	old := g.cur.Load().copyEntries()
	entries := old[:0]
	for _, e := range old {
		if e.Name != name {
			entries = append(entries, e)
		}
	}
	if len(entries) == len(old) {
		return nil
	}
	return g.replace(entries)
}

// Rebuild recomputes the whole gallery from the given references, skipping
// images with no detectable face, and replaces both the persisted file and
// the in-memory snapshot atomically.
func (g *Gallery) Rebuild(refs []Reference) (*RebuildReport, error) {
	report := &RebuildReport{}
	entries := make([]Entry, 0, len(refs))

	for _, ref := range refs {
		desc, ok, err := g.enc.EncodeFirst(ref.Image)
		if err != nil {
			return nil, fmt.Errorf("failed to encode reference image for %s: %w", ref.Name, err)
		}
		if !ok {
			report.Skipped = append(report.Skipped, ref.Name)
			continue
		}
		entries = append(entries, Entry{Name: ref.Name, Encoding: desc})
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.replace(entries); err != nil {
		return nil, err
	}
	report.Added = len(entries)
	return report, nil
}

// replace persists entries and swaps the snapshot. Callers hold g.mu. The
// file write happens first: on error the old snapshot stays current and the
// old file is untouched (saveEntries writes a temp file and renames).
func (g *Gallery) replace(entries []Entry) error {
	if err := saveEntries(g.path, entries); err != nil {
		return fmt.Errorf("failed to persist gallery %s: %w", g.path, err)
	}
	g.cur.Store(newSnapshot(entries))
	return nil
}
