package gallery

import (
	"sort"

	"github.com/coder/hnsw"

	"github.com/dkadlec/presence/internal/vision"
)

// hnswMinEntries is the gallery size at which the HNSW index starts paying
// for itself; below it a linear scan is both faster and trivially exact.
const hnswMinEntries = 64

// hnswCandidates is how many approximate neighbors are pulled from the
// graph before exact re-ranking.
const hnswCandidates = 16

// hnswMaxNeighbors is the M parameter of the graph.
const hnswMaxNeighbors = 16

// Snapshot is an immutable view of the gallery. Entry order is insertion
// order and is stable across restarts, which keeps distance ties
// deterministic.
type Snapshot struct {
	entries []Entry
	graph   *hnsw.Graph[int] // nil for small galleries
}

func newSnapshot(entries []Entry) *Snapshot {
	s := &Snapshot{entries: entries}
	if len(entries) < hnswMinEntries {
		return s
	}

	g := hnsw.NewGraph[int]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance
	for i := range entries {
		vec := make([]float32, vision.DescriptorSize)
		copy(vec, entries[i].Encoding[:])
		g.Add(hnsw.MakeNode(i, vec))
	}
	s.graph = g
	return s
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Names returns the distinct enrolled identity names in insertion order.
func (s *Snapshot) Names() []string {
	seen := make(map[string]bool, len(s.entries))
	var names []string
	for _, e := range s.entries {
		if !seen[e.Name] {
			seen[e.Name] = true
			names = append(names, e.Name)
		}
	}
	return names
}

// Count returns the number of entries stored for one identity.
func (s *Snapshot) Count(name string) int {
	n := 0
	for _, e := range s.entries {
		if e.Name == name {
			n++
		}
	}
	return n
}

// Nearest returns the entry closest to the query encoding by Euclidean
// distance, ok=false on an empty gallery. Ties break to the earliest entry
// in insertion order. Large galleries pre-select candidates from the HNSW
// graph and re-rank them exactly, preserving the tie-break.
func (s *Snapshot) Nearest(query vision.Descriptor) (name string, distance float64, ok bool) {
	if len(s.entries) == 0 {
		return "", 0, false
	}

	candidates := s.candidateIndexes(query)

	best := -1
	bestDist := 0.0
	for _, i := range candidates {
		d := vision.EuclideanDistance(query, s.entries[i].Encoding)
		if best == -1 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	return s.entries[best].Name, bestDist, true
}

// candidateIndexes returns entry indexes to re-rank, in insertion order.
func (s *Snapshot) candidateIndexes(query vision.Descriptor) []int {
	if s.graph == nil {
		idx := make([]int, len(s.entries))
		for i := range idx {
			idx[i] = i
		}
		return idx
	}

	vec := make([]float32, vision.DescriptorSize)
	copy(vec, query[:])
	neighbors := s.graph.Search(vec, hnswCandidates)
	idx := make([]int, 0, len(neighbors))
	for _, n := range neighbors {
		idx = append(idx, n.Key)
	}
	sort.Ints(idx)
	return idx
}

// copyEntries returns a mutable copy of the snapshot's entries.
func (s *Snapshot) copyEntries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
