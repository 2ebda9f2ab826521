// Package semantic provides the in-memory flat vector index used for
// nearest-neighbor product retrieval. The index is the sole owner of the
// vector/identifier space: callers append through Insert and read through
// Search. Writes are serialized by a mutex; every write publishes a fresh
// immutable state through an atomic pointer, so in-flight searches observe
// either the whole insertion or none of it.
package semantic

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
)

// indexState is an immutable snapshot of the stored vectors. Slices are
// append-only between snapshots and never mutated in place.
type indexState struct {
	ids  []string
	vecs [][]float32
}

// Index is a flat (exhaustive-scan) vector index over squared L2 distance.
// Ties are broken by insertion order: the first inserted vector wins.
type Index struct {
	dim     int
	writeMu sync.Mutex
	state   atomic.Pointer[indexState]
}

// NewIndex creates an empty index for vectors of the given dimension.
func NewIndex(dim int) (*Index, error) {
	if dim <= 0 {
		return nil, errors.New("semantic: dimension must be positive")
	}
	idx := &Index{dim: dim}
	idx.state.Store(&indexState{})
	return idx, nil
}

// Dimension returns the fixed vector dimension of the index.
func (x *Index) Dimension() int { return x.dim }

// Len returns the number of stored vectors.
func (x *Index) Len() int {
	return len(x.state.Load().ids)
}

// Insert appends a vector under the given identifier. The identifier is
// opaque to the index; uniqueness is the caller's concern. The vector is
// copied, so the caller may reuse its slice.
func (x *Index) Insert(vec []float32, id string) error {
	if len(vec) != x.dim {
		return &DimensionError{Expected: x.dim, Actual: len(vec)}
	}

	cp := make([]float32, len(vec))
	copy(cp, vec)

	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	old := x.state.Load()
	next := &indexState{
		ids:  append(old.ids[:len(old.ids):len(old.ids)], id),
		vecs: append(old.vecs[:len(old.vecs):len(old.vecs)], cp),
	}
	x.state.Store(next)
	return nil
}

// Search returns up to k candidates ordered by non-decreasing distance.
// Identifiers are unique within one result: if the same identifier was
// inserted more than once, only its closest occurrence is reported.
// Searching an empty index returns an empty set, not an error.
func (x *Index) Search(vec []float32, k int) ([]Candidate, error) {
	if len(vec) != x.dim {
		return nil, &DimensionError{Expected: x.dim, Actual: len(vec)}
	}
	if k <= 0 {
		return []Candidate{}, nil
	}

	st := x.state.Load()
	if len(st.ids) == 0 {
		return []Candidate{}, nil
	}

	type scored struct {
		pos  int
		dist float32
	}
	all := make([]scored, len(st.vecs))
	for i, v := range st.vecs {
		all[i] = scored{pos: i, dist: squaredL2(vec, v)}
	}
	// Stable sort keeps insertion order for equal distances.
	sort.SliceStable(all, func(i, j int) bool { return all[i].dist < all[j].dist })

	out := make([]Candidate, 0, k)
	seen := make(map[string]struct{}, k)
	for _, s := range all {
		id := st.ids[s.pos]
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, Candidate{ID: id, Distance: s.dist})
		if len(out) == k {
			break
		}
	}
	return out, nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
