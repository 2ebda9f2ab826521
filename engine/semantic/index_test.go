package semantic

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
)

func mustIndex(t *testing.T, dim int) *Index {
	t.Helper()
	idx, err := NewIndex(dim)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	return idx
}

func TestNewIndexRejectsBadDimension(t *testing.T) {
	if _, err := NewIndex(0); err == nil {
		t.Fatal("dimension 0 should be rejected")
	}
	if _, err := NewIndex(-3); err == nil {
		t.Fatal("negative dimension should be rejected")
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	idx := mustIndex(t, 2)
	got, err := idx.Search([]float32{1, 2}, 5)
	if err != nil {
		t.Fatalf("empty search should not error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty candidate set, got %v", got)
	}
}

func TestInsertDimensionMismatch(t *testing.T) {
	idx := mustIndex(t, 3)
	err := idx.Insert([]float32{1, 2}, "a")
	var de *DimensionError
	if !errors.As(err, &de) {
		t.Fatalf("expected DimensionError, got %v", err)
	}
	if de.Expected != 3 || de.Actual != 2 {
		t.Fatalf("wrong dims: %+v", de)
	}
	if _, err := idx.Search([]float32{1}, 1); err == nil {
		t.Fatal("search with wrong dimension should error")
	}
}

func TestSearchOrderedByDistance(t *testing.T) {
	idx := mustIndex(t, 2)
	idx.Insert([]float32{0, 0}, "origin")
	idx.Insert([]float32{3, 4}, "far")
	idx.Insert([]float32{1, 0}, "near")

	got, err := idx.Search([]float32{0, 0}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	if got[0].ID != "origin" || got[1].ID != "near" || got[2].ID != "far" {
		t.Fatalf("wrong order: %v", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Distance > got[i].Distance {
			t.Fatalf("distance not monotone at %d: %v", i, got)
		}
	}
}

func TestSearchTiesBrokenByInsertionOrder(t *testing.T) {
	idx := mustIndex(t, 2)
	// Same distance from the query, different insertion order.
	idx.Insert([]float32{1, 0}, "first")
	idx.Insert([]float32{0, 1}, "second")
	idx.Insert([]float32{-1, 0}, "third")

	got, err := idx.Search([]float32{0, 0}, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if got[0].ID != "first" || got[1].ID != "second" {
		t.Fatalf("ties must prefer earlier insertion: %v", got)
	}
}

func TestSearchDeduplicatesIdentifiers(t *testing.T) {
	idx := mustIndex(t, 1)
	idx.Insert([]float32{5}, "dup")
	idx.Insert([]float32{1}, "dup")
	idx.Insert([]float32{2}, "other")

	got, err := idx.Search([]float32{0}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected deduped result, got %v", got)
	}
	if got[0].ID != "dup" || got[0].Distance != 1 {
		t.Fatalf("closest occurrence should win: %v", got)
	}
}

func TestSearchTruncatesToK(t *testing.T) {
	idx := mustIndex(t, 1)
	for i := 0; i < 10; i++ {
		idx.Insert([]float32{float32(i)}, fmt.Sprintf("p%d", i))
	}
	got, _ := idx.Search([]float32{0}, 4)
	if len(got) != 4 {
		t.Fatalf("expected 4 candidates, got %d", len(got))
	}
	if got, _ := idx.Search([]float32{0}, 0); len(got) != 0 {
		t.Fatal("k=0 should yield empty set")
	}
}

func TestSearchMonotoneProperty(t *testing.T) {
	idx := mustIndex(t, 4)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		v := []float32{rng.Float32(), rng.Float32(), rng.Float32(), rng.Float32()}
		idx.Insert(v, fmt.Sprintf("v%d", i))
	}
	for trial := 0; trial < 20; trial++ {
		q := []float32{rng.Float32(), rng.Float32(), rng.Float32(), rng.Float32()}
		got, err := idx.Search(q, 10)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		for i := 1; i < len(got); i++ {
			if got[i-1].Distance > got[i].Distance {
				t.Fatalf("trial %d: adjacency violated: %v", trial, got)
			}
		}
	}
}

func TestConcurrentSearchDuringInsert(t *testing.T) {
	idx := mustIndex(t, 2)
	idx.Insert([]float32{0, 0}, "seed")

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				got, err := idx.Search([]float32{0.5, 0.5}, 5)
				if err != nil {
					t.Errorf("search: %v", err)
					return
				}
				// A snapshot is either fully visible or not yet
				// visible; a torn read would break monotonicity
				// or pair ids with foreign vectors.
				for i := 1; i < len(got); i++ {
					if got[i-1].Distance > got[i].Distance {
						t.Errorf("torn read: %v", got)
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 500; i++ {
		idx.Insert([]float32{float32(i), 1}, fmt.Sprintf("c%d", i))
	}
	close(stop)
	wg.Wait()

	if idx.Len() != 501 {
		t.Fatalf("expected 501 vectors, got %d", idx.Len())
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	idx := mustIndex(t, 2)
	idx.Insert([]float32{1, 2}, "a")
	idx.Insert([]float32{3, 4}, "b")

	var buf bytes.Buffer
	if err := idx.Save(&buf); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(&buf)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Dimension() != 2 || loaded.Len() != 2 {
		t.Fatalf("loaded index wrong shape: dim=%d len=%d", loaded.Dimension(), loaded.Len())
	}
	got, _ := loaded.Search([]float32{1, 2}, 1)
	if len(got) != 1 || got[0].ID != "a" || got[0].Distance != 0 {
		t.Fatalf("loaded search wrong: %v", got)
	}
}
