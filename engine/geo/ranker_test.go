package geo

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shoplens-ai/shoplens/engine/domain"
)

type fakeOverpass struct {
	elements []Element
	err      error
	lastQL   string
}

func (f *fakeOverpass) Query(_ context.Context, ql string) ([]Element, error) {
	f.lastQL = ql
	return f.elements, f.err
}

func ptr(v float64) *float64 { return &v }

func node(name, shop string, lat, lon float64) Element {
	return Element{
		Type: "node",
		Lat:  ptr(lat),
		Lon:  ptr(lon),
		Tags: map[string]string{"name": name, "shop": shop},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRankOrdersByRelevanceThenDistance(t *testing.T) {
	fake := &fakeOverpass{elements: []Element{
		node("Corner Grocery", "convenience", 10.002, 20.0),
		node("Joe's Car Repair", "car_repair", 10.01, 20.0),
		node("Quick Fix", "car_repair", 10.005, 20.0),
	}}
	r := NewRanker(fake, testLogger())

	got, err := r.Rank(context.Background(), domain.VendorQuery{
		Lat: 10, Lon: 20, Radius: 5000, Query: "repair",
	})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	names := make([]string, len(got))
	for i, v := range got {
		names[i] = v.Name
	}
	// Joe's matches on name and category, Quick Fix only on category, and
	// the grocery matches nothing despite being closest.
	want := []string{"Joe's Car Repair", "Quick Fix", "Corner Grocery"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("order = %v, want %v", names, want)
		}
	}
	if got[0].Relevance != 2 || got[1].Relevance != 1 || got[2].Relevance != 0 {
		t.Fatalf("relevance = %d,%d,%d", got[0].Relevance, got[1].Relevance, got[2].Relevance)
	}

	// Adjacent pairs obey the ordering contract.
	for i := 1; i < len(got); i++ {
		u, v := got[i-1], got[i]
		if u.Relevance < v.Relevance {
			t.Fatalf("relevance not non-increasing at %d", i)
		}
		if u.Relevance == v.Relevance && u.Distance > v.Distance {
			t.Fatalf("distance not non-decreasing at %d", i)
		}
	}
}

func TestRankStableOnTies(t *testing.T) {
	fake := &fakeOverpass{elements: []Element{
		node("First Bakery", "bakery", 10.003, 20.0),
		node("Second Bakery", "bakery", 10.0, 20.003),
	}}
	r := NewRanker(fake, testLogger())

	got, err := r.Rank(context.Background(), domain.VendorQuery{Lat: 10, Lon: 20, Radius: 5000})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	// Equal relevance and equal distance keep upstream order.
	if got[0].Name != "First Bakery" || got[1].Name != "Second Bakery" {
		t.Fatalf("tie order changed: %v, %v", got[0].Name, got[1].Name)
	}
}

func TestRankMissingCoordinatesSinkToBottom(t *testing.T) {
	noCoords := Element{Type: "way", Tags: map[string]string{"name": "Ghost Shop", "shop": "bakery"}}
	fake := &fakeOverpass{elements: []Element{
		noCoords,
		node("Far Bakery", "bakery", 10.04, 20.04),
	}}
	r := NewRanker(fake, testLogger())

	got, err := r.Rank(context.Background(), domain.VendorQuery{Lat: 10, Lon: 20, Radius: 5000})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if got[len(got)-1].Name != "Ghost Shop" {
		t.Fatalf("vendor without coordinates should sort last, got %v", got)
	}
	last := got[len(got)-1]
	if !math.IsInf(last.Distance, 1) || last.Relevance != 0 {
		t.Fatalf("missing coords: distance = %v relevance = %d", last.Distance, last.Relevance)
	}
}

func TestRankUsesWayCenter(t *testing.T) {
	fake := &fakeOverpass{elements: []Element{{
		Type:   "way",
		Center: &Point{Lat: 10.003, Lon: 20.004},
		Tags:   map[string]string{"name": "Mall Supermarket", "shop": "supermarket"},
	}}}
	r := NewRanker(fake, testLogger())

	got, err := r.Rank(context.Background(), domain.VendorQuery{Lat: 10, Lon: 20, Radius: 5000})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if got[0].Lat == nil || *got[0].Lat != 10.003 {
		t.Fatalf("expected center lat, got %+v", got[0])
	}
	if math.IsInf(got[0].Distance, 1) {
		t.Fatal("center coordinates should produce a finite distance")
	}
}

func TestRankDefaultsUnknownNames(t *testing.T) {
	fake := &fakeOverpass{elements: []Element{
		{Type: "node", Lat: ptr(10.0), Lon: ptr(20.0), Tags: nil},
	}}
	r := NewRanker(fake, testLogger())

	got, err := r.Rank(context.Background(), domain.VendorQuery{Lat: 10, Lon: 20, Radius: 5000})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if got[0].Name != "Unknown" || got[0].Shop != "Unknown" {
		t.Fatalf("missing tags should default to Unknown, got %+v", got[0])
	}
}

func TestRankPropagatesUpstreamError(t *testing.T) {
	fake := &fakeOverpass{err: &UpstreamError{StatusCode: 504, Body: "timeout"}}
	r := NewRanker(fake, testLogger())

	_, err := r.Rank(context.Background(), domain.VendorQuery{Lat: 10, Lon: 20, Radius: 5000})
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.StatusCode != 504 {
		t.Fatalf("StatusCode = %d, want 504", upstream.StatusCode)
	}
}

func TestRankSelectsRepairFilter(t *testing.T) {
	fake := &fakeOverpass{}
	r := NewRanker(fake, testLogger())

	if _, err := r.Rank(context.Background(), domain.VendorQuery{
		Lat: 10, Lon: 20, Radius: 5000, Query: "I need a car repair shop",
	}); err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if !strings.Contains(fake.lastQL, `["shop"~"repair|service",i]`) {
		t.Fatalf("query should use the repair filter:\n%s", fake.lastQL)
	}
}

func TestOverpassClientQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if !strings.Contains(r.PostForm.Get("data"), "[out:json]") {
			t.Errorf("form data missing query: %q", r.PostForm.Get("data"))
		}
		json.NewEncoder(w).Encode(overpassResponse{Elements: []Element{
			node("Test Shop", "bakery", 10.0, 20.0),
		}})
	}))
	defer srv.Close()

	c := NewOverpassClient(srv.URL)
	elements, err := c.Query(context.Background(), buildQL(`["shop"]`, NewBoundingBox(10, 20, 5000)))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(elements) != 1 || elements[0].Tags["name"] != "Test Shop" {
		t.Fatalf("unexpected elements: %+v", elements)
	}
}

func TestOverpassClientUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewOverpassClient(srv.URL)
	_, err := c.Query(context.Background(), "[out:json];")
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("StatusCode = %d, want 429", upstream.StatusCode)
	}
}
