package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const samplePage = `<!doctype html>
<html><head>
<title>Eco Perfume 50ml &amp; Gift Box | Example Store</title>
<meta name="description" content="A floral eco-friendly perfume." />
</head><body>
<span id="productTitle">
  Eco   Perfume 50ml &amp; Gift Box
</span>
<span class="a-price"><span class="a-offscreen">$19.99</span></span>
<span>4.5 out of 5 stars</span>
<span>1,234 ratings</span>
<div data-asin="B07ECOPERF"></div>
</body></html>`

func newTestScraper(srv *httptest.Server) *RetailScraper {
	return NewRetailScraperWithClient(srv.Client())
}

func TestScrapeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	got, err := newTestScraper(srv).Scrape(context.Background(), srv.URL+"/dp/B07ECOPERF").Unwrap()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Eco Perfume 50ml & Gift Box" {
		t.Errorf("name not cleaned: %q", got.Name)
	}
	if got.Price != "$19.99" {
		t.Errorf("price: %q", got.Price)
	}
	if got.Rating != 4.5 {
		t.Errorf("rating: %v", got.Rating)
	}
	if got.ReviewCount != 1234 {
		t.Errorf("review count: %v", got.ReviewCount)
	}
	if got.ASIN != "B07ECOPERF" {
		t.Errorf("asin: %q", got.ASIN)
	}
	if got.Description != "A floral eco-friendly perfume." {
		t.Errorf("description: %q", got.Description)
	}
}

func TestScrapeASINFromAttribute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	// URL carries no /dp/ segment, so the data-asin attribute is used.
	got, err := newTestScraper(srv).Scrape(context.Background(), srv.URL+"/item").Unwrap()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ASIN != "B07ECOPERF" {
		t.Errorf("asin from attribute: %q", got.ASIN)
	}
}

func TestScrapeNon200IsAbsence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if newTestScraper(srv).Scrape(context.Background(), srv.URL).IsOk() {
		t.Fatal("non-200 must be an absence signal")
	}
}

func TestScrapeNoTitleIsAbsence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><body>nothing here</body></html>`))
	}))
	defer srv.Close()

	if newTestScraper(srv).Scrape(context.Background(), srv.URL).IsOk() {
		t.Fatal("page without a product name must be an absence signal")
	}
}

func TestScrapeFallsBackToPageTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><head><title>Plain Bottle</title></head><body></body></html>`))
	}))
	defer srv.Close()

	got, err := newTestScraper(srv).Scrape(context.Background(), srv.URL).Unwrap()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Plain Bottle" {
		t.Errorf("title fallback: %q", got.Name)
	}
}
