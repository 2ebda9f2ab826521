package metrics

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestCounterAndGauge(t *testing.T) {
	r := New()
	c := r.Counter("queries_total", "total queries")
	c.Inc()
	c.Add(2)
	if c.Value() != 3 {
		t.Fatalf("counter = %d, want 3", c.Value())
	}
	if r.Counter("queries_total", "") != c {
		t.Fatal("same name should return the same counter")
	}

	g := r.Gauge("index_size", "vectors in index")
	g.Set(10)
	g.Inc()
	g.Dec()
	if g.Value() != 10 {
		t.Fatalf("gauge = %d, want 10", g.Value())
	}
}

func TestHistogramCumulativeBuckets(t *testing.T) {
	r := New()
	h := r.Histogram("latency_seconds", "request latency", []float64{0.1, 1, 10})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(100)

	out := r.Render()
	for _, want := range []string{
		`latency_seconds_bucket{le="0.1"} 1`,
		`latency_seconds_bucket{le="1"} 2`,
		`latency_seconds_bucket{le="10"} 2`,
		`latency_seconds_bucket{le="+Inf"} 3`,
		"latency_seconds_count 3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
}

func TestRenderHeadersAndLabels(t *testing.T) {
	r := New()
	r.Counter(WithLabels("requests_total", "path", "/api/query"), "requests by path").Inc()
	r.Counter(WithLabels("requests_total", "path", "/api/vendors"), "").Add(2)

	out := r.Render()
	if strings.Count(out, "# TYPE requests_total counter") != 1 {
		t.Fatalf("TYPE header should appear once:\n%s", out)
	}
	if !strings.Contains(out, `requests_total{path="/api/query"} 1`) {
		t.Fatalf("missing labeled series:\n%s", out)
	}
	if !strings.Contains(out, `requests_total{path="/api/vendors"} 2`) {
		t.Fatalf("missing labeled series:\n%s", out)
	}
}

func TestWithLabels(t *testing.T) {
	if got := WithLabels("m", "a", "1", "b", "2"); got != `m{a="1",b="2"}` {
		t.Fatalf("WithLabels = %s", got)
	}
	if got := WithLabels("m", "odd"); got != "m" {
		t.Fatalf("odd pairs should return base name, got %s", got)
	}
}

func TestHandler(t *testing.T) {
	r := New()
	r.Counter("up", "").Inc()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("Content-Type = %s", ct)
	}
	if !strings.Contains(rec.Body.String(), "up 1") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Counter("races_total", "").Inc()
				r.Histogram("race_seconds", "", nil).Observe(0.01)
				_ = r.Render()
			}
		}()
	}
	wg.Wait()
	if r.Counter("races_total", "").Value() != 800 {
		t.Fatalf("counter = %d, want 800", r.Counter("races_total", "").Value())
	}
}
