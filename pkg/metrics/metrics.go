// Package metrics is a small Prometheus-compatible registry built on the
// standard library. It covers the counters, gauges, and latency histograms
// the query pipeline needs and renders them in the text exposition format.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuckets are latency buckets in seconds, sized for a pipeline whose
// slow path includes a remote scrape and an LLM call.
var DefaultBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Counter is a monotonically increasing counter.
type Counter struct{ val atomic.Int64 }

func (c *Counter) Inc()         { c.val.Add(1) }
func (c *Counter) Add(n int64)  { c.val.Add(n) }
func (c *Counter) Value() int64 { return c.val.Load() }

// Gauge holds an integer value that can move in both directions.
type Gauge struct{ val atomic.Int64 }

func (g *Gauge) Set(n int64)  { g.val.Store(n) }
func (g *Gauge) Inc()         { g.val.Add(1) }
func (g *Gauge) Dec()         { g.val.Add(-1) }
func (g *Gauge) Value() int64 { return g.val.Load() }

// Histogram records a value distribution over fixed buckets.
type Histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *Histogram {
	b := make([]float64, len(buckets))
	copy(b, buckets)
	sort.Float64s(b)
	return &Histogram{buckets: b, counts: make([]uint64, len(b))}
}

// Observe records v into the first bucket with v <= bound. Cumulative sums
// are computed at render time.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.count++
	for i, b := range h.buckets {
		if v <= b {
			h.counts[i]++
			break
		}
	}
}

// Since observes the elapsed seconds since t.
func (h *Histogram) Since(t time.Time) {
	h.Observe(time.Since(t).Seconds())
}

func (h *Histogram) snapshot() ([]float64, []uint64, float64, uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := make([]uint64, len(h.counts))
	copy(c, h.counts)
	return h.buckets, c, h.sum, h.count
}

type series struct {
	name string // full name including any {labels}
	typ  string
	help string
}

// Registry holds named metrics. Label sets are baked into the metric name
// via WithLabels, so each label combination is its own series.
type Registry struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	order      []series
}

func New() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

// Counter returns the counter for name, creating it on first use.
func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{}
	r.counters[name] = c
	r.order = append(r.order, series{name: name, typ: "counter", help: help})
	return c
}

// Gauge returns the gauge for name, creating it on first use.
func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := &Gauge{}
	r.gauges[name] = g
	r.order = append(r.order, series{name: name, typ: "gauge", help: help})
	return g
}

// Histogram returns the histogram for name, creating it on first use with
// the given buckets (DefaultBuckets when nil).
func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	if buckets == nil {
		buckets = DefaultBuckets
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	h := newHistogram(buckets)
	r.histograms[name] = h
	r.order = append(r.order, series{name: name, typ: "histogram", help: help})
	return h
}

// WithLabels appends label pairs to a metric name: WithLabels("foo", "k", "v")
// yields `foo{k="v"}`. Odd-length pairs return the name unchanged.
func WithLabels(name string, kvs ...string) string {
	if len(kvs) == 0 || len(kvs)%2 != 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i := 0; i < len(kvs); i += 2 {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", kvs[i], kvs[i+1])
	}
	b.WriteByte('}')
	return b.String()
}

func baseName(name string) string {
	if i := strings.IndexByte(name, '{'); i != -1 {
		return name[:i]
	}
	return name
}

func labelSuffix(name string) string {
	if i := strings.IndexByte(name, '{'); i != -1 {
		return "," + name[i+1:len(name)-1]
	}
	return ""
}

// Render produces the Prometheus text exposition format. Series render in
// registration order with HELP and TYPE headers emitted once per base name.
func (r *Registry) Render() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	seen := make(map[string]bool)
	for _, s := range r.order {
		base := baseName(s.name)
		if !seen[base] {
			seen[base] = true
			if s.help != "" {
				fmt.Fprintf(&b, "# HELP %s %s\n", base, s.help)
			}
			fmt.Fprintf(&b, "# TYPE %s %s\n", base, s.typ)
		}
		switch s.typ {
		case "counter":
			fmt.Fprintf(&b, "%s %d\n", s.name, r.counters[s.name].Value())
		case "gauge":
			fmt.Fprintf(&b, "%s %d\n", s.name, r.gauges[s.name].Value())
		case "histogram":
			buckets, counts, sum, count := r.histograms[s.name].snapshot()
			labels := labelSuffix(s.name)
			var cumulative uint64
			for i, bound := range buckets {
				cumulative += counts[i]
				fmt.Fprintf(&b, "%s_bucket{le=\"%g\"%s} %d\n", base, bound, labels, cumulative)
			}
			fmt.Fprintf(&b, "%s_bucket{le=\"+Inf\"%s} %d\n", base, labels, count)
			if labels == "" {
				fmt.Fprintf(&b, "%s_sum %g\n%s_count %d\n", base, sum, base, count)
			} else {
				wrapped := "{" + labels[1:] + "}"
				fmt.Fprintf(&b, "%s_sum%s %g\n%s_count%s %d\n", base, wrapped, sum, base, wrapped, count)
			}
		}
	}
	return b.String()
}

// Handler serves the registry in the text exposition format.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.Write([]byte(r.Render()))
	})
}
