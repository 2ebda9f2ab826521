// Package ingest loads product catalogs into the vector index and metadata
// store. Catalogs are JSONL files with one product per line; entries are
// embedded in parallel and failures are reported per line rather than
// aborting the batch.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/shoplens-ai/shoplens/engine/domain"
	"github.com/shoplens-ai/shoplens/engine/rag"
	"github.com/shoplens-ai/shoplens/pkg/fn"
)

const maxLineBytes = 1 << 20

// Deps holds the external collaborators for the catalog loader.
type Deps struct {
	Embedder rag.Embedder
	Index    rag.VectorIndex
	Store    rag.MetadataStore
	Logger   *slog.Logger
	// Workers bounds parallel embedding calls. Zero means 4.
	Workers int
}

// Stats summarizes one catalog load.
type Stats struct {
	Loaded int
	Failed int
}

// Loader runs the catalog ingestion pipeline.
type Loader struct {
	deps Deps
}

func NewLoader(deps Deps) *Loader {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Workers <= 0 {
		deps.Workers = 4
	}
	return &Loader{deps: deps}
}

// LoadFile ingests the JSONL catalog at path.
func (l *Loader) LoadFile(ctx context.Context, path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("ingest: open %s: %w", path, err)
	}
	defer f.Close()
	return l.Load(ctx, f)
}

// Load ingests a JSONL catalog from r. Lines that fail to decode, embed, or
// store are counted and logged; the rest of the batch proceeds.
func (l *Loader) Load(ctx context.Context, r io.Reader) (Stats, error) {
	var stats Stats
	var records []domain.ProductRecord

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var entry CatalogEntry
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			l.deps.Logger.Warn("skipping malformed catalog line", "line", line, "err", err)
			stats.Failed++
			continue
		}
		if entry.Name == "" {
			l.deps.Logger.Warn("skipping catalog line without name", "line", line)
			stats.Failed++
			continue
		}
		records = append(records, entry.toRecord())
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("ingest: read catalog: %w", err)
	}

	embedded := fn.ParMapResult(records, l.deps.Workers, func(rec domain.ProductRecord) fn.Result[embeddedRecord] {
		res := l.embedWithRetry(ctx, embedText(rec))
		vec, err := res.Unwrap()
		if err != nil {
			return fn.Err[embeddedRecord](fmt.Errorf("embed %s: %w", rec.ID, err))
		}
		return fn.Ok(embeddedRecord{rec: rec, vec: vec})
	})

	for _, res := range embedded {
		er, err := res.Unwrap()
		if err != nil {
			l.deps.Logger.Warn("embedding failed", "err", err)
			stats.Failed++
			continue
		}
		if err := l.deps.Index.Insert(er.vec, er.rec.ID); err != nil {
			l.deps.Logger.Warn("index insert failed", "id", er.rec.ID, "err", err)
			stats.Failed++
			continue
		}
		if err := l.deps.Store.StoreProduct(ctx, er.rec); err != nil {
			l.deps.Logger.Warn("metadata store failed", "id", er.rec.ID, "err", err)
			stats.Failed++
			continue
		}
		stats.Loaded++
	}
	return stats, nil
}

type embeddedRecord struct {
	rec domain.ProductRecord
	vec []float32
}

func (l *Loader) embedWithRetry(ctx context.Context, text string) fn.Result[[]float32] {
	opts := fn.RetryOpts{MaxAttempts: 3, InitialWait: 200 * time.Millisecond, MaxWait: 2 * time.Second}
	return fn.Retry(ctx, opts, func(ctx context.Context) fn.Result[[]float32] {
		return fn.FromPair(l.deps.Embedder.Embed(ctx, text))
	})
}
