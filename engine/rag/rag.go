// Package rag orchestrates the product query pipeline. It embeds a query,
// searches the vector index, looks up product metadata, falls back to
// on-demand scraping and merging when nothing is known, and synthesizes the
// final answer through the LLM collaborator.
package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shoplens-ai/shoplens/engine/domain"
	"github.com/shoplens-ai/shoplens/engine/scraper"
	"github.com/shoplens-ai/shoplens/engine/semantic"
	"github.com/shoplens-ai/shoplens/pkg/fn"
)

// Embedder maps query text to a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex abstracts the shared in-memory vector index.
type VectorIndex interface {
	Search(vec []float32, k int) ([]semantic.Candidate, error)
	Insert(vec []float32, id string) error
}

// MetadataStore abstracts the product metadata store.
type MetadataStore interface {
	FetchProducts(ctx context.Context, ids []string) (map[string]domain.ProductRecord, error)
	StoreProduct(ctx context.Context, rec domain.ProductRecord) error
}

// Scraper fetches product data from a retailer page; a failed scrape is an
// absence signal, not an error condition for the query.
type Scraper interface {
	Scrape(ctx context.Context, url string) fn.Result[scraper.Product]
}

// Generator produces the final answer text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EnrichedEvent announces a merge of freshly scraped product data.
type EnrichedEvent struct {
	ProductID string            `json:"product_id"`
	Name      string            `json:"name"`
	ASIN      string            `json:"asin,omitempty"`
	SourceURL string            `json:"source_url"`
	ExtraData map[string]string `json:"extra_data,omitempty"`
}

// EventPublisher announces enrichment merges to interested consumers.
// Publishing is best-effort and never fails a query.
type EventPublisher interface {
	PublishEnriched(ctx context.Context, ev EnrichedEvent) error
}

// Options configures the pipeline behaviour.
type Options struct {
	TopK int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{TopK: 5}
}

// Service is the query pipeline orchestrator.
type Service struct {
	embed  Embedder
	index  VectorIndex
	store  MetadataStore
	scrape Scraper
	llm    Generator
	events EventPublisher
	opts   Options
	logger *slog.Logger
	newID  func() string
}

// New creates the pipeline service. events may be nil when no consumer is
// configured.
func New(embed Embedder, index VectorIndex, store MetadataStore, scrape Scraper, llm Generator, events EventPublisher, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	return &Service{
		embed:  embed,
		index:  index,
		store:  store,
		scrape: scrape,
		llm:    llm,
		events: events,
		opts:   opts,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// Query runs the full pipeline for one request.
//
// Failure semantics: scraping failures degrade to an empty-metadata answer; a
// store or re-fetch failure after a successful scrape surfaces as
// domain.ErrPartialEnrichment; an LLM failure surfaces as
// domain.ErrSynthesisUnavailable. Merges already committed are never rolled
// back.
func (s *Service) Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error) {
	if err := domain.ValidateQueryRequest(req); err != nil {
		return nil, err
	}
	s.logger.Info("query start", "query_len", len(req.Query), "has_source", req.SourceURL != "")

	embedding, err := s.embed.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}

	candidates, err := s.index.Search(embedding, s.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search: %w", err)
	}

	ids := fn.Map(candidates, func(c semantic.Candidate) string { return c.ID })
	byID, err := s.store.FetchProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("rag: fetch metadata: %w", err)
	}

	// Reassemble in candidate order; the store returns an unordered map.
	records := make([]domain.ProductRecord, 0, len(byID))
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			records = append(records, rec)
		}
	}

	outcome := domain.OutcomeMatched
	if len(records) == 0 {
		records, outcome = s.enrich(ctx, req, embedding)
		if outcome == domain.OutcomeEnriched && len(records) == 0 {
			// Scrape succeeded but the merged record did not come back.
			return nil, fmt.Errorf("rag: merged record not retrievable: %w", domain.ErrPartialEnrichment)
		}
	}

	answer, err := s.llm.Generate(ctx, BuildPrompt(req.Query, records))
	if err != nil {
		return nil, fmt.Errorf("rag: synthesize: %w (%w)", err, domain.ErrSynthesisUnavailable)
	}

	s.logger.Info("query done", "outcome", outcome, "records", len(records))
	return &domain.QueryResult{Answer: answer, Records: records, Outcome: outcome}, nil
}

// enrich runs the fallback path when no metadata matched. It returns the
// records to answer from and the resulting outcome. A scrape failure or a
// missing source URL degrades to an empty result with OutcomeNoMatch; a
// failed merge or re-fetch after a successful scrape comes back as
// OutcomeEnriched with no records, which Query surfaces as a partial failure.
func (s *Service) enrich(ctx context.Context, req domain.QueryRequest, embedding []float32) ([]domain.ProductRecord, domain.Outcome) {
	if req.SourceURL == "" {
		return nil, domain.OutcomeNoMatch
	}

	scraped, err := s.scrape.Scrape(ctx, req.SourceURL).Unwrap()
	if err != nil {
		s.logger.Warn("scrape failed, continuing without metadata", "url", req.SourceURL, "err", err)
		return nil, domain.OutcomeNoMatch
	}

	id := s.newID()
	rec := mergeScraped(id, scraped, req.ExtraData)

	if err := s.index.Insert(embedding, id); err != nil {
		s.logger.Warn("index insert failed", "id", id, "err", err)
		return nil, domain.OutcomeEnriched
	}
	if err := s.store.StoreProduct(ctx, rec); err != nil {
		s.logger.Warn("store merged product failed", "id", id, "err", err)
		return nil, domain.OutcomeEnriched
	}

	if s.events != nil {
		ev := EnrichedEvent{
			ProductID: id,
			Name:      rec.Name,
			ASIN:      rec.ASIN,
			SourceURL: req.SourceURL,
			ExtraData: req.ExtraData,
		}
		if err := s.events.PublishEnriched(ctx, ev); err != nil {
			s.logger.Warn("enrichment event publish failed", "id", id, "err", err)
		}
	}

	// Re-fetch under the assigned id so callers see exactly what future
	// queries will see.
	byID, err := s.store.FetchProducts(ctx, []string{id})
	if err != nil {
		s.logger.Warn("re-fetch merged product failed", "id", id, "err", err)
		return nil, domain.OutcomeEnriched
	}
	rec, ok := byID[id]
	if !ok {
		return nil, domain.OutcomeEnriched
	}
	return []domain.ProductRecord{rec}, domain.OutcomeEnriched
}

// mergeScraped builds the ProductRecord to merge: scraped fields first, then
// caller-supplied auxiliary context filling any still-absent fields.
func mergeScraped(id string, p scraper.Product, extra map[string]string) domain.ProductRecord {
	rec := domain.ProductRecord{
		ID:          id,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Rating:      p.Rating,
		ReviewCount: p.ReviewCount,
		URL:         p.URL,
		ASIN:        p.ASIN,
	}
	if v, ok := extra["name"]; ok && rec.Name == "" {
		rec.Name = v
	}
	if v, ok := extra["description"]; ok && rec.Description == "" {
		rec.Description = v
	}
	if v, ok := extra["price"]; ok && rec.Price == "" {
		rec.Price = v
	}
	if v, ok := extra["url"]; ok && rec.URL == "" {
		rec.URL = v
	}
	if v, ok := extra["asin"]; ok && rec.ASIN == "" {
		rec.ASIN = v
	}
	return rec
}
