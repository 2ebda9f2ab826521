package ingest

import (
	"strings"

	"github.com/google/uuid"

	"github.com/shoplens-ai/shoplens/engine/domain"
)

// CatalogEntry is one product line in a catalog JSONL file.
type CatalogEntry struct {
	ID          string  `json:"id,omitempty"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       string  `json:"price,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	ReviewCount int64   `json:"review_count,omitempty"`
	URL         string  `json:"url,omitempty"`
	ASIN        string  `json:"asin,omitempty"`
}

// toRecord converts a catalog entry to a product record, minting an
// identifier when the catalog does not carry one.
func (e CatalogEntry) toRecord() domain.ProductRecord {
	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}
	return domain.ProductRecord{
		ID:          id,
		Name:        e.Name,
		Description: e.Description,
		Price:       e.Price,
		Rating:      e.Rating,
		ReviewCount: e.ReviewCount,
		URL:         e.URL,
		ASIN:        e.ASIN,
	}
}

// embedText builds the text fed to the embedder: the name plus as much of
// the description as carries signal, whitespace collapsed.
func embedText(rec domain.ProductRecord) string {
	parts := []string{rec.Name}
	if rec.Description != "" {
		parts = append(parts, rec.Description)
	}
	return strings.Join(strings.Fields(strings.Join(parts, ". ")), " ")
}
