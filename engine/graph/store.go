// Package graph provides the Neo4j-backed product metadata store. Products
// are nodes labelled Product keyed by an opaque id; the vector index holds
// the embedding space, this store holds everything a human would read.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/shoplens-ai/shoplens/engine/domain"
)

// result is the minimal interface needed from a neo4j result.
type result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
}

// runner is the minimal interface needed from a neo4j session.
type runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (result, error)
	Close(ctx context.Context) error
}

// ProductStore owns all Product-node operations.
type ProductStore struct {
	driver     neo4j.DriverWithContext
	newSession func(ctx context.Context) runner // test seam
}

// NewProductStore creates a ProductStore over an established driver.
func NewProductStore(driver neo4j.DriverWithContext) *ProductStore {
	return &ProductStore{driver: driver}
}

// neo4jSessionAdapter adapts neo4j.SessionWithContext to the runner interface.
type neo4jSessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *neo4jSessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *neo4jSessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

func (s *ProductStore) session(ctx context.Context) runner {
	if s.newSession != nil {
		return s.newSession(ctx)
	}
	return &neo4jSessionAdapter{sess: s.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

// FetchProducts returns the stored records for the given identifiers.
// Identifiers with no stored record are silently omitted; input order is
// not significant and the caller reorders against its candidate set.
func (s *ProductStore) FetchProducts(ctx context.Context, ids []string) (map[string]domain.ProductRecord, error) {
	if len(ids) == 0 {
		return map[string]domain.ProductRecord{}, nil
	}

	sess := s.session(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (p:Product) WHERE p.id IN $ids RETURN p`
	res, err := sess.Run(ctx, cypher, map[string]any{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("graph: fetch products: %w", err)
	}

	out := make(map[string]domain.ProductRecord)
	for res.Next(ctx) {
		node, _, err := neo4j.GetRecordValue[dbtype.Node](res.Record(), "p")
		if err != nil {
			return nil, fmt.Errorf("graph: read product node: %w", err)
		}
		rec := productFromProps(node.Props)
		if rec.ID != "" {
			out[rec.ID] = rec
		}
	}
	return out, nil
}

// StoreProduct creates the Product node for rec, or fills in its fields if a
// node with that id already exists.
func (s *ProductStore) StoreProduct(ctx context.Context, rec domain.ProductRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("graph: store product: empty id")
	}

	sess := s.session(ctx)
	defer sess.Close(ctx)

	cypher := `MERGE (p:Product {id: $id}) SET p += $props`
	_, err := sess.Run(ctx, cypher, map[string]any{
		"id":    rec.ID,
		"props": productToMap(rec),
	})
	if err != nil {
		return fmt.Errorf("graph: store product %s: %w", rec.ID, err)
	}
	return nil
}

func productToMap(rec domain.ProductRecord) map[string]any {
	return map[string]any{
		"id":           rec.ID,
		"name":         rec.Name,
		"description":  rec.Description,
		"price":        rec.Price,
		"rating":       rec.Rating,
		"review_count": rec.ReviewCount,
		"url":          rec.URL,
		"asin":         rec.ASIN,
	}
}

func productFromProps(props map[string]any) domain.ProductRecord {
	return domain.ProductRecord{
		ID:          strProp(props, "id"),
		Name:        strProp(props, "name"),
		Description: strProp(props, "description"),
		Price:       strProp(props, "price"),
		Rating:      floatProp(props, "rating"),
		ReviewCount: intProp(props, "review_count"),
		URL:         strProp(props, "url"),
		ASIN:        strProp(props, "asin"),
	}
}

func strProp(props map[string]any, key string) string {
	if s, ok := props[key].(string); ok {
		return s
	}
	return ""
}

func floatProp(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func intProp(props map[string]any, key string) int64 {
	switch v := props[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}
