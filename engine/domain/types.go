// Package domain defines core domain types, outcomes, and validation for the
// ShopLens pipeline. It acts as the validation gate at pipeline entry points.
package domain

// ProductRecord is a product known to the metadata store. Records are created
// by offline ingestion or by the enrichment merge step; merge only fills
// previously-absent fields. The ID never changes once assigned.
type ProductRecord struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       string  `json:"price"`
	Rating      float64 `json:"rating"`
	ReviewCount int64   `json:"review_count"`
	URL         string  `json:"url"`
	ASIN        string  `json:"asin"`
}

// QueryRequest is a single product query.
type QueryRequest struct {
	Query     string            `json:"query"`
	SourceURL string            `json:"source_url,omitempty"`
	ExtraData map[string]string `json:"extra_data,omitempty"`
}

// Outcome classifies how a query was answered.
type Outcome string

const (
	// OutcomeMatched means the index and metadata store held the answer.
	OutcomeMatched Outcome = "matched"
	// OutcomeEnriched means the answer came from a freshly scraped and
	// merged record.
	OutcomeEnriched Outcome = "enriched"
	// OutcomeNoMatch means nothing was found and no enrichment was
	// possible; the answer, if any, is from general knowledge.
	OutcomeNoMatch Outcome = "no_match"
)

// QueryResult is the structured pipeline output.
type QueryResult struct {
	Answer  string          `json:"answer"`
	Records []ProductRecord `json:"metadata"`
	Outcome Outcome         `json:"outcome"`
}

// VendorRecord is a scored vendor candidate from the geo-ranker. Lat/Lon are
// nil when the geodata element carried no usable coordinates; such vendors
// always get Distance = +Inf and Relevance = 0.
type VendorRecord struct {
	Name      string   `json:"name"`
	Shop      string   `json:"shop"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	Distance  float64  `json:"distance"`
	Relevance int      `json:"relevance"`
}
