package scraper

// Product is the record-like structure produced by a successful scrape.
// Fields the page did not expose are left at their zero values; the merge
// step decides what to do with them.
type Product struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       string  `json:"price"`
	Rating      float64 `json:"rating"`
	ReviewCount int64   `json:"review_count"`
	ASIN        string  `json:"asin"`
	URL         string  `json:"url"`
}
