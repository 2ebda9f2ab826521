package rag

import (
	"fmt"
	"strings"

	"github.com/shoplens-ai/shoplens/engine/domain"
)

const systemPreamble = `You are ShopLens, a product shopping assistant.
Answer the user's question using the product context below when it is
present. If no context is given, answer from general knowledge and say that
no matching product was found in the catalog.`

// BuildPrompt renders the retrieved records and the user's query into a
// deterministic prompt. Records are rendered in the order given (candidate
// order); an empty record list yields an empty context block.
func BuildPrompt(query string, records []domain.ProductRecord) string {
	var b strings.Builder
	b.WriteString(systemPreamble)
	b.WriteString("\n\n")

	if len(records) > 0 {
		b.WriteString("Product context:\n")
		for i, r := range records {
			fmt.Fprintf(&b, "[%d] Name: %s\n", i+1, r.Name)
			if r.Description != "" {
				fmt.Fprintf(&b, "    Description: %s\n", r.Description)
			}
			if r.Price != "" {
				fmt.Fprintf(&b, "    Price: %s\n", r.Price)
			}
			if r.Rating > 0 {
				fmt.Fprintf(&b, "    Rating: %.1f (%d reviews)\n", r.Rating, r.ReviewCount)
			}
			if r.URL != "" {
				fmt.Fprintf(&b, "    URL: %s\n", r.URL)
			}
			if r.ASIN != "" {
				fmt.Fprintf(&b, "    ASIN: %s\n", r.ASIN)
			}
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Question: %s", query)
	return b.String()
}
