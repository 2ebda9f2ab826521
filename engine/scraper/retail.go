// Package scraper fetches product data from retailer pages on demand. It is
// consumed by the query pipeline purely as scrape(url) -> product-or-absence;
// any network or parse failure is an absence signal, never a pipeline error.
package scraper

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/shoplens-ai/shoplens/pkg/fn"
)

// maxBodyBytes caps how much of a product page is read.
const maxBodyBytes = 2 << 20

var (
	titleTagPattern   = regexp.MustCompile(`(?is)<span[^>]+id="productTitle"[^>]*>(.*?)</span>`)
	ogTitlePattern    = regexp.MustCompile(`(?i)<meta[^>]+property="og:title"[^>]+content="([^"]+)"`)
	pageTitlePattern  = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	descPattern       = regexp.MustCompile(`(?i)<meta[^>]+name="description"[^>]+content="([^"]+)"`)
	pricePattern      = regexp.MustCompile(`(?is)<span[^>]+class="[^"]*a-offscreen[^"]*"[^>]*>\s*([^<]+?)\s*</span>`)
	ratingPattern     = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)\s+out of\s+5`)
	reviewPattern     = regexp.MustCompile(`([0-9][0-9,]*)\s+(?:ratings|reviews)`)
	asinURLPattern    = regexp.MustCompile(`/(?:dp|gp/product)/([A-Z0-9]{10})`)
	asinAttrPattern   = regexp.MustCompile(`data-asin="([A-Z0-9]{10})"`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// RetailScraper fetches and parses retailer product pages.
type RetailScraper struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// NewRetailScraper creates a scraper with a bounded request timeout and a
// polite request rate.
func NewRetailScraper() *RetailScraper {
	return &RetailScraper{
		client:    &http.Client{Timeout: 30 * time.Second},
		limiter:   rate.NewLimiter(rate.Every(time.Second), 2),
		userAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36",
	}
}

// NewRetailScraperWithClient is used by tests to inject a server-bound client.
func NewRetailScraperWithClient(client *http.Client) *RetailScraper {
	s := NewRetailScraper()
	s.client = client
	return s
}

// Scrape fetches the page at url and extracts product fields. The result is
// an error when the page is unreachable, non-200, or yields no product name.
func (s *RetailScraper) Scrape(ctx context.Context, url string) fn.Result[Product] {
	if err := s.limiter.Wait(ctx); err != nil {
		return fn.Err[Product](err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fn.Errf[Product]("scraper: build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return fn.Errf[Product]("scraper: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fn.Errf[Product]("scraper: fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fn.Errf[Product]("scraper: read %s: %w", url, err)
	}

	p := parseProductPage(string(body), url)
	if p.Name == "" {
		return fn.Errf[Product]("scraper: no usable product data at %s", url)
	}
	return fn.Ok(p)
}

func parseProductPage(page, url string) Product {
	p := Product{URL: url}

	if m := titleTagPattern.FindStringSubmatch(page); m != nil {
		p.Name = cleanText(m[1])
	} else if m := ogTitlePattern.FindStringSubmatch(page); m != nil {
		p.Name = cleanText(m[1])
	} else if m := pageTitlePattern.FindStringSubmatch(page); m != nil {
		p.Name = cleanText(m[1])
	}

	if m := descPattern.FindStringSubmatch(page); m != nil {
		p.Description = cleanText(m[1])
	}
	if m := pricePattern.FindStringSubmatch(page); m != nil {
		p.Price = cleanText(m[1])
	}
	if m := ratingPattern.FindStringSubmatch(page); m != nil {
		p.Rating, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := reviewPattern.FindStringSubmatch(page); m != nil {
		p.ReviewCount, _ = strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
	}

	if m := asinURLPattern.FindStringSubmatch(url); m != nil {
		p.ASIN = m[1]
	} else if m := asinAttrPattern.FindStringSubmatch(page); m != nil {
		p.ASIN = m[1]
	}
	return p
}

func cleanText(s string) string {
	s = html.UnescapeString(s)
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// String implements fmt.Stringer for log output.
func (p Product) String() string {
	return fmt.Sprintf("%s (asin=%s price=%s rating=%.1f)", p.Name, p.ASIN, p.Price, p.Rating)
}
