package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultOverpassURL is the public Overpass API interpreter endpoint.
	DefaultOverpassURL = "https://overpass-api.de/api/interpreter"

	maxOverpassBody = 8 << 20
)

// UpstreamError reports a non-200 response from the Overpass API. The status
// code is preserved so callers can forward it.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("overpass: upstream status %d: %s", e.StatusCode, e.Body)
}

// Point is a latitude/longitude pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Element is a single Overpass result. Nodes carry lat/lon directly; ways
// and relations carry a computed center.
type Element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat"`
	Lon    *float64          `json:"lon"`
	Center *Point            `json:"center"`
	Tags   map[string]string `json:"tags"`
}

type overpassResponse struct {
	Elements []Element `json:"elements"`
}

// OverpassClient queries an Overpass API interpreter. Requests are rate
// limited to stay within the public instance's usage policy.
type OverpassClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewOverpassClient returns a client for the given interpreter endpoint. An
// empty baseURL selects the public instance.
func NewOverpassClient(baseURL string) *OverpassClient {
	return NewOverpassClientWithHTTP(baseURL, &http.Client{Timeout: 30 * time.Second})
}

// NewOverpassClientWithHTTP allows injecting the HTTP client in tests.
func NewOverpassClientWithHTTP(baseURL string, client *http.Client) *OverpassClient {
	if baseURL == "" {
		baseURL = DefaultOverpassURL
	}
	return &OverpassClient{
		baseURL: baseURL,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
	}
}

// Query posts the Overpass QL and decodes the matched elements.
func (c *OverpassClient) Query(ctx context.Context, ql string) ([]Element, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("overpass: rate limit wait: %w", err)
	}

	form := url.Values{"data": {ql}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("overpass: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOverpassBody))
	if err != nil {
		return nil, fmt.Errorf("overpass: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := string(body)
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: snippet}
	}

	var decoded overpassResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("overpass: decode response: %w", err)
	}
	return decoded.Elements, nil
}
