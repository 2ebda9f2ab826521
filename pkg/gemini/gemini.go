// Package gemini provides the Gemini-backed text generation client used for
// answer synthesis. Failures (timeout, quota, unreachable) are returned as-is;
// the pipeline maps them to its synthesis-unavailable outcome. No retries
// happen here.
package gemini

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// Options configures the generation call.
type Options struct {
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Model:       "gemini-2.0-flash",
		Temperature: 0.3,
		Timeout:     30 * time.Second,
	}
}

// Client wraps the Gemini API for single-prompt text generation.
type Client struct {
	client *genai.Client
	opts   Options
}

// New creates a Gemini client. The API key is required.
func New(ctx context.Context, apiKey string, opts Options) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: missing api key")
	}
	if opts.Model == "" {
		opts.Model = DefaultOptions().Model
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: creating client: %w", err)
	}
	return &Client{client: client, opts: opts}, nil
}

// Generate submits a single prompt and returns the generated text. The call
// is bounded by the configured timeout.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.opts.Temperature),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.opts.Model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini: generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini: empty response from model %s", c.opts.Model)
	}
	return text, nil
}
