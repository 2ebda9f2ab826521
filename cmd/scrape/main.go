// Command scrape fetches product pages from a list of URLs and writes a
// catalog JSONL file suitable for the ingest command.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/shoplens-ai/shoplens/engine/scraper"
	"github.com/shoplens-ai/shoplens/pkg/fn"
)

// catalogLine mirrors the ingest catalog schema.
type catalogLine struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       string  `json:"price,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	ReviewCount int64   `json:"review_count,omitempty"`
	URL         string  `json:"url,omitempty"`
	ASIN        string  `json:"asin,omitempty"`
}

func main() {
	var (
		urlsPath = flag.String("urls", "", "file with one product URL per line (- for stdin)")
		outPath  = flag.String("out", "-", "output catalog JSONL path (- for stdout)")
		workers  = flag.Int("workers", 2, "parallel scrape workers")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *urlsPath == "" {
		logger.Error("missing -urls flag")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *urlsPath, *outPath, *workers, logger); err != nil {
		logger.Error("scrape failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, urlsPath, outPath string, workers int, logger *slog.Logger) error {
	urls, err := readURLs(urlsPath)
	if err != nil {
		return err
	}
	logger.Info("scraping product pages", "urls", len(urls), "workers", workers)

	sc := scraper.NewRetailScraper()
	results := fn.ParMapResult(urls, workers, func(u string) fn.Result[scraper.Product] {
		return sc.Scrape(ctx, u)
	})

	out, closeOut, err := openOut(outPath)
	if err != nil {
		return err
	}
	defer closeOut()

	enc := json.NewEncoder(out)
	var written, failed int
	for i, res := range results {
		p, err := res.Unwrap()
		if err != nil {
			logger.Warn("scrape failed", "url", urls[i], "err", err)
			failed++
			continue
		}
		line := catalogLine{
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Rating:      p.Rating,
			ReviewCount: p.ReviewCount,
			URL:         p.URL,
			ASIN:        p.ASIN,
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("write catalog line: %w", err)
		}
		written++
	}
	logger.Info("catalog written", "products", written, "failed", failed)
	return nil
}

func readURLs(path string) ([]string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var urls []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, sc.Err()
}

func openOut(path string) (io.Writer, func() error, error) {
	if path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
