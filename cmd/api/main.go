// Package main implements the ShopLens API server: product question
// answering over the RAG pipeline plus nearby vendor search.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"golang.org/x/time/rate"

	"github.com/shoplens-ai/shoplens/engine/geo"
	"github.com/shoplens-ai/shoplens/engine/graph"
	"github.com/shoplens-ai/shoplens/engine/rag"
	"github.com/shoplens-ai/shoplens/engine/scraper"
	"github.com/shoplens-ai/shoplens/engine/semantic"
	"github.com/shoplens-ai/shoplens/pkg/gemini"
	"github.com/shoplens-ai/shoplens/pkg/metrics"
	"github.com/shoplens-ai/shoplens/pkg/mid"
	"github.com/shoplens-ai/shoplens/pkg/natsutil"
	"github.com/shoplens-ai/shoplens/pkg/ollama"
	"github.com/shoplens-ai/shoplens/pkg/resilience"
)

const enrichedSubject = "shoplens.product.enriched"

// Config holds all environment-based configuration.
type Config struct {
	Port         string
	OllamaURL    string
	EmbedModel   string
	GeminiAPIKey string
	GeminiModel  string
	Neo4jURL     string
	Neo4jUser    string
	Neo4jPass    string
	NATSURL      string
	OverpassURL  string
	CORSOrigin   string
	IndexPath    string
	VectorDims   int
	RateLimit    float64
}

func loadConfig() Config {
	return Config{
		Port:         envOr("PORT", "8080"),
		OllamaURL:    envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:   envOr("EMBED_MODEL", "nomic-embed-text"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  envOr("GEMINI_MODEL", "gemini-2.0-flash"),
		Neo4jURL:     envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:    envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:    envOr("NEO4J_PASS", "password"),
		NATSURL:      os.Getenv("NATS_URL"),
		OverpassURL:  envOr("OVERPASS_URL", geo.DefaultOverpassURL),
		CORSOrigin:   envOr("CORS_ORIGIN", "*"),
		IndexPath:    envOr("INDEX_PATH", ""),
		VectorDims:   envIntOr("VECTOR_DIMS", 768),
		RateLimit:    envFloatOr("RATE_LIMIT_RPS", 20),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Vector index: warm from snapshot when configured ---
	index, err := loadIndex(cfg, logger)
	if err != nil {
		return err
	}

	// --- Neo4j ---
	neo4jDriver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer neo4jDriver.Close(ctx)

	// --- Gemini ---
	llm, err := gemini.New(ctx, cfg.GeminiAPIKey, gemini.Options{Model: cfg.GeminiModel})
	if err != nil {
		return fmt.Errorf("gemini client: %w", err)
	}

	// --- NATS (optional) ---
	var events rag.EventPublisher
	if cfg.NATSURL != "" {
		nc, err := natsutil.Connect(cfg.NATSURL, "shoplens-api")
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Drain()
		events = &natsEvents{nc: nc}
	}

	ragSvc := rag.New(
		ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel),
		index,
		graph.NewProductStore(neo4jDriver),
		scraper.NewRetailScraper(),
		llm,
		events,
		rag.DefaultOptions(),
		logger,
	)

	// Overpass is a shared public endpoint; trip fast when it misbehaves.
	ranker := geo.NewRanker(&breakerQuerier{
		inner:   geo.NewOverpassClient(cfg.OverpassURL),
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}, logger)

	// --- HTTP server ---
	reg := metrics.New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.Handle("POST /api/query", handleQuery(ragSvc, reg, logger))
	mux.Handle("GET /api/vendors", handleVendors(ranker, logger))
	mux.Handle("GET /metrics", reg.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.OTel("shoplens-api"),
		mid.Logger(logger),
		mid.Metrics(reg),
		mid.RateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimit), int(cfg.RateLimit)+1)),
		mid.CORS(cfg.CORSOrigin),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func loadIndex(cfg Config, logger *slog.Logger) (*semantic.Index, error) {
	if cfg.IndexPath != "" {
		index, err := semantic.LoadFile(cfg.IndexPath)
		if err == nil {
			logger.Info("index snapshot loaded", "path", cfg.IndexPath, "size", index.Len())
			return index, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load index snapshot: %w", err)
		}
		logger.Info("no index snapshot, starting empty", "path", cfg.IndexPath)
	}
	return semantic.NewIndex(cfg.VectorDims)
}

// breakerQuerier routes Overpass calls through a circuit breaker.
type breakerQuerier struct {
	inner   geo.OverpassQuerier
	breaker *resilience.Breaker
}

func (q *breakerQuerier) Query(ctx context.Context, ql string) ([]geo.Element, error) {
	var elements []geo.Element
	err := q.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		elements, err = q.inner.Query(ctx, ql)
		return err
	})
	return elements, err
}

// natsEvents publishes enrichment merges over NATS.
type natsEvents struct {
	nc *nats.Conn
}

func (p *natsEvents) PublishEnriched(ctx context.Context, ev rag.EnrichedEvent) error {
	return natsutil.Publish(ctx, p.nc, enrichedSubject, ev)
}
