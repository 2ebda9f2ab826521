// Command ingest loads a product catalog JSONL file into the vector index
// and Neo4j, then writes the index snapshot for the API server to load.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/shoplens-ai/shoplens/engine/graph"
	"github.com/shoplens-ai/shoplens/engine/ingest"
	"github.com/shoplens-ai/shoplens/engine/semantic"
	"github.com/shoplens-ai/shoplens/pkg/ollama"
)

func main() {
	var (
		catalogPath = flag.String("catalog", "", "path to product catalog JSONL file")
		indexPath   = flag.String("index", "shoplens.index", "vector index snapshot path")
		dims        = flag.Int("dims", 768, "embedding dimensions")
		workers     = flag.Int("workers", 4, "parallel embedding workers")
		ollamaURL   = flag.String("ollama", "http://localhost:11434", "Ollama base URL")
		ollamaModel = flag.String("model", "nomic-embed-text", "Ollama embedding model")
		neo4jURL    = flag.String("neo4j", "neo4j://localhost:7687", "Neo4j bolt URL")
		neo4jUser   = flag.String("neo4j-user", "neo4j", "Neo4j username")
		neo4jPass   = flag.String("neo4j-pass", "password", "Neo4j password")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if *catalogPath == "" {
		logger.Error("missing -catalog flag")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *catalogPath, *indexPath, *dims, *workers, *ollamaURL, *ollamaModel, *neo4jURL, *neo4jUser, *neo4jPass, logger); err != nil {
		logger.Error("ingest failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, catalogPath, indexPath string, dims, workers int, ollamaURL, ollamaModel, neo4jURL, neo4jUser, neo4jPass string, logger *slog.Logger) error {
	index, err := openIndex(indexPath, dims, logger)
	if err != nil {
		return err
	}

	driver, err := neo4j.NewDriverWithContext(neo4jURL, neo4j.BasicAuth(neo4jUser, neo4jPass, ""))
	if err != nil {
		return err
	}
	defer driver.Close(ctx)
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return err
	}

	loader := ingest.NewLoader(ingest.Deps{
		Embedder: ollama.NewEmbedClient(ollamaURL, ollamaModel),
		Index:    index,
		Store:    graph.NewProductStore(driver),
		Logger:   logger,
		Workers:  workers,
	})

	stats, err := loader.LoadFile(ctx, catalogPath)
	if err != nil {
		return err
	}
	logger.Info("catalog loaded", "loaded", stats.Loaded, "failed", stats.Failed, "index_size", index.Len())

	if err := index.SaveFile(indexPath); err != nil {
		return err
	}
	logger.Info("index snapshot written", "path", indexPath)
	return nil
}

// openIndex resumes an existing snapshot so repeated loads accumulate.
func openIndex(path string, dims int, logger *slog.Logger) (*semantic.Index, error) {
	index, err := semantic.LoadFile(path)
	if err == nil {
		logger.Info("resuming index snapshot", "path", path, "size", index.Len())
		return index, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return semantic.NewIndex(dims)
}
