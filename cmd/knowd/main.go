// Knowd is a knowledge-base daemon: it ingests documents into a Qdrant
// vector index and serves retrieval, context assembly, and grounded
// chat over HTTP.
//
// Configuration is loaded from an optional YAML file plus environment
// variables. See internal/config for details.
//
// Usage:
//
//	# Start server with defaults
//	knowd
//
//	# Configure via flags and environment
//	SERVER_PORT=9000 knowd -config knowd.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowd/internal/chunker"
	"github.com/fyrsmithlabs/knowd/internal/completion"
	"github.com/fyrsmithlabs/knowd/internal/config"
	"github.com/fyrsmithlabs/knowd/internal/embeddings"
	"github.com/fyrsmithlabs/knowd/internal/expand"
	"github.com/fyrsmithlabs/knowd/internal/ingest"
	"github.com/fyrsmithlabs/knowd/internal/logging"
	"github.com/fyrsmithlabs/knowd/internal/retrieval"
	"github.com/fyrsmithlabs/knowd/internal/server"
	"github.com/fyrsmithlabs/knowd/internal/textnorm"
	"github.com/fyrsmithlabs/knowd/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("knowd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires all dependencies and blocks until the context is cancelled:
// configuration, logger, vector store, embedding and completion
// providers, the ingest pipeline and retrieval engine, then the HTTP
// server with graceful shutdown.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logging.Sync(logger)
	}()

	logger.Info("starting knowd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("collection", cfg.Qdrant.Collection))

	// The store handle is lazy: knowd starts even when Qdrant is down
	// and connects on first use.
	lazy := vectorstore.NewLazy(vectorstore.QdrantConfig{
		Host:           cfg.Qdrant.Host,
		Port:           cfg.Qdrant.Port,
		APIKey:         cfg.Qdrant.APIKey,
		UseTLS:         cfg.Qdrant.UseTLS,
		CollectionName: cfg.Qdrant.Collection,
		VectorSize:     cfg.Qdrant.VectorSize,
	}, logger)
	defer lazy.Close()

	store, err := lazy.Get()
	if err != nil {
		return fmt.Errorf("connecting to vector store: %w", err)
	}
	if err := store.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("ensuring collection: %w", err)
	}

	embedder, err := embeddings.NewOpenAIProvider(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("creating embedding provider: %w", err)
	}

	var completions completion.Provider
	if cfg.Chat.APIKey != "" {
		completions, err = completion.NewOpenAI(completion.Config{
			APIKey:  cfg.Chat.APIKey,
			BaseURL: cfg.Chat.BaseURL,
			Model:   cfg.Chat.Model,
		})
		if err != nil {
			return fmt.Errorf("creating completion provider: %w", err)
		}
	} else {
		logger.Warn("chat api key not set, /api/chat disabled")
	}

	markers := textnorm.NewMarkerSet(cfg.RAG.Language)
	normalizer := textnorm.New(markers)
	splitter := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap, markers)
	pipeline := ingest.New(store, embedder, normalizer, splitter, logger)
	engine := retrieval.NewEngine(store, embedder, expand.New(cfg.RAG.Language), logger)

	srv, err := server.NewServer(store, pipeline, engine, completions, cfg.RAG, logger,
		&server.Config{Port: cfg.Server.Port})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
